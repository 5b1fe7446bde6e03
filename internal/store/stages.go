package store

import (
	"sort"
	"strconv"
	"strings"

	"hypolab/internal/domain"
)

type StagePatch struct {
	Name             *string
	Description      *string
	IsActive         *bool
	RequiresApproval *bool
	Color            *string
}

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

func (s *Store) sortedStages() []domain.Stage {
	stages := s.stages.all()
	sort.SliceStable(stages, func(i, j int) bool { return stages[i].Order < stages[j].Order })
	return stages
}

func (s *Store) stageByCode(code string) (domain.Stage, bool) {
	for _, st := range s.stages.items {
		if st.Code == code {
			return st, true
		}
	}
	return domain.Stage{}, false
}

// activeStage resolves a stage code and rejects unknown or inactive stages.
func (s *Store) activeStage(code string) (domain.Stage, error) {
	st, ok := s.stageByCode(code)
	if !ok {
		return domain.Stage{}, InvalidStageError{Code: code, Name: code, Reason: `Stage "` + code + `" does not exist`}
	}
	if !st.IsActive {
		return domain.Stage{}, InvalidStageError{Code: code, Name: st.Name, Reason: `Stage "` + st.Name + `" is not active`}
	}
	return st, nil
}

// ListStages returns every stage definition sorted by order.
func (s *Store) ListStages() []domain.Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedStages()
}

func (s *Store) GetStage(id int) (domain.Stage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stages.get(strconv.Itoa(id))
	if !ok {
		return domain.Stage{}, notFound("Stage", strconv.Itoa(id))
	}
	return st, nil
}

// StageByCode looks a stage up by its code regardless of isActive.
func (s *Store) StageByCode(code string) (domain.Stage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stageByCode(code)
	if !ok {
		return domain.Stage{}, notFound("Stage", code)
	}
	return st, nil
}

// CreateStage appends a stage at the end of the order. Used for seeding and tests.
func (s *Store) CreateStage(st domain.Stage) (domain.Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.Code = strings.TrimSpace(st.Code)
	st.Name = strings.TrimSpace(st.Name)
	if st.Code == "" || st.Name == "" {
		return domain.Stage{}, invalid("code", "Stage code and name are required")
	}
	if _, exists := s.stageByCode(st.Code); exists {
		return domain.Stage{}, ConflictError{Field: "code", Message: "Stage with this code already exists"}
	}
	s.stageSeq++
	st.ID = s.stageSeq
	st.Order = s.stages.len() + 1
	now := s.now()
	st.CreatedAt = now
	st.UpdatedAt = now
	s.stages.insert(st)
	return st, nil
}

func (s *Store) UpdateStage(id int, patch StagePatch) (domain.Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.stages.index(strconv.Itoa(id))
	if i < 0 {
		return domain.Stage{}, notFound("Stage", strconv.Itoa(id))
	}
	st := s.stages.items[i]
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return domain.Stage{}, invalid("name", "Stage name cannot be empty")
		}
		st.Name = name
	}
	if patch.Description != nil {
		st.Description = *patch.Description
	}
	if patch.IsActive != nil {
		st.IsActive = *patch.IsActive
	}
	if patch.RequiresApproval != nil {
		st.RequiresApproval = *patch.RequiresApproval
	}
	if patch.Color != nil {
		st.Color = *patch.Color
	}
	st.UpdatedAt = s.now()
	s.stages.set(i, st)
	return st, nil
}

// ReorderStage swaps the stage with its neighbour in the given direction and
// renumbers every stage to a contiguous 1..N order. It returns the stages in
// their new order.
func (s *Store) ReorderStage(id int, direction string) ([]domain.Stage, error) {
	if direction != DirectionUp && direction != DirectionDown {
		return nil, invalid("direction", "Direction must be 'up' or 'down'")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ordered := s.sortedStages()
	pos := -1
	for i, st := range ordered {
		if st.ID == id {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil, notFound("Stage", strconv.Itoa(id))
	}
	target := pos - 1
	if direction == DirectionDown {
		target = pos + 1
	}
	if target < 0 {
		return nil, invalid("direction", "Stage is already first")
	}
	if target >= len(ordered) {
		return nil, invalid("direction", "Stage is already last")
	}
	ordered[pos], ordered[target] = ordered[target], ordered[pos]
	now := s.now()
	for i := range ordered {
		if ordered[i].Order != i+1 {
			ordered[i].Order = i + 1
			ordered[i].UpdatedAt = now
		}
		idx := s.stages.index(strconv.Itoa(ordered[i].ID))
		s.stages.set(idx, ordered[i])
	}
	return ordered, nil
}
