package store

import (
	"strings"

	"hypolab/internal/domain"
)

const (
	DefaultStage    = "ideation"
	DefaultPriority = "medium"

	StageScaling  = "scaling"
	StageArchived = "archived"
)

var (
	priorities         = []string{"low", "medium", "high", "critical"}
	hypothesisStatuses = []string{"active", "paused", "completed", "cancelled"}
)

type HypothesisInput struct {
	Title          string
	Description    string
	Stage          string
	Priority       string
	Status         string
	Owner          string
	Team           string
	Tags           []string
	ExpectedImpact string
	EstimatedValue float64
	Confidence     int
	Actor          string
}

// HypothesisPatch is shallow-merged onto an existing hypothesis; nil fields are left alone.
type HypothesisPatch struct {
	Title          *string
	Description    *string
	Stage          *string
	Priority       *string
	Status         *string
	Owner          *string
	Team           *string
	Tags           *[]string
	ExpectedImpact *string
	EstimatedValue *float64
	Confidence     *int
	Progress       *int
	Actor          string
}

type HypothesisFilter struct {
	Search   string
	Stage    string
	Priority string
	Status   string
	Owner    string
}

// Match applies the list filters: case-insensitive substring on title and
// description, exact match on everything else.
func (f HypothesisFilter) Match(h domain.Hypothesis) bool {
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(h.Title), q) && !strings.Contains(strings.ToLower(h.Description), q) {
			return false
		}
	}
	if f.Stage != "" && h.Stage != f.Stage {
		return false
	}
	if f.Priority != "" && h.Priority != f.Priority {
		return false
	}
	if f.Status != "" && h.Status != f.Status {
		return false
	}
	if f.Owner != "" && h.Owner != f.Owner {
		return false
	}
	return true
}

type MoveOptions struct {
	Actor   string
	Comment string
}

func (s *Store) CreateHypothesis(in HypothesisInput) (domain.Hypothesis, error) {
	title := strings.TrimSpace(in.Title)
	desc := strings.TrimSpace(in.Description)
	if title == "" || desc == "" {
		return domain.Hypothesis{}, invalid("title", "Title and description are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stageCode := in.Stage
	if stageCode == "" {
		stageCode = DefaultStage
	}
	stage, err := s.activeStage(stageCode)
	if err != nil {
		return domain.Hypothesis{}, err
	}
	priority := in.Priority
	if priority == "" {
		priority = s.settings.DefaultPriority
	}
	if priority == "" {
		priority = DefaultPriority
	}
	if !oneOf(priority, priorities) {
		return domain.Hypothesis{}, invalid("priority", "Invalid priority %q", priority)
	}
	status := in.Status
	if status == "" {
		status = "active"
	}
	if !oneOf(status, hypothesisStatuses) {
		return domain.Hypothesis{}, invalid("status", "Invalid status %q", status)
	}
	now := s.now()
	h := domain.Hypothesis{
		ID:             s.nextHypothesisID(),
		Title:          title,
		Description:    desc,
		Stage:          stage.Code,
		Priority:       priority,
		Status:         status,
		Owner:          in.Owner,
		Team:           in.Team,
		Tags:           append([]string{}, in.Tags...),
		ExpectedImpact: in.ExpectedImpact,
		EstimatedValue: in.EstimatedValue,
		Confidence:     in.Confidence,
		ApprovalStatus: approvalFor(stage),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.hypotheses.insert(h)
	s.appendTimeline(domain.TimelineEntry{
		HypothesisID: h.ID,
		Action:       "created",
		Description:  "Hypothesis created in " + stage.Name,
		Actor:        in.Actor,
		ToStage:      stage.Code,
	})
	return h, nil
}

func (s *Store) GetHypothesis(id string) (domain.Hypothesis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hypotheses.get(id)
	if !ok {
		return domain.Hypothesis{}, notFound("Hypothesis", id)
	}
	return h, nil
}

// HypothesisDetail joins a hypothesis with its experiments, comments, files,
// metrics, risks and timeline.
func (s *Store) HypothesisDetail(id string) (domain.HypothesisDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hypotheses.get(id)
	if !ok {
		return domain.HypothesisDetail{}, notFound("Hypothesis", id)
	}
	return domain.HypothesisDetail{
		Hypothesis:  h,
		Experiments: s.experiments.find(func(e domain.Experiment) bool { return e.HypothesisID == id }),
		Comments:    s.comments.find(func(c domain.Comment) bool { return c.HypothesisID == id }),
		Files:       s.files.find(func(f domain.File) bool { return f.HypothesisID == id }),
		Metrics:     s.metrics.find(func(m domain.Metric) bool { return m.HypothesisID == id }),
		Risks:       s.risks.find(func(r domain.Risk) bool { return r.HypothesisID == id }),
		Timeline:    s.timeline.find(func(t domain.TimelineEntry) bool { return t.HypothesisID == id }),
	}, nil
}

func (s *Store) ListHypotheses(f HypothesisFilter) []domain.Hypothesis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hypotheses.find(f.Match)
}

func (s *Store) UpdateHypothesis(id string, patch HypothesisPatch) (domain.Hypothesis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.hypotheses.index(id)
	if i < 0 {
		return domain.Hypothesis{}, notFound("Hypothesis", id)
	}
	h := cloneHypothesis(s.hypotheses.items[i])
	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return domain.Hypothesis{}, invalid("title", "Title cannot be empty")
		}
		h.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		if strings.TrimSpace(*patch.Description) == "" {
			return domain.Hypothesis{}, invalid("description", "Description cannot be empty")
		}
		h.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Priority != nil {
		if !oneOf(*patch.Priority, priorities) {
			return domain.Hypothesis{}, invalid("priority", "Invalid priority %q", *patch.Priority)
		}
		h.Priority = *patch.Priority
	}
	if patch.Status != nil {
		if !oneOf(*patch.Status, hypothesisStatuses) {
			return domain.Hypothesis{}, invalid("status", "Invalid status %q", *patch.Status)
		}
		h.Status = *patch.Status
	}
	if patch.Owner != nil {
		h.Owner = *patch.Owner
	}
	if patch.Team != nil {
		h.Team = *patch.Team
	}
	if patch.Tags != nil {
		h.Tags = append([]string{}, (*patch.Tags)...)
	}
	if patch.ExpectedImpact != nil {
		h.ExpectedImpact = *patch.ExpectedImpact
	}
	if patch.EstimatedValue != nil {
		h.EstimatedValue = *patch.EstimatedValue
	}
	if patch.Confidence != nil {
		h.Confidence = *patch.Confidence
	}
	if patch.Progress != nil {
		if *patch.Progress < 0 || *patch.Progress > 100 {
			return domain.Hypothesis{}, invalid("progress", "Progress must be between 0 and 100")
		}
		h.Progress = *patch.Progress
	}
	from := h.Stage
	var target domain.Stage
	if patch.Stage != nil && *patch.Stage != h.Stage {
		st, err := s.activeStage(*patch.Stage)
		if err != nil {
			return domain.Hypothesis{}, err
		}
		target = st
		h.Stage = st.Code
		h.ApprovalStatus = approvalFor(st)
	}
	h.UpdatedAt = s.now()
	s.hypotheses.set(i, h)
	if h.Stage != from {
		s.appendTimeline(domain.TimelineEntry{
			HypothesisID: h.ID,
			Action:       "stage_changed",
			Description:  "Moved to " + target.Name,
			Actor:        patch.Actor,
			FromStage:    from,
			ToStage:      h.Stage,
		})
	} else {
		s.appendTimeline(domain.TimelineEntry{
			HypothesisID: h.ID,
			Action:       "updated",
			Description:  "Hypothesis updated",
			Actor:        patch.Actor,
		})
	}
	return h, nil
}

// DeleteHypothesis removes the hypothesis only. Experiments, comments and
// other attached records are left in place.
func (s *Store) DeleteHypothesis(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hypotheses.remove(id) {
		return notFound("Hypothesis", id)
	}
	return nil
}

// MoveStage moves a hypothesis to newStage, which must exist and be active.
// On any error the hypothesis is left untouched. It returns the updated record
// and the stage it was moved from.
func (s *Store) MoveStage(id, newStage string, opts MoveOptions) (domain.Hypothesis, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveStage(id, newStage, opts)
}

func (s *Store) moveStage(id, newStage string, opts MoveOptions) (domain.Hypothesis, string, error) {
	i := s.hypotheses.index(id)
	if i < 0 {
		return domain.Hypothesis{}, "", notFound("Hypothesis", id)
	}
	st, err := s.activeStage(newStage)
	if err != nil {
		return domain.Hypothesis{}, "", err
	}
	h := cloneHypothesis(s.hypotheses.items[i])
	from := h.Stage
	h.Stage = st.Code
	if from != st.Code {
		h.ApprovalStatus = approvalFor(st)
	}
	h.UpdatedAt = s.now()
	s.hypotheses.set(i, h)
	s.appendTimeline(domain.TimelineEntry{
		HypothesisID: h.ID,
		Action:       "stage_changed",
		Description:  "Moved to " + st.Name,
		Actor:        opts.Actor,
		FromStage:    from,
		ToStage:      st.Code,
	})
	if c := strings.TrimSpace(opts.Comment); c != "" {
		s.insertComment(h.ID, opts.Actor, c)
	}
	return h, from, nil
}

// Decide records a CEO decision: approval moves the hypothesis to scaling,
// rejection to archived.
func (s *Store) Decide(id string, approved bool, actor string) (domain.Hypothesis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, status, action := StageScaling, "approved", "approved"
	if !approved {
		target, status, action = StageArchived, "rejected", "rejected"
	}
	h, _, err := s.moveStage(id, target, MoveOptions{Actor: actor})
	if err != nil {
		return domain.Hypothesis{}, err
	}
	h.ApprovalStatus = status
	h.ApprovedBy = actor
	s.hypotheses.set(s.hypotheses.index(id), h)
	s.appendTimeline(domain.TimelineEntry{
		HypothesisID: h.ID,
		Action:       action,
		Description:  "Hypothesis " + status,
		Actor:        actor,
	})
	return h, nil
}

func approvalFor(st domain.Stage) string {
	if st.RequiresApproval {
		return "pending"
	}
	return "none"
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
