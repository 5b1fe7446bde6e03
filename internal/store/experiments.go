package store

import (
	"strings"
	"time"

	"hypolab/internal/domain"
)

var experimentStatuses = []string{"planned", "running", "completed", "failed"}

type ExperimentInput struct {
	HypothesisID string
	Name         string
	Description  string
	Status       string
	Owner        string
	StartDate    *time.Time
	EndDate      *time.Time
	Metrics      map[string]float64
}

type ExperimentPatch struct {
	Name        *string
	Description *string
	Status      *string
	Owner       *string
	StartDate   *time.Time
	EndDate     *time.Time
	Metrics     map[string]float64
	Results     *string
}

type ExperimentFilter struct {
	HypothesisID string
	Status       string
	Search       string
}

func (f ExperimentFilter) Match(e domain.Experiment) bool {
	if f.HypothesisID != "" && e.HypothesisID != f.HypothesisID {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(e.Name), q) && !strings.Contains(strings.ToLower(e.Description), q) {
			return false
		}
	}
	return true
}

func (s *Store) CreateExperiment(in ExperimentInput) (domain.Experiment, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.HypothesisID == "" {
		return domain.Experiment{}, invalid("name", "Name and hypothesisId are required")
	}
	status := in.Status
	if status == "" {
		status = "planned"
	}
	if !oneOf(status, experimentStatuses) {
		return domain.Experiment{}, invalid("status", "Invalid status %q", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hypotheses.index(in.HypothesisID) < 0 {
		return domain.Experiment{}, notFound("Hypothesis", in.HypothesisID)
	}
	now := s.now()
	e := domain.Experiment{
		ID:           s.nextExperimentID(),
		HypothesisID: in.HypothesisID,
		Name:         name,
		Description:  in.Description,
		Status:       status,
		Owner:        in.Owner,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		Metrics:      in.Metrics,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.experiments.insert(e)
	return cloneExperiment(e), nil
}

func (s *Store) GetExperiment(id string) (domain.Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.experiments.get(id)
	if !ok {
		return domain.Experiment{}, notFound("Experiment", id)
	}
	return e, nil
}

func (s *Store) ListExperiments(f ExperimentFilter) []domain.Experiment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.experiments.find(f.Match)
}

func (s *Store) UpdateExperiment(id string, patch ExperimentPatch) (domain.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.experiments.index(id)
	if i < 0 {
		return domain.Experiment{}, notFound("Experiment", id)
	}
	e := cloneExperiment(s.experiments.items[i])
	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return domain.Experiment{}, invalid("name", "Name cannot be empty")
		}
		e.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		e.Description = *patch.Description
	}
	if patch.Status != nil {
		if !oneOf(*patch.Status, experimentStatuses) {
			return domain.Experiment{}, invalid("status", "Invalid status %q", *patch.Status)
		}
		e.Status = *patch.Status
	}
	if patch.Owner != nil {
		e.Owner = *patch.Owner
	}
	if patch.StartDate != nil {
		e.StartDate = cloneTime(patch.StartDate)
	}
	if patch.EndDate != nil {
		e.EndDate = cloneTime(patch.EndDate)
	}
	if patch.Metrics != nil {
		e.Metrics = patch.Metrics
	}
	if patch.Results != nil {
		e.Results = *patch.Results
	}
	e.UpdatedAt = s.now()
	s.experiments.set(i, e)
	return cloneExperiment(e), nil
}

func (s *Store) DeleteExperiment(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.experiments.remove(id) {
		return notFound("Experiment", id)
	}
	return nil
}
