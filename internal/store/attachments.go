package store

import (
	"strings"

	"hypolab/internal/domain"
)

func (s *Store) appendTimeline(t domain.TimelineEntry) domain.TimelineEntry {
	now := s.now()
	t.ID = s.newID()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.timeline.insert(t)
	return t
}

func (s *Store) insertComment(hypothesisID, author, content string) domain.Comment {
	if author == "" {
		author = "anonymous"
	}
	now := s.now()
	c := domain.Comment{
		ID:           s.newID(),
		HypothesisID: hypothesisID,
		Author:       author,
		Content:      content,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.comments.insert(c)
	s.appendTimeline(domain.TimelineEntry{
		HypothesisID: hypothesisID,
		Action:       "commented",
		Description:  "Comment added",
		Actor:        author,
	})
	return c
}

func (s *Store) AddComment(hypothesisID, author, content string) (domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Comment{}, invalid("content", "Comment content is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hypotheses.index(hypothesisID) < 0 {
		return domain.Comment{}, notFound("Hypothesis", hypothesisID)
	}
	return s.insertComment(hypothesisID, author, content), nil
}

func (s *Store) ListComments(hypothesisID string) []domain.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.comments.find(func(c domain.Comment) bool { return c.HypothesisID == hypothesisID })
}

// CreatePresentation records a presentation request. Rendering happens
// elsewhere, so the record starts and stays in the generating state.
func (s *Store) CreatePresentation(hypothesisID, title, template, actor string) (domain.Presentation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hypotheses.get(hypothesisID)
	if !ok {
		return domain.Presentation{}, notFound("Hypothesis", hypothesisID)
	}
	if strings.TrimSpace(title) == "" {
		title = h.Title + " presentation"
	}
	if template == "" {
		template = "executive"
	}
	now := s.now()
	p := domain.Presentation{
		ID:           s.newID(),
		HypothesisID: hypothesisID,
		Title:        title,
		Template:     template,
		Status:       "generating",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.presentations.insert(p)
	s.appendTimeline(domain.TimelineEntry{
		HypothesisID: hypothesisID,
		Action:       "presentation_requested",
		Description:  "Presentation requested: " + title,
		Actor:        actor,
	})
	return p, nil
}

func (s *Store) ListPresentations(hypothesisID string) ([]domain.Presentation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hypotheses.index(hypothesisID) < 0 {
		return nil, notFound("Hypothesis", hypothesisID)
	}
	return s.presentations.find(func(p domain.Presentation) bool { return p.HypothesisID == hypothesisID }), nil
}

func (s *Store) addFile(f domain.File) domain.File {
	now := s.now()
	f.ID = s.newID()
	f.CreatedAt = now
	f.UpdatedAt = now
	s.files.insert(f)
	return f
}

func (s *Store) addMetric(m domain.Metric) domain.Metric {
	now := s.now()
	m.ID = s.newID()
	m.CreatedAt = now
	m.UpdatedAt = now
	s.metrics.insert(m)
	return m
}

func (s *Store) addRisk(r domain.Risk) domain.Risk {
	now := s.now()
	r.ID = s.newID()
	r.CreatedAt = now
	r.UpdatedAt = now
	s.risks.insert(r)
	return r
}
