// Package store holds the in-memory domain collections and every mutation
// applied to them. A single Store is built per process and handed to the
// engine; nothing here is durable.
package store

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"hypolab/internal/domain"
)

// Store owns all entity collections. Writers take the exclusive lock for the
// whole mutation so readers never observe a partially applied change.
type Store struct {
	mu sync.RWMutex

	hypotheses    *collection[domain.Hypothesis]
	experiments   *collection[domain.Experiment]
	stages        *collection[domain.Stage]
	users         *collection[domain.User]
	notifications *collection[domain.Notification]
	comments      *collection[domain.Comment]
	presentations *collection[domain.Presentation]
	files         *collection[domain.File]
	metrics       *collection[domain.Metric]
	risks         *collection[domain.Risk]
	timeline      *collection[domain.TimelineEntry]
	settings      domain.Settings

	hypothesisSeq int
	experimentSeq int
	stageSeq      int

	nowFn func() time.Time
	newID func() string
}

type Option func(*Store)

// WithClock overrides the time source used for createdAt/updatedAt stamps.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.nowFn = fn
		}
	}
}

// WithIDGenerator overrides the generator used for uuid-keyed records.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New returns an empty store. Call Seed to load the default stages and demo data.
func New(opts ...Option) *Store {
	s := &Store{
		hypotheses:    newCollection(func(h domain.Hypothesis) string { return h.ID }, cloneHypothesis),
		experiments:   newCollection(func(e domain.Experiment) string { return e.ID }, cloneExperiment),
		stages:        newCollection(func(st domain.Stage) string { return strconv.Itoa(st.ID) }, nil),
		users:         newCollection(func(u domain.User) string { return u.ID }, cloneUser),
		notifications: newCollection(func(n domain.Notification) string { return n.ID }, nil),
		comments:      newCollection(func(c domain.Comment) string { return c.ID }, nil),
		presentations: newCollection(func(p domain.Presentation) string { return p.ID }, nil),
		files:         newCollection(func(f domain.File) string { return f.ID }, nil),
		metrics:       newCollection(func(m domain.Metric) string { return m.ID }, nil),
		risks:         newCollection(func(r domain.Risk) string { return r.ID }, nil),
		timeline:      newCollection(func(t domain.TimelineEntry) string { return t.ID }, nil),
		settings:      defaultSettings(),
		nowFn:         func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) now() time.Time {
	return s.nowFn()
}

func (s *Store) nextHypothesisID() string {
	s.hypothesisSeq++
	return fmt.Sprintf("HYP-%03d", s.hypothesisSeq)
}

func (s *Store) nextExperimentID() string {
	s.experimentSeq++
	return fmt.Sprintf("EXP-%03d", s.experimentSeq)
}

// Snapshot is a consistent copy of the collections the dashboards aggregate over.
type Snapshot struct {
	Hypotheses  []domain.Hypothesis
	Experiments []domain.Experiment
	Stages      []domain.Stage
}

// Snapshot copies hypotheses, experiments and stages under one read lock.
// Stages are sorted by order.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Hypotheses:  s.hypotheses.all(),
		Experiments: s.experiments.all(),
		Stages:      s.sortedStages(),
	}
}

func cloneHypothesis(h domain.Hypothesis) domain.Hypothesis {
	h.Tags = append([]string{}, h.Tags...)
	return h
}

func cloneExperiment(e domain.Experiment) domain.Experiment {
	if e.Metrics != nil {
		m := make(map[string]float64, len(e.Metrics))
		for k, v := range e.Metrics {
			m[k] = v
		}
		e.Metrics = m
	}
	e.StartDate = cloneTime(e.StartDate)
	e.EndDate = cloneTime(e.EndDate)
	return e
}

func cloneUser(u domain.User) domain.User {
	u.LastLogin = cloneTime(u.LastLogin)
	return u
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
