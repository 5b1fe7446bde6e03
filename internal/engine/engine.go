// Package engine is the service layer behind the REST gateway. Every
// mutation goes through the store under one writer lock and publishes
// exactly one event when it succeeds.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"hypolab/internal/config"
	"hypolab/internal/domain"
	"hypolab/internal/events"
	"hypolab/internal/logging"
	"hypolab/internal/repo"
	"hypolab/internal/store"
)

var ErrJournalDisabled = errors.New("journal disabled")

// Publisher fans an event out to connected sessions.
type Publisher interface {
	Publish(ev events.Event) (events.Envelope, int, error)
}

// Engine applies mutations to the store and publishes one event per success.
// New is the usual constructor; a struct literal works too and shares a
// package-wide writer lock with every other literal Engine.
type Engine struct {
	Store   *store.Store
	Hub     Publisher
	Journal *events.Journal
	Repo    *repo.Repo
	Config  *config.Config
	Now     func() time.Time

	log     *logrus.Entry
	writeMu *sync.Mutex
}

func New(st *store.Store, hub Publisher, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		Store:   st,
		Hub:     hub,
		Config:  cfg,
		Now:     time.Now,
		log:     logging.NewLogger("engine"),
		writeMu: &sync.Mutex{},
	}
}

// literalWriteMu serializes Engines built without New.
var literalWriteMu sync.Mutex

func (e Engine) writer() *sync.Mutex {
	if e.writeMu != nil {
		return e.writeMu
	}
	return &literalWriteMu
}

func (e Engine) logger() *logrus.Entry {
	if e.log != nil {
		return e.log
	}
	return logging.NewLogger("engine")
}

// WithJournal records every published envelope in db.
func (e Engine) WithJournal(db *sql.DB) Engine {
	e.Journal = &events.Journal{DB: db, Now: e.now}
	e.Repo = &repo.Repo{DB: db}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// mutate runs fn under the writer lock and publishes its event on success.
// Publish and journal failures are logged; the mutation has already happened.
func mutate[T any](ctx context.Context, e Engine, actor string, fn func() (T, events.Event, error)) (T, error) {
	mu := e.writer()
	mu.Lock()
	defer mu.Unlock()
	v, ev, err := fn()
	if err != nil {
		return v, err
	}
	e.publish(ctx, ev, actor)
	return v, nil
}

func (e Engine) publish(ctx context.Context, ev events.Event, actor string) {
	var (
		env events.Envelope
		n   int
		err error
	)
	if e.Hub != nil {
		env, n, err = e.Hub.Publish(ev)
	} else {
		env, err = events.Wrap(ev)
	}
	entry := e.logger().WithField("type", ev.Kind())
	if err != nil {
		entry.WithError(err).Warn("publish failed")
	} else {
		entry.WithField("sessions", n).Debug("published")
	}
	if e.Journal == nil || env.ID == "" {
		return
	}
	if _, err := e.Journal.Append(ctx, env, actor); err != nil {
		entry.WithError(err).Warn("journal append failed")
	}
}

// Hypotheses

func (e Engine) CreateHypothesis(ctx context.Context, in store.HypothesisInput) (domain.Hypothesis, error) {
	if in.Priority == "" {
		in.Priority = e.Store.Settings().DefaultPriority
	}
	return mutate(ctx, e, in.Actor, func() (domain.Hypothesis, events.Event, error) {
		h, err := e.Store.CreateHypothesis(in)
		return h, events.HypothesisCreated{Hypothesis: h}, err
	})
}

func (e Engine) UpdateHypothesis(ctx context.Context, id string, patch store.HypothesisPatch) (domain.Hypothesis, error) {
	return mutate(ctx, e, patch.Actor, func() (domain.Hypothesis, events.Event, error) {
		h, err := e.Store.UpdateHypothesis(id, patch)
		return h, events.HypothesisUpdated{Hypothesis: h}, err
	})
}

func (e Engine) DeleteHypothesis(ctx context.Context, id, actor string) error {
	_, err := mutate(ctx, e, actor, func() (struct{}, events.Event, error) {
		return struct{}{}, events.HypothesisDeleted{ID: id}, e.Store.DeleteHypothesis(id)
	})
	return err
}

// MoveHypothesis moves a hypothesis to newStage, which must exist and be active.
func (e Engine) MoveHypothesis(ctx context.Context, id, newStage string, opts store.MoveOptions) (domain.Hypothesis, error) {
	return mutate(ctx, e, opts.Actor, func() (domain.Hypothesis, events.Event, error) {
		h, from, err := e.Store.MoveStage(id, newStage, opts)
		return h, events.HypothesisMoved{Hypothesis: h, FromStage: from}, err
	})
}

func (e Engine) AddComment(ctx context.Context, hypothesisID, author, content string) (domain.Comment, error) {
	return mutate(ctx, e, author, func() (domain.Comment, events.Event, error) {
		c, err := e.Store.AddComment(hypothesisID, author, content)
		return c, events.CommentAdded{Comment: c}, err
	})
}

func (e Engine) CreatePresentation(ctx context.Context, hypothesisID, title, template, actor string) (domain.Presentation, error) {
	return mutate(ctx, e, actor, func() (domain.Presentation, events.Event, error) {
		p, err := e.Store.CreatePresentation(hypothesisID, title, template, actor)
		return p, events.PresentationCreated{Presentation: p}, err
	})
}

const (
	ActionApproved = "approved"
	ActionRejected = "rejected"
)

// Decide approves or rejects a hypothesis. Approval moves it to scaling,
// rejection archives it.
func (e Engine) Decide(ctx context.Context, hypothesisID, action, actor string) (domain.Hypothesis, error) {
	var approved bool
	switch action {
	case ActionApproved:
		approved = true
	case ActionRejected:
	default:
		return domain.Hypothesis{}, store.ValidationError{Field: "action", Message: "Action must be approved or rejected"}
	}
	return mutate(ctx, e, actor, func() (domain.Hypothesis, events.Event, error) {
		h, err := e.Store.Decide(hypothesisID, approved, actor)
		return h, events.HypothesisApproved{Hypothesis: h}, err
	})
}

// Experiments

func (e Engine) CreateExperiment(ctx context.Context, in store.ExperimentInput, actor string) (domain.Experiment, error) {
	return mutate(ctx, e, actor, func() (domain.Experiment, events.Event, error) {
		x, err := e.Store.CreateExperiment(in)
		return x, events.ExperimentCreated{Experiment: x}, err
	})
}

func (e Engine) UpdateExperiment(ctx context.Context, id string, patch store.ExperimentPatch, actor string) (domain.Experiment, error) {
	return mutate(ctx, e, actor, func() (domain.Experiment, events.Event, error) {
		x, err := e.Store.UpdateExperiment(id, patch)
		return x, events.ExperimentUpdated{Experiment: x}, err
	})
}

func (e Engine) DeleteExperiment(ctx context.Context, id, actor string) error {
	_, err := mutate(ctx, e, actor, func() (struct{}, events.Event, error) {
		return struct{}{}, events.ExperimentDeleted{ID: id}, e.Store.DeleteExperiment(id)
	})
	return err
}

// Stages

func (e Engine) UpdateStage(ctx context.Context, id int, patch store.StagePatch, actor string) (domain.Stage, error) {
	return mutate(ctx, e, actor, func() (domain.Stage, events.Event, error) {
		st, err := e.Store.UpdateStage(id, patch)
		return st, events.StageUpdated{Stage: st}, err
	})
}

// ReorderStage swaps a stage with its neighbour and returns every stage in
// the new order.
func (e Engine) ReorderStage(ctx context.Context, id int, direction, actor string) ([]domain.Stage, error) {
	return mutate(ctx, e, actor, func() ([]domain.Stage, events.Event, error) {
		stages, err := e.Store.ReorderStage(id, direction)
		return stages, events.StagesReordered{Stages: stages}, err
	})
}

// Users

func (e Engine) CreateUser(ctx context.Context, in store.UserInput, actor string) (domain.User, error) {
	return mutate(ctx, e, actor, func() (domain.User, events.Event, error) {
		u, err := e.Store.CreateUser(in)
		return u, events.UserCreated{User: u}, err
	})
}

func (e Engine) UpdateUser(ctx context.Context, id string, patch store.UserPatch, actor string) (domain.User, error) {
	return mutate(ctx, e, actor, func() (domain.User, events.Event, error) {
		u, err := e.Store.UpdateUser(id, patch)
		return u, events.UserUpdated{User: u}, err
	})
}

func (e Engine) DeleteUser(ctx context.Context, id, actor string) error {
	_, err := mutate(ctx, e, actor, func() (struct{}, events.Event, error) {
		return struct{}{}, events.UserDeleted{ID: id}, e.Store.DeleteUser(id)
	})
	return err
}

// Notifications

func (e Engine) CreateNotification(ctx context.Context, in store.NotificationInput, actor string) (domain.Notification, error) {
	return mutate(ctx, e, actor, func() (domain.Notification, events.Event, error) {
		n, err := e.Store.CreateNotification(in)
		return n, events.NotificationCreated{Notification: n}, err
	})
}

func (e Engine) updateNotification(ctx context.Context, actor string, fn func() (domain.Notification, error)) (domain.Notification, error) {
	return mutate(ctx, e, actor, func() (domain.Notification, events.Event, error) {
		n, err := fn()
		return n, events.NotificationUpdated{Notification: n}, err
	})
}

// MarkRead is idempotent; a second call still succeeds and publishes.
func (e Engine) MarkRead(ctx context.Context, id, actor string) (domain.Notification, error) {
	return e.updateNotification(ctx, actor, func() (domain.Notification, error) { return e.Store.MarkRead(id) })
}

func (e Engine) ToggleStar(ctx context.Context, id, actor string) (domain.Notification, error) {
	return e.updateNotification(ctx, actor, func() (domain.Notification, error) { return e.Store.ToggleStar(id) })
}

func (e Engine) Archive(ctx context.Context, id, actor string) (domain.Notification, error) {
	return e.updateNotification(ctx, actor, func() (domain.Notification, error) { return e.Store.Archive(id) })
}

func (e Engine) MarkAllRead(ctx context.Context, actor string) int {
	n, _ := mutate(ctx, e, actor, func() (int, events.Event, error) {
		n := e.Store.MarkAllRead()
		return n, events.NotificationsReadAll{Count: n}, nil
	})
	return n
}

func (e Engine) DeleteNotification(ctx context.Context, id, actor string) error {
	_, err := mutate(ctx, e, actor, func() (struct{}, events.Event, error) {
		return struct{}{}, events.NotificationDeleted{ID: id}, e.Store.DeleteNotification(id)
	})
	return err
}

// Settings

func (e Engine) UpdateSettings(ctx context.Context, patch store.SettingsPatch, actor string) (domain.Settings, error) {
	return mutate(ctx, e, actor, func() (domain.Settings, events.Event, error) {
		s, err := e.Store.UpdateSettings(patch)
		return s, events.SettingsUpdated{Settings: s}, err
	})
}

// Journal

// Events lists journaled envelopes newest first, starting below cursor when
// it is positive.
func (e Engine) Events(ctx context.Context, limit int, cursor int64, typ string) ([]domain.Event, error) {
	if e.Repo == nil {
		return nil, ErrJournalDisabled
	}
	return e.Repo.LatestEvents(ctx, limit, cursor, typ)
}

func (e Engine) Event(ctx context.Context, uid string) (domain.Event, error) {
	if e.Repo == nil {
		return domain.Event{}, ErrJournalDisabled
	}
	return e.Repo.GetEvent(ctx, uid)
}
