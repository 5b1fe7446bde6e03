package bus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypolab/internal/domain"
	"hypolab/internal/events"
)

type recordingForwarder struct {
	mu   sync.Mutex
	sent []events.Kind
	err  error
}

func (f *recordingForwarder) Forward(ev events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, ev.Kind())
	return nil
}

func hypothesis(title string) domain.Hypothesis {
	return domain.Hypothesis{ID: "HYP-001", Title: title, Stage: "ideation"}
}

func TestHandlersRunInRegistrationOrder(t *testing.T) {
	b := New()
	var calls []string
	b.On(events.KindUserCreated, func(events.Event) { calls = append(calls, "first") })
	b.On(events.KindUserCreated, func(events.Event) { calls = append(calls, "second") })
	b.On(events.KindUserDeleted, func(events.Event) { calls = append(calls, "other") })

	b.Emit(events.UserCreated{})
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestDuplicateRegistrationsAreRemovedIndependently(t *testing.T) {
	b := New()
	count := 0
	h := func(events.Event) { count++ }
	first := b.On(events.KindStageUpdated, h)
	second := b.On(events.KindStageUpdated, h)
	assert.NotEqual(t, first, second)

	b.Emit(events.StageUpdated{})
	assert.Equal(t, 2, count)

	b.Off(events.KindStageUpdated, first)
	b.Emit(events.StageUpdated{})
	assert.Equal(t, 3, count)

	b.Off(events.KindStageUpdated, first)
	b.Off(events.KindUserCreated, second)
	assert.Equal(t, 1, b.Handlers(events.KindStageUpdated))

	b.Off(events.KindStageUpdated, second)
	b.Emit(events.StageUpdated{})
	assert.Equal(t, 3, count)
	assert.Zero(t, b.Handlers(events.KindStageUpdated))
}

func TestPanickingHandlerDoesNotStopOthers(t *testing.T) {
	b := New()
	ran := false
	b.On(events.KindSettingsUpdated, func(events.Event) { panic("boom") })
	b.On(events.KindSettingsUpdated, func(events.Event) { ran = true })

	require.NotPanics(t, func() { b.Emit(events.SettingsUpdated{}) })
	assert.True(t, ran)
}

func TestEmitFansOutDerivedEvents(t *testing.T) {
	b := New()
	var seen []events.Kind
	record := func(ev events.Event) { seen = append(seen, ev.Kind()) }
	for _, k := range []events.Kind{events.KindHypothesisCreated, events.KindDashboardUpdated, events.KindKanbanUpdated, events.KindCreateNotification} {
		b.On(k, record)
	}

	b.Emit(events.HypothesisCreated{Hypothesis: hypothesis("T")})
	assert.Equal(t, []events.Kind{events.KindHypothesisCreated, events.KindDashboardUpdated, events.KindCreateNotification}, seen)

	seen = nil
	b.Emit(events.HypothesisDeleted{ID: "HYP-001"})
	assert.Equal(t, []events.Kind{events.KindDashboardUpdated, events.KindKanbanUpdated}, seen)
}

func TestEmitForwardsOnlyForwardableKinds(t *testing.T) {
	b := New()
	f := &recordingForwarder{}
	b.SetForwarder(f)

	b.Emit(events.HypothesisCreated{Hypothesis: hypothesis("T")})
	b.Emit(events.HypothesisMoved{Hypothesis: hypothesis("T"), FromStage: "scoping"})
	b.Emit(events.HypothesisDeleted{ID: "HYP-001"})
	b.Emit(events.ExperimentCreated{})
	b.Emit(events.KanbanUpdated{})

	assert.Equal(t, []events.Kind{events.KindHypothesisCreated, events.KindHypothesisMoved}, f.sent)
}

func TestEmitWithoutConnectionStillDispatches(t *testing.T) {
	b := New()
	b.SetForwarder(&recordingForwarder{err: ErrNotConnected})
	got := 0
	b.On(events.KindHypothesisUpdated, func(events.Event) { got++ })
	b.Emit(events.HypothesisUpdated{Hypothesis: hypothesis("T")})
	assert.Equal(t, 1, got)
}

func TestDeliverNeverForwards(t *testing.T) {
	b := New()
	f := &recordingForwarder{}
	b.SetForwarder(f)
	var seen []events.Kind
	b.On(events.KindHypothesisMoved, func(ev events.Event) { seen = append(seen, ev.Kind()) })
	b.On(events.KindKanbanUpdated, func(ev events.Event) { seen = append(seen, ev.Kind()) })

	b.Deliver(events.HypothesisMoved{Hypothesis: hypothesis("T")})
	assert.Equal(t, []events.Kind{events.KindHypothesisMoved, events.KindKanbanUpdated}, seen)
	assert.Empty(t, f.sent)
}

func TestHandlerMayUnsubscribeDuringDispatch(t *testing.T) {
	b := New()
	calls := 0
	var sub Subscription
	sub = b.On(events.KindCommentAdded, func(events.Event) {
		calls++
		b.Off(events.KindCommentAdded, sub)
	})
	b.On(events.KindCommentAdded, func(events.Event) { calls++ })

	b.Emit(events.CommentAdded{})
	b.Emit(events.CommentAdded{})
	assert.Equal(t, 3, calls)
}
