package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypolab/internal/db"
	"hypolab/internal/domain"
	"hypolab/internal/engine"
	"hypolab/internal/events"
	"hypolab/internal/migrate"
	"hypolab/internal/store"
)

type recordingPublisher struct {
	mu   sync.Mutex
	sent []events.Event
	err  error
}

func (p *recordingPublisher) Publish(ev events.Event) (events.Envelope, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return events.Envelope{}, 0, p.err
	}
	p.sent = append(p.sent, ev)
	env, err := events.Wrap(ev)
	return env, 1, err
}

func (p *recordingPublisher) kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Kind, 0, len(p.sent))
	for _, ev := range p.sent {
		out = append(out, ev.Kind())
	}
	return out
}

func (p *recordingPublisher) last() events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sent) == 0 {
		return nil
	}
	return p.sent[len(p.sent)-1]
}

type testEnv struct {
	Engine engine.Engine
	Pub    *recordingPublisher
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st := store.New(store.WithClock(func() time.Time { return clock }))
	require.NoError(t, st.SeedStages())
	pub := &recordingPublisher{}
	eng := engine.New(st, pub, nil)
	eng.Now = func() time.Time { return clock }
	return testEnv{Engine: eng, Pub: pub, Ctx: context.Background()}
}

func (env testEnv) hypothesis(t *testing.T, title string) domain.Hypothesis {
	t.Helper()
	h, err := env.Engine.CreateHypothesis(env.Ctx, store.HypothesisInput{Title: title, Description: "D", Actor: "tester"})
	require.NoError(t, err)
	return h
}

func TestCreateHypothesisPublishesOnce(t *testing.T) {
	env := newTestEnv(t)
	h := env.hypothesis(t, "T")

	assert.Equal(t, "ideation", h.Stage)
	assert.Equal(t, "medium", h.Priority)
	assert.Equal(t, h.CreatedAt, h.UpdatedAt)
	require.Equal(t, []events.Kind{events.KindHypothesisCreated}, env.Pub.kinds())
	created := env.Pub.last().(events.HypothesisCreated)
	assert.Equal(t, "T", created.Title)
}

func TestCreateHypothesisUsesSettingsPriority(t *testing.T) {
	env := newTestEnv(t)
	high := "high"
	_, err := env.Engine.UpdateSettings(env.Ctx, store.SettingsPatch{DefaultPriority: &high}, "admin")
	require.NoError(t, err)

	h := env.hypothesis(t, "T")
	assert.Equal(t, "high", h.Priority)
}

func TestFailedMutationPublishesNothing(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateHypothesis(env.Ctx, store.HypothesisInput{Title: "T"})
	var verr store.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Title and description are required", verr.Message)

	err = env.Engine.DeleteHypothesis(env.Ctx, "HYP-999", "tester")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, env.Pub.kinds())
}

func TestMoveToInactiveStageIsRejected(t *testing.T) {
	env := newTestEnv(t)
	h := env.hypothesis(t, "T")
	scoping, err := env.Engine.Store.StageByCode("scoping")
	require.NoError(t, err)
	off := false
	_, err = env.Engine.UpdateStage(env.Ctx, scoping.ID, store.StagePatch{IsActive: &off}, "admin")
	require.NoError(t, err)
	before := len(env.Pub.kinds())

	_, err = env.Engine.MoveHypothesis(env.Ctx, h.ID, "scoping", store.MoveOptions{Actor: "tester"})
	var stageErr store.InvalidStageError
	require.ErrorAs(t, err, &stageErr)
	assert.Contains(t, stageErr.Error(), "Scoping")
	assert.Len(t, env.Pub.kinds(), before)

	got, err := env.Engine.Store.GetHypothesis(h.ID)
	require.NoError(t, err)
	assert.Equal(t, "ideation", got.Stage)
}

func TestMoveCarriesFromStage(t *testing.T) {
	env := newTestEnv(t)
	h := env.hypothesis(t, "T")

	moved, err := env.Engine.MoveHypothesis(env.Ctx, h.ID, "evaluation", store.MoveOptions{Actor: "tester", Comment: "ready"})
	require.NoError(t, err)
	assert.Equal(t, "pending", moved.ApprovalStatus)

	ev := env.Pub.last().(events.HypothesisMoved)
	assert.Equal(t, "ideation", ev.FromStage)
	assert.Equal(t, "evaluation", ev.Stage)
	assert.Len(t, env.Engine.Store.ListComments(h.ID), 1)
}

func TestDecide(t *testing.T) {
	env := newTestEnv(t)
	h := env.hypothesis(t, "T")
	_, err := env.Engine.MoveHypothesis(env.Ctx, h.ID, "evaluation", store.MoveOptions{})
	require.NoError(t, err)
	require.Len(t, env.Engine.AwaitingApproval(), 1)

	_, err = env.Engine.Decide(env.Ctx, h.ID, "maybe", "ceo")
	var verr store.ValidationError
	require.ErrorAs(t, err, &verr)

	approved, err := env.Engine.Decide(env.Ctx, h.ID, engine.ActionApproved, "ceo")
	require.NoError(t, err)
	assert.Equal(t, "scaling", approved.Stage)
	assert.Equal(t, "approved", approved.ApprovalStatus)
	assert.Equal(t, "ceo", approved.ApprovedBy)
	assert.Equal(t, events.KindHypothesisApproved, env.Pub.last().Kind())
	assert.Empty(t, env.Engine.AwaitingApproval())

	other := env.hypothesis(t, "U")
	rejected, err := env.Engine.Decide(env.Ctx, other.ID, engine.ActionRejected, "ceo")
	require.NoError(t, err)
	assert.Equal(t, "archived", rejected.Stage)
	assert.Equal(t, "rejected", rejected.ApprovalStatus)
}

func TestEveryMutationPublishesItsKind(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.Ctx
	e := env.Engine
	h := env.hypothesis(t, "T")

	title := "T2"
	_, err := e.UpdateHypothesis(ctx, h.ID, store.HypothesisPatch{Title: &title})
	require.NoError(t, err)
	_, err = e.AddComment(ctx, h.ID, "sam", "looks good")
	require.NoError(t, err)
	_, err = e.CreatePresentation(ctx, h.ID, "Board deck", "", "sam")
	require.NoError(t, err)
	x, err := e.CreateExperiment(ctx, store.ExperimentInput{HypothesisID: h.ID, Name: "A/B"}, "sam")
	require.NoError(t, err)
	running := "running"
	_, err = e.UpdateExperiment(ctx, x.ID, store.ExperimentPatch{Status: &running}, "sam")
	require.NoError(t, err)
	require.NoError(t, e.DeleteExperiment(ctx, x.ID, "sam"))
	_, err = e.ReorderStage(ctx, 2, store.DirectionDown, "admin")
	require.NoError(t, err)
	u, err := e.CreateUser(ctx, store.UserInput{Email: "a@b.io", Name: "A"}, "admin")
	require.NoError(t, err)
	name := "B"
	_, err = e.UpdateUser(ctx, u.ID, store.UserPatch{Name: &name}, "admin")
	require.NoError(t, err)
	require.NoError(t, e.DeleteUser(ctx, u.ID, "admin"))
	n, err := e.CreateNotification(ctx, store.NotificationInput{Title: "t", Message: "m"}, "system")
	require.NoError(t, err)
	_, err = e.MarkRead(ctx, n.ID, "sam")
	require.NoError(t, err)
	_, err = e.ToggleStar(ctx, n.ID, "sam")
	require.NoError(t, err)
	_, err = e.Archive(ctx, n.ID, "sam")
	require.NoError(t, err)
	e.MarkAllRead(ctx, "sam")
	require.NoError(t, e.DeleteNotification(ctx, n.ID, "sam"))
	require.NoError(t, e.DeleteHypothesis(ctx, h.ID, "sam"))

	assert.Equal(t, []events.Kind{
		events.KindHypothesisCreated,
		events.KindHypothesisUpdated,
		events.KindCommentAdded,
		events.KindPresentationCreated,
		events.KindExperimentCreated,
		events.KindExperimentUpdated,
		events.KindExperimentDeleted,
		events.KindStagesReordered,
		events.KindUserCreated,
		events.KindUserUpdated,
		events.KindUserDeleted,
		events.KindNotificationCreated,
		events.KindNotificationUpdated,
		events.KindNotificationUpdated,
		events.KindNotificationUpdated,
		events.KindNotificationsReadAll,
		events.KindNotificationDeleted,
		events.KindHypothesisDeleted,
	}, env.Pub.kinds())
}

func TestMarkReadIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	n, err := env.Engine.CreateNotification(env.Ctx, store.NotificationInput{Title: "t", Message: "m"}, "")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		got, err := env.Engine.MarkRead(env.Ctx, n.ID, "")
		require.NoError(t, err)
		assert.True(t, got.IsRead)
	}
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	env := newTestEnv(t)
	env.Pub.err = errors.New("encode failed")
	h := env.hypothesis(t, "T")
	_, err := env.Engine.Store.GetHypothesis(h.ID)
	assert.NoError(t, err)
}

func TestConcurrentMutationsPublishOncePerSuccess(t *testing.T) {
	env := newTestEnv(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = env.Engine.CreateHypothesis(env.Ctx, store.HypothesisInput{Title: "T", Description: "D"})
		}()
	}
	wg.Wait()
	assert.Len(t, env.Pub.kinds(), 20)
	assert.Len(t, env.Engine.Store.ListHypotheses(store.HypothesisFilter{}), 20)
}

func TestStructLiteralEngineMutatesAndPublishes(t *testing.T) {
	st := store.New()
	require.NoError(t, st.SeedStages())
	pub := &recordingPublisher{}
	e := engine.Engine{Store: st, Hub: pub}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.CreateHypothesis(context.Background(), store.HypothesisInput{Title: "T", Description: "D"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, pub.kinds(), 10)
	assert.Len(t, st.ListHypotheses(store.HypothesisFilter{}), 10)
}

func TestJournalRecordsPublishedEnvelopes(t *testing.T) {
	env := newTestEnv(t)
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(env.Ctx, conn))
	e := env.Engine.WithJournal(conn)

	h, err := e.CreateHypothesis(env.Ctx, store.HypothesisInput{Title: "T", Description: "D", Actor: "tester"})
	require.NoError(t, err)
	require.NoError(t, e.DeleteHypothesis(env.Ctx, h.ID, "tester"))

	list, err := e.Events(env.Ctx, 10, 0, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, string(events.KindHypothesisDeleted), list[0].Type)
	assert.Equal(t, string(events.KindHypothesisCreated), list[1].Type)

	got, err := e.Event(env.Ctx, list[1].UID)
	require.NoError(t, err)
	assert.Contains(t, got.Payload, `"title":"T"`)

	_, err = env.Engine.Events(env.Ctx, 10, 0, "")
	assert.ErrorIs(t, err, engine.ErrJournalDisabled)
}

func TestAggregates(t *testing.T) {
	env := newTestEnv(t)
	e := env.Engine
	a, err := e.CreateHypothesis(env.Ctx, store.HypothesisInput{Title: "A", Description: "D", EstimatedValue: 100, Confidence: 50})
	require.NoError(t, err)
	_, err = e.CreateHypothesis(env.Ctx, store.HypothesisInput{Title: "B", Description: "D", Stage: "scoping", Priority: "high", EstimatedValue: 50, Confidence: 70})
	require.NoError(t, err)
	_, err = e.MoveHypothesis(env.Ctx, a.ID, "evaluation", store.MoveOptions{})
	require.NoError(t, err)
	completed, failed := "completed", "failed"
	for _, status := range []*string{&completed, &completed, &completed, &failed} {
		x, err := e.CreateExperiment(env.Ctx, store.ExperimentInput{HypothesisID: a.ID, Name: "x"}, "")
		require.NoError(t, err)
		_, err = e.UpdateExperiment(env.Ctx, x.ID, store.ExperimentPatch{Status: status}, "")
		require.NoError(t, err)
	}

	m := e.CEOMetrics()
	assert.Equal(t, 2, m.TotalHypotheses)
	assert.Equal(t, 2, m.ActiveHypotheses)
	assert.Equal(t, 1, m.AwaitingApproval)
	assert.Equal(t, 4, m.TotalExperiments)
	assert.Equal(t, 3, m.CompletedExperiments)
	assert.Equal(t, 75.0, m.SuccessRate)
	assert.Equal(t, 150.0, m.PipelineValue)
	assert.Equal(t, 60.0, m.AverageConfidence)
	assert.Equal(t, map[string]int{"evaluation": 1, "scoping": 1}, m.ByStage)

	pipeline := e.Pipeline()
	require.Len(t, pipeline, 7)
	assert.Equal(t, "ideation", pipeline[0].Stage)
	assert.Equal(t, 1, pipeline[1].Count)
	assert.Equal(t, 100.0, pipeline[3].EstimatedValue)

	off := false
	_, err = e.UpdateStage(env.Ctx, 1, store.StagePatch{IsActive: &off}, "admin")
	require.NoError(t, err)
	board := e.Kanban()
	require.Len(t, board, 6)
	assert.Equal(t, "scoping", board[0].Code)
	require.Len(t, board[0].Hypotheses, 1)
	assert.Equal(t, "B", board[0].Hypotheses[0].Title)
	assert.Empty(t, board[1].Hypotheses)
}
