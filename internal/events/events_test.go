package events

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypolab/internal/domain"
)

func TestEncodeProducesTypeAndPayload(t *testing.T) {
	ev := HypothesisCreated{domain.Hypothesis{ID: "HYP-001", Title: "T", Stage: "ideation"}}
	data, err := Encode(ev)
	require.NoError(t, err)

	var frame map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.JSONEq(t, `"hypothesisCreated"`, string(frame["type"]))
	var payload map[string]any
	require.NoError(t, json.Unmarshal(frame["payload"], &payload))
	assert.Equal(t, "T", payload["title"])
	assert.Equal(t, "HYP-001", payload["id"])
	assert.NotEmpty(t, frame["id"])
}

func TestDecodeReturnsTypedVariant(t *testing.T) {
	moved := HypothesisMoved{Hypothesis: domain.Hypothesis{ID: "HYP-002", Stage: "scoping"}, FromStage: "ideation"}
	data, err := Encode(moved)
	require.NoError(t, err)

	env, ev, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, KindHypothesisMoved, env.Type)
	got, ok := ev.(HypothesisMoved)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, "ideation", got.FromStage)
	assert.Equal(t, "scoping", got.Stage)
}

func TestDecodeDeletePayload(t *testing.T) {
	_, ev, err := Decode([]byte(`{"type":"experimentDeleted","payload":{"id":"EXP-009"}}`))
	require.NoError(t, err)
	assert.Equal(t, ExperimentDeleted{ID: "EXP-009"}, ev)
}

func TestDecodeUnknownKind(t *testing.T) {
	env, ev, err := Decode([]byte(`{"type":"somethingElse","payload":{}}`))
	require.ErrorIs(t, err, ErrUnknownKind)
	assert.Nil(t, ev)
	assert.Equal(t, Kind("somethingElse"), env.Type)

	_, _, err = Decode([]byte(`not json`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownKind)
}

func TestWrapFailsOnUnencodablePayload(t *testing.T) {
	_, err := Wrap(HypothesisUpdated{domain.Hypothesis{ID: "HYP-1", EstimatedValue: math.NaN()}})
	assert.Error(t, err)
}

func TestWrapAssignsDistinctIDs(t *testing.T) {
	a, err := Wrap(UserDeleted{ID: "u"})
	require.NoError(t, err)
	b, err := Wrap(UserDeleted{ID: "u"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestEveryKindDecodes(t *testing.T) {
	for _, k := range Kinds() {
		ev, err := Envelope{Type: k, Payload: json.RawMessage(`{}`)}.Event()
		require.NoError(t, err, k)
		assert.Equal(t, k, ev.Kind())
	}
}

func TestDerivedTable(t *testing.T) {
	kinds := func(ev Event) []Kind {
		out := []Kind{}
		for _, d := range Derived(ev) {
			out = append(out, d.Kind())
		}
		return out
	}
	h := domain.Hypothesis{ID: "HYP-1", Title: "Churn", Stage: "scaling", ApprovalStatus: "approved"}

	assert.Equal(t, []Kind{KindDashboardUpdated, KindCreateNotification}, kinds(HypothesisCreated{h}))
	assert.Equal(t, []Kind{KindDashboardUpdated, KindKanbanUpdated}, kinds(HypothesisMoved{Hypothesis: h}))
	assert.Equal(t, []Kind{KindDashboardUpdated}, kinds(HypothesisUpdated{h}))
	assert.Equal(t, []Kind{KindDashboardUpdated, KindKanbanUpdated}, kinds(HypothesisDeleted{ID: "HYP-1"}))
	assert.Equal(t, []Kind{KindDashboardUpdated}, kinds(ExperimentCreated{}))
	assert.Equal(t, []Kind{KindDashboardUpdated, KindCreateNotification}, kinds(HypothesisApproved{h}))
	assert.Empty(t, kinds(UserCreated{}))

	derived := Derived(HypothesisCreated{h})
	assert.Equal(t, DashboardUpdated{Source: KindHypothesisCreated}, derived[0])
	note := derived[1].(CreateNotification)
	assert.Equal(t, "Churn", note.Message)
	assert.Equal(t, "HYP-1", note.EntityID)

	h.ApprovalStatus = "rejected"
	rejected := Derived(HypothesisApproved{h})[1].(CreateNotification)
	assert.Equal(t, "Hypothesis rejected", rejected.Title)
}

func TestForwardableAndLocalOnly(t *testing.T) {
	assert.True(t, Forwardable(KindHypothesisCreated))
	assert.True(t, Forwardable(KindHypothesisMoved))
	assert.False(t, Forwardable(KindHypothesisDeleted))
	assert.False(t, Forwardable(KindDashboardUpdated))
	assert.True(t, LocalOnly(KindKanbanUpdated))
	assert.False(t, LocalOnly(KindStageUpdated))
	for _, k := range Kinds() {
		assert.True(t, Known(k))
	}
	assert.False(t, Known("nope"))
}
