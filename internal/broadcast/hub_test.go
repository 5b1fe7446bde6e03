package broadcast

import (
	"errors"
	"fmt"
	"math"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypolab/internal/domain"
	"hypolab/internal/events"
)

// recordingConn captures written frames. When block is set every write
// waits for it to close or for the write deadline to pass; when writeErr is
// set every write fails.
type recordingConn struct {
	mu       sync.Mutex
	frames   [][]byte
	received chan []byte
	writeErr error
	block    chan struct{}
	deadline time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

func newRecordingConn() *recordingConn {
	return &recordingConn{received: make(chan []byte, 128), closed: make(chan struct{})}
}

func (c *recordingConn) WriteMessage(_ int, data []byte) error {
	if c.block != nil {
		c.mu.Lock()
		wait := time.Until(c.deadline)
		c.mu.Unlock()
		select {
		case <-c.block:
		case <-c.closed:
			return errors.New("closed")
		case <-time.After(wait):
			return errors.New("i/o timeout")
		}
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	c.mu.Lock()
	c.frames = append(c.frames, data)
	c.mu.Unlock()
	c.received <- data
	return nil
}

func (c *recordingConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("closed")
}

func (c *recordingConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	return nil
}

func (c *recordingConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *recordingConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func next(t *testing.T, c *recordingConn) events.Envelope {
	t.Helper()
	select {
	case data := <-c.received:
		env, _, err := events.Decode(data)
		require.NoError(t, err)
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return events.Envelope{}
	}
}

func created(title string) events.Event {
	return events.HypothesisCreated{Hypothesis: domain.Hypothesis{ID: "HYP-001", Title: title}}
}

func TestPublishFansOutToOpenSessionsOnly(t *testing.T) {
	hub := NewHub(DefaultSettings())
	defer hub.Close()

	open := []*recordingConn{newRecordingConn(), newRecordingConn(), newRecordingConn()}
	for _, c := range open {
		_, err := hub.Register(c)
		require.NoError(t, err)
	}
	gone := newRecordingConn()
	s, err := hub.Register(gone)
	require.NoError(t, err)
	s.close()

	env, n, err := hub.Publish(created("T"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, events.KindHypothesisCreated, env.Type)
	assert.Equal(t, 3, hub.Sessions())

	for _, c := range open {
		got := next(t, c)
		assert.Equal(t, env.ID, got.ID)
		assert.Contains(t, string(got.Payload), `"title":"T"`)
	}
	assert.Empty(t, gone.frames)
}

func TestPublishPreservesOrderPerSession(t *testing.T) {
	hub := NewHub(DefaultSettings())
	defer hub.Close()
	c := newRecordingConn()
	_, err := hub.Register(c)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		_, _, err := hub.Publish(events.HypothesisDeleted{ID: string(rune('a' + i))})
		require.NoError(t, err)
	}
	for i := 0; i < 20; i++ {
		got := next(t, c)
		assert.JSONEq(t, `{"id":"`+string(rune('a'+i))+`"}`, string(got.Payload))
	}
}

func TestBurstBeyondBufferKeepsSessionOpen(t *testing.T) {
	hub := NewHub(Settings{SessionBuffer: 1, WriteTimeout: time.Second})
	defer hub.Close()
	c := newRecordingConn()
	_, err := hub.Register(c)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		_, n, err := hub.Publish(events.HypothesisDeleted{ID: fmt.Sprint(i)})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}
	for i := 0; i < 50; i++ {
		got := next(t, c)
		assert.JSONEq(t, fmt.Sprintf(`{"id":"%d"}`, i), string(got.Payload))
	}
	assert.Equal(t, 1, hub.Sessions())
	assert.False(t, c.isClosed())
}

func TestStalledWritePrunesOnlyThatSession(t *testing.T) {
	reg := prometheus.NewRegistry()
	hub := NewHub(Settings{SessionBuffer: 1, WriteTimeout: 100 * time.Millisecond}, WithMetrics(NewMetrics(reg)))
	defer hub.Close()

	slow := newRecordingConn()
	slow.block = make(chan struct{})
	_, err := hub.Register(slow)
	require.NoError(t, err)
	healthy := newRecordingConn()
	_, err = hub.Register(healthy)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, n, err := hub.Publish(created("T"))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}
	for i := 0; i < 3; i++ {
		next(t, healthy)
	}
	require.Eventually(t, func() bool { return hub.Sessions() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, slow.isClosed())
	assert.False(t, healthy.isClosed())
	assert.Equal(t, 1.0, gathered(t, reg, "hypolab_broadcast_sessions"))
	assert.Equal(t, 1.0, gathered(t, reg, "hypolab_broadcast_sessions_pruned_total"))

	_, n, err := hub.Publish(created("after"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	next(t, healthy)
}

func TestFailedWritePrunesSession(t *testing.T) {
	hub := NewHub(DefaultSettings())
	defer hub.Close()
	broken := newRecordingConn()
	broken.writeErr = errors.New("broken pipe")
	_, err := hub.Register(broken)
	require.NoError(t, err)
	healthy := newRecordingConn()
	_, err = hub.Register(healthy)
	require.NoError(t, err)

	_, n, err := hub.Publish(created("T"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Eventually(t, func() bool { return hub.Sessions() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, broken.isClosed())
	next(t, healthy)

	_, n, err = hub.Publish(created("again"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSerializationFailureSendsNothing(t *testing.T) {
	reg := prometheus.NewRegistry()
	hub := NewHub(DefaultSettings(), WithMetrics(NewMetrics(reg)))
	defer hub.Close()
	c := newRecordingConn()
	_, err := hub.Register(c)
	require.NoError(t, err)

	_, n, err := hub.Publish(events.HypothesisUpdated{Hypothesis: domain.Hypothesis{EstimatedValue: math.NaN()}})
	require.ErrorIs(t, err, ErrSerialization)
	assert.Zero(t, n)
	assert.Equal(t, 1, hub.Sessions())
	assert.Equal(t, 1.0, gathered(t, reg, "hypolab_broadcast_serialization_failures_total"))
	assert.Equal(t, 0.0, gathered(t, reg, "hypolab_broadcast_envelopes_published_total"))

	select {
	case <-c.received:
		t.Fatal("unexpected frame")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseDisconnectsEverySession(t *testing.T) {
	hub := NewHub(DefaultSettings())
	a, b := newRecordingConn(), newRecordingConn()
	_, err := hub.Register(a)
	require.NoError(t, err)
	_, err = hub.Register(b)
	require.NoError(t, err)

	hub.Close()
	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
	assert.Zero(t, hub.Sessions())

	_, _, err = hub.Publish(created("T"))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = hub.Register(newRecordingConn())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMetricsTrackSessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	hub := NewHub(DefaultSettings(), WithMetrics(NewMetrics(reg)))
	defer hub.Close()
	for i := 0; i < 2; i++ {
		_, err := hub.Register(newRecordingConn())
		require.NoError(t, err)
	}
	_, _, err := hub.Publish(created("T"))
	require.NoError(t, err)

	assert.Equal(t, 2.0, gathered(t, reg, "hypolab_broadcast_sessions"))
	assert.Equal(t, 1.0, gathered(t, reg, "hypolab_broadcast_envelopes_published_total"))
	assert.Equal(t, 2.0, gathered(t, reg, "hypolab_broadcast_deliveries_total"))
}

func TestWebsocketEndToEnd(t *testing.T) {
	hub := NewHub(DefaultSettings())
	defer hub.Close()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Sessions() == 1 }, 2*time.Second, 10*time.Millisecond)

	// inbound frames are accepted and ignored
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"hypothesisMoved","payload":{}}`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`garbage`)))

	_, n, err := hub.Publish(created("Live"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	_, ev, err := events.Decode(data)
	require.NoError(t, err)
	got, ok := ev.(events.HypothesisCreated)
	require.True(t, ok)
	assert.Equal(t, "Live", got.Title)

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return hub.Sessions() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocketBurstDeliversEveryFrameInOrder(t *testing.T) {
	hub := NewHub(DefaultSettings())
	defer hub.Close()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool { return hub.Sessions() == 1 }, 2*time.Second, 10*time.Millisecond)

	const burst = 200
	for i := 0; i < burst; i++ {
		_, n, err := hub.Publish(events.HypothesisDeleted{ID: fmt.Sprint(i)})
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < burst; i++ {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err, "frame %d", i)
		env, _, err := events.Decode(data)
		require.NoError(t, err)
		assert.JSONEq(t, fmt.Sprintf(`{"id":"%d"}`, i), string(env.Payload))
	}
	assert.Equal(t, 1, hub.Sessions())
}

func gathered(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		m := mf.GetMetric()[0]
		if g := m.GetGauge(); g != nil {
			return g.GetValue()
		}
		return m.GetCounter().GetValue()
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
