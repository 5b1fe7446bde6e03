package bus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypolab/internal/events"
)

// flakyServer sends one hypothesisDeleted envelope per connection, then
// reads until the client goes away or drops the connection when hangup is set.
type flakyServer struct {
	connects atomic.Int32
	hangup   bool

	mu       sync.Mutex
	received []string
}

func (s *flakyServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	ws, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()
	n := s.connects.Add(1)
	data, _ := events.Encode(events.HypothesisDeleted{ID: "HYP-" + string(rune('0'+n))})
	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"mystery","payload":{}}`)); err != nil {
		return
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return
	}
	if s.hangup {
		return
	}
	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.received = append(s.received, string(msg))
		s.mu.Unlock()
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientReconnectsAfterFixedDelay(t *testing.T) {
	fs := &flakyServer{hangup: true}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	b := New()
	got := make(chan string, 16)
	b.On(events.KindHypothesisDeleted, func(ev events.Event) { got <- ev.(events.HypothesisDeleted).ID })

	c := NewClient(wsURL(srv), b, ClientSettings{ReconnectDelay: 50 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	for _, want := range []string{"HYP-1", "HYP-2", "HYP-3"} {
		select {
		case id := <-got:
			assert.Equal(t, want, id)
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, c.Connected())
}

func TestClientKeepsRetryingWhenServerIsDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	c := NewClient(url, New(), ClientSettings{ReconnectDelay: 10 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := c.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, c.Connected())
}

func TestClientForwardsForwardableEmits(t *testing.T) {
	fs := &flakyServer{}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	b := New()
	c := NewClient(wsURL(srv), b, ClientSettings{ReconnectDelay: time.Second})
	assert.ErrorIs(t, c.Forward(events.KanbanUpdated{}), ErrNotConnected)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)
	require.Eventually(t, c.Connected, 3*time.Second, 10*time.Millisecond)

	b.Emit(events.HypothesisUpdated{})
	b.Emit(events.ExperimentDeleted{ID: "EXP-001"})

	require.Eventually(t, func() bool {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		return len(fs.received) == 1
	}, 3*time.Second, 10*time.Millisecond)
	fs.mu.Lock()
	assert.Contains(t, fs.received[0], `"type":"hypothesisUpdated"`)
	fs.mu.Unlock()
}

func TestClientDefaults(t *testing.T) {
	c := NewClient("ws://unused", New(), ClientSettings{})
	assert.Equal(t, DefaultReconnectDelay, c.settings.ReconnectDelay)
	assert.Equal(t, 5*time.Second, DefaultReconnectDelay)
}
