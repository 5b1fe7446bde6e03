// Package broadcast fans change envelopes out to every connected websocket
// session. Delivery is best effort: there is no history, no replay and no
// retry. A session is dropped only when a write to it fails or times out.
package broadcast

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"hypolab/internal/events"
	"hypolab/internal/logging"
)

var (
	// ErrSerialization marks an envelope that could not be encoded. Nothing
	// is sent for that publish.
	ErrSerialization = errors.New("broadcast: serialization failed")
	ErrClosed        = errors.New("broadcast: hub closed")
)

// Conn is the part of *websocket.Conn a session needs.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Settings struct {
	// SessionBuffer is the initial capacity of a session's queue. The queue
	// grows during bursts; it never rejects an envelope.
	SessionBuffer int
	// WriteTimeout bounds a single frame write. A session that cannot take a
	// frame within it is dropped.
	WriteTimeout time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		SessionBuffer: 64,
		WriteTimeout:  10 * time.Second,
	}
}

type Hub struct {
	settings Settings
	metrics  *Metrics
	log      *logrus.Entry

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

type Option func(*Hub)

func WithMetrics(m *Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

func WithLogger(l *logrus.Entry) Option {
	return func(h *Hub) { h.log = l }
}

func NewHub(settings Settings, opts ...Option) *Hub {
	def := DefaultSettings()
	if settings.SessionBuffer <= 0 {
		settings.SessionBuffer = def.SessionBuffer
	}
	if settings.WriteTimeout <= 0 {
		settings.WriteTimeout = def.WriteTimeout
	}
	h := &Hub{
		settings: settings,
		sessions: make(map[string]*Session),
		log:      logging.NewLogger("broadcast"),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = NewMetrics(nil)
	}
	return h
}

// Session is one open transport connection.
type Session struct {
	ID string

	hub       *Hub
	conn      Conn
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	pending [][]byte
	closed  bool
}

// Register adds conn to the fan-out set and starts its writer.
func (h *Hub) Register(conn Conn) (*Session, error) {
	s := &Session{
		ID:      uuid.NewString(),
		hub:     h,
		conn:    conn,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		pending: make([][]byte, 0, h.settings.SessionBuffer),
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return nil, ErrClosed
	}
	h.sessions[s.ID] = s
	n := len(h.sessions)
	h.metrics.Sessions.Set(float64(n))
	h.mu.Unlock()

	h.log.WithFields(logrus.Fields{"session": s.ID, "sessions": n}).Info("session opened")
	go s.writeLoop(h.settings.WriteTimeout)
	return s, nil
}

// Publish wraps ev and queues it to every open session. It returns the
// envelope and the number of sessions it was queued to. Closed sessions are
// skipped; every open session gets the envelope regardless of how many are
// still waiting to be written.
func (h *Hub) Publish(ev events.Event) (events.Envelope, int, error) {
	env, err := events.Wrap(ev)
	if err != nil {
		h.metrics.SerializationFailures.Inc()
		h.log.WithError(err).WithField("type", kindOf(ev)).Warn("dropping unencodable envelope")
		return events.Envelope{}, 0, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	n, err := h.Send(env)
	return env, n, err
}

// Send queues an already wrapped envelope.
func (h *Hub) Send(env events.Envelope) (int, error) {
	data, err := encodeEnvelope(env)
	if err != nil {
		h.metrics.SerializationFailures.Inc()
		h.log.WithError(err).WithField("type", env.Type).Warn("dropping unencodable envelope")
		return 0, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0, ErrClosed
	}
	queued := 0
	for id, s := range h.sessions {
		if s.enqueue(data) {
			queued++
			continue
		}
		// closed locally before its writer noticed
		delete(h.sessions, id)
	}
	h.metrics.Sessions.Set(float64(len(h.sessions)))
	h.mu.Unlock()

	h.metrics.Published.Inc()
	h.metrics.Deliveries.Add(float64(queued))
	return queued, nil
}

// Sessions returns the number of open sessions.
func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close disconnects every session. Later publishes fail with ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = make(map[string]*Session)
	h.metrics.Sessions.Set(0)
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

// drop removes s after a transport failure. Safe to call more than once.
func (h *Hub) drop(s *Session, reason error) {
	h.mu.Lock()
	_, ok := h.sessions[s.ID]
	if ok {
		delete(h.sessions, s.ID)
	}
	n := len(h.sessions)
	if ok {
		h.metrics.Sessions.Set(float64(n))
	}
	h.mu.Unlock()
	s.close()
	if !ok {
		return
	}
	entry := h.log.WithFields(logrus.Fields{"session": s.ID, "sessions": n})
	if reason != nil && !isNormalClose(reason) {
		h.metrics.Pruned.Inc()
		entry.WithError(reason).Warn("session pruned")
		return
	}
	entry.Info("session closed")
}

// enqueue appends data to the session queue. It never blocks and only
// refuses once the session is closed.
func (s *Session) enqueue(data []byte) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.pending = append(s.pending, data)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// take hands the writer everything queued so far, in order.
func (s *Session) take() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.pending
	s.pending = make([][]byte, 0, s.hub.settings.SessionBuffer)
	return batch
}

func (s *Session) writeLoop(timeout time.Duration) {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for _, msg := range s.take() {
			s.conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.hub.drop(s, err)
				return
			}
		}
	}
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.pending = nil
		s.mu.Unlock()
		close(s.done)
		s.conn.Close()
	})
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}

func kindOf(ev events.Event) events.Kind {
	if ev == nil {
		return ""
	}
	return ev.Kind()
}
