package bus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"hypolab/internal/events"
	"hypolab/internal/logging"
)

const DefaultReconnectDelay = 5 * time.Second

type ClientSettings struct {
	// ReconnectDelay is the fixed wait between connection attempts.
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

func DefaultClientSettings() ClientSettings {
	return ClientSettings{
		ReconnectDelay:   DefaultReconnectDelay,
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// Client keeps a websocket to the server open for a Bus, redialing after a
// fixed delay for as long as its context lives.
type Client struct {
	url      string
	bus      *Bus
	settings ClientSettings
	dialer   *websocket.Dialer
	log      *logrus.Entry

	mu   sync.Mutex
	conn *websocket.Conn

	writeMu sync.Mutex
}

// NewClient builds a client and installs it as the bus forwarder.
func NewClient(url string, b *Bus, settings ClientSettings) *Client {
	def := DefaultClientSettings()
	if settings.ReconnectDelay <= 0 {
		settings.ReconnectDelay = def.ReconnectDelay
	}
	if settings.HandshakeTimeout <= 0 {
		settings.HandshakeTimeout = def.HandshakeTimeout
	}
	if settings.WriteTimeout <= 0 {
		settings.WriteTimeout = def.WriteTimeout
	}
	c := &Client{
		url:      url,
		bus:      b,
		settings: settings,
		dialer:   &websocket.Dialer{HandshakeTimeout: settings.HandshakeTimeout},
		log:      logging.NewLogger("bus.client"),
	}
	b.SetForwarder(c)
	return c
}

// Run dials, reads until the connection fails, waits the reconnect delay and
// dials again. It returns ctx.Err() once ctx is done.
func (c *Client) Run(ctx context.Context) error {
	for {
		ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.log.WithError(err).WithField("url", c.url).Info("connect failed")
		} else {
			c.log.WithField("url", c.url).Info("connected")
			c.serve(ctx, ws)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.settings.ReconnectDelay):
			c.log.WithField("delay", c.settings.ReconnectDelay).Info("reconnecting")
		}
	}
}

func (c *Client) serve(ctx context.Context, ws *websocket.Conn) {
	c.setConn(ws)
	defer c.setConn(nil)
	defer ws.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			ws.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.log.WithError(err).Info("connection closed")
			}
			return
		}
		env, ev, err := events.Decode(msg)
		if err != nil {
			c.log.WithError(err).WithField("type", env.Type).Warn("dropping undecodable envelope")
			continue
		}
		c.bus.Deliver(ev)
	}
}

func (c *Client) setConn(ws *websocket.Conn) {
	c.mu.Lock()
	c.conn = ws
	c.mu.Unlock()
}

// Connected reports whether a connection is currently live.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Forward writes ev to the live connection.
func (c *Client) Forward(ev events.Event) error {
	c.mu.Lock()
	ws := c.conn
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}
	data, err := events.Encode(ev)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return ErrNotConnected
		}
		return err
	}
	return nil
}
