package broadcast

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"hypolab/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Sessions are unauthenticated and accepted from any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func encodeEnvelope(env events.Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// ServeHTTP upgrades the request and keeps the session open until the peer
// disconnects. Inbound frames are decoded and logged only.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	s, err := h.Register(ws)
	if err != nil {
		return
	}
	h.readLoop(s)
}

func (h *Hub) readLoop(s *Session) {
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			h.drop(s, err)
			return
		}
		env, _, err := events.Decode(msg)
		entry := h.log.WithFields(logrus.Fields{"session": s.ID, "type": env.Type})
		switch {
		case errors.Is(err, events.ErrUnknownKind):
			entry.Debug("client message of unknown type")
		case err != nil:
			entry.WithError(err).Debug("unparseable client message")
		default:
			entry.Debug("client message")
		}
	}
}
