package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
)

var ErrUnknownKind = errors.New("unknown event kind")

// Envelope is the {type, payload} unit sent over the wire. ID is a ULID
// assigned when the server wraps an event; client frames may omit it.
type Envelope struct {
	ID      string          `json:"id,omitempty"`
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Wrap serializes ev into a fresh envelope.
func Wrap(ev Event) (Envelope, error) {
	if ev == nil {
		return Envelope{}, errors.New("nil event")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", ev.Kind(), err)
	}
	return Envelope{ID: ulid.Make().String(), Type: ev.Kind(), Payload: payload}, nil
}

// Encode wraps ev and returns the envelope as a JSON text frame.
func Encode(ev Event) ([]byte, error) {
	env, err := Wrap(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Decode parses a JSON text frame into its envelope and typed event. A
// well-formed envelope of an unknown kind returns the envelope together
// with an error matching ErrUnknownKind.
func Decode(data []byte) (Envelope, Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, nil, fmt.Errorf("decode envelope: %w", err)
	}
	ev, err := env.Event()
	return env, ev, err
}

// Event decodes the payload into the variant named by Type.
func (e Envelope) Event() (Event, error) {
	decode, ok := decoders[e.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Type)
	}
	ev, err := decode(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return ev, nil
}
