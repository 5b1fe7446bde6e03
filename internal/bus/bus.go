// Package bus is the client side of the change feed: an in-process pub/sub
// keyed by event kind that receives envelopes from the server and lets
// components exchange purely local events.
package bus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"hypolab/internal/events"
	"hypolab/internal/logging"
)

var ErrNotConnected = errors.New("bus: not connected")

type Handler func(events.Event)

// Subscription identifies one On registration. Registering the same handler
// twice yields two subscriptions that are removed independently.
type Subscription uint64

// Forwarder pushes a locally emitted event upstream. It returns
// ErrNotConnected when no connection is live.
type Forwarder interface {
	Forward(ev events.Event) error
}

type subscriber struct {
	id Subscription
	fn Handler
}

type Bus struct {
	mu        sync.Mutex
	handlers  map[events.Kind][]subscriber
	seq       Subscription
	forwarder Forwarder
	log       *logrus.Entry
}

func New() *Bus {
	return &Bus{
		handlers: make(map[events.Kind][]subscriber),
		log:      logging.NewLogger("bus"),
	}
}

// SetForwarder wires the upstream path. A nil forwarder disables forwarding.
func (b *Bus) SetForwarder(f Forwarder) {
	b.mu.Lock()
	b.forwarder = f
	b.mu.Unlock()
}

// On registers fn for kind. Handlers run in registration order.
func (b *Bus) On(kind events.Kind, fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.handlers[kind] = append(b.handlers[kind], subscriber{id: b.seq, fn: fn})
	return b.seq
}

// Off removes the registration sub under kind. Unknown subscriptions are ignored.
func (b *Bus) Off(kind events.Kind, sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[kind]
	for i, s := range subs {
		if s.id != sub {
			continue
		}
		next := make([]subscriber, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(b.handlers, kind)
		} else {
			b.handlers[kind] = next
		}
		return
	}
}

// Handlers returns how many handlers are registered for kind.
func (b *Bus) Handlers(kind events.Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[kind])
}

// Emit dispatches ev to local handlers, then its derived events, then
// forwards ev upstream when its kind is forwardable and a connection is live.
func (b *Bus) Emit(ev events.Event) {
	b.fanOut(ev)

	if !events.Forwardable(ev.Kind()) {
		return
	}
	b.mu.Lock()
	f := b.forwarder
	b.mu.Unlock()
	if f == nil {
		return
	}
	if err := f.Forward(ev); err != nil && !errors.Is(err, ErrNotConnected) {
		b.log.WithError(err).WithField("type", ev.Kind()).Warn("forward failed")
	}
}

// Deliver dispatches an event received from the server. It is never
// forwarded back.
func (b *Bus) Deliver(ev events.Event) {
	b.fanOut(ev)
}

func (b *Bus) fanOut(ev events.Event) {
	b.dispatch(ev)
	for _, d := range events.Derived(ev) {
		b.dispatch(d)
	}
}

func (b *Bus) dispatch(ev events.Event) {
	b.mu.Lock()
	subs := b.handlers[ev.Kind()]
	b.mu.Unlock()
	// handler slices are copy-on-write
	for _, s := range subs {
		b.call(s, ev)
	}
}

func (b *Bus) call(s subscriber, ev events.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(logrus.Fields{
				"type":         ev.Kind(),
				"subscription": s.id,
			}).Error(fmt.Sprintf("handler panicked: %v", r))
		}
	}()
	s.fn(ev)
}
