// Package bus implements the destination-addressed event dispatch
// described in the design notes: each component owns a mailbox that
// is drained by exactly one goroutine, so handlers never race with
// each other, and cross-component calls go through Request (blocking
// reply) or Publish (fire-and-forget).
package bus

import (
	"context"
	"fmt"
	"log"
)

// Envelope is one unit of work delivered to a Component's mailbox.
type Envelope struct {
	Kind    string
	Payload any
	reply   chan reply
}

type reply struct {
	value any
	err   error
}

// Handler processes one Envelope and optionally returns a value for
// Request callers. For a Publish envelope the returned value is
// discarded and a non-nil error is logged.
type Handler func(ctx context.Context, payload any) (any, error)

// Component is a single-threaded destination on the bus: it drains
// its mailbox to completion, one Envelope at a time, before the next
// is handled.
type Component struct {
	Name     string
	inbox    chan Envelope
	handlers map[string]Handler
	done     chan struct{}
}

// NewComponent creates a component with the given mailbox depth.
func NewComponent(name string, buffer int) *Component {
	return &Component{
		Name:     name,
		inbox:    make(chan Envelope, buffer),
		handlers: make(map[string]Handler),
		done:     make(chan struct{}),
	}
}

// On registers the handler invoked for envelopes of the given kind.
// Must be called before Run starts draining the mailbox.
func (c *Component) On(kind string, h Handler) {
	c.handlers[kind] = h
}

// Run drains the mailbox until ctx is cancelled. It is the
// component's single dispatch goroutine: a handler runs to
// completion before the next envelope is taken off the mailbox.
func (c *Component) Run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-c.inbox:
			c.dispatch(ctx, env)
		}
	}
}

func (c *Component) dispatch(ctx context.Context, env Envelope) {
	h, ok := c.handlers[env.Kind]
	if !ok {
		if env.reply != nil {
			env.reply <- reply{err: fmt.Errorf("bus: %s has no handler for %q", c.Name, env.Kind)}
		} else {
			log.Printf("bus: %s dropped unhandled event %q", c.Name, env.Kind)
		}
		return
	}
	value, err := h(ctx, env.Payload)
	if env.reply != nil {
		env.reply <- reply{value: value, err: err}
		return
	}
	if err != nil {
		log.Printf("bus: %s failed handling %q: %v", c.Name, env.Kind, err)
	}
}

// Publish enqueues a fire-and-forget event. It never blocks on a
// reply; if the mailbox is full the caller blocks only on enqueueing,
// matching the suspension points named in the concurrency model.
func (c *Component) Publish(kind string, payload any) {
	c.inbox <- Envelope{Kind: kind, Payload: payload}
}

// Request enqueues an envelope and blocks until the component's
// handler replies. There is no timeout: per the concurrency model, a
// missing reply from a registered component is a programming error,
// not a runtime condition the caller should recover from.
func (c *Component) Request(ctx context.Context, kind string, payload any) (any, error) {
	replyCh := make(chan reply, 1)
	env := Envelope{Kind: kind, Payload: payload, reply: replyCh}
	select {
	case c.inbox <- env:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-replyCh:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
