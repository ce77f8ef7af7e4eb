// Package relay provides the bounded handoff between the upstream decode loop
// and the client-facing response writer.
package relay

import (
	"errors"
	"sync"
)

// DefaultCapacity bounds the number of in-flight messages. A slow reader
// causes the producer to block on Send instead of buffering without limit.
const DefaultCapacity = 20

// ErrDisconnected is returned by Send after the consumer has gone away.
var ErrDisconnected = errors.New("relay: consumer disconnected")

// Kind discriminates the Message variants.
type Kind int

const (
	KindData Kind = iota
	KindError
	KindEnd
)

// Message is the unit exchanged over the pipe: a text fragment, a terminal
// error, or the end-of-stream marker.
type Message struct {
	Kind     Kind
	Fragment string
	Err      error
}

// Data wraps a text fragment.
func Data(fragment string) Message {
	return Message{Kind: KindData, Fragment: fragment}
}

// Fail wraps a terminal error.
func Fail(err error) Message {
	return Message{Kind: KindError, Err: err}
}

// End marks the stream complete.
func End() Message {
	return Message{Kind: KindEnd}
}

// Pipe is a single-producer/single-consumer ordered handoff. The producer
// calls Send and finally Close; the consumer ranges over Messages and calls
// Disconnect when it stops reading early.
type Pipe struct {
	ch   chan Message
	done chan struct{}

	closeOnce      sync.Once
	disconnectOnce sync.Once
}

// NewPipe creates a pipe holding at most capacity in-flight messages.
// A non-positive capacity falls back to DefaultCapacity.
func NewPipe(capacity int) *Pipe {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pipe{
		ch:   make(chan Message, capacity),
		done: make(chan struct{}),
	}
}

// Send enqueues a message, blocking while the pipe is full. It returns
// ErrDisconnected once the consumer has called Disconnect, so the producer
// can stop reading upstream instead of filling a channel nobody drains.
func (p *Pipe) Send(msg Message) error {
	select {
	case <-p.done:
		return ErrDisconnected
	default:
	}

	select {
	case p.ch <- msg:
		return nil
	case <-p.done:
		return ErrDisconnected
	}
}

// Close marks the producer side finished. The consumer sees the stream as
// exhausted once the channel is closed and drained.
func (p *Pipe) Close() {
	p.closeOnce.Do(func() {
		close(p.ch)
	})
}

// Disconnect signals that the consumer stopped reading. Safe to call more
// than once and safe to call after Close.
func (p *Pipe) Disconnect() {
	p.disconnectOnce.Do(func() {
		close(p.done)
	})
}

// Messages exposes the consumer side of the pipe.
func (p *Pipe) Messages() <-chan Message {
	return p.ch
}
