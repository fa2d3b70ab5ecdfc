package responder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrDispatcherClosed is returned by Submit once Run has returned.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Handler is what the dispatcher runs for each task. *Responder satisfies
// it.
type Handler interface {
	Handle(ctx context.Context, msg Inbound) Result
}

// Future is the pending result of one submitted message.
type Future struct {
	done   chan struct{}
	result Result
}

// Done is closed when the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the message was handled or ctx is done.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

type task struct {
	msg    Inbound
	future *Future
}

// Dispatcher runs handlers one at a time, in submission order.
type Dispatcher struct {
	handler Handler
	queue   chan task
	log     zerolog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// NewDispatcher creates a dispatcher with room for size pending messages.
func NewDispatcher(h Handler, size int, log zerolog.Logger) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	return &Dispatcher{
		handler: h,
		queue:   make(chan task, size),
		log:     log,
		closed:  make(chan struct{}),
	}
}

// Submit queues msg and returns its Future. It blocks while the queue is
// full.
func (d *Dispatcher) Submit(ctx context.Context, msg Inbound) (*Future, error) {
	select {
	case <-d.closed:
		return nil, ErrDispatcherClosed
	default:
	}

	t := task{msg: msg, future: &Future{done: make(chan struct{})}}
	select {
	case d.queue <- t:
		// Run may have stopped between the check above and the send.
		select {
		case <-d.closed:
			d.drain()
		default:
		}
		return t.future, nil
	case <-d.closed:
		return nil, ErrDispatcherClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run drains the queue until ctx is done. Tasks still queued at that point
// complete with ErrDispatcherClosed.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.drain()
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-d.queue:
			// Both cases may be ready at once; a stopped dispatcher handles nothing.
			if ctx.Err() != nil {
				t.future.result = Result{Outcome: Ignored, Err: ErrDispatcherClosed}
				close(t.future.done)
				return nil
			}
			t.future.result = d.run(ctx, t.msg)
			close(t.future.done)
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, msg Inbound) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			d.log.Error().Interface("panic", p).Str("phone", msg.Sender.Phone).Msg("Error handling message")
			res = Result{Outcome: Ignored, Err: fmt.Errorf("handler panic: %v", p)}
		}
	}()
	res = d.handler.Handle(ctx, msg)
	d.log.Debug().Str("phone", msg.Sender.Phone).Stringer("outcome", res.Outcome).Msg("Message handled")
	return res
}

func (d *Dispatcher) drain() {
	d.closeOnce.Do(func() { close(d.closed) })
	for {
		select {
		case t := <-d.queue:
			t.future.result = Result{Outcome: Ignored, Err: ErrDispatcherClosed}
			close(t.future.done)
		default:
			return
		}
	}
}
