package session

import (
	"context"
	"errors"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
)

var ErrRunnerStopped = errors.New("session runner stopped")

type call struct {
	fn   func(*Session)
	done chan struct{}
}

// Runner owns a Session on a single goroutine. Inbound messages and caller
// closures are applied one at a time, in arrival order, so no state
// transition ever interleaves with another.
type Runner struct {
	session *Session
	inbound <-chan *domain.Message
	calls   chan call
	stopped chan struct{}
}

func NewRunner(s *Session, inbound <-chan *domain.Message) *Runner {
	return &Runner{
		session: s,
		inbound: inbound,
		calls:   make(chan call),
		stopped: make(chan struct{}),
	}
}

// Run processes inbound messages and calls until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.stopped)

	inbound := r.inbound
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-inbound:
			if !ok {
				inbound = nil
				continue
			}
			r.session.ReceiveMessage(msg)
		case c := <-r.calls:
			c.fn(r.session)
			close(c.done)
		}
	}
}

// Do runs fn on the session goroutine and waits for it to finish.
func (r *Runner) Do(ctx context.Context, fn func(*Session)) error {
	c := call{fn: fn, done: make(chan struct{})}
	select {
	case r.calls <- c:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stopped:
		return ErrRunnerStopped
	}
	// fn may touch caller state, so wait for it even if ctx ends meanwhile.
	<-c.done
	return nil
}
