package rpc

import (
	"context"
	"sync"
)

// ProtocolCallback is the completion slot for one outstanding call. It
// settles exactly once and serves both calling conventions over the same
// channel: blocking callers sit in Await, event-loop style callers select on
// Done and read Result afterwards. The dispatch goroutine only ever closes
// the channel; it never blocks on a caller.
type ProtocolCallback struct {
	id      int
	noReply bool

	settle sync.Once
	done   chan struct{}
	result any
	err    error
}

func newProtocolCallback(id int, noReply bool) *ProtocolCallback {
	return &ProtocolCallback{
		id:      id,
		noReply: noReply,
		done:    make(chan struct{}),
	}
}

// ID returns the correlation id assigned to this call.
func (cb *ProtocolCallback) ID() int {
	return cb.id
}

// Done is closed once the call has settled.
func (cb *ProtocolCallback) Done() <-chan struct{} {
	return cb.done
}

// Result returns the settled outcome. Valid only after Done is closed.
func (cb *ProtocolCallback) Result() (any, error) {
	return cb.result, cb.err
}

// Await blocks until the call settles or ctx is cancelled. Cancellation
// abandons the wait; the slot itself still settles when the response (or the
// connection teardown) arrives.
func (cb *ProtocolCallback) Await(ctx context.Context) (any, error) {
	select {
	case <-cb.done:
		return cb.result, cb.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (cb *ProtocolCallback) resolve(result any) {
	cb.settle.Do(func() {
		cb.result = result
		close(cb.done)
	})
}

func (cb *ProtocolCallback) reject(err error) {
	cb.settle.Do(func() {
		cb.err = err
		close(cb.done)
	})
}
