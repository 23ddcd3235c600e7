package rpc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WaitHelper races one awaited event against zero or more failure sources.
// The first source to fire settles the outcome; every losing source is
// cancelled so it cannot fire later into a reused slot. Configure failure
// sources first, then WaitForEvent, then Await.
type WaitHelper struct {
	channel *Channel
	waitID  string

	mu            sync.Mutex
	settled       bool
	result        any
	err           error
	done          chan struct{}
	timers        []*time.Timer
	registrations []waitRegistration
	logs          []string
}

type waitRegistration struct {
	emitter *Emitter
	sub     *Subscription
}

// NewWaitHelper starts a wait on behalf of owner and reports it to the
// driver (phase "before") for tooling.
func NewWaitHelper(owner *ChannelOwner, event string) *WaitHelper {
	w := &WaitHelper{
		channel: owner.channel,
		waitID:  uuid.NewString(),
		done:    make(chan struct{}),
	}
	w.channel.SendNoReply("waitForEventInfo", map[string]any{
		"info": map[string]any{
			"waitId": w.waitID,
			"phase":  "before",
			"event":  event,
		},
	})
	return w
}

// RejectOnEvent registers a failure source: if emitter fires event (and the
// optional predicate accepts the payload) the wait rejects with err.
func (w *WaitHelper) RejectOnEvent(emitter *Emitter, event string, err error, predicate func(any) bool) {
	sub := emitter.On(event, func(payload any) {
		if predicate != nil && !predicate(payload) {
			return
		}
		w.reject(err)
	})
	w.addRegistration(emitter, sub)
}

// RejectOnTimeout registers a deadline failure source. A zero timeout
// registers nothing; the wait runs unbounded.
func (w *WaitHelper) RejectOnTimeout(timeout time.Duration, message string) {
	if timeout == 0 {
		return
	}
	timer := time.AfterFunc(timeout, func() {
		w.reject(NewTimeoutError(message))
	})
	w.mu.Lock()
	if w.settled {
		w.mu.Unlock()
		timer.Stop()
		return
	}
	w.timers = append(w.timers, timer)
	w.mu.Unlock()
}

// WaitForEvent registers the success source. A payload the predicate refuses
// does not settle the wait; it keeps listening.
func (w *WaitHelper) WaitForEvent(emitter *Emitter, event string, predicate func(any) bool) {
	sub := emitter.On(event, func(payload any) {
		if predicate != nil && !predicate(payload) {
			return
		}
		w.fulfill(payload)
	})
	w.addRegistration(emitter, sub)
}

// addRegistration records a source for teardown. When the race settled while
// the listener was being installed, the settle path has already run its
// cleanup, so the source is detached here instead of leaking.
func (w *WaitHelper) addRegistration(emitter *Emitter, sub *Subscription) {
	w.mu.Lock()
	if w.settled {
		w.mu.Unlock()
		emitter.RemoveListener(sub)
		return
	}
	w.registrations = append(w.registrations, waitRegistration{emitter: emitter, sub: sub})
	w.mu.Unlock()
}

// Log records a progress line; rejection messages carry the recording.
func (w *WaitHelper) Log(message string) {
	w.mu.Lock()
	w.logs = append(w.logs, message)
	w.mu.Unlock()
	w.channel.SendNoReply("waitForEventInfo", map[string]any{
		"info": map[string]any{
			"waitId":  w.waitID,
			"phase":   "log",
			"message": message,
		},
	})
}

// Done is closed once the race has settled.
func (w *WaitHelper) Done() <-chan struct{} {
	return w.done
}

// Result returns the settled outcome. Valid only after Done is closed.
func (w *WaitHelper) Result() (any, error) {
	return w.result, w.err
}

// Await blocks until the race settles or ctx is cancelled.
func (w *WaitHelper) Await(ctx context.Context) (any, error) {
	select {
	case <-w.done:
		return w.result, w.err
	case <-ctx.Done():
		w.reject(ctx.Err())
		return nil, ctx.Err()
	}
}

func (w *WaitHelper) fulfill(result any) {
	w.mu.Lock()
	if w.settled {
		w.mu.Unlock()
		return
	}
	w.settled = true
	w.result = result
	cleanup := w.takeSourcesLocked()
	close(w.done)
	w.mu.Unlock()

	cleanup()
	w.sendWaitInfoAfter(nil)
}

func (w *WaitHelper) reject(err error) {
	w.mu.Lock()
	if w.settled {
		w.mu.Unlock()
		return
	}
	w.settled = true
	w.err = withLogRecording(err, w.logs)
	cleanup := w.takeSourcesLocked()
	close(w.done)
	w.mu.Unlock()

	cleanup()
	w.sendWaitInfoAfter(w.err)
}

// takeSourcesLocked detaches every losing source; the returned func stops
// timers and unsubscribes listeners outside the helper lock.
func (w *WaitHelper) takeSourcesLocked() func() {
	timers := w.timers
	registrations := w.registrations
	w.timers = nil
	w.registrations = nil
	return func() {
		for _, t := range timers {
			t.Stop()
		}
		for _, reg := range registrations {
			reg.emitter.RemoveListener(reg.sub)
		}
	}
}

func (w *WaitHelper) sendWaitInfoAfter(cause error) {
	info := map[string]any{
		"waitId": w.waitID,
		"phase":  "after",
	}
	if cause != nil {
		info["error"] = cause.Error()
	}
	w.channel.SendNoReply("waitForEventInfo", map[string]any{"info": info})
}

// withLogRecording rebuilds err with the wait's log lines appended,
// preserving the error kind so callers can still branch on it.
func withLogRecording(err error, logs []string) error {
	recording := formatLogRecording(logs)
	if recording == "" {
		return err
	}
	switch typed := err.(type) {
	case *TimeoutError:
		return NewTimeoutError(typed.Message + recording)
	case *TargetClosedError:
		out := NewTargetClosedError(typed.Message + recording)
		out.Stack = typed.Stack
		return out
	case *DriverError:
		return &DriverError{Name: typed.Name, Message: typed.Message + recording, Stack: typed.Stack}
	default:
		return fmt.Errorf("%w%s", err, recording)
	}
}

func formatLogRecording(logs []string) string {
	if len(logs) == 0 {
		return ""
	}
	const header = " logs "
	const width = 60
	left := (width - len(header)) / 2
	right := width - len(header) - left
	return "\n" + strings.Repeat("=", left) + header + strings.Repeat("=", right) +
		"\n" + strings.Join(logs, "\n") + "\n" + strings.Repeat("=", width)
}
