package rpc

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestWaitHelperEventWins(t *testing.T) {
	conn, _ := newTestConnection(t)

	em := NewEmitter()
	w := NewWaitHelper(conn.root, "download")
	w.RejectOnTimeout(5*time.Second, "Timeout 5s exceeded")
	w.WaitForEvent(em, "download", nil)

	em.Emit("download", "payload")
	got, err := w.Await(context.Background())
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if got != "payload" {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestWaitHelperTimeoutWins(t *testing.T) {
	conn, _ := newTestConnection(t)

	em := NewEmitter()
	w := NewWaitHelper(conn.root, "download")
	w.RejectOnTimeout(20*time.Millisecond, "Timeout 20ms exceeded while waiting")
	w.WaitForEvent(em, "download", nil)

	_, err := w.Await(context.Background())
	if !IsTimeoutError(err) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Timeout 20ms exceeded") {
		t.Fatalf("unexpected message: %q", err.Error())
	}

	// The awaited event arriving later must not overwrite the outcome.
	em.Emit("download", "late")
	if _, err := w.Result(); !IsTimeoutError(err) {
		t.Fatalf("late event overwrote settled outcome: %v", err)
	}
}

func TestWaitHelperPredicateKeepsListening(t *testing.T) {
	conn, _ := newTestConnection(t)

	em := NewEmitter()
	w := NewWaitHelper(conn.root, "request")
	w.WaitForEvent(em, "request", func(payload any) bool {
		return payload == "match"
	})

	em.Emit("request", "miss")
	select {
	case <-w.Done():
		t.Fatalf("predicate-refused payload settled the wait")
	default:
	}

	em.Emit("request", "match")
	got, err := w.Await(context.Background())
	if err != nil || got != "match" {
		t.Fatalf("unexpected outcome: %v, %v", got, err)
	}
}

func TestWaitHelperRejectOnEvent(t *testing.T) {
	conn, _ := newTestConnection(t)

	em := NewEmitter()
	w := NewWaitHelper(conn.root, "download")
	w.RejectOnEvent(em, "close", NewTargetClosedError("Page closed"), nil)
	w.WaitForEvent(em, "download", nil)

	em.Emit("close", nil)
	_, err := w.Await(context.Background())
	if !IsTargetClosedError(err) {
		t.Fatalf("expected target-closed error, got %v", err)
	}
	if err.Error() != "Page closed" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestWaitHelperDetachesLosersAfterSettling(t *testing.T) {
	conn, _ := newTestConnection(t)

	em := NewEmitter()
	w := NewWaitHelper(conn.root, "download")
	w.RejectOnEvent(em, "close", NewTargetClosedError(""), nil)
	w.WaitForEvent(em, "download", nil)

	em.Emit("download", "ok")
	if _, err := w.Await(context.Background()); err != nil {
		t.Fatalf("await: %v", err)
	}
	if em.HasListeners("close") || em.HasListeners("download") {
		t.Fatalf("losing sources still subscribed after settle")
	}

	// A close after the win changes nothing.
	em.Emit("close", nil)
	got, err := w.Result()
	if err != nil || got != "ok" {
		t.Fatalf("settled outcome changed: %v, %v", got, err)
	}
}

func TestWaitHelperSourceAddedAfterSettleDetaches(t *testing.T) {
	conn, _ := newTestConnection(t)

	em := NewEmitter()
	w := NewWaitHelper(conn.root, "download")
	w.WaitForEvent(em, "download", nil)
	em.Emit("download", "ok")
	if _, err := w.Await(context.Background()); err != nil {
		t.Fatalf("await: %v", err)
	}

	// Sources registered once the race has settled must not stay
	// subscribed; the settle path already ran its cleanup.
	late := NewEmitter()
	w.RejectOnEvent(late, "close", NewTargetClosedError(""), nil)
	if late.HasListeners("close") {
		t.Fatalf("failure source still subscribed on a settled wait")
	}
	w.WaitForEvent(late, "download", nil)
	if late.HasListeners("download") {
		t.Fatalf("success source still subscribed on a settled wait")
	}
	w.RejectOnTimeout(time.Hour, "Timeout 1h exceeded")
	w.mu.Lock()
	armed := len(w.timers)
	w.mu.Unlock()
	if armed != 0 {
		t.Fatalf("timer kept armed on a settled wait")
	}
}

func TestWaitHelperLogRecordingOnRejection(t *testing.T) {
	conn, _ := newTestConnection(t)

	w := NewWaitHelper(conn.root, "navigation")
	w.RejectOnTimeout(10*time.Millisecond, "Timeout 10ms exceeded")
	w.Log(`waiting for navigation to "https://example.com"`)
	w.Log("navigated to about:blank")

	_, err := w.Await(context.Background())
	if !IsTimeoutError(err) {
		t.Fatalf("log recording changed the error kind: %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "= logs =") {
		t.Fatalf("missing log banner: %q", msg)
	}
	if !strings.Contains(msg, "navigated to about:blank") {
		t.Fatalf("missing log line: %q", msg)
	}
}

func TestWaitHelperContextCancellation(t *testing.T) {
	conn, _ := newTestConnection(t)

	em := NewEmitter()
	w := NewWaitHelper(conn.root, "download")
	w.WaitForEvent(em, "download", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.Await(ctx)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// Cancellation settles the helper; the event can no longer win.
	em.Emit("download", "late")
	if _, err := w.Result(); err == nil {
		t.Fatalf("late event settled a cancelled wait")
	}
}

func TestWaitHelperZeroTimeoutRunsUnbounded(t *testing.T) {
	conn, _ := newTestConnection(t)

	em := NewEmitter()
	w := NewWaitHelper(conn.root, "download")
	w.RejectOnTimeout(0, "never")
	w.WaitForEvent(em, "download", nil)

	if len(w.timers) != 0 {
		t.Fatalf("zero timeout armed a timer")
	}
	em.Emit("download", "ok")
	if got, err := w.Await(context.Background()); err != nil || got != "ok" {
		t.Fatalf("unexpected outcome: %v, %v", got, err)
	}
}

func TestWaitHelperReportsLifecycleToDriver(t *testing.T) {
	conn, ft := newTestConnection(t)

	em := NewEmitter()
	w := NewWaitHelper(conn.root, "download")
	w.Log("progress line")
	w.WaitForEvent(em, "download", nil)
	em.Emit("download", nil)
	if _, err := w.Await(context.Background()); err != nil {
		t.Fatalf("await: %v", err)
	}

	phases := make([]string, 0, 3)
	for i := 1; i <= 3; i++ {
		sent := ft.waitSent(t, i)
		if sent.Method != "waitForEventInfo" {
			t.Fatalf("message %d: unexpected method %q", i, sent.Method)
		}
		info := sent.Params["info"].(map[string]any)
		if info["waitId"] != w.waitID {
			t.Fatalf("message %d: wait id mismatch", i)
		}
		phases = append(phases, info["phase"].(string))
	}
	want := []string{"before", "log", "after"}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("unexpected phase sequence: %v", phases)
		}
	}
}
