package rpc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pipewright/pipewright/internal/protocol"
	"github.com/pipewright/pipewright/internal/testutil/testlog"
)

// fakeTransport records outbound messages and lets tests inject inbound ones.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []*protocol.Message
	onMsg   func(*protocol.Message)
	stopped chan struct{}
	once    sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{stopped: make(chan struct{})}
}

func (t *fakeTransport) Send(msg *protocol.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, msg)
	return nil
}

func (t *fakeTransport) Run() error {
	<-t.stopped
	return nil
}

func (t *fakeTransport) Stop() {
	t.once.Do(func() { close(t.stopped) })
}

func (t *fakeTransport) OnMessage(fn func(*protocol.Message)) {
	t.onMsg = fn
}

func (t *fakeTransport) deliver(msg *protocol.Message) {
	t.onMsg(msg)
}

func (t *fakeTransport) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func (t *fakeTransport) waitSent(tb testing.TB, n int) *protocol.Message {
	tb.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		t.mu.Lock()
		if len(t.sent) >= n {
			msg := t.sent[n-1]
			t.mu.Unlock()
			return msg
		}
		t.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	tb.Fatalf("timed out waiting for %d sent messages, have %d", n, t.sentCount())
	return nil
}

func testFactory(parent *ChannelOwner, objType, guid string, initializer map[string]any) any {
	return NewChannelOwner(parent, objType, guid, initializer)
}

func newTestConnection(t *testing.T) (*Connection, *fakeTransport) {
	t.Helper()
	testlog.Start(t)
	ft := newFakeTransport()
	conn := NewConnection(ft, testFactory)
	conn.Start()
	t.Cleanup(conn.Stop)
	return conn, ft
}

func createMessage(scope, objType, guid string, initializer map[string]any) *protocol.Message {
	if initializer == nil {
		initializer = map[string]any{}
	}
	return &protocol.Message{
		GUID:   scope,
		Method: protocol.MethodCreate,
		Params: map[string]any{
			"type":        objType,
			"guid":        guid,
			"initializer": initializer,
		},
	}
}

func TestCallResponseCorrelation(t *testing.T) {
	conn, ft := newTestConnection(t)

	cb, err := conn.sendMessageToServer(conn.root, "initialize", map[string]any{"sdkLanguage": "go"}, false)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	sent := ft.waitSent(t, 1)
	if sent.ID != cb.ID() || sent.Method != "initialize" {
		t.Fatalf("unexpected outbound message: %+v", sent)
	}

	ft.deliver(&protocol.Message{ID: cb.ID(), Result: map[string]any{"ok": true, "version": "1.0"}})
	got, err := cb.Await(context.Background())
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok || m["version"] != "1.0" {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestConcurrentCallsSettleOutOfOrder(t *testing.T) {
	conn, ft := newTestConnection(t)

	cbs := make([]*ProtocolCallback, 3)
	for i := range cbs {
		cb, err := conn.sendMessageToServer(conn.root, "op", map[string]any{"n": i}, false)
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		cbs[i] = cb
	}

	// Responses arrive in reverse order; each settles its own slot.
	for i := len(cbs) - 1; i >= 0; i-- {
		ft.deliver(&protocol.Message{ID: cbs[i].ID(), Result: map[string]any{"n": i}})
	}
	for i, cb := range cbs {
		got, err := cb.Await(context.Background())
		if err != nil {
			t.Fatalf("await %d: %v", i, err)
		}
		if got.(map[string]any)["n"] != i {
			t.Fatalf("call %d got %v", i, got)
		}
	}
}

func TestChannelSendUnwrapsSingleKeyResult(t *testing.T) {
	conn, ft := newTestConnection(t)

	cases := []struct {
		name   string
		result any
		want   func(any) bool
	}{
		{"single key unwraps", map[string]any{"value": "hi"}, func(v any) bool { return v == "hi" }},
		{"multi key passes through", map[string]any{"a": 1, "b": 2}, func(v any) bool {
			m, ok := v.(map[string]any)
			return ok && m["a"] == 1 && m["b"] == 2
		}},
		{"empty map passes through", map[string]any{}, func(v any) bool {
			m, ok := v.(map[string]any)
			return ok && len(m) == 0
		}},
		{"nil result stays nil", nil, func(v any) bool { return v == nil }},
	}

	sent := 0
	for _, tc := range cases {
		type outcome struct {
			v   any
			err error
		}
		resCh := make(chan outcome, 1)
		go func() {
			v, err := conn.root.channel.Send(context.Background(), "op", nil)
			resCh <- outcome{v, err}
		}()
		sent++
		msg := ft.waitSent(t, sent)
		ft.deliver(&protocol.Message{ID: msg.ID, Result: tc.result})
		res := <-resCh
		if res.err != nil {
			t.Fatalf("%s: %v", tc.name, res.err)
		}
		if !tc.want(res.v) {
			t.Fatalf("%s: unexpected value %v", tc.name, res.v)
		}
	}
}

func TestErrorResponseTyping(t *testing.T) {
	conn, ft := newTestConnection(t)

	cases := []struct {
		payload *protocol.ErrorPayload
		check   func(error) bool
	}{
		{&protocol.ErrorPayload{Name: "TimeoutError", Message: "Timeout 500ms exceeded"}, IsTimeoutError},
		{&protocol.ErrorPayload{Name: "TargetClosedError", Message: "Target closed"}, IsTargetClosedError},
		{&protocol.ErrorPayload{Name: "Error", Message: "boom", Stack: "at x"}, func(err error) bool {
			var de *DriverError
			return errors.As(err, &de) && de.Stack == "at x"
		}},
	}

	for i, tc := range cases {
		cb, err := conn.sendMessageToServer(conn.root, "op", nil, false)
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		ft.deliver(&protocol.Message{ID: cb.ID(), Error: tc.payload})
		_, err = cb.Await(context.Background())
		if err == nil || !tc.check(err) {
			t.Fatalf("case %d: unexpected error %v", i, err)
		}
		if err.Error() != tc.payload.Message {
			t.Fatalf("case %d: message mismatch: %q", i, err.Error())
		}
	}
}

func TestCreateRegistersObjectAndRoutesEvents(t *testing.T) {
	conn, ft := newTestConnection(t)

	ft.deliver(createMessage("", "Browser", "browser@1", map[string]any{"version": "120"}))

	owner, ok := conn.registry.Lookup("browser@1")
	if !ok {
		t.Fatalf("object not registered")
	}
	if owner.Type() != "Browser" || owner.Parent() != conn.root {
		t.Fatalf("unexpected owner: type=%q", owner.Type())
	}
	if owner.InitializerString("version") != "120" {
		t.Fatalf("initializer lost: %+v", owner.Initializer())
	}

	var got any
	owner.On("close", func(payload any) { got = payload })
	ft.deliver(&protocol.Message{GUID: "browser@1", Method: "close", Params: map[string]any{"reason": "done"}})
	m, ok := got.(map[string]any)
	if !ok || m["reason"] != "done" {
		t.Fatalf("event payload not delivered: %v", got)
	}
}

func TestEventPayloadGuidRewriting(t *testing.T) {
	conn, ft := newTestConnection(t)

	ft.deliver(createMessage("", "Page", "page@1", nil))
	ft.deliver(createMessage("", "Frame", "frame@1", nil))

	page, _ := conn.registry.Lookup("page@1")
	frame, _ := conn.registry.Lookup("frame@1")

	var got any
	page.On("frameAttached", func(payload any) { got = payload })
	ft.deliver(&protocol.Message{
		GUID:   "page@1",
		Method: "frameAttached",
		Params: map[string]any{"frame": map[string]any{"guid": "frame@1"}},
	})

	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("no event payload: %v", got)
	}
	if m["frame"] != frame.Self() {
		t.Fatalf("guid placeholder not rewritten: %v", m["frame"])
	}
}

func TestJSONPipeEventsSkipRewriting(t *testing.T) {
	conn, ft := newTestConnection(t)

	ft.deliver(createMessage("", "JsonPipe", "jsonPipe@1", nil))
	ft.deliver(createMessage("", "Frame", "frame@1", nil))

	pipe, _ := conn.registry.Lookup("jsonPipe@1")
	var got any
	pipe.On("message", func(payload any) { got = payload })
	ft.deliver(&protocol.Message{
		GUID:   "jsonPipe@1",
		Method: "message",
		Params: map[string]any{"ref": map[string]any{"guid": "frame@1"}},
	})

	m := got.(map[string]any)
	ref, ok := m["ref"].(map[string]any)
	if !ok || ref["guid"] != "frame@1" {
		t.Fatalf("pipe payload was rewritten: %v", m["ref"])
	}
}

func TestEventForUnknownGuidIsDropped(t *testing.T) {
	conn, ft := newTestConnection(t)

	ft.deliver(&protocol.Message{GUID: "ghost@1", Method: "close", Params: map[string]any{}})

	// The connection stays usable afterwards.
	if _, err := conn.sendMessageToServer(conn.root, "op", nil, false); err != nil {
		t.Fatalf("connection unusable after dropped event: %v", err)
	}
}

func TestDisposeCascadesThroughScope(t *testing.T) {
	conn, ft := newTestConnection(t)

	ft.deliver(createMessage("", "BrowserContext", "context@1", nil))
	ft.deliver(createMessage("context@1", "Page", "page@1", nil))
	ft.deliver(createMessage("page@1", "Frame", "frame@1", nil))

	ft.deliver(&protocol.Message{GUID: "context@1", Method: protocol.MethodDispose, Params: map[string]any{}})

	for _, guid := range []string{"context@1", "page@1", "frame@1"} {
		if _, ok := conn.registry.Lookup(guid); ok {
			t.Fatalf("%s still registered after scope disposal", guid)
		}
	}
	if len(conn.root.children) != 0 {
		t.Fatalf("root still tracks disposed children")
	}
}

func TestGuidReuseAfterDisposal(t *testing.T) {
	conn, ft := newTestConnection(t)

	ft.deliver(createMessage("", "Page", "page@1", map[string]any{"gen": "first"}))
	ft.deliver(&protocol.Message{GUID: "page@1", Method: protocol.MethodDispose, Params: map[string]any{}})
	ft.deliver(createMessage("", "Page", "page@1", map[string]any{"gen": "second"}))

	owner, ok := conn.registry.Lookup("page@1")
	if !ok {
		t.Fatalf("reused guid not registered")
	}
	if owner.InitializerString("gen") != "second" {
		t.Fatalf("stale object still registered: %+v", owner.Initializer())
	}
}

func TestDuplicateGuidTearsDownConnection(t *testing.T) {
	conn, ft := newTestConnection(t)

	ft.deliver(createMessage("", "Page", "page@1", nil))
	ft.deliver(createMessage("", "Page", "page@1", nil))

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("connection did not tear down on duplicate guid")
	}
	_, err := conn.sendMessageToServer(conn.root, "op", nil, false)
	if !IsTargetClosedError(err) {
		t.Fatalf("expected target-closed error, got %v", err)
	}
}

func TestUnknownResponseIDTearsDownConnection(t *testing.T) {
	conn, ft := newTestConnection(t)

	ft.deliver(&protocol.Message{ID: 999, Result: map[string]any{}})

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("connection did not tear down on unknown response id")
	}
}

func TestGCDisposalBlocksFurtherSends(t *testing.T) {
	conn, ft := newTestConnection(t)

	ft.deliver(createMessage("", "Artifact", "artifact@1", nil))
	owner, _ := conn.registry.Lookup("artifact@1")
	ft.deliver(&protocol.Message{GUID: "artifact@1", Method: protocol.MethodDispose, Params: map[string]any{"reason": "gc"}})

	_, err := conn.sendMessageToServer(owner, "delete", nil, false)
	if !errors.Is(err, ErrObjectCollected) {
		t.Fatalf("expected ErrObjectCollected, got %v", err)
	}
}

func TestAdoptReparentsChild(t *testing.T) {
	conn, ft := newTestConnection(t)

	ft.deliver(createMessage("", "BrowserContext", "context@1", nil))
	ft.deliver(createMessage("", "Artifact", "artifact@1", nil))

	ft.deliver(&protocol.Message{GUID: "context@1", Method: protocol.MethodAdopt, Params: map[string]any{"guid": "artifact@1"}})

	parent, _ := conn.registry.Lookup("context@1")
	child, _ := conn.registry.Lookup("artifact@1")
	if child.Parent() != parent {
		t.Fatalf("child not reparented")
	}
	if parent.children["artifact@1"] != child {
		t.Fatalf("parent does not track adopted child")
	}
	if _, ok := conn.root.children["artifact@1"]; ok {
		t.Fatalf("old parent still tracks adopted child")
	}

	// Disposing the adopter now takes the child with it.
	ft.deliver(&protocol.Message{GUID: "context@1", Method: protocol.MethodDispose, Params: map[string]any{}})
	if _, ok := conn.registry.Lookup("artifact@1"); ok {
		t.Fatalf("adopted child survived scope disposal")
	}
}

func TestOutboundParamsReplaceObjectsWithGuids(t *testing.T) {
	conn, ft := newTestConnection(t)

	ft.deliver(createMessage("", "ElementHandle", "handle@1", nil))
	owner, _ := conn.registry.Lookup("handle@1")

	if _, err := conn.sendMessageToServer(conn.root, "op", map[string]any{
		"target":  owner.Self(),
		"ignored": nil,
		"items":   []any{owner.Self()},
	}, false); err != nil {
		t.Fatalf("send: %v", err)
	}

	sent := ft.waitSent(t, 1)
	target, ok := sent.Params["target"].(map[string]any)
	if !ok || target["guid"] != "handle@1" {
		t.Fatalf("object reference not rewritten: %+v", sent.Params["target"])
	}
	items := sent.Params["items"].([]any)
	if items[0].(map[string]any)["guid"] != "handle@1" {
		t.Fatalf("nested reference not rewritten: %+v", items)
	}
	if _, present := sent.Params["ignored"]; present {
		t.Fatalf("nil param should be elided")
	}
}

func TestCleanupRejectsPendingCalls(t *testing.T) {
	conn, _ := newTestConnection(t)

	cb, err := conn.sendMessageToServer(conn.root, "op", nil, false)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	conn.Stop()
	_, err = cb.Await(context.Background())
	if !IsTargetClosedError(err) {
		t.Fatalf("expected target-closed rejection, got %v", err)
	}
}

func TestNoReplyResponseIsConsumedSilently(t *testing.T) {
	conn, ft := newTestConnection(t)

	conn.root.channel.SendNoReply("waitForEventInfo", map[string]any{})
	sent := ft.waitSent(t, 1)

	// The driver's answer to a no-reply call must not trip the unknown-id
	// teardown path.
	ft.deliver(&protocol.Message{ID: sent.ID, Error: &protocol.ErrorPayload{Message: "too late"}})

	select {
	case <-conn.Done():
		t.Fatalf("connection tore down on no-reply response")
	default:
	}
}

func TestListenerPanicSurfacesOnNextCall(t *testing.T) {
	conn, ft := newTestConnection(t)

	ft.deliver(createMessage("", "Page", "page@1", nil))
	owner, _ := conn.registry.Lookup("page@1")
	owner.On("crash", func(any) { panic(errors.New("listener blew up")) })

	ft.deliver(&protocol.Message{GUID: "page@1", Method: "crash", Params: map[string]any{}})

	_, err := conn.root.channel.Send(context.Background(), "op", nil)
	if err == nil || err.Error() != "listener blew up" {
		t.Fatalf("expected deferred listener error, got %v", err)
	}

	// The error is delivered once; the connection keeps working after.
	if _, err := conn.sendMessageToServer(conn.root, "op", nil, false); err != nil {
		t.Fatalf("connection unusable after listener error: %v", err)
	}
}

func TestWaitForObjectWithKnownName(t *testing.T) {
	conn, ft := newTestConnection(t)

	ch := conn.WaitForObjectWithKnownName("Playwright")
	select {
	case <-ch:
		t.Fatalf("resolved before the object exists")
	default:
	}

	ft.deliver(createMessage("", "Playwright", "Playwright", nil))
	select {
	case got := <-ch:
		owner, _ := conn.registry.Lookup("Playwright")
		if got != owner.Self() {
			t.Fatalf("unexpected object: %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("waiter never resolved")
	}

	// Already-live objects resolve immediately.
	select {
	case <-conn.WaitForObjectWithKnownName("Playwright"):
	case <-time.After(2 * time.Second):
		t.Fatalf("existing object did not resolve")
	}
}

func TestConnectionDefaultTimeout(t *testing.T) {
	conn, _ := newTestConnection(t)

	if got := conn.DefaultTimeout(); got != 30*time.Second {
		t.Fatalf("unexpected built-in default: %v", got)
	}
	conn.SetDefaultTimeout(5 * time.Second)
	if got := conn.DefaultTimeout(); got != 5*time.Second {
		t.Fatalf("override not applied: %v", got)
	}
	conn.SetDefaultTimeout(0)
	if got := conn.DefaultTimeout(); got != 30*time.Second {
		t.Fatalf("zero did not restore the built-in default: %v", got)
	}
}
