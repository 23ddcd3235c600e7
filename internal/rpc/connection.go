package rpc

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pipewright/pipewright/internal/observability"
	"github.com/pipewright/pipewright/internal/protocol"
	"github.com/pipewright/pipewright/internal/transport"
)

const sdkLanguage = "go"

// defaultWaitTimeout bounds waits whose caller did not pick a timeout.
const defaultWaitTimeout = 30 * time.Second

// ObjectFactory constructs the proxy for one announced remote object. It
// must only build and bind the value; issuing calls from inside a factory
// would re-enter the dispatching connection.
type ObjectFactory func(parent *ChannelOwner, objType, guid string, initializer map[string]any) any

// Connection owns the transport, the pending-call correlation table, and the
// object registry for one driver process.
type Connection struct {
	*Emitter

	transport transport.Transport
	factory   ObjectFactory

	mu               sync.Mutex
	registry         *Registry
	callbacks        map[int]*ProtocolCallback
	lastID           int
	waitingForObject map[string][]chan any
	closedErr        error
	listenerErr      error
	defaultTimeout   time.Duration

	root *ChannelOwner
	done chan struct{}
}

func NewConnection(t transport.Transport, factory ObjectFactory) *Connection {
	c := &Connection{
		Emitter:          NewEmitter(),
		transport:        t,
		factory:          factory,
		registry:         NewRegistry(),
		callbacks:        make(map[int]*ProtocolCallback),
		waitingForObject: make(map[string][]chan any),
		defaultTimeout:   defaultWaitTimeout,
		done:             make(chan struct{}),
	}
	c.root = NewRootOwner(c)
	c.registry.objects[""] = c.root
	t.OnMessage(c.onMessage)
	return c
}

// Start spawns the dispatch goroutine: it owns the transport read loop and
// is the only context that advances dispatch. Callers never drive the loop
// themselves; they wait on completion slots.
func (c *Connection) Start() {
	go func() {
		err := c.transport.Run()
		if err != nil {
			log.Error().Err(err).Msg("rpc: transport loop ended")
		}
		c.cleanup(err)
	}()
}

// Root returns the connection's root scope.
func (c *Connection) Root() *ChannelOwner {
	return c.root
}

// Done is closed once the connection is torn down.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Stop closes the transport write side and waits for teardown.
func (c *Connection) Stop() {
	c.transport.Stop()
	<-c.done
}

// DefaultTimeout returns the wait timeout applied when callers pass none.
func (c *Connection) DefaultTimeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.defaultTimeout
}

// SetDefaultTimeout replaces the wait timeout applied when callers pass
// none. Zero restores the built-in default.
func (c *Connection) SetDefaultTimeout(d time.Duration) {
	if d == 0 {
		d = defaultWaitTimeout
	}
	c.mu.Lock()
	c.defaultTimeout = d
	c.mu.Unlock()
}

// sendMessageToServer allocates a correlation id, registers the completion
// slot, and writes the call frame. Embedded live-object references in params
// are rewritten to {guid} placeholders on the way out.
func (c *Connection) sendMessageToServer(owner *ChannelOwner, method string, params map[string]any, noReply bool) (*ProtocolCallback, error) {
	c.mu.Lock()
	if c.closedErr != nil {
		err := c.closedErr
		c.mu.Unlock()
		return nil, err
	}
	if owner.wasCollected {
		c.mu.Unlock()
		return nil, ErrObjectCollected
	}
	c.lastID++
	id := c.lastID
	cb := newProtocolCallback(id, noReply)
	c.callbacks[id] = cb
	c.mu.Unlock()

	if params == nil {
		params = map[string]any{}
	}
	msg := &protocol.Message{
		ID:     id,
		GUID:   owner.guid,
		Method: method,
		Params: replaceObjectsWithGUIDs(filterNil(params)).(map[string]any),
	}
	if err := c.transport.Send(msg); err != nil {
		c.mu.Lock()
		delete(c.callbacks, id)
		c.mu.Unlock()
		return nil, err
	}
	observability.RecordCallStarted()
	return cb, nil
}

func (c *Connection) onMessage(msg *protocol.Message) {
	if err := c.dispatch(msg); err != nil {
		log.Error().Err(err).Str("guid", msg.GUID).Str("method", msg.Method).Msg("rpc: protocol violation")
		c.transport.Stop()
		c.cleanup(err)
	}
}

// dispatch routes one inbound message: a response settles its pending slot,
// a create/adopt/dispose mutates the registry, anything else re-emits as an
// event on the target object. Runs on the dispatch goroutine only.
func (c *Connection) dispatch(msg *protocol.Message) error {
	c.mu.Lock()
	if c.closedErr != nil {
		c.mu.Unlock()
		return nil
	}

	if msg.IsResponse() {
		cb, ok := c.callbacks[msg.ID]
		if !ok {
			c.mu.Unlock()
			return fmt.Errorf("%w: %d", ErrUnknownCallID, msg.ID)
		}
		delete(c.callbacks, msg.ID)
		if cb.noReply {
			c.mu.Unlock()
			return nil
		}
		if msg.Error != nil && msg.Result == nil {
			c.mu.Unlock()
			observability.RecordCallSettled("error")
			cb.reject(parseError(msg.Error))
			return nil
		}
		result := c.replaceGUIDsWithObjectsLocked(msg.Result)
		c.mu.Unlock()
		observability.RecordCallSettled("ok")
		cb.resolve(result)
		return nil
	}

	switch msg.Method {
	case protocol.MethodCreate:
		parent, ok := c.registry.Lookup(msg.GUID)
		if !ok {
			c.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrUnknownScope, msg.GUID)
		}
		create, ok := msg.ParseCreateParams()
		if !ok {
			c.mu.Unlock()
			return fmt.Errorf("rpc: malformed __create__ params for scope %q", msg.GUID)
		}
		proxy, waiters, err := c.createRemoteObjectLocked(parent, create)
		c.mu.Unlock()
		if err != nil {
			return err
		}
		for _, waiter := range waiters {
			waiter <- proxy
		}
		return nil

	case protocol.MethodAdopt:
		owner, ok := c.registry.Lookup(msg.GUID)
		if !ok {
			c.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrUnknownScope, msg.GUID)
		}
		childGUID, _ := msg.Params["guid"].(string)
		child, ok := c.registry.Lookup(childGUID)
		if !ok {
			c.mu.Unlock()
			return fmt.Errorf("rpc: unknown adopted child %q", childGUID)
		}
		owner.adopt(child)
		c.mu.Unlock()
		return nil

	case protocol.MethodDispose:
		owner, ok := c.registry.Lookup(msg.GUID)
		if !ok {
			c.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrUnknownScope, msg.GUID)
		}
		reason, _ := msg.Params["reason"].(string)
		owner.dispose(reason)
		observability.SetObjectsLive(c.registry.Len())
		c.mu.Unlock()
		return nil
	}

	owner, ok := c.registry.Lookup(msg.GUID)
	if !ok {
		// Expected under close races: the object may be disposed while the
		// driver still has events in flight.
		c.mu.Unlock()
		observability.RecordEventDropped()
		log.Debug().Str("guid", msg.GUID).Str("method", msg.Method).Msg("rpc: drop event for disposed object")
		return nil
	}
	var params any = msg.Params
	if !strings.Contains(msg.GUID, "jsonPipe@") {
		params = c.replaceGUIDsWithObjectsLocked(params)
	}
	c.mu.Unlock()

	observability.RecordEventDispatched()
	c.emitEvent(owner, msg.Method, params)
	return nil
}

// emitEvent fires a local event; a panicking listener is captured and
// surfaced at the next API call instead of killing the dispatch loop.
func (c *Connection) emitEvent(owner *ChannelOwner, method string, params any) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("rpc: event listener panic: %v", r)
			}
			log.Error().Err(err).Str("guid", owner.guid).Str("event", method).Msg("rpc: error in event listener")
			c.mu.Lock()
			c.listenerErr = err
			c.mu.Unlock()
		}
	}()
	owner.Emit(method, params)
}

// takeListenerError returns and clears a deferred event-listener error.
func (c *Connection) takeListenerError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.listenerErr
	c.listenerErr = nil
	return err
}

func (c *Connection) createRemoteObjectLocked(parent *ChannelOwner, create protocol.CreateParams) (any, []chan any, error) {
	if _, ok := c.registry.Lookup(create.GUID); ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrDuplicateGUID, create.GUID)
	}
	initializer, ok := c.replaceGUIDsWithObjectsLocked(create.Initializer).(map[string]any)
	if !ok {
		initializer = map[string]any{}
	}
	proxy := c.factory(parent, create.Type, create.GUID, initializer)
	owner := proxy.(interface{ Owner() *ChannelOwner }).Owner()
	if err := c.registry.Register(owner); err != nil {
		return nil, nil, err
	}
	parent.children[create.GUID] = owner
	observability.SetObjectsLive(c.registry.Len())

	waiters := c.waitingForObject[create.GUID]
	delete(c.waitingForObject, create.GUID)
	return proxy, waiters, nil
}

// WaitForObjectWithKnownName resolves once an object with a well-known guid
// exists, either already or on a future create.
func (c *Connection) WaitForObjectWithKnownName(guid string) <-chan any {
	ch := make(chan any, 1)
	c.mu.Lock()
	if owner, ok := c.registry.Lookup(guid); ok {
		c.mu.Unlock()
		ch <- owner.self
		return ch
	}
	c.waitingForObject[guid] = append(c.waitingForObject[guid], ch)
	c.mu.Unlock()
	return ch
}

// cleanup rejects every outstanding call with a target-closed error and
// marks the connection unusable. Safe to call more than once.
func (c *Connection) cleanup(cause error) {
	c.mu.Lock()
	if c.closedErr != nil {
		c.mu.Unlock()
		return
	}
	if cause != nil {
		c.closedErr = NewTargetClosedError(cause.Error())
	} else {
		c.closedErr = NewTargetClosedError("")
	}
	closedErr := c.closedErr
	pending := make([]*ProtocolCallback, 0, len(c.callbacks))
	for _, cb := range c.callbacks {
		pending = append(pending, cb)
	}
	clear(c.callbacks)
	c.mu.Unlock()

	for _, cb := range pending {
		if cb.noReply {
			continue
		}
		observability.RecordCallSettled("closed")
		cb.reject(closedErr)
	}
	c.Emit("close", nil)
	close(c.done)
}

// filterNil drops nil-valued top-level params the way optional arguments are
// elided from calls.
func filterNil(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// replaceObjectsWithGUIDs rewrites live proxy references inside an outbound
// payload into {guid} placeholders.
func replaceObjectsWithGUIDs(payload any) any {
	switch v := payload.(type) {
	case nil:
		return nil
	case *Channel:
		return map[string]any{"guid": v.owner.guid}
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = replaceObjectsWithGUIDs(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = replaceObjectsWithGUIDs(item)
		}
		return out
	}
	if holder, ok := payload.(interface{ Owner() *ChannelOwner }); ok {
		return map[string]any{"guid": holder.Owner().guid}
	}
	return payload
}

// replaceGUIDsWithObjectsLocked rewrites {guid} placeholders inside an
// inbound payload back into live proxy references. Caller holds the mutex.
func (c *Connection) replaceGUIDsWithObjectsLocked(payload any) any {
	switch v := payload.(type) {
	case nil:
		return nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = c.replaceGUIDsWithObjectsLocked(item)
		}
		return out
	case map[string]any:
		if guid, ok := v["guid"].(string); ok {
			if owner, found := c.registry.Lookup(guid); found {
				return owner.self
			}
		}
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = c.replaceGUIDsWithObjectsLocked(item)
		}
		return out
	}
	return payload
}
