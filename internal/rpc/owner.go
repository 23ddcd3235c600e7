package rpc

// ChannelOwner is the local representative of one remote object: its guid,
// its initializer snapshot, its event listeners, and its place in the
// ownership tree. Proxy types embed it and bind themselves so payload
// rewriting can hand back the outer proxy.
type ChannelOwner struct {
	*Emitter

	conn        *Connection
	parent      *ChannelOwner
	typ         string
	guid        string
	initializer map[string]any
	children    map[string]*ChannelOwner
	channel     *Channel
	self        any

	wasCollected   bool
	isInternalType bool

	eventSubscriptions map[string]string
}

// NewChannelOwner builds the base for a remote object created under parent.
// Registration into the connection registry happens at create dispatch, not
// here.
func NewChannelOwner(parent *ChannelOwner, typ, guid string, initializer map[string]any) *ChannelOwner {
	o := &ChannelOwner{
		Emitter:     NewEmitter(),
		conn:        parent.conn,
		parent:      parent,
		typ:         typ,
		guid:        guid,
		initializer: initializer,
		children:    make(map[string]*ChannelOwner),
	}
	o.channel = &Channel{conn: o.conn, owner: o}
	o.self = o
	o.Emitter.OnListenerChange = o.updateSubscription
	return o
}

// NewRootOwner builds the connection's root scope (guid "").
func NewRootOwner(conn *Connection) *ChannelOwner {
	o := &ChannelOwner{
		Emitter:     NewEmitter(),
		conn:        conn,
		typ:         "Root",
		guid:        "",
		initializer: map[string]any{},
		children:    make(map[string]*ChannelOwner),
	}
	o.channel = &Channel{conn: conn, owner: o}
	o.self = o
	return o
}

// Bind records the outer proxy embedding this owner. Factories call it once
// right after construction.
func (o *ChannelOwner) Bind(self any) {
	o.self = self
}

// Owner returns the base itself; promoted through embedding, it lets the
// connection reach the base of any proxy value.
func (o *ChannelOwner) Owner() *ChannelOwner {
	return o
}

// Self returns the bound proxy value.
func (o *ChannelOwner) Self() any {
	return o.self
}

func (o *ChannelOwner) GUID() string {
	return o.guid
}

func (o *ChannelOwner) Type() string {
	return o.typ
}

// Channel returns the RPC stub tagged with this owner's guid.
func (o *ChannelOwner) Channel() *Channel {
	return o.channel
}

// Connection returns the owning connection.
func (o *ChannelOwner) Connection() *Connection {
	return o.conn
}

// Parent returns the owning scope, nil for the root.
func (o *ChannelOwner) Parent() *ChannelOwner {
	return o.parent
}

// Initializer returns the immutable creation-time snapshot.
func (o *ChannelOwner) Initializer() map[string]any {
	return o.initializer
}

// InitializerString reads one string field of the initializer snapshot.
func (o *ChannelOwner) InitializerString(key string) string {
	s, _ := o.initializer[key].(string)
	return s
}

// MarkAsInternalType excludes this object from listener-driven subscription
// updates and other user-facing accounting.
func (o *ChannelOwner) MarkAsInternalType() {
	o.isInternalType = true
}

// SetEventToSubscriptionMapping declares which local events correspond to
// driver-side subscriptions; gaining a first listener (or losing the last)
// for a mapped event sends updateSubscription.
func (o *ChannelOwner) SetEventToSubscriptionMapping(mapping map[string]string) {
	o.eventSubscriptions = mapping
}

func (o *ChannelOwner) updateSubscription(event string, hasListeners bool) {
	protocolEvent, ok := o.eventSubscriptions[event]
	if !ok {
		return
	}
	o.channel.SendNoReply("updateSubscription", map[string]any{
		"event":   protocolEvent,
		"enabled": hasListeners,
	})
}

// dispose removes this owner and every descendant scope from the registry,
// depth-first. Idempotent. Caller holds the connection mutex.
func (o *ChannelOwner) dispose(reason string) {
	if o.parent != nil {
		delete(o.parent.children, o.guid)
	}
	o.conn.registry.Remove(o.guid)
	o.wasCollected = reason == "gc"

	for _, child := range o.children {
		child.parent = nil
		child.dispose(reason)
	}
	clear(o.children)
}

// adopt reparents child into this scope. Caller holds the connection mutex.
func (o *ChannelOwner) adopt(child *ChannelOwner) {
	if child.parent != nil {
		delete(child.parent.children, child.guid)
	}
	o.children[child.guid] = child
	child.parent = o
}
