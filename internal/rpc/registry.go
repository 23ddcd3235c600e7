package rpc

import "fmt"

// Registry is the connection-wide identity map: one local proxy per guid for
// the lifetime of that guid. Scope (parent/child) bookkeeping lives on the
// owners themselves; the registry is the flat lookup surface.
//
// Not self-locking: the owning connection serializes access.
type Registry struct {
	objects map[string]*ChannelOwner
}

func NewRegistry() *Registry {
	return &Registry{objects: make(map[string]*ChannelOwner)}
}

// Register adds owner under its guid. Registering a live guid twice without
// an intervening disposal is a protocol error; a guid freed by disposal may
// be reused for a fresh object.
func (r *Registry) Register(owner *ChannelOwner) error {
	if _, ok := r.objects[owner.guid]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateGUID, owner.guid)
	}
	r.objects[owner.guid] = owner
	return nil
}

// Lookup returns the owner for guid, if it is still live.
func (r *Registry) Lookup(guid string) (*ChannelOwner, bool) {
	owner, ok := r.objects[guid]
	return owner, ok
}

// Remove erases guid from the map. Removing an unknown guid is a no-op so
// disposal stays idempotent.
func (r *Registry) Remove(guid string) {
	delete(r.objects, guid)
}

// Len reports the number of live objects.
func (r *Registry) Len() int {
	return len(r.objects)
}
