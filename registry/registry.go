// Package registry maps component types to stable numeric ids and holds the
// serialize/deserialize closures that are the only code in the system that
// knows how to turn an in-world component value into bytes and back
// (spec.md §4.C). It is the collector's and applicator's sole dependency on
// "what a component actually is".
/*
 * Copyright (c) 2024, ecsnet. All rights reserved.
 */
package registry

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"

	"github.com/ecsnet/replicore/codec"
	"github.com/ecsnet/replicore/xlog"
)

// ErrUnknownID is the error kind for an FnsID with no registered component.
// Nothing in this package returns it: GetByID reports such a miss as
// ok == false.
var ErrUnknownID = errors.New("replicore/registry: unknown fns id")

// ErrAlreadyRegistered is returned when the same Go type is registered a
// second time.
var ErrAlreadyRegistered = errors.New("replicore/registry: component type already registered")

// ErrSerializeFailed wraps a recovered panic from inside a registered
// closure; per spec.md §4.C/§7 this is a per-component skip, never fatal.
var ErrSerializeFailed = errors.New("replicore/registry: component serialize/deserialize failed")

// Context is threaded through every Serialize/Deserialize call. World is
// read-only from the registry's point of view (the collector reads, the
// applicator writes, never both at once — spec.md §5). EntityMap is
// populated only on the client, during Deserialize, so that a component's
// inner EntityID fields can be rewritten transparently; a nil EntityMap
// (server-side serialize) or a miss (unknown server entity) both mean "pass
// through unchanged".
type Context struct {
	Tick      codec.Tick
	IsServer  bool
	EntityMap EntityMapper
}

// EntityMapper resolves a server EntityID to its local (client) EntityID.
// Implemented by an adapter over applicator.Applicator's entity map; kept as
// an interface here so registry
// has no dependency on applicator.
type EntityMapper interface {
	ToLocal(server codec.EntityID) (local codec.EntityID, ok bool)
}

// MapEntity rewrites e through ctx's EntityMap, per spec.md §4.C: a missing
// entry passes through unchanged, and so does a nil mapper (server side).
func (ctx *Context) MapEntity(e codec.EntityID) codec.EntityID {
	if ctx.EntityMap == nil {
		return e
	}
	if local, ok := ctx.EntityMap.ToLocal(e); ok {
		return local
	}
	return e
}

// ComponentFns is the registry's only knowledge of a component type: how to
// turn a value into bytes and back. Value is `any` rather than a type
// parameter because the registry stores a heterogeneous table of them;
// Register below is the generic, type-safe entry point callers actually use.
type ComponentFns struct {
	ID          FnsID
	Name        string
	serialize   func(ctx *Context, value any) ([]byte, error)
	deserialize func(ctx *Context, b []byte) (any, error)
}

// Serialize converts value to bytes. A panic inside the underlying closure
// is recovered and reported as ErrSerializeFailed — spec.md §4.E/§7 require
// the enclosing entity to still be emitted with its other components
// intact.
func (c *ComponentFns) Serialize(ctx *Context, value any) (b []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			xlog.Throttled(xlog.Kind("serialize-panic:"+c.Name), "component %s serialize panicked: %v", c.Name, r)
			err = errors.Wrapf(ErrSerializeFailed, "component %s", c.Name)
		}
	}()
	return c.serialize(ctx, value)
}

// Deserialize is the inverse of Serialize, with the same panic recovery.
func (c *ComponentFns) Deserialize(ctx *Context, b []byte) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			xlog.Throttled(xlog.Kind("deserialize-panic:"+c.Name), "component %s deserialize panicked: %v", c.Name, r)
			err = errors.Wrapf(ErrSerializeFailed, "component %s", c.Name)
		}
	}()
	return c.deserialize(ctx, b)
}

// FnsID is the stable numeric id a Registry assigns to a registered
// component type. Identical on server and every client, assuming shared
// registration order (spec.md §3 — divergence is undefined behavior).
type FnsID = codec.FnsID

// Registry is the process-wide (well — app-wide; spec.md §9 forbids module
// globals) table of component types. Once Freeze is called it is read-only
// and safe to share across goroutines without further locking, mirroring
// cluster.Smap's "immutable once published" discipline.
type Registry struct {
	mu     sync.RWMutex
	byID   []*ComponentFns
	byType map[reflect.Type]FnsID
	frozen bool
}

// New returns an empty, unfrozen Registry.
func New() *Registry {
	return &Registry{byType: make(map[reflect.Type]FnsID)}
}

// Register adds a component type T under hint (if non-nil) or the next
// dense id (0, 1, 2, ...). Re-registering the same Go type is
// ErrAlreadyRegistered. Registering after Freeze is an invariant violation
// (programmer error, not a recoverable one — spec.md §9's "registry is
// read-only after the build phase").
func Register[T any](r *Registry, hint *FnsID,
	serialize func(ctx *Context, v T) ([]byte, error),
	deserialize func(ctx *Context, b []byte) (T, error)) (FnsID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	xlog.Assert(!r.frozen, "registry: Register called after Freeze")

	var zero T
	typ := reflect.TypeOf(zero)
	if _, exists := r.byType[typ]; exists {
		return 0, errors.Wrapf(ErrAlreadyRegistered, "%s", typeName(typ))
	}

	id := FnsID(len(r.byID))
	if hint != nil {
		id = *hint
	}
	fns := &ComponentFns{
		ID:   id,
		Name: typeName(typ),
		serialize: func(ctx *Context, v any) ([]byte, error) {
			return serialize(ctx, v.(T))
		},
		deserialize: func(ctx *Context, b []byte) (any, error) {
			return deserialize(ctx, b)
		},
	}
	if int(id) >= len(r.byID) {
		grown := make([]*ComponentFns, id+1)
		copy(grown, r.byID)
		r.byID = grown
	}
	xlog.Assert(r.byID[id] == nil, "registry: id %d already occupied", id)
	r.byID[id] = fns
	r.byType[typ] = id
	return id, nil
}

// GetByID returns the ComponentFns registered under id, if any.
func (r *Registry) GetByID(id FnsID) (*ComponentFns, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.byID) || r.byID[id] == nil {
		return nil, false
	}
	return r.byID[id], true
}

// IDOf returns the FnsID registered for T, if registered.
func IDOf[T any](r *Registry) (FnsID, bool) {
	var zero T
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byType[reflect.TypeOf(zero)]
	return id, ok
}

// AllComponents invokes yield for every registered component in ascending id
// order, stopping early if yield returns false. A plain callback rather than
// Go's range-over-func iterator syntax, so this package stays buildable
// against go.mod's language version floor.
func (r *Registry) AllComponents(yield func(*ComponentFns) bool) {
	r.mu.RLock()
	snapshot := append([]*ComponentFns(nil), r.byID...)
	r.mu.RUnlock()
	for _, fns := range snapshot {
		if fns == nil {
			continue
		}
		if !yield(fns) {
			return
		}
	}
}

// Freeze marks the registry read-only; subsequent Register calls panic.
// Call this once, after wiring up every replicated component type, before
// handing the Registry to a collector/applicator pair.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t.Kind() == reflect.Ptr {
		return "*" + t.Elem().String()
	}
	return t.String()
}
