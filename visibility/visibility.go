// Package visibility implements the per-client entity visibility engine
// (spec.md §4.D): a global policy (All / Whitelist / Blacklist), explicit
// per-entity client lists, a globally-visible override set, change-delta
// tracking between ticks, and a short-TTL query cache for the hot
// is_visible path.
/*
 * Copyright (c) 2024, ecsnet. All rights reserved.
 */
package visibility

import (
	"sync"

	"github.com/ecsnet/replicore/codec"
)

// ClientID identifies a connected client. A plain string so hosts can use
// whatever connection-id scheme they already have (see package clientid for
// one way to generate them).
type ClientID string

// Policy is the global rule governing which entities a client may observe
// absent an explicit per-entity list.
type Policy uint8

const (
	// All: every entity is visible to every client; explicit lists are
	// ignored entirely.
	All Policy = iota
	// Whitelist: visible to a client iff the explicit list contains that
	// client, or the entity is globally visible.
	Whitelist
	// Blacklist: visible to a client iff the explicit list does NOT
	// contain that client, or the entity is globally visible.
	Blacklist
)

type entityClient struct {
	entity codec.EntityID
	client ClientID
}

// Engine is the visibility engine. Zero value is not usable; use New.
type Engine struct {
	mu sync.RWMutex

	policy         Policy
	defaultVisible bool

	// perEntityClients holds explicit (entity, client) associations; their
	// meaning (allow vs deny) depends on policy.
	perEntityClients map[codec.EntityID]map[ClientID]struct{}
	globallyVisible  map[codec.EntityID]struct{}

	// snapshots for compute_changes/apply_changes: "current" accumulates
	// this tick's evaluations, "previous" is what the prior tick ended
	// with. apply_changes moves current -> previous and clears current.
	current  map[entityClient]bool
	previous map[entityClient]bool

	cache   *ttlCache
	accel   *blacklistAccelerator
	history *historyRing
}

// Config bundles the engine's tunables (spec.md §9's "explicit config
// struct enumerating every option" strategy, applied here instead of loose
// constructor parameters).
type Config struct {
	Policy         Policy
	DefaultVisible bool
	CacheTTL       uint32 // in collector ticks; 0 disables caching
	HistoryCap     int    // 0 disables history tracking
}

// New constructs an Engine per cfg.
func New(cfg Config) *Engine {
	e := &Engine{
		policy:           cfg.Policy,
		defaultVisible:   cfg.DefaultVisible,
		perEntityClients: make(map[codec.EntityID]map[ClientID]struct{}),
		globallyVisible:  make(map[codec.EntityID]struct{}),
		current:          make(map[entityClient]bool),
		previous:         make(map[entityClient]bool),
	}
	if cfg.CacheTTL > 0 {
		e.cache = newTTLCache(cfg.CacheTTL)
	}
	if cfg.HistoryCap > 0 {
		e.history = newHistoryRing(cfg.HistoryCap)
	}
	if cfg.Policy != All {
		e.accel = newBlacklistAccelerator()
	}
	return e
}

// Set records (or clears) an explicit (entity, client) association.
// Invalidates any cached is_visible result for the pair.
func (e *Engine) Set(entity codec.EntityID, client ClientID, visible bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	set, ok := e.perEntityClients[entity]
	if !ok {
		set = make(map[ClientID]struct{})
		e.perEntityClients[entity] = set
	}
	if visible {
		set[client] = struct{}{}
	} else {
		delete(set, client)
		if len(set) == 0 {
			delete(e.perEntityClients, entity)
		}
	}
	if e.cache != nil {
		e.cache.invalidate(entity, client)
	}
	if e.accel != nil {
		e.accel.rebuild(e.perEntityClients)
	}
}

// SetGlobal marks entity as visible to every client regardless of policy
// (or clears that override).
func (e *Engine) SetGlobal(entity codec.EntityID, visible bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if visible {
		e.globallyVisible[entity] = struct{}{}
	} else {
		delete(e.globallyVisible, entity)
	}
	if e.cache != nil {
		e.cache.invalidateEntity(entity)
	}
}

// IsVisible evaluates (and caches) whether entity is visible to client under
// the engine's current policy.
func (e *Engine) IsVisible(entity codec.EntityID, client ClientID) bool {
	if e.cache != nil {
		if v, ok := e.cache.get(entity, client); ok {
			return v
		}
	}
	e.mu.RLock()
	visible := e.evalLocked(entity, client)
	e.mu.RUnlock()
	if e.cache != nil {
		e.cache.put(entity, client, visible)
	}
	return visible
}

func (e *Engine) evalLocked(entity codec.EntityID, client ClientID) bool {
	if _, ok := e.globallyVisible[entity]; ok {
		return true
	}
	switch e.policy {
	case All:
		return true
	case Whitelist:
		set, ok := e.perEntityClients[entity]
		if !ok {
			return e.defaultVisible
		}
		if e.accel != nil && e.accel.definitelyAbsent(entity, client) {
			return false
		}
		_, listed := set[client]
		return listed
	case Blacklist:
		set, ok := e.perEntityClients[entity]
		if !ok {
			return e.defaultVisible
		}
		if e.accel != nil && e.accel.definitelyAbsent(entity, client) {
			return true
		}
		_, listed := set[client]
		return !listed
	default:
		return e.defaultVisible
	}
}

// VisibleClientsOf returns every client the entity is currently visible to,
// evaluated against perEntityClients/globallyVisible (not the cache — this
// is an O(list size) enumeration, not a hot-path point lookup).
func (e *Engine) VisibleClientsOf(entity codec.EntityID, allClients []ClientID) []ClientID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ClientID, 0, len(allClients))
	for _, c := range allClients {
		if e.evalLocked(entity, c) {
			out = append(out, c)
		}
	}
	return out
}

// VisibleEntitiesOf returns every entity in candidates visible to client.
func (e *Engine) VisibleEntitiesOf(client ClientID, candidates []codec.EntityID) []codec.EntityID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]codec.EntityID, 0, len(candidates))
	for _, ent := range candidates {
		if e.evalLocked(ent, client) {
			out = append(out, ent)
		}
	}
	return out
}

// Transition describes one entity's visibility change for one client
// between the previous and current frame.
type Transition struct {
	Entity      codec.EntityID
	Client      ClientID
	WasVisible  bool
	IsVisible   bool
}

// Changes is the result of ComputeChanges.
type Changes struct {
	BecameVisible []Transition
	BecameHidden  []Transition
	Unchanged     []Transition
}

// ComputeChanges evaluates entities against client's current visibility,
// comparing each result to the previous frame's recorded value, and stages
// the new evaluation into the "current" snapshot for the next ApplyChanges.
// Spec.md §4.D describes this per a presumably-implicit client context; this
// implementation takes client explicitly (see DESIGN.md open-question
// resolution).
func (e *Engine) ComputeChanges(client ClientID, entities []codec.EntityID) Changes {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out Changes
	for _, ent := range entities {
		key := entityClient{entity: ent, client: client}
		isVis := e.evalLocked(ent, client)
		wasVis, known := e.previous[key]
		t := Transition{Entity: ent, Client: client, WasVisible: wasVis, IsVisible: isVis}
		e.current[key] = isVis
		switch {
		case !known:
			if isVis {
				out.BecameVisible = append(out.BecameVisible, t)
			} else {
				out.BecameHidden = append(out.BecameHidden, t)
			}
		case wasVis == isVis:
			out.Unchanged = append(out.Unchanged, t)
		case isVis:
			out.BecameVisible = append(out.BecameVisible, t)
		default:
			out.BecameHidden = append(out.BecameHidden, t)
		}
		if e.history != nil && (!known || wasVis != isVis) {
			e.history.push(t)
		}
	}
	return out
}

// ApplyChanges promotes this tick's accumulated evaluations into the
// previous-frame snapshot, clears the current one, and trims expired cache
// entries. Call once per tick after every client's ComputeChanges.
func (e *Engine) ApplyChanges() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.previous = e.current
	e.current = make(map[entityClient]bool, len(e.previous))
	if e.cache != nil {
		e.cache.sweepExpired()
	}
}

// RemoveEntity purges every trace of entity: explicit lists, global
// override, snapshots, cache, and the blacklist accelerator.
func (e *Engine) RemoveEntity(entity codec.EntityID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.perEntityClients, entity)
	delete(e.globallyVisible, entity)
	for k := range e.previous {
		if k.entity == entity {
			delete(e.previous, k)
		}
	}
	for k := range e.current {
		if k.entity == entity {
			delete(e.current, k)
		}
	}
	if e.cache != nil {
		e.cache.invalidateEntity(entity)
	}
	if e.accel != nil {
		e.accel.rebuild(e.perEntityClients)
	}
}

// RemoveClient purges every trace of client.
func (e *Engine) RemoveClient(client ClientID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, set := range e.perEntityClients {
		delete(set, client)
	}
	for k := range e.previous {
		if k.client == client {
			delete(e.previous, k)
		}
	}
	for k := range e.current {
		if k.client == client {
			delete(e.current, k)
		}
	}
	if e.cache != nil {
		e.cache.invalidateClient(client)
	}
	if e.accel != nil {
		e.accel.rebuild(e.perEntityClients)
	}
}

// CleanupRemovedEntities drops every tracked entity not present in alive,
// an idempotent bulk reconciliation against the world's authoritative set.
func (e *Engine) CleanupRemovedEntities(alive map[codec.EntityID]struct{}) {
	e.mu.RLock()
	var stale []codec.EntityID
	for ent := range e.perEntityClients {
		if _, ok := alive[ent]; !ok {
			stale = append(stale, ent)
		}
	}
	for ent := range e.globallyVisible {
		if _, ok := alive[ent]; !ok {
			stale = append(stale, ent)
		}
	}
	e.mu.RUnlock()
	for _, ent := range stale {
		e.RemoveEntity(ent)
	}
}

// CleanupDisconnectedClients drops every tracked client not present in
// alive.
func (e *Engine) CleanupDisconnectedClients(alive map[ClientID]struct{}) {
	e.mu.RLock()
	stale := make(map[ClientID]struct{})
	for _, set := range e.perEntityClients {
		for c := range set {
			if _, ok := alive[c]; !ok {
				stale[c] = struct{}{}
			}
		}
	}
	e.mu.RUnlock()
	for c := range stale {
		e.RemoveClient(c)
	}
}
