// Package applicator turns received Updates and Mutations bytes into world
// state changes in the deterministic order spec.md §4.F requires: mappings,
// then despawns, then removals, then changes. Applicator owns the
// bidirectional server↔client entity map — single-owner on the client side
// per spec.md §3.
/*
 * Copyright (c) 2024, ecsnet. All rights reserved.
 */
package applicator

import (
	"sync"

	"github.com/ecsnet/replicore/codec"
	"github.com/ecsnet/replicore/config"
	"github.com/ecsnet/replicore/registry"
	"github.com/ecsnet/replicore/repstats"
	"github.com/ecsnet/replicore/worldapi"
)

// Applicator applies decoded replication messages to a World.
type Applicator struct {
	world    worldapi.World
	registry *registry.Registry
	cfg      *config.Owner
	stats    *repstats.Registry

	mu             sync.Mutex
	serverToClient map[codec.EntityID]codec.EntityID
	clientToServer map[codec.EntityID]codec.EntityID

	serverUpdateTick  codec.Tick
	wholeMessageTick  codec.Tick
	mutationTickByEnt map[codec.EntityID]codec.Tick
}

// New constructs an Applicator. stats may be nil (every call becomes a
// no-op).
func New(world worldapi.World, reg *registry.Registry, cfg *config.Owner, stats *repstats.Registry) *Applicator {
	return &Applicator{
		world:             world,
		registry:          reg,
		cfg:               cfg,
		stats:             stats,
		serverToClient:    make(map[codec.EntityID]codec.EntityID),
		clientToServer:    make(map[codec.EntityID]codec.EntityID),
		mutationTickByEnt: make(map[codec.EntityID]codec.Tick),
	}
}

// ClientEntityFor resolves a server entity id to its client-local
// counterpart, if known.
func (a *Applicator) ClientEntityFor(server codec.EntityID) (codec.EntityID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	local, ok := a.serverToClient[server]
	return local, ok
}

// ServerEntityFor resolves a client-local entity id back to the server id
// it was bound to, if any.
func (a *Applicator) ServerEntityFor(local codec.EntityID) (codec.EntityID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	server, ok := a.clientToServer[local]
	return server, ok
}

// ClearState drops every mapping and tick-tracking state. Called when the
// transport reports this connection disconnected (spec.md §7).
func (a *Applicator) ClearState() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.serverToClient = make(map[codec.EntityID]codec.EntityID)
	a.clientToServer = make(map[codec.EntityID]codec.EntityID)
	a.serverUpdateTick = 0
	a.wholeMessageTick = 0
	a.mutationTickByEnt = make(map[codec.EntityID]codec.Tick)
}

// entityMapperView adapts Applicator to registry.EntityMapper without
// exposing its internals to package registry.
type entityMapperView struct{ a *Applicator }

func (v entityMapperView) ToLocal(server codec.EntityID) (codec.EntityID, bool) {
	return v.a.ClientEntityFor(server)
}

func (a *Applicator) bind(server, local codec.EntityID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.serverToClient[server] = local
	a.clientToServer[local] = server
}

// resolveBind returns the client entity bound to server, spawning and
// binding a fresh one if absent. Used by Mutations processing, which does
// not insert a Replicated marker. (REMOVALS processing does not spawn: it
// skips server entities with no local binding.)
func (a *Applicator) resolveBind(server codec.EntityID) codec.EntityID {
	if local, ok := a.ClientEntityFor(server); ok {
		return local
	}
	local := a.world.Spawn()
	a.bind(server, local)
	return local
}

// resolveForChange is resolveBind plus, only on first creation, inserting
// Replicated{ReplicationID: server, CreatedTick: tick} — spec.md §4.F step
// 6's "creating + binding a new client entity if absent, and inserting
// Replicated{...}".
func (a *Applicator) resolveForChange(server codec.EntityID, tick codec.Tick) codec.EntityID {
	if local, ok := a.ClientEntityFor(server); ok {
		return local
	}
	local := a.world.Spawn()
	a.bind(server, local)
	a.world.SetReplicated(local, worldapi.Replicated{ReplicationID: server, CreatedTick: tick, LastUpdatedTick: tick})
	return local
}

func (a *Applicator) applyMapping(m codec.Mapping) {
	if _, already := a.ClientEntityFor(m.Server); already {
		return
	}
	local := m.Client
	if !a.world.Contains(local) {
		local = a.world.Spawn()
	}
	a.bind(m.Server, local)
}

func (a *Applicator) applyDespawn(server codec.EntityID) {
	a.mu.Lock()
	local, ok := a.serverToClient[server]
	if ok {
		delete(a.serverToClient, server)
		delete(a.clientToServer, local)
	}
	a.mu.Unlock()
	if ok {
		a.world.Despawn(local)
	}
}

// deserializeAndInsert looks up fns, deserializes value into the world
// under local, and skips (logging, counting) an unknown id or a failed
// deserialize without aborting the enclosing entity or message.
func (a *Applicator) deserializeAndInsert(ctx *registry.Context, local codec.EntityID, fns codec.FnsID, value []byte) {
	cf, ok := a.registry.GetByID(fns)
	if !ok {
		a.stats.AddUnknownFns(1)
		return
	}
	v, err := cf.Deserialize(ctx, value)
	if err != nil {
		a.stats.AddComponentSkip(1)
		return
	}
	a.world.Insert(local, fns, v)
}
