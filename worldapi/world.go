// Package worldapi defines the World interface the collector and
// applicator consume, plus MemWorld, an in-memory reference implementation
// used by every package's test suite and by cmd/replicationsim. The real
// ECS world a host wires up in production is out of scope for this module.
/*
 * Copyright (c) 2024, ecsnet. All rights reserved.
 */
package worldapi

import "github.com/ecsnet/replicore/codec"

// Replicated marks an entity as a replication candidate (spec.md §3).
type Replicated struct {
	ReplicationID   codec.EntityID
	CreatedTick     codec.Tick
	LastUpdatedTick codec.Tick
}

// Removal records one component removed from one entity, for the
// collector's REMOVALS segment.
type Removal struct {
	Entity codec.EntityID
	Fns    codec.FnsID
}

// World is the narrow interface the collector reads and the applicator
// writes. The only implementation shipped here is MemWorld, for tests and
// the demo harness; hosts adapt their own ECS storage to it.
type World interface {
	Spawn() codec.EntityID
	Despawn(codec.EntityID)
	Insert(codec.EntityID, codec.FnsID, any)
	Remove(codec.EntityID, codec.FnsID)
	Get(codec.EntityID, codec.FnsID) (any, bool)
	Contains(codec.EntityID) bool

	// Query invokes yield for every entity currently holding a component
	// registered under fns, stopping early if yield returns false.
	Query(fns codec.FnsID, yield func(codec.EntityID, any) bool)

	Replicated(codec.EntityID) (Replicated, bool)
	SetReplicated(codec.EntityID, Replicated)

	// AllReplicated invokes yield for every entity bearing the Replicated
	// marker, stopping early if yield returns false. The collector's only
	// entry point for "every replication candidate" (spec.md §4.E step 2).
	AllReplicated(yield func(codec.EntityID, Replicated) bool)

	// RemovalsSince and DespawnsSince enumerate world-mutation events
	// recorded strictly after tick; spec.md §6 allows a world to return
	// nil for both if it keeps no event history, in which case the
	// collector simply never emits REMOVALS/DESPAWNS.
	RemovalsSince(tick codec.Tick) []Removal
	DespawnsSince(tick codec.Tick) []codec.EntityID
}
