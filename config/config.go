// Package config holds the replication engine's tunables (spec.md §9's
// design notes, turned into an explicit struct) and a hot-swappable global
// owner for them, mirroring cmn/config.go's GCO (Global Config Owner)
// pattern: readers load an atomic snapshot pointer with no locking, writers
// go through BeginUpdate/CommitUpdate to serialize concurrent updates.
/*
 * Copyright (c) 2024, ecsnet. All rights reserved.
 */
package config

import (
	"time"

	"github.com/ecsnet/replicore/visibility"
)

// ReplicationConfig enumerates every tunable of the replication engine.
// Every field has a documented default via Default(); nothing is read from
// a package-level global except through Owner.
type ReplicationConfig struct {
	// Visibility holds the visibility engine's policy and cache/history
	// sizing (§4.D).
	Visibility VisibilityConfig

	// ParallelCollect opts the server collector into per-client fan-out via
	// errgroup instead of a sequential loop (§4.E).
	ParallelCollect bool

	// Compression configures nettransport.NewCompressing, which wraps a
	// host's Transport with whole-message lz4 compression transparent to
	// the collector/applicator wire format (§4.E).
	Compression CompressionConfig

	// MutationsStaleness selects how the applicator rejects out-of-order
	// Mutations messages (§4.F).
	MutationsStaleness StalenessMode

	// HousekeepInterval is the interval a host passes to housekeep.New for
	// its periodic sweepers (cmd/replicationsim uses it to drop
	// disconnected clients from the visibility engine).
	HousekeepInterval time.Duration

	// MaxMessageBytes bounds the entity-records part of a single message
	// (the Updates CHANGES segment, or the Mutations body); the collector
	// greedily drops trailing component records (and the entity itself,
	// once all of its records are gone) that would push that part past
	// this size (0 disables the bound). The tick header, flags byte and the
	// MAPPINGS, DESPAWNS and REMOVALS segments are not counted against it.
	// Dropped records count against repstats.Registry.AddComponentSkip.
	MaxMessageBytes int
}

// VisibilityConfig configures package visibility's Engine.
type VisibilityConfig struct {
	Policy         visibility.Policy
	DefaultVisible bool
	CacheTTLTicks  uint32
	HistoryCap     int
}

// CompressionConfig holds the settings for nettransport.Compressing's
// optional lz4 compression.
type CompressionConfig struct {
	Enabled bool
	// MinSizeBytes is the smallest uncompressed message the compressing
	// transport will bother compressing; below this the lz4 framing
	// overhead isn't worth it.
	MinSizeBytes int
}

// StalenessMode selects how the applicator decides a Mutations message has
// arrived out of order (spec.md §4.F).
type StalenessMode uint8

const (
	// PerEntityStaleness tracks the last-applied tick per entity and skips
	// only the stale entity's changes within an otherwise-applied message.
	PerEntityStaleness StalenessMode = iota
	// WholeMessageStaleness compares the message's tick against the newest
	// applied tick and drops the entire message if it is older; a message
	// with an equal tick is still applied.
	WholeMessageStaleness
)

// Default returns the engine's out-of-the-box configuration.
func Default() *ReplicationConfig {
	return &ReplicationConfig{
		Visibility: VisibilityConfig{
			Policy:         visibility.All,
			DefaultVisible: true,
			CacheTTLTicks:  4,
			HistoryCap:     256,
		},
		ParallelCollect: false,
		Compression: CompressionConfig{
			Enabled:      false,
			MinSizeBytes: 1 << 10,
		},
		MutationsStaleness: PerEntityStaleness,
		HousekeepInterval:  50 * time.Millisecond,
		MaxMessageBytes:    0,
	}
}

// Clone returns a shallow copy of c. ReplicationConfig has no slice/map
// fields that alias mutable state, so shallow is sufficient (cmn/config.go
// makes the same call for its mostly-value Config).
func (c *ReplicationConfig) Clone() *ReplicationConfig {
	clone := *c
	return &clone
}
