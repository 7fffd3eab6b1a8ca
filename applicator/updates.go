/*
 * Copyright (c) 2024, ecsnet. All rights reserved.
 */
package applicator

import (
	"github.com/pkg/errors"

	"github.com/ecsnet/replicore/codec"
	"github.com/ecsnet/replicore/memsys"
	"github.com/ecsnet/replicore/registry"
)

// ErrMalformedMessage wraps a codec decode failure encountered partway
// through an Updates or Mutations message. Any mappings or despawns applied
// before the failure point remain applied; nothing past the failure is.
var ErrMalformedMessage = errors.New("replicore/applicator: malformed message")

// ApplyUpdates decodes and applies one reliable-channel Updates message,
// in the fixed segment order spec.md §6 defines: MAPPINGS, DESPAWNS,
// REMOVALS, CHANGES. A stale server_tick (older than the last Updates
// message already applied) still applies MAPPINGS and DESPAWNS but skips
// REMOVALS and CHANGES — late-arriving component data for an entity the
// client has already moved past would only regress it.
func (a *Applicator) ApplyUpdates(b []byte) error {
	tick64, n, err := memsys.ReadUvarintAt(b, 0)
	if err != nil {
		a.stats.AddMalformed(1)
		return errors.Wrap(ErrMalformedMessage, "server_tick")
	}
	offset := n
	if offset >= len(b) {
		a.stats.AddMalformed(1)
		return errors.Wrap(ErrMalformedMessage, "missing flags byte")
	}
	flags := b[offset]
	offset++
	tick := codec.Tick(tick64)

	a.mu.Lock()
	stale := tick < a.serverUpdateTick
	if !stale {
		a.serverUpdateTick = tick
	}
	a.mu.Unlock()

	if flags&codec.FlagMappings != 0 {
		pairs, n, err := memsys.ReadMappingsAt(b, offset)
		if err != nil {
			a.stats.AddMalformed(1)
			return errors.Wrap(ErrMalformedMessage, "mappings")
		}
		offset += n
		for _, p := range pairs {
			a.applyMapping(p)
		}
	}

	if flags&codec.FlagDespawns != 0 {
		entities, n, err := codec.DecodeEntityArray(b, offset, false)
		if err != nil {
			a.stats.AddMalformed(1)
			return errors.Wrap(ErrMalformedMessage, "despawns")
		}
		offset += n
		for _, e := range entities {
			a.applyDespawn(e)
		}
	}

	if stale {
		return nil
	}

	if flags&codec.FlagRemovals != 0 {
		n, err := a.applyRemovalsSegment(b, offset)
		if err != nil {
			a.stats.AddMalformed(1)
			return errors.Wrap(ErrMalformedMessage, "removals")
		}
		offset += n
	}

	if flags&codec.FlagChanges != 0 {
		if _, err := a.applyChangesSegment(b, offset, tick); err != nil {
			a.stats.AddMalformed(1)
			return errors.Wrap(ErrMalformedMessage, "changes")
		}
	}

	a.stats.AddUpdatesRx(1, len(b))
	return nil
}

func (a *Applicator) applyRemovalsSegment(b []byte, offset int) (int, error) {
	start := offset
	count, n, err := memsys.ReadUvarintAt(b, offset)
	if err != nil {
		return 0, err
	}
	offset += n
	for i := uint64(0); i < count; i++ {
		entity, n, err := memsys.ReadEntityAt(b, offset)
		if err != nil {
			return 0, err
		}
		offset += n
		k, n, err := memsys.ReadUvarintAt(b, offset)
		if err != nil {
			return 0, err
		}
		offset += n

		local, known := a.ClientEntityFor(entity)
		for j := uint64(0); j < k; j++ {
			fns, n, err := memsys.ReadUvarintAt(b, offset)
			if err != nil {
				return 0, err
			}
			offset += n
			if known {
				a.world.Remove(local, codec.FnsID(fns))
			}
		}
	}
	return offset - start, nil
}

func (a *Applicator) applyChangesSegment(b []byte, offset int, tick codec.Tick) (int, error) {
	start := offset
	count, n, err := memsys.ReadUvarintAt(b, offset)
	if err != nil {
		return 0, err
	}
	offset += n
	ctx := &registry.Context{Tick: tick, IsServer: false, EntityMap: entityMapperView{a}}

	for i := uint64(0); i < count; i++ {
		entity, n, err := memsys.ReadEntityAt(b, offset)
		if err != nil {
			return 0, err
		}
		offset += n
		bytesTotal, n, err := memsys.ReadUvarintAt(b, offset)
		if err != nil {
			return 0, err
		}
		offset += n
		end := offset + int(bytesTotal)
		if end < offset || end > len(b) {
			return 0, codec.ErrMalformed
		}

		local := a.resolveForChange(entity, tick)
		for roff := offset; roff < end; {
			fns, value, n, err := codec.DecodeComponentRecord(b, roff)
			if err != nil {
				return 0, err
			}
			a.deserializeAndInsert(ctx, local, fns, value)
			roff += n
		}
		offset = end
	}
	return offset - start, nil
}
