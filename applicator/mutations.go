/*
 * Copyright (c) 2024, ecsnet. All rights reserved.
 */
package applicator

import (
	"github.com/pkg/errors"

	"github.com/ecsnet/replicore/codec"
	"github.com/ecsnet/replicore/config"
	"github.com/ecsnet/replicore/memsys"
	"github.com/ecsnet/replicore/registry"
)

// ApplyMutations decodes and applies one unreliable-channel Mutations
// message. Unlike Updates, a single message carries one server_tick for
// every entity it touches, so staleness is judged per entity
// (config.PerEntityStaleness, the default) or for the whole message
// (config.WholeMessageStaleness) depending on configuration — a dropped or
// reordered packet is an expected, frequent event on this channel, not an
// error (spec.md §4.F/§7).
func (a *Applicator) ApplyMutations(b []byte) error {
	_, n1, err := memsys.ReadUvarintAt(b, 0) // update_tick: not used here
	if err != nil {
		a.stats.AddMalformed(1)
		return errors.Wrap(ErrMalformedMessage, "update_tick")
	}
	serverTick64, n2, err := memsys.ReadUvarintAt(b, n1)
	if err != nil {
		a.stats.AddMalformed(1)
		return errors.Wrap(ErrMalformedMessage, "server_tick")
	}
	offset := n1 + n2
	tick := codec.Tick(serverTick64)

	cfg := a.cfg.Get()

	if cfg.MutationsStaleness == config.WholeMessageStaleness {
		a.mu.Lock()
		stale := tick < a.wholeMessageTick
		a.mu.Unlock()
		if stale {
			return nil
		}
	}

	count, n, err := memsys.ReadUvarintAt(b, offset)
	if err != nil {
		a.stats.AddMalformed(1)
		return errors.Wrap(ErrMalformedMessage, "entity count")
	}
	offset += n

	ctx := &registry.Context{Tick: tick, IsServer: false, EntityMap: entityMapperView{a}}

	for i := uint64(0); i < count; i++ {
		entity, n, err := memsys.ReadEntityAt(b, offset)
		if err != nil {
			a.stats.AddMalformed(1)
			return errors.Wrap(ErrMalformedMessage, "entity id")
		}
		offset += n
		bytesTotal, n, err := memsys.ReadUvarintAt(b, offset)
		if err != nil {
			a.stats.AddMalformed(1)
			return errors.Wrap(ErrMalformedMessage, "components_total_bytes")
		}
		offset += n
		end := offset + int(bytesTotal)
		if end < offset || end > len(b) {
			a.stats.AddMalformed(1)
			return errors.Wrap(ErrMalformedMessage, "component records overrun buffer")
		}

		apply := true
		if cfg.MutationsStaleness == config.PerEntityStaleness {
			a.mu.Lock()
			last, known := a.mutationTickByEnt[entity]
			if known && tick < last {
				apply = false
			} else {
				a.mutationTickByEnt[entity] = tick
			}
			a.mu.Unlock()
		}

		if apply {
			local := a.resolveBind(entity)
			for roff := offset; roff < end; {
				fns, value, n, err := codec.DecodeComponentRecord(b, roff)
				if err != nil {
					a.stats.AddMalformed(1)
					return errors.Wrap(ErrMalformedMessage, "component record")
				}
				a.deserializeAndInsert(ctx, local, fns, value)
				roff += n
			}
		}
		offset = end
	}

	if cfg.MutationsStaleness == config.WholeMessageStaleness {
		a.mu.Lock()
		if tick > a.wholeMessageTick {
			a.wholeMessageTick = tick
		}
		a.mu.Unlock()
	}

	a.stats.AddMutationsRx(1, len(b))
	return nil
}
