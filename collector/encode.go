package collector

import (
	"github.com/ecsnet/replicore/codec"
	"github.com/ecsnet/replicore/memsys"
	"github.com/ecsnet/replicore/worldapi"
	"github.com/ecsnet/replicore/xlog"
)

// emitUpdates builds and sends this client's Updates message, per spec.md
// §6's bit-exact wire format, if it would be non-empty. The message is
// assembled in the client's own SGL (spec.md §5: exclusive per-client
// buffer) rather than an ad hoc []byte.
func (m *Manager) emitUpdates(cs *clientState, tick codec.Tick,
	mappings []codec.Mapping, despawns []codec.EntityID, removals []worldapi.Removal,
	changes []entityChange, maxBytes int) error {
	var flags byte
	if len(mappings) > 0 {
		flags |= codec.FlagMappings
	}
	if len(despawns) > 0 {
		flags |= codec.FlagDespawns
	}
	if len(removals) > 0 {
		flags |= codec.FlagRemovals
	}
	changes = m.trimToBudget(cs, changes, maxBytes)
	if len(changes) > 0 {
		flags |= codec.FlagChanges
	}
	if flags == 0 {
		return nil
	}

	sgl := cs.sgl
	sgl.Clear()
	whole := sgl.WriteTick(tick)
	whole = mustCoalesce(whole, sgl.WriteBytes([]byte{flags}))

	if flags&codec.FlagMappings != 0 {
		whole = mustCoalesce(whole, sgl.WriteMappings(mappings))
	}
	if flags&codec.FlagDespawns != 0 {
		b, err := codec.EncodeEntityArray(nil, despawns, false)
		if err != nil {
			return err
		}
		whole = mustCoalesce(whole, sgl.WriteBytes(b))
	}
	if flags&codec.FlagRemovals != 0 {
		whole = mustCoalesce(whole, writeRemovals(sgl, removals))
	}
	if flags&codec.FlagChanges != 0 {
		whole = mustCoalesce(whole, writeEntityChanges(sgl, changes))
	}

	body := append([]byte(nil), sgl.GetRange(whole)...)
	if err := m.transport.SendReliable(cs.id, body); err != nil {
		return err
	}
	m.stats.AddUpdatesTx(1, len(body))
	return nil
}

// emitMutations builds and sends this client's Mutations message, if it
// would be non-empty.
func (m *Manager) emitMutations(cs *clientState, tick codec.Tick, mutations []entityChange, maxBytes int) error {
	mutations = m.trimToBudget(cs, mutations, maxBytes)
	if len(mutations) == 0 {
		return nil
	}

	sgl := cs.sgl
	sgl.Clear()
	whole := sgl.WriteUvarint(uint64(tick)) // update_tick
	whole = mustCoalesce(whole, sgl.WriteUvarint(uint64(tick)))  // server_tick
	whole = mustCoalesce(whole, writeEntityChanges(sgl, mutations))

	body := append([]byte(nil), sgl.GetRange(whole)...)
	if err := m.transport.SendUnreliable(cs.id, body); err != nil {
		return err
	}
	m.stats.AddMutationsTx(1, len(body))
	return nil
}

// mustCoalesce merges two ranges that the caller knows are adjacent because
// they were written back-to-back into the same SGL with nothing in between.
func mustCoalesce(a, b memsys.Range) memsys.Range {
	r, ok := memsys.Coalesce(a, b)
	xlog.Assertf(ok, "non-adjacent ranges %+v, %+v during message assembly", a, b)
	return r
}

// writeEntityChanges writes the shared `n × (entity, bytes_total,
// records...)` shape used by both the Updates CHANGES segment and the
// Mutations body (spec.md §6) into sgl, returning the whole segment's Range.
func writeEntityChanges(sgl *memsys.SGL, changes []entityChange) memsys.Range {
	whole := sgl.WriteUvarint(uint64(len(changes)))
	for _, ec := range changes {
		recordsLen := 0
		for _, c := range ec.comps {
			recordsLen += codec.SizeComponentRecord(c.fns, len(c.bytes))
		}
		whole = mustCoalesce(whole, sgl.WriteEntity(ec.entity))
		whole = mustCoalesce(whole, sgl.WriteUvarint(uint64(recordsLen)))
		for _, c := range ec.comps {
			whole = mustCoalesce(whole, writeComponentRecord(sgl, c.fns, c.bytes))
		}
	}
	return whole
}

// writeComponentRecord writes one (fns_id, size, bytes) triple and returns
// its Range.
func writeComponentRecord(sgl *memsys.SGL, fns codec.FnsID, value []byte) memsys.Range {
	r := sgl.WriteUvarint(uint64(fns))
	r = mustCoalesce(r, sgl.WriteUvarint(uint64(len(value))))
	r = mustCoalesce(r, sgl.WriteBytes(value))
	return r
}

// writeRemovals groups a flat removal event list by entity (preserving
// first-seen order) and writes the REMOVALS segment shape: `n × (entity, k,
// k × fns_id)` into sgl, returning its Range.
func writeRemovals(sgl *memsys.SGL, removals []worldapi.Removal) memsys.Range {
	order := make([]codec.EntityID, 0, len(removals))
	byEntity := make(map[codec.EntityID][]codec.FnsID, len(removals))
	for _, r := range removals {
		if _, ok := byEntity[r.Entity]; !ok {
			order = append(order, r.Entity)
		}
		byEntity[r.Entity] = append(byEntity[r.Entity], r.Fns)
	}

	whole := sgl.WriteUvarint(uint64(len(order)))
	for _, e := range order {
		fns := byEntity[e]
		whole = mustCoalesce(whole, sgl.WriteEntity(e))
		whole = mustCoalesce(whole, sgl.WriteUvarint(uint64(len(fns))))
		for _, f := range fns {
			whole = mustCoalesce(whole, sgl.WriteUvarint(uint64(f)))
		}
	}
	return whole
}

// trimToBudget drops trailing component records (dropping an entity entirely
// once all of its components are gone) so the CHANGES segment this produces
// stays under maxBytes, counting every drop via repstats. maxBytes <= 0
// disables the bound.
func (m *Manager) trimToBudget(cs *clientState, changes []entityChange, maxBytes int) []entityChange {
	if maxBytes <= 0 || len(changes) == 0 {
		return changes
	}

	total := codec.SizeUvarint(uint64(len(changes)))
	out := changes[:0:0]
	dropped := 0
	for _, ec := range changes {
		entitySize := codec.SizeUvarint(uint64(ec.entity))
		recordsLen := 0
		kept := ec.comps[:0:0]
		for _, c := range ec.comps {
			next := recordsLen + codec.SizeComponentRecord(c.fns, len(c.bytes))
			if total+entitySize+codec.SizeUvarint(uint64(next))+next > maxBytes {
				dropped++
				continue
			}
			recordsLen = next
			kept = append(kept, c)
		}
		if len(kept) == 0 {
			continue
		}
		total += entitySize + codec.SizeUvarint(uint64(recordsLen)) + recordsLen
		out = append(out, entityChange{entity: ec.entity, comps: kept})
	}

	if dropped > 0 {
		m.stats.AddComponentSkip(dropped)
		xlog.Throttled(xlog.Kind("collector-budget:"+string(cs.id)),
			"client %s dropped %d component record(s) over MaxMessageBytes=%d", cs.id, dropped, maxBytes)
	}
	return out
}
