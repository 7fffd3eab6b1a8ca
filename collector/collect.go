package collector

import (
	"golang.org/x/sync/errgroup"

	"github.com/ecsnet/replicore/codec"
	"github.com/ecsnet/replicore/registry"
	"github.com/ecsnet/replicore/worldapi"
	"github.com/ecsnet/replicore/xlog"
)

type componentRecord struct {
	fns   codec.FnsID
	bytes []byte
}

type entityChange struct {
	entity codec.EntityID
	comps  []componentRecord
}

// Collect runs one tick of the algorithm in spec.md §4.E over every
// connected client, sequentially by default or fanned out across clients
// via errgroup when ReplicationConfig.ParallelCollect is set (safe because
// each client owns non-overlapping buffers — spec.md §5).
func (m *Manager) Collect(tick codec.Tick) error {
	clients := m.syncClients()
	if len(clients) == 0 {
		return nil
	}

	cfg := m.cfg.Get()
	if !cfg.ParallelCollect {
		for _, cs := range clients {
			m.collectForClient(tick, cs)
		}
		return nil
	}

	var g errgroup.Group
	for _, cs := range clients {
		cs := cs
		g.Go(func() error {
			m.collectForClient(tick, cs)
			return nil
		})
	}
	return g.Wait()
}

// collectForClient implements spec.md §4.E step 2 for one client. Emit
// failures are recorded on the client (disconnected flag) rather than
// propagated, so one client's transport trouble never aborts the tick for
// everyone else.
func (m *Manager) collectForClient(tick codec.Tick, cs *clientState) {
	if cs.disconnected.Load() {
		return
	}

	maxBytes := m.cfg.Get().MaxMessageBytes
	everSent := cs.everSent.Load()
	lastSent := codec.Tick(cs.lastSentTick.Load())

	cs.mu.Lock()
	mappings := cs.pendingMappings
	cs.pendingMappings = nil
	cs.mu.Unlock()

	despawns := m.world.DespawnsSince(lastSent)
	removals := m.world.RemovalsSince(lastSent)

	var changes, mutations []entityChange
	ctx := &registry.Context{Tick: tick, IsServer: true}

	m.world.AllReplicated(func(e codec.EntityID, rep worldapi.Replicated) bool {
		if !m.visibility.IsVisible(e, cs.id) {
			return true
		}

		if needsReplication(everSent, lastSent, rep) {
			if comps := m.serializeComponents(ctx, e); len(comps) > 0 {
				changes = append(changes, entityChange{entity: e, comps: comps})
				rep.LastUpdatedTick = tick
				m.world.SetReplicated(e, rep)
			}
		}

		if rep.CreatedTick == tick {
			if comps := m.serializeComponents(ctx, e); len(comps) > 0 {
				mutations = append(mutations, entityChange{entity: e, comps: comps})
			}
		}
		return true
	})

	if err := m.emitUpdates(cs, tick, mappings, despawns, removals, changes, maxBytes); err != nil {
		xlog.Throttled(xlog.Kind("collector-emit:"+string(cs.id)), "client %s updates emit failed: %v", cs.id, err)
		cs.disconnected.Store(true)
		return
	}
	if err := m.emitMutations(cs, tick, mutations, maxBytes); err != nil {
		xlog.Throttled(xlog.Kind("collector-emit:"+string(cs.id)), "client %s mutations emit failed: %v", cs.id, err)
		cs.disconnected.Store(true)
		return
	}

	cs.lastSentTick.Store(int64(tick))
	cs.everSent.Store(true)
}

// serializeComponents produces a (fns, bytes) record for every registered
// component entity e currently holds, skipping (and counting) any that fail
// to serialize (spec.md §4.E/§7: a component failure never drops the
// entity).
func (m *Manager) serializeComponents(ctx *registry.Context, e codec.EntityID) []componentRecord {
	var comps []componentRecord
	m.registry.AllComponents(func(fns *registry.ComponentFns) bool {
		val, ok := m.world.Get(e, fns.ID)
		if !ok {
			return true
		}
		b, err := fns.Serialize(ctx, val)
		if err != nil {
			m.stats.AddComponentSkip(1)
			return true
		}
		comps = append(comps, componentRecord{fns: fns.ID, bytes: b})
		return true
	})
	return comps
}
