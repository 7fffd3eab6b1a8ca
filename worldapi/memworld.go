package worldapi

import (
	"sort"
	"sync"

	"github.com/ecsnet/replicore/codec"
)

type componentKey struct {
	entity codec.EntityID
	fns    codec.FnsID
}

// MemWorld is an in-memory World: plain maps behind one mutex, event logs
// for removals/despawns that RemovalsSince/DespawnsSince filter by tick.
// Sufficient for every package's tests and the demo harness; not a
// production ECS.
type MemWorld struct {
	mu sync.Mutex

	nextEntity codec.EntityID
	entities   map[codec.EntityID]struct{}
	components map[componentKey]any
	replicated map[codec.EntityID]Replicated

	removalLog []tickedRemoval
	despawnLog []tickedDespawn

	// currentTick is stamped onto every event this world records; set it
	// from the host's scheduler before mutating so RemovalsSince/
	// DespawnsSince windows line up with collector ticks.
	currentTick codec.Tick
}

type tickedRemoval struct {
	tick codec.Tick
	Removal
}

type tickedDespawn struct {
	tick   codec.Tick
	entity codec.EntityID
}

// NewMemWorld returns an empty world.
func NewMemWorld() *MemWorld {
	return &MemWorld{
		entities:   make(map[codec.EntityID]struct{}),
		components: make(map[componentKey]any),
		replicated: make(map[codec.EntityID]Replicated),
	}
}

// SetTick stamps the tick attached to subsequent Remove/Despawn events.
func (w *MemWorld) SetTick(t codec.Tick) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.currentTick = t
}

func (w *MemWorld) Spawn() codec.EntityID {
	w.mu.Lock()
	defer w.mu.Unlock()
	e := w.nextEntity
	w.nextEntity++
	w.entities[e] = struct{}{}
	return e
}

func (w *MemWorld) Despawn(e codec.EntityID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.entities[e]; !ok {
		return
	}
	delete(w.entities, e)
	delete(w.replicated, e)
	for k := range w.components {
		if k.entity == e {
			delete(w.components, k)
		}
	}
	w.despawnLog = append(w.despawnLog, tickedDespawn{tick: w.currentTick, entity: e})
}

func (w *MemWorld) Insert(e codec.EntityID, fns codec.FnsID, value any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.components[componentKey{e, fns}] = value
}

func (w *MemWorld) Remove(e codec.EntityID, fns codec.FnsID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := componentKey{e, fns}
	if _, ok := w.components[key]; !ok {
		return
	}
	delete(w.components, key)
	w.removalLog = append(w.removalLog, tickedRemoval{tick: w.currentTick, Removal: Removal{Entity: e, Fns: fns}})
}

func (w *MemWorld) Get(e codec.EntityID, fns codec.FnsID) (any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.components[componentKey{e, fns}]
	return v, ok
}

func (w *MemWorld) Contains(e codec.EntityID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.entities[e]
	return ok
}

func (w *MemWorld) Query(fns codec.FnsID, yield func(codec.EntityID, any) bool) {
	w.mu.Lock()
	type pair struct {
		e codec.EntityID
		v any
	}
	var snapshot []pair
	for k, v := range w.components {
		if k.fns == fns {
			snapshot = append(snapshot, pair{k.entity, v})
		}
	}
	w.mu.Unlock()
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].e < snapshot[j].e })
	for _, p := range snapshot {
		if !yield(p.e, p.v) {
			return
		}
	}
}

func (w *MemWorld) Replicated(e codec.EntityID) (Replicated, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.replicated[e]
	return r, ok
}

func (w *MemWorld) SetReplicated(e codec.EntityID, r Replicated) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.replicated[e] = r
}

func (w *MemWorld) AllReplicated(yield func(codec.EntityID, Replicated) bool) {
	w.mu.Lock()
	snapshot := make(map[codec.EntityID]Replicated, len(w.replicated))
	for e, r := range w.replicated {
		snapshot[e] = r
	}
	w.mu.Unlock()
	entities := make([]codec.EntityID, 0, len(snapshot))
	for e := range snapshot {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i] < entities[j] })
	for _, e := range entities {
		if !yield(e, snapshot[e]) {
			return
		}
	}
}

func (w *MemWorld) RemovalsSince(tick codec.Tick) []Removal {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []Removal
	for _, r := range w.removalLog {
		if r.tick > tick {
			out = append(out, r.Removal)
		}
	}
	return out
}

func (w *MemWorld) DespawnsSince(tick codec.Tick) []codec.EntityID {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []codec.EntityID
	for _, d := range w.despawnLog {
		if d.tick > tick {
			out = append(out, d.entity)
		}
	}
	return out
}
