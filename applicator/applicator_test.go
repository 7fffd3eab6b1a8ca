package applicator_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/ecsnet/replicore/applicator"
	"github.com/ecsnet/replicore/codec"
	"github.com/ecsnet/replicore/config"
	"github.com/ecsnet/replicore/registry"
	"github.com/ecsnet/replicore/repstats"
	"github.com/ecsnet/replicore/worldapi"
)

type position struct{ X, Y, Z float32 }

func registerPosition(t *testing.T, r *registry.Registry) codec.FnsID {
	t.Helper()
	id, err := registry.Register[position](r, nil,
		func(_ *registry.Context, v position) ([]byte, error) {
			b := make([]byte, 12)
			binary.BigEndian.PutUint32(b[0:4], math.Float32bits(v.X))
			binary.BigEndian.PutUint32(b[4:8], math.Float32bits(v.Y))
			binary.BigEndian.PutUint32(b[8:12], math.Float32bits(v.Z))
			return b, nil
		},
		func(_ *registry.Context, b []byte) (position, error) {
			return position{
				X: math.Float32frombits(binary.BigEndian.Uint32(b[0:4])),
				Y: math.Float32frombits(binary.BigEndian.Uint32(b[4:8])),
				Z: math.Float32frombits(binary.BigEndian.Uint32(b[8:12])),
			}, nil
		},
	)
	if err != nil {
		t.Fatalf("register position: %v", err)
	}
	return id
}

// encodeChanges mirrors collector.writeEntityChanges's `n x (entity,
// bytes_total, records...)` shape, standing in for it here since that
// helper is unexported.
func encodeChanges(dst []byte, entity codec.EntityID, records ...[]byte) []byte {
	dst = codec.EncodeUvarint(dst, 1)
	var recs []byte
	for _, r := range records {
		recs = append(recs, r...)
	}
	dst = codec.EncodeEntity(dst, entity)
	dst = codec.EncodeUvarint(dst, uint64(len(recs)))
	return append(dst, recs...)
}

func posRecord(fns codec.FnsID, v position) []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint32(b[0:4], math.Float32bits(v.X))
	binary.BigEndian.PutUint32(b[4:8], math.Float32bits(v.Y))
	binary.BigEndian.PutUint32(b[8:12], math.Float32bits(v.Z))
	return codec.EncodeComponentRecord(nil, fns, b)
}

func buildUpdates(tick codec.Tick, flags byte, body []byte) []byte {
	msg := codec.EncodeUvarint(nil, uint64(tick))
	msg = append(msg, flags)
	return append(msg, body...)
}

func TestApplyUpdatesMappingSynthesizesFreshEntityWhenNoPreSpawn(t *testing.T) {
	world := worldapi.NewMemWorld()
	a := applicator.New(world, registry.New(), config.NewOwner(nil), repstats.New(nil))

	body := codec.EncodeMappings(nil, []codec.Mapping{{Server: 5, Client: 999}})
	msg := buildUpdates(1, codec.FlagMappings, body)

	if err := a.ApplyUpdates(msg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	local, ok := a.ClientEntityFor(5)
	if !ok {
		t.Fatalf("expected server entity 5 to be mapped")
	}
	if local == 999 {
		t.Errorf("expected a synthesized local entity distinct from the unspawned client_pregen id")
	}
	if !world.Contains(local) {
		t.Errorf("synthesized local entity should exist in the world")
	}
}

func TestApplyUpdatesMappingBindsExistingPreSpawnedEntity(t *testing.T) {
	world := worldapi.NewMemWorld()
	a := applicator.New(world, registry.New(), config.NewOwner(nil), repstats.New(nil))

	preSpawned := world.Spawn() // client predicted and pre-spawned this entity locally

	body := codec.EncodeMappings(nil, []codec.Mapping{{Server: 7, Client: preSpawned}})
	msg := buildUpdates(1, codec.FlagMappings, body)

	if err := a.ApplyUpdates(msg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	local, ok := a.ClientEntityFor(7)
	if !ok || local != preSpawned {
		t.Errorf("expected server entity 7 bound to pre-spawned local %d, got %d (ok=%v)", preSpawned, local, ok)
	}
}

func TestApplyUpdatesDespawnThenRespawnSameServerIDGetsFreshLocalEntity(t *testing.T) {
	world := worldapi.NewMemWorld()
	reg := registry.New()
	fns := registerPosition(t, reg)
	reg.Freeze()
	a := applicator.New(world, reg, config.NewOwner(nil), repstats.New(nil))

	changesBody := encodeChanges(nil, 3, posRecord(fns, position{X: 1, Y: 1, Z: 1}))
	msg1 := buildUpdates(1, codec.FlagChanges, changesBody)
	if err := a.ApplyUpdates(msg1); err != nil {
		t.Fatalf("apply changes: %v", err)
	}
	firstLocal, ok := a.ClientEntityFor(3)
	if !ok {
		t.Fatalf("expected server entity 3 mapped after first CHANGES")
	}

	despawnBody, err := codec.EncodeEntityArray(nil, []codec.EntityID{3}, false)
	if err != nil {
		t.Fatalf("encode despawns: %v", err)
	}
	msg2 := buildUpdates(2, codec.FlagDespawns, despawnBody)
	if err := a.ApplyUpdates(msg2); err != nil {
		t.Fatalf("apply despawn: %v", err)
	}
	if _, ok := a.ClientEntityFor(3); ok {
		t.Fatalf("expected server entity 3 unmapped after despawn")
	}
	if world.Contains(firstLocal) {
		t.Errorf("expected the first local entity to be despawned")
	}

	changesBody2 := encodeChanges(nil, 3, posRecord(fns, position{X: 2, Y: 2, Z: 2}))
	msg3 := buildUpdates(3, codec.FlagChanges, changesBody2)
	if err := a.ApplyUpdates(msg3); err != nil {
		t.Fatalf("apply respawn changes: %v", err)
	}
	secondLocal, ok := a.ClientEntityFor(3)
	if !ok {
		t.Fatalf("expected server entity 3 remapped after respawn")
	}
	if secondLocal == firstLocal {
		t.Errorf("expected a fresh local entity on respawn, got the same one back")
	}
}

func TestApplyUpdatesChangesSkipsUnknownComponentID(t *testing.T) {
	world := worldapi.NewMemWorld()
	reg := registry.New()
	fns := registerPosition(t, reg)
	reg.Freeze()
	stats := repstats.New(nil)
	a := applicator.New(world, reg, config.NewOwner(nil), stats)

	unknownFns := codec.FnsID(999)
	records := append(posRecord(fns, position{X: 9, Y: 9, Z: 9}), codec.EncodeComponentRecord(nil, unknownFns, []byte{0xAB})...)
	body := codec.EncodeUvarint(nil, 1)
	body = codec.EncodeEntity(body, 11)
	body = codec.EncodeUvarint(body, uint64(len(records)))
	body = append(body, records...)

	msg := buildUpdates(1, codec.FlagChanges, body)
	if err := a.ApplyUpdates(msg); err != nil {
		t.Fatalf("apply: %v", err)
	}

	local, ok := a.ClientEntityFor(11)
	if !ok {
		t.Fatalf("expected server entity 11 to be mapped")
	}
	if v, ok := world.Get(local, fns); !ok || v.(position) != (position{X: 9, Y: 9, Z: 9}) {
		t.Errorf("expected known component to be applied, got %v (ok=%v)", v, ok)
	}
	if _, ok := world.Get(local, unknownFns); ok {
		t.Errorf("expected the unknown component id to be skipped, not stored")
	}
}

func buildMutations(updateTick, serverTick codec.Tick, entity codec.EntityID, records ...[]byte) []byte {
	msg := codec.EncodeUvarint(nil, uint64(updateTick))
	msg = codec.EncodeUvarint(msg, uint64(serverTick))
	return encodeChanges(msg, entity, records...)
}

func TestApplyMutationsDropsOutOfOrderRecordPerEntity(t *testing.T) {
	world := worldapi.NewMemWorld()
	reg := registry.New()
	fns := registerPosition(t, reg)
	reg.Freeze()
	a := applicator.New(world, reg, config.NewOwner(nil), repstats.New(nil))

	fresh := buildMutations(20, 20, 3, posRecord(fns, position{X: 10, Y: 10, Z: 10}))
	if err := a.ApplyMutations(fresh); err != nil {
		t.Fatalf("apply tick 20: %v", err)
	}

	stale := buildMutations(18, 18, 3, posRecord(fns, position{X: 1, Y: 1, Z: 1}))
	if err := a.ApplyMutations(stale); err != nil {
		t.Fatalf("apply tick 18: %v", err)
	}

	local, _ := a.ClientEntityFor(3)
	v, ok := world.Get(local, fns)
	if !ok || v.(position) != (position{X: 10, Y: 10, Z: 10}) {
		t.Errorf("expected the out-of-order mutation to be dropped, got %v", v)
	}
}

func TestApplyMutationsWholeMessageStalenessDropsEntireMessage(t *testing.T) {
	world := worldapi.NewMemWorld()
	reg := registry.New()
	fns := registerPosition(t, reg)
	reg.Freeze()
	cfg := config.Default()
	cfg.MutationsStaleness = config.WholeMessageStaleness
	a := applicator.New(world, reg, config.NewOwner(cfg), repstats.New(nil))

	fresh := buildMutations(20, 20, 3, posRecord(fns, position{X: 10, Y: 10, Z: 10}))
	if err := a.ApplyMutations(fresh); err != nil {
		t.Fatalf("apply tick 20: %v", err)
	}

	stale := buildMutations(18, 18, 4, posRecord(fns, position{X: 1, Y: 1, Z: 1}))
	if err := a.ApplyMutations(stale); err != nil {
		t.Fatalf("apply tick 18: %v", err)
	}
	if _, ok := a.ClientEntityFor(4); ok {
		t.Errorf("expected the entire stale message to be dropped, including unrelated entity 4")
	}
}

func TestClearStateDropsAllMappings(t *testing.T) {
	world := worldapi.NewMemWorld()
	a := applicator.New(world, registry.New(), config.NewOwner(nil), repstats.New(nil))

	body := codec.EncodeMappings(nil, []codec.Mapping{{Server: 1, Client: 500}})
	if err := a.ApplyUpdates(buildUpdates(1, codec.FlagMappings, body)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	a.ClearState()
	if _, ok := a.ClientEntityFor(1); ok {
		t.Errorf("expected ClearState to drop the mapping for server entity 1")
	}
}
