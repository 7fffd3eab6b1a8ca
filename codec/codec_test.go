package codec

import (
	"encoding/json"
	"testing"
)

func TestUvarintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 63, 64, 127, 128, 16383, 16384, 1 << 20, 1<<63 - 1, ^uint64(0)}
	for _, n := range cases {
		buf := EncodeUvarint(nil, n)
		if len(buf) != SizeUvarint(n) {
			t.Errorf("n=%d: encoded %d bytes, SizeUvarint says %d", n, len(buf), SizeUvarint(n))
		}
		got, read, err := DecodeUvarint(buf, 0)
		if err != nil {
			t.Fatalf("n=%d: decode error: %v", n, err)
		}
		if got != n {
			t.Errorf("n=%d: round-trip got %d", n, got)
		}
		if read != len(buf) {
			t.Errorf("n=%d: bytes_read=%d, want %d", n, read, len(buf))
		}
	}
}

func TestDecodeUvarintTruncated(t *testing.T) {
	buf := EncodeUvarint(nil, 1<<20)
	for i := range buf {
		if _, _, err := DecodeUvarint(buf[:i], 0); err != ErrMalformed {
			t.Errorf("truncated at %d bytes: got err=%v, want ErrMalformed", i, err)
		}
	}
}

func TestDecodeUvarintOverlong(t *testing.T) {
	buf := make([]byte, MaxVarintBytes+1)
	for i := range buf {
		buf[i] = 0x80
	}
	if _, _, err := DecodeUvarint(buf, 0); err != ErrMalformed {
		t.Errorf("overlong varint: got err=%v, want ErrMalformed", err)
	}
}

func TestEntityArrayRoundTripAbsolute(t *testing.T) {
	entities := []EntityID{7, 3, 1000, 3, 0}
	buf, err := EncodeEntityArray(nil, entities, false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, n, err := DecodeEntityArray(buf, 0, false)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(buf) {
		t.Errorf("bytes_read=%d, want %d", n, len(buf))
	}
	if !equalEntities(got, entities) {
		t.Errorf("got %v, want %v", got, entities)
	}
}

func TestEntityArrayDeltaRoundTrip(t *testing.T) {
	entities := []EntityID{1, 1, 5, 5, 100, 1 << 20}
	buf, err := EncodeEntityArray(nil, entities, true)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, _, err := DecodeEntityArray(buf, 0, true)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !equalEntities(got, entities) {
		t.Errorf("got %v, want %v", got, entities)
	}
	if len(buf) != SizeEntityArray(entities, true) {
		t.Errorf("encoded %d bytes, SizeEntityArray says %d", len(buf), SizeEntityArray(entities, true))
	}
}

func TestEntityArrayDeltaRejectsUnsorted(t *testing.T) {
	entities := []EntityID{5, 3, 9}
	if _, err := EncodeEntityArray(nil, entities, true); err != ErrOutOfOrder {
		t.Errorf("got err=%v, want ErrOutOfOrder", err)
	}
}

func TestEntityArrayEmpty(t *testing.T) {
	buf, err := EncodeEntityArray(nil, nil, true)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, n, err := DecodeEntityArray(buf, 0, true)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 0 || n != len(buf) {
		t.Errorf("got %v (n=%d), want empty (n=%d)", got, n, len(buf))
	}
}

func TestMappingsRoundTripPreservesOrder(t *testing.T) {
	pairs := []Mapping{
		{Server: 1234, Client: 9999},
		{Server: 1, Client: 50000},
		{Server: 77, Client: 2},
	}
	buf := EncodeMappings(nil, pairs)
	got, n, err := DecodeMappings(buf, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(buf) {
		t.Errorf("bytes_read=%d, want %d", n, len(buf))
	}
	if len(got) != len(pairs) {
		t.Fatalf("got %d pairs, want %d", len(got), len(pairs))
	}
	for i := range pairs {
		if got[i] != pairs[i] {
			t.Errorf("pair %d: got %+v, want %+v", i, got[i], pairs[i])
		}
	}
}

// TestCompactSmallerThanJSON reflects the design target in spec.md §8: the
// compact mapping codec must beat JSON for every mapping list of >=4 pairs.
func TestCompactSmallerThanJSON(t *testing.T) {
	for size := 4; size <= 256; size *= 2 {
		pairs := make([]Mapping, size)
		for i := range pairs {
			pairs[i] = Mapping{Server: EntityID(1000 + i), Client: EntityID(90000 + i)}
		}
		compact := EncodeMappings(nil, pairs)
		jsonBytes, err := json.Marshal(pairs)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		if len(compact) >= len(jsonBytes) {
			t.Errorf("size=%d: compact=%d bytes, json=%d bytes; compact should be smaller", size, len(compact), len(jsonBytes))
		}
	}
}

func equalEntities(a, b []EntityID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
