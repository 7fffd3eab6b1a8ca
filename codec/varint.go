// Package codec implements the compact, variable-length wire format used by
// both the server collector and the client applicator in place of JSON: an
// unsigned LEB128 integer codec plus delta-encoded entity runs. Component
// payload bytes themselves remain opaque to this package (registry-defined);
// codec only ever touches entity ids, counts, lengths, and ticks.
/*
 * Copyright (c) 2024, ecsnet. All rights reserved.
 */
package codec

import (
	"github.com/pkg/errors"
)

// ErrMalformed is returned when a varint runs past MaxVarintBytes
// continuation bytes or the source buffer is exhausted mid-value.
var ErrMalformed = errors.New("replicore/codec: malformed varint")

// ErrOutOfOrder is returned by EncodeEntityArray(delta=true) when the input
// is not nondecreasing.
var ErrOutOfOrder = errors.New("replicore/codec: entities not sorted for delta encoding")

// MaxVarintBytes bounds a single uvarint: 10 bytes covers a full uint64.
const MaxVarintBytes = 10

// EntityID is an opaque, address-space-local entity identifier (spec.md §3).
type EntityID uint64

// Tick is the server's monotonically increasing simulation step counter.
type Tick uint64

// FnsID is the numeric id a Registry assigns to a replicated component type.
type FnsID uint32

// EncodeUvarint appends n to dst using unsigned LEB128 and returns the
// extended slice. It never fails except by allocation (OOM), per spec.md
// §4.A.
func EncodeUvarint(dst []byte, n uint64) []byte {
	for n >= 0x80 {
		dst = append(dst, byte(n)|0x80)
		n >>= 7
	}
	return append(dst, byte(n))
}

// DecodeUvarint reads a uvarint from buf starting at offset, returning the
// decoded value and the number of bytes consumed. It fails with
// ErrMalformed when more than MaxVarintBytes continuation bytes are seen or
// the buffer runs out mid-value.
func DecodeUvarint(buf []byte, offset int) (value uint64, n int, err error) {
	var shift uint
	for n = 0; ; n++ {
		if n == MaxVarintBytes {
			return 0, 0, ErrMalformed
		}
		if offset+n >= len(buf) {
			return 0, 0, ErrMalformed
		}
		b := buf[offset+n]
		value |= uint64(b&0x7f) << shift
		if b < 0x80 {
			n++
			return value, n, nil
		}
		shift += 7
	}
}

// SizeUvarint returns the exact number of bytes EncodeUvarint would emit for
// n. SerializedData relies on this being exact (never an upper bound) so it
// can coalesce adjacent ranges without over-allocating.
func SizeUvarint(n uint64) int {
	size := 1
	for n >= 0x80 {
		size++
		n >>= 7
	}
	return size
}

// EncodeEntity appends e as a uvarint.
func EncodeEntity(dst []byte, e EntityID) []byte {
	return EncodeUvarint(dst, uint64(e))
}

// DecodeEntity reads an EntityID at offset.
func DecodeEntity(buf []byte, offset int) (EntityID, int, error) {
	v, n, err := DecodeUvarint(buf, offset)
	return EntityID(v), n, err
}

// EncodeTick appends t as a uvarint.
func EncodeTick(dst []byte, t Tick) []byte {
	return EncodeUvarint(dst, uint64(t))
}

// DecodeTick reads a Tick at offset.
func DecodeTick(buf []byte, offset int) (Tick, int, error) {
	v, n, err := DecodeUvarint(buf, offset)
	return Tick(v), n, err
}
