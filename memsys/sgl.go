// Package memsys provides the append-only scatter-gather byte arena shared
// by one tick's worth of serialization work (spec.md §4.B). It replaces
// per-message allocation with a single reusable buffer: writers get back a
// Range, readers slice the arena by Range, and the whole thing resets with
// one clear() at the frame boundary.
/*
 * Copyright (c) 2024, ecsnet. All rights reserved.
 */
package memsys

import (
	"github.com/ecsnet/replicore/codec"
	"github.com/ecsnet/replicore/xlog"
)

// Range indexes a byte span inside one SGL's buffer. A Range is only valid
// until the next Clear() on the SGL that produced it — the contract is that
// a whole tick's worth of ranges gets consumed (copied onto the wire, or
// read by the next pipeline stage) before the SGL is reused.
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int { return r.End - r.Start }

// SGL ("scatter-gather list", name kept from the teacher's own package
// doc-comment, which described exactly this shape before any of its content
// existed) is a single bump-allocated byte arena.
type SGL struct {
	buf []byte
}

// NewSGL allocates an SGL with the given initial capacity. Prefer AllocSGL
// for per-tick, per-client buffers so repeated ticks reuse backing storage.
func NewSGL(capacity int) *SGL {
	return &SGL{buf: make([]byte, 0, capacity)}
}

// Clear empties the buffer for reuse at a frame boundary. Every Range handed
// out before this call is invalidated; it is the caller's responsibility to
// have finished the frame (flushed to transport, or copied out) first.
func (s *SGL) Clear() {
	s.buf = s.buf[:0]
}

// Len reports the number of bytes written since the last Clear.
func (s *SGL) Len() int { return len(s.buf) }

// WriteBytes appends b verbatim and returns the Range it now occupies.
func (s *SGL) WriteBytes(b []byte) Range {
	start := len(s.buf)
	s.buf = append(s.buf, b...)
	return Range{Start: start, End: len(s.buf)}
}

// WriteEntity appends e as a uvarint and returns its Range.
func (s *SGL) WriteEntity(e codec.EntityID) Range {
	start := len(s.buf)
	s.buf = codec.EncodeEntity(s.buf, e)
	return Range{Start: start, End: len(s.buf)}
}

// WriteTick appends t as a uvarint and returns its Range.
func (s *SGL) WriteTick(t codec.Tick) Range {
	start := len(s.buf)
	s.buf = codec.EncodeTick(s.buf, t)
	return Range{Start: start, End: len(s.buf)}
}

// WriteUvarint appends n as a uvarint and returns its Range.
func (s *SGL) WriteUvarint(n uint64) Range {
	start := len(s.buf)
	s.buf = codec.EncodeUvarint(s.buf, n)
	return Range{Start: start, End: len(s.buf)}
}

// WriteMappings appends the compact encoding of pairs and returns its Range.
func (s *SGL) WriteMappings(pairs []codec.Mapping) Range {
	start := len(s.buf)
	s.buf = codec.EncodeMappings(s.buf, pairs)
	return Range{Start: start, End: len(s.buf)}
}

// GetRange borrows a view into the arena; it never copies. The returned
// slice is only valid until the next Clear().
func (s *SGL) GetRange(r Range) []byte {
	xlog.Assertf(r.Start >= 0 && r.End <= len(s.buf) && r.Start <= r.End,
		"range %+v out of bounds for sgl of length %d", r, len(s.buf))
	return s.buf[r.Start:r.End]
}

// Bytes returns the entire written-so-far buffer as a view (no copy).
func (s *SGL) Bytes() []byte { return s.buf }

// Coalesce merges two adjacent ranges (end of a == start of b) into one,
// reporting false if they are not actually adjacent.
func Coalesce(a, b Range) (Range, bool) {
	if a.End != b.Start {
		return Range{}, false
	}
	return Range{Start: a.Start, End: b.End}, true
}

// ReadUvarintAt parses a plain uvarint at offset — the generic counterpart
// to ReadEntityAt/ReadTickAt/ReadU32At, for flags, counts, and fns ids that
// have no dedicated wrapper of their own.
func ReadUvarintAt(buf []byte, offset int) (uint64, int, error) {
	return codec.DecodeUvarint(buf, offset)
}

// ReadEntityAt parses an EntityID at offset, returning the value and bytes
// consumed.
func ReadEntityAt(buf []byte, offset int) (codec.EntityID, int, error) {
	return codec.DecodeEntity(buf, offset)
}

// ReadU32At parses a uvarint-encoded uint32 at offset.
func ReadU32At(buf []byte, offset int) (uint32, int, error) {
	v, n, err := codec.DecodeUvarint(buf, offset)
	return uint32(v), n, err
}

// ReadTickAt parses a Tick at offset.
func ReadTickAt(buf []byte, offset int) (codec.Tick, int, error) {
	return codec.DecodeTick(buf, offset)
}

// ReadMappingsAt parses a MAPPINGS segment (count + pairs) at offset.
func ReadMappingsAt(buf []byte, offset int) ([]codec.Mapping, int, error) {
	return codec.DecodeMappings(buf, offset)
}
