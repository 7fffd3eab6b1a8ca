package codec

// Flag bits for an Updates message header (spec.md §6). Present segments
// appear in this exact bit order; absent bits omit their segment entirely.
const (
	FlagMappings byte = 1 << iota
	FlagDespawns
	FlagRemovals
	FlagChanges
)

// EncodeComponentRecord appends one (fns_id, size, bytes) triple — the
// building block of both the Updates CHANGES segment and every Mutations
// entity record (spec.md §6).
func EncodeComponentRecord(dst []byte, fns FnsID, value []byte) []byte {
	dst = EncodeUvarint(dst, uint64(fns))
	dst = EncodeUvarint(dst, uint64(len(value)))
	dst = append(dst, value...)
	return dst
}

// SizeComponentRecord returns the exact encoded size of a (fns_id, size,
// bytes) triple for a value of length n, without encoding it.
func SizeComponentRecord(fns FnsID, n int) int {
	return SizeUvarint(uint64(fns)) + SizeUvarint(uint64(n)) + n
}

// DecodeComponentRecord reads one (fns_id, size, bytes) triple starting at
// offset. value aliases buf; callers that need to retain it past the next
// mutation of buf must copy it themselves.
func DecodeComponentRecord(buf []byte, offset int) (fns FnsID, value []byte, n int, err error) {
	id, n1, err := DecodeUvarint(buf, offset)
	if err != nil {
		return 0, nil, 0, err
	}
	size, n2, err := DecodeUvarint(buf, offset+n1)
	if err != nil {
		return 0, nil, 0, err
	}
	start := offset + n1 + n2
	end := start + int(size)
	if size > ^uint64(0)>>1 || end < start || end > len(buf) {
		return 0, nil, 0, ErrMalformed
	}
	return FnsID(id), buf[start:end], end - offset, nil
}
