package codec

// EncodeEntityArray writes count, then the entities themselves: absolute
// uvarints if delta is false, or entities[0] absolute followed by
// entities[i]-entities[i-1] for i>0 if delta is true. Delta mode requires a
// nondecreasing input; callers that cannot guarantee this must sort a copy
// themselves (codec refuses to mutate the caller's slice) or pass
// delta=false.
func EncodeEntityArray(dst []byte, entities []EntityID, delta bool) ([]byte, error) {
	dst = EncodeUvarint(dst, uint64(len(entities)))
	if len(entities) == 0 {
		return dst, nil
	}
	if !delta {
		for _, e := range entities {
			dst = EncodeEntity(dst, e)
		}
		return dst, nil
	}
	dst = EncodeEntity(dst, entities[0])
	prev := entities[0]
	for _, e := range entities[1:] {
		if e < prev {
			return nil, ErrOutOfOrder
		}
		dst = EncodeUvarint(dst, uint64(e-prev))
		prev = e
	}
	return dst, nil
}

// DecodeEntityArray is the inverse of EncodeEntityArray. The caller must
// pass the same delta flag used to encode; the wire format carries no mode
// bit of its own (the enclosing message's flags / section determine it).
func DecodeEntityArray(buf []byte, offset int, delta bool) (entities []EntityID, n int, err error) {
	count, m, err := DecodeUvarint(buf, offset)
	if err != nil {
		return nil, 0, err
	}
	n = m
	entities = make([]EntityID, 0, count)
	if count == 0 {
		return entities, n, nil
	}
	var prev EntityID
	for i := uint64(0); i < count; i++ {
		v, m, err := DecodeUvarint(buf, offset+n)
		if err != nil {
			return nil, 0, err
		}
		n += m
		var e EntityID
		if !delta || i == 0 {
			e = EntityID(v)
		} else {
			e = prev + EntityID(v)
		}
		entities = append(entities, e)
		prev = e
	}
	return entities, n, nil
}

// Mapping is a (server_entity, client_pregen_entity) pair as carried by the
// Updates message's MAPPINGS segment.
type Mapping struct {
	Server EntityID
	Client EntityID
}

// EncodeMappings writes count, then two independent uvarints per pair, in
// input order. Unlike EncodeEntityArray, pairs are never delta-encoded
// against each other (spec.md §4.A).
func EncodeMappings(dst []byte, pairs []Mapping) []byte {
	dst = EncodeUvarint(dst, uint64(len(pairs)))
	for _, p := range pairs {
		dst = EncodeEntity(dst, p.Server)
		dst = EncodeEntity(dst, p.Client)
	}
	return dst
}

// DecodeMappings is the inverse of EncodeMappings, reproducing input order
// exactly.
func DecodeMappings(buf []byte, offset int) (pairs []Mapping, n int, err error) {
	count, m, err := DecodeUvarint(buf, offset)
	if err != nil {
		return nil, 0, err
	}
	n = m
	pairs = make([]Mapping, 0, count)
	for i := uint64(0); i < count; i++ {
		server, m1, err := DecodeEntity(buf, offset+n)
		if err != nil {
			return nil, 0, err
		}
		n += m1
		client, m2, err := DecodeEntity(buf, offset+n)
		if err != nil {
			return nil, 0, err
		}
		n += m2
		pairs = append(pairs, Mapping{Server: server, Client: client})
	}
	return pairs, n, nil
}

// SizeEntityArray returns the exact encoded size EncodeEntityArray would
// produce, without allocating the output — used by collector/memsys to
// size a write ahead of time.
func SizeEntityArray(entities []EntityID, delta bool) int {
	size := SizeUvarint(uint64(len(entities)))
	if len(entities) == 0 {
		return size
	}
	if !delta {
		for _, e := range entities {
			size += SizeUvarint(uint64(e))
		}
		return size
	}
	size += SizeUvarint(uint64(entities[0]))
	prev := entities[0]
	for _, e := range entities[1:] {
		size += SizeUvarint(uint64(e - prev))
		prev = e
	}
	return size
}

// SizeMappings returns the exact encoded size EncodeMappings would produce.
func SizeMappings(pairs []Mapping) int {
	size := SizeUvarint(uint64(len(pairs)))
	for _, p := range pairs {
		size += SizeUvarint(uint64(p.Server)) + SizeUvarint(uint64(p.Client))
	}
	return size
}
