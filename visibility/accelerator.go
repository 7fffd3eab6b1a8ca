package visibility

import (
	"encoding/binary"

	cuckoo "github.com/seiflotfy/cuckoofilter"

	"github.com/ecsnet/replicore/codec"
)

// blacklistAccelerator is a probabilistic "definitely absent" pre-check in
// front of an entity's explicit client set, so that evalLocked's common case
// (an entity with an explicit list that does not name the queried client)
// can skip the per-client set lookup. Entities with no explicit list at all
// are decided by defaultVisible before the filter is consulted. False positives fall through to the authoritative
// map; there are never false negatives, so rebuild must be called any time
// the explicit lists change.
type blacklistAccelerator struct {
	filter *cuckoo.Filter
}

func newBlacklistAccelerator() *blacklistAccelerator {
	return &blacklistAccelerator{filter: cuckoo.NewFilter(1024)}
}

func pairBytes(entity codec.EntityID, client ClientID) []byte {
	b := make([]byte, 8+len(client))
	binary.LittleEndian.PutUint64(b, uint64(entity))
	copy(b[8:], client)
	return b
}

// rebuild recomputes the filter from the current explicit association
// table. Called after every mutation; cuckoofilter has no bulk-load API so
// this is a fresh filter and a full re-insert.
func (a *blacklistAccelerator) rebuild(perEntityClients map[codec.EntityID]map[ClientID]struct{}) {
	n := 0
	for _, set := range perEntityClients {
		n += len(set)
	}
	if n < 1024 {
		n = 1024
	}
	f := cuckoo.NewFilter(uint(n))
	for entity, set := range perEntityClients {
		for client := range set {
			f.InsertUnique(pairBytes(entity, client))
		}
	}
	a.filter = f
}

// definitelyAbsent reports whether (entity, client) is certainly not in the
// explicit association table. A false return means "maybe present, check
// the map".
func (a *blacklistAccelerator) definitelyAbsent(entity codec.EntityID, client ClientID) bool {
	return !a.filter.Lookup(pairBytes(entity, client))
}
