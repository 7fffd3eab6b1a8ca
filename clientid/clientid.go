// Package clientid generates short, human-readable client-connection ids,
// adapted from cmn/shortid.go's GenUUID for the replication engine's own
// ClientID type instead of aistore's object UUIDs.
/*
 * Copyright (c) 2024, ecsnet. All rights reserved.
 */
package clientid

import (
	"math/rand"

	"github.com/teris-io/shortid"

	"github.com/ecsnet/replicore/visibility"
)

// alphabet mirrors cmn/shortid.go's uuidABC: shortid.DEFAULT_ABC shuffled so
// ids don't resemble the library's own sample output.
const alphabet = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

// Generator produces client ids. Not safe for concurrent use by multiple
// goroutines without external synchronization, matching shortid.Shortid's
// own contract.
type Generator struct {
	sid *shortid.Shortid
}

// New returns a Generator seeded deterministically from seed (use a fixed
// seed in tests, a real entropy source in production).
func New(seed uint64) *Generator {
	return &Generator{sid: shortid.MustNew(4, alphabet, seed)}
}

// Next generates a fresh client id, padded with a leading/trailing letter
// when the raw id would otherwise start or end on a symbol character — the
// same cosmetic touch-up cmn/shortid.go's GenUUID applies.
func (g *Generator) Next() visibility.ClientID {
	raw := g.sid.MustGenerate()
	var head, tail string
	if !isAlpha(raw[0]) {
		head = string(rune('A' + rand.Intn(26)))
	}
	if c := raw[len(raw)-1]; c == '-' || c == '_' {
		tail = string(rune('a' + rand.Intn(26)))
	}
	return visibility.ClientID(head + raw + tail)
}

// Valid reports whether id looks like one of this package's ids: long
// enough and alphabetic-leading, per shortid's own minimum-length guidance.
func Valid(id visibility.ClientID) bool {
	const minLen = 9
	return len(id) >= minLen && isAlpha(id[0])
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
