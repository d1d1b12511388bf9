// CLAUDE:SUMMARY Pluggable ID generators (UUIDv7 default, prefixed variants) for pipeline runs and ledger rows.
// Package idgen generates identifiers for pipeline runs and publish ledger
// attempts. The strategy is a value chosen at startup, so tests can inject a
// deterministic sequence.
package idgen

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 version 7 UUIDs: time-ordered, so
// ledger rows sort by creation without a separate timestamp index.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every ID from gen, e.g. "run_" or "pub_".
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns a Generator of "<prefix>1", "<prefix>2", ... Safe for
// concurrent use. Intended for tests.
func Sequence(prefix string) Generator {
	var n atomic.Int64
	return func() string {
		return prefix + strconv.FormatInt(n.Add(1), 10)
	}
}

// Default is the generator used when a component is given none.
var Default = UUIDv7()

// Run generates pipeline run identifiers.
var Run = Prefixed("run_", Default)

// Publish generates publish ledger attempt identifiers.
var Publish = Prefixed("pub_", Default)

// Parse validates a bare UUID string and returns its canonical form.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("idgen: invalid UUID %q: %w", s, err)
	}
	return u.String(), nil
}
