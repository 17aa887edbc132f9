// Package id generates the identifiers used throughout mull: 32-character
// random ids for messages and envelopes, and strictly increasing counter
// ids for anything that only needs per-process uniqueness.
package id

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Random returns a 32-character lowercase hex identifier.
func Random() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

var (
	mu       sync.Mutex
	counters = make(map[string]uint64)
)

// Counter returns the next id for a prefix, formatted "prefix_N".
// Ids are strictly increasing per prefix.
func Counter(prefix string) string {
	mu.Lock()
	defer mu.Unlock()
	counters[prefix]++
	return fmt.Sprintf("%s_%d", prefix, counters[prefix])
}
