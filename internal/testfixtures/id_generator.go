package testfixtures

import (
	"fmt"
	"sync/atomic"
)

// IDGenerator yields sequential, predictable identifiers ("id-1", "id-2",
// ...) for tests that assert on generated ids.
type IDGenerator struct {
	prefix string
	seq    atomic.Uint64
}

// NewIDGenerator creates a generator with the given prefix. An empty prefix
// defaults to "id".
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier.
func (g *IDGenerator) Next() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.seq.Add(1))
}
