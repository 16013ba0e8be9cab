package utils

import (
	"strings"
)

// NormalizeAddress lowercases a hex address so map keys from different
// sources (subgraph, scoring engine, RPC) compare equal.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
