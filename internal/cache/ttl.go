// Package cache provides the file-backed response cache for dispatch results.
// Entries are content-addressed by a request fingerprint and partitioned by an
// integer context id (0 = global).
package cache

import (
	"strconv"
	"strings"
)

// Seconds is a resolved time-to-live. Every TTL specification, whether a
// plain number or a shorthand code, is resolved into this type exactly once
// at the boundary.
type Seconds int

// DefaultTTL is what unrecognized TTL specifications resolve to (1 day).
// Call sites treat "some TTL" as always valid, so parsing never fails closed.
const DefaultTTL Seconds = 86400

// Base seconds for the shorthand unit codes.
const (
	unitDay   = 86400
	unitWeek  = 604800
	unitMonth = 2592000  // 30 days
	unitYear  = 31536000 // 365 days
)

// FromSeconds resolves an integer TTL, floored to a minimum of 1 second.
func FromSeconds(n int) Seconds {
	if n < 1 {
		return 1
	}
	return Seconds(n)
}

// ParseTTL resolves a shorthand TTL specification into seconds.
//
// Accepted forms:
//   - "<n><unit>" with unit in D/W/M/Y (case-insensitive), e.g. "2W"
//   - a bare unit letter, e.g. "D"
//   - a numeric string, parsed as seconds (minimum 1)
//
// Anything unrecognized resolves to DefaultTTL rather than an error.
func ParseTTL(spec string) Seconds {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return DefaultTTL
	}

	// Plain numeric string: seconds.
	if n, err := strconv.Atoi(spec); err == nil {
		return FromSeconds(n)
	}

	upper := strings.ToUpper(spec)
	base, ok := unitSeconds(upper[len(upper)-1])
	if !ok {
		return DefaultTTL
	}

	// Bare unit letter means one of that unit.
	digits := upper[:len(upper)-1]
	if digits == "" {
		return Seconds(base)
	}

	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return DefaultTTL
	}
	return Seconds(n * base)
}

func unitSeconds(unit byte) (int, bool) {
	switch unit {
	case 'D':
		return unitDay, true
	case 'W':
		return unitWeek, true
	case 'M':
		return unitMonth, true
	case 'Y':
		return unitYear, true
	default:
		return 0, false
	}
}
