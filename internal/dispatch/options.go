// Package dispatch is the request-handling core: it resolves cache policy,
// selects credentials, invokes the vendor adapter, and implements the
// fallback-across-keys-and-vendors algorithm.
package dispatch

import (
	"time"

	"github.com/promptbridge/promptbridge/internal/adapter"
	"github.com/promptbridge/promptbridge/internal/domain"
)

// Options are the per-call knobs for a dispatch. Optional fields are
// pointers; nil means "use the credential's or the process-wide default".
// Precedence is call over credential over global default.
type Options struct {
	// Provider is the target vendor. Empty means the configured default.
	Provider domain.ProviderType

	// Model pins a model explicitly. Empty falls back to the credential's
	// configured model, then the vendor default.
	Model string

	// System overrides the default system instruction.
	System *string

	// History holds prior conversation turns in order.
	History []domain.Turn

	// Temperature overrides the default sampling temperature.
	Temperature *float64

	// MaxTokens overrides the default response length limit.
	MaxTokens *int

	// TimeoutSeconds overrides the default per-attempt timeout.
	TimeoutSeconds *int

	// APIKey is an explicit secret that bypasses credential lookup.
	APIKey string

	// KeyIndex addresses a specific configured credential by position.
	KeyIndex *int

	// ContextID partitions cache entries (0 = global).
	ContextID int

	// Cache is the per-call cache policy.
	Cache CacheSetting

	// Fallbacks lists vendors to try, in order, after the primary vendor's
	// credentials are exhausted. Only honored by DispatchWithFallback.
	Fallbacks []domain.ProviderType
}

// cacheMode is the tagged state of a per-call cache setting.
type cacheMode int

const (
	cacheModeDefault cacheMode = iota // follow the process-wide flag
	cacheModeOn                       // cache with the default TTL
	cacheModeOff                      // no caching
	cacheModeTTL                      // cache with an explicit TTL spec
)

// CacheSetting is the per-call cache policy: unset (follow the global
// default), explicitly on (default TTL), explicitly off, or an explicit TTL
// specification. The zero value follows the global default.
type CacheSetting struct {
	mode    cacheMode
	ttlSpec string
}

// CacheDefault follows the process-wide cache flag and TTL.
func CacheDefault() CacheSetting { return CacheSetting{} }

// CacheOn enables caching with the process-wide default TTL.
func CacheOn() CacheSetting { return CacheSetting{mode: cacheModeOn} }

// CacheOff disables caching for this call.
func CacheOff() CacheSetting { return CacheSetting{mode: cacheModeOff} }

// CacheFor enables caching with an explicit TTL specification ("D", "2W",
// "3600"). Unrecognized specs resolve to the one-day default downstream.
func CacheFor(ttlSpec string) CacheSetting {
	return CacheSetting{mode: cacheModeTTL, ttlSpec: ttlSpec}
}

// effectiveTimeout resolves the per-attempt timeout: call override, then
// configured default, then the adapter default, floored at the minimum.
func effectiveTimeout(override *int, defaultSeconds int) time.Duration {
	seconds := defaultSeconds
	if override != nil {
		seconds = *override
	}
	if seconds <= 0 {
		return adapter.DefaultTimeout
	}
	d := time.Duration(seconds) * time.Second
	if d < adapter.MinTimeout {
		return adapter.MinTimeout
	}
	return d
}
