package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/promptbridge/promptbridge/internal/domain"
)

// fingerprintLen is the hex length of a cache key. Collisions at this width
// are negligible at expected scale; the key is not a security boundary.
const fingerprintLen = 16

// KeyOptions is the subset of request options that defines cache identity.
// Transport-level fields (timeout, max tokens, explicit key/index) are
// deliberately excluded: cache identity is "what was asked", not "how it
// was transported".
type KeyOptions struct {
	Provider    domain.ProviderType
	Model       string
	System      string
	Temperature float64
	History     []domain.Turn
}

// fingerprintRecord is the canonical shape hashed into a cache key.
type fingerprintRecord struct {
	Message     string              `json:"message"`
	Provider    domain.ProviderType `json:"provider"`
	Model       string              `json:"model"`
	System      string              `json:"system"`
	Temperature float64             `json:"temperature"`
	HistoryHash string              `json:"history_hash"`
}

// Fingerprint derives the cache key for a message and its answer-affecting
// options. Requests differing only in excluded fields share a key.
func Fingerprint(message string, o KeyOptions) string {
	rec := fingerprintRecord{
		Message:     message,
		Provider:    o.Provider,
		Model:       o.Model,
		System:      o.System,
		Temperature: o.Temperature,
		HistoryHash: historyHash(o.History),
	}

	// Struct field order is fixed, so the encoding is stable.
	raw, _ := json.Marshal(rec)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// historyHash digests a non-empty history; empty history contributes an
// empty string so that "no history" and "some history" never collide.
func historyHash(history []domain.Turn) string {
	if len(history) == 0 {
		return ""
	}
	raw, _ := json.Marshal(history)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
