package dispatch

import (
	"sync"

	"github.com/promptbridge/promptbridge/internal/domain"
)

// ProviderUsage accumulates request and token counts for one vendor.
type ProviderUsage struct {
	Requests     int64 `json:"requests"`
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// UsageTally tracks token usage per vendor across dispatches. It persists
// for the process lifetime and is safe for concurrent use.
type UsageTally struct {
	mu         sync.RWMutex
	byProvider map[domain.ProviderType]ProviderUsage
}

// NewUsageTally creates an empty tally.
func NewUsageTally() *UsageTally {
	return &UsageTally{
		byProvider: make(map[domain.ProviderType]ProviderUsage),
	}
}

// Record adds one successful dispatch's usage to the vendor's totals.
func (t *UsageTally) Record(p domain.ProviderType, u domain.Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := t.byProvider[p]
	entry.Requests++
	entry.InputTokens += int64(u.InputTokens)
	entry.OutputTokens += int64(u.OutputTokens)
	entry.TotalTokens += int64(u.TotalTokens)
	t.byProvider[p] = entry
}

// Snapshot returns a copy of the per-vendor totals.
func (t *UsageTally) Snapshot() map[domain.ProviderType]ProviderUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[domain.ProviderType]ProviderUsage, len(t.byProvider))
	for p, u := range t.byProvider {
		out[p] = u
	}
	return out
}

// Reset clears all totals (useful for testing).
func (t *UsageTally) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byProvider = make(map[domain.ProviderType]ProviderUsage)
}
