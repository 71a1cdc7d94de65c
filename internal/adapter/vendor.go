// Package adapter translates the uniform request contract into each vendor's
// wire format and parses the response back into the uniform result contract.
// It uses the Adapter pattern: one implementation per wire-format family,
// parameterized by vendor metadata.
package adapter

import (
	"github.com/promptbridge/promptbridge/internal/domain"
)

// WireFormat selects how requests and responses are shaped on the wire.
type WireFormat int

const (
	// FormatNative is the native-turn format: the system instruction is a
	// top-level field and usage arrives as separate input/output counts.
	FormatNative WireFormat = iota

	// FormatChat is the OpenAI-compatible chat-array format: the system
	// instruction becomes a leading "system" message and usage arrives
	// pre-aggregated as prompt/completion/total.
	FormatChat
)

// AuthStyle selects how the API key is attached to a request.
type AuthStyle int

const (
	// AuthHeader sends the raw key in a custom header (e.g. x-api-key).
	AuthHeader AuthStyle = iota

	// AuthBearer sends the key as an Authorization bearer token.
	AuthBearer
)

// VendorMeta carries everything vendor-specific the adapter needs: endpoint,
// auth style, static headers, wire format and field-name quirks. Selecting
// behavior through this table keeps vendor branching in one closed set
// instead of string comparisons scattered across the codebase.
type VendorMeta struct {
	Name           domain.ProviderType
	Endpoint       string
	Format         WireFormat
	Auth           AuthStyle
	AuthHeaderName string            // used with AuthHeader
	ExtraHeaders   map[string]string // attached unconditionally when non-empty
	MaxTokensField string            // wire name for the max-output-tokens field
	DefaultModel   string
	TemperatureCap float64 // vendor's upper bound for sampling temperature
}

// Vendors is the closed set of supported vendors keyed by identity.
var Vendors = map[domain.ProviderType]VendorMeta{
	domain.ProviderAnthropic: {
		Name:           domain.ProviderAnthropic,
		Endpoint:       "https://api.anthropic.com/v1/messages",
		Format:         FormatNative,
		Auth:           AuthHeader,
		AuthHeaderName: "x-api-key",
		ExtraHeaders:   map[string]string{"anthropic-version": "2023-06-01"},
		MaxTokensField: "max_tokens",
		DefaultModel:   "claude-sonnet-4-20250514",
		TemperatureCap: 1.0,
	},
	domain.ProviderOpenAI: {
		Name:     domain.ProviderOpenAI,
		Endpoint: "https://api.openai.com/v1/chat/completions",
		Format:   FormatChat,
		Auth:     AuthBearer,
		// OpenAI renamed the limit field; the other chat-format vendors
		// still use max_tokens.
		MaxTokensField: "max_completion_tokens",
		DefaultModel:   "gpt-4o-mini",
		TemperatureCap: 2.0,
	},
	domain.ProviderGoogle: {
		Name:           domain.ProviderGoogle,
		Endpoint:       "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions",
		Format:         FormatChat,
		Auth:           AuthBearer,
		MaxTokensField: "max_tokens",
		DefaultModel:   "gemini-2.0-flash",
		TemperatureCap: 2.0,
	},
	domain.ProviderXAI: {
		Name:           domain.ProviderXAI,
		Endpoint:       "https://api.x.ai/v1/chat/completions",
		Format:         FormatChat,
		Auth:           AuthBearer,
		MaxTokensField: "max_tokens",
		DefaultModel:   "grok-3-mini",
		TemperatureCap: 2.0,
	},
	domain.ProviderOpenRouter: {
		Name:     domain.ProviderOpenRouter,
		Endpoint: "https://openrouter.ai/api/v1/chat/completions",
		Format:   FormatChat,
		Auth:     AuthBearer,
		ExtraHeaders: map[string]string{
			"HTTP-Referer": "https://promptbridge.dev",
			"X-Title":      "promptbridge",
		},
		MaxTokensField: "max_tokens",
		DefaultModel:   "openrouter/auto",
		TemperatureCap: 2.0,
	},
}

// MetaFor returns the metadata for a vendor, or false for an unknown one.
func MetaFor(p domain.ProviderType) (VendorMeta, bool) {
	meta, ok := Vendors[p]
	return meta, ok
}
