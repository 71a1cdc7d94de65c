// Package domain contains the core business entities and value objects.
// These structs are framework-agnostic and represent the heart of the application.
package domain

// ProviderType identifies one of the supported chat-completion vendors.
type ProviderType string

const (
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderOpenAI     ProviderType = "openai"
	ProviderGoogle     ProviderType = "google"
	ProviderXAI        ProviderType = "xai"
	ProviderOpenRouter ProviderType = "openrouter"
)

// AllProviders lists every supported vendor in a stable order.
// The order matters for status listings, not for dispatch.
var AllProviders = []ProviderType{
	ProviderAnthropic,
	ProviderOpenAI,
	ProviderGoogle,
	ProviderXAI,
	ProviderOpenRouter,
}

// IsKnownProvider reports whether the given name maps to a supported vendor.
func IsKnownProvider(p ProviderType) bool {
	for _, known := range AllProviders {
		if p == known {
			return true
		}
	}
	return false
}
