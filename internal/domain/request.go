package domain

import "time"

// Turn is one prior conversation turn. Role is "user" or "assistant";
// slice order is conversation order and must be preserved on the wire.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the immutable input to a single completion attempt.
// It is constructed fresh per call; nothing here is shared mutable state.
type Request struct {
	// Message is the current user message.
	Message string

	// History holds prior turns in conversation order.
	History []Turn

	// System is the optional system instruction.
	System string

	// Provider is the target vendor.
	Provider ProviderType

	// Model is the target model. Empty means "use the credential's or
	// vendor's configured default".
	Model string

	// Temperature is the sampling temperature. Vendors clamp it to their
	// own supported range.
	Temperature float64

	// MaxTokens limits the response length.
	MaxTokens int

	// Timeout bounds the HTTP attempt. Zero means the adapter default.
	Timeout time.Duration
}
