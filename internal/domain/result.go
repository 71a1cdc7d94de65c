package domain

import "encoding/json"

// Usage is the token-usage breakdown for one completion. All counts are
// zero on failure.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Result is the normalized outcome of one dispatch attempt.
//
// Invariant: Success=false implies Content=="" and all usage counts zero.
// A Result is created once per attempt and treated as immutable afterwards;
// the dispatcher may annotate cache/fallback metadata before returning it.
type Result struct {
	// Success indicates whether a completion was obtained.
	Success bool `json:"success"`

	// Content is the response text. Empty on failure.
	Content string `json:"content"`

	// Message is a human-readable status line ("OK", "HTTP 429: ...").
	Message string `json:"message"`

	// Usage is the token accounting reported by the vendor.
	Usage Usage `json:"usage"`

	// Raw is the vendor's response payload, passed through opaquely for
	// diagnostics. Bounded to a snippet when the body was malformed.
	Raw json.RawMessage `json:"raw,omitempty"`

	// Cached is true when the result was served from the cache store.
	Cached bool `json:"cached"`

	// Provider is the vendor that actually answered. Set by the fallback
	// loop; equal to the requested vendor on direct dispatch.
	Provider ProviderType `json:"provider,omitempty"`

	// KeyIndex is the positional index of the credential that answered,
	// or -1 when an explicit secret bypassed the configured list.
	KeyIndex int `json:"key_index"`

	// KeyLabel is the label of the credential that answered.
	KeyLabel string `json:"key_label,omitempty"`
}

// Failure builds a failed Result with the given status message.
func Failure(message string) Result {
	return Result{Success: false, Message: message, KeyIndex: -1}
}

// Succeeded builds a successful Result with the extracted content, usage
// and the raw vendor payload.
func Succeeded(content string, usage Usage, raw json.RawMessage) Result {
	return Result{
		Success:  true,
		Content:  content,
		Message:  "OK",
		Usage:    usage,
		Raw:      raw,
		KeyIndex: -1,
	}
}
