// Package security prevents credential leakage through log output.
package security

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Redacted replaces any detected secret in log output.
const Redacted = "[REDACTED]"

// secretPatterns matches the key formats of the supported vendors plus
// generic bearer tokens. Order matters: more specific prefixes first.
var secretPatterns = []*regexp.Regexp{
	// Anthropic keys: sk-ant-...
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`),
	// OpenRouter keys: sk-or-...
	regexp.MustCompile(`sk-or-[a-zA-Z0-9_-]{20,}`),
	// OpenAI keys: sk-...
	regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),
	// xAI keys: xai-...
	regexp.MustCompile(`xai-[a-zA-Z0-9_-]{20,}`),
	// Google AI keys: AIza...
	regexp.MustCompile(`AIza[a-zA-Z0-9_-]{30,}`),
	// Bearer tokens embedded in strings
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_.-]{20,}`),
}

// sensitiveKeyFragments flags attribute names whose values are always
// redacted wholesale, whatever they look like.
var sensitiveKeyFragments = []string{
	"secret",
	"api_key",
	"apikey",
	"authorization",
	"credential",
	"token",
	"password",
}

// Redact replaces every detected secret in s.
func Redact(s string) string {
	out := s
	for _, p := range secretPatterns {
		out = p.ReplaceAllString(out, Redacted)
	}
	return out
}

// MaskKey shortens a secret for display: first 6 and last 4 characters.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 10 {
		return "***"
	}
	return key[:6] + "..." + key[len(key)-4:]
}

// RedactingHandler wraps an slog.Handler and scrubs secrets from every
// record before it reaches the sink.
type RedactingHandler struct {
	inner slog.Handler
}

// NewRedactingHandler wraps an existing handler.
func NewRedactingHandler(inner slog.Handler) *RedactingHandler {
	return &RedactingHandler{inner: inner}
}

// Enabled reports whether the handler handles records at the given level.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle scrubs the message and all attributes, then delegates.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.Record{
		Time:    r.Time,
		Message: Redact(r.Message),
		Level:   r.Level,
		PC:      r.PC,
	}

	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(redactAttr(a))
		return true
	})

	return h.inner.Handle(ctx, clean)
}

// WithAttrs returns a new handler with the given attributes added.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redactAttr(a)
	}
	return &RedactingHandler{inner: h.inner.WithAttrs(clean)}
}

// WithGroup returns a new handler with the given group name.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{inner: h.inner.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, Redacted)
	}

	switch v := a.Value.Any().(type) {
	case string:
		return slog.String(a.Key, Redact(v))
	case []string:
		clean := make([]string, len(v))
		for i, s := range v {
			clean[i] = Redact(s)
		}
		return slog.Any(a.Key, clean)
	}
	return a
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
