package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/promptbridge/promptbridge/internal/domain"
)

// capture records the last request a mock vendor server received.
type capture struct {
	headers http.Header
	body    map[string]any
}

// newMockVendor starts a server that records the incoming request and
// answers with the given status and body.
func newMockVendor(t *testing.T, status int, responseBody any, rec *capture) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.headers = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&rec.body); err != nil {
			t.Errorf("mock vendor received invalid JSON: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(responseBody)
	}))
}

func nativeOKBody() map[string]any {
	return map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": "Hello"},
			{"type": "text", "text": " world"},
		},
		"usage": map[string]any{"input_tokens": 10, "output_tokens": 15},
	}
}

func chatOKBody() map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": "Hello world"}},
		},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 15, "total_tokens": 25},
	}
}

func TestNativePayloadShaping(t *testing.T) {
	var rec capture
	srv := newMockVendor(t, http.StatusOK, nativeOKBody(), &rec)
	defer srv.Close()

	a := New(Vendors[domain.ProviderAnthropic], "sk-ant-test-key", WithEndpoint(srv.URL))
	res := a.Send(context.Background(), domain.Request{
		Message:     "current question",
		History:     []domain.Turn{{Role: "user", Content: "earlier"}, {Role: "assistant", Content: "reply"}},
		System:      "You are terse.",
		Model:       "claude-sonnet-4-20250514",
		Temperature: 0, // must be omitted, not sent as 0
		MaxTokens:   256,
	})
	if !res.Success {
		t.Fatalf("Send failed: %s", res.Message)
	}

	if got := rec.headers.Get("x-api-key"); got != "sk-ant-test-key" {
		t.Errorf("x-api-key = %q, want the raw secret", got)
	}
	if got := rec.headers.Get("anthropic-version"); got != "2023-06-01" {
		t.Errorf("anthropic-version = %q, want 2023-06-01", got)
	}
	if rec.headers.Get("Authorization") != "" {
		t.Error("native vendor must not receive an Authorization header")
	}

	if got := rec.body["system"]; got != "You are terse." {
		t.Errorf("system = %v, want top-level field", got)
	}
	if _, present := rec.body["temperature"]; present {
		t.Error("temperature 0 must be omitted from the native payload")
	}
	if got := rec.body["max_tokens"]; got != float64(256) {
		t.Errorf("max_tokens = %v, want 256", got)
	}

	messages := rec.body["messages"].([]any)
	if len(messages) != 3 {
		t.Fatalf("messages length = %d, want history + current", len(messages))
	}
	last := messages[2].(map[string]any)
	if last["role"] != "user" || last["content"] != "current question" {
		t.Errorf("last message = %v, want the current user turn", last)
	}
	for _, m := range messages {
		if m.(map[string]any)["role"] == "system" {
			t.Error("native payload must not carry system as a message")
		}
	}
}

func TestNativeTemperatureClamped(t *testing.T) {
	var rec capture
	srv := newMockVendor(t, http.StatusOK, nativeOKBody(), &rec)
	defer srv.Close()

	a := New(Vendors[domain.ProviderAnthropic], "sk-ant-test-key", WithEndpoint(srv.URL))
	a.Send(context.Background(), domain.Request{Message: "q", Temperature: 1.7, MaxTokens: 10})

	if got := rec.body["temperature"]; got != float64(1.0) {
		t.Errorf("temperature = %v, want clamped to the vendor cap 1.0", got)
	}
}

func TestNativeNegativeTemperatureOmitted(t *testing.T) {
	var rec capture
	srv := newMockVendor(t, http.StatusOK, nativeOKBody(), &rec)
	defer srv.Close()

	a := New(Vendors[domain.ProviderAnthropic], "sk-ant-test-key", WithEndpoint(srv.URL))
	a.Send(context.Background(), domain.Request{Message: "q", Temperature: -0.3, MaxTokens: 10})

	if _, present := rec.body["temperature"]; present {
		t.Error("a negative temperature clamps to zero and must be omitted like zero")
	}
}

func TestChatPayloadShaping(t *testing.T) {
	var rec capture
	srv := newMockVendor(t, http.StatusOK, chatOKBody(), &rec)
	defer srv.Close()

	a := New(Vendors[domain.ProviderOpenAI], "sk-test-openai-key", WithEndpoint(srv.URL))
	res := a.Send(context.Background(), domain.Request{
		Message:     "current question",
		History:     []domain.Turn{{Role: "user", Content: "earlier"}},
		System:      "You are terse.",
		Model:       "gpt-4o-mini",
		Temperature: 0, // chat format sends it explicitly
		MaxTokens:   256,
	})
	if !res.Success {
		t.Fatalf("Send failed: %s", res.Message)
	}

	if got := rec.headers.Get("Authorization"); got != "Bearer sk-test-openai-key" {
		t.Errorf("Authorization = %q, want bearer token", got)
	}

	if _, present := rec.body["system"]; present {
		t.Error("chat payload must not carry a top-level system field")
	}
	messages := rec.body["messages"].([]any)
	first := messages[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "You are terse." {
		t.Errorf("first message = %v, want the system turn", first)
	}

	if got, present := rec.body["temperature"]; !present || got != float64(0) {
		t.Errorf("temperature = %v (present=%v), chat format always sends it", got, present)
	}

	if got := rec.body["max_completion_tokens"]; got != float64(256) {
		t.Errorf("max_completion_tokens = %v, want 256", got)
	}
	if _, present := rec.body["max_tokens"]; present {
		t.Error("openai payload must use max_completion_tokens, not max_tokens")
	}
}

func TestChatMaxTokensFieldPerVendor(t *testing.T) {
	for _, p := range []domain.ProviderType{domain.ProviderGoogle, domain.ProviderXAI, domain.ProviderOpenRouter} {
		t.Run(string(p), func(t *testing.T) {
			var rec capture
			srv := newMockVendor(t, http.StatusOK, chatOKBody(), &rec)
			defer srv.Close()

			a := New(Vendors[p], "test-key-0123456789", WithEndpoint(srv.URL))
			a.Send(context.Background(), domain.Request{Message: "q", MaxTokens: 64})

			if got := rec.body["max_tokens"]; got != float64(64) {
				t.Errorf("max_tokens = %v, want 64", got)
			}
		})
	}
}

func TestOpenRouterAttributionHeaders(t *testing.T) {
	var rec capture
	srv := newMockVendor(t, http.StatusOK, chatOKBody(), &rec)
	defer srv.Close()

	a := New(Vendors[domain.ProviderOpenRouter], "sk-or-test-key", WithEndpoint(srv.URL))
	a.Send(context.Background(), domain.Request{Message: "q"})

	if rec.headers.Get("HTTP-Referer") == "" {
		t.Error("openrouter requests must carry the HTTP-Referer header")
	}
	if rec.headers.Get("X-Title") == "" {
		t.Error("openrouter requests must carry the X-Title header")
	}
}

func TestNativeResponseParsing(t *testing.T) {
	var rec capture
	srv := newMockVendor(t, http.StatusOK, nativeOKBody(), &rec)
	defer srv.Close()

	a := New(Vendors[domain.ProviderAnthropic], "sk-ant-test-key", WithEndpoint(srv.URL))
	res := a.Send(context.Background(), domain.Request{Message: "q"})

	if !res.Success {
		t.Fatalf("Send failed: %s", res.Message)
	}
	if res.Content != "Hello world" {
		t.Errorf("Content = %q, want text blocks concatenated in order", res.Content)
	}
	if res.Usage.TotalTokens != 25 {
		t.Errorf("TotalTokens = %d, want input+output summed to 25", res.Usage.TotalTokens)
	}
	if len(res.Raw) == 0 {
		t.Error("successful result should carry the raw vendor payload")
	}
}

func TestChatResponseParsing(t *testing.T) {
	var rec capture
	srv := newMockVendor(t, http.StatusOK, chatOKBody(), &rec)
	defer srv.Close()

	a := New(Vendors[domain.ProviderOpenAI], "sk-test-openai-key", WithEndpoint(srv.URL))
	res := a.Send(context.Background(), domain.Request{Message: "q"})

	if !res.Success {
		t.Fatalf("Send failed: %s", res.Message)
	}
	if res.Content != "Hello world" {
		t.Errorf("Content = %q, want first choice content", res.Content)
	}
	if res.Usage.InputTokens != 10 || res.Usage.OutputTokens != 15 || res.Usage.TotalTokens != 25 {
		t.Errorf("Usage = %+v, want the vendor's pre-aggregated counts", res.Usage)
	}
}

func TestHTTPErrorCarriesVendorMessage(t *testing.T) {
	var rec capture
	srv := newMockVendor(t, http.StatusTooManyRequests, map[string]any{
		"error": map[string]any{"message": "rate limited", "type": "rate_limit_error"},
	}, &rec)
	defer srv.Close()

	a := New(Vendors[domain.ProviderAnthropic], "sk-ant-test-key", WithEndpoint(srv.URL))
	res := a.Send(context.Background(), domain.Request{Message: "q"})

	if res.Success {
		t.Fatal("expected failure on HTTP 429")
	}
	if res.Message != "HTTP 429: rate limited" {
		t.Errorf("Message = %q, want code plus vendor detail", res.Message)
	}
	if len(res.Raw) == 0 {
		t.Error("error result should keep the raw body for diagnostics")
	}
}

func TestErrorObjectInOKBody(t *testing.T) {
	var rec capture
	srv := newMockVendor(t, http.StatusOK, map[string]any{
		"error": map[string]any{"message": "overloaded", "type": "overloaded_error"},
	}, &rec)
	defer srv.Close()

	a := New(Vendors[domain.ProviderAnthropic], "sk-ant-test-key", WithEndpoint(srv.URL))
	res := a.Send(context.Background(), domain.Request{Message: "q"})

	if res.Success {
		t.Fatal("an error object in a 200 body must still fail")
	}
	if res.Message != "overloaded" {
		t.Errorf("Message = %q, want the embedded error message", res.Message)
	}
}

func TestMalformedBodyBoundedSnippet(t *testing.T) {
	big := strings.Repeat("x", 2000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(big))
	}))
	defer srv.Close()

	a := New(Vendors[domain.ProviderOpenAI], "sk-test-openai-key", WithEndpoint(srv.URL))
	res := a.Send(context.Background(), domain.Request{Message: "q"})

	if res.Success {
		t.Fatal("expected failure on a non-JSON body")
	}
	if !strings.Contains(res.Message, "invalid response format") {
		t.Errorf("Message = %q, want invalid response classification", res.Message)
	}
	// Snippet plus JSON string quoting, never the whole 2000 bytes.
	if len(res.Raw) == 0 || len(res.Raw) > rawSnippetLen+10 {
		t.Errorf("Raw length = %d, want a bounded snippet", len(res.Raw))
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	a := New(Vendors[domain.ProviderAnthropic], "sk-ant-test-key", WithEndpoint(srv.URL))
	res := a.Send(context.Background(), domain.Request{Message: "q"})

	if res.Success {
		t.Fatal("expected failure when the vendor is unreachable")
	}
	if !strings.Contains(res.Message, "request failed") {
		t.Errorf("Message = %q, want transport classification", res.Message)
	}
}

func TestDefaultModelApplied(t *testing.T) {
	var rec capture
	srv := newMockVendor(t, http.StatusOK, chatOKBody(), &rec)
	defer srv.Close()

	a := New(Vendors[domain.ProviderOpenAI], "sk-test-openai-key", WithEndpoint(srv.URL))
	a.Send(context.Background(), domain.Request{Message: "q"})

	if got := rec.body["model"]; got != Vendors[domain.ProviderOpenAI].DefaultModel {
		t.Errorf("model = %v, want the vendor default", got)
	}
}

func TestTestConnectionMinimalRequest(t *testing.T) {
	var rec capture
	srv := newMockVendor(t, http.StatusOK, nativeOKBody(), &rec)
	defer srv.Close()

	a := New(Vendors[domain.ProviderAnthropic], "sk-ant-test-key", WithEndpoint(srv.URL))
	res := a.TestConnection(context.Background(), "")

	if !res.Success {
		t.Fatalf("TestConnection failed: %s", res.Message)
	}
	if got := rec.body["max_tokens"]; got != float64(1) {
		t.Errorf("max_tokens = %v, health check must request a single token", got)
	}
}

func TestMetaFor(t *testing.T) {
	for _, p := range domain.AllProviders {
		if _, ok := MetaFor(p); !ok {
			t.Errorf("MetaFor(%s) missing metadata", p)
		}
	}
	if _, ok := MetaFor(domain.ProviderType("mistral")); ok {
		t.Error("MetaFor must reject unknown vendors")
	}
}
