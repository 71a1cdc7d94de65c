package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/promptbridge/promptbridge/internal/domain"
)

const (
	// DefaultTimeout is the default HTTP attempt timeout.
	DefaultTimeout = 30 * time.Second

	// MinTimeout is the floor applied to per-call timeout overrides.
	MinTimeout = 5 * time.Second

	// rawSnippetLen bounds how much of a malformed body is kept for
	// diagnostics. Never retain or log the full body.
	rawSnippetLen = 500
)

// Adapter performs completion calls against one vendor with one secret.
// Create a fresh Adapter per attempt; it holds no mutable state beyond the
// shared HTTP client.
type Adapter struct {
	meta       VendorMeta
	secret     string
	httpClient *http.Client
}

// Option is a functional option for configuring an Adapter.
type Option func(*Adapter)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Adapter) {
		a.httpClient = client
	}
}

// WithEndpoint overrides the vendor endpoint (used for self-hosted gateways
// and for tests against mock servers).
func WithEndpoint(url string) Option {
	return func(a *Adapter) {
		a.meta.Endpoint = strings.TrimSuffix(url, "/")
	}
}

// New creates an Adapter for the given vendor metadata and secret.
func New(meta VendorMeta, secret string, opts ...Option) *Adapter {
	a := &Adapter{
		meta:   meta,
		secret: secret,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Send performs one completion attempt and normalizes the outcome.
// All failures surface as a failure Result; Send never retries (retry across
// credentials and vendors is the dispatcher's job).
func (a *Adapter) Send(ctx context.Context, req domain.Request) domain.Result {
	model := req.Model
	if model == "" {
		model = a.meta.DefaultModel
	}

	var payload []byte
	var err error
	switch a.meta.Format {
	case FormatNative:
		payload, err = a.buildNativePayload(req, model)
	default:
		payload, err = a.buildChatPayload(req, model)
	}
	if err != nil {
		return domain.Failure(fmt.Sprintf("%s: failed to encode request: %v", a.meta.Name, err))
	}

	if req.Timeout > 0 {
		timeout := req.Timeout
		if timeout < MinTimeout {
			timeout = MinTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.meta.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.Failure(fmt.Sprintf("%s: failed to create request: %v", a.meta.Name, err))
	}
	a.applyHeaders(httpReq)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		// Transport-layer failure: connection, DNS, timeout.
		return domain.Failure(fmt.Sprintf("%s: request failed: %v", a.meta.Name, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Failure(fmt.Sprintf("%s: failed to read response: %v", a.meta.Name, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if vendorMsg := extractErrorMessage(body); vendorMsg != "" {
			msg += ": " + vendorMsg
		}
		res := domain.Failure(msg)
		res.Raw = truncateRaw(body)
		return res
	}

	switch a.meta.Format {
	case FormatNative:
		return a.parseNativeResponse(body)
	default:
		return a.parseChatResponse(body)
	}
}

// TestConnection performs a minimal one-token round trip used for credential
// health checks. An empty model falls back to the vendor default.
func (a *Adapter) TestConnection(ctx context.Context, model string) domain.Result {
	return a.Send(ctx, domain.Request{
		Message:   "Hi",
		Provider:  a.meta.Name,
		Model:     model,
		MaxTokens: 1,
	})
}

func (a *Adapter) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")

	switch a.meta.Auth {
	case AuthHeader:
		req.Header.Set(a.meta.AuthHeaderName, a.secret)
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+a.secret)
	}

	for name, value := range a.meta.ExtraHeaders {
		if value != "" {
			req.Header.Set(name, value)
		}
	}
}

// buildNativePayload shapes the native-turn format: system instruction is a
// top-level field and temperature is omitted entirely when it clamps to
// zero, since the vendor treats omission and explicit 0 differently.
func (a *Adapter) buildNativePayload(req domain.Request, model string) ([]byte, error) {
	messages := make([]wireMessage, 0, len(req.History)+1)
	for _, turn := range req.History {
		messages = append(messages, wireMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, wireMessage{Role: "user", Content: req.Message})

	body := map[string]any{
		"model":    model,
		"messages": messages,
	}
	if req.MaxTokens > 0 {
		body[a.meta.MaxTokensField] = req.MaxTokens
	}
	if req.System != "" {
		body["system"] = req.System
	}
	if t := clampTemperature(req.Temperature, a.meta.TemperatureCap); t != 0 {
		body["temperature"] = t
	}
	return json.Marshal(body)
}

// buildChatPayload shapes the chat-array format: the system instruction is a
// leading message with role "system". The max-output-tokens field name is a
// per-vendor quirk carried in the metadata.
func (a *Adapter) buildChatPayload(req domain.Request, model string) ([]byte, error) {
	messages := make([]wireMessage, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, wireMessage{Role: "system", Content: req.System})
	}
	for _, turn := range req.History {
		messages = append(messages, wireMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, wireMessage{Role: "user", Content: req.Message})

	body := map[string]any{
		"model":       model,
		"messages":    messages,
		"temperature": clampTemperature(req.Temperature, a.meta.TemperatureCap),
	}
	if req.MaxTokens > 0 {
		body[a.meta.MaxTokensField] = req.MaxTokens
	}
	return json.Marshal(body)
}

// parseNativeResponse extracts text and usage from a native-format body.
// Text is the in-order concatenation of all text-typed content blocks; the
// usage total is computed by summing input and output counts.
func (a *Adapter) parseNativeResponse(body []byte) domain.Result {
	var parsed nativeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return invalidResponse(a.meta.Name, body)
	}

	// Some vendors signal errors in a 200 body.
	if parsed.Error != nil && parsed.Error.Message != "" {
		res := domain.Failure(parsed.Error.Message)
		res.Raw = truncateRaw(body)
		return res
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if len(parsed.Content) == 0 {
		return invalidResponse(a.meta.Name, body)
	}

	usage := domain.Usage{
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
		TotalTokens:  parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
	}
	return domain.Succeeded(text.String(), usage, body)
}

// parseChatResponse extracts text and usage from a chat-format body. Usage
// arrives pre-aggregated and is passed through as-is.
func (a *Adapter) parseChatResponse(body []byte) domain.Result {
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return invalidResponse(a.meta.Name, body)
	}

	if parsed.Error != nil && parsed.Error.Message != "" {
		res := domain.Failure(parsed.Error.Message)
		res.Raw = truncateRaw(body)
		return res
	}

	if len(parsed.Choices) == 0 {
		return invalidResponse(a.meta.Name, body)
	}

	usage := domain.Usage{
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
		TotalTokens:  parsed.Usage.TotalTokens,
	}
	return domain.Succeeded(parsed.Choices[0].Message.Content, usage, body)
}

func invalidResponse(vendor domain.ProviderType, body []byte) domain.Result {
	res := domain.Failure(fmt.Sprintf("%s: invalid response format", vendor))
	res.Raw = truncateRaw(body)
	return res
}

// extractErrorMessage pulls a vendor-supplied error message out of an error
// body, tolerating both {"error":{"message":...}} and {"error":"..."}.
func extractErrorMessage(body []byte) string {
	var structured struct {
		Error *wireError `json:"error"`
	}
	if err := json.Unmarshal(body, &structured); err == nil && structured.Error != nil {
		return structured.Error.Message
	}

	var loose struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &loose); err == nil {
		return loose.Error
	}
	return ""
}

func truncateRaw(body []byte) json.RawMessage {
	if len(body) <= rawSnippetLen {
		return json.RawMessage(body)
	}
	// A truncated body is no longer valid JSON; re-wrap it as a string so
	// the Result still marshals cleanly.
	snippet, _ := json.Marshal(string(body[:rawSnippetLen]))
	return json.RawMessage(snippet)
}

func clampTemperature(t, limit float64) float64 {
	if t < 0 {
		return 0
	}
	if t > limit {
		return limit
	}
	return t
}

// wireMessage is one chat turn on the wire; both formats share the shape.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// wireError is the common embedded error object shape.
type wireError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// nativeResponse mirrors the native-turn format response body.
type nativeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *wireError `json:"error,omitempty"`
}

// chatResponse mirrors the chat-array format response body.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *wireError `json:"error,omitempty"`
}
