// Package field implements the ask-and-persist flows over the record store:
// serve a stored field when present, otherwise dispatch and write the answer
// back. Write failures never invalidate the generated content.
package field

import (
	"context"
	"log/slog"

	"github.com/promptbridge/promptbridge/internal/dispatch"
	"github.com/promptbridge/promptbridge/internal/domain"
	"github.com/promptbridge/promptbridge/internal/record"
)

// Source tags where a field result came from.
type Source string

const (
	// SourceField means the value was already stored; no network call.
	SourceField Source = "field"

	// SourceGenerated means the value was freshly dispatched.
	SourceGenerated Source = "generated"

	// SourceError means dispatch failed; nothing was written.
	SourceError Source = "error"
)

// Result is a dispatch result tagged with its field name and source.
type Result struct {
	domain.Result
	Field  string `json:"field"`
	Source Source `json:"source"`
}

// Prompt pairs a field name with the prompt that generates it.
type Prompt struct {
	Field  string `json:"field"`
	Prompt string `json:"prompt"`
}

// Service runs the ask-and-persist flows.
type Service struct {
	dispatcher *dispatch.Dispatcher
	store      record.Store
	logger     *slog.Logger
}

// ServiceOption is a functional option for configuring a Service.
type ServiceOption func(*Service)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a Service over a dispatcher and a record store.
func NewService(dispatcher *dispatch.Dispatcher, store record.Store, opts ...ServiceOption) *Service {
	s := &Service{
		dispatcher: dispatcher,
		store:      store,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate serves fieldName for recordID: stored value first, otherwise
// dispatch (with fallback) and persist the answer. A persist failure is
// logged and swallowed; the generated content still goes back to the caller.
func (s *Service) Generate(ctx context.Context, recordID int, fieldName, prompt string, o dispatch.Options) Result {
	if value, ok := s.readField(ctx, recordID, fieldName); ok {
		res := domain.Result{
			Success:  true,
			Content:  value,
			Message:  "served from record field",
			KeyIndex: -1,
		}
		return Result{Result: res, Field: fieldName, Source: SourceField}
	}

	o.ContextID = recordID
	res := s.dispatcher.DispatchWithFallback(ctx, prompt, o)
	if !res.Success {
		return Result{Result: res, Field: fieldName, Source: SourceError}
	}

	s.writeField(ctx, recordID, fieldName, res.Content)
	return Result{Result: res, Field: fieldName, Source: SourceGenerated}
}

// GenerateBatch applies the ask-and-persist flow per field. When the same
// prompt recurs within a batch, one dispatch result is shared across the
// fields instead of paying for a second call.
func (s *Service) GenerateBatch(ctx context.Context, recordID int, prompts []Prompt, o dispatch.Options) []Result {
	results := make([]Result, 0, len(prompts))
	dispatched := make(map[string]domain.Result)

	for _, p := range prompts {
		if value, ok := s.readField(ctx, recordID, p.Field); ok {
			res := domain.Result{
				Success:  true,
				Content:  value,
				Message:  "served from record field",
				KeyIndex: -1,
			}
			results = append(results, Result{Result: res, Field: p.Field, Source: SourceField})
			continue
		}

		res, seen := dispatched[p.Prompt]
		if !seen {
			opts := o
			opts.ContextID = recordID
			res = s.dispatcher.DispatchWithFallback(ctx, p.Prompt, opts)
			dispatched[p.Prompt] = res
		}

		if !res.Success {
			results = append(results, Result{Result: res, Field: p.Field, Source: SourceError})
			continue
		}

		s.writeField(ctx, recordID, p.Field, res.Content)
		results = append(results, Result{Result: res, Field: p.Field, Source: SourceGenerated})
	}

	return results
}

// readField treats a read error as absence; the flow then regenerates.
func (s *Service) readField(ctx context.Context, recordID int, name string) (string, bool) {
	value, ok, err := s.store.ReadField(ctx, recordID, name)
	if err != nil {
		s.logger.Error("record field read failed",
			slog.Int("record", recordID),
			slog.String("field", name),
			slog.String("error", err.Error()),
		)
		return "", false
	}
	return value, ok
}

// writeField logs and swallows persist failures.
func (s *Service) writeField(ctx context.Context, recordID int, name, value string) {
	if err := s.store.WriteField(ctx, recordID, name, value); err != nil {
		s.logger.Error("record field write failed",
			slog.Int("record", recordID),
			slog.String("field", name),
			slog.String("error", err.Error()),
		)
	}
}
