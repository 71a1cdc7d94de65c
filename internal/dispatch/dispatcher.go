package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/promptbridge/promptbridge/internal/adapter"
	"github.com/promptbridge/promptbridge/internal/cache"
	"github.com/promptbridge/promptbridge/internal/config"
	"github.com/promptbridge/promptbridge/internal/domain"
	"github.com/promptbridge/promptbridge/internal/ui"
)

// Sender is the slice of the vendor adapter the dispatcher needs. The
// concrete implementation is adapter.Adapter; tests substitute stubs.
type Sender interface {
	Send(ctx context.Context, req domain.Request) domain.Result
	TestConnection(ctx context.Context, model string) domain.Result
}

// SenderFactory builds a Sender for one vendor and secret. The metadata
// already carries any configured endpoint override.
type SenderFactory func(meta adapter.VendorMeta, secret string) Sender

func defaultSenderFactory(meta adapter.VendorMeta, secret string) Sender {
	return adapter.New(meta, secret)
}

// Dispatcher is the request-handling core. It is stateless between calls
// except for the injected cache store and the read-only configuration
// snapshot, so independent calls may run concurrently.
type Dispatcher struct {
	cfg       *config.Configuration
	store     *cache.Store // nil disables caching entirely
	logger    *slog.Logger
	tally     *UsageTally
	newSender SenderFactory
}

// DispatcherOption is a functional option for configuring a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithCache attaches a cache store. Without one, every cache policy
// resolves to "off".
func WithCache(store *cache.Store) DispatcherOption {
	return func(d *Dispatcher) {
		d.store = store
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithUsageTally attaches a usage tally updated on every success.
func WithUsageTally(tally *UsageTally) DispatcherOption {
	return func(d *Dispatcher) {
		d.tally = tally
	}
}

// WithSenderFactory substitutes the adapter constructor (tests).
func WithSenderFactory(factory SenderFactory) DispatcherOption {
	return func(d *Dispatcher) {
		d.newSender = factory
	}
}

// New creates a Dispatcher over an explicit configuration snapshot.
func New(cfg *config.Configuration, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		cfg:       cfg,
		logger:    slog.Default(),
		newSender: defaultSenderFactory,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch performs a single completion attempt:
// cache check, credential resolution, vendor call, best-effort cache write.
// Every failure surfaces as a failure Result; nothing panics or retries.
func (d *Dispatcher) Dispatch(ctx context.Context, message string, o Options) domain.Result {
	provider := o.Provider
	if provider == "" {
		provider = d.cfg.DefaultProvider()
	}

	meta, ok := adapter.MetaFor(provider)
	if !ok {
		return domain.Failure(fmt.Sprintf("unknown provider %q", provider))
	}

	requestID := uuid.NewString()
	system := d.cfg.Defaults.System
	if o.System != nil {
		system = *o.System
	}
	temperature := d.cfg.Defaults.Temperature
	if o.Temperature != nil {
		temperature = *o.Temperature
	}
	maxTokens := d.cfg.Defaults.MaxTokens
	if o.MaxTokens != nil {
		maxTokens = *o.MaxTokens
	}

	cacheActive, ttlSpec := d.cachePolicy(o)
	keyOpts := cache.KeyOptions{
		Provider:    provider,
		Model:       o.Model,
		System:      system,
		Temperature: temperature,
		History:     o.History,
	}

	if cacheActive {
		if res, hit := d.store.Get(message, keyOpts, o.ContextID); hit {
			d.logger.Info("cache hit",
				slog.String("request_id", requestID),
				slog.String("provider", string(provider)),
				slog.Int("context", o.ContextID),
			)
			ui.PrintCacheHit(cache.Fingerprint(message, keyOpts), o.ContextID)
			return res
		}
	}

	cred, ok := d.resolveCredential(provider, o)
	if !ok {
		// Configuration error: no network activity.
		d.logger.Error("no active credential",
			slog.String("request_id", requestID),
			slog.String("provider", string(provider)),
		)
		return domain.Failure(fmt.Sprintf("no active credential for provider %s", provider))
	}

	settings := d.cfg.ProviderSettingsFor(provider)
	if settings.BaseURL != "" {
		meta.Endpoint = settings.BaseURL
	}

	req := domain.Request{
		Message:     message,
		History:     o.History,
		System:      system,
		Provider:    provider,
		Model:       cred.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Timeout:     effectiveTimeout(o.TimeoutSeconds, d.cfg.Defaults.TimeoutSeconds),
	}

	if d.cfg.Logging.Debug {
		// Verbose detail may contain prompt content; gated separately.
		d.logger.Debug("dispatching request",
			slog.String("request_id", requestID),
			slog.String("provider", string(provider)),
			slog.String("model", req.Model),
			slog.String("message", message),
			slog.String("system", system),
			slog.Int("history_turns", len(req.History)),
		)
	}

	res := d.newSender(meta, cred.secret).Send(ctx, req)
	res.Provider = provider
	if res.Success {
		res.KeyIndex = cred.index
		res.KeyLabel = cred.label

		if d.tally != nil {
			d.tally.Record(provider, res.Usage)
		}
		d.logger.Info("dispatch succeeded",
			slog.String("request_id", requestID),
			slog.String("provider", string(provider)),
			slog.String("model", req.Model),
			slog.Int("total_tokens", res.Usage.TotalTokens),
		)
		ui.PrintDispatchOK(provider, req.Model, res.Usage.TotalTokens)

		if cacheActive {
			if err := d.store.Set(message, keyOpts, res, ttlSpec, o.ContextID); err != nil {
				// Caching is best-effort; the result still goes back.
				d.logger.Error("cache write failed",
					slog.String("request_id", requestID),
					slog.String("error", err.Error()),
				)
			}
		}
		return res
	}

	res.Cached = false
	d.logger.Error("dispatch failed",
		slog.String("request_id", requestID),
		slog.String("provider", string(provider)),
		slog.String("message", res.Message),
	)
	ui.PrintDispatchFailed(provider, cred.secret, res.Message)
	return res
}

// DispatchWithFallback wraps Dispatch in the fallback loop: every enabled
// credential of the primary vendor in list order, then every enabled
// credential of each fallback vendor. The first success wins and is
// annotated with the vendor, credential index and label that answered.
func (d *Dispatcher) DispatchWithFallback(ctx context.Context, message string, o Options) domain.Result {
	primary := o.Provider
	if primary == "" {
		primary = d.cfg.DefaultProvider()
	}

	var lastMessage string
	attempts := 0

	if res, ok := d.tryCredentials(ctx, message, primary, o, &lastMessage, &attempts); ok {
		return res
	}

	// Vendor-specific overrides do not carry across vendors.
	cleared := o
	cleared.APIKey = ""
	cleared.KeyIndex = nil
	cleared.Model = ""

	prev := primary
	for _, fb := range o.Fallbacks {
		if fb == primary {
			continue
		}
		ui.PrintVendorFallback(prev, fb)
		if res, ok := d.tryCredentials(ctx, message, fb, cleared, &lastMessage, &attempts); ok {
			return res
		}
		prev = fb
	}

	if attempts == 0 {
		return domain.Failure("no active credentials available for any provider")
	}
	return domain.Failure(fmt.Sprintf("all providers failed after %d attempts; last error: %s", attempts, lastMessage))
}

// tryCredentials runs the per-vendor credential sub-loop. Credentials that
// are disabled or have an empty secret are skipped silently and do not count
// as attempts.
func (d *Dispatcher) tryCredentials(ctx context.Context, message string, provider domain.ProviderType, o Options, lastMessage *string, attempts *int) (domain.Result, bool) {
	creds := d.cfg.CredentialsFor(provider)
	for i, c := range creds {
		if !c.Usable() {
			continue
		}

		attempt := o
		attempt.Provider = provider
		attempt.APIKey = c.Secret
		attempt.KeyIndex = nil
		if o.Model == "" {
			attempt.Model = c.Model
		}

		*attempts++
		res := d.Dispatch(ctx, message, attempt)
		if res.Success {
			res.Provider = provider
			if !res.Cached {
				// A cache hit keeps the stored annotation; no credential
				// answered this call.
				res.KeyIndex = i
				res.KeyLabel = c.Label
			}
			return res, true
		}

		*lastMessage = res.Message
		d.logger.Warn("credential failed, trying next",
			slog.String("provider", string(provider)),
			slog.Int("key_index", i),
			slog.String("key_label", c.Label),
			slog.String("error", res.Message),
		)
		if next := nextUsable(creds, i+1); next >= 0 {
			ui.PrintFailover(provider, i, next)
		}
	}
	return domain.Result{}, false
}

// DispatchMultiple invokes single-attempt dispatch once per listed vendor,
// independently and concurrently; one vendor's failure does not affect the
// others. Results are keyed by vendor name.
func (d *Dispatcher) DispatchMultiple(ctx context.Context, message string, providers []domain.ProviderType, o Options) map[domain.ProviderType]domain.Result {
	results := make(map[domain.ProviderType]domain.Result, len(providers))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, p := range providers {
		wg.Add(1)
		go func(p domain.ProviderType) {
			defer wg.Done()

			opts := o
			opts.Provider = p
			if p != o.Provider {
				// Key/index/model overrides are vendor-specific.
				opts.APIKey = ""
				opts.KeyIndex = nil
				opts.Model = ""
			}

			res := d.Dispatch(ctx, message, opts)
			mu.Lock()
			results[p] = res
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	return results
}

// TestCredential performs the health-check round trip for one configured
// credential, addressed by vendor and positional index.
func (d *Dispatcher) TestCredential(ctx context.Context, provider domain.ProviderType, index int) domain.Result {
	meta, ok := adapter.MetaFor(provider)
	if !ok {
		return domain.Failure(fmt.Sprintf("unknown provider %q", provider))
	}

	creds := d.cfg.CredentialsFor(provider)
	if index < 0 || index >= len(creds) || creds[index].Secret == "" {
		return domain.Failure(fmt.Sprintf("no credential at index %d for provider %s", index, provider))
	}

	settings := d.cfg.ProviderSettingsFor(provider)
	if settings.BaseURL != "" {
		meta.Endpoint = settings.BaseURL
	}

	cred := creds[index]
	model := firstNonEmpty(cred.Model, settings.Model)
	return d.newSender(meta, cred.Secret).TestConnection(ctx, model)
}

// cachePolicy resolves the effective cache policy for a call: the explicit
// per-call setting wins; absent that, the process-wide flag and default TTL
// apply. No store means no caching regardless of policy.
func (d *Dispatcher) cachePolicy(o Options) (bool, string) {
	if d.store == nil {
		return false, ""
	}
	switch o.Cache.mode {
	case cacheModeOff:
		return false, ""
	case cacheModeOn:
		return true, d.cfg.Cache.DefaultTTL
	case cacheModeTTL:
		return true, o.Cache.ttlSpec
	default:
		if d.cfg.Cache.Enabled {
			return true, d.cfg.Cache.DefaultTTL
		}
		return false, ""
	}
}
