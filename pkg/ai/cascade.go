package ai

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	providerAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "provider_attempts_total",
		Help:      "Number of provider calls grouped by outcome",
	}, []string{"provider", "outcome"})

	providerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "provider_duration_seconds",
		Help:      "Duration of individual provider calls",
	}, []string{"provider"})

	cascadeExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "cascade_exhausted_total",
		Help:      "Number of cascade runs where every provider failed",
	})
)

const (
	// DefaultRetryMultiplier is the number of passes over a provider's key pool.
	DefaultRetryMultiplier = 3
	// DefaultRateLimitBackoff is the pause after a rate-limited attempt.
	DefaultRateLimitBackoff = time.Second
)

// CascadeEntry pairs a provider with its retry multiplier.
type CascadeEntry struct {
	Client     *ProviderClient
	Multiplier int
}

// CascadeOption customises a Cascade.
type CascadeOption func(*Cascade)

// WithBackoff overrides the fixed pause applied after a rate-limited attempt.
func WithBackoff(d time.Duration) CascadeOption {
	return func(c *Cascade) { c.backoff = d }
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) CascadeOption {
	return func(c *Cascade) { c.logger = logger }
}

// WithName labels the cascade in logs and spans.
func WithName(name string) CascadeOption {
	return func(c *Cascade) { c.name = name }
}

// Cascade tries an ordered list of providers until one answers. The order is fixed
// at construction; each provider gets at most poolSize*multiplier attempts.
type Cascade struct {
	name    string
	entries []CascadeEntry
	backoff time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewCascade builds a cascade over the given entries. Nil clients are ignored.
func NewCascade(entries []CascadeEntry, opts ...CascadeOption) *Cascade {
	filtered := make([]CascadeEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Client == nil {
			continue
		}
		if entry.Multiplier <= 0 {
			entry.Multiplier = DefaultRetryMultiplier
		}
		filtered = append(filtered, entry)
	}

	c := &Cascade{
		name:    "default",
		entries: filtered,
		backoff: DefaultRateLimitBackoff,
		sleep:   sleepContext,
		logger:  zerolog.Nop(),
		tracer:  otel.Tracer("github.com/noah-isme/gema-proposal-api/pkg/ai/cascade"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Providers returns the provider kinds in cascade order.
func (c *Cascade) Providers() []ProviderKind {
	kinds := make([]ProviderKind, 0, len(c.entries))
	for _, entry := range c.entries {
		kinds = append(kinds, entry.Client.Kind())
	}
	return kinds
}

// MaxAttempts is the upper bound of network calls a single Run can make.
func (c *Cascade) MaxAttempts() int {
	total := 0
	for _, entry := range c.entries {
		total += attemptBudget(entry)
	}
	return total
}

func attemptBudget(entry CascadeEntry) int {
	size := entry.Client.Pool().Size()
	if size == 0 {
		return 0
	}
	budget := size * entry.Multiplier
	if budget < 1 {
		budget = 1
	}
	return budget
}

// Run executes the request against each provider in order and returns the first
// successful completion. ErrAllProvidersExhausted means no provider answered.
func (c *Cascade) Run(parent context.Context, req ChatRequest) (string, error) {
	ctx, span := c.tracer.Start(parent, "ai.cascade.run", trace.WithAttributes(
		attribute.String("cascade", c.name),
		attribute.Bool("expect_json", req.ExpectJSON),
	))
	defer span.End()

	for _, entry := range c.entries {
		text, ok := c.runProvider(ctx, entry, req)
		if ok {
			span.SetAttributes(attribute.String("provider", string(entry.Client.Kind())))
			return text, nil
		}
		if ctx.Err() != nil {
			break
		}
	}

	cascadeExhausted.Inc()
	span.SetStatus(codes.Error, ErrAllProvidersExhausted.Error())
	c.logger.Error().Str("cascade", c.name).Msg("all ai providers exhausted")
	if err := ctx.Err(); err != nil {
		return "", errors.Join(ErrAllProvidersExhausted, err)
	}
	return "", ErrAllProvidersExhausted
}

func (c *Cascade) runProvider(ctx context.Context, entry CascadeEntry, req ChatRequest) (string, bool) {
	client := entry.Client
	kind := string(client.Kind())
	logger := c.logger.With().Str("cascade", c.name).Str("provider", kind).Logger()

	budget := attemptBudget(entry)
	if budget == 0 {
		logger.Debug().Msg("provider has no credentials, skipping")
		providerAttempts.WithLabelValues(kind, "skipped").Inc()
		return "", false
	}

	transientRetried := false
	for attempt := 1; attempt <= budget; attempt++ {
		if ctx.Err() != nil {
			return "", false
		}

		keyIndex := -1
		if credential, err := client.Pool().Current(); err == nil {
			keyIndex = credential.Index
		}

		start := time.Now()
		text, err := client.Complete(ctx, req)
		providerDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

		if err == nil {
			providerAttempts.WithLabelValues(kind, "success").Inc()
			logger.Info().Int("attempt", attempt).Int("key", keyIndex+1).Msg("provider handled request")
			return text, true
		}

		errKind := Classify(err)
		providerAttempts.WithLabelValues(kind, errKind.String()).Inc()
		event := logger.Warn().Err(err).Int("attempt", attempt).Int("key", keyIndex+1).Str("failure", errKind.String())

		switch errKind {
		case KindRateLimited:
			event.Msg("provider key exhausted, rotating")
			client.Pool().Rotate()
			if attempt < budget {
				if sleepErr := c.sleep(ctx, c.backoff); sleepErr != nil {
					return "", false
				}
			}
		case KindTransient:
			client.Pool().Rotate()
			if transientRetried {
				event.Msg("provider failed again, moving on")
				return "", false
			}
			transientRetried = true
			event.Msg("provider failed transiently, retrying once")
		default:
			event.Msg("provider rejected request, moving on")
			return "", false
		}
	}

	logger.Warn().Int("attempts", budget).Msg("provider attempts exhausted")
	return "", false
}

// CompletionOptions are the caller-facing knobs of Complete.
type CompletionOptions struct {
	System     string
	ExpectJSON bool
	// Temperature overrides the backend default when set; see Temperature().
	Temperature *float32
	MaxTokens   int
}

// Complete is a convenience wrapper around Run for plain prompts.
func (c *Cascade) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	return c.Run(ctx, ChatRequest{
		System:      opts.System,
		Prompt:      prompt,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		ExpectJSON:  opts.ExpectJSON,
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
