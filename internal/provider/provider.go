// Package provider assembles the AI cascades and the similarity scorer from configuration.
package provider

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proposal-api/internal/config"
	"github.com/noah-isme/gema-proposal-api/pkg/ai"
)

// NewClient builds the provider client for one provider kind.
func NewClient(kind ai.ProviderKind, cfg config.ProviderConfig) (*ai.ProviderClient, error) {
	var backend ai.ChatBackend

	switch kind {
	case ai.ProviderHuggingFace:
		backend = ai.NewHuggingFaceTextBackend(ai.HuggingFaceConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	default:
		openaiConfig := ai.DefaultOpenAIConfig(kind)
		if cfg.BaseURL != "" {
			openaiConfig.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			openaiConfig.Model = cfg.Model
		}
		openaiBackend, err := ai.NewOpenAIBackend(openaiConfig)
		if err != nil {
			return nil, fmt.Errorf("build %s backend: %w", kind, err)
		}
		backend = openaiBackend
	}

	return ai.NewProviderClient(ai.ProviderClientConfig{
		Kind:    kind,
		Backend: backend,
		Pool:    ai.NewKeyPool(cfg.Keys),
		Timeout: cfg.Timeout,
	})
}

// NewCascade builds a cascade over order. Every call creates fresh key pools;
// two cascades never share a rotation cursor.
func NewCascade(name string, cfg config.AIConfig, order []ai.ProviderKind, logger zerolog.Logger) (*ai.Cascade, error) {
	entries := make([]ai.CascadeEntry, 0, len(order))
	for _, kind := range order {
		providerConfig := cfg.Provider(kind)
		client, err := NewClient(kind, providerConfig)
		if err != nil {
			return nil, err
		}
		if client.Pool().IsEmpty() {
			logger.Warn().Str("cascade", name).Str("provider", string(kind)).Msg("provider has no credentials and will be skipped")
		}
		entries = append(entries, ai.CascadeEntry{Client: client, Multiplier: providerConfig.RetryMultiplier})
	}

	return ai.NewCascade(entries,
		ai.WithName(name),
		ai.WithBackoff(cfg.Backoff),
		ai.WithLogger(logger),
	), nil
}

// NewSimilarityScorer returns the configured batch scorer, or nil when semantic
// scoring is disabled and the engine should rely on lexical overlap alone.
func NewSimilarityScorer(cfg config.SimilarityConfig) ai.SimilarityScorer {
	pool := ai.NewKeyPool(cfg.Keys)

	switch cfg.Provider {
	case config.SimilarityHuggingFace:
		return ai.NewHuggingFaceSimilarity(ai.HuggingFaceConfig{BaseURL: cfg.BaseURL, Model: cfg.Model}, pool, cfg.Timeout)
	case config.SimilarityOpenAI:
		return ai.NewEmbeddingSimilarity(ai.NewOpenAIEmbedder(pool, cfg.Model, cfg.BaseURL, cfg.Timeout))
	case config.SimilarityCohere:
		return ai.NewEmbeddingSimilarity(ai.NewCohereEmbedder(pool, cfg.Model, cfg.Timeout))
	default:
		return nil
	}
}
