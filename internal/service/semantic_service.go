package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proposal-api/internal/observability"
	"github.com/noah-isme/gema-proposal-api/pkg/ai"
)

// SemanticService scores a source text against a candidate pool in one batch.
type SemanticService interface {
	// ScoreAgainstPool returns one score in [0,1] per candidate, or nil when
	// no semantic signal is available.
	ScoreAgainstPool(ctx context.Context, source string, candidates []string) []float64
}

const defaultSemanticTimeout = 20 * time.Second

type semanticService struct {
	scorer  ai.SimilarityScorer
	timeout time.Duration
	logger  zerolog.Logger
}

// NewSemanticService wraps a similarity scorer. A nil scorer disables the semantic
// layer; every batch call is bounded by timeout (20s when unset).
func NewSemanticService(scorer ai.SimilarityScorer, timeout time.Duration, logger zerolog.Logger) SemanticService {
	if timeout <= 0 {
		timeout = defaultSemanticTimeout
	}
	return &semanticService{
		scorer:  scorer,
		timeout: timeout,
		logger:  logger.With().Str("component", "semantic_service").Logger(),
	}
}

func (s *semanticService) ScoreAgainstPool(ctx context.Context, source string, candidates []string) []float64 {
	if len(candidates) == 0 {
		return nil
	}
	if s.scorer == nil {
		observability.SemanticRequests().WithLabelValues("disabled").Inc()
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	scores, err := s.scorer.Similarity(callCtx, source, candidates)
	if err != nil {
		observability.SemanticRequests().WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Int("candidates", len(candidates)).Msg("semantic similarity unavailable, using lexical layer only")
		return nil
	}
	if len(scores) != len(candidates) {
		observability.SemanticRequests().WithLabelValues("mismatch").Inc()
		s.logger.Warn().Int("scores", len(scores)).Int("candidates", len(candidates)).Msg("semantic similarity returned a mismatched batch")
		return nil
	}

	clamped := make([]float64, len(scores))
	for i, score := range scores {
		clamped[i] = clampUnit(score)
	}
	observability.SemanticRequests().WithLabelValues("ok").Inc()
	return clamped
}
