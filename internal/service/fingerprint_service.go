package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proposal-api/internal/dto"
	"github.com/noah-isme/gema-proposal-api/internal/observability"
	"github.com/noah-isme/gema-proposal-api/pkg/ai"
)

// ErrFingerprintUnavailable is returned when no provider produced a usable fingerprint.
var ErrFingerprintUnavailable = errors.New("fingerprint unavailable")

const fingerprintPromptTemplate = `Extract the core technical logic of this project submission.
Title: %s
Abstract: %s

Output ONLY JSON with these keys:
- problem_statement: High-level issue being solved.
- input_sources: Data or sensors used.
- core_process: Primary algorithm, logic, or transformation.
- expected_output: Result or action.
- primary_tech: Key frameworks or hardware.

Be technical and precise. Keep it to one sentence per point.`

// FingerprintService extracts structured logic summaries of proposals.
type FingerprintService interface {
	Extract(ctx context.Context, title, abstract string) (*dto.Fingerprint, error)
}

type fingerprintService struct {
	completer Completer
	cache     *redis.Client
	ttl       time.Duration
	logger    zerolog.Logger
}

// NewFingerprintService constructs the service. The Redis cache is optional.
func NewFingerprintService(completer Completer, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) FingerprintService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &fingerprintService{
		completer: completer,
		cache:     cache,
		ttl:       ttl,
		logger:    logger.With().Str("component", "fingerprint_service").Logger(),
	}
}

func (s *fingerprintService) Extract(ctx context.Context, title, abstract string) (*dto.Fingerprint, error) {
	cacheKey := fingerprintCacheKey(title, abstract)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			var fingerprint dto.Fingerprint
			if err := json.Unmarshal([]byte(cached), &fingerprint); err == nil {
				observability.FingerprintCache().WithLabelValues("hit").Inc()
				return &fingerprint, nil
			}
		}
		observability.FingerprintCache().WithLabelValues("miss").Inc()
	}

	prompt := fmt.Sprintf(fingerprintPromptTemplate, title, abstract)
	text, err := s.completer.Complete(ctx, prompt, ai.CompletionOptions{ExpectJSON: true})
	if err != nil {
		s.logger.Warn().Err(err).Msg("fingerprint extraction failed")
		return nil, fmt.Errorf("%w: %v", ErrFingerprintUnavailable, err)
	}

	fingerprint, ok := parseFingerprint(text)
	if !ok {
		s.logger.Warn().Msg("fingerprint response contained no usable json")
		return nil, ErrFingerprintUnavailable
	}

	if s.cache != nil {
		if payload, err := json.Marshal(fingerprint); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.ttl).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to cache fingerprint")
			}
		}
	}

	return fingerprint, nil
}

func parseFingerprint(text string) (*dto.Fingerprint, bool) {
	var fields map[string]interface{}
	if !ai.ExtractInto(text, &fields) {
		return nil, false
	}

	fingerprint := &dto.Fingerprint{
		ProblemStatement: stringFromJSON(fields["problem_statement"]),
		InputSources:     stringFromJSON(fields["input_sources"]),
		CoreProcess:      stringFromJSON(fields["core_process"]),
		ExpectedOutput:   stringFromJSON(fields["expected_output"]),
		PrimaryTech:      stringFromJSON(fields["primary_tech"]),
	}
	if fingerprint.IsZero() {
		return nil, false
	}
	return fingerprint, true
}

func fingerprintCacheKey(title, abstract string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(title) + "\x00" + strings.TrimSpace(abstract)))
	return "fingerprint:v1:" + hex.EncodeToString(sum[:])
}
