package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-proposal-api/internal/dto"
	"github.com/noah-isme/gema-proposal-api/internal/observability"
	"github.com/noah-isme/gema-proposal-api/pkg/ai"
	"github.com/noah-isme/gema-proposal-api/pkg/similarity"
)

// Thresholds are the numeric cut-offs of the decision engine.
type Thresholds struct {
	AutoBlockSemantic float64
	AutoBlockLexical  float64
	WarnSemantic      float64
	WarnLexical       float64
	TopK              int
	AbstractLimit     int
}

// DefaultThresholds returns the production cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AutoBlockSemantic: 0.85,
		AutoBlockLexical:  0.70,
		WarnSemantic:      0.70,
		WarnLexical:       0.40,
		TopK:              5,
		AbstractLimit:     300,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	defaults := DefaultThresholds()
	if t.AutoBlockSemantic <= 0 {
		t.AutoBlockSemantic = defaults.AutoBlockSemantic
	}
	if t.AutoBlockLexical <= 0 {
		t.AutoBlockLexical = defaults.AutoBlockLexical
	}
	if t.WarnSemantic <= 0 {
		t.WarnSemantic = defaults.WarnSemantic
	}
	if t.WarnLexical <= 0 {
		t.WarnLexical = defaults.WarnLexical
	}
	if t.TopK <= 0 {
		t.TopK = defaults.TopK
	}
	if t.AbstractLimit <= 0 {
		t.AbstractLimit = defaults.AbstractLimit
	}
	return t
}

const (
	neutralScore           = 5
	originalIdeaSuggestion = "Please submit an original project idea."
	noCandidatesReport     = "No existing projects to compare against."
)

// OriginalityService decides whether a proposal is original enough to accept.
type OriginalityService interface {
	// Evaluate never fails: provider outages degrade to a neutral OK decision.
	Evaluate(ctx context.Context, title, abstract string, existing []dto.CandidateSubmission) dto.Decision
}

type originalityService struct {
	judge        Completer
	fingerprints FingerprintService
	semantic     SemanticService
	thresholds   Thresholds
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewOriginalityService wires the decision engine. The judge should be the
// quality-first cascade; fingerprints may be nil to skip fingerprinting.
func NewOriginalityService(judge Completer, fingerprints FingerprintService, semantic SemanticService, thresholds Thresholds, logger zerolog.Logger) OriginalityService {
	if semantic == nil {
		semantic = NewSemanticService(nil, 0, logger)
	}
	return &originalityService{
		judge:        judge,
		fingerprints: fingerprints,
		semantic:     semantic,
		thresholds:   thresholds.withDefaults(),
		logger:       logger.With().Str("component", "originality_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/gema-proposal-api/internal/service/originality"),
		now:          time.Now,
	}
}

type scoredCandidate struct {
	candidate dto.CandidateSubmission
	lexical   float64
	semantic  float64
	combined  float64
}

type numericLayer struct {
	ranked       []scoredCandidate
	semanticBest *float64
	lexicalBest  float64
	combinedBest float64
}

func (n numericLayer) semanticValue() float64 {
	if n.semanticBest == nil {
		return 0
	}
	return *n.semanticBest
}

func (n numericLayer) summary() dto.SimilaritySummary {
	return dto.SimilaritySummary{
		SemanticBest: n.semanticBest,
		LexicalBest:  n.lexicalBest,
		CombinedBest: n.combinedBest,
	}
}

func (n numericLayer) bestMatch() *dto.CandidateSubmission {
	if len(n.ranked) == 0 {
		return nil
	}
	match := n.ranked[0].candidate
	return &match
}

func (s *originalityService) Evaluate(ctx context.Context, title, abstract string, existing []dto.CandidateSubmission) dto.Decision {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "originality.evaluate", trace.WithAttributes(
		attribute.Int("candidates", len(existing)),
	))
	defer span.End()
	defer func() {
		observability.EvaluationLatency().Observe(time.Since(start).Seconds())
	}()

	var (
		fingerprint *dto.Fingerprint
		layer       numericLayer
	)

	var group errgroup.Group
	if s.fingerprints != nil {
		group.Go(func() error {
			extracted, err := s.fingerprints.Extract(ctx, title, abstract)
			if err == nil {
				fingerprint = extracted
			}
			return nil
		})
	}
	group.Go(func() error {
		layer = s.scoreCandidates(ctx, abstract, existing)
		return nil
	})
	_ = group.Wait()

	decision, path := s.decide(ctx, title, abstract, fingerprint, layer)
	decision.Fingerprint = fingerprint
	decision.Similarity = layer.summary()
	if decision.SuggestedFeatures == nil {
		decision.SuggestedFeatures = []string{}
	}
	decision.EvaluatedAt = s.now().UTC()

	observability.Decisions().WithLabelValues(string(decision.Status), path).Inc()
	span.SetAttributes(
		attribute.String("status", string(decision.Status)),
		attribute.String("path", path),
		attribute.Float64("lexical_best", layer.lexicalBest),
		attribute.Float64("semantic_best", layer.semanticValue()),
	)
	s.logger.Info().
		Str("status", string(decision.Status)).
		Str("path", path).
		Int("candidates", len(layer.ranked)).
		Float64("lexical_best", layer.lexicalBest).
		Float64("semantic_best", layer.semanticValue()).
		Msg("originality evaluated")

	return decision
}

func (s *originalityService) decide(ctx context.Context, title, abstract string, fingerprint *dto.Fingerprint, layer numericLayer) (dto.Decision, string) {
	if len(layer.ranked) == 0 {
		return dto.Decision{
			Status:      dto.DecisionOK,
			Relevance:   neutralScore,
			Feasibility: neutralScore,
			Innovation:  neutralScore,
			FullReport:  noCandidatesReport,
		}, "empty"
	}

	semanticBest := layer.semanticValue()
	best := layer.bestMatch()

	if semanticBest > s.thresholds.AutoBlockSemantic || layer.lexicalBest > s.thresholds.AutoBlockLexical {
		return dto.Decision{
			Status:            dto.DecisionBlocked,
			PlagiarismScore:   10,
			MostSimilar:       best,
			SuggestedFeatures: []string{originalIdeaSuggestion},
			FullReport: fmt.Sprintf("Auto-blocked: High similarity detected (Semantic: %.2f, Literal: %.2f) with existing project '%s'.",
				semanticBest, layer.lexicalBest, best.Title),
		}, "auto_block"
	}

	semanticFlag := semanticBest > s.thresholds.WarnSemantic
	lexicalFlag := layer.lexicalBest > s.thresholds.WarnLexical
	flagged := semanticFlag || lexicalFlag

	top := layer.ranked
	if len(top) > s.thresholds.TopK {
		top = top[:s.thresholds.TopK]
	}

	prompt := s.judgmentPrompt(title, abstract, fingerprint, layer, top, flagged)
	text, err := s.judge.Complete(ctx, prompt, ai.CompletionOptions{ExpectJSON: true})
	if err != nil {
		s.logger.Warn().Err(err).Msg("plagiarism judgment unavailable, using neutral decision")
		return s.fallbackDecision(layer, flagged, "AI analysis unavailable: every provider failed, so this proposal was accepted on the numeric checks alone."), "fallback"
	}

	var verdict map[string]interface{}
	if !ai.ExtractInto(text, &verdict) {
		s.logger.Warn().Msg("plagiarism judgment was not valid json, using neutral decision")
		return s.fallbackDecision(layer, flagged, "AI analysis unavailable: the judgment response could not be parsed, so this proposal was accepted on the numeric checks alone."), "fallback"
	}

	numericScore := int(math.Round(layer.combinedBest * 10))
	decision := dto.Decision{
		Status:            dto.DecisionOK,
		PlagiarismScore:   intFromJSON(verdict["plagiarism_score"], numericScore, 0, 10),
		Relevance:         intFromJSON(verdict["relevance_score"], neutralScore, 0, 10),
		Feasibility:       intFromJSON(verdict["feasibility_score"], neutralScore, 0, 10),
		Innovation:        intFromJSON(verdict["innovation_score"], neutralScore, 0, 10),
		SuggestedFeatures: stringListFromJSON(verdict["suggested_features"]),
		FullReport:        stringFromJSON(verdict["full_report"]),
	}
	if decision.FullReport == "" {
		decision.FullReport = "Analysis completed."
	}
	if strings.Contains(strings.ToUpper(stringFromJSON(verdict["plagiarism_status"])), "BLOCKED") {
		decision.Status = dto.DecisionBlocked
	}

	path := "judged"
	if flagged && decision.Status == dto.DecisionOK {
		kind := "Literal"
		if semanticFlag {
			kind = "Semantic"
		}
		decision.Status = dto.DecisionBlocked
		decision.FullReport = strings.TrimSpace(decision.FullReport + fmt.Sprintf(" (System Override: High %s match detected despite AI approval.)", kind))
		if decision.PlagiarismScore < numericScore {
			decision.PlagiarismScore = numericScore
		}
		path = "override"
		s.logger.Info().Str("layer", kind).Msg("numeric layer overrode lenient judgment")
	}

	switch {
	case flagged:
		decision.MostSimilar = best
	default:
		if index, ok := numberFromJSON(verdict["most_similar_project_index"]); ok {
			position := int(index)
			if float64(position) == index && position >= 1 && position <= len(top) {
				match := top[position-1].candidate
				decision.MostSimilar = &match
			}
		}
	}

	return decision, path
}

func (s *originalityService) fallbackDecision(layer numericLayer, flagged bool, report string) dto.Decision {
	decision := dto.Decision{
		Status:          dto.DecisionOK,
		PlagiarismScore: int(math.Round(layer.combinedBest * 10)),
		Relevance:       neutralScore,
		Feasibility:     neutralScore,
		Innovation:      neutralScore,
		FullReport:      report,
	}
	if flagged {
		decision.MostSimilar = layer.bestMatch()
		decision.FullReport += fmt.Sprintf(" Closest existing project: '%s' (Semantic: %.2f, Literal: %.2f); manual review recommended.",
			decision.MostSimilar.Title, layer.semanticValue(), layer.lexicalBest)
	}
	return decision
}

func (s *originalityService) scoreCandidates(ctx context.Context, abstract string, existing []dto.CandidateSubmission) numericLayer {
	candidates := make([]dto.CandidateSubmission, 0, len(existing))
	texts := make([]string, 0, len(existing))
	for _, candidate := range existing {
		if strings.TrimSpace(candidate.AbstractText) == "" {
			continue
		}
		candidates = append(candidates, candidate)
		texts = append(texts, candidate.AbstractText)
	}
	if len(candidates) == 0 {
		return numericLayer{}
	}

	semanticScores := s.semantic.ScoreAgainstPool(ctx, abstract, texts)

	layer := numericLayer{ranked: make([]scoredCandidate, len(candidates))}
	if semanticScores != nil {
		zero := 0.0
		layer.semanticBest = &zero
	}

	for i, candidate := range candidates {
		scored := scoredCandidate{
			candidate: candidate,
			lexical:   similarity.Jaccard(abstract, candidate.AbstractText),
		}
		if semanticScores != nil {
			scored.semantic = semanticScores[i]
			if scored.semantic > *layer.semanticBest {
				*layer.semanticBest = scored.semantic
			}
		}
		scored.combined = math.Max(scored.lexical, scored.semantic)
		if scored.lexical > layer.lexicalBest {
			layer.lexicalBest = scored.lexical
		}
		if scored.combined > layer.combinedBest {
			layer.combinedBest = scored.combined
		}
		layer.ranked[i] = scored
	}

	sort.SliceStable(layer.ranked, func(i, j int) bool {
		return layer.ranked[i].combined > layer.ranked[j].combined
	})

	return layer
}

func (s *originalityService) judgmentPrompt(title, abstract string, fingerprint *dto.Fingerprint, layer numericLayer, top []scoredCandidate, flagged bool) string {
	var projects strings.Builder
	for i, scored := range top {
		candidate := scored.candidate
		fmt.Fprintf(&projects, "Project #%d: %s - %s", i+1, candidate.Title, truncateRunes(candidate.AbstractText, s.thresholds.AbstractLimit))
		if !candidate.Fingerprint.IsZero() {
			if encoded, err := json.Marshal(candidate.Fingerprint); err == nil {
				fmt.Fprintf(&projects, " [Fingerprint: %s]", encoded)
			}
		}
		projects.WriteString("\n")
	}

	fingerprintText := "Not available"
	if !fingerprint.IsZero() {
		if encoded, err := json.MarshalIndent(fingerprint, "", "  "); err == nil {
			fingerprintText = string(encoded)
		}
	}

	warning := ""
	if flagged {
		warning = fmt.Sprintf(`CRITICAL WARNING: HIGH SIMILARITY DETECTED (Semantic: %.2f, Literal: %.2f) with "%s".
Compare labels cautiously. If the logical flow (Inputs -> Process -> Output) is the same as an existing project, BLOCK it.
`, layer.semanticValue(), layer.lexicalBest, top[0].candidate.Title)
	}

	prompt := fmt.Sprintf(`SYSTEM: You are the Global Plagiarism Scanner for the university.
TASK: Scan the provided DATABASE of existing projects and check if the NEW SUBMISSION is a duplicate of any existing idea.

[NEW SUBMISSION]
Title: "%s"
Abstract: "%s"

[STRUCTURAL FINGERPRINT OF NEW PROJECT]
%s

%s
[DATABASE OF EXISTING PROJECTS]
%s
Output a JSON object with these EXACT keys:
{
    "plagiarism_status": "BLOCKED" or "OK",
    "most_similar_project_index": <integer (1-based index from list above) or null>,
    "analysis_thought": "1. Difference in Domain? ... 2. Difference in Goal? ... 3. Conclusion?",
    "plagiarism_score": <0-10>,
    "relevance_score": <0-10>,
    "feasibility_score": <0-10>,
    "innovation_score": <0-10>,
    "suggested_features": "<If BLOCKED, suggest 2-3 features. If OK, string 'None'>",
    "full_report": "<Final verdict based on analysis>"
}

Verification Rules:
1. The "Same Idea" Test: if the idea and end goal are the same as an existing project, BLOCK it.
2. In 'analysis_thought' list 3 key differences between the new and the closest existing project. Three valid differences mean OK.
3. A different domain (offline vs cloud, finance vs health) is a different idea.
4. Ignore tech stack overlap. Using the same tools does not make it the same idea.
5. Only match on overlaps you can cite exactly.
`, title, abstract, fingerprintText, warning, projects.String())

	return clampPrompt(prompt)
}
