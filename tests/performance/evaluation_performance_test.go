package performance_test

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proposal-api/internal/dto"
	"github.com/noah-isme/gema-proposal-api/internal/service"
	"github.com/noah-isme/gema-proposal-api/pkg/ai"
	"github.com/noah-isme/gema-proposal-api/pkg/similarity"
)

type instantJudge struct{}

func (instantJudge) Complete(context.Context, string, ai.CompletionOptions) (string, error) {
	return `{"plagiarism_status":"OK","plagiarism_score":1,"relevance_score":7,"feasibility_score":7,"innovation_score":7,"most_similar_project_index":null,"suggested_features":[],"full_report":"ok"}`, nil
}

var vocabulary = strings.Fields(`attendance library parking canteen inventory greenhouse clinic
	sensor dashboard mobile web api queue scheduler report reminder payment qr rfid camera
	student teacher school stock sales booking ticket route map chat forum quiz exam grade`)

func syntheticCorpus(size int) []dto.CandidateSubmission {
	corpus := make([]dto.CandidateSubmission, 0, size)
	for i := 0; i < size; i++ {
		words := make([]string, 0, 40)
		for j := 0; j < 40; j++ {
			words = append(words, vocabulary[(i*7+j*3)%len(vocabulary)])
		}
		corpus = append(corpus, dto.CandidateSubmission{
			ID:           uint(i + 1),
			Title:        fmt.Sprintf("Project %d", i+1),
			AbstractText: strings.Join(words, " "),
		})
	}
	return corpus
}

func TestEvaluateCorpusOf500P95Under50ms(t *testing.T) {
	corpus := syntheticCorpus(500)
	engine := service.NewOriginalityService(instantJudge{}, nil, nil, service.DefaultThresholds(), zerolog.Nop())

	runs := 100
	durations := make([]time.Duration, 0, runs)
	for i := 0; i < runs; i++ {
		start := time.Now()
		decision := engine.Evaluate(context.Background(), "New idea", "a drone that maps crop health for farmers using multispectral imagery", corpus)
		durations = append(durations, time.Since(start))
		if decision.Status != dto.DecisionOK {
			t.Fatalf("expected an OK decision, got %s", decision.Status)
		}
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	if p95 := percentile(durations, 0.95); p95 > 50*time.Millisecond {
		t.Fatalf("expected evaluation P95 <= 50ms, got %s", p95)
	}
}

func BenchmarkJaccard(b *testing.B) {
	corpus := syntheticCorpus(2)
	for i := 0; i < b.N; i++ {
		similarity.Jaccard(corpus[0].AbstractText, corpus[1].AbstractText)
	}
}

func percentile(values []time.Duration, p float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	index := int(math.Ceil(p*float64(len(values)))) - 1
	if index < 0 {
		index = 0
	}
	return values[index]
}
