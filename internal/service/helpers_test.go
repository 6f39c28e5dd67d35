package service

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-proposal-api/pkg/ai"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// stubCompleter answers prompts from a script. A reply routed by substring
// wins over the default reply; err makes every call fail.
type stubCompleter struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	opts    []ai.CompletionOptions
	routes  map[string]string
	reply   string
	err     error
}

func (s *stubCompleter) Complete(_ context.Context, prompt string, opts ai.CompletionOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.prompts = append(s.prompts, prompt)
	s.opts = append(s.opts, opts)
	if s.err != nil {
		return "", s.err
	}
	for marker, reply := range s.routes {
		if strings.Contains(prompt, marker) {
			return reply, nil
		}
	}
	return s.reply, nil
}

func (s *stubCompleter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubCompleter) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return ""
	}
	return s.prompts[len(s.prompts)-1]
}

func exhausted() *stubCompleter {
	return &stubCompleter{err: ai.ErrAllProvidersExhausted}
}

type stubSemantic struct {
	scores []float64
	calls  int
}

func (s *stubSemantic) ScoreAgainstPool(_ context.Context, _ string, candidates []string) []float64 {
	s.calls++
	if s.scores == nil {
		return nil
	}
	return s.scores[:len(candidates)]
}
