package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ProviderKind enumerates the generative backends the service knows how to call.
type ProviderKind string

const (
	ProviderGroq        ProviderKind = "groq"
	ProviderGemini      ProviderKind = "gemini"
	ProviderOpenAI      ProviderKind = "openai"
	ProviderHuggingFace ProviderKind = "huggingface"
	ProviderOllama      ProviderKind = "ollama"
)

// ProviderKinds lists every supported provider in default priority order.
var ProviderKinds = []ProviderKind{ProviderGroq, ProviderGemini, ProviderOpenAI, ProviderHuggingFace, ProviderOllama}

// ParseProviderKind resolves a configured provider name.
func ParseProviderKind(name string) (ProviderKind, error) {
	normalized := ProviderKind(strings.ToLower(strings.TrimSpace(name)))
	for _, kind := range ProviderKinds {
		if kind == normalized {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown ai provider %q", name)
}

// Keyless reports whether the provider runs without credentials (local inference).
func (k ProviderKind) Keyless() bool {
	return k == ProviderOllama
}

const (
	defaultSystemPrompt = "You are a helpful and precise technical assistant."
	jsonOnlySuffix      = " Return ONLY JSON."
	localJSONReminder   = "\n\nIMPORTANT: Return ONLY Valid JSON. No markdown, no explanations."

	compactThreshold = 3500
	compactHead      = 2000
	compactTail      = 1000

	defaultProviderTimeout = 60 * time.Second
	keylessPlaceholder     = "local"
)

// ChatRequest is the provider-neutral shape of a chat completion call.
// A nil Temperature leaves the backend's configured default in place.
type ChatRequest struct {
	System      string
	Prompt      string
	Temperature *float32
	MaxTokens   int
	ExpectJSON  bool
}

// Temperature returns a pointer suitable for ChatRequest.Temperature, so an
// explicit 0 can be told apart from "unset".
func Temperature(value float32) *float32 {
	return &value
}

// SystemPrompt returns the system instruction to send with the request.
func (r ChatRequest) SystemPrompt() string {
	system := r.System
	if strings.TrimSpace(system) == "" {
		system = defaultSystemPrompt
	}
	if r.ExpectJSON {
		system += jsonOnlySuffix
	}
	return system
}

// ChatBackend performs exactly one chat completion call with the given key.
type ChatBackend interface {
	Chat(ctx context.Context, apiKey string, req ChatRequest) (string, error)
}

// ProviderClientConfig configures a ProviderClient.
type ProviderClientConfig struct {
	Kind           ProviderKind
	Backend        ChatBackend
	Pool           *KeyPool
	Timeout        time.Duration
	CompactPrompts bool
}

// ProviderClient wraps one backend and the key pool it owns. It never rotates the
// pool itself; the cascade decides when to rotate based on the classified error.
type ProviderClient struct {
	kind           ProviderKind
	backend        ChatBackend
	pool           *KeyPool
	timeout        time.Duration
	compactPrompts bool
}

// NewProviderClient validates the configuration and builds a client.
func NewProviderClient(cfg ProviderClientConfig) (*ProviderClient, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("%s backend is required", cfg.Kind)
	}
	pool := cfg.Pool
	if pool == nil {
		pool = NewKeyPool(nil)
	}
	if pool.IsEmpty() && cfg.Kind.Keyless() {
		pool = NewKeyPool([]string{keylessPlaceholder})
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProviderTimeout
	}

	return &ProviderClient{
		kind:           cfg.Kind,
		backend:        cfg.Backend,
		pool:           pool,
		timeout:        cfg.Timeout,
		compactPrompts: cfg.CompactPrompts || cfg.Kind == ProviderOllama,
	}, nil
}

// Kind returns the provider kind.
func (c *ProviderClient) Kind() ProviderKind { return c.kind }

// Pool exposes the key pool so the cascade can rotate it.
func (c *ProviderClient) Pool() *KeyPool { return c.pool }

// Complete performs a single call with the pool's current credential.
func (c *ProviderClient) Complete(parent context.Context, req ChatRequest) (string, error) {
	credential, err := c.pool.Current()
	if err != nil {
		return "", &ProviderError{Provider: c.kind, Kind: KindFatal, Err: err}
	}

	if c.compactPrompts {
		req = compactRequest(req)
	}

	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	text, err := c.backend.Chat(ctx, credential.Secret, req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded && parent.Err() == nil {
			return "", &ProviderError{Provider: c.kind, Kind: KindTransient, Err: fmt.Errorf("request timed out after %s: %w", c.timeout, err)}
		}
		return "", newProviderError(c.kind, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ProviderError{Provider: c.kind, Kind: KindTransient, Err: fmt.Errorf("empty completion")}
	}
	return text, nil
}

// compactRequest shrinks long prompts for small local models, keeping the head
// (instructions and context) and the tail (question and output format).
func compactRequest(req ChatRequest) ChatRequest {
	if len(req.Prompt) > compactThreshold {
		req.Prompt = TrimMiddle(req.Prompt, compactHead, compactTail, "\n... [Middle removed for length] ...\n")
	}
	if req.ExpectJSON {
		req.Prompt += localJSONReminder
	}
	return req
}

// TrimMiddle keeps at most head bytes from the start and tail bytes from the
// end of text, joined by marker. Cuts never split a UTF-8 sequence.
func TrimMiddle(text string, head, tail int, marker string) string {
	if head < 0 {
		head = 0
	}
	if tail < 0 {
		tail = 0
	}
	if len(text) <= head+tail {
		return text
	}

	end := head
	for end > 0 && !utf8.RuneStart(text[end]) {
		end--
	}
	start := len(text) - tail
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	return text[:end] + marker + text[start:]
}
