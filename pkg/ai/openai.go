package ai

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// Default endpoints for the OpenAI-compatible providers.
const (
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	OllamaBaseURL = "http://localhost:11434/v1"
)

// OpenAIConfig defines configuration options for an OpenAI-compatible chat backend.
type OpenAIConfig struct {
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	JSONMode    bool
	HTTPClient  *http.Client
}

// OpenAIBackend implements ChatBackend against any OpenAI-compatible chat completion API.
// Groq, Gemini and Ollama all expose this contract, so a single backend serves them.
type OpenAIBackend struct {
	cfg     OpenAIConfig
	mu      sync.Mutex
	clients map[string]*openai.Client
}

// NewOpenAIBackend builds a backend using the provided configuration.
func NewOpenAIBackend(cfg OpenAIConfig) (*OpenAIBackend, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai-compatible model is required")
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.5
	}

	return &OpenAIBackend{
		cfg:     cfg,
		clients: make(map[string]*openai.Client),
	}, nil
}

// DefaultOpenAIConfig returns the stock model and endpoint for a provider kind.
func DefaultOpenAIConfig(kind ProviderKind) OpenAIConfig {
	switch kind {
	case ProviderGroq:
		return OpenAIConfig{BaseURL: GroqBaseURL, Model: "llama-3.1-8b-instant", JSONMode: true}
	case ProviderGemini:
		return OpenAIConfig{BaseURL: GeminiBaseURL, Model: "gemini-flash-latest"}
	case ProviderOllama:
		return OpenAIConfig{BaseURL: OllamaBaseURL, Model: "gemma:2b"}
	default:
		return OpenAIConfig{Model: "gpt-4o-mini", JSONMode: true}
	}
}

func (b *OpenAIBackend) client(apiKey string) *openai.Client {
	b.mu.Lock()
	defer b.mu.Unlock()

	if client, ok := b.clients[apiKey]; ok {
		return client
	}

	config := openai.DefaultConfig(apiKey)
	if b.cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(b.cfg.BaseURL, "/")
	}
	if b.cfg.HTTPClient != nil {
		config.HTTPClient = b.cfg.HTTPClient
	}
	client := openai.NewClientWithConfig(config)
	b.clients[apiKey] = client
	return client
}

// Chat sends one chat completion request.
func (b *OpenAIBackend) Chat(ctx context.Context, apiKey string, req ChatRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = b.cfg.MaxTokens
	}
	temperature := b.cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
		if temperature == 0 {
			// go-openai omits a zero temperature, which the API reads as its default.
			temperature = math.SmallestNonzeroFloat32
		}
	}

	request := openai.ChatCompletionRequest{
		Model:       b.cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.SystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Prompt,
			},
		},
	}
	if req.ExpectJSON && b.cfg.JSONMode {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := b.client(apiKey).CreateChatCompletion(ctx, request)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from %s", b.cfg.Model)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
