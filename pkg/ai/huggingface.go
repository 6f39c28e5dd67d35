package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// HuggingFaceBaseURL is the hosted inference router.
	HuggingFaceBaseURL = "https://router.huggingface.co/hf-inference/models"

	defaultHFTextModel       = "mistralai/Mistral-7B-Instruct-v0.3"
	defaultHFSimilarityModel = "sentence-transformers/all-MiniLM-L6-v2"
	errorBodySnippet         = 512
)

// HuggingFaceConfig configures the Hugging Face inference backends.
type HuggingFaceConfig struct {
	BaseURL    string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

func (c HuggingFaceConfig) endpoint(defaultModel string) string {
	base := c.BaseURL
	if base == "" {
		base = HuggingFaceBaseURL
	}
	model := c.Model
	if model == "" {
		model = defaultModel
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(model, "/")
}

func (c HuggingFaceConfig) httpClient(timeout time.Duration) *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: timeout}
}

// HuggingFaceTextBackend implements ChatBackend on the text-generation inference API.
type HuggingFaceTextBackend struct {
	endpoint  string
	maxTokens int
	client    *http.Client
}

// NewHuggingFaceTextBackend builds the text-generation backend.
func NewHuggingFaceTextBackend(cfg HuggingFaceConfig) *HuggingFaceTextBackend {
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return &HuggingFaceTextBackend{
		endpoint:  cfg.endpoint(defaultHFTextModel),
		maxTokens: maxTokens,
		client:    cfg.httpClient(0),
	}
}

// Chat sends an instruction-formatted prompt and returns the generated text.
func (b *HuggingFaceTextBackend) Chat(ctx context.Context, apiKey string, req ChatRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 || maxTokens > b.maxTokens {
		maxTokens = b.maxTokens
	}

	payload := map[string]interface{}{
		"inputs": fmt.Sprintf("[INST] %s\n\n%s [/INST]", req.SystemPrompt(), req.Prompt),
		"parameters": map[string]interface{}{
			"max_new_tokens":   maxTokens,
			"return_full_text": false,
		},
	}

	var result []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := postJSON(ctx, b.client, b.endpoint, apiKey, payload, &result); err != nil {
		return "", err
	}
	if len(result) == 0 {
		return "", fmt.Errorf("huggingface returned no generations")
	}
	return strings.TrimSpace(result[0].GeneratedText), nil
}

// HuggingFaceSimilarity scores a source sentence against candidates with the
// sentence-similarity task in a single request.
type HuggingFaceSimilarity struct {
	endpoint string
	pool     *KeyPool
	client   *http.Client
}

// NewHuggingFaceSimilarity builds the scorer. The pool supplies the API token.
func NewHuggingFaceSimilarity(cfg HuggingFaceConfig, pool *KeyPool, timeout time.Duration) *HuggingFaceSimilarity {
	if timeout <= 0 {
		timeout = defaultSimilarityTimeout
	}
	return &HuggingFaceSimilarity{
		endpoint: cfg.endpoint(defaultHFSimilarityModel),
		pool:     pool,
		client:   cfg.httpClient(timeout),
	}
}

// Similarity returns one score per candidate, in candidate order.
func (s *HuggingFaceSimilarity) Similarity(ctx context.Context, source string, candidates []string) ([]float64, error) {
	if len(candidates) == 0 {
		return []float64{}, nil
	}
	credential, err := s.pool.Current()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	payload := map[string]interface{}{
		"inputs": map[string]interface{}{
			"source_sentence": source,
			"sentences":       candidates,
		},
		"options": map[string]interface{}{"wait_for_model": true},
	}

	var scores []float64
	if err := postJSON(ctx, s.client, s.endpoint, credential.Secret, payload, &scores); err != nil {
		if Classify(err) == KindRateLimited {
			s.pool.Rotate()
		}
		return nil, err
	}
	return scores, nil
}

func postJSON(ctx context.Context, client *http.Client, endpoint, token string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodySnippet))
		return &HTTPStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
