package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	openai "github.com/sashabaranov/go-openai"

	"github.com/noah-isme/gema-proposal-api/pkg/similarity"
)

// SimilarityScorer returns a parallel array of similarity scores for the candidates.
type SimilarityScorer interface {
	Similarity(ctx context.Context, source string, candidates []string) ([]float64, error)
}

// Embedder turns texts into vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingSimilarity scores candidates by cosine similarity of their embeddings.
// Source and candidates are embedded in a single batch.
type EmbeddingSimilarity struct {
	embedder Embedder
}

// NewEmbeddingSimilarity wraps an embedder as a SimilarityScorer.
func NewEmbeddingSimilarity(embedder Embedder) *EmbeddingSimilarity {
	return &EmbeddingSimilarity{embedder: embedder}
}

// Similarity embeds source+candidates and compares each candidate with the source.
func (s *EmbeddingSimilarity) Similarity(ctx context.Context, source string, candidates []string) ([]float64, error) {
	if len(candidates) == 0 {
		return []float64{}, nil
	}
	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, source)
	texts = append(texts, candidates...)

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d want %d", len(vectors), len(texts))
	}

	scores := make([]float64, len(candidates))
	for i := range candidates {
		scores[i] = similarity.Cosine(vectors[0], vectors[i+1])
	}
	return scores, nil
}

const defaultSimilarityTimeout = 20 * time.Second

// OpenAIEmbedder implements Embedder with the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	pool       *KeyPool
	model      openai.EmbeddingModel
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIEmbedder builds an embedder. An empty model defaults to
// text-embedding-3-small; a non-positive timeout defaults to 20s.
func NewOpenAIEmbedder(pool *KeyPool, model, baseURL string, timeout time.Duration) *OpenAIEmbedder {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	if timeout <= 0 {
		timeout = defaultSimilarityTimeout
	}
	return &OpenAIEmbedder{
		pool:       pool,
		model:      openai.EmbeddingModel(model),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Embed returns one vector per text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	credential, err := e.pool.Current()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	config := openai.DefaultConfig(credential.Secret)
	config.HTTPClient = e.httpClient
	if e.baseURL != "" {
		config.BaseURL = e.baseURL
	}
	client := openai.NewClientWithConfig(config)

	resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		if Classify(err) == KindRateLimited {
			e.pool.Rotate()
		}
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	out := make([][]float32, len(resp.Data))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, errors.New("openai embeddings returned an out-of-range index")
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

// CohereEmbedder implements Embedder using the Cohere Embed API (v2).
type CohereEmbedder struct {
	pool       *KeyPool
	model      string
	httpClient *http.Client
}

// NewCohereEmbedder builds a Cohere embedder. An empty model defaults to embed-english-v3.0.
func NewCohereEmbedder(pool *KeyPool, model string, timeout time.Duration) *CohereEmbedder {
	if model == "" {
		model = "embed-english-v3.0"
	}
	if timeout <= 0 {
		timeout = defaultSimilarityTimeout
	}
	return &CohereEmbedder{
		pool:       pool,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Embed returns one float vector per text.
func (e *CohereEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	credential, err := e.pool.Current()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	client := cohereclient.NewClient(
		cohereclient.WithToken(credential.Secret),
		cohereclient.WithHTTPClient(e.httpClient),
	)

	resp, err := client.V2.Embed(ctx, &cohere.V2EmbedRequest{
		Texts:          texts,
		Model:          e.model,
		InputType:      cohere.EmbedInputTypeSearchDocument,
		EmbeddingTypes: []cohere.EmbeddingType{cohere.EmbeddingTypeFloat},
	})
	if err != nil {
		return nil, fmt.Errorf("cohere embed: %w", err)
	}
	if resp == nil || resp.Embeddings == nil || resp.Embeddings.Float == nil {
		return nil, errors.New("cohere embed returned no float embeddings")
	}

	out := make([][]float32, len(resp.Embeddings.Float))
	for i, vec := range resp.Embeddings.Float {
		converted := make([]float32, len(vec))
		for j, v := range vec {
			converted[j] = float32(v)
		}
		out[i] = converted
	}
	return out, nil
}
