package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenAIBackendSendsSystemPromptAndJSONMode(t *testing.T) {
	var captured map[string]interface{}
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  {\"ok\":true}  "}}]}`))
	}))
	defer server.Close()

	backend, err := NewOpenAIBackend(OpenAIConfig{BaseURL: server.URL + "/", Model: "llama-3.1-8b-instant", JSONMode: true})
	require.NoError(t, err)

	text, err := backend.Chat(context.Background(), "secret-key", ChatRequest{Prompt: "judge this", ExpectJSON: true})
	require.NoError(t, err)
	require.Equal(t, `{"ok":true}`, text)
	require.Equal(t, "Bearer secret-key", auth)
	require.Equal(t, "llama-3.1-8b-instant", captured["model"])

	messages := captured["messages"].([]interface{})
	system := messages[0].(map[string]interface{})
	require.Equal(t, "system", system["role"])
	require.Equal(t, "You are a helpful and precise technical assistant. Return ONLY JSON.", system["content"])
	require.NotNil(t, captured["response_format"])
}

func TestOpenAIBackendTemperature(t *testing.T) {
	var temperatures []interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		temperatures = append(temperatures, body["temperature"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer server.Close()

	backend, err := NewOpenAIBackend(OpenAIConfig{BaseURL: server.URL, Model: "llama-3.1-8b-instant", Temperature: 0.7})
	require.NoError(t, err)

	for _, req := range []ChatRequest{
		{Prompt: "default"},
		{Prompt: "deterministic", Temperature: Temperature(0)},
		{Prompt: "creative", Temperature: Temperature(0.9)},
	} {
		_, err := backend.Chat(context.Background(), "k", req)
		require.NoError(t, err)
	}

	require.Len(t, temperatures, 3)
	require.InDelta(t, 0.7, temperatures[0], 1e-6)
	require.NotNil(t, temperatures[1], "an explicit zero must reach the API")
	require.InDelta(t, 0, temperatures[1], 1e-6)
	require.InDelta(t, 0.9, temperatures[2], 1e-6)
}

func TestOpenAIBackendRateLimitIsClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	}))
	defer server.Close()

	backend, err := NewOpenAIBackend(OpenAIConfig{BaseURL: server.URL, Model: "gemini-flash-latest"})
	require.NoError(t, err)

	client, err := NewProviderClient(ProviderClientConfig{Kind: ProviderGemini, Backend: backend, Pool: NewKeyPool([]string{"k"}), Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), ChatRequest{Prompt: "hi"})
	require.Error(t, err)
	require.Equal(t, KindRateLimited, Classify(err))
}

func TestHuggingFaceTextBackend(t *testing.T) {
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/mistral", r.URL.Path)
		require.Equal(t, "Bearer hf-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(`[{"generated_text":" generated answer "}]`))
	}))
	defer server.Close()

	backend := NewHuggingFaceTextBackend(HuggingFaceConfig{BaseURL: server.URL + "/models", Model: "mistral"})
	text, err := backend.Chat(context.Background(), "hf-token", ChatRequest{Prompt: "explain"})
	require.NoError(t, err)
	require.Equal(t, "generated answer", text)
	require.Contains(t, payload["inputs"], "[INST]")
	require.Contains(t, payload["inputs"], "explain")
}

func TestHuggingFaceTextBackendServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Model is loading"}`))
	}))
	defer server.Close()

	backend := NewHuggingFaceTextBackend(HuggingFaceConfig{BaseURL: server.URL, Model: "m"})
	_, err := backend.Chat(context.Background(), "t", ChatRequest{Prompt: "x"})
	require.Error(t, err)
	require.Equal(t, KindTransient, Classify(err))
}

func TestHuggingFaceSimilarityBatchesCandidates(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var body struct {
			Inputs struct {
				Source    string   `json:"source_sentence"`
				Sentences []string `json:"sentences"`
			} `json:"inputs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "source", body.Inputs.Source)
		require.Len(t, body.Inputs.Sentences, 3)
		_, _ = w.Write([]byte(`[0.9, 0.2, 0.5]`))
	}))
	defer server.Close()

	scorer := NewHuggingFaceSimilarity(HuggingFaceConfig{BaseURL: server.URL, Model: "minilm"}, NewKeyPool([]string{"hf"}), time.Second)
	scores, err := scorer.Similarity(context.Background(), "source", []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Equal(t, []float64{0.9, 0.2, 0.5}, scores)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHuggingFaceSimilarityWithoutToken(t *testing.T) {
	scorer := NewHuggingFaceSimilarity(HuggingFaceConfig{BaseURL: "http://127.0.0.1:1"}, NewKeyPool(nil), time.Second)
	_, err := scorer.Similarity(context.Background(), "source", []string{"a"})
	require.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

type stubEmbedder struct {
	vectors [][]float32
	err     error
	texts   []string
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.texts = texts
	return s.vectors, s.err
}

func TestEmbeddingSimilarityUsesCosine(t *testing.T) {
	embedder := &stubEmbedder{vectors: [][]float32{{1, 0}, {1, 0}, {0, 1}, {1, 1}}}
	scorer := NewEmbeddingSimilarity(embedder)

	scores, err := scorer.Similarity(context.Background(), "src", []string{"same", "orthogonal", "diagonal"})
	require.NoError(t, err)
	require.Equal(t, []string{"src", "same", "orthogonal", "diagonal"}, embedder.texts)
	require.InDelta(t, 1.0, scores[0], 1e-9)
	require.InDelta(t, 0.0, scores[1], 1e-9)
	require.InDelta(t, 0.7071, scores[2], 1e-3)
}

func TestEmbeddingSimilarityCountMismatch(t *testing.T) {
	scorer := NewEmbeddingSimilarity(&stubEmbedder{vectors: [][]float32{{1}}})
	_, err := scorer.Similarity(context.Background(), "src", []string{"a", "b"})
	require.Error(t, err)
}

func TestOpenAIEmbedderOrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":1,"embedding":[0,1]},{"object":"embedding","index":0,"embedding":[1,0]}],"model":"text-embedding-3-small"}`))
	}))
	defer server.Close()

	embedder := NewOpenAIEmbedder(NewKeyPool([]string{"sk"}), "", server.URL, time.Second)
	vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
}
