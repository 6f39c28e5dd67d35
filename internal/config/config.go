package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/gema-proposal-api/pkg/ai"
)

// Similarity backends accepted by similarity.provider.
const (
	SimilarityHuggingFace = "huggingface"
	SimilarityOpenAI      = "openai"
	SimilarityCohere      = "cohere"
	SimilarityNone        = "none"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	DatabaseURL         string
	RedisURL            string
	NATSURL             string
	EventChannel        string
	ServiceTokenSecret  string
	FingerprintCacheTTL time.Duration
	RateLimitMax        int
	RateLimitWindow     time.Duration
	AI                  AIConfig
	Similarity          SimilarityConfig
	Plagiarism          PlagiarismConfig
}

// AIConfig describes the generative provider cascades.
type AIConfig struct {
	ProviderOrder []ai.ProviderKind
	JudgmentOrder []ai.ProviderKind
	Backoff       time.Duration
	Providers     map[ai.ProviderKind]ProviderConfig
}

// ProviderConfig is the per-provider key pool and call budget.
type ProviderConfig struct {
	Keys            []string
	Model           string
	BaseURL         string
	RetryMultiplier int
	Timeout         time.Duration
}

// SimilarityConfig selects the batch semantic similarity backend.
type SimilarityConfig struct {
	Provider string
	Model    string
	BaseURL  string
	Keys     []string
	Timeout  time.Duration
}

// PlagiarismConfig carries the decision thresholds.
type PlagiarismConfig struct {
	AutoBlockSemantic float64
	AutoBlockLexical  float64
	WarnSemantic      float64
	WarnLexical       float64
	TopK              int
	AbstractLimit     int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Provider returns the configuration of a single provider.
func (c AIConfig) Provider(kind ai.ProviderKind) ProviderConfig {
	if c.Providers == nil {
		return ProviderConfig{}
	}
	return c.Providers[kind]
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Proposal API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.channel", "gema")
	v.SetDefault("fingerprint.cache_ttl", "24h")
	v.SetDefault("rate_limit.max", 30)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("ai.provider_order", "groq,gemini,huggingface,ollama")
	v.SetDefault("ai.judgment_order", "gemini,groq,huggingface,ollama")
	v.SetDefault("ai.backoff_ms", 1000)

	v.SetDefault("similarity.provider", SimilarityHuggingFace)
	v.SetDefault("similarity.timeout_ms", 20000)

	v.SetDefault("plagiarism.auto_block_semantic", 0.85)
	v.SetDefault("plagiarism.auto_block_lexical", 0.70)
	v.SetDefault("plagiarism.warn_semantic", 0.70)
	v.SetDefault("plagiarism.warn_lexical", 0.40)
	v.SetDefault("plagiarism.top_k", 5)
	v.SetDefault("plagiarism.abstract_limit", 300)

	cacheTTL, err := parseDuration(v, "fingerprint.cache_ttl", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "rate_limit.window", time.Minute)
	if err != nil {
		return Config{}, err
	}

	aiConfig, err := loadAI(v)
	if err != nil {
		return Config{}, err
	}

	similarityConfig, err := loadSimilarity(v, aiConfig)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		EventChannel:        strings.TrimSpace(v.GetString("events.channel")),
		ServiceTokenSecret:  v.GetString("service.token_secret"),
		FingerprintCacheTTL: cacheTTL,
		RateLimitMax:        v.GetInt("rate_limit.max"),
		RateLimitWindow:     rateWindow,
		AI:                  aiConfig,
		Similarity:          similarityConfig,
		Plagiarism: PlagiarismConfig{
			AutoBlockSemantic: v.GetFloat64("plagiarism.auto_block_semantic"),
			AutoBlockLexical:  v.GetFloat64("plagiarism.auto_block_lexical"),
			WarnSemantic:      v.GetFloat64("plagiarism.warn_semantic"),
			WarnLexical:       v.GetFloat64("plagiarism.warn_lexical"),
			TopK:              v.GetInt("plagiarism.top_k"),
			AbstractLimit:     v.GetInt("plagiarism.abstract_limit"),
		},
	}

	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 30
	}
	if cfg.Plagiarism.TopK <= 0 {
		cfg.Plagiarism.TopK = 5
	}
	if cfg.Plagiarism.AbstractLimit <= 0 {
		cfg.Plagiarism.AbstractLimit = 300
	}
	if cfg.Plagiarism.WarnSemantic > cfg.Plagiarism.AutoBlockSemantic || cfg.Plagiarism.WarnLexical > cfg.Plagiarism.AutoBlockLexical {
		return Config{}, fmt.Errorf("plagiarism warn thresholds must not exceed auto-block thresholds")
	}

	return cfg, nil
}

func loadAI(v *viper.Viper) (AIConfig, error) {
	order, err := parseOrder(v.GetString("ai.provider_order"))
	if err != nil {
		return AIConfig{}, fmt.Errorf("invalid ai.provider_order: %w", err)
	}
	judgment, err := parseOrder(v.GetString("ai.judgment_order"))
	if err != nil {
		return AIConfig{}, fmt.Errorf("invalid ai.judgment_order: %w", err)
	}

	backoffMs := v.GetInt("ai.backoff_ms")
	if backoffMs < 0 {
		backoffMs = 0
	}

	providers := make(map[ai.ProviderKind]ProviderConfig, len(ai.ProviderKinds))
	for _, kind := range ai.ProviderKinds {
		prefix := "ai." + string(kind)

		keys, err := parseKeys(v.GetString(prefix + ".keys"))
		if err != nil {
			return AIConfig{}, fmt.Errorf("invalid %s.keys: %w", prefix, err)
		}
		if len(keys) == 0 {
			if legacy := strings.TrimSpace(v.GetString(prefix + ".key")); legacy != "" {
				keys = []string{legacy}
			}
		}

		multiplier := v.GetInt(prefix + ".retry_multiplier")
		if multiplier <= 0 {
			multiplier = ai.DefaultRetryMultiplier
		}

		var timeout time.Duration
		if ms := v.GetInt(prefix + ".timeout_ms"); ms > 0 {
			timeout = time.Duration(ms) * time.Millisecond
		}

		providers[kind] = ProviderConfig{
			Keys:            keys,
			Model:           strings.TrimSpace(v.GetString(prefix + ".model")),
			BaseURL:         strings.TrimSpace(v.GetString(prefix + ".base_url")),
			RetryMultiplier: multiplier,
			Timeout:         timeout,
		}
	}

	return AIConfig{
		ProviderOrder: order,
		JudgmentOrder: judgment,
		Backoff:       time.Duration(backoffMs) * time.Millisecond,
		Providers:     providers,
	}, nil
}

func loadSimilarity(v *viper.Viper, aiConfig AIConfig) (SimilarityConfig, error) {
	provider := strings.ToLower(strings.TrimSpace(v.GetString("similarity.provider")))
	switch provider {
	case SimilarityHuggingFace, SimilarityOpenAI, SimilarityCohere, SimilarityNone:
	case "":
		provider = SimilarityNone
	default:
		return SimilarityConfig{}, fmt.Errorf("unknown similarity provider %q", provider)
	}

	keys, err := parseKeys(v.GetString("similarity.keys"))
	if err != nil {
		return SimilarityConfig{}, fmt.Errorf("invalid similarity.keys: %w", err)
	}
	// Hugging Face and OpenAI scorers share the generative key pools unless overridden.
	if len(keys) == 0 {
		switch provider {
		case SimilarityHuggingFace:
			keys = aiConfig.Provider(ai.ProviderHuggingFace).Keys
		case SimilarityOpenAI:
			keys = aiConfig.Provider(ai.ProviderOpenAI).Keys
		}
	}

	timeoutMs := v.GetInt("similarity.timeout_ms")
	if timeoutMs <= 0 {
		timeoutMs = 20000
	}

	return SimilarityConfig{
		Provider: provider,
		Model:    strings.TrimSpace(v.GetString("similarity.model")),
		BaseURL:  strings.TrimSpace(v.GetString("similarity.base_url")),
		Keys:     keys,
		Timeout:  time.Duration(timeoutMs) * time.Millisecond,
	}, nil
}

func parseOrder(raw string) ([]ai.ProviderKind, error) {
	parts := strings.Split(raw, ",")
	order := make([]ai.ProviderKind, 0, len(parts))
	seen := make(map[ai.ProviderKind]bool, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		kind, err := ai.ParseProviderKind(part)
		if err != nil {
			return nil, err
		}
		if seen[kind] {
			continue
		}
		seen[kind] = true
		order = append(order, kind)
	}
	return order, nil
}

// parseKeys accepts either a JSON array of strings or a comma separated list.
func parseKeys(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var keys []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &keys); err != nil {
			return nil, err
		}
	} else {
		keys = strings.Split(raw, ",")
	}

	cleaned := make([]string, 0, len(keys))
	for _, key := range keys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
