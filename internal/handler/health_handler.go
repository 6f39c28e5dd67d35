package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-proposal-api/internal/config"
	"github.com/noah-isme/gema-proposal-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Providers   []string  `json:"providers"`
	Similarity  string    `json:"similarity"`
}

// HealthCheck reports liveness along with the cascade providers able to serve calls.
func HealthCheck(cfg config.Config) fiber.Handler {
	providers := make([]string, 0, len(cfg.AI.ProviderOrder))
	for _, kind := range cfg.AI.ProviderOrder {
		if kind.Keyless() || len(cfg.AI.Provider(kind).Keys) > 0 {
			providers = append(providers, string(kind))
		}
	}

	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Providers:   providers,
			Similarity:  cfg.Similarity.Provider,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
