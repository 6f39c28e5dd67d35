package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRegisterPropagatesCorrelationAndCountsRequests(t *testing.T) {
	app := fiber.New()
	logger := zerolog.Nop()
	Register(app, Config{Logger: &logger})

	var seen string
	app.Get("/api/v1/proposals/:id", func(c *fiber.Ctx) error {
		seen = CorrelationIDFromContext(c.UserContext())
		return c.SendStatus(fiber.StatusTeapot)
	})

	before := counterValue(t, "gema_http_errors_total", "/api/v1/proposals/:id", "418")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/proposals/7", nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTeapot, resp.StatusCode)
	require.Equal(t, "req-42", resp.Header.Get("X-Correlation-ID"))
	require.Equal(t, "req-42", seen)

	after := counterValue(t, "gema_http_errors_total", "/api/v1/proposals/:id", "418")
	require.Equal(t, before+1, after)
}

func counterValue(t *testing.T, name, route, status string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["route"] == route && labels["status"] == status {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestLatencyBucket(t *testing.T) {
	require.Equal(t, "<=100ms", latencyBucket(20*time.Millisecond))
	require.Equal(t, "<=5s", latencyBucket(3*time.Second))
	require.Equal(t, ">15s", latencyBucket(time.Minute))
}
