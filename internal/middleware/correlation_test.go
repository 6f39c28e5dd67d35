package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func correlationApp(seen *string) *fiber.App {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Post("/proposals/evaluate", func(c *fiber.Ctx) error {
		*seen = GetCorrelationID(c)
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestCorrelationIDReusesCallerID(t *testing.T) {
	var seen string
	req := httptest.NewRequest(http.MethodPost, "/proposals/evaluate", nil)
	req.Header.Set(HeaderCorrelationID, " portal-eval-17 ")

	resp, err := correlationApp(&seen).Test(req)
	require.NoError(t, err)
	require.Equal(t, "portal-eval-17", seen)
	require.Equal(t, "portal-eval-17", resp.Header.Get(HeaderCorrelationID))
}

func TestCorrelationIDReplacesUnsafeCallerIDs(t *testing.T) {
	cases := map[string]string{
		"too long":    strings.Repeat("a", maxCorrelationIDLength+1),
		"inner space": "eval 17",
		"non-ascii":   "évaluation",
	}

	for name, incoming := range cases {
		t.Run(name, func(t *testing.T) {
			var seen string
			req := httptest.NewRequest(http.MethodPost, "/proposals/evaluate", nil)
			req.Header.Set(HeaderCorrelationID, incoming)

			resp, err := correlationApp(&seen).Test(req)
			require.NoError(t, err)
			_, parseErr := uuid.Parse(seen)
			require.NoError(t, parseErr)
			require.Equal(t, seen, resp.Header.Get(HeaderCorrelationID))
		})
	}
}

func TestContextWithCorrelation(t *testing.T) {
	ctx := ContextWithCorrelation(context.Background(), "batch-2024-09")
	require.Equal(t, "batch-2024-09", CorrelationIDFromContext(ctx))

	unchanged := ContextWithCorrelation(ctx, "not valid")
	require.Equal(t, "batch-2024-09", CorrelationIDFromContext(unchanged))

	require.Empty(t, CorrelationIDFromContext(ContextWithCorrelation(context.Background(), "  ")))
}
