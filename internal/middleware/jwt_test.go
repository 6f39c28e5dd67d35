package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "service-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims ServiceClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func serviceApp(secret string) *fiber.App {
	app := fiber.New()
	app.Use(ServiceToken(secret))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		role, _ := c.Locals(LocalServiceRole).(string)
		return c.SendString(ServiceSubject(c) + "|" + role)
	})
	return app
}

func call(t *testing.T, app *fiber.App, authorization string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServiceTokenAcceptsValidToken(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), ServiceClaims{
		Role: "Teacher",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "gema-portal",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	status, body := call(t, serviceApp(testSecret), "Bearer "+token)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "gema-portal|teacher", body)
}

func TestServiceTokenRejectsBadTokens(t *testing.T) {
	app := serviceApp(testSecret)

	expired := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "gema-portal",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	wrongKey := signToken(t, jwt.SigningMethodHS256, []byte("other"), ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "gema-portal"},
	})
	noSubject := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), ServiceClaims{})
	unsigned := signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "gema-portal"},
	})

	for name, header := range map[string]string{
		"missing":    "",
		"scheme":     "Basic abc",
		"expired":    "Bearer " + expired,
		"wrong key":  "Bearer " + wrongKey,
		"no subject": "Bearer " + noSubject,
		"alg none":   "Bearer " + unsigned,
	} {
		status, _ := call(t, app, header)
		require.Equal(t, fiber.StatusUnauthorized, status, name)
	}
}

func TestServiceTokenDisabledWithoutSecret(t *testing.T) {
	status, body := call(t, serviceApp(""), "")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "|", body)
}
