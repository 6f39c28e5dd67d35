package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-proposal-api/internal/utils"
)

// Locals keys populated by ServiceToken.
const (
	LocalServiceSubject = "service_subject"
	LocalServiceRole    = "service_role"
)

// ServiceClaims are the claims carried by caller service tokens.
type ServiceClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ServiceToken validates HMAC-signed bearer tokens issued to calling services.
// An empty secret disables the guard.
func ServiceToken(secret string) fiber.Handler {
	if strings.TrimSpace(secret) == "" {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{
		jwt.SigningMethodHS256.Alg(),
		jwt.SigningMethodHS384.Alg(),
		jwt.SigningMethodHS512.Alg(),
	}))
	key := []byte(secret)

	return func(c *fiber.Ctx) error {
		authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "bearer "
		if len(authorization) <= len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		var claims ServiceClaims
		token, err := parser.ParseWithClaims(strings.TrimSpace(authorization[len(bearer):]), &claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		subject := strings.TrimSpace(claims.Subject)
		if subject == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		c.Locals(LocalServiceSubject, subject)
		if role := strings.ToLower(strings.TrimSpace(claims.Role)); role != "" {
			c.Locals(LocalServiceRole, role)
		}

		return c.Next()
	}
}

// ServiceSubject returns the authenticated caller, if any.
func ServiceSubject(c *fiber.Ctx) string {
	if value, ok := c.Locals(LocalServiceSubject).(string); ok {
		return value
	}
	return ""
}
