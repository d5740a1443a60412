package middleware

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/identity"
	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/usercontext"
)

// BearerAuth authenticates requests carrying a bearer ID token issued by
// the identity provider. Missing credentials yield 401, failed
// verification 403.
func BearerAuth(verifier identity.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rawToken := extractBearerToken(c)
		if rawToken == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "Missing or malformed authorization token",
			})
		}

		id, err := verifier.Verify(c.UserContext(), rawToken)
		if err != nil {
			if !errors.Is(err, identity.ErrInvalidCredential) {
				log.Printf("token verification failed: %v", err)
			}
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "forbidden",
				"message": "Invalid or expired token",
			})
		}

		c.Locals(usercontext.KeyUserContext, usercontext.UserContext{
			UserID:     id.UID,
			Email:      id.Email,
			IsLoggedIn: true,
		})
		c.Locals(usercontext.KeyUserID, id.UID)
		c.Locals(usercontext.KeyUserEmail, id.Email)

		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
