package middleware

import (
	"log"

	"lifelog/internal/services"

	"github.com/gofiber/fiber/v2"
)

// UserKey is the Locals key the resolved user is attached under.
const UserKey = "user"

// SessionGuard validates the session cookie, resolves the account and
// attaches it to the request context. A missing cookie, a bad or expired
// token and a deleted account all yield the same 401 so callers cannot tell
// them apart.
func SessionGuard(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies(services.SessionCookie)
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Unauthorized",
			})
		}

		userID, err := authService.ValidateToken(tokenString)
		if err != nil {
			log.Printf("Session validation failed: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Unauthorized",
			})
		}

		user, err := authService.GetProfile(userID)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Unauthorized",
			})
		}

		c.Locals(UserKey, user)
		return c.Next()
	}
}
