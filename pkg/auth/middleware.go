package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lumenlabs/go-lumen/pkg/store"
)

const userLocal = "auth.user"

// UserSource loads users for session resolution.
type UserSource interface {
	UserByID(id uint) (*store.User, error)
}

// Middleware resolves the session cookie into a user and stores it in
// the request locals. Requests without a valid session pass through
// anonymously; use RequireUser to enforce login.
func Middleware(sessions *Sessions, users UserSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(CookieName)
		if token == "" {
			return c.Next()
		}
		id, err := sessions.Parse(token)
		if err != nil {
			return c.Next()
		}
		user, err := users.UserByID(id)
		if err != nil {
			return c.Next()
		}
		c.Locals(userLocal, user)
		return c.Next()
	}
}

// RequireUser rejects requests that did not resolve to a user.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if UserFrom(c) == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
			})
		}
		return c.Next()
	}
}

// UserFrom returns the authenticated user, or nil.
func UserFrom(c *fiber.Ctx) *store.User {
	user, _ := c.Locals(userLocal).(*store.User)
	return user
}
