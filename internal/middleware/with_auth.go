package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/examguard-api/internal/utils"
)

// Roles recognised by the API.
const (
	RoleAdmin   = "admin"
	RoleProctor = "proctor"
)

// Auth role constants used by WithAuth helper.
const (
	AuthRoleAny     = "any"
	AuthRoleAdmin   = RoleAdmin
	AuthRoleProctor = RoleProctor
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth wraps a handler with basic authentication/authorization guards.
// Admins satisfy the proctor role.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	requireUser := opts.RequireUser
	if !requireUser && role != AuthRoleAny {
		requireUser = true
	}

	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id")
		if requireUser && userID == nil {
			return utils.FailWithCode(c, fiber.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}

		if role == AuthRoleAny {
			return handler(c)
		}

		currentRole := RoleFromContext(c)
		switch role {
		case AuthRoleProctor:
			if currentRole != RoleProctor && currentRole != RoleAdmin {
				return utils.FailWithCode(c, fiber.StatusForbidden, "forbidden", "insufficient permissions", nil)
			}
		default:
			if currentRole != role {
				return utils.FailWithCode(c, fiber.StatusForbidden, "forbidden", "insufficient permissions", nil)
			}
		}

		return handler(c)
	}
}

// RequireAuth is WithAuth as group middleware.
func RequireAuth(opts AuthOptions) fiber.Handler {
	return WithAuth(func(c *fiber.Ctx) error { return c.Next() }, opts)
}
