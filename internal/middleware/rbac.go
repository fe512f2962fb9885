package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/examguard-api/internal/utils"
)

// RequireRole admits requests whose user_role local matches one of roles.
// Role names compare case-insensitively.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := normalizeRole(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role := RoleFromContext(c)
		if role == "" {
			return utils.FailWithCode(c, fiber.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		if _, ok := allowed[role]; !ok {
			return utils.FailWithCode(c, fiber.StatusForbidden, "forbidden", "insufficient permissions", nil)
		}
		return c.Next()
	}
}

// RoleFromContext returns the normalised role set by JWTProtected.
func RoleFromContext(c *fiber.Ctx) string {
	role, _ := c.Locals("user_role").(string)
	return strings.ToLower(strings.TrimSpace(role))
}
