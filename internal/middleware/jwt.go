package middleware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/examguard-api/internal/utils"
)

const jwtLeeway = 30 * time.Second

var errUnsupportedSubject = errors.New("unsupported subject")

// JWTProtected validates HS256 bearer tokens and stores the subject and role
// as the user_id and user_role locals.
func JWTProtected(secret string) fiber.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(jwtLeeway),
	)
	key := []byte(secret)

	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return unauthorized(c, "missing or malformed bearer token")
		}

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		})
		if err != nil || !token.Valid {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return unauthorized(c, "token expired")
			}
			return unauthorized(c, "invalid token")
		}

		if userID, ok := userIDFromClaims(claims); ok {
			c.Locals("user_id", userID)
		}
		if role := roleFromClaims(claims); role != "" {
			c.Locals("user_role", role)
		}

		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, message string) error {
	return utils.FailWithCode(c, fiber.StatusUnauthorized, "unauthorized", message, nil)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func userIDFromClaims(claims jwt.MapClaims) (uint, bool) {
	for _, key := range []string{"sub", "user_id", "id"} {
		if value, ok := claims[key]; ok {
			if id, err := parseSubject(value); err == nil && id != 0 {
				return id, true
			}
		}
	}
	return 0, false
}

func parseSubject(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 || v != float64(uint64(v)) {
			return 0, errUnsupportedSubject
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	default:
		return 0, errUnsupportedSubject
	}
}

// roleFromClaims accepts a single "role" string or the first entry of "roles".
func roleFromClaims(claims jwt.MapClaims) string {
	if role, ok := claims["role"].(string); ok {
		if normalized := normalizeRole(role); normalized != "" {
			return normalized
		}
	}
	if roles, ok := claims["roles"].([]interface{}); ok {
		for _, item := range roles {
			if role, ok := item.(string); ok {
				if normalized := normalizeRole(role); normalized != "" {
					return normalized
				}
			}
		}
	}
	return ""
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
