package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestRateLimitKeysByUser(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if user := c.Get("X-User"); user == "7" {
			c.Locals("user_id", uint(7))
		} else if user == "8" {
			c.Locals("user_id", uint(8))
		}
		return c.Next()
	})
	app.Post("/checkins", RateLimit("checkins", 1, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	send := func(user string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/checkins", nil)
		req.Header.Set("X-User", user)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	require.Equal(t, fiber.StatusCreated, send("7").StatusCode)
	require.Equal(t, fiber.StatusCreated, send("8").StatusCode)

	limited := send("7")
	require.Equal(t, fiber.StatusTooManyRequests, limited.StatusCode)
	require.Equal(t, "60", limited.Header.Get(fiber.HeaderRetryAfter))

	var body struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(limited.Body).Decode(&body))
	require.False(t, body.Success)
	require.Equal(t, "rate_limited", body.Code)
}
