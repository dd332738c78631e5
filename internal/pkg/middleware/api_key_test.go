package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProtectedApp(keys []string) *fiber.App {
	app := fiber.New()
	app.Get("/private", APIKeyAuthMiddleware(keys), func(c *fiber.Ctx) error {
		client, _ := c.Locals(KeyAPIClient).(string)
		return c.SendString(client)
	})
	return app
}

func TestAPIKeyAuthMiddleware(t *testing.T) {
	app := newProtectedApp([]string{"key-one", " key-two ", ""})

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", fiber.StatusUnauthorized},
		{"x-api-key", "X-API-Key", "key-one", fiber.StatusOK},
		{"bearer", "Authorization", "Bearer key-two", fiber.StatusOK},
		{"bearer lowercase", "Authorization", "bearer key-one", fiber.StatusOK},
		{"wrong key", "X-API-Key", "key-three", fiber.StatusUnauthorized},
		{"basic auth is not a key", "Authorization", "Basic a2V5LW9uZQ==", fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAPIKeyAuthMiddlewareWithoutKeys(t *testing.T) {
	app := newProtectedApp(nil)
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("X-API-Key", "anything")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
