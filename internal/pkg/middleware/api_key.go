package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// KeyAPIClient is the Locals key holding a short fingerprint of the caller's key.
const KeyAPIClient = "API_CLIENT"

// APIKeyAuthMiddleware authenticates requests carrying one of the configured
// service API keys. With no keys configured every request is rejected.
func APIKeyAuthMiddleware(keys []string) fiber.Handler {
	digests := make([][32]byte, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			digests = append(digests, sha256.Sum256([]byte(k)))
		}
	}
	if len(digests) == 0 {
		log.Warn("api key middleware: API_KEYS is empty, protected routes will reject all requests")
	}

	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		got := sha256.Sum256([]byte(apiKey))
		matched := 0
		for i := range digests {
			matched |= subtle.ConstantTimeCompare(got[:], digests[i][:])
		}
		if matched != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
		}

		c.Locals(KeyAPIClient, fingerprint(got))
		return c.Next()
	}
}

func fingerprint(sum [32]byte) string {
	return hex.EncodeToString(sum[:4])
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
