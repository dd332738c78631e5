package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	apiv1 "github.com/ManuelReschke/PropertyDesk/internal/api/v1"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/constants"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/middleware"
)

type ApiRouter struct {
	server *apiv1.APIServer
	// Storage backs the rate limiter; nil keeps counters in memory.
	Storage  fiber.Storage
	APIKeys  []string
	MaxPerIP int
	Window   time.Duration
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	limit := h.MaxPerIP
	if limit <= 0 {
		limit = 120
	}
	window := h.Window
	if window <= 0 {
		window = time.Minute
	}

	api := app.Group(constants.APIRoute, limiter.New(limiter.Config{
		Max:        limit,
		Expiration: window,
		Storage:    h.Storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited", "message": "Too many requests"})
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	apiv1.RegisterHandlers(v1, h.server, middleware.APIKeyAuthMiddleware(h.APIKeys))
}

func NewApiRouter(server *apiv1.APIServer) *ApiRouter {
	return &ApiRouter{server: server}
}
