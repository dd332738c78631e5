package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"github.com/ManuelReschke/PropertyDesk/internal/pkg/env"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/metrics"
)

// SystemRouter serves health, prometheus metrics and the fiber monitor.
type SystemRouter struct {
	MonitorUser     string
	MonitorPassword string
}

func (h SystemRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/metrics", metrics.Handler())

	if h.MonitorUser != "" && h.MonitorPassword != "" {
		app.Get("/monitor", basicauth.New(basicauth.Config{
			Users: map[string]string{
				h.MonitorUser: h.MonitorPassword,
			},
		}), monitor.New(monitor.Config{Title: "PropertyDesk Monitor"}))
	}
}

func NewSystemRouter() *SystemRouter {
	return &SystemRouter{
		MonitorUser:     env.GetEnv("MONITOR_USER", ""),
		MonitorPassword: env.GetEnv("MONITOR_PASSWORD", ""),
	}
}
