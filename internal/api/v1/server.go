package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PropertyDesk/internal/pkg/constants"
)

// Pong is the ping response body.
type Pong struct {
	Ping string `json:"ping"`
}

// ServerInterface mirrors the operations in public/docs/v1/openapi.yml.
type ServerInterface interface {
	// (GET /ping)
	GetPing(c *fiber.Ctx) error
	// (GET /plans)
	GetPlans(c *fiber.Ctx) error
	// (GET /entitlement)
	GetEntitlement(c *fiber.Ctx) error
	// (POST /entitlement/checkout)
	PostCheckout(c *fiber.Ctx) error
	// (POST /entitlement/trial)
	PostTrial(c *fiber.Ctx) error
	// (POST /entitlement/cancel)
	PostCancel(c *fiber.Ctx) error
	// (GET /entitlement/callback)
	GetCheckoutCallback(c *fiber.Ctx) error
	// (GET /entitlement/countdown)
	GetCountdown(c *fiber.Ctx) error
}

// RegisterHandlers mounts every operation on router. protect guards the
// entitlement routes except the provider callback; nil leaves them open.
func RegisterHandlers(router fiber.Router, si ServerInterface, protect fiber.Handler) {
	if protect == nil {
		protect = func(c *fiber.Ctx) error { return c.Next() }
	}

	router.Get("/ping", si.GetPing)
	router.Get(constants.PlansRoute, si.GetPlans)

	router.Get(constants.EntitlementCallbackRoute, si.GetCheckoutCallback)

	router.Get(constants.EntitlementRoute, protect, si.GetEntitlement)
	router.Post(constants.EntitlementCheckoutRoute, protect, si.PostCheckout)
	router.Post(constants.EntitlementTrialRoute, protect, si.PostTrial)
	router.Post(constants.EntitlementCancelRoute, protect, si.PostCancel)
	router.Get(constants.EntitlementCountdown, protect, si.GetCountdown)
}
