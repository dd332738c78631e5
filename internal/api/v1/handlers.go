package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to the controllers to keep one response shape per resource
	"github.com/ManuelReschke/PropertyDesk/app/controllers"
)

// APIServer implements the ServerInterface
type APIServer struct {
	entitlements *controllers.EntitlementController
}

// NewAPIServer creates a new API server instance
func NewAPIServer(ec *controllers.EntitlementController) *APIServer {
	return &APIServer{entitlements: ec}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(Pong{Ping: "pong"})
}

// GetPlans lists the plans that can be bought or trialed.
func (s *APIServer) GetPlans(c *fiber.Ctx) error {
	return s.entitlements.HandleListPlans(c)
}

// GetEntitlement returns the effective entitlement of the user in ?user=.
// Security is enforced via API key middleware attached in RegisterHandlers.
func (s *APIServer) GetEntitlement(c *fiber.Ctx) error {
	return s.entitlements.HandleGetEntitlement(c)
}

func (s *APIServer) PostCheckout(c *fiber.Ctx) error {
	return s.entitlements.HandleCheckout(c)
}

func (s *APIServer) PostTrial(c *fiber.Ctx) error {
	return s.entitlements.HandleStartTrial(c)
}

func (s *APIServer) PostCancel(c *fiber.Ctx) error {
	return s.entitlements.HandleCancel(c)
}

// GetCheckoutCallback is the browser return from the payment provider. It is
// not API key protected; authenticity comes from the signed query.
func (s *APIServer) GetCheckoutCallback(c *fiber.Ctx) error {
	return s.entitlements.HandleCheckoutCallback(c)
}

// GetCountdown streams the remaining grant time as server sent events.
func (s *APIServer) GetCountdown(c *fiber.Ctx) error {
	return s.entitlements.HandleCountdown(c)
}
