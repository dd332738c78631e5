package controllers

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PropertyDesk/internal/pkg/billing"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/entitlements"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/metrics"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/plans"
)

const requestTimeout = 20 * time.Second

// EntitlementControllerConfig wires the controller to its collaborators.
type EntitlementControllerConfig struct {
	Service   *entitlements.Service
	Catalog   *plans.Catalog
	Callbacks *billing.CallbackLog
	// Provider is stored with every recorded callback.
	Provider string
	// ReturnURL is where the browser lands after a checkout callback.
	ReturnURL string
	// DevTrialBypass grants a trial instead of opening a checkout.
	DevTrialBypass    bool
	CountdownInterval time.Duration
}

// EntitlementController serves the entitlement JSON API and the checkout
// return endpoint.
type EntitlementController struct {
	svc       *entitlements.Service
	catalog   *plans.Catalog
	callbacks *billing.CallbackLog
	provider  string
	returnURL string
	devBypass bool
	interval  time.Duration
	validate  *validator.Validate
}

func NewEntitlementController(cfg EntitlementControllerConfig) *EntitlementController {
	returnURL := strings.TrimSpace(cfg.ReturnURL)
	if returnURL == "" {
		returnURL = "/"
	}
	return &EntitlementController{
		svc:       cfg.Service,
		catalog:   cfg.Catalog,
		callbacks: cfg.Callbacks,
		provider:  cfg.Provider,
		returnURL: returnURL,
		devBypass: cfg.DevTrialBypass,
		interval:  cfg.CountdownInterval,
		validate:  validator.New(),
	}
}

type checkoutRequest struct {
	UserID   string `json:"userId" validate:"required,max=191"`
	Plan     string `json:"plan" validate:"required,max=32"`
	Interval string `json:"interval" validate:"omitempty,oneof=month year"`
}

type trialRequest struct {
	UserID string `json:"userId" validate:"required,max=191"`
	Plan   string `json:"plan" validate:"required,max=32"`
}

type accountRequest struct {
	UserID string `json:"userId" validate:"required,max=191"`
}

type priceResponse struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

type planResponse struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	PropertyLimit plans.Limit   `json:"propertyLimit"`
	Monthly       priceResponse `json:"monthly"`
	Yearly        priceResponse `json:"yearly"`
}

type entitlementResponse struct {
	UserID             string      `json:"userId"`
	Plan               string      `json:"plan"`
	LastPlan           string      `json:"lastPlan,omitempty"`
	PropertyLimit      plans.Limit `json:"propertyLimit"`
	Status             string      `json:"status"`
	TrialEndsAt        interface{} `json:"trial_ends_at"`
	SubscriptionEndsAt interface{} `json:"subscription_ends_at"`
	EndsAt             interface{} `json:"ends_at"`
	RemainingMs        int64       `json:"remaining_ms"`
}

func toPrice(m plans.Money) priceResponse {
	return priceResponse{Amount: m.Amount, Currency: m.Currency, Display: m.Decimal()}
}

func toEntitlementResponse(eff entitlements.Effective) entitlementResponse {
	return entitlementResponse{
		UserID:             eff.AccountID,
		Plan:               string(eff.PlanID),
		LastPlan:           string(eff.LastPlanID),
		PropertyLimit:      eff.PropertyLimit,
		Status:             string(eff.Status),
		TrialEndsAt:        formatTimePtr(eff.TrialEndsAt),
		SubscriptionEndsAt: formatTimePtr(eff.PeriodEndsAt),
		EndsAt:             formatTimePtr(eff.EndsAt),
		RemainingMs:        eff.RemainingMs(),
	}
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// HandleListPlans returns the sellable plans in display order.
func (ec *EntitlementController) HandleListPlans(c *fiber.Ctx) error {
	defs := ec.catalog.List()
	out := make([]planResponse, 0, len(defs))
	for _, d := range defs {
		out = append(out, planResponse{
			ID:            string(d.ID),
			Name:          d.Name,
			PropertyLimit: d.PropertyLimit,
			Monthly:       toPrice(d.MonthlyPrice),
			Yearly:        toPrice(d.YearlyPrice),
		})
	}
	free := ec.catalog.Free()
	return c.JSON(fiber.Map{"plans": out, "free": fiber.Map{"id": free.ID, "propertyLimit": free.PropertyLimit}})
}

// HandleGetEntitlement answers what the user may use right now. When the
// record cannot be read it fails closed with the free limit.
func (ec *EntitlementController) HandleGetEntitlement(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Query("user"))
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_user", "message": "query parameter user is required"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	eff, err := ec.svc.Evaluate(ctx, userID)
	if err != nil {
		return ec.degraded(c, userID, err)
	}
	return c.JSON(toEntitlementResponse(eff))
}

func (ec *EntitlementController) degraded(c *fiber.Ctx, userID string, err error) error {
	reason := "evaluate_failed"
	if errors.Is(err, entitlements.ErrStoreUnavailable) {
		reason = "store_unavailable"
	}
	metrics.RecordDegraded(reason)
	log.Warnf("entitlement: serving degraded answer for %s: %v", userID, err)

	free := ec.catalog.Free()
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"userId":        userID,
		"plan":          free.ID,
		"propertyLimit": free.PropertyLimit,
		"status":        "unknown",
		"degraded":      true,
		"warning":       "unable to verify subscription",
	})
}

// HandleCheckout opens a hosted checkout, or grants a trial directly when the
// development bypass is on.
func (ec *EntitlementController) HandleCheckout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := ec.bind(c, &req); err != nil {
		return badRequest(c, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if ec.devBypass {
		rec, err := ec.svc.RequestTrial(ctx, req.UserID, req.Plan)
		if err != nil {
			return writeEntitlementError(c, err)
		}
		log.Warnf("entitlement: dev bypass granted %s trial to %s", rec.PlanID, rec.AccountID)
		return c.JSON(fiber.Map{"message": "trial started (development bypass)", "redirectUrl": ""})
	}

	redirectURL, err := ec.svc.BeginCheckout(ctx, req.UserID, req.Plan, plans.Interval(req.Interval))
	if err != nil {
		return writeEntitlementError(c, err)
	}
	return c.JSON(fiber.Map{"message": "redirect to checkout", "redirectUrl": redirectURL})
}

// HandleStartTrial starts a trial of a sellable plan.
func (ec *EntitlementController) HandleStartTrial(c *fiber.Ctx) error {
	var req trialRequest
	if err := ec.bind(c, &req); err != nil {
		return badRequest(c, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if _, err := ec.svc.RequestTrial(ctx, req.UserID, req.Plan); err != nil {
		return writeEntitlementError(c, err)
	}
	return ec.respondEffective(ctx, c, req.UserID, fiber.StatusCreated)
}

// HandleCancel revokes the current grant of an account.
func (ec *EntitlementController) HandleCancel(c *fiber.Ctx) error {
	var req accountRequest
	if err := ec.bind(c, &req); err != nil {
		return badRequest(c, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if _, err := ec.svc.Cancel(ctx, req.UserID); err != nil {
		return writeEntitlementError(c, err)
	}
	return ec.respondEffective(ctx, c, req.UserID, fiber.StatusOK)
}

func (ec *EntitlementController) respondEffective(ctx context.Context, c *fiber.Ctx, userID string, status int) error {
	eff, err := ec.svc.Evaluate(ctx, userID)
	if err != nil {
		return ec.degraded(c, userID, err)
	}
	return c.Status(status).JSON(toEntitlementResponse(eff))
}

// HandleCheckoutCallback handles the browser return from the payment
// provider. Every callback is recorded before it is applied; a callback
// that was already applied is not applied again.
func (ec *EntitlementController) HandleCheckoutCallback(c *fiber.Ctx) error {
	rawQuery := string(c.Request().URI().QueryString())
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		metrics.RecordCallback("unknown", "malformed")
		log.Warnf("checkout callback: unparsable query: %v", err)
		return ec.redirectResult(c, "error")
	}

	cb, parseErr := billing.ParseCallback(query, ec.svc.Signer())
	if parseErr != nil && !errors.Is(parseErr, billing.ErrInvalidCallbackSignature) {
		metrics.RecordCallback("unknown", "malformed")
		log.Warnf("checkout callback: %v", parseErr)
		return ec.redirectResult(c, "error")
	}
	status := string(cb.Outcome)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	created, stored, err := ec.callbacks.Record(ctx, billing.CallbackEventInput{
		Provider:       ec.provider,
		CheckoutID:     cb.CheckoutID,
		Status:         status,
		AccountID:      cb.AccountID,
		PlanID:         string(cb.PlanID),
		RawQuery:       rawQuery,
		SignatureValid: cb.SignatureValid,
	})
	if err != nil {
		metrics.RecordCallback(status, "persist_failed")
		log.Errorf("checkout callback: could not record %s for %s: %v", status, cb.AccountID, err)
		return ec.redirectResult(c, "error")
	}
	if !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		metrics.RecordCallback(status, "duplicate")
		return ec.redirectResult(c, status)
	}
	if !cb.SignatureValid {
		_ = ec.callbacks.MarkProcessed(ctx, stored.ID, billing.ErrInvalidCallbackSignature)
		metrics.RecordCallback(status, "invalid_signature")
		log.Warnf("checkout callback: invalid signature for %s (%s)", cb.AccountID, cb.CheckoutID)
		return ec.redirectResult(c, "error")
	}

	var applyErr error
	switch cb.Outcome {
	case billing.OutcomeSuccess:
		_, applyErr = ec.svc.ConfirmSuccess(ctx, cb.AccountID, string(cb.PlanID), cb.Interval, cb.EventTime)
	default:
		applyErr = ec.svc.ConfirmCancelOrFailure(ctx, cb.AccountID)
	}
	if err := ec.callbacks.MarkProcessed(ctx, stored.ID, applyErr); err != nil {
		log.Errorf("checkout callback: could not mark %d processed: %v", stored.ID, err)
	}
	if applyErr != nil {
		metrics.RecordCallback(status, "failed")
		log.Errorf("checkout callback: applying %s for %s failed: %v", status, cb.AccountID, applyErr)
		return ec.redirectResult(c, "error")
	}

	metrics.RecordCallback(status, "applied")
	return ec.redirectResult(c, status)
}

func (ec *EntitlementController) redirectResult(c *fiber.Ctx, result string) error {
	u, err := url.Parse(ec.returnURL)
	if err != nil {
		return c.Redirect("/?checkout="+url.QueryEscape(result), fiber.StatusSeeOther)
	}
	q := u.Query()
	q.Set("checkout", result)
	u.RawQuery = q.Encode()
	return c.Redirect(u.String(), fiber.StatusSeeOther)
}

// bind parses and validates a JSON body.
func (ec *EntitlementController) bind(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return errors.New("invalid request body")
	}
	if err := ec.validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field()+":"+fe.Tag())
		}
		return errors.New("validation failed: " + strings.Join(fields, ", "))
	}
	return nil
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
}

func writeEntitlementError(c *fiber.Ctx, err error) error {
	status, code := classifyEntitlementError(err)
	if status >= fiber.StatusInternalServerError {
		log.Errorf("entitlement: %s: %v", code, err)
	}
	return c.Status(status).JSON(fiber.Map{"error": code, "message": err.Error()})
}

func classifyEntitlementError(err error) (int, string) {
	switch {
	case errors.Is(err, entitlements.ErrInvalidAccount):
		return fiber.StatusBadRequest, "invalid_user"
	case errors.Is(err, plans.ErrNotFound):
		return fiber.StatusNotFound, "plan_not_found"
	case errors.Is(err, entitlements.ErrPlanNotSellable):
		return fiber.StatusUnprocessableEntity, "plan_not_sellable"
	case errors.Is(err, entitlements.ErrAlreadyActive):
		return fiber.StatusConflict, "already_active"
	case errors.Is(err, entitlements.ErrTrialAlreadyUsed):
		return fiber.StatusConflict, "trial_already_used"
	case errors.Is(err, entitlements.ErrInvalidTransition):
		return fiber.StatusConflict, "invalid_transition"
	case errors.Is(err, billing.ErrGatewayUnavailable):
		return fiber.StatusServiceUnavailable, "gateway_unavailable"
	case errors.Is(err, billing.ErrGatewayRejected):
		return fiber.StatusBadGateway, "gateway_rejected"
	case errors.Is(err, entitlements.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return fiber.StatusServiceUnavailable, "store_unavailable"
	}
	return fiber.StatusInternalServerError, "internal_server_error"
}
