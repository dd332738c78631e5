package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/ManuelReschke/PropertyDesk/app/models"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/env"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/metrics"
)

// StripeGateway creates one-off Stripe Checkout sessions priced inline from
// the plan catalog. Stripe has no failure return; failed payments come back
// through the cancel URL.
type StripeGateway struct {
	sessions *checkoutsession.Client
}

// NewStripeGateway uses backend when given, otherwise the default API backend.
func NewStripeGateway(secretKey string, backend stripe.Backend) *StripeGateway {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeGateway{sessions: &checkoutsession.Client{B: backend, Key: secretKey}}
}

func NewStripeGatewayFromEnv() *StripeGateway {
	return NewStripeGateway(strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")), nil)
}

func (g *StripeGateway) Name() string {
	return models.PaymentProviderStripe
}

func (g *StripeGateway) CreateCheckout(ctx context.Context, in Intent) (*Checkout, error) {
	out, err := g.createCheckout(ctx, in)
	metrics.RecordGatewayRequest(g.Name(), err)
	return out, err
}

func (g *StripeGateway) createCheckout(ctx context.Context, in Intent) (*Checkout, error) {
	if strings.TrimSpace(g.sessions.Key) == "" {
		return nil, fmt.Errorf("%w: STRIPE_SECRET_KEY is not configured", ErrGatewayUnavailable)
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(in.Amount.Currency)),
				UnitAmount: stripe.Int64(in.Amount.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(in.Description),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(in.CallbackURLs.Success),
		CancelURL:         stripe.String(in.CallbackURLs.Cancel),
		ClientReferenceID: stripe.String(in.AccountID),
		Metadata: map[string]string{
			"user_id":     in.AccountID,
			"plan":        string(in.PlanID),
			"checkout_id": in.CheckoutID,
		},
	}
	params.Context = ctx
	if in.CheckoutID != "" {
		params.SetIdempotencyKey(in.CheckoutID)
	}

	sess, err := g.sessions.New(params)
	if err != nil {
		return nil, classifyStripeError(err)
	}
	if sess == nil || strings.TrimSpace(sess.URL) == "" {
		return nil, fmt.Errorf("%w: stripe session without url", ErrGatewayRejected)
	}
	return &Checkout{RedirectURL: sess.URL, ProviderRef: sess.ID}, nil
}

func classifyStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= 500 || stripeErr.HTTPStatusCode == 0 {
			return fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
		}
		return fmt.Errorf("%w: %w", ErrGatewayRejected, err)
	}
	return fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
}
