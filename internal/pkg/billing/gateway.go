package billing

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/PropertyDesk/internal/pkg/plans"
)

var (
	ErrGatewayUnavailable       = errors.New("payment gateway unavailable")
	ErrGatewayRejected          = errors.New("payment gateway rejected checkout")
	ErrMalformedCallback        = errors.New("malformed checkout callback")
	ErrInvalidCallbackSignature = errors.New("invalid checkout callback signature")
)

// Gateway creates hosted checkouts at an external payment processor.
// Implementations must not touch entitlement state.
type Gateway interface {
	Name() string
	CreateCheckout(ctx context.Context, in Intent) (*Checkout, error)
}

// Intent is a single request to start paying for a plan. It lives only as
// long as the provider keeps the checkout open.
type Intent struct {
	CheckoutID   string
	AccountID    string
	PlanID       plans.ID
	Interval     plans.Interval
	Amount       plans.Money
	Description  string
	IssuedAt     time.Time
	CallbackURLs CallbackURLs
}

type CallbackURLs struct {
	Success string
	Cancel  string
	Failure string
}

// Checkout is the provider answer for an accepted intent.
type Checkout struct {
	RedirectURL string
	ProviderRef string
}
