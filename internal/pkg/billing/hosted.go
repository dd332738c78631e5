package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuelReschke/PropertyDesk/app/models"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/env"
	"github.com/ManuelReschke/PropertyDesk/internal/pkg/metrics"
)

// HostedGateway talks to a payment processor that accepts a JSON payment
// request and answers with a hosted checkout redirect_url.
type HostedGateway struct {
	Endpoint string
	Secret   string

	HTTPClient *http.Client
}

type hostedCheckoutRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	SuccessURL  string `json:"success_url"`
	CancelURL   string `json:"cancel_url"`
	FailureURL  string `json:"failure_url"`
}

type hostedCheckoutResponse struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
}

func NewHostedGatewayFromEnv() *HostedGateway {
	return &HostedGateway{
		Endpoint: strings.TrimSpace(env.GetEnv("PAYMENT_GATEWAY_URL", "")),
		Secret:   strings.TrimSpace(env.GetEnv("PAYMENT_GATEWAY_SECRET", "")),
		HTTPClient: &http.Client{
			Timeout: env.GetDuration("PAYMENT_GATEWAY_TIMEOUT", 15*time.Second),
		},
	}
}

func (g *HostedGateway) Name() string {
	return models.PaymentProviderHosted
}

func (g *HostedGateway) CreateCheckout(ctx context.Context, in Intent) (*Checkout, error) {
	out, err := g.createCheckout(ctx, in)
	metrics.RecordGatewayRequest(g.Name(), err)
	return out, err
}

func (g *HostedGateway) createCheckout(ctx context.Context, in Intent) (*Checkout, error) {
	if strings.TrimSpace(g.Endpoint) == "" {
		return nil, fmt.Errorf("%w: PAYMENT_GATEWAY_URL is not configured", ErrGatewayUnavailable)
	}

	payload, err := json.Marshal(hostedCheckoutRequest{
		Amount:      in.Amount.Amount,
		Currency:    in.Amount.Currency,
		Description: in.Description,
		SuccessURL:  in.CallbackURLs.Success,
		CancelURL:   in.CallbackURLs.Cancel,
		FailureURL:  in.CallbackURLs.Failure,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+g.Secret)
	}
	if in.CheckoutID != "" {
		req.Header.Set("Idempotency-Key", in.CheckoutID)
	}

	client := g.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrGatewayRejected, resp.StatusCode, string(body))
	}

	var out hostedCheckoutResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrGatewayRejected, err)
	}
	if strings.TrimSpace(out.RedirectURL) == "" {
		return nil, fmt.Errorf("%w: response missing redirect_url", ErrGatewayRejected)
	}
	return &Checkout{RedirectURL: strings.TrimSpace(out.RedirectURL), ProviderRef: out.ID}, nil
}
