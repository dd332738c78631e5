package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PropertyDesk/internal/pkg/plans"
)

func testIntent() Intent {
	return Intent{
		CheckoutID:  "chk-1",
		AccountID:   "acct-42",
		PlanID:      plans.Pro,
		Interval:    plans.Monthly,
		Amount:      plans.Money{Amount: 2999, Currency: "USD"},
		Description: "Pro plan (month)",
		IssuedAt:    time.Unix(1_700_000_000, 0).UTC(),
		CallbackURLs: CallbackURLs{
			Success: "https://app.test/cb?status=success",
			Cancel:  "https://app.test/cb?status=cancel",
			Failure: "https://app.test/cb?status=failure",
		},
	}
}

func TestHostedGatewayCreateCheckout(t *testing.T) {
	var got hostedCheckoutRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		assert.Equal(t, "chk-1", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pay_1","redirect_url":"https://pay.test/checkout/pay_1"}`))
	}))
	defer srv.Close()

	g := &HostedGateway{Endpoint: srv.URL, Secret: "s3cret", HTTPClient: srv.Client()}
	out, err := g.CreateCheckout(context.Background(), testIntent())
	require.NoError(t, err)
	assert.Equal(t, "https://pay.test/checkout/pay_1", out.RedirectURL)
	assert.Equal(t, "pay_1", out.ProviderRef)

	assert.Equal(t, int64(2999), got.Amount)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, "Pro plan (month)", got.Description)
	assert.Equal(t, "https://app.test/cb?status=success", got.SuccessURL)
	assert.Equal(t, "https://app.test/cb?status=cancel", got.CancelURL)
	assert.Equal(t, "https://app.test/cb?status=failure", got.FailureURL)
}

func TestHostedGatewayErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "non success status", status: http.StatusPaymentRequired, body: `{"error":"declined"}`, wantErr: ErrGatewayRejected},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, wantErr: ErrGatewayRejected},
		{name: "missing redirect", status: http.StatusOK, body: `{"id":"x"}`, wantErr: ErrGatewayRejected},
		{name: "invalid json", status: http.StatusOK, body: `<html>`, wantErr: ErrGatewayRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			g := &HostedGateway{Endpoint: srv.URL, HTTPClient: srv.Client()}
			_, err := g.CreateCheckout(context.Background(), testIntent())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestHostedGatewayUnavailable(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		_, err := (&HostedGateway{}).CreateCheckout(context.Background(), testIntent())
		assert.True(t, errors.Is(err, ErrGatewayUnavailable))
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		endpoint := srv.URL
		srv.Close()

		g := &HostedGateway{Endpoint: endpoint, HTTPClient: &http.Client{Timeout: time.Second}}
		_, err := g.CreateCheckout(context.Background(), testIntent())
		assert.True(t, errors.Is(err, ErrGatewayUnavailable), "got %v", err)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		g := &HostedGateway{Endpoint: srv.URL, HTTPClient: &http.Client{Timeout: 50 * time.Millisecond}}
		_, err := g.CreateCheckout(context.Background(), testIntent())
		assert.True(t, errors.Is(err, ErrGatewayUnavailable), "got %v", err)
	})
}
