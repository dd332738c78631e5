package billing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

func newTestStripeGateway(t *testing.T, handler http.HandlerFunc) *StripeGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewStripeGateway("sk_test_123", backend)
}

func TestStripeGatewayCreateCheckout(t *testing.T) {
	g := newTestStripeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "2999", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "usd", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "acct-42", r.PostForm.Get("client_reference_id"))
		assert.Equal(t, "https://app.test/cb?status=success", r.PostForm.Get("success_url"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.test/cs_test_1"}`))
	})

	out, err := g.CreateCheckout(context.Background(), testIntent())
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", out.RedirectURL)
	assert.Equal(t, "cs_test_1", out.ProviderRef)
}

func TestStripeGatewayErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "invalid request", status: http.StatusBadRequest, body: `{"error":{"type":"invalid_request_error","message":"bad currency"}}`, wantErr: ErrGatewayRejected},
		{name: "api error", status: http.StatusInternalServerError, body: `{"error":{"type":"api_error","message":"down"}}`, wantErr: ErrGatewayUnavailable},
		{name: "no url", status: http.StatusOK, body: `{"id":"cs_test_2","object":"checkout.session"}`, wantErr: ErrGatewayRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestStripeGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := g.CreateCheckout(context.Background(), testIntent())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestStripeGatewayNotConfigured(t *testing.T) {
	_, err := NewStripeGateway("", nil).CreateCheckout(context.Background(), testIntent())
	assert.True(t, errors.Is(err, ErrGatewayUnavailable))
}
