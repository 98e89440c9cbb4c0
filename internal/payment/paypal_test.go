package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mysellum/marketplace-api/internal/common"
)

func newTestPayPal(t *testing.T, handler http.Handler) (*PayPal, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPayPal(PayPalConfig{
		BaseURL:            srv.URL,
		ClientID:           "client",
		ClientSecret:       "secret",
		PlatformMerchantID: "PLATFORM123",
		Logger:             zerolog.Nop(),
	}), srv
}

func tokenHandler(t *testing.T, mux *http.ServeMux, calls *int) {
	t.Helper()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "client", user)
		require.Equal(t, "secret", pass)
		if calls != nil {
			*calls++
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
	})
}

func TestCreateOrderSendsBearerToken(t *testing.T) {
	mux := http.NewServeMux()
	tokenHandler(t, mux, nil)
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		var body OrderBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, IntentCapture, body.Intent)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "ORDER-1", "status": "CREATED"})
	})
	client, _ := newTestPayPal(t, mux)

	result, err := client.CreateOrder(context.Background(), OrderBody{Intent: IntentCapture})
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", result.ID)
	assert.Equal(t, "CREATED", result.Status)
}

func TestTokenIsCachedAcrossCalls(t *testing.T) {
	var tokenCalls int
	mux := http.NewServeMux()
	tokenHandler(t, mux, &tokenCalls)
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "ORDER-1", "status": "CREATED"})
	})
	client, _ := newTestPayPal(t, mux)

	_, err := client.CreateOrder(context.Background(), OrderBody{})
	require.NoError(t, err)
	_, err = client.CreateOrder(context.Background(), OrderBody{})
	require.NoError(t, err)
	assert.Equal(t, 1, tokenCalls)
}

func TestUpstreamRejectionBecomesUpstreamFailure(t *testing.T) {
	mux := http.NewServeMux()
	tokenHandler(t, mux, nil)
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY"}`))
	})
	client, _ := newTestPayPal(t, mux)

	_, err := client.CreateOrder(context.Background(), OrderBody{})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeUpstreamFailure, appErr.Code)
}

func TestValidateMerchantIDNotFound(t *testing.T) {
	mux := http.NewServeMux()
	tokenHandler(t, mux, nil)
	mux.HandleFunc("/v1/customer/partners/PLATFORM123/merchant-integrations/UNKNOWN", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	client, _ := newTestPayPal(t, mux)

	err := client.ValidateMerchantID(context.Background(), "UNKNOWN")
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeInvalidInput, appErr.Code)
}

func TestValidateMerchantIDKnown(t *testing.T) {
	mux := http.NewServeMux()
	tokenHandler(t, mux, nil)
	mux.HandleFunc("/v1/customer/partners/PLATFORM123/merchant-integrations/MERCHANT1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"merchant_id": "MERCHANT1"})
	})
	client, _ := newTestPayPal(t, mux)

	require.NoError(t, client.ValidateMerchantID(context.Background(), "MERCHANT1"))
}

func TestCreateSignUpLinkReturnsActionURL(t *testing.T) {
	mux := http.NewServeMux()
	tokenHandler(t, mux, nil)
	mux.HandleFunc("/v2/customer/partner-referrals", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "store-1", payload["tracking_id"])
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"links": []map[string]string{
				{"href": "https://example.com/self", "rel": "self"},
				{"href": "https://example.com/onboard", "rel": "action_url"},
			},
		})
	})
	client, _ := newTestPayPal(t, mux)

	link, err := client.CreateSignUpLink(context.Background(), "https://mysellum.example/return", "store-1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/onboard", link)
}

func TestRefundCaptureFullRefundOmitsAmount(t *testing.T) {
	mux := http.NewServeMux()
	tokenHandler(t, mux, nil)
	mux.HandleFunc("/v2/payments/captures/CAP-1/refund", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, hasAmount := payload["amount"]
		assert.False(t, hasAmount)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"REFUND-1","status":"COMPLETED"}`))
	})
	client, _ := newTestPayPal(t, mux)

	require.NoError(t, client.RefundCapture(context.Background(), "CAP-1", "", "EUR"))
}
