package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mysellum/marketplace-api/internal/common"
	"github.com/mysellum/marketplace-api/internal/obs"
	"github.com/mysellum/marketplace-api/internal/resilience"
)

// PayPalConfig configures the REST client.
type PayPalConfig struct {
	BaseURL            string
	ClientID           string
	ClientSecret       string
	PlatformMerchantID string
	Timeout            time.Duration
	Logger             zerolog.Logger
}

// PayPal implements Processor against the PayPal REST API. Access tokens are
// fetched via client credentials and cached until shortly before expiry.
type PayPal struct {
	baseURL            string
	clientID           string
	clientSecret       string
	platformMerchantID string
	http               *http.Client
	logger             zerolog.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewPayPal constructs a PayPal client with an instrumented, circuit-broken
// transport. Requests are never retried automatically.
func NewPayPal(cfg PayPalConfig) *PayPal {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	breaker := resilience.NewBreaker(10, 0.5, 30*time.Second).
		WithTarget("paypal").
		WithLogger(cfg.Logger)
	return &PayPal{
		baseURL:            strings.TrimRight(cfg.BaseURL, "/"),
		clientID:           cfg.ClientID,
		clientSecret:       cfg.ClientSecret,
		platformMerchantID: cfg.PlatformMerchantID,
		http: &http.Client{
			Timeout: timeout,
			Transport: otelhttp.NewTransport(resilience.Transport{
				Base:    http.DefaultTransport,
				Breaker: breaker,
			}),
		},
		logger: cfg.Logger,
	}
}

// CreateOrder submits the order body and returns the processor order id.
func (p *PayPal) CreateOrder(ctx context.Context, body OrderBody) (OrderResult, error) {
	var result OrderResult
	if err := p.doJSON(ctx, "create_order", http.MethodPost, "/v2/checkout/orders", body, &result); err != nil {
		return OrderResult{}, err
	}
	return result, nil
}

// CaptureOrder captures an approved order.
func (p *PayPal) CaptureOrder(ctx context.Context, orderID string) (OrderResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return OrderResult{}, common.InvalidInput("order id is required", nil)
	}
	var result OrderResult
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", url.PathEscape(orderID))
	if err := p.doJSON(ctx, "capture_order", http.MethodPost, path, struct{}{}, &result); err != nil {
		return OrderResult{}, err
	}
	return result, nil
}

// RefundCapture refunds a capture, fully when value is empty.
func (p *PayPal) RefundCapture(ctx context.Context, captureID, value, currencyCode string) error {
	captureID = strings.TrimSpace(captureID)
	if captureID == "" {
		return common.InvalidInput("capture id is required", nil)
	}
	payload := map[string]any{}
	if strings.TrimSpace(value) != "" {
		payload["amount"] = MoneyValue{CurrencyCode: currencyCode, Value: value}
	}
	path := fmt.Sprintf("/v2/payments/captures/%s/refund", url.PathEscape(captureID))
	return p.doJSON(ctx, "refund_capture", http.MethodPost, path, payload, nil)
}

// ValidateMerchantID checks that the merchant id exists under the platform's
// partner account.
func (p *PayPal) ValidateMerchantID(ctx context.Context, merchantID string) error {
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return common.InvalidInput("merchant id is required", nil)
	}
	path := fmt.Sprintf("/v1/customer/partners/%s/merchant-integrations/%s",
		url.PathEscape(p.platformMerchantID), url.PathEscape(merchantID))
	status, _, err := p.do(ctx, "validate_merchant", http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return common.InvalidInput("invalid PayPal merchant id provided", nil)
	}
	if status >= http.StatusBadRequest {
		return common.UpstreamFailure("merchant validation failed", fmt.Errorf("paypal status %d", status))
	}
	return nil
}

// CreateSignUpLink creates a partner-referral onboarding link. The store id
// is used as tracking id so onboarding webhooks can be correlated.
func (p *PayPal) CreateSignUpLink(ctx context.Context, returnURL, trackingID string) (string, error) {
	body := map[string]any{
		"tracking_id": trackingID,
		"partner_config_override": map[string]any{
			"return_url": returnURL,
		},
		"operations": []map[string]any{{
			"operation": "API_INTEGRATION",
			"api_integration_preference": map[string]any{
				"rest_api_integration": map[string]any{
					"integration_method": "PAYPAL",
					"integration_type":   "THIRD_PARTY",
					"third_party_details": map[string]any{
						"features": []string{"PAYMENT", "REFUND"},
					},
				},
			},
		}},
		"products":       []string{"EXPRESS_CHECKOUT"},
		"legal_consents": []map[string]any{{"type": "SHARE_DATA_CONSENT", "granted": true}},
	}
	var result struct {
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := p.doJSON(ctx, "signup_link", http.MethodPost, "/v2/customer/partner-referrals", body, &result); err != nil {
		return "", err
	}
	for _, link := range result.Links {
		if link.Rel == "action_url" {
			return link.Href, nil
		}
	}
	return "", common.UpstreamFailure("partner referral response carried no action url", nil)
}

func (p *PayPal) doJSON(ctx context.Context, operation, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", operation, err)
		}
		body = bytes.NewReader(encoded)
	}
	status, data, err := p.do(ctx, operation, method, path, body)
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		p.logger.Error().
			Str("operation", operation).
			Int("status", status).
			Str("body", truncate(string(data), 2000)).
			Msg("paypal request rejected")
		return common.UpstreamFailure("payment processor call failed", fmt.Errorf("paypal %s: status %d", operation, status))
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return common.UpstreamFailure("decode processor response", err)
		}
	}
	return nil
}

func (p *PayPal) do(ctx context.Context, operation, method, path string, body io.Reader) (int, []byte, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := p.http.Do(req)
	p.observe(operation, start, err == nil)
	if err != nil {
		return 0, nil, common.UpstreamFailure("payment processor unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, common.UpstreamFailure("read processor response", err)
	}
	return resp.StatusCode, data, nil
}

func (p *PayPal) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && time.Now().Before(p.tokenExp) {
		return p.token, nil
	}
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.clientID, p.clientSecret)

	start := time.Now()
	resp, err := p.http.Do(req)
	p.observe("token", start, err == nil)
	if err != nil {
		return "", common.UpstreamFailure("payment processor unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", common.UpstreamFailure("token request failed", fmt.Errorf("paypal token: status %d", resp.StatusCode))
	}
	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", common.UpstreamFailure("decode token response", err)
	}
	if payload.AccessToken == "" {
		return "", common.UpstreamFailure("token response carried no access token", nil)
	}
	p.token = payload.AccessToken
	// renew a minute early to avoid using a token that expires mid-request
	p.tokenExp = time.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - time.Minute)
	return p.token, nil
}

func (p *PayPal) observe(operation string, start time.Time, ok bool) {
	result := "success"
	if !ok {
		result = "error"
	}
	if obs.ProcessorRequestTotal != nil {
		obs.ProcessorRequestTotal.WithLabelValues(operation, result).Inc()
	}
	if obs.ProcessorRequestLatency != nil {
		obs.ProcessorRequestLatency.WithLabelValues(operation).Observe(obs.DurationMillis(time.Since(start)))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
