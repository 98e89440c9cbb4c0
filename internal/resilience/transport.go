package resilience

import (
	"net/http"
)

// Transport is an http.RoundTripper guarded by a circuit breaker. Requests
// are refused with ErrOpenCircuit while the breaker is open. Failed requests
// are never retried; callers decide what to do with the error.
type Transport struct {
	Base    http.RoundTripper
	Breaker *Breaker
}

// RoundTrip implements http.RoundTripper. Transport errors and 5xx responses
// count as failures against the breaker.
func (t Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Breaker == nil {
		return base.RoundTrip(req)
	}

	ctx := req.Context()
	if !t.Breaker.Allow(ctx) {
		return nil, ErrOpenCircuit
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		t.Breaker.Report(ctx, false)
		return nil, err
	}
	t.Breaker.Report(ctx, resp.StatusCode < http.StatusInternalServerError)
	return resp, nil
}
