// Package verifier calls the external biometric matcher over HTTP.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"civicpulse/pkg/platform/circuit"
)

// ErrCircuitOpen is returned without calling the matcher while it is considered down.
var ErrCircuitOpen = errors.New("matcher circuit open")

// DefaultTimeout bounds a single verification round trip.
const DefaultTimeout = 10 * time.Second

type matchRequest struct {
	Template []byte `json:"template"`
	Probe    []byte `json:"probe"`
}

type matchResponse struct {
	Matched bool `json:"matched"`
}

// HTTPVerifier POSTs {"template", "probe"} (base64 JSON bytes) to a matcher
// endpoint and reads back {"matched"}.
type HTTPVerifier struct {
	url     string
	client  *http.Client
	breaker *circuit.Breaker
}

type Option func(*HTTPVerifier)

// WithBreaker short-circuits calls after repeated transport or 5xx failures.
// Calls whose context ends first are not counted.
func WithBreaker(b *circuit.Breaker) Option {
	return func(v *HTTPVerifier) { v.breaker = b }
}

// NewHTTPVerifier creates a verifier for url. A nil client gets one with
// DefaultTimeout.
func NewHTTPVerifier(url string, client *http.Client, opts ...Option) *HTTPVerifier {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	v := &HTTPVerifier{url: url, client: client}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify reports whether probe matches template.
func (v *HTTPVerifier) Verify(ctx context.Context, template, probe []byte) (bool, error) {
	if v.breaker == nil {
		return v.verify(ctx, template, probe)
	}
	if !v.breaker.Allow() {
		return false, ErrCircuitOpen
	}
	matched, err := v.verify(ctx, template, probe)
	if err != nil && ctx.Err() != nil {
		// Abandoned by the caller, not a matcher verdict.
		v.breaker.Abandon()
		return false, err
	}
	var rejected *statusError
	if err != nil && !(errors.As(err, &rejected) && rejected.code < http.StatusInternalServerError) {
		v.breaker.RecordFailure()
		return false, err
	}
	v.breaker.RecordSuccess()
	return matched, err
}

type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string { return "matcher returned " + e.status }

func (v *HTTPVerifier) verify(ctx context.Context, template, probe []byte) (bool, error) {
	body, err := json.Marshal(matchRequest{Template: template, Probe: probe})
	if err != nil {
		return false, fmt.Errorf("encode match request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build match request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("match request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, &statusError{code: resp.StatusCode, status: resp.Status}
	}

	var result matchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decode match response: %w", err)
	}
	return result.Matched, nil
}
