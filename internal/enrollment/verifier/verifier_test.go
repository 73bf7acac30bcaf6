package verifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicpulse/pkg/platform/circuit"
)

func TestVerifyMatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req matchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(matchResponse{Matched: string(req.Template) == string(req.Probe)})
	}))
	defer server.Close()

	v := NewHTTPVerifier(server.URL, server.Client())

	matched, err := v.Verify(context.Background(), []byte("face"), []byte("face"))
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = v.Verify(context.Background(), []byte("face"), []byte("other"))
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestVerifyNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewHTTPVerifier(server.URL, server.Client()).Verify(context.Background(), []byte("a"), []byte("b"))
	assert.ErrorContains(t, err, "502")
}

func TestVerifyUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewHTTPVerifier(url, nil).Verify(context.Background(), []byte("a"), []byte("b"))
	assert.Error(t, err)
}

func TestVerifyBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	breaker := circuit.New(circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	v := NewHTTPVerifier(server.URL, server.Client(), WithBreaker(breaker))

	for range 2 {
		_, err := v.Verify(context.Background(), []byte("a"), []byte("b"))
		assert.ErrorContains(t, err, "503")
	}
	_, err := v.Verify(context.Background(), []byte("a"), []byte("b"))
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestVerifyBreakerIgnoresClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	breaker := circuit.New(circuit.WithFailureThreshold(1))
	v := NewHTTPVerifier(server.URL, server.Client(), WithBreaker(breaker))

	_, err := v.Verify(context.Background(), []byte("a"), []byte("b"))
	assert.Error(t, err)
	assert.False(t, breaker.IsOpen())
}

func TestVerifyBreakerIgnoresAbandonedCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(200 * time.Millisecond):
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(matchResponse{Matched: true})
	}))
	defer server.Close()

	breaker := circuit.New(circuit.WithFailureThreshold(3), circuit.WithCooldown(time.Hour))
	v := NewHTTPVerifier(server.URL, server.Client(), WithBreaker(breaker))

	for range 3 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := v.Verify(ctx, []byte("a"), []byte("a"))
		cancel()
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	assert.False(t, breaker.IsOpen())

	matched, err := v.Verify(context.Background(), []byte("a"), []byte("a"))
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestVerifyHalfOpenAdmitsOneTrial(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		<-release
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(matchResponse{Matched: true})
	}))
	defer server.Close()

	breaker := circuit.New(circuit.WithFailureThreshold(1), circuit.WithCooldown(time.Millisecond))
	v := NewHTTPVerifier(server.URL, server.Client(), WithBreaker(breaker))

	_, err := v.Verify(context.Background(), []byte("a"), []byte("b"))
	require.ErrorContains(t, err, "503")
	require.True(t, breaker.IsOpen())
	time.Sleep(5 * time.Millisecond)

	trial := make(chan error, 1)
	go func() {
		_, err := v.Verify(context.Background(), []byte("a"), []byte("a"))
		trial <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)

	_, err = v.Verify(context.Background(), []byte("a"), []byte("a"))
	assert.ErrorIs(t, err, ErrCircuitOpen)

	close(release)
	require.NoError(t, <-trial)
	assert.False(t, breaker.IsOpen())
	assert.Equal(t, int32(2), calls.Load())
}
