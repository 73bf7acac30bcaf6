// Package client is a Go client for the civicpulse HTTP API. Failed calls
// return *domainerrors.Error carrying the server's code and reason.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	dErrors "civicpulse/pkg/domain-errors"
)

const defaultTimeout = 30 * time.Second

// Client calls one civicpulse deployment on behalf of one citizen.
type Client struct {
	baseURL    string
	token      string
	adminToken string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithAdminToken enables the admin endpoints.
func WithAdminToken(token string) Option {
	return func(cl *Client) { cl.adminToken = token }
}

// New creates a client sending bearerToken on citizen endpoints.
func New(baseURL, bearerToken string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      bearerToken,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Rating struct {
	Score     int       `json:"score"`
	Comment   *string   `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Stats struct {
	Count     int64            `json:"count"`
	Mean      float64          `json:"mean"`
	Histogram map[string]int64 `json:"histogram"`
}

type EnrollmentStatus struct {
	Active      bool       `json:"active"`
	EnrolledAt  *time.Time `json:"enrolled_at,omitempty"`
	Fingerprint string     `json:"fingerprint,omitempty"`
}

// GetMyRating returns nil when the citizen has not rated yet.
func (c *Client) GetMyRating(ctx context.Context) (*Rating, error) {
	var resp struct {
		Rating *Rating `json:"rating"`
	}
	if err := c.do(ctx, http.MethodGet, "/ratings/me", nil, false, &resp); err != nil {
		return nil, err
	}
	return resp.Rating, nil
}

// SubmitRating reports whether a new rating was created rather than updated.
func (c *Client) SubmitRating(ctx context.Context, score int, comment string) (bool, error) {
	body := map[string]any{"score": score, "comment": comment}
	var resp struct {
		Created bool `json:"created"`
	}
	if err := c.do(ctx, http.MethodPut, "/ratings/me", body, false, &resp); err != nil {
		return false, err
	}
	return resp.Created, nil
}

func (c *Client) GetStats(ctx context.Context) (Stats, error) {
	var resp Stats
	err := c.do(ctx, http.MethodGet, "/admin/ratings/stats", nil, true, &resp)
	return resp, err
}

func (c *Client) GetEnrollmentStatus(ctx context.Context) (EnrollmentStatus, error) {
	var resp EnrollmentStatus
	err := c.do(ctx, http.MethodGet, "/enrollment", nil, false, &resp)
	return resp, err
}

// RegisterEnrollment uploads template as base64. It satisfies capture.Registrar.
func (c *Client) RegisterEnrollment(ctx context.Context, template []byte) error {
	body := map[string]string{"template": base64.StdEncoding.EncodeToString(template)}
	return c.do(ctx, http.MethodPost, "/enrollment", body, false, nil)
}

func (c *Client) RevokeEnrollment(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/enrollment", nil, false, nil)
}

func (c *Client) VerifyEnrollment(ctx context.Context, probe []byte) (bool, error) {
	body := map[string]string{"probe": base64.StdEncoding.EncodeToString(probe)}
	var resp struct {
		Matched bool `json:"matched"`
	}
	if err := c.do(ctx, http.MethodPost, "/enrollment/verify", body, false, &resp); err != nil {
		return false, err
	}
	return resp.Matched, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, admin bool, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("X-Admin-Token", c.adminToken)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, method+" "+path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

type errorEnvelope struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Reason      string `json:"reason"`
}

func decodeError(resp *http.Response) error {
	var env errorEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&env); err != nil || env.Error == "" {
		return dErrors.New(dErrors.CodeInternal, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
	msg := env.Description
	if msg == "" {
		msg = env.Error
	}
	return &dErrors.Error{
		Code:    dErrors.Code(env.Error),
		Reason:  dErrors.Reason(env.Reason),
		Message: msg,
	}
}
