package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/packfinderz-pos/pkg/errors"
	"github.com/angelmondragon/packfinderz-pos/pkg/types"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTimeout      = 30 * time.Second
	maxResponseBytes    = 32 << 20
	headerIdempotency   = "Idempotency-Key"
	headerTerminalID    = "X-Terminal-Id"
	ordersPath          = "/api/v1/orders"
	healthPath          = "/health/live"
	scopedPathTemplate  = "/api/v1/stores/%s/branches/%s/%s"
	maxErrorMessageSize = 256
)

// Doer is the subset of *http.Client the gateway needs.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Options configures the remote gateway client.
type Options struct {
	BaseURL    string
	Token      string
	TerminalID string
	Timeout    time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default transport.
func WithHTTPClient(doer Doer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithClock overrides the clock used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Client talks to the authoritative order and catalog API.
type Client struct {
	baseURL    *url.URL
	token      string
	terminalID string
	timeout    time.Duration
	http       Doer
	now        func() time.Time
}

func New(opts Options, options ...Option) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("gateway base url is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse gateway base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gateway base url %q must be absolute", opts.BaseURL)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL:    base,
		token:      strings.TrimSpace(opts.Token),
		terminalID: opts.TerminalID,
		timeout:    timeout,
		http:       &http.Client{},
		now:        time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// CreateOrder submits a sale. The server dedupes on idempotencyKey, so resubmitting
// the same key returns the original order.
func (c *Client) CreateOrder(ctx context.Context, payload json.RawMessage, idempotencyKey string) (*OrderRecord, error) {
	if strings.TrimSpace(idempotencyKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}
	if len(payload) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order payload is required")
	}
	var out OrderRecord
	headers := map[string]string{headerIdempotency: idempotencyKey}
	if err := c.do(ctx, http.MethodPost, ordersPath, payload, headers, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListProducts(ctx context.Context, scope Scope) ([]Product, error) {
	var out []Product
	if err := c.getScoped(ctx, scope, "products", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListCategories(ctx context.Context, scope Scope) ([]string, error) {
	var out []string
	if err := c.getScoped(ctx, scope, "categories", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListCustomers(ctx context.Context, scope Scope) ([]Customer, error) {
	var out []Customer
	if err := c.getScoped(ctx, scope, "customers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping checks the server answers its liveness probe. It does not require a valid token.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, healthPath, nil, nil, false, nil)
}

func (c *Client) getScoped(ctx context.Context, scope Scope, resource string, out any) error {
	if scope.StoreID == "" || scope.BranchID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "store and branch are required")
	}
	p := fmt.Sprintf(scopedPathTemplate, url.PathEscape(scope.StoreID), url.PathEscape(scope.BranchID), resource)
	return c.do(ctx, http.MethodGet, p, nil, nil, true, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, headers map[string]string, authenticated bool, out any) error {
	if authenticated {
		if err := c.checkToken(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.terminalID != "" {
		req.Header.Set(headerTerminalID, c.terminalID)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, fmt.Sprintf("%s %s", method, path))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "decode response envelope")
	}
	if len(envelope.Data) == 0 {
		return pkgerrors.New(pkgerrors.CodeNetwork, "response missing data")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "decode response data")
	}
	return nil
}

// checkToken fails fast on a JWT whose exp has passed. Opaque tokens are sent as-is.
func (c *Client) checkToken() error {
	if c.token == "" {
		return nil
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.token, claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && !c.now().Before(claims.ExpiresAt.Time) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "gateway token expired").
			WithDetails(map[string]any{"expired_at": claims.ExpiresAt.Time})
	}
	return nil
}

func statusError(status int, raw []byte) error {
	code := pkgerrors.FromHTTPStatus(status)
	message := http.StatusText(status)

	details := map[string]any{"status": status}
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		details["remote_code"] = envelope.Error.Code
		if envelope.Error.Message != "" {
			message = envelope.Error.Message
		}
	}
	if len(message) > maxErrorMessageSize {
		message = message[:maxErrorMessageSize]
	}
	return pkgerrors.New(code, fmt.Sprintf("remote status %d: %s", status, message)).WithDetails(details)
}
