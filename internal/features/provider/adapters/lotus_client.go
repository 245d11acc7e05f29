package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lotus-reconciler/internal/core/config"
	"lotus-reconciler/internal/core/httpclient"
	"lotus-reconciler/internal/core/logger"
	"lotus-reconciler/internal/features/provider/domain"

	"go.uber.org/zap"
)

const (
	apiKeyHeader = "X-API-Key"
	apiKeyParam  = "apikey"

	// maxAttempts is the total request budget for transient failures.
	maxAttempts = 3
	// maxRedirects caps how many distinct redirect targets one call follows.
	maxRedirects = 5
)

// backoffDelays holds the wait before each retry; the last value is reused
// if attempts exceed the table.
var backoffDelays = []time.Duration{500 * time.Millisecond, 1 * time.Second, 2 * time.Second}

// LotusClient implements the ports.Client interface against the Lotus
// supplier API. Authentication uses the X-API-Key header, with a one-shot
// query-string fallback for intermediaries that strip the header.
type LotusClient struct {
	// client is the HTTP client used for API requests. Redirects are not
	// followed automatically; a 3xx signals a misconfigured base URL.
	client *http.Client
	// baseURL is the provider root, without the /api suffix.
	baseURL string
	// apiKey authenticates every call.
	apiKey string
	logger *zap.Logger

	// backoff is overridable in tests.
	backoff []time.Duration
}

// NewLotusClient creates a new LotusClient. It fails fast when the base URL
// or API key is missing.
func NewLotusClient(cfg config.ProviderConfig) (*LotusClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrMissingBaseURL
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	return &LotusClient{
		client:  httpclient.NewAPIClient(cfg.Timeout(), cfg.ConnectTimeout()),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger.Get(),
		backoff: backoffDelays,
	}, nil
}

// GetUser fetches account and credit information.
func (c *LotusClient) GetUser(ctx context.Context) (*domain.Account, error) {
	data, err := c.call(ctx, http.MethodGet, "/api/user", nil)
	if err != nil {
		return nil, err
	}

	var account domain.Account
	if err := decodeData(data, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetProducts fetches the product catalog.
func (c *LotusClient) GetProducts(ctx context.Context) ([]domain.Product, error) {
	data, err := c.call(ctx, http.MethodGet, "/api/products", nil)
	if err != nil {
		return nil, err
	}

	var products []domain.Product
	if err := decodeData(data, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// createOrderRequest is the POST /api/orders body.
type createOrderRequest struct {
	ProductID int64  `json:"product_id"`
	Note      string `json:"note,omitempty"`
}

// CreateOrder places an order upstream and returns the provider's receipt.
func (c *LotusClient) CreateOrder(ctx context.Context, productID int64, note string) (*domain.Order, error) {
	payload := createOrderRequest{ProductID: productID, Note: note}

	data, err := c.call(ctx, http.MethodPost, "/api/orders", payload)
	if err != nil {
		return nil, err
	}

	var order domain.Order
	if err := decodeData(data, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders fetches all orders the provider knows for this account.
func (c *LotusClient) ListOrders(ctx context.Context) ([]domain.Order, error) {
	data, err := c.call(ctx, http.MethodGet, "/api/orders", nil)
	if err != nil {
		return nil, err
	}

	var orders []domain.Order
	if err := decodeData(data, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder fetches the current state of a single provider order.
func (c *LotusClient) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	data, err := c.call(ctx, http.MethodGet, fmt.Sprintf("/api/orders/%d", orderID), nil)
	if err != nil {
		return nil, err
	}

	order := domain.Order{OrderID: orderID}
	if err := decodeData(data, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// envelope is the uniform provider response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// call performs one logical API call with the retry budget. Redirect follows
// and the auth fallback happen inside a single attempt and do not consume
// retries; only transient failures (network errors, 5xx, 429) do.
func (c *LotusClient) call(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.wait(ctx, c.backoffDelay(attempt)); err != nil {
				return nil, err
			}
		}

		data, retryable, err := c.attempt(ctx, method, path, body)
		if err == nil {
			return data, nil
		}
		if !retryable {
			return nil, err
		}

		lastErr = err
		c.logger.Warn("Provider call failed, will retry",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err),
		)
	}

	return nil, fmt.Errorf("provider call failed after %d attempts: %w", maxAttempts, lastErr)
}

// attempt executes one attempt of a call, handling redirects and the
// query-auth fallback internally. The second return value reports whether the
// failure is transient and worth another attempt.
func (c *LotusClient) attempt(ctx context.Context, method, path string, body []byte) (json.RawMessage, bool, error) {
	origin := c.baseURL + path
	target := origin
	useQueryAuth := false
	fallbackUsed := false

	visited := map[string]bool{normalizeTarget(origin): true}

	for {
		req, err := c.newRequest(ctx, method, target, body, useQueryAuth)
		if err != nil {
			return nil, false, err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, true, fmt.Errorf("request to provider failed: %w", err)
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, true, fmt.Errorf("failed to read provider response: %w", err)
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			next, err := c.redirectTarget(target, resp, visited)
			if err != nil {
				return nil, false, err
			}
			// Re-issue against the corrected path; not a retry attempt.
			target = next
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, true, fmt.Errorf("provider returned status %d", resp.StatusCode)
		}

		env, ok := decodeEnvelope(raw)
		if !ok {
			if !fallbackUsed && suspectedAuthRejection(resp) {
				// An intermediary likely swallowed the header. Retry the
				// exact same call once with query-string auth.
				c.logger.Warn("Provider response not JSON, retrying with query-string auth",
					zap.String("url", target),
					zap.Int("status", resp.StatusCode),
					zap.String("content_type", resp.Header.Get("Content-Type")),
				)
				fallbackUsed = true
				useQueryAuth = true
				target = origin
				continue
			}
			return nil, false, fmt.Errorf("%w (status %d)", ErrMalformedResponse, resp.StatusCode)
		}

		if !env.Success {
			msg := env.Message
			if msg == "" {
				msg = fmt.Sprintf("request failed with status %d", resp.StatusCode)
			}
			return nil, false, &UpstreamError{Message: msg, StatusCode: resp.StatusCode}
		}

		return env.Data, false, nil
	}
}

// newRequest builds an authenticated request. Header auth is the default;
// query auth is the fallback mode.
func (c *LotusClient) newRequest(ctx context.Context, method, target string, body []byte, useQueryAuth bool) (*http.Request, error) {
	if useQueryAuth {
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("invalid request URL %q: %w", target, err)
		}
		q := u.Query()
		q.Set(apiKeyParam, c.apiKey)
		u.RawQuery = q.Encode()
		target = u.String()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !useQueryAuth {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	return req, nil
}

// redirectTarget resolves the Location of a 3xx response and guards against
// loops. A redirect from the provider means the configured base URL is wrong
// (trailing /api, http vs https), so the error messages carry that hint.
func (c *LotusClient) redirectTarget(current string, resp *http.Response, visited map[string]bool) (string, error) {
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", fmt.Errorf("provider returned status %d without a Location header; check PROVIDER_BASE_URL", resp.StatusCode)
	}

	base, err := url.Parse(current)
	if err != nil {
		return "", fmt.Errorf("invalid request URL %q: %w", current, err)
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("provider sent an invalid redirect target %q: %w", loc, err)
	}

	next := base.ResolveReference(ref).String()
	norm := normalizeTarget(next)

	if visited[norm] {
		return "", fmt.Errorf("%w at %s; check PROVIDER_BASE_URL for a trailing /api or scheme mismatch", ErrRedirectLoop, norm)
	}
	if len(visited) > maxRedirects {
		return "", fmt.Errorf("too many redirects from provider (last target %s); check PROVIDER_BASE_URL", norm)
	}
	visited[norm] = true

	c.logger.Warn("Provider redirected, re-issuing against new target",
		zap.Int("status", resp.StatusCode),
		zap.String("from", current),
		zap.String("to", next),
	)

	return next, nil
}

// wait sleeps for the backoff delay, returning early if ctx is cancelled.
func (c *LotusClient) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoffDelay returns the delay before the given attempt (attempt >= 2).
// The last table value is reused when attempts exceed the table.
func (c *LotusClient) backoffDelay(attempt int) time.Duration {
	idx := attempt - 2
	if idx >= len(c.backoff) {
		idx = len(c.backoff) - 1
	}
	return c.backoff[idx]
}

// decodeEnvelope parses the body as the provider envelope. ok is false when
// the body is not a JSON object.
func decodeEnvelope(raw []byte) (envelope, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return envelope{}, false
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return envelope{}, false
	}
	return env, true
}

// suspectedAuthRejection reports whether a non-JSON response looks like a
// silently rejected header auth (intermediary login page or bare 401/403).
func suspectedAuthRejection(resp *http.Response) bool {
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return true
	}
	return strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html")
}

// decodeData unmarshals the envelope data payload into v. Absent or null
// data leaves v at its zero value; documented field defaults apply there.
func decodeData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// normalizeTarget canonicalizes a URL for redirect-loop comparison:
// lowercased scheme and host, no trailing slash, no fragment.
func normalizeTarget(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	u.Fragment = ""
	return u.String()
}
