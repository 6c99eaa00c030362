package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	engineerrors "github.com/trhieu92/hyperliquid-risk-bot/internal/errors"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/logger"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/safety"
)

// Config holds the venue client configuration.
type Config struct {
	BaseURL        string        `json:"base_url"`
	Address        string        `json:"address"`
	PrivateKey     string        `json:"-"` // hex, loaded from env only
	RequestTimeout time.Duration `json:"request_timeout"`
	MaxRetries     int           `json:"max_retries"`
	RetryDelay     time.Duration `json:"retry_delay"`
}

// ApplyDefaults fills zero-valued fields with named defaults.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.hyperliquid.xyz"
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = time.Second
	}
}

// Client talks to the venue: unauthenticated info queries and signed order
// submission. It keeps a running error/request count for the circuit
// breaker's API-error-rate check.
type Client struct {
	cfg     Config
	http    *http.Client
	signer  *Signer
	log     *logger.Logger
	limiter *safety.RateLimiter

	// Nonces must be monotonically increasing per signing key.
	nonceMu   sync.Mutex
	lastNonce int64

	apiErrors   atomic.Int64
	apiRequests atomic.Int64
}

// NewClient creates a venue client. The signer is optional: a read-only
// client (no private key) can still serve info queries.
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()

	var signer *Signer
	if cfg.PrivateKey != "" {
		var err error
		signer, err = NewSigner(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		if cfg.Address == "" {
			cfg.Address = signer.Address()
		} else if cfg.Address != signer.Address() {
			return nil, fmt.Errorf("configured address %s does not match signing key address %s", cfg.Address, signer.Address())
		}
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		signer:  signer,
		log:     log,
		limiter: safety.NewRateLimiter("venue", 20, 10),
	}, nil
}

// Address returns the account address the client reads and trades for.
func (c *Client) Address() string {
	return c.cfg.Address
}

// APICounters returns the running error and request counts.
func (c *Client) APICounters() (int, int) {
	return int(c.apiErrors.Load()), int(c.apiRequests.Load())
}

// nextNonce returns a strictly increasing millisecond nonce.
func (c *Client) nextNonce() int64 {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()

	nonce := time.Now().UnixMilli()
	if nonce <= c.lastNonce {
		nonce = c.lastNonce + 1
	}
	c.lastNonce = nonce
	return nonce
}

// post sends one JSON request and decodes the response, counting the call
// toward the API error rate.
func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait aborted: %w", err)
	}

	c.apiRequests.Add(1)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		c.apiErrors.Add(1)
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.apiErrors.Add(1)
		return fmt.Errorf("venue request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.apiErrors.Add(1)
		return fmt.Errorf("failed to read venue response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.apiErrors.Add(1)
		return fmt.Errorf("venue returned status %d: %s", resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			c.apiErrors.Add(1)
			return fmt.Errorf("failed to decode venue response: %w", err)
		}
	}

	return nil
}

// postWithRetry retries a query a bounded number of times with linear
// backoff: the delay scales with the attempt number. Errors categorized as
// non-retryable (credentials, validation) fail immediately.
func (c *Client) postWithRetry(ctx context.Context, path string, payload, out interface{}) error {
	var lastErr *engineerrors.EngineError

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		err := c.post(ctx, path, payload, out)
		if err == nil {
			return nil
		}

		lastErr = engineerrors.Categorize(err, "venue", path)
		if !lastErr.IsRetryable() || attempt == c.cfg.MaxRetries {
			break
		}

		delay := c.cfg.RetryDelay * time.Duration(attempt)
		c.log.Warning("Venue request %s failed (attempt %d/%d), retrying in %s: %v", path, attempt, c.cfg.MaxRetries, delay, lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// ClearinghouseState fetches the authoritative account snapshot: open
// positions, margin summary, withdrawable balance.
func (c *Client) ClearinghouseState(ctx context.Context) (*ClearinghouseState, error) {
	var state ClearinghouseState
	err := c.postWithRetry(ctx, "/info", infoRequest{Type: "clearinghouseState", User: c.cfg.Address}, &state)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// OpenOrders fetches the account's resting orders.
func (c *Client) OpenOrders(ctx context.Context) ([]OpenOrder, error) {
	var orders []OpenOrder
	err := c.postWithRetry(ctx, "/info", infoRequest{Type: "openOrders", User: c.cfg.Address}, &orders)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// AllMids fetches the venue's current mid price per asset.
func (c *Client) AllMids(ctx context.Context) (map[string]float64, error) {
	var raw map[string]string
	if err := c.postWithRetry(ctx, "/info", infoRequest{Type: "allMids"}, &raw); err != nil {
		return nil, err
	}

	mids := make(map[string]float64, len(raw))
	for coin, px := range raw {
		var v float64
		if _, err := fmt.Sscanf(px, "%f", &v); err == nil {
			mids[coin] = v
		}
	}
	return mids, nil
}

// SubmitOrder signs and submits a single order action. Submission is not
// retried: a send whose outcome is unknown must be resolved by fill
// polling and reconciliation, not by re-sending.
func (c *Client) SubmitOrder(ctx context.Context, order OrderAction) error {
	if c.signer == nil {
		return fmt.Errorf("client has no signing key, order submission disabled")
	}

	action := orderActionPayload{
		Type:     "order",
		Orders:   []wireOrder{order.wire()},
		Grouping: "na",
	}

	nonce := c.nextNonce()
	sig, err := c.signer.SignAction(action, nonce)
	if err != nil {
		return engineerrors.NewSigningError("venue", "order sign", err)
	}

	var resp exchangeResponse
	if err := c.post(ctx, "/exchange", exchangeRequest{Action: action, Nonce: nonce, Signature: sig}, &resp); err != nil {
		return err
	}

	if resp.Status != "ok" {
		reason := resp.Error
		if reason == "" {
			reason = resp.Status
		}
		return fmt.Errorf("venue rejected order: %s", reason)
	}

	return nil
}
