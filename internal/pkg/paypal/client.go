package paypal

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
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
)

const (
	SandboxBaseURL = "https://api-m.sandbox.paypal.com"
	LiveBaseURL    = "https://api-m.paypal.com"

	defaultTimeout = 15 * time.Second
	// tokens are refreshed this long before PayPal expires them
	tokenSkew = 60 * time.Second
)

// Config holds PayPal REST credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	Live         bool
	BaseURL      string // overrides Live when set
	ReturnURL    string
	CancelURL    string
	HTTPClient   *http.Client
}

// Client talks to the PayPal REST API.
type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	now        func() time.Time
	newBackOff func() backoff.BackOff
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = SandboxBaseURL
		if cfg.Live {
			baseURL = LiveBaseURL
		}
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		now:     time.Now,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxElapsedTime = 10 * time.Second
			return backoff.WithMaxRetries(b, 3)
		},
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

// APIError is a non 2xx PayPal response.
type APIError struct {
	Status  int           `json:"-"`
	Name    string        `json:"name"`
	Message string        `json:"message"`
	DebugID string        `json:"debug_id"`
	Details []ErrorDetail `json:"details"`
}

// ErrorDetail names one problem PayPal found with a request.
type ErrorDetail struct {
	Issue       string `json:"issue"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal: status=%d name=%s message=%s debug_id=%s", e.Status, e.Name, e.Message, e.DebugID)
}

// HasIssue reports whether PayPal listed issue among the error details.
func (e *APIError) HasIssue(issue string) bool {
	for _, d := range e.Details {
		if d.Issue == issue {
			return true
		}
	}
	return false
}

// IsAlreadyCaptured reports whether err says the order was captured by an
// earlier request.
func IsAlreadyCaptured(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.HasIssue("ORDER_ALREADY_CAPTURED")
}

// Retryable reports whether the request may succeed on retry.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, nil
	}

	var out tokenResponse
	op := func() error {
		form := url.Values{"grant_type": {"client_credentials"}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		return c.do(req, &out)
	}
	if err := backoff.Retry(op, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		return "", fmt.Errorf("paypal token: %w", err)
	}

	c.token = out.AccessToken
	c.expiresAt = c.now().Add(time.Duration(out.ExpiresIn)*time.Second - tokenSkew)
	return c.token, nil
}

// call sends an authenticated JSON request. requestID makes POSTs idempotent
// on PayPal's side so retries never duplicate money movement.
func (c *Client) call(ctx context.Context, method, path, requestID string, body, out interface{}) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	op := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if requestID != "" {
			req.Header.Set("PayPal-Request-Id", requestID)
		}
		return c.do(req, out)
	}
	return backoff.Retry(op, backoff.WithContext(c.newBackOff(), ctx))
}

// do executes req, classifying failures as retryable or permanent for backoff.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		if apiErr.Retryable() {
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return backoff.Permanent(fmt.Errorf("paypal: decode response: %w", err))
	}
	return nil
}

func formatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
