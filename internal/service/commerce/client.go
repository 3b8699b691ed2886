// Package commerce is a minimal client of the Shopify Admin REST API.
// Only calls needed to mint one-time discount codes are implemented.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nkiryanov/gizmocoin/internal/apperrors"
	"github.com/nkiryanov/gizmocoin/internal/logger"
)

const (
	DefaultAPIVersion = "2024-04"
	DefaultTimeout    = 5 * time.Second

	tokenHeader = "X-Shopify-Access-Token"

	// Response bodies are small JSON documents, anything bigger is not expected
	maxResponseSize = 1 << 20

	// How much of error body is kept in Error
	maxErrorBody = 512
)

// Error is returned for every failed call: transport failure, timeout or unexpected status
// It matches apperrors.ErrExternalService with errors.Is
type Error struct {
	Op         string
	StatusCode int // zero if response was not received
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("commerce %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("commerce %s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == apperrors.ErrExternalService
}

// CodeTaken reports the platform rejected discount code as already existing
func (e *Error) CodeTaken() bool {
	return e.StatusCode == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(e.Body), "unique")
}

type Config struct {
	// Shop domain, e.g. gizmo.myshopify.com
	Store string

	// Admin API access token. Never written to logs or errors
	Token string

	// API version. Default is used if empty
	APIVersion string

	// Overrides https://{store}/admin/api/{version}, used in tests
	BaseURL string

	// Per call timeout. Default is used if zero
	Timeout time.Duration

	// Default http client is used if nil
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	token   string
	timeout time.Duration

	client *http.Client
	logger logger.Logger
}

func NewClient(cfg Config, l logger.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("commerce access token must not be empty")
	}

	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		if cfg.Store == "" {
			return nil, errors.New("commerce store or base url must be set")
		}
		baseURL = "https://" + cfg.Store + "/admin/api/" + cfg.APIVersion
	}

	return &Client{
		baseURL: baseURL,
		token:   cfg.Token,
		timeout: cfg.Timeout,
		client:  cfg.HTTPClient,
		logger:  l,
	}, nil
}

func (c *Client) CreatePriceRule(ctx context.Context, rule PriceRule) (PriceRule, error) {
	var out priceRuleEnvelope

	err := c.do(ctx, "create price rule", http.MethodPost, "/price_rules.json", priceRuleEnvelope{PriceRule: rule}, &out)
	if err != nil {
		return PriceRule{}, err
	}

	c.logger.Debug("Price rule created", "price_rule_id", out.PriceRule.ID, "title", out.PriceRule.Title)
	return out.PriceRule, nil
}

func (c *Client) CreateDiscountCode(ctx context.Context, priceRuleID int64, code string) (DiscountCode, error) {
	var out discountCodeEnvelope
	path := fmt.Sprintf("/price_rules/%d/discount_codes.json", priceRuleID)

	err := c.do(ctx, "create discount code", http.MethodPost, path, discountCodeEnvelope{DiscountCode: DiscountCode{Code: code}}, &out)
	if err != nil {
		return DiscountCode{}, err
	}

	c.logger.Debug("Discount code created", "price_rule_id", priceRuleID, "discount_code_id", out.DiscountCode.ID)
	return out.DiscountCode, nil
}

func (c *Client) do(ctx context.Context, op string, method string, path string, in any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(in)
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set(tokenHeader, c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("Commerce request failed", "op", op, "duration", time.Since(started), "error", err)
		return &Error{Op: op, Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close() // nolint:errcheck

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	default:
		c.logger.Warn("Commerce request rejected", "op", op, "status_code", resp.StatusCode, "duration", time.Since(started))
		return &Error{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(payload), maxErrorBody)}
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return &Error{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
