// Package bank implements the HTTP client for the third-party banking API.
package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/payrec/internal/domain"
)

// Config holds the banking API connection settings.
type Config struct {
	BaseURL        string
	Token          string
	RequestTimeout time.Duration
	RetryInterval  time.Duration
	MaxRetryTime   time.Duration
}

// Client calls the banking API over HTTP. Transient failures (network
// errors, 5xx, 429) are retried with exponential backoff inside the call;
// 4xx responses are surfaced as ErrBankRejected and never retried here.
type Client struct {
	cfg    Config
	http   *http.Client
	logger zerolog.Logger
}

// NewClient creates a banking API client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 250 * time.Millisecond
	}

	if cfg.MaxRetryTime <= 0 {
		cfg.MaxRetryTime = 30 * time.Second
	}

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger,
	}
}

// GetTransaction fetches the bank's authoritative view of a transaction.
// Returns ErrBankTransactionNotFound when the bank does not know the id;
// the caller decides whether that is read lag or a genuine miss.
func (c *Client) GetTransaction(ctx context.Context, id string) (*domain.BankTransaction, error) {
	var out domain.BankTransaction
	if err := c.do(ctx, http.MethodGet, "/v1/transactions/"+id, "/v1/transactions/{id}", nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// CreateCounterparty registers a beneficiary account and returns the
// bank-side counterparty id.
func (c *Client) CreateCounterparty(ctx context.Context, req domain.CounterpartyRequest) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/counterparties", "/v1/counterparties", req, &out); err != nil {
		return "", err
	}

	return out.ID, nil
}

// CreatePaymentDraft submits a transfer instruction and returns the draft
// id.
func (c *Client) CreatePaymentDraft(ctx context.Context, req domain.PaymentDraftRequest) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/payment-drafts", "/v1/payment-drafts", req, &out); err != nil {
		return "", err
	}

	return out.ID, nil
}

func (c *Client) do(ctx context.Context, method, path, route string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s request: %w", method, path, err)
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryInterval
	policy.MaxElapsedTime = c.cfg.MaxRetryTime

	operation := func() error {
		return c.attempt(ctx, method, path, payload, out)
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn().
			Err(err).
			Str("method", method).
			Str("path", path).
			Dur("wait", wait).
			Msg("bank api call failed, retrying")
	}

	start := time.Now()
	err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	callDuration.WithLabelValues(method, route, outcome).Observe(time.Since(start).Seconds())

	return err
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("building %s %s request: %w", method, path, err))
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding %s %s response: %w", method, path, err))
		}

		return nil

	case resp.StatusCode == http.StatusNotFound:
		return backoff.Permanent(domain.ErrBankTransactionNotFound)

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("bank api %s %s: status %d", method, path, resp.StatusCode)

	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return backoff.Permanent(fmt.Errorf("%w: %s %s status %d: %s",
			domain.ErrBankRejected, method, path, resp.StatusCode, detail))
	}
}
