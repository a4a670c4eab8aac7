package apiclient

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

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/mesikahq/luxe-portal/internal/metrics"
)

const maxErrorBody = 64 << 10

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries uint
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	// InitialBackoff is the first retry delay. Zero means 200ms.
	InitialBackoff time.Duration
}

// Client is the request abstraction in front of the remote patient API.
// Every call is bound to a context; cancelling it aborts the request and any
// pending retry.
type Client struct {
	baseURL        *url.URL
	http           *http.Client
	maxRetries     uint
	initialBackoff time.Duration
	metrics        *metrics.Metrics
	logger         *zap.Logger
}

func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid api base url %q: scheme must be http or https", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = 200 * time.Millisecond
	}

	return &Client{
		baseURL:        base,
		http:           httpClient,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: initial,
		metrics:        cfg.Metrics,
		logger:         logger,
	}, nil
}

type tokenKey struct{}

// WithToken attaches the session's API token to outgoing requests made with ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Get fetches path into out. Transport failures and 5xx responses are
// retried with exponential backoff up to MaxRetries extra attempts.
func (c *Client) Get(ctx context.Context, op, path string, out interface{}) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxInterval = 2 * time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.do(ctx, op, http.MethodGet, path, nil, out)
		if err != nil && !retryable(ctx, err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxRetries+1),
	)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Unwrap()
	}
	return err
}

func (c *Client) Post(ctx context.Context, op, path string, in, out interface{}) error {
	return c.do(ctx, op, http.MethodPost, path, in, out)
}

func (c *Client) Put(ctx context.Context, op, path string, in, out interface{}) error {
	return c.do(ctx, op, http.MethodPut, path, in, out)
}

func (c *Client) Delete(ctx context.Context, op, path string) error {
	return c.do(ctx, op, http.MethodDelete, path, nil, nil)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}
	var decodeErr *DecodeError
	return !errors.As(err, &decodeErr)
}

// endpoint joins path onto the base URL. path must already be escaped.
func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := tokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(op, 0, time.Since(start))
		c.logger.Warn("API request failed",
			zap.String("op", op),
			zap.String("method", method),
			zap.Error(err),
		)
		return fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()

	c.metrics.ObserveUpstream(op, res.StatusCode, time.Since(start))
	c.logger.Debug("API request completed",
		zap.String("op", op),
		zap.String("method", method),
		zap.Int("status", res.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return &APIError{Op: op, Status: res.StatusCode, Message: errorMessage(raw, res.StatusCode)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

// errorMessage pulls a human readable message out of an error body.
func errorMessage(raw []byte, status int) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return http.StatusText(status)
}
