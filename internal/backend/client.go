// Package backend is the REST client for the hospital backend that owns
// persistence and business rules for orders and stock movements.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/circuitbreaker"
	apperrors "github.com/flaviopcampos/DATACLINICA-sub004/pkg/errors"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/httputil"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/logger"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/metrics"
)

const maxResponseSize = 32 << 20

type Config struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIToken string        `mapstructure:"api_token"`
	Timeout  time.Duration `mapstructure:"timeout"`

	MaxAttempts    int           `mapstructure:"max_attempts"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`

	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

func (c *Config) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = 200 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 5 * time.Second
	}
}

// Client performs requests with a per-request timeout, retries idempotent
// reads with exponential backoff and guards the backend with a circuit
// breaker.
type Client struct {
	cfg     Config
	base    *url.URL
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewClient(cfg Config, m *metrics.Metrics, log *logger.Logger) (*Client, error) {
	cfg.setDefaults()
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", cfg.BaseURL)
	}
	return &Client{
		cfg:  cfg,
		base: base,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "backend",
			MaxFailures: cfg.BreakerFailures,
			Timeout:     cfg.BreakerTimeout,
		}),
		metrics: m,
		log:     log,
	}, nil
}

// BreakerState reports the circuit breaker state for health checks.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

type request struct {
	method   string
	path     string
	resource string
	ifMatch  *int64
	body     interface{}
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// do sends req and decodes a 2xx body into out. Non-2xx responses become
// typed application errors.
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	var payload []byte
	if req.body != nil {
		var err error
		if payload, err = json.Marshal(req.body); err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	resp, err := c.executeWithRetry(ctx, req, payload)
	if err != nil {
		return err
	}
	if resp.status >= 300 {
		return c.statusError(req, resp)
	}
	if out == nil || len(resp.body) == 0 {
		return nil
	}
	if err := decodeBody(resp.body, out); err != nil {
		return apperrors.Internal(fmt.Errorf("failed to decode %s response: %w", req.resource, err))
	}
	return nil
}

func (c *Client) executeWithRetry(ctx context.Context, req request, payload []byte) (*response, error) {
	attempts := 1
	if isIdempotentMethod(req.method) {
		attempts = c.cfg.MaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			c.log.Debug("retrying backend request",
				"method", req.method, "path", req.path, "attempt", attempt+1, "delay", delay.String())
			select {
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.Canceled) {
					return nil, ctx.Err()
				}
				return nil, apperrors.Timeout(lastErr)
			case <-time.After(delay):
			}
		}

		resp, err := c.executeOnce(ctx, req, payload)
		if err != nil {
			lastErr = err
			var appErr *apperrors.AppError
			if !errors.As(err, &appErr) || !appErr.Retryable() || errors.Is(err, circuitbreaker.ErrOpen) {
				return nil, err
			}
			continue
		}
		if isRetryableStatus(resp.status) && attempt < attempts-1 {
			lastErr = c.statusError(req, resp)
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

func (c *Client) executeOnce(ctx context.Context, req request, payload []byte) (*response, error) {
	if err := c.breaker.Allow(); err != nil {
		c.observe(req, "breaker_open", 0)
		return nil, apperrors.Unavailable(err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(reqCtx, req.method, c.base.String()+req.path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}
	if req.ifMatch != nil {
		httpReq.Header.Set("If-Match", strconv.Quote(strconv.FormatInt(*req.ifMatch, 10)))
	}
	if id := httputil.RequestIDFromContext(ctx); id != "" {
		httpReq.Header.Set(httputil.RequestIDHeader, id)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.Canceled):
			// The caller went away; this says nothing about backend health.
			c.observe(req, "canceled", elapsed)
			return nil, ctx.Err()
		case errors.Is(reqCtx.Err(), context.DeadlineExceeded):
			// Either our own timeout or the caller's deadline, which is
			// usually the request timeout of the HTTP server.
			c.breaker.RecordFailure()
			c.observe(req, "timeout", elapsed)
			return nil, apperrors.Timeout(err)
		default:
			c.breaker.RecordFailure()
			c.observe(req, "unavailable", elapsed)
			if isConnectionError(err) {
				return nil, apperrors.Unavailable(err)
			}
			return nil, apperrors.Unavailable(fmt.Errorf("request failed: %w", err))
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.breaker.RecordFailure()
		c.observe(req, "unavailable", elapsed)
		return nil, apperrors.Unavailable(fmt.Errorf("failed to read response: %w", err))
	}

	switch {
	case resp.StatusCode >= 500:
		c.breaker.RecordFailure()
		c.observe(req, "server_error", elapsed)
	case resp.StatusCode >= 400:
		c.breaker.RecordSuccess()
		c.observe(req, "client_error", elapsed)
	default:
		c.breaker.RecordSuccess()
		c.observe(req, "success", elapsed)
	}

	return &response{status: resp.StatusCode, header: resp.Header, body: raw}, nil
}

func (c *Client) observe(req request, outcome string, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.BackendRequests.WithLabelValues(req.method, req.resource, outcome).Inc()
	if elapsed > 0 {
		c.metrics.BackendLatency.WithLabelValues(req.method, req.resource).Observe(elapsed.Seconds())
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.cfg.BackoffInitial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.cfg.BackoffMax {
			return c.cfg.BackoffMax
		}
	}
	return delay
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Version *int64 `json:"version"`
}

func (c *Client) statusError(req request, resp *response) error {
	var eb errorBody
	_ = json.Unmarshal(resp.body, &eb)
	msg := eb.Message
	if msg == "" {
		msg = eb.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.status)
	}
	cause := fmt.Errorf("%s %s: %d %s", req.method, req.path, resp.status, msg)

	switch resp.status {
	case http.StatusNotFound:
		return apperrors.NotFound(req.resource, cause)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperrors.BadRequest(msg, cause)
	case http.StatusUnauthorized:
		return apperrors.Unauthorized(cause)
	case http.StatusForbidden:
		return apperrors.Forbidden(msg)
	case http.StatusConflict, http.StatusPreconditionFailed:
		var expected int64
		if req.ifMatch != nil {
			expected = *req.ifMatch
		}
		actual := currentVersion(resp, eb)
		return apperrors.Conflict(req.resource, expected, actual)
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return apperrors.Timeout(cause)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusTooManyRequests:
		return apperrors.Unavailable(cause)
	}
	return apperrors.Internal(cause)
}

// currentVersion reads the stored version from the ETag header or the
// error body, or -1 when the backend did not say.
func currentVersion(resp *response, eb errorBody) int64 {
	if eb.Version != nil {
		return *eb.Version
	}
	etag := strings.TrimPrefix(resp.header.Get("ETag"), "W/")
	if v, err := strconv.ParseInt(strings.Trim(etag, `"`), 10, 64); err == nil {
		return v
	}
	return -1
}

// decodeBody accepts both bare JSON and the {"data": ...} envelope.
func decodeBody(raw []byte, out interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &env); err == nil && len(env.Data) > 0 && env.Data[0] != 'n' {
			return json.Unmarshal(env.Data, out)
		}
	}
	return json.Unmarshal(trimmed, out)
}

// Writes carry If-Match and are not retried: a replay after a lost response
// would fail the version check and turn a success into a conflict.
func isIdempotentMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isConnectionError(err error) bool {
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
