// Package gateway is the HTTP client for the tontine backend. It injects the
// bearer token, normalises failures onto domain errors and never retries.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/tontine/internal/domain"
)

const tracerName = "github.com/alanyoungcy/tontine/internal/gateway"

// TokenSource supplies the bearer token for outgoing requests and is told
// when the backend rejected it.
type TokenSource interface {
	// Token returns "" for an unauthenticated request. It fails with
	// domain.ErrAuthExpired when the token is known to be expired.
	Token(ctx context.Context) (string, error)
	Expire(ctx context.Context) error
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64 // requests per second, 0 disables throttling
	Burst      int
	UserAgent  string
	Tokens     TokenSource
	Registerer prometheus.Registerer
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client issues JSON requests against the backend API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	metrics    *metrics
	tracer     trace.Tracer
	logger     *slog.Logger
}

// New creates a Client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		httpClient: httpClient,
		tokens:     opts.Tokens,
		limiter:    limiter,
		metrics:    newMetrics(opts.Registerer),
		tracer:     otel.Tracer(tracerName),
		logger:     logger.With(slog.String("component", "gateway")),
	}
}

// Get decodes the JSON answer of GET path into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, path, nil, out)
}

// Post sends body as JSON and decodes the answer into out (which may be nil).
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, path, body, out)
}

// Put sends body as JSON and decodes the answer into out (which may be nil).
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, path, body, out)
}

// Delete issues DELETE path and decodes the answer into out (which may be nil).
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, path, nil, out)
}

// do performs one request. route is the low-cardinality label used for
// metrics and span names; path is the concrete URL path.
func (c *Client) do(ctx context.Context, method, route, path string, body, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("http.route", route),
		),
	)
	start := time.Now()
	outcome := "ok"
	defer func() {
		if err != nil {
			outcome = outcomeLabel(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		c.metrics.requests.WithLabelValues(method, route, outcome).Inc()
		c.metrics.latency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		span.End()
	}()

	var token string
	if c.tokens != nil {
		token, err = c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("gateway: %s %s: %w", method, path, err)
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("gateway: %s %s: throttle: %w", method, path, err)
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: %s %s: encode body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("gateway: %s %s: create request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("gateway: %s %s: %w", method, path, ctxErr)
		}
		return fmt.Errorf("gateway: %s %s: %w: %v", method, path, domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("gateway: %s %s: %w: read response: %v", method, path, domain.ErrNetwork, err)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if kind := statusKind(resp.StatusCode); kind != nil {
		apiErr := &APIError{
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Message: backendMessage(respBody),
			kind:    kind,
		}
		if errors.Is(kind, domain.ErrAuthExpired) && c.tokens != nil {
			if expErr := c.tokens.Expire(ctx); expErr != nil {
				c.logger.WarnContext(ctx, "failed to expire session",
					slog.String("error", expErr.Error()),
				)
			}
		}
		c.logger.DebugContext(ctx, "backend rejected request",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("gateway: %s %s: %w: decode response: %v", method, path, domain.ErrServer, err)
	}
	return nil
}

func outcomeLabel(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return strconv.Itoa(apiErr.Status)
	case errors.Is(err, domain.ErrAuthExpired):
		return "auth_expired"
	case errors.Is(err, domain.ErrNetwork):
		return "network"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
