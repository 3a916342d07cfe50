package cloudapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"clusterlink"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/http2"
)

const (
	// DefaultTimeout bounds a single API call, retries included.
	DefaultTimeout = 30 * time.Second
	// maxRetryTime is the maximum time to retry a request on network errors.
	maxRetryTime = 10 * time.Second
	// maxErrorBodySize caps how much of an error response is read.
	maxErrorBodySize = 64 << 10

	requestIDHeader = "X-Request-Id"
)

// Client talks to the cloud connect API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	tracer     trace.Tracer
	newBackoff func() backoff.BackOff
	requestID  func() string

	mu    sync.RWMutex
	token string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client. The retrying transport is not
// installed when this is used.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithToken sets the initial bearer token.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout overrides DefaultTimeout. Zero disables the per-call deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithTracer sets the tracer for API call spans.
func WithTracer(t trace.Tracer) ClientOption {
	return func(c *Client) {
		c.tracer = t
	}
}

// WithRetryBackoff sets the backoff policy for network error retries.
func WithRetryBackoff(newBackoff func() backoff.BackOff) ClientOption {
	return func(c *Client) {
		c.newBackoff = newBackoff
	}
}

// WithRequestID overrides how X-Request-Id values are generated.
func WithRequestID(fn func() string) ClientOption {
	return func(c *Client) {
		c.requestID = fn
	}
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse cloud api URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse cloud api URL: unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL:   u,
		timeout:   DefaultTimeout,
		requestID: uuid.NewString,
		newBackoff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(200*time.Millisecond),
				backoff.WithMaxInterval(2*time.Second),
				backoff.WithMaxElapsedTime(maxRetryTime),
			)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer("clusterlink/cloudapi")
	}

	if c.httpClient == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		if _, err := http2.ConfigureTransports(base); err != nil {
			return nil, fmt.Errorf("configure http2 transport: %w", err)
		}
		c.httpClient = &http.Client{
			Transport: otelhttp.NewTransport(&retryRoundTripper{
				base:       base,
				newBackoff: c.newBackoff,
			}),
		}
	}
	return c, nil
}

// SetToken replaces the bearer token used by subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// errorObject is one entry of the "errors" envelope.
type errorObject struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Title      string `json:"title"`
	Detail     string `json:"detail"`
	HTTPStatus string `json:"http_status"`
}

func (o errorObject) record(fallbackStatus int) clusterlink.ErrorRecord {
	status, err := strconv.Atoi(o.HTTPStatus)
	if err != nil || status == 0 {
		status = fallbackStatus
	}
	return clusterlink.ErrorRecord{
		ID:         o.ID,
		Code:       o.Code,
		Title:      o.Title,
		Detail:     o.Detail,
		HTTPStatus: status,
	}
}

// get performs a GET on path and decodes the "data" envelope into out.
func (c *Client) get(ctx context.Context, op, path string, out any) (err error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	requestID := c.requestID()
	ctx, span := c.tracer.Start(ctx, "cloudapi."+op, trace.WithAttributes(
		attribute.String("http.request.method", http.MethodGet),
		attribute.String("url.path", path),
		attribute.String("clusterlink.request_id", requestID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.JoinPath(path).String(), nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	if len(envelope.Data) == 0 {
		return fmt.Errorf("%s: response has no data", op)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("%s: decode data: %w", op, err)
	}
	return nil
}

// decodeError turns an error response into an *APIError. Bodies without an
// "errors" envelope become a single record titled with the status text.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	var envelope struct {
		Errors []errorObject `json:"errors"`
	}
	apiErr := &clusterlink.APIError{}
	if json.Unmarshal(body, &envelope) == nil {
		for _, obj := range envelope.Errors {
			apiErr.Errors = append(apiErr.Errors, obj.record(resp.StatusCode))
		}
	}
	if len(apiErr.Errors) == 0 {
		apiErr.Errors = []clusterlink.ErrorRecord{{
			Title:      http.StatusText(resp.StatusCode),
			HTTPStatus: resp.StatusCode,
		}}
	}
	return apiErr
}

// retryRoundTripper retries requests on transient network errors.
type retryRoundTripper struct {
	base       http.RoundTripper
	newBackoff func() backoff.BackOff
}

func (rt *retryRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	attempt := func() (*http.Response, error) {
		resp, err := rt.base.RoundTrip(req)
		if err != nil {
			var opErr *net.OpError
			if errors.As(err, &opErr) {
				slog.Debug("Retrying cloud api request due to network error.",
					"request_id", req.Header.Get(requestIDHeader), "err", err)
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return resp, nil
	}
	boff := backoff.WithContext(rt.newBackoff(), req.Context())
	return backoff.RetryWithData(attempt, boff)
}
