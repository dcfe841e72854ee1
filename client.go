package foundry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/azfoundry/foundry-go/internal/sanitize"
	"github.com/azfoundry/foundry-go/internal/transport"
	"github.com/azfoundry/foundry-go/sdk/apierr"
	"github.com/azfoundry/foundry-go/sdk/auth"
)

// DefaultAPIVersion is the api-version header value sent when
// WithAPIVersion is not used.
const DefaultAPIVersion = "2025-01-01-preview"

// Environment variables consulted when the corresponding option is
// omitted.
const (
	EnvEndpoint = "FOUNDRY_ENDPOINT"
	EnvAPIKey   = "FOUNDRY_API_KEY"
)

const tracerName = "github.com/azfoundry/foundry-go"

// Response wraps the HTTP response with transport metadata from the
// retry loop.
type Response struct {
	*http.Response

	// Attempts is how many attempts the retry loop made for this call,
	// including the successful one.
	Attempts int
}

// Client is the transport-level entry point of the SDK. It owns the
// endpoint, the credential, the retry policy, and the HTTP connection
// pool. Service clients such as chat and embeddings wrap a *Client.
//
// A Client is safe for concurrent use.
type Client struct {
	endpoint   *url.URL
	credential auth.Credential
	apiVersion string
	httpClient *http.Client
	engine     transport.Engine
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// New builds a Client from the supplied options.
//
// The endpoint falls back to FOUNDRY_ENDPOINT and the credential falls
// back to a static key read from FOUNDRY_API_KEY. A missing or
// unparsable endpoint, a missing credential, or an out-of-bounds retry
// policy yields a configuration error.
func New(opts ...Option) (*Client, error) {
	s := settings{
		apiVersion: DefaultAPIVersion,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	if s.endpoint == "" {
		s.endpoint = os.Getenv(EnvEndpoint)
	}
	if s.endpoint == "" {
		return nil, apierr.Configuration("endpoint not set; pass WithEndpoint or set %s", EnvEndpoint)
	}
	base, err := url.Parse(s.endpoint)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, apierr.Configuration("invalid endpoint %q", s.endpoint)
	}

	if s.credential == nil {
		if key := os.Getenv(EnvAPIKey); key != "" {
			s.credential = auth.NewStatic(key)
		}
	}
	if s.credential == nil {
		return nil, apierr.Configuration("credential not set; pass WithCredential or set %s", EnvAPIKey)
	}

	policy := transport.DefaultRetryPolicy()
	if s.retrySet {
		policy, err = transport.NewRetryPolicy(s.maxRetries, s.initialBackoff)
		if err != nil {
			return nil, err
		}
	}

	httpClient := s.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	tp := s.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Client{
		endpoint:   base,
		credential: s.credential,
		apiVersion: s.apiVersion,
		httpClient: httpClient,
		engine: transport.Engine{
			Policy: policy,
			Logger: s.logger,
		},
		logger: s.logger,
		tracer: tp.Tracer(tracerName),
	}, nil
}

// Endpoint reports the base URL requests are issued against.
func (c *Client) Endpoint() *url.URL { return c.endpoint }

// APIVersion reports the api-version header value in use.
func (c *Client) APIVersion() string { return c.apiVersion }

// URL appends an API path to the base endpoint. Any base path on the
// endpoint is kept, so "https://host/base" + "/v1/x" is
// "https://host/base/v1/x".
func (c *Client) URL(path string) (string, error) {
	u, err := url.JoinPath(c.endpoint.String(), path)
	if err != nil {
		return "", apierr.Configuration("invalid request path %q: %v", path, err)
	}
	return u, nil
}

// Get issues a GET request and returns the response once a 2xx status
// is observed. The caller owns the response body.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, false)
}

// Post marshals body as JSON and issues a POST request, returning the
// response once a 2xx status is observed. The caller owns the response
// body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body, false)
}

// PostStream is Post for server-sent event responses. Non-2xx bodies
// are consumed to build the error; a 2xx body is handed back untouched
// for the caller to stream, typically via the stream package.
func (c *Client) PostStream(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body, true)
}

func (c *Client) do(ctx context.Context, method, path string, body any, streaming bool) (*Response, error) {
	u, err := c.URL(path)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, apierr.Configuration("encoding request body: %v", err)
		}
	}

	requestID := uuid.NewString()

	ctx, span := c.tracer.Start(ctx, "foundry.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.String("foundry.request_id", requestID),
		))
	defer span.End()

	resp, attempts, err := c.engine.Do(ctx, func(ctx context.Context, attempt int) (*http.Response, error) {
		// Resolved per attempt so a token that expires mid-retry is
		// refreshed rather than replayed.
		authz, err := c.credential.Authorization(ctx)
		if err != nil {
			return nil, err
		}

		var reqBody io.Reader
		if payload != nil {
			// Fresh reader per attempt so retries replay the payload
			// without re-marshaling.
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
		if err != nil {
			return nil, apierr.Configuration("building request: %v", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Authorization", authz)
		req.Header.Set("api-version", c.apiVersion)
		req.Header.Set("X-Request-Id", requestID)
		if streaming {
			req.Header.Set("Accept", "text/event-stream")
		}

		c.logger.Debug().
			Str("method", method).
			Str("path", path).
			Str("request_id", requestID).
			Int("attempt", attempt).
			Msg("sending request")

		return c.httpClient.Do(req)
	})

	span.SetAttributes(attribute.Int("foundry.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, sanitize.Clean(err.Error()))
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	span.SetStatus(codes.Ok, "")

	c.logger.Debug().
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Int("attempts", attempts).
		Msg("request complete")

	return &Response{Response: resp, Attempts: attempts}, nil
}
