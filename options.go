package foundry

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/azfoundry/foundry-go/sdk/auth"
)

// Option configures a Client during construction.
type Option func(*settings)

type settings struct {
	endpoint       string
	credential     auth.Credential
	apiVersion     string
	httpClient     *http.Client
	maxRetries     int
	initialBackoff time.Duration
	retrySet       bool
	logger         zerolog.Logger
	tracerProvider trace.TracerProvider
}

// WithEndpoint sets the base URL of the service, e.g.
// "https://your-resource.services.ai.azure.com". When omitted the
// FOUNDRY_ENDPOINT environment variable is consulted.
func WithEndpoint(endpoint string) Option {
	return func(s *settings) { s.endpoint = endpoint }
}

// WithCredential sets the credential used to authorize requests. When
// omitted, a static credential is built from FOUNDRY_API_KEY.
func WithCredential(cred auth.Credential) Option {
	return func(s *settings) { s.credential = cred }
}

// WithAPIVersion overrides the api-version header sent with every
// request.
func WithAPIVersion(version string) Option {
	return func(s *settings) { s.apiVersion = version }
}

// WithHTTPClient supplies a custom *http.Client, replacing the pooled
// default. Use it for proxies, custom TLS, or test doubles.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithRetryPolicy bounds the retry loop. maxRetries may be at most 10 and
// initialBackoff at most the 60s ceiling; New rejects anything outside
// those bounds with a configuration error.
func WithRetryPolicy(maxRetries int, initialBackoff time.Duration) Option {
	return func(s *settings) {
		s.maxRetries = maxRetries
		s.initialBackoff = initialBackoff
		s.retrySet = true
	}
}

// WithLogger enables structured logging. The default logger discards
// everything. Secrets are redacted before any value reaches the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithTracerProvider sets the OpenTelemetry provider used to trace
// requests. The default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *settings) { s.tracerProvider = tp }
}
