package etims

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://taxid-production.up.railway.app"
	DefaultTimeout   = 30 * time.Second
	DefaultBatchSize = 500

	// RefreshMargin is how long before expiry a cached token is renewed
	RefreshMargin = 60 * time.Second
	// DefaultTokenLifetime applies when the token response omits expires_in
	DefaultTokenLifetime = 3600 * time.Second
)

// Environment overrides, which win over constructor options
const (
	EnvAPIURL = "TAXID_API_URL"
	EnvAPIKey = "TAXID_API_KEY"
)

// Wire headers
const (
	HeaderService        = "X-TIaaS-Service"
	HeaderAPIKey         = "X-API-Key"
	HeaderIdempotencyKey = "X-TIaaS-Idempotency-Key"
	ServiceHandshake     = "Handshake"
)

// Option configures the client
type Option func(*clientConfig)

type clientConfig struct {
	baseURL          string
	apiKey           string
	httpClient       *http.Client
	timeout          time.Duration
	logger           *slog.Logger
	observer         Observer
	limiter          *rate.Limiter
	now              func() time.Time
	batchSize        int
	batchConcurrency int
}

// WithBaseURL sets the middleware base URL. TAXID_API_URL still takes priority.
func WithBaseURL(url string) Option {
	return func(cfg *clientConfig) {
		cfg.baseURL = url
	}
}

// WithAPIKey switches the client to static API-key mode. TAXID_API_KEY still takes priority.
func WithAPIKey(key string) Option {
	return func(cfg *clientConfig) {
		cfg.apiKey = key
	}
}

// WithHTTPClient sets the underlying HTTP client. The client is copied, not mutated.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *clientConfig) {
		cfg.httpClient = client
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *clientConfig) {
		cfg.timeout = timeout
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// WithObserver sets the request and token-refresh observer
func WithObserver(observer Observer) Option {
	return func(cfg *clientConfig) {
		cfg.observer = observer
	}
}

// WithRateLimit paces outgoing requests to at most r per second with the given burst
func WithRateLimit(r float64, burst int) Option {
	return func(cfg *clientConfig) {
		cfg.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// WithClock overrides the time source used for token expiry
func WithClock(now func() time.Time) Option {
	return func(cfg *clientConfig) {
		cfg.now = now
	}
}

// WithBatchSize sets the default chunk size for batch updates
func WithBatchSize(size int) Option {
	return func(cfg *clientConfig) {
		cfg.batchSize = size
	}
}

// WithBatchConcurrency sets how many chunks may be in flight at once (default 1)
func WithBatchConcurrency(n int) Option {
	return func(cfg *clientConfig) {
		cfg.batchConcurrency = n
	}
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		baseURL:          DefaultBaseURL,
		timeout:          DefaultTimeout,
		logger:           slog.New(slog.DiscardHandler),
		observer:         NopObserver{},
		now:              time.Now,
		batchSize:        DefaultBatchSize,
		batchConcurrency: 1,
	}
}

// envValue returns the trimmed environment value; blank counts as unset
func envValue(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

// resolveBaseURL applies env > option > default and normalizes the result
func resolveBaseURL(option string) string {
	raw := envValue(EnvAPIURL)
	if raw == "" {
		raw = strings.TrimSpace(option)
	}
	if raw == "" {
		raw = DefaultBaseURL
	}
	return strings.TrimRight(raw, "/")
}

// resolveAPIKey applies env > option
func resolveAPIKey(option string) string {
	if key := envValue(EnvAPIKey); key != "" {
		return key
	}
	return strings.TrimSpace(option)
}
