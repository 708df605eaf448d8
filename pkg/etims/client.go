package etims

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Client talks to the TIaaS middleware. It is safe for concurrent use by
// multiple goroutines; the only shared state is the token cache and the
// connection pool.
type Client struct {
	baseURL    string
	apiKey     string
	auth       *authenticator // nil in API-key mode
	httpClient *http.Client
	logger     *slog.Logger
	observer   Observer
	limiter    *rate.Limiter
	stages     []requestStage

	batchSize        int
	batchConcurrency int

	closed atomic.Bool
}

// New creates a client. Credentials are exchanged for a bearer token on first
// use, unless an API key is configured through WithAPIKey or TAXID_API_KEY,
// in which case the token endpoint is never contacted.
func New(clientID, clientSecret string, opts ...Option) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.observer == nil {
		cfg.observer = NopObserver{}
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.batchSize <= 0 {
		cfg.batchSize = DefaultBatchSize
	}
	if cfg.batchConcurrency <= 0 {
		cfg.batchConcurrency = 1
	}
	if cfg.timeout <= 0 {
		cfg.timeout = DefaultTimeout
	}

	c := &Client{
		baseURL:          resolveBaseURL(cfg.baseURL),
		apiKey:           resolveAPIKey(cfg.apiKey),
		httpClient:       newHTTPClient(cfg),
		logger:           cfg.logger,
		observer:         cfg.observer,
		limiter:          cfg.limiter,
		stages:           defaultStages,
		batchSize:        cfg.batchSize,
		batchConcurrency: cfg.batchConcurrency,
	}
	if c.apiKey == "" {
		c.auth = newAuthenticator(clientID, clientSecret, c.baseURL, c.httpClient, cfg)
	}

	mode := "bearer"
	if c.auth == nil {
		mode = "api_key"
	}
	c.logger.Debug("client created", slog.String("base_url", c.baseURL), slog.String("auth_mode", mode))
	return c
}

// BaseURL returns the resolved, normalized base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UsesAPIKey reports whether the client is in static API-key mode
func (c *Client) UsesAPIKey() bool {
	return c.auth == nil
}

// Close releases pooled connections. Calls made afterwards fail with ErrClientClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.httpClient.CloseIdleConnections()
	return nil
}
