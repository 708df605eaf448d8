// Package sandbox is an in-process stand-in for the TIaaS middleware. It
// implements the token exchange and every eTIMS route the client uses, and
// lets tests switch on the offline ceiling or inject connection faults.
package sandbox

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DefaultClientID      = "sandbox-client"
	DefaultClientSecret  = "sandbox-secret"
	DefaultTokenLifetime = time.Hour
	MaxBatchItems        = 500

	// maxRecorded bounds the request log of a long-running sandbox
	maxRecorded = 10000

	shutdownTimeout = 5 * time.Second
)

// Config holds sandbox configuration
type Config struct {
	Address       string
	ClientID      string
	ClientSecret  string
	APIKey        string
	TokenLifetime time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	Debug         bool
	Now           func() time.Time
}

// Server represents the sandbox HTTP server
type Server struct {
	config   *Config
	router   *gin.Engine
	registry *prometheus.Registry
	requests *prometheus.CounterVec

	mu         sync.Mutex
	tokens     map[string]time.Time
	sales      map[string]Result
	receiptSeq int64
	offline    bool
	faults     map[string]*Fault
	calls      map[string]int
	recorded   []RecordedRequest
}

// NewServer creates a new sandbox server
func NewServer(config *Config) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.ClientID == "" {
		config.ClientID = DefaultClientID
	}
	if config.ClientSecret == "" {
		config.ClientSecret = DefaultClientSecret
	}
	if config.TokenLifetime <= 0 {
		config.TokenLifetime = DefaultTokenLifetime
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	router := gin.New()
	// route on the escaped path so an encoded "/" stays inside :pin
	router.UseRawPath = true
	router.Use(gin.Recovery())
	if config.Debug {
		router.Use(gin.Logger())
	}

	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "etims_sandbox",
		Name:      "requests_total",
		Help:      "Requests handled by the sandbox, by route and status code.",
	}, []string{"route", "code"})
	registry.MustRegister(requests)

	s := &Server{
		config:   config,
		router:   router,
		registry: registry,
		requests: requests,
		tokens:   make(map[string]time.Time),
		sales:    make(map[string]Result),
		faults:   make(map[string]*Fault),
		calls:    make(map[string]int),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	// Sandbox controls
	admin := s.router.Group("/_sandbox")
	{
		admin.PUT("/offline", s.handleSetOffline)
		admin.GET("/stats", s.handleStats)
	}

	traced := s.router.Group("", s.record, s.injectFaults)
	traced.GET("/actuator/health", s.handleHealth)
	traced.POST("/oauth/token", s.handleToken)

	// eTIMS v2
	v2 := traced.Group("/v2/etims", s.requireServiceHeader, s.authenticate, s.offlineCeiling)
	{
		v2.GET("/init-handshake", s.handleInitHandshake)
		v2.POST("/init", s.handleInit)
		v2.POST("/sync", s.handleSync)
		v2.POST("/item", s.handleItem)
		v2.POST("/sale", s.handleSale)
		v2.POST("/reverse", s.handleReverse)
		v2.POST("/stock", s.handleStock)
		v2.POST("/stock/batch", s.handleStockBatch)
		v2.GET("/compliance/:pin", s.handleCompliance)
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetOffline switches the offline ceiling on or off. While on, every eTIMS
// route answers 503.
func (s *Server) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

// SetFault installs a fault for a route, e.g. "/v2/etims/sale"
func (s *Server) SetFault(route string, f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fault := f
	s.faults[route] = &fault
}

// ClearFaults removes every installed fault
func (s *Server) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]*Fault)
}

// Calls returns how many requests reached a route, faults and rejections included
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// TokenCalls returns how many requests reached the token endpoint
func (s *Server) TokenCalls() int {
	return s.Calls("/oauth/token")
}

// Requests returns a copy of the recorded requests, oldest first
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.recorded))
	copy(out, s.recorded)
	return out
}

// RequestsTo returns the recorded requests for one route
func (s *Server) RequestsTo(route string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range s.Requests() {
		if r.Route == route {
			out = append(out, r)
		}
	}
	return out
}

// Reset clears tokens, sales, faults, counters and recorded requests
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]time.Time)
	s.sales = make(map[string]Result)
	s.faults = make(map[string]*Fault)
	s.calls = make(map[string]int)
	s.recorded = nil
	s.offline = false
}

// record counts and stores the request, then restores its body
func (s *Server) record(c *gin.Context) {
	route := c.FullPath()
	body, _ := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	s.mu.Lock()
	s.calls[route]++
	s.recorded = append(s.recorded, RecordedRequest{
		Method: c.Request.Method,
		Path:   c.Request.URL.EscapedPath(),
		Route:  route,
		Header: c.Request.Header.Clone(),
		Body:   body,
		At:     s.config.Now(),
	})
	if len(s.recorded) > maxRecorded {
		s.recorded = s.recorded[len(s.recorded)-maxRecorded:]
	}
	s.mu.Unlock()

	c.Next()

	s.requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
}

// takeFault returns the active fault for route and consumes one use of it
func (s *Server) takeFault(route string) (Fault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.faults[route]
	if !ok {
		return Fault{}, false
	}
	out := *f
	if f.Times > 0 {
		f.Times--
		if f.Times == 0 {
			delete(s.faults, route)
		}
	}
	return out, true
}

func (s *Server) injectFaults(c *gin.Context) {
	fault, ok := s.takeFault(c.FullPath())
	if !ok {
		c.Next()
		return
	}

	if fault.Delay > 0 {
		select {
		case <-time.After(fault.Delay):
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}

	if fault.Drop {
		conn, _, err := c.Writer.Hijack()
		if err == nil {
			conn.Close()
		}
		c.Abort()
		return
	}

	if fault.Status != 0 {
		c.AbortWithStatusJSON(fault.Status, ErrorResponse{Error: "injected fault", Details: http.StatusText(fault.Status)})
		return
	}
	c.Next()
}

func (s *Server) requireServiceHeader(c *gin.Context) {
	if c.GetHeader("X-TIaaS-Service") != "Handshake" {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "missing X-TIaaS-Service header"})
		return
	}
	c.Next()
}

// authenticate accepts a live bearer token or, when configured, the API key.
// A request carrying both is rejected.
func (s *Server) authenticate(c *gin.Context) {
	authz := c.GetHeader("Authorization")
	apiKey := c.GetHeader("X-API-Key")

	if authz != "" && apiKey != "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "send either Authorization or X-API-Key, not both"})
		return
	}

	if apiKey != "" {
		if s.config.APIKey == "" || subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.config.APIKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid api key"})
			return
		}
		c.Next()
		return
	}

	token, ok := strings.CutPrefix(authz, "Bearer ")
	if !ok || !s.tokenValid(token) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid or expired token"})
		return
	}
	c.Next()
}

func (s *Server) tokenValid(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.tokens[token]
	return ok && s.config.Now().Before(expiry)
}

func (s *Server) offlineCeiling(c *gin.Context) {
	s.mu.Lock()
	offline := s.offline
	s.mu.Unlock()
	if offline {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "VSCU offline ceiling breached",
			Details: "cannot sign until connectivity to KRA is restored",
		})
		return
	}
	c.Next()
}
