package etims

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"time"
)

var (
	errEmptyParam   = errors.New("must not be empty")
	errUnusedParam  = errors.New("no matching placeholder in path")
	errUnboundParam = errors.New("placeholder without a value")

	errInvalidHeaderName  = errors.New("invalid header field name")
	errInvalidHeaderValue = errors.New("invalid header field value")
)

// Request is the per-call context handed to the dispatcher
type Request struct {
	Method string
	// Path is relative to the base URL and may hold {name} placeholders
	Path       string
	PathParams map[string]string
	// Body is encoded as JSON when non-nil
	Body           interface{}
	IdempotencyKey string
	Header         http.Header
	// SkipAuth sends the request without bearer token or API key
	SkipAuth bool

	template string
}

func (r Request) clone() Request {
	out := r
	if r.PathParams != nil {
		out.PathParams = make(map[string]string, len(r.PathParams))
		for k, v := range r.PathParams {
			out.PathParams[k] = v
		}
	}
	out.Header = r.Header.Clone()
	return out
}

// Response is a successful (2xx) reply
type Response struct {
	StatusCode int
	Header     http.Header
	// Body is the raw JSON document; nil when the server sent nothing
	Body json.RawMessage
}

// Decode unmarshals the body into v
func (r *Response) Decode(v interface{}) error {
	if len(r.Body) == 0 {
		return newDecodeError("empty response body", nil)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return newDecodeError("response body does not match target", err)
	}
	return nil
}

// Map decodes the body as a JSON object; an empty body yields an empty map
func (r *Response) Map() (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if len(r.Body) == 0 {
		return out, nil
	}
	if err := r.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarshalJSON emits the response body as-is
func (r Response) MarshalJSON() ([]byte, error) {
	if len(r.Body) == 0 {
		return []byte("{}"), nil
	}
	return r.Body, nil
}

// Do sends one request through the sanitizing pipeline, attaches
// credentials and classifies the outcome. There is no retry: callers decide
// whether to resubmit, reusing the idempotency key after AmbiguousState.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	r, err := runStages(req, c.stages)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if r.Body != nil {
		payload, err = json.Marshal(r.Body)
		if err != nil {
			return nil, newValidationError("request body", err)
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, newServiceUnavailableError(err)
		}
	}

	httpReq, bearer, err := c.newHTTPRequest(ctx, r, payload)
	if err != nil {
		return nil, err
	}

	probe := &connectProbe{}
	httpReq = httpReq.WithContext(httptrace.WithClientTrace(httpReq.Context(), probe.trace()))

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.fail(r, 0, classifyTransport(r.Method, err, probe), start)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		// the status line already says the ceiling was hit
		if resp.StatusCode == http.StatusServiceUnavailable {
			return nil, c.fail(r, resp.StatusCode, newConnectivityCeilingError(string(body)), start)
		}
		return nil, c.fail(r, resp.StatusCode, classifyTransport(r.Method, err, probe), start)
	}

	if cerr := classifyStatus(resp.StatusCode, body); cerr != nil {
		if resp.StatusCode == http.StatusUnauthorized && bearer != "" {
			_ = c.auth.Invalidate(ctx, bearer)
		}
		return nil, c.fail(r, resp.StatusCode, cerr, start)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		body = nil
	} else if !json.Valid(body) {
		return nil, c.fail(r, resp.StatusCode, newDecodeError("response is not JSON", nil), start)
	}

	elapsed := time.Since(start)
	c.observer.ObserveRequest(RequestEvent{
		Method:     r.Method,
		Path:       r.template,
		StatusCode: resp.StatusCode,
		Duration:   elapsed,
	})
	c.logger.Debug("request completed",
		slog.String("method", r.Method),
		slog.String("path", r.template),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", elapsed),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// newHTTPRequest builds the outbound request and returns the bearer token it
// carries, if any
func (c *Client) newHTTPRequest(ctx context.Context, r Request, payload []byte) (*http.Request, string, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, r.Method, c.baseURL+r.Path, body)
	if err != nil {
		return nil, "", newValidationError("request", err)
	}

	for name, values := range r.Header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	// credentials are decided here and nowhere else
	httpReq.Header.Del("Authorization")
	httpReq.Header.Del(HeaderAPIKey)

	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if r.IdempotencyKey != "" {
		httpReq.Header.Set(HeaderIdempotencyKey, r.IdempotencyKey)
	}

	switch {
	case r.SkipAuth:
	case c.apiKey != "":
		httpReq.Header.Set(HeaderAPIKey, c.apiKey)
	default:
		token, err := c.auth.EnsureValid(ctx)
		if err != nil {
			return nil, "", err
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
		return httpReq, token, nil
	}
	return httpReq, "", nil
}

// fail records a classified failure and returns it
func (c *Client) fail(r Request, status int, err *Error, start time.Time) error {
	elapsed := time.Since(start)
	c.observer.ObserveRequest(RequestEvent{
		Method:     r.Method,
		Path:       r.template,
		StatusCode: status,
		Kind:       err.Kind,
		Duration:   elapsed,
	})
	c.logger.Warn("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.template),
		slog.String("kind", string(err.Kind)),
		slog.Int("status", status),
		slog.Duration("duration", elapsed),
	)
	return err
}
