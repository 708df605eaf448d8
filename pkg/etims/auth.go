package etims

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

const tokenPath = "/oauth/token"

// maxTokenBody caps how much of a token response is read
const maxTokenBody = 1 << 20

// tokenCache is the credential state. It is only touched while the
// authenticator's gate is held.
type tokenCache struct {
	token  string
	expiry time.Time
}

// valid reports whether the token is present and has at least RefreshMargin left
func (c *tokenCache) valid(now time.Time) bool {
	return c.token != "" && c.expiry.Sub(now) >= RefreshMargin
}

type tokenResponse struct {
	AccessToken string   `json:"access_token"`
	ExpiresIn   *float64 `json:"expires_in"`
}

// authenticator runs the client-credentials exchange. The refresh decision and
// the exchange itself happen under one gate so N racing callers cost one
// round trip. The gate is a weighted semaphore so waiters honour ctx.
type authenticator struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
	now          func() time.Time
	logger       *slog.Logger
	observer     Observer

	gate  *semaphore.Weighted
	cache tokenCache
}

func newAuthenticator(clientID, clientSecret, baseURL string, httpClient *http.Client, cfg *clientConfig) *authenticator {
	return &authenticator{
		clientID:     strings.TrimSpace(clientID),
		clientSecret: strings.TrimSpace(clientSecret),
		tokenURL:     baseURL + tokenPath,
		httpClient:   httpClient,
		now:          cfg.now,
		logger:       cfg.logger,
		observer:     cfg.observer,
		gate:         semaphore.NewWeighted(1),
	}
}

// EnsureValid returns a bearer token valid for at least RefreshMargin,
// refreshing it first when needed.
func (a *authenticator) EnsureValid(ctx context.Context) (string, error) {
	if err := a.gate.Acquire(ctx, 1); err != nil {
		// Nothing was transmitted, so this is safe to retry.
		return "", newServiceUnavailableError(err)
	}
	defer a.gate.Release(1)

	now := a.now()
	if a.cache.valid(now) {
		return a.cache.token, nil
	}

	start := time.Now()
	token, lifetime, err := a.exchange(ctx)
	a.observer.ObserveTokenRefresh(time.Since(start), err)
	if err != nil {
		a.logger.Warn("token refresh failed", slog.String("kind", string(KindOf(err))))
		return "", err
	}

	a.cache = tokenCache{token: token, expiry: now.Add(lifetime)}
	a.logger.Info("token refreshed", slog.Time("expires_at", a.cache.expiry))
	return token, nil
}

// Invalidate forgets the cached token if it is still the rejected one, so a
// token another caller refreshed in the meantime survives
func (a *authenticator) Invalidate(ctx context.Context, rejected string) error {
	if err := a.gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer a.gate.Release(1)

	if a.cache.token == rejected {
		a.cache = tokenCache{}
	}
	return nil
}

func (a *authenticator) exchange(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, newAuthTransportError(err)
	}
	req.SetBasicAuth(a.clientID, a.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", 0, newAuthTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		return "", 0, newAuthTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, newAuthStatusError(resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, NewError(KindAuthentication, "TIaaS Authentication failed: malformed token response", err)
	}
	if tr.AccessToken == "" {
		return "", 0, NewError(KindAuthentication, "TIaaS Authentication failed: token response has no access_token", nil)
	}

	lifetime := DefaultTokenLifetime
	if tr.ExpiresIn != nil {
		lifetime = time.Duration(*tr.ExpiresIn * float64(time.Second))
	}
	if lifetime < 0 {
		return "", 0, NewError(KindAuthentication, fmt.Sprintf("TIaaS Authentication failed: negative expires_in %v", *tr.ExpiresIn), nil)
	}
	return tr.AccessToken, lifetime, nil
}
