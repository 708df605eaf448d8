package etims

import (
	"net/http"
)

// serviceHeaderTransport wraps an http.RoundTripper to identify the SDK on every request,
// token exchange included
type serviceHeaderTransport struct {
	base http.RoundTripper
}

func (t *serviceHeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	r := req.Clone(req.Context())
	r.Header.Set(HeaderService, ServiceHandshake)
	return t.transport().RoundTrip(r)
}

// CloseIdleConnections lets http.Client.CloseIdleConnections reach the pool
func (t *serviceHeaderTransport) CloseIdleConnections() {
	type closeIdler interface {
		CloseIdleConnections()
	}
	if ci, ok := t.transport().(closeIdler); ok {
		ci.CloseIdleConnections()
	}
}

func (t *serviceHeaderTransport) transport() http.RoundTripper {
	if t.base != nil {
		return t.base
	}
	return http.DefaultTransport
}

// newHTTPClient returns a client whose transport stamps the service header.
// A caller-supplied client is copied so its transport is left untouched.
func newHTTPClient(cfg *clientConfig) *http.Client {
	var hc http.Client
	if cfg.httpClient != nil {
		hc = *cfg.httpClient
	} else {
		hc.Transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	hc.Transport = &serviceHeaderTransport{base: hc.Transport}
	hc.Timeout = cfg.timeout
	return &hc
}
