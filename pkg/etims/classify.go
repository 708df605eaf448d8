package etims

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync/atomic"
)

// connectProbe records, via httptrace, whether this request started a dial and
// whether it ever obtained a connection. A dial that never produced a
// connection (refused, timed out, failed TLS, or cut short by the client
// timeout while still pending) means nothing was sent.
type connectProbe struct {
	dialing   atomic.Bool
	connected atomic.Bool
}

func (p *connectProbe) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) {
			p.dialing.Store(true)
		},
		ConnectStart: func(_, _ string) {
			p.dialing.Store(true)
		},
		GotConn: func(httptrace.GotConnInfo) {
			p.connected.Store(true)
		},
	}
}

// neverConnected reports whether a dial started and no connection followed
func (p *connectProbe) neverConnected() bool {
	return p.dialing.Load() && !p.connected.Load()
}

// isMutating reports whether the method may have a server-side effect
func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// isConnectFailure reports whether err means no connection was ever established
func isConnectFailure(err error, probe *connectProbe) bool {
	if probe != nil && probe.neverConnected() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return false
}

// classifyTransport maps a transport failure to the taxonomy. A failure to
// connect is always ServiceUnavailable. Anything later may have reached the
// server, so a mutating method becomes AmbiguousState and a read stays
// ServiceUnavailable.
func classifyTransport(method string, err error, probe *connectProbe) *Error {
	if isConnectFailure(err, probe) {
		return newServiceUnavailableError(err)
	}
	if isMutating(method) {
		return newAmbiguousStateError(err)
	}
	return newServiceUnavailableError(err)
}

// classifyStatus maps a non-2xx status to the taxonomy; nil means success.
// 503 outranks every other status and ignores the method.
func classifyStatus(status int, body []byte) *Error {
	switch {
	case status == http.StatusServiceUnavailable:
		return newConnectivityCeilingError(string(body))
	case status < 200 || status > 299:
		return newHTTPStatusError(status, string(body))
	}
	return nil
}
