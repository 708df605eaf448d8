package etims

import "time"

// RequestEvent describes one finished dispatch. Path is the unexpanded
// template (e.g. /v2/etims/compliance/{pin}) and Kind is empty on success.
type RequestEvent struct {
	Method     string
	Path       string
	StatusCode int
	Kind       Kind
	Duration   time.Duration
}

// Observer receives request and token-refresh events. Implementations must be
// safe for concurrent use.
type Observer interface {
	ObserveRequest(event RequestEvent)
	ObserveTokenRefresh(duration time.Duration, err error)
}

// NopObserver discards all events
type NopObserver struct{}

func (NopObserver) ObserveRequest(RequestEvent)              {}
func (NopObserver) ObserveTokenRefresh(time.Duration, error) {}
