package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/etims-go/internal/metrics"
	"github.com/rezonia/etims-go/pkg/etims"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	w := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestObserver_Requests(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := metrics.NewObserver(reg)

	obs.ObserveRequest(etims.RequestEvent{Method: "GET", Path: etims.PathCompliance, StatusCode: 200, Duration: 20 * time.Millisecond})
	obs.ObserveRequest(etims.RequestEvent{Method: "POST", Path: etims.PathSale, Kind: etims.KindAmbiguousState, Duration: time.Second})
	obs.ObserveRequest(etims.RequestEvent{Method: "POST", Path: etims.PathSale, Kind: etims.KindAmbiguousState, Duration: time.Second})

	out := scrape(t, reg)
	assert.Contains(t, out, `etims_client_requests_total{method="GET",outcome="ok",path="/v2/etims/compliance/{pin}"} 1`)
	assert.Contains(t, out, `etims_client_requests_total{method="POST",outcome="AMBIGUOUS_STATE",path="/v2/etims/sale"} 2`)
	assert.Contains(t, out, `etims_client_request_duration_seconds_count{method="POST",path="/v2/etims/sale"} 2`)
}

func TestObserver_TokenRefresh(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := metrics.NewObserver(reg)

	obs.ObserveTokenRefresh(10*time.Millisecond, nil)
	obs.ObserveTokenRefresh(10*time.Millisecond, errors.New("denied"))
	obs.ObserveTokenRefresh(10*time.Millisecond, nil)

	out := scrape(t, reg)
	assert.Contains(t, out, `etims_client_token_refreshes_total{result="success"} 2`)
	assert.Contains(t, out, `etims_client_token_refreshes_total{result="failure"} 1`)
	assert.Contains(t, out, `etims_client_token_refresh_duration_seconds_count 3`)
}

func TestObserver_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewObserver(reg)

	assert.Panics(t, func() { metrics.NewObserver(reg) })
}
