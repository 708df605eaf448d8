package sandbox_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/etims-go/internal/sandbox"
)

const saleJSON = `{
	"tin": "P051234567X", "bhfId": "00", "invcNo": "INV-1", "custNm": "Walk-in",
	"rcptTyCd": "S", "pmtTyCd": "01", "rcptLbel": "NS", "confirmDt": "20260115103000",
	"totItemCnt": 1, "totTaxblAmt": "1000", "totTaxAmt": "160", "totAmt": "1160",
	"itemList": [{"itemCd": "KE1", "itemNm": "Flour", "pkgUnitCd": "UNT", "pkg": "1",
		"qtyUnitCd": "U", "qty": "2", "uprc": "580", "totAmt": "1160", "taxTyCd": "A",
		"taxblAmt": "1000", "taxAmt": "160"}]
}`

func newTestServer() *sandbox.Server {
	config := &sandbox.Config{
		Address: ":0",
		APIKey:  "sandbox-key",
		Debug:   true,
	}
	return sandbox.NewServer(config)
}

func serve(srv *sandbox.Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func fetchToken(t *testing.T, srv *sandbox.Server) string {
	t.Helper()
	form := url.Values{"grant_type": {"client_credentials"}}
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(sandbox.DefaultClientID, sandbox.DefaultClientSecret)

	w := serve(srv, req)
	require.Equal(t, http.StatusOK, w.Code)

	var tok sandbox.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	return tok.AccessToken
}

func etimsRequest(method, path, body, token string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-TIaaS-Service", "Handshake")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer()

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/actuator/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "UP", response["status"])
	assert.NotEmpty(t, response["time"])
}

func TestTokenEndpoint(t *testing.T) {
	srv := newTestServer()

	token := fetchToken(t, srv)

	assert.NotEmpty(t, token)
	assert.Equal(t, 1, srv.TokenCalls())
}

func TestTokenEndpoint_BadCredentials(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader("grant_type=client_credentials"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("nobody", "wrong")
	w := serve(srv, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_client")
}

func TestTokenEndpoint_ExpiresIn(t *testing.T) {
	srv := sandbox.NewServer(&sandbox.Config{TokenLifetime: 90 * time.Second})

	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader("grant_type=client_credentials"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(sandbox.DefaultClientID, sandbox.DefaultClientSecret)
	w := serve(srv, req)
	require.Equal(t, http.StatusOK, w.Code)

	var tok sandbox.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	assert.Equal(t, int64(90), tok.ExpiresIn)
}

func TestETIMS_RequiresServiceHeader(t *testing.T) {
	srv := newTestServer()
	token := fetchToken(t, srv)

	req := etimsRequest(http.MethodGet, "/v2/etims/compliance/P1", "", token)
	req.Header.Del("X-TIaaS-Service")
	w := serve(srv, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestETIMS_RequiresAuth(t *testing.T) {
	srv := newTestServer()

	w := serve(srv, etimsRequest(http.MethodGet, "/v2/etims/compliance/P1", "", "not-a-token"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestETIMS_ExpiredToken(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	srv := sandbox.NewServer(&sandbox.Config{
		TokenLifetime: time.Minute,
		Now:           func() time.Time { return now },
	})
	token := fetchToken(t, srv)

	now = now.Add(2 * time.Minute)
	w := serve(srv, etimsRequest(http.MethodGet, "/v2/etims/compliance/P1", "", token))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestETIMS_APIKey(t *testing.T) {
	srv := newTestServer()

	req := etimsRequest(http.MethodGet, "/v2/etims/compliance/P051234567X", "", "")
	req.Header.Set("X-API-Key", "sandbox-key")
	w := serve(srv, req)

	require.Equal(t, http.StatusOK, w.Code)
	var status sandbox.ComplianceStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "P051234567X", status.PIN)
	assert.Equal(t, 0, srv.TokenCalls())
}

func TestETIMS_RejectsBothCredentials(t *testing.T) {
	srv := newTestServer()
	token := fetchToken(t, srv)

	req := etimsRequest(http.MethodGet, "/v2/etims/compliance/P1", "", token)
	req.Header.Set("X-API-Key", "sandbox-key")
	w := serve(srv, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSaleEndpoint(t *testing.T) {
	srv := newTestServer()
	token := fetchToken(t, srv)

	w := serve(srv, etimsRequest(http.MethodPost, "/v2/etims/sale", saleJSON, token))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result struct {
		ResultCode string              `json:"resultCd"`
		Data       sandbox.SaleReceipt `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, sandbox.ResultOK, result.ResultCode)
	assert.Equal(t, "INV-1", result.Data.InvoiceNo)
	assert.Equal(t, "1160.00", result.Data.TotalAmount)
	assert.Equal(t, int64(1), result.Data.ReceiptNo)
}

func TestSaleEndpoint_IdempotentReplay(t *testing.T) {
	srv := newTestServer()
	token := fetchToken(t, srv)

	first := etimsRequest(http.MethodPost, "/v2/etims/sale", saleJSON, token)
	first.Header.Set("X-TIaaS-Idempotency-Key", "key-1")
	w1 := serve(srv, first)
	require.Equal(t, http.StatusOK, w1.Code)

	second := etimsRequest(http.MethodPost, "/v2/etims/sale", saleJSON, token)
	second.Header.Set("X-TIaaS-Idempotency-Key", "key-1")
	w2 := serve(srv, second)
	require.Equal(t, http.StatusOK, w2.Code)

	assert.JSONEq(t, w1.Body.String(), w2.Body.String())
	assert.Equal(t, "true", w2.Header().Get(sandbox.HeaderReplay))
	assert.Empty(t, w1.Header().Get(sandbox.HeaderReplay))

	third := etimsRequest(http.MethodPost, "/v2/etims/sale", saleJSON, token)
	third.Header.Set("X-TIaaS-Idempotency-Key", "key-2")
	w3 := serve(srv, third)
	assert.NotEqual(t, w1.Body.String(), w3.Body.String())
}

func TestSaleEndpoint_RejectsDrift(t *testing.T) {
	srv := newTestServer()
	token := fetchToken(t, srv)

	drift := strings.Replace(saleJSON, `"qty": "2", "uprc": "580", "totAmt": "1160"`,
		`"qty": "2", "uprc": "580", "totAmt": "1160.004"`, 1)
	w := serve(srv, etimsRequest(http.MethodPost, "/v2/etims/sale", drift, token))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "line_total")
}

func TestSaleEndpoint_RejectsUnknownField(t *testing.T) {
	srv := newTestServer()
	token := fetchToken(t, srv)

	body := strings.Replace(saleJSON, `"tin":`, `"extra": true, "tin":`, 1)
	w := serve(srv, etimsRequest(http.MethodPost, "/v2/etims/sale", body, token))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "extra")
}

func TestSaleEndpoint_RejectsMissingQuantity(t *testing.T) {
	srv := newTestServer()
	token := fetchToken(t, srv)

	body := strings.Replace(saleJSON, `"qty": "2", `, "", 1)
	w := serve(srv, etimsRequest(http.MethodPost, "/v2/etims/sale", body, token))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "itemList[0].qty")
}

func TestReverseEndpoint_RequiresOriginal(t *testing.T) {
	srv := newTestServer()
	token := fetchToken(t, srv)

	w := serve(srv, etimsRequest(http.MethodPost, "/v2/etims/reverse", saleJSON, token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "orgInvcNo")

	body := strings.Replace(saleJSON, `"tin":`, `"orgInvcNo": "INV-0", "tin":`, 1)
	w = serve(srv, etimsRequest(http.MethodPost, "/v2/etims/reverse", body, token))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestOfflineCeiling(t *testing.T) {
	srv := newTestServer()
	token := fetchToken(t, srv)
	srv.SetOffline(true)

	w := serve(srv, etimsRequest(http.MethodGet, "/v2/etims/compliance/P1", "", token))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/actuator/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	srv.SetOffline(false)
	w = serve(srv, etimsRequest(http.MethodGet, "/v2/etims/compliance/P1", "", token))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOfflineToggleEndpoint(t *testing.T) {
	srv := newTestServer()

	w := serve(srv, httptest.NewRequest(http.MethodPut, "/_sandbox/offline?enabled=true", nil))
	require.Equal(t, http.StatusOK, w.Code)

	token := fetchToken(t, srv)
	w = serve(srv, etimsRequest(http.MethodGet, "/v2/etims/init-handshake", "", token))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serve(srv, httptest.NewRequest(http.MethodPut, "/_sandbox/offline?enabled=maybe", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStockBatchEndpoint(t *testing.T) {
	srv := newTestServer()
	token := fetchToken(t, srv)

	item := `{"tin":"P1","bhfId":"00","itemCd":"KE1","rsonCd":"01","qty":"5"}`
	body := `{"items":[` + item + `,` + item + `]}`
	w := serve(srv, etimsRequest(http.MethodPost, "/v2/etims/stock/batch", body, token))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"count":2`)
}

func TestStockBatchEndpoint_Limit(t *testing.T) {
	srv := newTestServer()
	token := fetchToken(t, srv)

	item := `{"tin":"P1","bhfId":"00","itemCd":"KE1","rsonCd":"01","qty":"5"}`
	items := make([]string, sandbox.MaxBatchItems+1)
	for i := range items {
		items[i] = item
	}
	body := `{"items":[` + strings.Join(items, ",") + `]}`
	w := serve(srv, etimsRequest(http.MethodPost, "/v2/etims/stock/batch", body, token))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFault_StatusTimes(t *testing.T) {
	srv := newTestServer()
	token := fetchToken(t, srv)
	srv.SetFault("/v2/etims/compliance/:pin", sandbox.Fault{Status: http.StatusBadGateway, Times: 1})

	w := serve(srv, etimsRequest(http.MethodGet, "/v2/etims/compliance/P1", "", token))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = serve(srv, etimsRequest(http.MethodGet, "/v2/etims/compliance/P1", "", token))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, srv.Calls("/v2/etims/compliance/:pin"))
}

func TestRecordedRequests(t *testing.T) {
	srv := newTestServer()
	token := fetchToken(t, srv)

	serve(srv, etimsRequest(http.MethodPost, "/v2/etims/sale", saleJSON, token))

	recorded := srv.RequestsTo("/v2/etims/sale")
	require.Len(t, recorded, 1)
	assert.Equal(t, "/v2/etims/sale", recorded[0].Path)
	assert.JSONEq(t, saleJSON, string(recorded[0].Body))

	srv.Reset()
	assert.Empty(t, srv.Requests())
	assert.Equal(t, 0, srv.TokenCalls())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer()
	serve(srv, httptest.NewRequest(http.MethodGet, "/actuator/health", nil))

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `etims_sandbox_requests_total{code="200",route="/actuator/health"} 1`)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	srv := newTestServer()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, ln)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/actuator/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestRun_BadAddress(t *testing.T) {
	srv := sandbox.NewServer(&sandbox.Config{Address: "not-an-address"})

	err := srv.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}

func BenchmarkHealth(b *testing.B) {
	srv := newTestServer()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, "/actuator/health", nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
	}
}
