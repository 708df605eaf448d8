package etims_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/etims-go/internal/sandbox"
	"github.com/rezonia/etims-go/pkg/etims"
)

func TestBatchUpdateStock_TenThousandItems(t *testing.T) {
	srv, ts := newSandbox(t)
	client := newKeyClient(t, ts.URL)

	start := time.Now()
	results := client.BatchUpdateStock(context.Background(), testStockItems(10000))
	elapsed := time.Since(start)

	require.Len(t, results, 20)
	for i, r := range results {
		assert.Equal(t, i, r.Chunk)
		assert.Equal(t, etims.StatusSuccess, r.Status, r.Message)
		assert.Equal(t, 500, r.Count)
		assert.NoError(t, r.Err)
	}
	assert.Equal(t, 20, srv.Calls(etims.PathStockBatch))
	assert.Less(t, elapsed, 30*time.Second)
}

func TestBatchUpdateStock_ChunkBoundaries(t *testing.T) {
	srv, ts := newSandbox(t)
	client := newKeyClient(t, ts.URL)

	results := client.BatchUpdateStock(context.Background(), testStockItems(1050))

	require.Len(t, results, 3)
	assert.Equal(t, []int{500, 500, 50}, []int{results[0].Count, results[1].Count, results[2].Count})

	// chunk index is item index / chunk size
	batches := srv.RequestsTo(etims.PathStockBatch)
	require.Len(t, batches, 3)
	var body struct {
		Items []etims.StockItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(batches[2].Body, &body))
	require.Len(t, body.Items, 50)
	assert.Equal(t, testStockItems(1050)[1000].ItemCode, body.Items[0].ItemCode)
}

func TestBatchUpdateStock_Empty(t *testing.T) {
	srv, ts := newSandbox(t)
	client := newKeyClient(t, ts.URL)

	results := client.BatchUpdateStock(context.Background(), nil)

	assert.Empty(t, results)
	assert.Equal(t, 0, srv.Calls(etims.PathStockBatch))
}

func TestBatchUpdateStock_ChunkFailureDoesNotAbort(t *testing.T) {
	srv, ts := newSandbox(t)
	srv.SetFault(etims.PathStockBatch, sandbox.Fault{Status: http.StatusInternalServerError, Times: 1})
	client := newKeyClient(t, ts.URL)

	results := client.BatchUpdateStock(context.Background(), testStockItems(1500))

	require.Len(t, results, 3)
	assert.Equal(t, etims.StatusError, results[0].Status)
	assert.Equal(t, 0, results[0].Chunk)
	assert.Contains(t, results[0].Message, "HTTP 500")
	assert.Equal(t, etims.KindHTTPStatus, etims.KindOf(results[0].Err))
	assert.Zero(t, results[0].Count)

	assert.Equal(t, etims.StatusSuccess, results[1].Status)
	assert.Equal(t, etims.StatusSuccess, results[2].Status)
	assert.Equal(t, 3, srv.Calls(etims.PathStockBatch))
}

func TestBatchUpdateStock_InvalidItemFailsItsChunk(t *testing.T) {
	srv, ts := newSandbox(t)
	client := newKeyClient(t, ts.URL)

	items := testStockItems(1200)
	items[600].ItemCode = ""
	results := client.BatchUpdateStock(context.Background(), items)

	require.Len(t, results, 3)
	assert.Equal(t, etims.StatusSuccess, results[0].Status)
	assert.Equal(t, etims.StatusError, results[1].Status)
	assert.Equal(t, etims.KindValidation, etims.KindOf(results[1].Err))
	assert.Equal(t, etims.StatusSuccess, results[2].Status)
	assert.Equal(t, 2, srv.Calls(etims.PathStockBatch))
}

func TestBatchUpdateStock_OfflineEveryChunkRecorded(t *testing.T) {
	srv, ts := newSandbox(t)
	srv.SetOffline(true)
	client := newKeyClient(t, ts.URL)

	results := client.BatchUpdateStock(context.Background(), testStockItems(1000))

	require.Len(t, results, 2)
	for i, r := range results {
		assert.Equal(t, i, r.Chunk)
		assert.Equal(t, etims.StatusError, r.Status)
		assert.Equal(t, etims.KindConnectivityCeiling, etims.KindOf(r.Err))
	}
}

func TestBatchUpdate_ConcurrentKeepsOrder(t *testing.T) {
	srv, ts := newSandbox(t)
	client := newKeyClient(t, ts.URL, etims.WithBatchConcurrency(4))

	stock := testStockItems(2000)
	items := make([]interface{}, len(stock))
	for i := range stock {
		items[i] = stock[i]
	}
	results := client.BatchUpdate(context.Background(), etims.PathStockBatch, items, 100)

	require.Len(t, results, 20)
	for i, r := range results {
		assert.Equal(t, i, r.Chunk)
		assert.Equal(t, etims.StatusSuccess, r.Status, r.Message)
		assert.Equal(t, 100, r.Count)
	}
	assert.Equal(t, 20, srv.Calls(etims.PathStockBatch))
}

func TestBatchUpdate_ClientBatchSize(t *testing.T) {
	srv, ts := newSandbox(t)
	client := newKeyClient(t, ts.URL, etims.WithBatchSize(250))

	results := client.BatchUpdateStock(context.Background(), testStockItems(1000))

	assert.Len(t, results, 4)
	assert.Equal(t, 4, srv.Calls(etims.PathStockBatch))
}

func TestBatchResult_JSON(t *testing.T) {
	ok, err := json.Marshal(etims.BatchResult{Chunk: 2, Status: etims.StatusSuccess, Count: 500})
	require.NoError(t, err)
	assert.JSONEq(t, `{"chunk":2,"status":"success","count":500}`, string(ok))

	failed, err := json.Marshal(etims.BatchResult{Chunk: 3, Status: etims.StatusError, Message: "boom"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"chunk":3,"status":"error","message":"boom"}`, string(failed))
}

func BenchmarkBatchUpdateStock(b *testing.B) {
	srv := sandbox.NewServer(&sandbox.Config{APIKey: sandboxAPIKey})
	ts := newBenchServer(b, srv)
	client := etims.New("", "", etims.WithBaseURL(ts), etims.WithAPIKey(sandboxAPIKey))
	defer client.Close()
	items := testStockItems(5000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		client.BatchUpdateStock(context.Background(), items)
	}
}

func newBenchServer(b *testing.B, srv *sandbox.Server) string {
	b.Helper()
	b.Setenv(etims.EnvAPIURL, "")
	b.Setenv(etims.EnvAPIKey, "")
	ts := httptest.NewServer(srv.Handler())
	b.Cleanup(ts.Close)
	return ts.URL
}
