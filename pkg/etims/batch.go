package etims

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/rezonia/etims-go/internal/model"
)

// Outcome statuses for batch and flush records
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// BatchResult is the outcome of one chunk. Chunk is item index / chunk size.
type BatchResult struct {
	Chunk   int    `json:"chunk"`
	Status  string `json:"status"`
	Count   int    `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
	Err     error  `json:"-"`
}

// batchBody is the wire shape of a chunk
type batchBody struct {
	Items []interface{} `json:"items"`
}

// BatchUpdateStock sends stock items to the batch endpoint in chunks of the
// client's batch size. See BatchUpdate.
func (c *Client) BatchUpdateStock(ctx context.Context, items []StockItem) []BatchResult {
	docs := make([]interface{}, len(items))
	for i := range items {
		docs[i] = items[i]
	}
	return c.BatchUpdate(ctx, PathStockBatch, docs, 0)
}

// BatchUpdate splits items into consecutive chunks of at most chunkSize
// (client default when <= 0) and POSTs each as {"items": [...]} to path.
// A failing chunk is recorded and the rest still run, so the result always
// holds one record per chunk in chunk order.
func (c *Client) BatchUpdate(ctx context.Context, path string, items []interface{}, chunkSize int) []BatchResult {
	if chunkSize <= 0 {
		chunkSize = c.batchSize
	}
	chunks := (len(items) + chunkSize - 1) / chunkSize
	results := make([]BatchResult, chunks)

	var g errgroup.Group
	g.SetLimit(c.batchConcurrency)
	for i := 0; i < chunks; i++ {
		start := i * chunkSize
		end := min(start+chunkSize, len(items))
		g.Go(func() error {
			results[i] = c.sendChunk(ctx, path, i, items[start:end])
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Status == StatusError {
			failed++
		}
	}
	c.logger.Info("batch update finished",
		slog.String("path", path),
		slog.Int("items", len(items)),
		slog.Int("chunks", chunks),
		slog.Int("failed_chunks", failed),
	)
	return results
}

func (c *Client) sendChunk(ctx context.Context, path string, index int, chunk []interface{}) BatchResult {
	for _, item := range chunk {
		if v, ok := item.(model.Validator); ok {
			if err := v.Validate(); err != nil {
				return chunkError(index, newValidationError("batch item", err))
			}
		}
	}

	_, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   batchBody{Items: chunk},
	})
	if err != nil {
		return chunkError(index, err)
	}
	return BatchResult{Chunk: index, Status: StatusSuccess, Count: len(chunk)}
}

func chunkError(index int, err error) BatchResult {
	return BatchResult{Chunk: index, Status: StatusError, Message: err.Error(), Err: err}
}
