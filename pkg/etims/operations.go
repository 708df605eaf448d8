package etims

import (
	"context"
	"net/http"

	"github.com/rezonia/etims-go/internal/model"
)

// Middleware endpoints
const (
	PathInitHandshake = "/v2/etims/init-handshake"
	PathInit          = "/v2/etims/init"
	PathSync          = "/v2/etims/sync"
	PathItem          = "/v2/etims/item"
	PathSale          = "/v2/etims/sale"
	PathReverse       = "/v2/etims/reverse"
	PathStock         = "/v2/etims/stock"
	PathStockBatch    = "/v2/etims/stock/batch"
	PathCompliance    = "/v2/etims/compliance/{pin}"
	PathHealth        = "/actuator/health"
)

// post validates doc and sends body to path
func (c *Client) post(ctx context.Context, path, document string, doc model.Validator, body interface{}, idempotencyKey string) (*Response, error) {
	if err := doc.Validate(); err != nil {
		return nil, newValidationError(document, err)
	}
	return c.Do(ctx, Request{
		Method:         http.MethodPost,
		Path:           path,
		Body:           body,
		IdempotencyKey: idempotencyKey,
	})
}

// InitializeDeviceHandshake asks the middleware to initialize device keys
func (c *Client) InitializeDeviceHandshake(ctx context.Context) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: PathInitHandshake})
}

// InitializeDevice initializes a device/branch on eTIMS (category 1)
func (c *Client) InitializeDevice(ctx context.Context, data DeviceInit) (*Response, error) {
	return c.post(ctx, PathInit, "device init", data, data, "")
}

// SyncData pulls codes, items and branches changed since data.LastRequestDate (category 2)
func (c *Client) SyncData(ctx context.Context, data DataSyncRequest) (*Response, error) {
	return c.post(ctx, PathSync, "data sync request", data, data, "")
}

// SaveItem saves or updates item master data (category 4)
func (c *Client) SaveItem(ctx context.Context, data ItemSave) (*Response, error) {
	data = data.WithDefaults()
	return c.post(ctx, PathItem, "item", data, data, "")
}

// SubmitSale submits a sales invoice (category 6). Pass a non-empty
// idempotencyKey to let the server deduplicate retries.
func (c *Client) SubmitSale(ctx context.Context, invoice SaleInvoice, idempotencyKey string) (*Response, error) {
	invoice.Invoice = invoice.Invoice.WithDefaults()
	return c.post(ctx, PathSale, "sale invoice", invoice, invoice, idempotencyKey)
}

// SubmitReverseInvoice submits a credit note against invoice.OriginalInvoiceNo (category 7)
func (c *Client) SubmitReverseInvoice(ctx context.Context, invoice ReverseInvoice, idempotencyKey string) (*Response, error) {
	invoice.Invoice = invoice.Invoice.WithDefaults()
	return c.post(ctx, PathReverse, "reverse invoice", invoice, invoice, idempotencyKey)
}

// UpdateStock records a single stock adjustment, transfer or loss (category 8)
func (c *Client) UpdateStock(ctx context.Context, data StockItem) (*Response, error) {
	return c.post(ctx, PathStock, "stock item", data, data, "")
}

// CheckCompliance verifies the compliance status of a taxpayer PIN
func (c *Client) CheckCompliance(ctx context.Context, pin string) (*Response, error) {
	return c.Do(ctx, Request{
		Method:     http.MethodGet,
		Path:       PathCompliance,
		PathParams: map[string]string{"pin": pin},
	})
}

// Ping checks that the middleware is reachable. It sends no credentials.
func (c *Client) Ping(ctx context.Context) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: PathHealth, SkipAuth: true})
}
