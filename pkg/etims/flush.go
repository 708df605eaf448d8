package etims

import (
	"context"
	"log/slog"
)

// QueuedSale is an invoice the caller held back while offline, with the
// idempotency key it was first submitted under (if any)
type QueuedSale struct {
	Invoice        SaleInvoice
	IdempotencyKey string
}

// FlushResult is the outcome of one queued submission
type FlushResult struct {
	InvoiceNo string    `json:"invoice_no"`
	Status    string    `json:"status"`
	Data      *Response `json:"data,omitempty"`
	Message   string    `json:"message,omitempty"`
	Err       error     `json:"-"`
}

// FlushOfflineQueue submits each queued invoice in order, one SubmitSale per
// invoice. A failure is recorded against its invoice and the rest are still
// attempted.
func (c *Client) FlushOfflineQueue(ctx context.Context, queue []QueuedSale) []FlushResult {
	results := make([]FlushResult, 0, len(queue))
	for _, q := range queue {
		resp, err := c.SubmitSale(ctx, q.Invoice, q.IdempotencyKey)
		if err != nil {
			results = append(results, FlushResult{
				InvoiceNo: q.Invoice.InvoiceNo,
				Status:    StatusError,
				Message:   err.Error(),
				Err:       err,
			})
			continue
		}
		results = append(results, FlushResult{
			InvoiceNo: q.Invoice.InvoiceNo,
			Status:    StatusSuccess,
			Data:      resp,
		})
	}

	c.logger.Info("offline queue flushed", slog.Int("invoices", len(queue)))
	return results
}

// FlushInvoices is FlushOfflineQueue for invoices queued without idempotency keys
func (c *Client) FlushInvoices(ctx context.Context, invoices []SaleInvoice) []FlushResult {
	queue := make([]QueuedSale, len(invoices))
	for i, inv := range invoices {
		queue[i] = QueuedSale{Invoice: inv}
	}
	return c.FlushOfflineQueue(ctx, queue)
}
