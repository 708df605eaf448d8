// Package etims is a client for the TIaaS middleware in front of KRA eTIMS.
//
// The client manages the OAuth client-credentials token (or a static API key),
// stamps every request with the SDK service header, strips stray whitespace
// from URLs and headers, and classifies failures so callers know whether a
// retry is safe and whether it must reuse the idempotency key.
//
// Example usage:
//
//	client := etims.New(clientID, clientSecret)
//	defer client.Close()
//
//	key := etims.NewIdempotencyKey()
//	resp, err := client.SubmitSale(ctx, invoice, key)
//	if etims.RequiresSameIdempotencyKey(err) {
//	    resp, err = client.SubmitSale(ctx, invoice, key)
//	}
package etims

import "github.com/rezonia/etims-go/internal/model"

// Re-export document types for public API
type (
	DeviceInit      = model.DeviceInit
	DataSyncRequest = model.DataSyncRequest
	BranchInfo      = model.BranchInfo
	ItemSave        = model.ItemSave
	ImportItem      = model.ImportItem
	ItemDetail      = model.ItemDetail
	Invoice         = model.Invoice
	SaleInvoice     = model.SaleInvoice
	ReverseInvoice  = model.ReverseInvoice
	StockItem       = model.StockItem
	ItemType        = model.ItemType
	TaxType         = model.TaxType
	ReceiptLabel    = model.ReceiptLabel
)

// Re-export item types
const (
	ItemTypeGoods   = model.ItemTypeGoods
	ItemTypeService = model.ItemTypeService
)

// Re-export tax types
const (
	TaxTypeA = model.TaxTypeA
	TaxTypeB = model.TaxTypeB
	TaxTypeC = model.TaxTypeC
	TaxTypeD = model.TaxTypeD
	TaxTypeE = model.TaxTypeE
)

// Re-export receipt labels
const (
	ReceiptLabelNormal   = model.ReceiptLabelNormal
	ReceiptLabelCopy     = model.ReceiptLabelCopy
	ReceiptLabelTraining = model.ReceiptLabelTraining
	ReceiptLabelProforma = model.ReceiptLabelProforma
)

// Re-export document error types
type (
	ValidationError  = model.ValidationError
	ValidationErrors = model.ValidationErrors
	DecodeError      = model.DecodeError
)

// StringPtr is a helper for optional document fields
func StringPtr(s string) *string {
	return model.StringPtr(s)
}
