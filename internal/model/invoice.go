package model

import (
	"github.com/shopspring/decimal"
)

// ItemType classifies an item master record
type ItemType string

const (
	ItemTypeGoods   ItemType = "1"
	ItemTypeService ItemType = "2"
)

// TaxType is the eTIMS tax band
type TaxType string

const (
	TaxTypeA TaxType = "A" // 16%
	TaxTypeB TaxType = "B" // 8%
	TaxTypeC TaxType = "C" // exempt
	TaxTypeD TaxType = "D" // zero rated
	TaxTypeE TaxType = "E" // non-VAT
)

// ReceiptLabel marks what kind of receipt the authority prints
type ReceiptLabel string

const (
	ReceiptLabelNormal   ReceiptLabel = "NS"
	ReceiptLabelCopy     ReceiptLabel = "CS"
	ReceiptLabelTraining ReceiptLabel = "TS"
	ReceiptLabelProforma ReceiptLabel = "PS"
)

// Defaults applied when a document leaves the field empty
const (
	DefaultPackageUnitCode  = "UNT"
	DefaultQuantityUnitCode = "U"
	DefaultReceiptTypeCode  = "S"
	DefaultPaymentTypeCode  = "01"
	DefaultIsUsed           = "Y"
)

// DeviceInit initializes a device/branch on eTIMS (category 1)
type DeviceInit struct {
	TIN            string `json:"tin"`
	BranchID       string `json:"bhfId"`
	DeviceSerialNo string `json:"dvcSrlNo"`
}

// DataSyncRequest asks for codes, items and branches changed since LastRequestDate (category 2)
type DataSyncRequest struct {
	TIN             string `json:"tin"`
	BranchID        string `json:"bhfId"`
	LastRequestDate string `json:"lastReqDt"` // YYYYMMDDHHmmss
}

// BranchInfo describes a taxpayer branch (category 3)
type BranchInfo struct {
	TIN        string `json:"tin"`
	BranchID   string `json:"bhfId"`
	BranchName string `json:"bhfNm"`
	OpenDate   string `json:"bhfOpenDt"`
	StatusCode string `json:"bhfSttsCd"`
}

// ItemSave saves or updates item master data (category 4)
type ItemSave struct {
	TIN       string          `json:"tin"`
	BranchID  string          `json:"bhfId"`
	ItemCode  string          `json:"itemCd"`
	ClassCode string          `json:"itemClsCd"`
	Name      string          `json:"itemNm"`
	ItemType  ItemType        `json:"itemTyCd"`
	TaxType   TaxType         `json:"taxTyCd"`
	UnitPrice decimal.Decimal `json:"uprc"`
	IsUsed    string          `json:"isUsed"`
}

// ImportItem is one line of a customs declaration (category 5)
type ImportItem struct {
	TIN           string          `json:"tin"`
	BranchID      string          `json:"bhfId"`
	DeclarationNo string          `json:"dclNo"`
	ItemSeq       int             `json:"itemSeq"`
	ItemCode      string          `json:"itemCd"`
	Quantity      decimal.Decimal `json:"qty"`
	Price         decimal.Decimal `json:"prc"`
}

// ItemDetail is one invoice line
type ItemDetail struct {
	ItemCode         string          `json:"itemCd"`
	ItemName         string          `json:"itemNm"`
	PackageUnitCode  string          `json:"pkgUnitCd"`
	Package          decimal.Decimal `json:"pkg"`
	QuantityUnitCode string          `json:"qtyUnitCd"`
	Quantity         decimal.Decimal `json:"qty"`
	UnitPrice        decimal.Decimal `json:"uprc"`
	TotalAmount      decimal.Decimal `json:"totAmt"`
	TaxType          TaxType         `json:"taxTyCd"`
	TaxableAmount    decimal.Decimal `json:"taxblAmt"`
	TaxAmount        decimal.Decimal `json:"taxAmt"`
}

// Invoice holds the fields shared by sales and reverse invoices
type Invoice struct {
	TIN                string          `json:"tin"`
	BranchID           string          `json:"bhfId"`
	InvoiceNo          string          `json:"invcNo"`
	OriginalInvoiceNo  *string         `json:"orgInvcNo,omitempty"`
	CustomerPIN        *string         `json:"custPin,omitempty"`
	CustomerName       string          `json:"custNm"`
	ReceiptTypeCode    string          `json:"rcptTyCd"`
	PaymentTypeCode    string          `json:"pmtTyCd"`
	ReceiptLabel       ReceiptLabel    `json:"rcptLbel"`
	ConfirmDate        string          `json:"confirmDt"` // YYYYMMDDHHmmss
	TotalItemCount     int             `json:"totItemCnt"`
	TotalTaxableAmount decimal.Decimal `json:"totTaxblAmt"`
	TotalTaxAmount     decimal.Decimal `json:"totTaxAmt"`
	TotalAmount        decimal.Decimal `json:"totAmt"`
	Items              []ItemDetail    `json:"itemList"`
}

// SaleInvoice is a sales invoice (category 6): normal, copy, training or proforma
type SaleInvoice struct {
	Invoice
}

// ReverseInvoice is a credit note reversing OriginalInvoiceNo (category 7)
type ReverseInvoice struct {
	Invoice
}

// StockItem is a stock adjustment, transfer or loss (category 8)
type StockItem struct {
	TIN        string          `json:"tin"`
	BranchID   string          `json:"bhfId"`
	ItemCode   string          `json:"itemCd"`
	ReasonCode string          `json:"rsonCd"`
	Quantity   decimal.Decimal `json:"qty"`
	TIN2       *string         `json:"tin2,omitempty"` // transfer target
	BranchID2  *string         `json:"bhfId2,omitempty"`
}

// WithDefaults fills package and quantity units left empty
func (d ItemDetail) WithDefaults() ItemDetail {
	if d.PackageUnitCode == "" {
		d.PackageUnitCode = DefaultPackageUnitCode
	}
	if d.Package.IsZero() {
		d.Package = decimal.NewFromInt(1)
	}
	if d.QuantityUnitCode == "" {
		d.QuantityUnitCode = DefaultQuantityUnitCode
	}
	return d
}

// WithDefaults fills receipt type, payment type, label and line defaults
func (inv Invoice) WithDefaults() Invoice {
	if inv.ReceiptTypeCode == "" {
		inv.ReceiptTypeCode = DefaultReceiptTypeCode
	}
	if inv.PaymentTypeCode == "" {
		inv.PaymentTypeCode = DefaultPaymentTypeCode
	}
	if inv.ReceiptLabel == "" {
		inv.ReceiptLabel = ReceiptLabelNormal
	}
	if inv.Items == nil {
		inv.Items = []ItemDetail{}
	} else {
		items := make([]ItemDetail, len(inv.Items))
		for i, item := range inv.Items {
			items[i] = item.WithDefaults()
		}
		inv.Items = items
	}
	return inv
}

// WithDefaults marks the item as in use unless set
func (s ItemSave) WithDefaults() ItemSave {
	if s.IsUsed == "" {
		s.IsUsed = DefaultIsUsed
	}
	return s
}

// Numeric and list keys must be sent even when zero; a missing one would
// otherwise decode as zero and pass validation.

func (s ItemSave) requiredKeys() []string { return []string{"uprc"} }

func (i ImportItem) requiredKeys() []string { return []string{"itemSeq", "qty", "prc"} }

func (d ItemDetail) requiredKeys() []string {
	return []string{"qty", "uprc", "totAmt", "taxblAmt", "taxAmt"}
}

func (inv Invoice) requiredKeys() []string {
	return []string{"totItemCnt", "totTaxblAmt", "totTaxAmt", "totAmt", "itemList"}
}

func (s StockItem) requiredKeys() []string { return []string{"qty"} }

// StringPtr is a helper for optional document fields
func StringPtr(s string) *string {
	return &s
}
