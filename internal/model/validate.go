package model

import (
	"fmt"
	"strings"

	"github.com/rezonia/etims-go/internal/decimal"
)

// Validator is implemented by every outbound document
type Validator interface {
	Validate() error
}

func requireString(errs ValidationErrors, field, value string) ValidationErrors {
	if strings.TrimSpace(value) == "" {
		return append(errs, NewValidationError(field, nil, RuleRequired, "must not be empty"))
	}
	return errs
}

func validTaxType(t TaxType) bool {
	switch t {
	case TaxTypeA, TaxTypeB, TaxTypeC, TaxTypeD, TaxTypeE:
		return true
	}
	return false
}

func validItemType(t ItemType) bool {
	return t == ItemTypeGoods || t == ItemTypeService
}

func validReceiptLabel(l ReceiptLabel) bool {
	switch l {
	case ReceiptLabelNormal, ReceiptLabelCopy, ReceiptLabelTraining, ReceiptLabelProforma:
		return true
	}
	return false
}

// Validate checks device identity fields
func (d DeviceInit) Validate() error {
	var errs ValidationErrors
	errs = requireString(errs, "tin", d.TIN)
	errs = requireString(errs, "bhfId", d.BranchID)
	errs = requireString(errs, "dvcSrlNo", d.DeviceSerialNo)
	return errs.orNil()
}

func (r DataSyncRequest) Validate() error {
	var errs ValidationErrors
	errs = requireString(errs, "tin", r.TIN)
	errs = requireString(errs, "bhfId", r.BranchID)
	errs = requireString(errs, "lastReqDt", r.LastRequestDate)
	return errs.orNil()
}

func (b BranchInfo) Validate() error {
	var errs ValidationErrors
	errs = requireString(errs, "tin", b.TIN)
	errs = requireString(errs, "bhfId", b.BranchID)
	errs = requireString(errs, "bhfNm", b.BranchName)
	return errs.orNil()
}

// Validate checks enums and that the unit price is not negative
func (s ItemSave) Validate() error {
	var errs ValidationErrors
	errs = requireString(errs, "tin", s.TIN)
	errs = requireString(errs, "bhfId", s.BranchID)
	errs = requireString(errs, "itemCd", s.ItemCode)
	errs = requireString(errs, "itemNm", s.Name)
	if !validItemType(s.ItemType) {
		errs = append(errs, NewValidationError("itemTyCd", s.ItemType, RuleEnum, "must be 1 (goods) or 2 (service)"))
	}
	if !validTaxType(s.TaxType) {
		errs = append(errs, NewValidationError("taxTyCd", s.TaxType, RuleEnum, "must be one of A, B, C, D, E"))
	}
	if !decimal.IsNonNegative(s.UnitPrice) {
		errs = append(errs, NewValidationError("uprc", s.UnitPrice.String(), RuleNonNegative, "must not be negative"))
	}
	return errs.orNil()
}

func (i ImportItem) Validate() error {
	var errs ValidationErrors
	errs = requireString(errs, "tin", i.TIN)
	errs = requireString(errs, "bhfId", i.BranchID)
	errs = requireString(errs, "dclNo", i.DeclarationNo)
	errs = requireString(errs, "itemCd", i.ItemCode)
	if !decimal.IsNonNegative(i.Quantity) {
		errs = append(errs, NewValidationError("qty", i.Quantity.String(), RuleNonNegative, "must not be negative"))
	}
	if !decimal.IsNonNegative(i.Price) {
		errs = append(errs, NewValidationError("prc", i.Price.String(), RuleNonNegative, "must not be negative"))
	}
	return errs.orNil()
}

// Validate enforces the exact-decimal line rules.
//
// totAmt must equal qty*uprc rounded half-up to cents with no tolerance,
// and taxblAmt+taxAmt must equal totAmt at cent precision.
func (d ItemDetail) Validate() error {
	return d.validate("")
}

func (d ItemDetail) validate(prefix string) error {
	var errs ValidationErrors
	errs = requireString(errs, prefix+"itemCd", d.ItemCode)
	errs = requireString(errs, prefix+"itemNm", d.ItemName)
	if !validTaxType(d.TaxType) {
		errs = append(errs, NewValidationError(prefix+"taxTyCd", d.TaxType, RuleEnum, "must be one of A, B, C, D, E"))
	}

	expected := decimal.LineTotal(d.Quantity, d.UnitPrice)
	if !decimal.ExactlyEqual(d.TotalAmount, expected) {
		errs = append(errs, NewValidationError(prefix+"totAmt", d.TotalAmount.String(), RuleLineTotal,
			fmt.Sprintf("must equal qty x uprc = %s", expected.StringFixed(decimal.MoneyPlaces))))
	}

	split := d.TaxableAmount.Add(d.TaxAmount)
	if !decimal.EqualAtCents(split, d.TotalAmount) {
		errs = append(errs, NewValidationError(prefix+"taxAmt", split.String(), RuleTaxSplit,
			fmt.Sprintf("taxblAmt + taxAmt must equal totAmt %s", d.TotalAmount.String())))
	}
	return errs.orNil()
}

// Validate checks identity fields, every line, and that totAmt equals the line sum
func (inv Invoice) Validate() error {
	var errs ValidationErrors
	errs = requireString(errs, "tin", inv.TIN)
	errs = requireString(errs, "bhfId", inv.BranchID)
	errs = requireString(errs, "invcNo", inv.InvoiceNo)
	errs = requireString(errs, "custNm", inv.CustomerName)
	errs = requireString(errs, "confirmDt", inv.ConfirmDate)
	if inv.ReceiptLabel != "" && !validReceiptLabel(inv.ReceiptLabel) {
		errs = append(errs, NewValidationError("rcptLbel", inv.ReceiptLabel, RuleEnum, "must be one of NS, CS, TS, PS"))
	}

	lineTotals := make([]decimal.Decimal, 0, len(inv.Items))
	for i, item := range inv.Items {
		if err := item.validate(fmt.Sprintf("itemList[%d].", i)); err != nil {
			errs = append(errs, err.(ValidationErrors)...)
		}
		lineTotals = append(lineTotals, item.TotalAmount)
	}

	sum := decimal.Sum(lineTotals)
	if !decimal.EqualAtCents(inv.TotalAmount, sum) {
		errs = append(errs, NewValidationError("totAmt", inv.TotalAmount.String(), RuleInvoiceTotal,
			fmt.Sprintf("must equal the sum of line totals %s", sum.StringFixed(decimal.MoneyPlaces))))
	}
	return errs.orNil()
}

// Validate requires orgInvcNo on top of the invoice rules
func (r ReverseInvoice) Validate() error {
	var errs ValidationErrors
	if err := r.Invoice.Validate(); err != nil {
		errs = append(errs, err.(ValidationErrors)...)
	}
	if r.OriginalInvoiceNo == nil || strings.TrimSpace(*r.OriginalInvoiceNo) == "" {
		errs = append(errs, NewValidationError("orgInvcNo", nil, RuleRequired, "reverse invoice must reference the original invoice"))
	}
	return errs.orNil()
}

func (s StockItem) Validate() error {
	var errs ValidationErrors
	errs = requireString(errs, "tin", s.TIN)
	errs = requireString(errs, "bhfId", s.BranchID)
	errs = requireString(errs, "itemCd", s.ItemCode)
	errs = requireString(errs, "rsonCd", s.ReasonCode)
	return errs.orNil()
}
