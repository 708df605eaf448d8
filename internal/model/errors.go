package model

import (
	"fmt"
	"strings"
)

// Validation rule identifiers
const (
	RuleRequired     = "required"
	RuleEnum         = "enum"
	RuleLineTotal    = "line_total"
	RuleTaxSplit     = "tax_split"
	RuleInvoiceTotal = "invoice_total"
	RuleNonNegative  = "non_negative"
	RuleUnknownField = "unknown_field"
)

// DecodeError represents failures turning raw JSON into a document
type DecodeError struct {
	Document string
	Message  string
	Cause    error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", e.Document, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Document, e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// NewDecodeError creates a new decode error
func NewDecodeError(document, message string, cause error) *DecodeError {
	return &DecodeError{
		Document: document,
		Message:  message,
		Cause:    cause,
	}
}

// ValidationError represents a single rule violation on a document field
type ValidationError struct {
	Field   string
	Value   interface{}
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed on %s: %s (value=%v, rule=%s)", e.Field, e.Message, e.Value, e.Rule)
	}
	return fmt.Sprintf("validation failed on %s: %s (rule=%s)", e.Field, e.Message, e.Rule)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, rule, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Rule:    rule,
		Message: message,
	}
}

// ValidationErrors collects every violation found on one document
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return fmt.Sprintf("%d validation errors: %s", len(e), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual violations to errors.As
func (e ValidationErrors) Unwrap() []error {
	errs := make([]error, 0, len(e))
	for _, v := range e {
		errs = append(errs, v)
	}
	return errs
}

// orNil returns nil for an empty set so callers can return it as error directly
func (e ValidationErrors) orNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
