package sandbox

import (
	"net/http"
	"time"
)

// eTIMS result codes
const (
	ResultOK         = "000"
	ResultInvalid    = "910"
	ResultSucceeded  = "It is succeeded"
	ResultDateLayout = "20060102150405"
)

// Result is the eTIMS response envelope
type Result struct {
	ResultCode string      `json:"resultCd"`
	ResultMsg  string      `json:"resultMsg"`
	ResultDate string      `json:"resultDt"`
	Data       interface{} `json:"data,omitempty"`
}

// TokenResponse is the OAuth client-credentials response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse is the response for the actuator health endpoint
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// SaleReceipt is what the authority returns for a signed sale
type SaleReceipt struct {
	ReceiptNo       int64  `json:"rcptNo"`
	InvoiceNo       string `json:"invcNo"`
	InternalData    string `json:"intrlData"`
	ReceiptSign     string `json:"rcptSign"`
	SDCDateTime     string `json:"sdcDateTime"`
	TotalItemCount  int    `json:"totItemCnt"`
	TotalAmount     string `json:"totAmt"`
	OriginalInvoice string `json:"orgInvcNo,omitempty"`
}

// BatchAck acknowledges a stock batch
type BatchAck struct {
	Count int `json:"count"`
}

// ComplianceStatus is the response for the compliance endpoint
type ComplianceStatus struct {
	PIN    string `json:"pin"`
	Status string `json:"status"`
}

// RecordedRequest is a request as the sandbox saw it
type RecordedRequest struct {
	Method string
	Path   string
	Route  string
	Header http.Header
	Body   []byte
	At     time.Time
}

// Fault alters how the sandbox answers a route
type Fault struct {
	// Drop closes the connection after reading the request, without a response
	Drop bool
	// Delay holds the response back
	Delay time.Duration
	// Status answers with this code and an error body instead of handling the request
	Status int
	// Times limits the fault to the next n requests; 0 means until cleared
	Times int
}
