package sandbox

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rezonia/etims-go/internal/model"
)

// HeaderReplay marks a sale answered from the idempotency store
const HeaderReplay = "X-TIaaS-Idempotent-Replay"

func (s *Server) ok(data interface{}) Result {
	return Result{
		ResultCode: ResultOK,
		ResultMsg:  ResultSucceeded,
		ResultDate: s.config.Now().Format(ResultDateLayout),
		Data:       data,
	}
}

// reject answers 400 with the eTIMS invalid-data envelope
func (s *Server) reject(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, Result{
		ResultCode: ResultInvalid,
		ResultMsg:  err.Error(),
		ResultDate: s.config.Now().Format(ResultDateLayout),
	})
}

// decode strictly decodes and validates the request body into doc
func decode[T model.Validator](c *gin.Context, document string, doc *T) error {
	if err := model.DecodeStrict(c.Request.Body, document, doc); err != nil {
		return err
	}
	return (*doc).Validate()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "UP",
		Time:   s.config.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSetOffline(c *gin.Context) {
	enabled, err := strconv.ParseBool(c.DefaultQuery("enabled", "true"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "enabled must be a boolean"})
		return
	}
	s.SetOffline(enabled)
	c.JSON(http.StatusOK, gin.H{"offline": enabled})
}

func (s *Server) handleStats(c *gin.Context) {
	s.mu.Lock()
	calls := make(map[string]int, len(s.calls))
	for k, v := range s.calls {
		calls[k] = v
	}
	offline := s.offline
	sales := len(s.sales)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"calls":            calls,
		"offline":          offline,
		"idempotent_sales": sales,
	})
}

func (s *Server) handleToken(c *gin.Context) {
	id, secret, ok := c.Request.BasicAuth()
	if !ok || id != s.config.ClientID || secret != s.config.ClientSecret {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid_client"})
		return
	}
	if c.PostForm("grant_type") != "client_credentials" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unsupported_grant_type"})
		return
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = s.config.Now().Add(s.config.TokenLifetime)
	s.mu.Unlock()

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.config.TokenLifetime / time.Second),
	})
}

func (s *Server) handleInitHandshake(c *gin.Context) {
	c.JSON(http.StatusOK, s.ok(gin.H{"handshake": "initialized"}))
}

func (s *Server) handleInit(c *gin.Context) {
	var doc model.DeviceInit
	if err := decode(c, "device init", &doc); err != nil {
		s.reject(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ok(gin.H{
		"tin":      doc.TIN,
		"bhfId":    doc.BranchID,
		"dvcSrlNo": doc.DeviceSerialNo,
		"sdcId":    "KRACU" + doc.DeviceSerialNo,
	}))
}

func (s *Server) handleSync(c *gin.Context) {
	var doc model.DataSyncRequest
	if err := decode(c, "data sync request", &doc); err != nil {
		s.reject(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ok(gin.H{
		"lastReqDt": s.config.Now().Format(ResultDateLayout),
		"itemList":  []interface{}{},
		"bhfList":   []model.BranchInfo{},
	}))
}

func (s *Server) handleItem(c *gin.Context) {
	var doc model.ItemSave
	if err := decode(c, "item", &doc); err != nil {
		s.reject(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ok(gin.H{"itemCd": doc.ItemCode}))
}

func (s *Server) handleSale(c *gin.Context) {
	key := c.GetHeader("X-TIaaS-Idempotency-Key")
	if key != "" {
		s.mu.Lock()
		prior, seen := s.sales[key]
		s.mu.Unlock()
		if seen {
			c.Header(HeaderReplay, "true")
			c.JSON(http.StatusOK, prior)
			return
		}
	}

	var doc model.SaleInvoice
	if err := decode(c, "sale invoice", &doc); err != nil {
		s.reject(c, err)
		return
	}

	result := s.ok(s.sign(doc.Invoice))
	if key != "" {
		s.mu.Lock()
		if prior, seen := s.sales[key]; seen {
			result = prior
		} else {
			s.sales[key] = result
		}
		s.mu.Unlock()
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleReverse(c *gin.Context) {
	var doc model.ReverseInvoice
	if err := decode(c, "reverse invoice", &doc); err != nil {
		s.reject(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ok(s.sign(doc.Invoice)))
}

// sign issues the next receipt number for an invoice
func (s *Server) sign(inv model.Invoice) SaleReceipt {
	s.mu.Lock()
	s.receiptSeq++
	seq := s.receiptSeq
	s.mu.Unlock()

	receipt := SaleReceipt{
		ReceiptNo:      seq,
		InvoiceNo:      inv.InvoiceNo,
		InternalData:   uuid.NewString(),
		ReceiptSign:    fmt.Sprintf("SBX%012d", seq),
		SDCDateTime:    s.config.Now().Format(ResultDateLayout),
		TotalItemCount: len(inv.Items),
		TotalAmount:    inv.TotalAmount.StringFixed(2),
	}
	if inv.OriginalInvoiceNo != nil {
		receipt.OriginalInvoice = *inv.OriginalInvoiceNo
	}
	return receipt
}

func (s *Server) handleStock(c *gin.Context) {
	var doc model.StockItem
	if err := decode(c, "stock item", &doc); err != nil {
		s.reject(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ok(gin.H{"itemCd": doc.ItemCode}))
}

type stockBatch struct {
	Items []model.StockItem `json:"items"`
}

func (b stockBatch) Validate() error {
	if len(b.Items) > MaxBatchItems {
		return fmt.Errorf("batch holds %d items, limit is %d", len(b.Items), MaxBatchItems)
	}
	var errs []error
	for i, item := range b.Items {
		if err := item.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("items[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Server) handleStockBatch(c *gin.Context) {
	var doc stockBatch
	if err := decode(c, "stock batch", &doc); err != nil {
		s.reject(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ok(BatchAck{Count: len(doc.Items)}))
}

func (s *Server) handleCompliance(c *gin.Context) {
	c.JSON(http.StatusOK, ComplianceStatus{
		PIN:    c.Param("pin"),
		Status: "compliant",
	})
}
