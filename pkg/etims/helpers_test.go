package etims_test

import (
	"fmt"
	"net"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/etims-go/internal/sandbox"
	"github.com/rezonia/etims-go/pkg/etims"
)

const sandboxAPIKey = "sandbox-key"

// clearEnv keeps the developer's TAXID_* settings out of the test
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(etims.EnvAPIURL, "")
	t.Setenv(etims.EnvAPIKey, "")
}

func newSandbox(t *testing.T) (*sandbox.Server, *httptest.Server) {
	t.Helper()
	clearEnv(t)
	srv := sandbox.NewServer(&sandbox.Config{APIKey: sandboxAPIKey})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func newBearerClient(t *testing.T, baseURL string, opts ...etims.Option) *etims.Client {
	t.Helper()
	opts = append([]etims.Option{etims.WithBaseURL(baseURL)}, opts...)
	client := etims.New(sandbox.DefaultClientID, sandbox.DefaultClientSecret, opts...)
	t.Cleanup(func() { client.Close() })
	return client
}

func newKeyClient(t *testing.T, baseURL string, opts ...etims.Option) *etims.Client {
	t.Helper()
	opts = append([]etims.Option{etims.WithBaseURL(baseURL), etims.WithAPIKey(sandboxAPIKey)}, opts...)
	client := etims.New("", "", opts...)
	t.Cleanup(func() { client.Close() })
	return client
}

// refusedURL returns a base URL nothing listens on
func refusedURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return "http://" + addr
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testSale(invoiceNo string) etims.SaleInvoice {
	return etims.SaleInvoice{Invoice: etims.Invoice{
		TIN:                "P051234567X",
		BranchID:           "00",
		InvoiceNo:          invoiceNo,
		CustomerName:       "Walk-in",
		ConfirmDate:        "20260115103000",
		TotalItemCount:     1,
		TotalTaxableAmount: d("258.88"),
		TotalTaxAmount:     d("41.42"),
		TotalAmount:        d("300.30"),
		Items: []etims.ItemDetail{{
			ItemCode:      "KE1NTXU0000001",
			ItemName:      "Maize flour 2kg",
			Quantity:      d("3"),
			UnitPrice:     d("100.1"),
			TotalAmount:   d("300.30"),
			TaxType:       etims.TaxTypeA,
			TaxableAmount: d("258.88"),
			TaxAmount:     d("41.42"),
		}},
	}}
}

func testStockItems(n int) []etims.StockItem {
	items := make([]etims.StockItem, n)
	for i := range items {
		items[i] = etims.StockItem{
			TIN:        "P051234567X",
			BranchID:   "00",
			ItemCode:   fmt.Sprintf("KE1NTXU%07d", i),
			ReasonCode: "01",
			Quantity:   decimal.NewFromInt(int64(i%7 + 1)),
		}
	}
	return items
}
