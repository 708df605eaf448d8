package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/etims-go/internal/decimal"
	"github.com/rezonia/etims-go/internal/sandbox"
	"github.com/rezonia/etims-go/pkg/etims"
)

var dryRunItems int

var dryRunCmd = &cobra.Command{
	Use:   "dry-run",
	Short: "Exercise the client against an in-process sandbox",
	Long: `Start a sandbox on a loopback port and run the client through it:

  1. ping the health endpoint
  2. initialize device keys (handshake)
  3. batch-update --items stock items (20 chunks of 500 by default)
  4. submit the same sale twice with one idempotency key and check the
     second answer is the stored receipt
  5. switch the sandbox offline, check the sale fails with
     CONNECTIVITY_CEILING, then flush it once back online

Exits non-zero if any check fails.`,
	Args: cobra.NoArgs,
	RunE: runDryRun,
}

func init() {
	rootCmd.AddCommand(dryRunCmd)

	dryRunCmd.Flags().IntVar(&dryRunItems, "items", 10000, "Stock items to batch")
}

// dryRun collects check outcomes
type dryRun struct {
	w      io.Writer
	failed int
}

func (d *dryRun) check(name string, ok bool, detail string) {
	if ok {
		fmt.Fprintf(d.w, "✓ %s: %s\n", name, detail)
		return
	}
	d.failed++
	fmt.Fprintf(d.w, "✗ %s: %s\n", name, detail)
}

func runDryRun(cmd *cobra.Command, args []string) error {
	if dryRunItems <= 0 {
		return fmt.Errorf("--items must be positive, got %d", dryRunItems)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	sb := sandbox.NewServer(&sandbox.Config{APIKey: cfg.API.Key})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		cancel()
		return fmt.Errorf("listen: %w", err)
	}
	served := make(chan error, 1)
	go func() {
		served <- sb.Serve(ctx, ln)
	}()
	defer func() {
		cancel()
		if err := <-served; err != nil {
			logger.Warn("sandbox shutdown", "error", err)
		}
	}()

	baseURL := "http://" + ln.Addr().String()
	client := clientFor(sandbox.DefaultClientID, sandbox.DefaultClientSecret, etims.WithBaseURL(baseURL))
	defer client.Close()
	if client.BaseURL() != baseURL {
		return fmt.Errorf("base URL resolved to %s; unset %s to dry-run against the sandbox", client.BaseURL(), etims.EnvAPIURL)
	}

	run := &dryRun{w: cmd.OutOrStdout()}
	fmt.Fprintf(run.w, "Sandbox listening on %s\n", baseURL)

	_, err = client.Ping(ctx)
	run.check("ping", err == nil, errText(err, "health endpoint reachable"))

	_, err = client.InitializeDeviceHandshake(ctx)
	run.check("handshake", err == nil, errText(err, "device keys initialized"))

	dryRunBatch(ctx, run, client)
	dryRunIdempotency(ctx, run, client)
	dryRunOffline(ctx, run, client, sb)

	if run.failed > 0 {
		return fmt.Errorf("dry run: %d checks failed", run.failed)
	}
	fmt.Fprintln(run.w, "Dry run completed")
	return nil
}

func dryRunBatch(ctx context.Context, run *dryRun, client *etims.Client) {
	items := make([]etims.StockItem, dryRunItems)
	qty := decimal.MustFromString("10.0")
	for i := range items {
		items[i] = etims.StockItem{
			TIN:        "P000000000X",
			BranchID:   "00",
			ItemCode:   fmt.Sprintf("ITEM-%05d", i),
			ReasonCode: "01",
			Quantity:   qty,
		}
	}

	start := time.Now()
	results := client.BatchUpdateStock(ctx, items)
	elapsed := time.Since(start)

	want := (dryRunItems + cfg.Batch.Size - 1) / cfg.Batch.Size
	failed := failedChunks(results)
	run.check("batch", len(results) == want && failed == 0,
		fmt.Sprintf("%d items in %d chunks (%d failed) in %s", dryRunItems, len(results), failed, elapsed.Round(time.Millisecond)))
}

func dryRunIdempotency(ctx context.Context, run *dryRun, client *etims.Client) {
	invoice := dryRunSale("DRY-RUN-INV-001")
	key := etims.NewIdempotencyKey()

	first, err := client.SubmitSale(ctx, invoice, key)
	if err != nil {
		run.check("idempotency", false, "first submission: "+err.Error())
		return
	}
	second, err := client.SubmitSale(ctx, invoice, key)
	if err != nil {
		run.check("idempotency", false, "second submission: "+err.Error())
		return
	}

	var a, b struct {
		Data sandbox.SaleReceipt `json:"data"`
	}
	if err := errors.Join(first.Decode(&a), second.Decode(&b)); err != nil {
		run.check("idempotency", false, err.Error())
		return
	}
	replayed := second.Header.Get(sandbox.HeaderReplay) == "true"
	run.check("idempotency", replayed && a.Data.ReceiptNo == b.Data.ReceiptNo,
		fmt.Sprintf("receipt %d then %d (replayed=%t)", a.Data.ReceiptNo, b.Data.ReceiptNo, replayed))
}

func dryRunOffline(ctx context.Context, run *dryRun, client *etims.Client, sb *sandbox.Server) {
	queued := etims.QueuedSale{
		Invoice:        dryRunSale("DRY-RUN-INV-002"),
		IdempotencyKey: etims.NewIdempotencyKey(),
	}

	sb.SetOffline(true)
	_, err := client.SubmitSale(ctx, queued.Invoice, queued.IdempotencyKey)
	sb.SetOffline(false)
	kind := etims.KindOf(err)
	run.check("offline ceiling", kind == etims.KindConnectivityCeiling, fmt.Sprintf("sale classified as %q", kind))

	results := client.FlushOfflineQueue(ctx, []etims.QueuedSale{queued})
	ok := len(results) == 1 && results[0].Status == etims.StatusSuccess
	detail := "queued sale accepted"
	if !ok && len(results) == 1 {
		detail = results[0].Message
	}
	run.check("flush", ok, detail)
}

// dryRunSale is one line at 100.00, 16% VAT inclusive
func dryRunSale(invoiceNo string) etims.SaleInvoice {
	return etims.SaleInvoice{Invoice: etims.Invoice{
		TIN:                "P000000000X",
		BranchID:           "00",
		InvoiceNo:          invoiceNo,
		CustomerName:       "Dry Run Customer",
		ConfirmDate:        time.Now().Format("20060102150405"),
		ReceiptLabel:       etims.ReceiptLabelNormal,
		TotalItemCount:     1,
		TotalTaxableAmount: decimal.MustFromString("86.21"),
		TotalTaxAmount:     decimal.MustFromString("13.79"),
		TotalAmount:        decimal.MustFromString("100.0"),
		Items: []etims.ItemDetail{{
			ItemCode:      "DRY-RUN-ITEM-001",
			ItemName:      "Dry Run Product",
			Quantity:      decimal.MustFromString("1.0"),
			UnitPrice:     decimal.MustFromString("100.0"),
			TotalAmount:   decimal.MustFromString("100.0"),
			TaxType:       etims.TaxTypeA,
			TaxableAmount: decimal.MustFromString("86.21"),
			TaxAmount:     decimal.MustFromString("13.79"),
		}},
	}}
}

func errText(err error, ok string) string {
	if err != nil {
		return err.Error()
	}
	return ok
}
