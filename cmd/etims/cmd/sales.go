package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rezonia/etims-go/pkg/etims"
)

var idempotencyKey string

var saleCmd = &cobra.Command{
	Use:   "sale <file|->",
	Short: "Submit a sales invoice (category 6)",
	Long: `Submit a sales invoice read from a JSON file.

Amounts are checked before sending: each line's totAmt must equal qty x uprc
rounded half-up to 2 places, taxblAmt + taxAmt must equal totAmt, and the
invoice totAmt must equal the sum of its lines.

Without --idempotency-key a fresh key is generated and logged. If the result
is AMBIGUOUS_STATE, run the command again with that key.

Examples:
  etims sale invoice.json
  etims sale invoice.json --idempotency-key 0b6e2f3c-...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var doc etims.SaleInvoice
		if err := decodeDocument(cmd, args[0], "sale invoice", &doc); err != nil {
			return err
		}

		client := newClient()
		defer client.Close()

		key := resolveKey()
		resp, err := client.SubmitSale(cmd.Context(), doc, key)
		if err != nil {
			return withRetryHint(err, key)
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

var reverseCmd = &cobra.Command{
	Use:   "reverse <file|->",
	Short: "Submit a reverse invoice / credit note (category 7)",
	Long: `Submit a reverse invoice read from a JSON file. The document must carry
orgInvcNo, the number of the invoice being reversed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var doc etims.ReverseInvoice
		if err := decodeDocument(cmd, args[0], "reverse invoice", &doc); err != nil {
			return err
		}

		client := newClient()
		defer client.Close()

		key := resolveKey()
		resp, err := client.SubmitReverseInvoice(cmd.Context(), doc, key)
		if err != nil {
			return withRetryHint(err, key)
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

// queueEntry is one line of an offline queue file
type queueEntry struct {
	Invoice        etims.SaleInvoice `json:"invoice"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

var flushCmd = &cobra.Command{
	Use:   "flush <file|->",
	Short: "Submit an offline queue of sales, in order",
	Long: `Submit every sale in a queue file, one at a time and in order. A failure is
recorded against its invoice and the rest are still attempted.

The file is a JSON array:

  [{"invoice": {...}, "idempotency_key": "..."}, ...]

Entries without a key are sent without one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var entries []queueEntry
		if err := decodeDocument(cmd, args[0], "offline queue", &entries); err != nil {
			return err
		}

		queue := make([]etims.QueuedSale, len(entries))
		for i, e := range entries {
			queue[i] = etims.QueuedSale{Invoice: e.Invoice, IdempotencyKey: e.IdempotencyKey}
		}

		client := newClient()
		defer client.Close()

		results := client.FlushOfflineQueue(cmd.Context(), queue)
		if err := printJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}

		failed := 0
		for _, r := range results {
			if r.Status == etims.StatusError {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d queued sales failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(saleCmd, reverseCmd, flushCmd)

	for _, c := range []*cobra.Command{saleCmd, reverseCmd} {
		c.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency key (generated when empty)")
	}
}

func resolveKey() string {
	if idempotencyKey != "" {
		return idempotencyKey
	}
	key := etims.NewIdempotencyKey()
	logger.Info("generated idempotency key", "key", key)
	return key
}

// withRetryHint tells the user which key to resubmit with
func withRetryHint(err error, key string) error {
	if etims.RequiresSameIdempotencyKey(err) {
		return fmt.Errorf("%w\nresubmit with --idempotency-key %s", err, key)
	}
	return err
}
