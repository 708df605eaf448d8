package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rezonia/etims-go/pkg/etims"
)

var itemCmd = &cobra.Command{
	Use:   "item <file|->",
	Short: "Save or update item master data (category 4)",
	Long:  `Save an item read from a JSON file. isUsed defaults to "Y".`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var doc etims.ItemSave
		if err := decodeDocument(cmd, args[0], "item", &doc); err != nil {
			return err
		}

		client := newClient()
		defer client.Close()

		resp, err := client.SaveItem(cmd.Context(), doc)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

var stockCmd = &cobra.Command{
	Use:   "stock <file|->",
	Short: "Record one stock adjustment, transfer or loss (category 8)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var doc etims.StockItem
		if err := decodeDocument(cmd, args[0], "stock item", &doc); err != nil {
			return err
		}

		client := newClient()
		defer client.Close()

		resp, err := client.UpdateStock(cmd.Context(), doc)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

var stockBatchCmd = &cobra.Command{
	Use:   "stock-batch <file|->",
	Short: "Send a JSON array of stock items in chunks",
	Long: `Send stock items to /v2/etims/stock/batch in chunks of --batch-size
(500 by default). A failing chunk is reported and the remaining chunks still
run; the command exits non-zero if any chunk failed.

Examples:
  etims stock-batch stock.json
  etims stock-batch stock.json --batch-concurrency 4`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var items []etims.StockItem
		if err := decodeDocument(cmd, args[0], "stock batch", &items); err != nil {
			return err
		}

		client := newClient()
		defer client.Close()

		results := client.BatchUpdateStock(cmd.Context(), items)
		if err := printJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
		if failed := failedChunks(results); failed > 0 {
			return fmt.Errorf("%d of %d chunks failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(itemCmd, stockCmd, stockBatchCmd)
}

func failedChunks(results []etims.BatchResult) int {
	failed := 0
	for _, r := range results {
		if r.Status == etims.StatusError {
			failed++
		}
	}
	return failed
}
