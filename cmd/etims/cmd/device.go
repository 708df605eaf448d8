package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rezonia/etims-go/internal/model"
	"github.com/rezonia/etims-go/pkg/etims"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the middleware is reachable",
	Long: `Send an unauthenticated GET to /actuator/health.

A refused or unresolvable connection is reported as SERVICE_UNAVAILABLE.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		defer client.Close()

		resp, err := client.Ping(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("middleware reachable", "base_url", client.BaseURL())
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

var handshakeCmd = &cobra.Command{
	Use:   "handshake",
	Short: "Initialize device keys (GET /v2/etims/init-handshake)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		defer client.Close()

		resp, err := client.InitializeDeviceHandshake(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

var initCmd = &cobra.Command{
	Use:   "init <file|->",
	Short: "Initialize a device or branch (category 1)",
	Long: `Initialize a device from a JSON document:

  {"tin": "P051234567X", "bhfId": "00", "dvcSrlNo": "SN-001"}`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var doc etims.DeviceInit
		if err := decodeDocument(cmd, args[0], "device init", &doc); err != nil {
			return err
		}

		client := newClient()
		defer client.Close()

		resp, err := client.InitializeDevice(cmd.Context(), doc)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync <file|->",
	Short: "Pull data changed since lastReqDt (category 2)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var doc etims.DataSyncRequest
		if err := decodeDocument(cmd, args[0], "data sync request", &doc); err != nil {
			return err
		}

		client := newClient()
		defer client.Close()

		resp, err := client.SyncData(cmd.Context(), doc)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

var complianceCmd = &cobra.Command{
	Use:   "compliance <pin>",
	Short: "Check the compliance status of a taxpayer PIN",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		defer client.Close()

		resp, err := client.CheckCompliance(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

func init() {
	rootCmd.AddCommand(pingCmd, handshakeCmd, initCmd, syncCmd, complianceCmd)
}

// decodeDocument strictly decodes the file (or stdin) into v
func decodeDocument(cmd *cobra.Command, path, document string, v interface{}) error {
	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	return model.DecodeStrictBytes(data, document, v)
}
