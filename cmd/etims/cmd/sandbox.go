package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/etims-go/internal/sandbox"
)

var (
	sandboxAddr   string
	sandboxDebug  bool
	readTimeout   time.Duration
	writeTimeout  time.Duration
	sandboxAPIKey string
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Run a local stand-in for the TIaaS middleware",
	Long: `Start an HTTP server that behaves like the TIaaS middleware.

The sandbox provides:
  - POST /oauth/token                - client-credentials exchange
  - GET  /actuator/health            - health check
  - GET  /v2/etims/init-handshake    - device handshake
  - POST /v2/etims/{init,sync,item,sale,reverse,stock,stock/batch}
  - GET  /v2/etims/compliance/{pin}  - compliance status
  - PUT  /_sandbox/offline?enabled=  - toggle the offline ceiling (503)
  - GET  /_sandbox/stats             - call counters
  - GET  /metrics                    - Prometheus metrics

Sales are deduplicated by X-TIaaS-Idempotency-Key.

Examples:
  # Start on the configured address (sandbox.address, default :8080)
  etims sandbox

  # Accept an API key as well as client credentials
  etims sandbox --address :9090 --sandbox-api-key local-key`,
	Args: cobra.NoArgs,
	RunE: runSandbox,
}

func init() {
	rootCmd.AddCommand(sandboxCmd)

	sandboxCmd.Flags().StringVar(&sandboxAddr, "address", "", "Listen address (default sandbox.address)")
	sandboxCmd.Flags().BoolVar(&sandboxDebug, "debug", false, "Enable gin debug logging")
	sandboxCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	sandboxCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 30*time.Second, "HTTP write timeout")
	sandboxCmd.Flags().StringVar(&sandboxAPIKey, "sandbox-api-key", "", "API key the sandbox accepts")
}

func runSandbox(cmd *cobra.Command, args []string) error {
	addr := sandboxAddr
	if addr == "" {
		addr = cfg.Sandbox.Address
	}

	srv := sandbox.NewServer(&sandbox.Config{
		Address:      addr,
		ClientID:     cfg.Client.ID,
		ClientSecret: cfg.Client.Secret,
		APIKey:       sandboxAPIKey,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		Debug:        sandboxDebug,
	})

	logger.Info("starting sandbox", "address", addr)
	if err := srv.Run(cmd.Context()); err != nil {
		return fmt.Errorf("sandbox: %w", err)
	}
	logger.Info("sandbox stopped")
	return nil
}
