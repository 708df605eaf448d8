package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/rezonia/etims-go/internal/config"
	"github.com/rezonia/etims-go/internal/metrics"
	"github.com/rezonia/etims-go/pkg/etims"
)

var (
	version = "1.0.0"

	// Global flags
	verbose     bool
	configFile  string
	dumpMetrics bool

	// Resolved in PersistentPreRunE
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
)

// flagKeys maps global flags onto configuration keys. Only flags the user set
// are applied, so a default never masks the file or the environment.
var flagKeys = map[string]string{
	"api-url":           "api.url",
	"api-key":           "api.key",
	"client-id":         "client.id",
	"client-secret":     "client.secret",
	"timeout":           "timeout",
	"batch-size":        "batch.size",
	"batch-concurrency": "batch.concurrency",
	"rate-limit":        "rate.limit",
	"rate-burst":        "rate.burst",
	"log-level":         "log.level",
}

var rootCmd = &cobra.Command{
	Use:   "etims",
	Short: "Submit KRA eTIMS documents through the TIaaS middleware",
	Long: `etims is a CLI for the TIaaS eTIMS middleware.

It authenticates with client credentials (or an API key), submits sales,
reverse invoices, items and stock movements, and classifies every failure
so offline-first callers know whether to retry, queue, or resubmit with the
same idempotency key.

Configuration (later wins): defaults, --config YAML file, TAXID_* environment
variables, flags. TAXID_API_URL and TAXID_API_KEY always take precedence over
the matching flags.

Examples:
  # Check the middleware is reachable
  etims ping

  # Submit a sale, retrying safely with the same key
  etims sale invoice.json --idempotency-key 6f1c...

  # Push a stock file in 500-item chunks
  etims stock-batch stock.json

  # Exercise the client against an in-process sandbox
  etims dry-run`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if !dumpMetrics {
			return nil
		}
		return writeMetrics(cmd.ErrOrStderr())
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel its context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	flags.BoolVar(&dumpMetrics, "metrics", false, "Print client metrics to stderr on exit")

	flags.String("api-url", "", "Middleware base URL (env: TAXID_API_URL)")
	flags.String("api-key", "", "API key; replaces client credentials (env: TAXID_API_KEY)")
	flags.String("client-id", "", "OAuth client id (env: TAXID_CLIENT_ID)")
	flags.String("client-secret", "", "OAuth client secret (env: TAXID_CLIENT_SECRET)")
	flags.Duration("timeout", etims.DefaultTimeout, "Per-request timeout")
	flags.Int("batch-size", etims.DefaultBatchSize, "Items per batch chunk")
	flags.Int("batch-concurrency", 1, "Batch chunks in flight")
	flags.Float64("rate-limit", 0, "Requests per second (0 disables pacing)")
	flags.Int("rate-burst", 1, "Burst size for --rate-limit")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	overrides := make(map[string]any)
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			overrides[key] = f.Value.String()
		}
	}

	loaded, err := config.NewLoader(
		config.WithConfigFile(configFile),
		config.WithOverrides(overrides),
	).Load()
	if err != nil {
		return err
	}
	cfg = loaded

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	registry = prometheus.NewRegistry()
	return nil
}

// newClient builds a client from the resolved configuration
func newClient(extra ...etims.Option) *etims.Client {
	return clientFor(cfg.Client.ID, cfg.Client.Secret, extra...)
}

func clientFor(clientID, clientSecret string, extra ...etims.Option) *etims.Client {
	opts := append(cfg.ClientOptions(),
		etims.WithLogger(logger),
		etims.WithObserver(metrics.NewObserver(registry)),
	)
	opts = append(opts, extra...)
	return etims.New(clientID, clientSecret, opts...)
}

func writeMetrics(w io.Writer) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// readInput reads a file argument, or stdin for "-"
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if strings.TrimSpace(path) == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}
