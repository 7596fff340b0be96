// Command stringsum computes sum-as-string through any of the string_sum
// backends: in-process, the wasm reactor or the wasm command module.
package main

import (
	"os"

	"github.com/conduitio/conduit/pkg/foundation/cerrors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Nokodoko/string-sum/internal/config"
)

var (
	// Global flags
	verbose    bool
	configPath string
	backend    string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "stringsum",
	Short: "Add two non-negative integers and print the sum as a string",
	Long: `stringsum adds two unsigned 64-bit integers and prints the decimal sum.

The sum is computed by the selected backend:
  - native:   in-process Go
  - exported: wasm reactor exporting sum_as_string
  - imported: wasm command module pulling requests from the string_sum host module

Sums that do not fit into 64 bits fail with an overflow error.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if backend != "" {
			cfg.Backend = backend
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return cerrors.Errorf("invalid config: %w", err)
		}

		logger, err = newLogger(cfg.Logging.Level)
		if err != nil {
			return cerrors.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var sumCmd = &cobra.Command{
	Use:   "sum A B",
	Short: "Print the sum of A and B",
	Example: `  stringsum sum 2 3
  stringsum sum --backend exported 18446744073709551614 1`,
	Args: cobra.ExactArgs(2),
	RunE: runSum,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Sum one pair of operands per line read from stdin",
	Long: `Reads lines of two whitespace separated operands from stdin and prints one
sum per line, in input order. Pairs are evaluated concurrently. A pair that
overflows prints "overflow"; a malformed line aborts the batch.`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	return config.Build()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", "", "Backend: native, exported or imported (overrides config)")

	rootCmd.AddCommand(sumCmd, batchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
