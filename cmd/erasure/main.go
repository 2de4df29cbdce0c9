package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Davincible/erasure/internal/cli"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "erasure",
		Short: "Reed-Solomon and Cauchy erasure coding for resilient storage",
		Long: `Erasure encodes files into k data fragments plus m parity fragments
over GF(2^w), so that any k of the k+m fragments reconstruct the
original. Up to m fragments can be lost or corrupted without data loss.

Features:
- Reed-Solomon (Vandermonde) and Cauchy coding matrices
- GF(2^8), GF(2^16), and GF(2^32) arithmetic
- Matrix, bit-matrix, and compiled XOR-schedule evaluation
- Fragment store with per-fragment digests and erasure detection
- Optional encrypted manifests`,
		Version: fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			}))
			slog.SetDefault(logger)
		},
	}

	rootCmd.AddCommand(
		cli.NewEncodeCommand(),
		cli.NewDecodeCommand(),
		cli.NewInspectCommand(),
		cli.NewExportCommand(),
		cli.NewImportCommand(),
	)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
