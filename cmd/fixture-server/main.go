// Command fixture-server runs the canned-response LSP server over
// stdio. It exists so harness tests can exercise the full subprocess
// pipeline; response variants are controlled by the RESPONSE_NUM.txt
// side-channel in the test root, not by flags.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/WillLillis/lspresso-shot/internal/fixture"
)

var (
	Version = "dev"

	flagLogLevel       string
	flagProgressCycles int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fixture-server",
		Short: "Canned-response LSP server for lspresso-shot tests",
		Long: `fixture-server speaks the Language Server Protocol over stdio and
answers every request with a canned response variant selected through
the RESPONSE_NUM.txt side-channel in the test root.`,
		RunE: runServer,
	}

	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.Flags().IntVar(&flagProgressCycles, "progress-cycles", -1, "progress begin/end pairs to emit after initialized")
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the fixture-server version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fixture-server %s\n", Version)
	},
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := fixture.LoadConfig()
	if err != nil {
		return err
	}
	// Flags win over config/env.
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagProgressCycles >= 0 {
		cfg.ProgressCycles = flagProgressCycles
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting fixture server",
		zap.String("version", Version),
		zap.Int("progress_cycles", cfg.ProgressCycles))

	return fixture.Serve(context.Background(), stdrwc{}, fixture.Options{
		Logger:         logger,
		ProgressCycles: cfg.ProgressCycles,
	})
}

// buildLogger logs to stderr only; stdout carries the protocol stream.
func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

// stdrwc adapts process stdio to the ReadWriteCloser the jsonrpc2
// stream wants.
type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdrwc) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}
