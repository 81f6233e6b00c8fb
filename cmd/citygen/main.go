package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose      bool
	configDir    string
	dataDir      string
	tuningPath   string
	indexBackend string
	indexURL     string
	indexToken   string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "citygen",
	Short: "Synthetic city traffic scene generator",
	Long: `citygen plans vehicle paths through a grid city, resolves collisions by
priority and decides whether the resulting scene is worth rendering.

Scenes are written as snapshots, appended to the scene log, indexed and,
when worth rendering, archived under the data directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "configs", "./configs", "Config directory (vehicles.json, tuning.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "./data", "Runtime data directory")
	rootCmd.PersistentFlags().StringVar(&tuningPath, "tuning", "", "Path to tuning.yaml (default: <configs>/tuning.yaml)")
	rootCmd.PersistentFlags().StringVar(&indexBackend, "index", envOr("CITYGEN_INDEX_BACKEND", "sqlite"), "Scene index backend: sqlite, remote or none")
	rootCmd.PersistentFlags().StringVar(&indexURL, "index-url", envOr("CITYGEN_INDEX_INGEST_URL", ""), "Ingest endpoint for the remote index backend")
	rootCmd.PersistentFlags().StringVar(&indexToken, "index-token", envOr("CITYGEN_INDEX_TOKEN", ""), "Token sent to the remote index backend")

	rootCmd.AddCommand(gridCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
