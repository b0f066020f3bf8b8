// Package cmd contains the operator commands for symbio.
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"symbio/config"
	"symbio/internal/bootstrap"
	"symbio/internal/store"
	pkgconfig "symbio/pkg/config"
	"symbio/pkg/logger"
)

var (
	env       string
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "symbioctl",
	Short: "Operator tooling for the symbio marketplace",
	Long: `symbioctl runs maintenance tasks against a symbio deployment.

Examples:
  # Apply schema migrations
  symbioctl migrate

  # Recompute credibility scores once
  symbioctl score run

  # Re-publish failed outbox events
  symbioctl outbox replay --failed`,
	SilenceUsage: true,
}

// Execute runs the root command; SIGINT/SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&env, "env", pkgconfig.GetConfigEnv(), "config environment (local, production, ...)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", pkgconfig.GetConfigDir(), "config directory")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(outboxCmd)
}

// runtime 每个子命令共享的依赖
type runtime struct {
	cfg   *config.Config
	log   *zap.Logger
	store store.Store
}

func setup(ctx context.Context) (*runtime, error) {
	cfg, err := config.LoadFrom(env, configDir)
	if err != nil {
		return nil, err
	}
	log := logger.NewLogger(cfg.Log.Level)
	st, err := bootstrap.OpenStore(ctx, cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &runtime{cfg: cfg, log: log, store: st}, nil
}

func (r *runtime) Close() {
	r.store.Close()
	_ = r.log.Sync()
}
