package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"Tunora/config"
	"Tunora/logger"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tunora",
	Short: "Tunora music catalog: rankings, discovery and play tracking.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context(), loadConfig())
	},
	SilenceUsage: true,
}

// Execute executes the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig 加载配置并初始化日志
func loadConfig() *config.Config {
	cfg := config.Load()
	logger.InitLogger(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogFile,
	})
	return cfg
}
