// Package main 命令行工具入口（writerctl）
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"z-writer-api/internal/config"
	einoobs "z-writer-api/internal/observability/eino"
	"z-writer-api/internal/wire"
	"z-writer-api/pkg/logger"
)

var (
	configDir string
	configEnv string
	logLevel  string
)

// rootCmd writerctl 根命令
var rootCmd = &cobra.Command{
	Use:           "writerctl",
	Short:         "Manage writing projects and run generation from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		_ = godotenv.Load()
		if configEnv != "" {
			if err := os.Setenv("APP_ENV", configEnv); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", config.DefaultDir, "directory holding config.yaml")
	rootCmd.PersistentFlags().StringVar(&configEnv, "config-env", "", "environment overlay to load (sets APP_ENV)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "error", "log level written to stdout")

	rootCmd.AddCommand(migrateCmd, projectCmd, chapterCmd, generateCmd, continueCmd, factsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig 加载配置并初始化日志
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(configDir)
	if err != nil {
		return nil, err
	}
	logger.Init(logLevel, cfg.Observability.Logging.Format)
	return cfg, nil
}

// withServices 初始化应用层服务并在结束后释放
func withServices(ctx context.Context, fn func(svc *wire.Services) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	einoobs.Init()
	svc, cleanup, err := wire.InitializeServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(svc)
}
