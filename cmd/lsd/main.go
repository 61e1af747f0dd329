package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/viniciushammett/go-log-stream-detector/internal/config"
	"github.com/viniciushammett/go-log-stream-detector/internal/logger"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var cfgPath, logLevel string

	root := &cobra.Command{
		Use:          "lsd",
		Short:        "Log stream detector: two-stage anomaly detection over growing log files",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", env("CONFIG_PATH", "configs/config.yaml"), "YAML config path")
	root.PersistentFlags().StringVar(&logLevel, "log-level", env("LOG_LEVEL", "info"), "debug|info|warn|error")

	load := func() (*config.Config, *logger.Logger, error) {
		log := logger.New(logLevel)
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, log, err
		}
		return cfg, log, nil
	}

	root.AddCommand(serveCmd(load), watchCmd(load), analyzeCmd(load), exportCmd(load))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lsd %s (%s) %s\n", version, commit, date)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

type loader func() (*config.Config, *logger.Logger, error)

func withSignals() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func env(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
