package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/viniciushammett/go-log-stream-detector/internal/api"
	"github.com/viniciushammett/go-log-stream-detector/internal/logger"
	"github.com/viniciushammett/go-log-stream-detector/internal/metrics"
	"github.com/viniciushammett/go-log-stream-detector/internal/report"
	"github.com/viniciushammett/go-log-stream-detector/internal/session"
	"github.com/viniciushammett/go-log-stream-detector/internal/tracing"
)

func serveCmd(load loader) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, dashboard stream and (optionally) an auto-started session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := withSignals()
			defer stop()

			metrics.MustRegister()

			closer, err := tracing.Init(ctx, tracing.Config{
				Enabled:      cfg.Tracing.Enabled,
				ServiceName:  cfg.Tracing.ServiceName,
				OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
				SampleRatio:  cfg.Tracing.SampleRatio,
				Attributes:   map[string]string{"service.version": version, "vcs.revision": commit},
			})
			if err != nil {
				log.Error().Err(err).Msg("tracing init failed")
				closer = func(context.Context) error { return nil }
			}
			defer func() { _ = closer(context.Background()) }()

			hub := api.NewHub(log)
			p, err := buildPipeline(cfg, log, map[string]report.Display{"websocket": hub})
			if err != nil {
				return err
			}
			defer p.close(log)

			if cfg.Monitor.AutoStart && cfg.Monitor.Root != "" {
				if err := p.session.Start(cfg.Monitor.Root, cfg.Monitor.Extensions); err != nil {
					log.Error().Err(err).Str("root", cfg.Monitor.Root).Msg("auto-start failed")
				}
			}

			if cfg.Report.SnapshotCron != "" {
				c := cron.New()
				if _, err := c.AddFunc(cfg.Report.SnapshotCron, func() {
					snapshot(p.session, cfg.Report.SnapshotDir, log)
				}); err != nil {
					return fmt.Errorf("snapshot cron %q: %w", cfg.Report.SnapshotCron, err)
				}
				c.Start()
				defer func() { <-c.Stop().Done() }()
			}

			deps := api.Deps{
				Log: log, Session: p.session, Hub: hub, AuthToken: cfg.Server.AuthToken,
				DefaultRoot: cfg.Monitor.Root, DefaultExts: cfg.Monitor.Extensions,
			}
			if p.store != nil {
				deps.History = p.store
			}
			srv := api.NewServer(deps, api.Config{Addr: cfg.Server.Addr, CORSOrigins: cfg.Server.CORSOrigins})
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// snapshot writes the session's in-memory alert log to dir/alerts-<ts>.csv.
func snapshot(s *session.Session, dir string, log *logger.Logger) {
	if s.Status().Alerts == 0 {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error().Err(err).Msg("snapshot dir")
		return
	}
	path := filepath.Join(dir, "alerts-"+time.Now().UTC().Format("20060102T150405Z")+".csv")
	f, err := os.Create(path)
	if err != nil {
		log.Error().Err(err).Msg("snapshot create")
		return
	}
	defer f.Close()
	if err := s.Export(f); err != nil {
		log.Error().Err(err).Str("path", path).Msg("snapshot export")
		return
	}
	log.Info().Str("path", path).Msg("alert snapshot written")
}
