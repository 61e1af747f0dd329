package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/viniciushammett/go-log-stream-detector/internal/report"
)

func watchCmd(load loader) *cobra.Command {
	var exts []string
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Monitor a directory headless and print alerts until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			if len(exts) == 0 {
				exts = cfg.Monitor.Extensions
			}
			ctx, stop := withSignals()
			defer stop()

			out := &printer{w: os.Stdout}
			out.header()
			p, err := buildPipeline(cfg, log, map[string]report.Display{"terminal": out})
			if err != nil {
				return err
			}
			if err := p.session.Start(args[0], exts); err != nil {
				p.close(log)
				return err
			}

			<-ctx.Done()
			log.Info().Msg("interrupt received, stopping session")
			p.close(log)
			log.Info().Int("alerts", len(p.session.Alerts())).Msg("done")
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&exts, "ext", nil, "file extensions to watch (default from config)")
	return cmd
}

