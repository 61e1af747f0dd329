package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/viniciushammett/go-log-stream-detector/internal/detector"
	"github.com/viniciushammett/go-log-stream-detector/internal/export"
	"github.com/viniciushammett/go-log-stream-detector/internal/parser"
	"github.com/viniciushammett/go-log-stream-detector/internal/rules"
)

func analyzeCmd(load loader) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyse a finished log file offline with sliding windows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			ruleSet, err := rules.LoadFromFile(cfg.RulesFile)
			if err != nil {
				return err
			}
			confirmer, err := loadConfirmer(cfg)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ctx, stop := withSignals()
			defer stop()

			b := detector.Batch{
				Parser:     parser.NewResp(),
				Confirmer:  confirmer,
				Rules:      ruleSet,
				WindowSize: cfg.Monitor.WindowSize,
			}
			alerts, err := b.Run(ctx, f, filepath.Base(args[0]))
			if err != nil {
				return err
			}

			out := &printer{w: os.Stdout}
			out.header()
			for _, a := range alerts {
				out.Show(a)
			}
			log.Info().Str("file", args[0]).Int("alerts", len(alerts)).Msg("analysis finished")

			if outPath == "" {
				return nil
			}
			w, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer w.Close()
			if err := export.WriteCSV(w, alerts); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "also write alerts as CSV")
	return cmd
}
