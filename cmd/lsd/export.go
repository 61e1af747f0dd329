package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/viniciushammett/go-log-stream-detector/internal/export"
	"github.com/viniciushammett/go-log-stream-detector/internal/model"
	"github.com/viniciushammett/go-log-stream-detector/internal/store"
)

func exportCmd(load loader) *cobra.Command {
	var outPath, dbPath string
	var limit int
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the alert history from the bolt store as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			if dbPath == "" {
				dbPath = cfg.Storage.Path
			}
			st, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			var alerts []model.AlertRecord
			if err := st.Iterate(func(a model.AlertRecord) bool {
				alerts = append(alerts, a)
				return limit <= 0 || len(alerts) < limit
			}); err != nil {
				return fmt.Errorf("iterate alerts: %w", err)
			}

			var w io.Writer = os.Stdout
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := export.WriteCSV(w, alerts); err != nil {
				return err
			}
			if w != os.Stdout {
				log.Info().Int("alerts", len(alerts)).Str("db", dbPath).Str("out", outPath).Msg("export finished")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output CSV path, - for stdout")
	cmd.Flags().StringVar(&dbPath, "db", "", "bolt store path (default storage.path)")
	cmd.Flags().IntVar(&limit, "limit", 0, "oldest N alerts only; 0 exports all")
	return cmd
}
