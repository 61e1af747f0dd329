package main

import (
	"context"
	"time"

	"github.com/viniciushammett/go-log-stream-detector/internal/config"
	"github.com/viniciushammett/go-log-stream-detector/internal/detector"
	"github.com/viniciushammett/go-log-stream-detector/internal/export"
	"github.com/viniciushammett/go-log-stream-detector/internal/logger"
	"github.com/viniciushammett/go-log-stream-detector/internal/ml"
	"github.com/viniciushammett/go-log-stream-detector/internal/notify"
	"github.com/viniciushammett/go-log-stream-detector/internal/parser"
	"github.com/viniciushammett/go-log-stream-detector/internal/report"
	"github.com/viniciushammett/go-log-stream-detector/internal/rules"
	"github.com/viniciushammett/go-log-stream-detector/internal/session"
	"github.com/viniciushammett/go-log-stream-detector/internal/store"
)

type pipeline struct {
	reporter *report.Reporter
	session  *session.Session
	store    *store.Store
}

func loadConfirmer(cfg *config.Config) (*ml.Reconstructor, error) {
	p, err := ml.LoadProfile(cfg.Confirmer.ModelPath, cfg.Monitor.WindowSize)
	if err != nil {
		return nil, err
	}
	if cfg.Confirmer.Threshold > 0 {
		p.Threshold = cfg.Confirmer.Threshold
	}
	return ml.NewReconstructor(p), nil
}

// buildPipeline wires sinks, displays and the session from cfg. Displays
// passed in are registered after Slack.
func buildPipeline(cfg *config.Config, log *logger.Logger, displays map[string]report.Display) (*pipeline, error) {
	// Rules
	ruleSet, err := rules.LoadFromFile(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	// ML
	confirmer, err := loadConfirmer(cfg)
	if err != nil {
		return nil, err
	}

	// Sinks
	rep := report.New(log, cfg.Report.DisplayBuffer)
	p := &pipeline{reporter: rep}

	if cfg.Report.CSVPath != "" {
		csvSink, err := export.OpenFile(cfg.Report.CSVPath)
		if err != nil {
			return nil, err
		}
		rep.AddSink("csv", csvSink)
	}
	if cfg.Storage.Path != "" {
		db, err := store.Open(cfg.Storage.Path)
		if err != nil {
			_ = rep.Close(context.Background())
			return nil, err
		}
		rep.AddSink("bolt", db)
		p.store = db
	}

	// Notifier
	slack := notify.NewSlack(cfg.Slack.Enabled, cfg.Slack.Webhook, log)
	if slack.Enabled() {
		rep.AddDisplay("slack", slack)
	}
	for name, d := range displays {
		rep.AddDisplay(name, d)
	}

	// Session
	p.session = session.New(session.Deps{
		Parser:    parser.NewResp(),
		Scorer:    ml.NewZScore(cfg.Scorer.ZScoreK, cfg.Scorer.Warmup),
		Confirmer: confirmer,
		Rules:     ruleSet,
		Reporter:  rep,
		Log:       log,
	}, session.Options{
		PollInterval: cfg.Monitor.PollInterval,
		Watch:        cfg.Monitor.Watch,
		Detector: detector.Options{
			WindowSize:             cfg.Monitor.WindowSize,
			CandidateThreshold:     cfg.Monitor.CandidateThreshold,
			ConfirmTimeout:         cfg.Monitor.ConfirmTimeout,
			ConfirmEveryFullWindow: cfg.Monitor.ConfirmEveryWindow,
		},
	})
	return p, nil
}

// close stops the session, waits for it and flushes every sink and display.
func (p *pipeline) close(log *logger.Logger) {
	p.session.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.session.Wait(ctx); err != nil {
		log.Warn().Err(err).Msg("session did not stop in time")
	}
	if err := p.reporter.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("reporter close")
	}
}
