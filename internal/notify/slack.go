package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/viniciushammett/go-log-stream-detector/internal/logger"
	"github.com/viniciushammett/go-log-stream-detector/internal/model"
	"github.com/viniciushammett/go-log-stream-detector/internal/rules"
)

const sendTimeout = 10 * time.Second

type message struct {
	Text     string `json:"text"`
	Username string `json:"username,omitempty"`
}

// Slack is a report.Display that posts each alert to an incoming webhook.
type Slack struct {
	enabled bool
	webhook string
	client  *http.Client
	log     *logger.Logger
}

func NewSlack(enabled bool, webhook string, log *logger.Logger) *Slack {
	if log == nil {
		log = logger.Nop()
	}
	return &Slack{enabled: enabled, webhook: webhook, client: &http.Client{}, log: log}
}

func (s *Slack) Enabled() bool { return s.enabled && s.webhook != "" }

func (s *Slack) Send(text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	return s.SendContext(ctx, text)
}

func (s *Slack) SendContext(ctx context.Context, text string) error {
	if !s.Enabled() {
		return nil
	}
	body, err := json.Marshal(message{Text: text, Username: "lsd"})
	if err != nil {
		return fmt.Errorf("encode slack message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	defer resp.Body.Close()
	// slack responde "ok" no corpo; o resto vai pro erro
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("slack webhook status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

// Show posts the alert; it runs on the reporter's display goroutine.
func (s *Slack) Show(a model.AlertRecord) {
	if err := s.Send(Format(a)); err != nil {
		s.log.Warn().Err(err).Str("id", a.ID).Msg("slack notify failed")
	}
}

func Format(a model.AlertRecord) string {
	return fmt.Sprintf(":mag: *%s* [%s] %s:%d resp=%g mse=%.4f\n%s\n```%s```",
		a.Category, rules.Severity(a.Category), a.SourceFile, a.LineNumber,
		a.FeatureValue, a.ReconstructionError, a.SuggestedFix, a.RawText)
}
