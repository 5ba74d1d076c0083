package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrMissingWebhook is returned when no webhook URL is configured.
var ErrMissingWebhook = errors.New("slack webhook url is missing")

// Notifier delivers a rendered message.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// SlackNotifier posts messages to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
	logger     zerolog.Logger
}

// NewSlackNotifier constructs a webhook notifier.
func NewSlackNotifier(webhookURL string, timeout time.Duration, logger zerolog.Logger) *SlackNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &SlackNotifier{
		webhookURL: strings.TrimSpace(webhookURL),
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "alert_slack").Logger(),
	}
}

type textObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type block struct {
	Type string     `json:"type"`
	Text textObject `json:"text"`
}

type slackPayload struct {
	Blocks []block `json:"blocks"`
}

func section(text string) block {
	return block{Type: "section", Text: textObject{Type: "mrkdwn", Text: text}}
}

// Notify makes exactly one delivery attempt. Any non-2xx response is an error.
func (n *SlackNotifier) Notify(ctx context.Context, msg Message) error {
	if n.webhookURL == "" {
		return ErrMissingWebhook
	}

	body, err := json.Marshal(slackPayload{Blocks: []block{section(msg.Title), section(msg.Body)}})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	n.logger.Debug().Str("title", msg.Title).Msg("sending slack notification")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack responded with status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	n.logger.Info().Str("title", msg.Title).Msg("slack notification sent")
	return nil
}

var _ Notifier = (*SlackNotifier)(nil)
