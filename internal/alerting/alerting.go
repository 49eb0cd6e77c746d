package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bher20/bpimanager/internal/logging"
)

// AlertConfig holds alerting configuration.
type AlertConfig struct {
	// WebhookURL is a Slack, Discord or generic JSON endpoint. Empty disables
	// alerting.
	WebhookURL string
	// WebhookType is "slack", "discord" or "generic"; empty detects it from
	// the URL.
	WebhookType string
	// MinFailuresBeforeAlert is the number of consecutive failed refreshes
	// before an alert is sent.
	MinFailuresBeforeAlert int
	Timeout                time.Duration
}

func (c AlertConfig) withDefaults() AlertConfig {
	if c.WebhookType == "" {
		switch {
		case strings.Contains(c.WebhookURL, "slack.com"):
			c.WebhookType = "slack"
		case strings.Contains(c.WebhookURL, "discord.com"):
			c.WebhookType = "discord"
		default:
			c.WebhookType = "generic"
		}
	}
	if c.MinFailuresBeforeAlert < 1 {
		c.MinFailuresBeforeAlert = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// Alerter sends alerts to configured webhooks.
type Alerter struct {
	cfg    AlertConfig
	client *http.Client
}

func NewAlerter(cfg AlertConfig) *Alerter {
	cfg = cfg.withDefaults()
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Enabled reports whether a webhook is configured.
func (a *Alerter) Enabled() bool {
	return a != nil && a.cfg.WebhookURL != ""
}

// RefreshAlert describes a run of failed feed refreshes.
type RefreshAlert struct {
	JobName             string        `json:"job_name"`
	FeedURL             string        `json:"feed_url"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastError           string        `json:"last_error"`
	Duration            time.Duration `json:"-"`
	Timestamp           time.Time     `json:"timestamp"`
}

// SendRefreshAlert posts alert unless alerting is disabled or the failure
// count is below the threshold. It reports whether a webhook was called.
func (a *Alerter) SendRefreshAlert(ctx context.Context, alert RefreshAlert) (bool, error) {
	log := logging.For("alerting")
	if !a.Enabled() {
		log.Debug("alerts disabled, skipping")
		return false, nil
	}
	if alert.ConsecutiveFailures < a.cfg.MinFailuresBeforeAlert {
		log.WithField("failures", alert.ConsecutiveFailures).
			WithField("threshold", a.cfg.MinFailuresBeforeAlert).
			Debug("failures below threshold, skipping")
		return false, nil
	}

	var (
		payload []byte
		err     error
	)
	switch a.cfg.WebhookType {
	case "slack":
		payload, err = buildSlackPayload(alert)
	case "discord":
		payload, err = buildDiscordPayload(alert)
	default:
		payload, err = buildGenericPayload(alert)
	}
	if err != nil {
		return false, fmt.Errorf("build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	log.WithField("failures", alert.ConsecutiveFailures).Info("sent refresh alert")
	return true, nil
}

func buildSlackPayload(alert RefreshAlert) ([]byte, error) {
	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]string{
					"type": "plain_text",
					"text": fmt.Sprintf(":x: Feed refresh failing: %s", alert.JobName),
				},
			},
			{
				"type": "section",
				"fields": []map[string]string{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Consecutive failures:*\n%d", alert.ConsecutiveFailures)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Duration:*\n%s", alert.Duration.Round(time.Millisecond))},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Feed:*\n%s", alert.FeedURL)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Timestamp:*\n%s", alert.Timestamp.Format(time.RFC3339))},
				},
			},
			{
				"type": "section",
				"text": map[string]string{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Last error:*\n%s", alert.LastError),
				},
			},
		},
	}
	return json.Marshal(payload)
}

func buildDiscordPayload(alert RefreshAlert) ([]byte, error) {
	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       fmt.Sprintf("Feed refresh failing: %s", alert.JobName),
				"description": alert.LastError,
				"color":       16711680,
				"fields": []map[string]interface{}{
					{"name": "Consecutive failures", "value": fmt.Sprintf("%d", alert.ConsecutiveFailures), "inline": true},
					{"name": "Duration", "value": alert.Duration.Round(time.Millisecond).String(), "inline": true},
					{"name": "Feed", "value": alert.FeedURL, "inline": false},
				},
				"timestamp": alert.Timestamp.Format(time.RFC3339),
			},
		},
	}
	return json.Marshal(payload)
}

func buildGenericPayload(alert RefreshAlert) ([]byte, error) {
	payload := map[string]interface{}{
		"alert_type":           "feed_refresh_failure",
		"job_name":             alert.JobName,
		"feed_url":             alert.FeedURL,
		"consecutive_failures": alert.ConsecutiveFailures,
		"last_error":           alert.LastError,
		"duration_ms":          alert.Duration.Milliseconds(),
		"timestamp":            alert.Timestamp.Format(time.RFC3339),
	}
	return json.Marshal(payload)
}
