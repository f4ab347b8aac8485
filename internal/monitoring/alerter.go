package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/resort-geocoder/internal/config"
	"github.com/sells-group/resort-geocoder/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertUnresolvedRate AlertType = "unresolved_rate"
	AlertTransientRate  AlertType = "transient_error_rate"
	AlertRunFailed      AlertType = "run_failed"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	RunID     string         `json:"run_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a finished run against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the run against thresholds and returns any alerts.
func (a *Alerter) Evaluate(run *model.Run) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if run.Status == model.RunStatusFailed {
		alerts = append(alerts, Alert{
			Type:      AlertRunFailed,
			Severity:  "high",
			Message:   fmt.Sprintf("Geocoding run %s failed: %s", run.ID, run.Error),
			RunID:     run.ID,
			Details:   map[string]any{"provider": run.Provider, "input": run.InputPath},
			Timestamp: now,
		})
	}

	s := run.Stats
	if s == nil {
		return alerts
	}

	// Rates over fewer records than the minimum are too noisy to alert on.
	processed := s.Geocoded() + s.Unresolved()
	if a.cfg.FailureRateThreshold > 0 && processed >= a.cfg.MinRecords && processed > 0 {
		rate := float64(s.Unresolved()) / float64(processed)
		if rate > a.cfg.FailureRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertUnresolvedRate,
				Severity: "medium",
				Message: fmt.Sprintf(
					"Unresolved rate %.1f%% exceeds threshold %.1f%% (%d unresolved / %d records)",
					rate*100, a.cfg.FailureRateThreshold*100, s.Unresolved(), processed,
				),
				RunID: run.ID,
				Details: map[string]any{
					"unresolved_rate": rate,
					"threshold":       a.cfg.FailureRateThreshold,
					"unresolved":      s.Unresolved(),
					"processed":       processed,
				},
				Timestamp: now,
			})
		}
	}

	if a.cfg.TransientRateThreshold > 0 && s.ProviderCalls >= a.cfg.MinRecords && s.ProviderCalls > 0 {
		rate := float64(s.TransientErrors) / float64(s.ProviderCalls)
		if rate > a.cfg.TransientRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertTransientRate,
				Severity: "high",
				Message: fmt.Sprintf(
					"%s transient error rate %.1f%% exceeds threshold %.1f%% (%d / %d calls)",
					run.Provider, rate*100, a.cfg.TransientRateThreshold*100, s.TransientErrors, s.ProviderCalls,
				),
				RunID: run.ID,
				Details: map[string]any{
					"provider":         run.Provider,
					"transient_errors": s.TransientErrors,
					"provider_calls":   s.ProviderCalls,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
