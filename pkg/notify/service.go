// Package notify delivers session lifecycle events to an external webhook
// (CRM or messenger bot). Delivery is fire-and-forget.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/konsulhq/konsul/pkg/models"
)

const deliveryTimeout = 10 * time.Second

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	WebhookURL   string
	AuthToken    string
	DashboardURL string
}

// Service posts webhook notifications.
// Nil-safe: all methods are no-ops when service is nil.
type Service struct {
	cfg    ServiceConfig
	client *http.Client
	logger *slog.Logger
}

// NewService creates a notification service. Returns nil when no webhook
// URL is configured.
func NewService(cfg ServiceConfig) *Service {
	if cfg.WebhookURL == "" {
		return nil
	}
	return &Service{
		cfg:    cfg,
		client: &http.Client{Timeout: deliveryTimeout},
		logger: slog.Default().With("component", "notify"),
	}
}

// event is the webhook payload shape.
type event struct {
	Event           string  `json:"event"`
	SessionID       string  `json:"session_id"`
	Status          string  `json:"status"`
	CompanyName     string  `json:"company_name,omitempty"`
	ContactName     string  `json:"contact_name,omitempty"`
	CompletionRate  float64 `json:"completion_rate"`
	DurationSeconds float64 `json:"duration_seconds"`
	DashboardURL    string  `json:"dashboard_url,omitempty"`
}

// SessionFinalized announces that a consultation reached the review phase.
// Fail-open: errors are logged, never returned.
func (s *Service) SessionFinalized(sess *models.Session) {
	s.deliver("session.finalized", sess)
}

// SessionConfirmed announces that the client confirmed the anketa.
// Fail-open: errors are logged, never returned.
func (s *Service) SessionConfirmed(sess *models.Session) {
	s.deliver("session.confirmed", sess)
}

func (s *Service) deliver(eventName string, sess *models.Session) {
	if s == nil || sess == nil {
		return
	}

	payload := event{
		Event:           eventName,
		SessionID:       sess.SessionID,
		Status:          sess.Status,
		CompanyName:     sess.CompanyName,
		ContactName:     sess.ContactName,
		CompletionRate:  sess.AnketaData.CompletionRate(),
		DurationSeconds: sess.DurationSeconds,
	}
	if s.cfg.DashboardURL != "" {
		payload.DashboardURL = fmt.Sprintf("%s/sessions/%s", s.cfg.DashboardURL, sess.SessionID)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("Notification marshal failed", "session_id", sess.SessionID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		s.logger.Error("Notification request build failed", "session_id", sess.SessionID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.AuthToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("Notification delivery failed",
			"session_id", sess.SessionID, "event", eventName, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Error("Notification rejected",
			"session_id", sess.SessionID, "event", eventName, "status", resp.StatusCode)
		return
	}
	s.logger.Info("Notification delivered", "session_id", sess.SessionID, "event", eventName)
}
