package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/jeffrey/intellinieuws/pkg/logger"
)

// Handler delivers an Alert through one channel.
type Handler interface {
	Send(ctx context.Context, alert Alert) (bool, error)
}

// LogHandler writes the alert through the structured logger at a level
// derived from the alert's severity.
type LogHandler struct {
	log *logger.Logger
}

func NewLogHandler(log *logger.Logger) *LogHandler {
	return &LogHandler{log: log}
}

func (h *LogHandler) Send(ctx context.Context, alert Alert) (bool, error) {
	entry := h.log.WithFields(map[string]interface{}{
		"alert_type":     string(alert.Type),
		"severity":       string(alert.Severity),
		"correlation_id": alert.CorrelationID,
		"service_name":   alert.ServiceName,
		"alert_details":  alert.Details,
	})
	msg := fmt.Sprintf("ALERT [%s] %s: %s", strings.ToUpper(string(alert.Severity)), alert.Type, alert.Message)

	switch alert.Severity {
	case SeverityLow:
		entry.Info(msg)
	case SeverityMedium:
		entry.Warn(msg)
	default:
		entry.Error(msg)
	}
	return true, nil
}

// EmailConfig configures the EmailHandler.
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	UseTLS       bool
	FromEmail    string
	ToEmails     []string
}

// IsConfigured reports whether every field needed to send mail is set,
// mirroring the Python original's _is_email_configured check.
func (c EmailConfig) IsConfigured() bool {
	return c.SMTPHost != "" && c.SMTPUsername != "" && c.SMTPPassword != "" &&
		c.FromEmail != "" && len(c.ToEmails) > 0
}

// EmailHandler sends alerts via SMTP using the standard library, matching
// the plain smtplib-equivalent approach the teacher's own email package
// takes for protocol-level mail handling.
type EmailHandler struct {
	cfg EmailConfig
	log *logger.Logger
}

func NewEmailHandler(cfg EmailConfig, log *logger.Logger) *EmailHandler {
	return &EmailHandler{cfg: cfg, log: log}
}

func (h *EmailHandler) Send(ctx context.Context, alert Alert) (bool, error) {
	if !h.cfg.IsConfigured() {
		h.log.Warn("email alert handler not configured properly")
		return false, nil
	}

	subject := fmt.Sprintf("[%s] %s - %s", strings.ToUpper(string(alert.Severity)), alert.Type, serviceOrDefault(alert.ServiceName))
	detailsJSON, _ := json.MarshalIndent(alert.Details, "", "  ")
	body := fmt.Sprintf(
		"Alert Details:\n- Type: %s\n- Severity: %s\n- Service: %s\n- Time: %s\n- Correlation ID: %s\n\nMessage:\n%s\n\nDetails:\n%s\n",
		alert.Type, alert.Severity, serviceOrDefault(alert.ServiceName), alert.Timestamp.Format(time.RFC1123),
		correlationOrDefault(alert.CorrelationID), alert.Message, string(detailsJSON),
	)

	msg := buildMIMEMessage(h.cfg.FromEmail, h.cfg.ToEmails, subject, body)
	addr := fmt.Sprintf("%s:%d", h.cfg.SMTPHost, h.cfg.SMTPPort)
	auth := smtp.PlainAuth("", h.cfg.SMTPUsername, h.cfg.SMTPPassword, h.cfg.SMTPHost)

	if err := smtp.SendMail(addr, auth, h.cfg.FromEmail, h.cfg.ToEmails, msg); err != nil {
		h.log.WithError(err).Error("failed to send email alert")
		return false, err
	}
	return true, nil
}

func buildMIMEMessage(from string, to []string, subject, body string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	buf.WriteString(body)
	return buf.Bytes()
}

func serviceOrDefault(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func correlationOrDefault(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}

// WebhookConfig configures the WebhookHandler.
type WebhookConfig struct {
	URLs    []string
	Timeout time.Duration
}

// WebhookHandler posts alerts to one or more webhook URLs using a plain
// net/http client, matching content_extractor.go's hand-built client idiom
// rather than reaching for a REST client library.
type WebhookHandler struct {
	cfg    WebhookConfig
	client *http.Client
	log    *logger.Logger
}

func NewWebhookHandler(cfg WebhookConfig, log *logger.Logger) *WebhookHandler {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &WebhookHandler{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

type webhookPayload struct {
	Text  string `json:"text"`
	Alert alertDTO `json:"alert"`
}

type alertDTO struct {
	Type          string                 `json:"alert_type"`
	Severity      string                 `json:"severity"`
	Message       string                 `json:"message"`
	Details       map[string]interface{} `json:"details"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	ServiceName   string                 `json:"service_name,omitempty"`
	Timestamp     int64                  `json:"timestamp"`
}

func (h *WebhookHandler) Send(ctx context.Context, alert Alert) (bool, error) {
	if len(h.cfg.URLs) == 0 {
		h.log.Warn("no webhook URLs configured")
		return false, nil
	}

	payload := webhookPayload{
		Text: fmt.Sprintf("[%s] %s", strings.ToUpper(string(alert.Severity)), alert.Message),
		Alert: alertDTO{
			Type: string(alert.Type), Severity: string(alert.Severity), Message: alert.Message,
			Details: alert.Details, CorrelationID: alert.CorrelationID, ServiceName: alert.ServiceName,
			Timestamp: alert.Timestamp.Unix(),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	successCount := 0
	for _, url := range h.cfg.URLs {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			h.log.WithError(err).WithFields(map[string]interface{}{"webhook_url": url}).Error("failed to build webhook request")
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := h.client.Do(req)
		if err != nil {
			h.log.WithError(err).WithFields(map[string]interface{}{"webhook_url": url}).Error("failed to send webhook alert")
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 400 {
			successCount++
		} else {
			h.log.WithFields(map[string]interface{}{"webhook_url": url, "status": resp.StatusCode}).Error("webhook alert rejected")
		}
	}
	return successCount > 0, nil
}
