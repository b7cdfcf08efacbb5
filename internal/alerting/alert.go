// Package alerting dispatches operational alerts to log/email/webhook
// channels, gated by a rule table with rate limiting and cooldown.
package alerting

import "time"

// Type is the closed set of situations that can trigger an alert.
type Type string

const (
	TypeErrorThreshold           Type = "error_threshold"
	TypeCircuitBreakerOpened     Type = "circuit_breaker_opened"
	TypeCircuitBreakerClosed     Type = "circuit_breaker_closed"
	TypeServiceDegraded          Type = "service_degraded"
	TypeServiceRecovered         Type = "service_recovered"
	TypeTaskFailure              Type = "task_failure"
	TypeRateLimitExceeded        Type = "rate_limit_exceeded"
	TypeDatabaseConnectionFailed Type = "database_connection_failed"
	TypeExternalServiceUnavail   Type = "external_service_unavailable"
)

// Severity ranks how urgently an alert needs attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Channel is a delivery mechanism for an alert.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelWebhook Channel = "webhook"
	ChannelLogOnly Channel = "log_only"
)

// Rule decides when an alert of a given Type should fire and where it goes.
type Rule struct {
	Type           Type
	Severity       Severity
	Channels       []Channel
	ThresholdCount int
	CooldownPeriod time.Duration // 0 means DefaultCooldown
	Enabled        bool
}

const DefaultCooldown = time.Hour

// DefaultRules mirrors the Python original's DEFAULT_ALERT_RULES: a rule
// per alert type with a severity and channel set appropriate to how
// urgently an operator needs to know.
func DefaultRules() []Rule {
	return []Rule{
		{Type: TypeCircuitBreakerOpened, Severity: SeverityHigh, Channels: []Channel{ChannelLogOnly, ChannelWebhook}, Enabled: true},
		{Type: TypeCircuitBreakerClosed, Severity: SeverityLow, Channels: []Channel{ChannelLogOnly}, Enabled: true},
		{Type: TypeServiceDegraded, Severity: SeverityMedium, Channels: []Channel{ChannelLogOnly, ChannelWebhook}, Enabled: true},
		{Type: TypeServiceRecovered, Severity: SeverityLow, Channels: []Channel{ChannelLogOnly}, Enabled: true},
		{Type: TypeTaskFailure, Severity: SeverityMedium, Channels: []Channel{ChannelLogOnly}, Enabled: true},
		{Type: TypeRateLimitExceeded, Severity: SeverityMedium, Channels: []Channel{ChannelLogOnly}, Enabled: true},
		{Type: TypeDatabaseConnectionFailed, Severity: SeverityCritical, Channels: []Channel{ChannelLogOnly, ChannelEmail, ChannelWebhook}, Enabled: true},
		{Type: TypeExternalServiceUnavail, Severity: SeverityHigh, Channels: []Channel{ChannelLogOnly, ChannelWebhook}, Enabled: true},
		{Type: TypeErrorThreshold, Severity: SeverityHigh, Channels: []Channel{ChannelLogOnly, ChannelWebhook}, Enabled: true},
	}
}

// Alert is one occurrence to be routed through the configured channels.
type Alert struct {
	Type          Type
	Severity      Severity
	Message       string
	Details       map[string]interface{}
	CorrelationID string
	ServiceName   string
	Timestamp     time.Time
}
