package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/jeffrey/intellinieuws/pkg/logger"
	"github.com/jeffrey/intellinieuws/pkg/metrics"
)

// ManagerConfig bounds delivery volume; MaxAlertsPerHour applies per
// (type, service_name) key, matching the Python original's rate limiter.
type ManagerConfig struct {
	MaxAlertsPerHour int
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{MaxAlertsPerHour: 10}
}

// Manager routes Alerts to Handlers per Rule, enforcing a sliding one-hour
// rate limit and a per-rule cooldown computed from alert history.
type Manager struct {
	cfg          ManagerConfig
	log          *logger.Logger
	metrics      *metrics.Metrics
	mu           sync.Mutex
	rules        map[Type]Rule
	handlers     map[Channel]Handler
	history      []Alert
	rateCounters map[string][]time.Time
}

func NewManager(cfg ManagerConfig, log *logger.Logger) *Manager {
	return &Manager{
		cfg:          cfg,
		log:          log,
		rules:        make(map[Type]Rule),
		handlers:     make(map[Channel]Handler),
		rateCounters: make(map[string][]time.Time),
	}
}

// WithMetrics attaches the Prometheus bundle used to record
// alerts_dispatched_total per successful channel send. Optional: a Manager
// with no metrics attached just skips recording.
func (m *Manager) WithMetrics(met *metrics.Metrics) *Manager {
	m.metrics = met
	return m
}

// AddRule registers or replaces a rule.
func (m *Manager) AddRule(rule Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.Type] = rule
}

// AddRules registers a batch of rules, e.g. DefaultRules().
func (m *Manager) AddRules(rules []Rule) {
	for _, r := range rules {
		m.AddRule(r)
	}
}

// RegisterHandler wires a Handler for a channel.
func (m *Manager) RegisterHandler(channel Channel, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[channel] = h
}

func rateLimitKey(t Type, service string) string {
	if service == "" {
		service = "global"
	}
	return string(t) + ":" + service
}

// shouldSend applies the sliding-window rate limit, then a cooldown
// computed by scanning history for the most recent alert of the same
// (type, service). The rule-enabled check is done by Send before this is
// called. Caller must hold m.mu.
func (m *Manager) shouldSend(alert Alert, rule Rule) bool {
	now := alert.Timestamp
	key := rateLimitKey(alert.Type, alert.ServiceName)

	hourAgo := now.Add(-time.Hour)
	kept := m.rateCounters[key][:0]
	for _, ts := range m.rateCounters[key] {
		if ts.After(hourAgo) {
			kept = append(kept, ts)
		}
	}
	m.rateCounters[key] = kept

	maxPerHour := m.cfg.MaxAlertsPerHour
	if maxPerHour <= 0 {
		maxPerHour = DefaultManagerConfig().MaxAlertsPerHour
	}
	if len(m.rateCounters[key]) >= maxPerHour {
		m.log.WithFields(map[string]interface{}{"alert_type": string(alert.Type)}).Warn("rate limit exceeded for alert")
		return false
	}

	cooldown := rule.CooldownPeriod
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	for i := len(m.history) - 1; i >= 0; i-- {
		h := m.history[i]
		if h.Type == alert.Type && h.ServiceName == alert.ServiceName {
			if now.Sub(h.Timestamp) < cooldown {
				return false
			}
			break
		}
	}
	return true
}

// Send evaluates alert against its rule and, if admitted, dispatches to
// every channel the rule names. It records history/rate-limit state only
// if at least one channel reports success.
func (m *Manager) Send(ctx context.Context, alert Alert) bool {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	m.mu.Lock()
	rule, ok := m.rules[alert.Type]
	if !ok || !rule.Enabled {
		m.mu.Unlock()
		return false
	}
	if !m.shouldSend(alert, rule) {
		m.mu.Unlock()
		return false
	}
	type target struct {
		channel Channel
		handler Handler
	}
	targets := make([]target, 0, len(rule.Channels))
	for _, ch := range rule.Channels {
		if h, ok := m.handlers[ch]; ok {
			targets = append(targets, target{channel: ch, handler: h})
		} else {
			m.log.WithFields(map[string]interface{}{"channel": string(ch)}).Warn("no handler configured for alert channel")
		}
	}
	m.mu.Unlock()

	successCount := 0
	for _, t := range targets {
		ok, err := t.handler.Send(ctx, alert)
		if err != nil {
			m.log.WithError(err).Error("failed to send alert via channel")
			continue
		}
		if ok {
			successCount++
			if m.metrics != nil {
				m.metrics.AlertsDispatched.WithLabelValues(string(alert.Type), string(t.channel)).Inc()
			}
		}
	}

	if successCount == 0 {
		m.log.WithFields(map[string]interface{}{"alert_type": string(alert.Type)}).Error("failed to send alert to any channel")
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, alert)
	if len(m.history) > 1000 {
		m.history = append([]Alert{}, m.history[len(m.history)-500:]...)
	}
	key := rateLimitKey(alert.Type, alert.ServiceName)
	m.rateCounters[key] = append(m.rateCounters[key], alert.Timestamp)

	m.log.WithFields(map[string]interface{}{
		"alert_type":         string(alert.Type),
		"severity":           string(alert.Severity),
		"correlation_id":     alert.CorrelationID,
		"service_name":       alert.ServiceName,
		"channels_succeeded": successCount,
	}).Info("alert sent successfully")
	return true
}

// HistoryLen reports how many alerts are retained in history, for tests
// and admin introspection.
func (m *Manager) HistoryLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// GetHistory returns up to the last limit alerts, most recent first. A
// limit <= 0 returns the full retained history (at most 1000 entries).
func (m *Manager) GetHistory(limit int) []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Alert, n)
	for i := 0; i < n; i++ {
		out[i] = m.history[len(m.history)-1-i]
	}
	return out
}

// RateLimitEntry reports the remaining send budget for one (type, service)
// key within the current rolling one-hour window.
type RateLimitEntry struct {
	Type         Type
	ServiceName  string
	SentLastHour int
	Remaining    int
	NextResetAt  time.Time
}

// RateLimitStatus mirrors the Python original's get_rate_limit_status:
// per-(type, service) remaining budget and the time the oldest counted send
// ages out of the window.
func (m *Manager) RateLimitStatus() []RateLimitEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	maxPerHour := m.cfg.MaxAlertsPerHour
	if maxPerHour <= 0 {
		maxPerHour = DefaultManagerConfig().MaxAlertsPerHour
	}

	now := time.Now()
	hourAgo := now.Add(-time.Hour)

	entries := make([]RateLimitEntry, 0, len(m.rateCounters))
	for key, timestamps := range m.rateCounters {
		var active []time.Time
		for _, ts := range timestamps {
			if ts.After(hourAgo) {
				active = append(active, ts)
			}
		}
		if len(active) == 0 {
			continue
		}
		alertType, service := splitRateLimitKey(key)
		remaining := maxPerHour - len(active)
		if remaining < 0 {
			remaining = 0
		}
		entries = append(entries, RateLimitEntry{
			Type:         alertType,
			ServiceName:  service,
			SentLastHour: len(active),
			Remaining:    remaining,
			NextResetAt:  active[0].Add(time.Hour),
		})
	}
	return entries
}

func splitRateLimitKey(key string) (Type, string) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return Type(key[:i]), key[i+1:]
		}
	}
	return Type(key), ""
}
