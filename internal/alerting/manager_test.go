package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffrey/intellinieuws/pkg/logger"
)

type fakeHandler struct {
	calls int
	ok    bool
	err   error
}

func (f *fakeHandler) Send(ctx context.Context, alert Alert) (bool, error) {
	f.calls++
	return f.ok, f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "console"})
}

func TestManager_SendRespectsRuleChannels(t *testing.T) {
	m := NewManager(DefaultManagerConfig(), testLogger())
	m.AddRule(Rule{Type: TypeTaskFailure, Severity: SeverityMedium, Channels: []Channel{ChannelLogOnly}, Enabled: true})
	h := &fakeHandler{ok: true}
	m.RegisterHandler(ChannelLogOnly, h)

	sent := m.Send(context.Background(), Alert{Type: TypeTaskFailure, Severity: SeverityMedium, Message: "job failed"})
	assert.True(t, sent)
	assert.Equal(t, 1, h.calls)
	assert.Equal(t, 1, m.HistoryLen())
}

func TestManager_DisabledRuleNeverSends(t *testing.T) {
	m := NewManager(DefaultManagerConfig(), testLogger())
	m.AddRule(Rule{Type: TypeTaskFailure, Channels: []Channel{ChannelLogOnly}, Enabled: false})
	h := &fakeHandler{ok: true}
	m.RegisterHandler(ChannelLogOnly, h)

	sent := m.Send(context.Background(), Alert{Type: TypeTaskFailure})
	assert.False(t, sent)
	assert.Equal(t, 0, h.calls)
}

func TestManager_RateLimitExceeded(t *testing.T) {
	cfg := ManagerConfig{MaxAlertsPerHour: 2}
	m := NewManager(cfg, testLogger())
	m.AddRule(Rule{Type: TypeTaskFailure, Channels: []Channel{ChannelLogOnly}, Enabled: true, CooldownPeriod: time.Millisecond})
	h := &fakeHandler{ok: true}
	m.RegisterHandler(ChannelLogOnly, h)

	now := time.Now()
	for i := 0; i < 2; i++ {
		sent := m.Send(context.Background(), Alert{Type: TypeTaskFailure, Timestamp: now.Add(time.Duration(i) * time.Millisecond * 5)})
		require.True(t, sent)
	}
	sent := m.Send(context.Background(), Alert{Type: TypeTaskFailure, Timestamp: now.Add(20 * time.Millisecond)})
	assert.False(t, sent, "third alert within the hour should be rate-limited")
}

func TestManager_CooldownBlocksRepeat(t *testing.T) {
	m := NewManager(DefaultManagerConfig(), testLogger())
	m.AddRule(Rule{Type: TypeTaskFailure, Channels: []Channel{ChannelLogOnly}, Enabled: true, CooldownPeriod: time.Hour})
	h := &fakeHandler{ok: true}
	m.RegisterHandler(ChannelLogOnly, h)

	now := time.Now()
	require.True(t, m.Send(context.Background(), Alert{Type: TypeTaskFailure, Timestamp: now}))
	assert.False(t, m.Send(context.Background(), Alert{Type: TypeTaskFailure, Timestamp: now.Add(time.Minute)}))
}

func TestManager_GetHistoryMostRecentFirst(t *testing.T) {
	m := NewManager(DefaultManagerConfig(), testLogger())
	m.AddRule(Rule{Type: TypeTaskFailure, Channels: []Channel{ChannelLogOnly}, Enabled: true, CooldownPeriod: time.Millisecond})
	h := &fakeHandler{ok: true}
	m.RegisterHandler(ChannelLogOnly, h)

	now := time.Now()
	require.True(t, m.Send(context.Background(), Alert{Type: TypeTaskFailure, Message: "first", Timestamp: now}))
	require.True(t, m.Send(context.Background(), Alert{Type: TypeTaskFailure, Message: "second", Timestamp: now.Add(10 * time.Millisecond)}))

	history := m.GetHistory(1)
	require.Len(t, history, 1)
	assert.Equal(t, "second", history[0].Message)

	full := m.GetHistory(0)
	require.Len(t, full, 2)
	assert.Equal(t, "first", full[1].Message)
}

func TestManager_RateLimitStatusReportsRemainingBudget(t *testing.T) {
	cfg := ManagerConfig{MaxAlertsPerHour: 3}
	m := NewManager(cfg, testLogger())
	m.AddRule(Rule{Type: TypeTaskFailure, Channels: []Channel{ChannelLogOnly}, Enabled: true, CooldownPeriod: time.Millisecond})
	h := &fakeHandler{ok: true}
	m.RegisterHandler(ChannelLogOnly, h)

	require.True(t, m.Send(context.Background(), Alert{Type: TypeTaskFailure, ServiceName: "google_news_search"}))

	status := m.RateLimitStatus()
	require.Len(t, status, 1)
	assert.Equal(t, TypeTaskFailure, status[0].Type)
	assert.Equal(t, "google_news_search", status[0].ServiceName)
	assert.Equal(t, 1, status[0].SentLastHour)
	assert.Equal(t, 2, status[0].Remaining)
}

func TestManager_NoHandlerSucceedsMeansNotRecorded(t *testing.T) {
	m := NewManager(DefaultManagerConfig(), testLogger())
	m.AddRule(Rule{Type: TypeTaskFailure, Channels: []Channel{ChannelLogOnly}, Enabled: true})
	h := &fakeHandler{ok: false}
	m.RegisterHandler(ChannelLogOnly, h)

	sent := m.Send(context.Background(), Alert{Type: TypeTaskFailure})
	assert.False(t, sent)
	assert.Equal(t, 0, m.HistoryLen())
}
