package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffrey/intellinieuws/pkg/crawlerr"
	"github.com/jeffrey/intellinieuws/pkg/metrics"
)

func testConfig() Config {
	return Config{
		FailureThreshold: 3,
		RecoveryTimeout:  50 * time.Millisecond,
		SuccessThreshold: 2,
		CallTimeout:      0,
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := New("svc", testConfig())
	failOp := func(ctx context.Context) (int, error) {
		return 0, crawlerr.New(crawlerr.KindExtractionNetwork, "boom")
	}

	for i := 0; i < 3; i++ {
		_, err := Call(context.Background(), cb, failOp)
		require.Error(t, err)
	}

	assert.Equal(t, Open, cb.State())

	_, err := Call(context.Background(), cb, failOp)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOpen)
}

func TestCircuitBreaker_HalfOpenSingleProbe(t *testing.T) {
	cb := New("svc", testConfig())
	failOp := func(ctx context.Context) (int, error) {
		return 0, crawlerr.New(crawlerr.KindExtractionNetwork, "boom")
	}
	for i := 0; i < 3; i++ {
		_, _ = Call(context.Background(), cb, failOp)
	}
	require.Equal(t, Open, cb.State())

	time.Sleep(60 * time.Millisecond)

	started := make(chan struct{})
	release := make(chan struct{})
	slowOp := func(ctx context.Context) (int, error) {
		close(started)
		<-release
		return 1, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := Call(context.Background(), cb, slowOp)
		done <- err
	}()
	<-started

	_, err := Call(context.Background(), cb, failOp)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOpen, "a second probe must not be admitted while one is in flight")

	close(release)
	require.NoError(t, <-done)
}

func TestCircuitBreaker_ClosesAfterSuccessThreshold(t *testing.T) {
	cb := New("svc", testConfig())
	failOp := func(ctx context.Context) (int, error) {
		return 0, crawlerr.New(crawlerr.KindExtractionNetwork, "boom")
	}
	okOp := func(ctx context.Context) (int, error) { return 1, nil }

	for i := 0; i < 3; i++ {
		_, _ = Call(context.Background(), cb, failOp)
	}
	time.Sleep(60 * time.Millisecond)

	_, err := Call(context.Background(), cb, okOp)
	require.NoError(t, err)
	assert.Equal(t, HalfOpen, cb.State())

	_, err = Call(context.Background(), cb, okOp)
	require.NoError(t, err)
	assert.Equal(t, Closed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New("svc", testConfig())
	failOp := func(ctx context.Context) (int, error) {
		return 0, crawlerr.New(crawlerr.KindExtractionNetwork, "boom")
	}
	for i := 0; i < 3; i++ {
		_, _ = Call(context.Background(), cb, failOp)
	}
	time.Sleep(60 * time.Millisecond)

	_, err := Call(context.Background(), cb, failOp)
	require.Error(t, err)
	assert.Equal(t, Open, cb.State())
}

func TestCircuitBreaker_UnmonitoredKindDoesNotCount(t *testing.T) {
	cfg := testConfig()
	cfg.MonitoredKinds = map[crawlerr.Kind]bool{crawlerr.KindExtractionNetwork: true}
	cb := New("svc", cfg)

	unmonitored := func(ctx context.Context) (int, error) {
		return 0, crawlerr.New(crawlerr.KindValidation, "bad input")
	}
	for i := 0; i < 5; i++ {
		_, _ = Call(context.Background(), cb, unmonitored)
	}
	assert.Equal(t, Closed, cb.State())
}

func TestCircuitBreaker_CallTimeoutSynthesizesTimeoutKind(t *testing.T) {
	cfg := testConfig()
	cfg.CallTimeout = 10 * time.Millisecond
	cb := New("svc", cfg)

	slow := func(ctx context.Context) (int, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return 1, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	_, err := Call(context.Background(), cb, slow)
	require.Error(t, err)
	assert.Equal(t, crawlerr.KindExtractionTimeout, crawlerr.KindOf(err))
}

func TestManager_GetOrCreateReusesBreaker(t *testing.T) {
	m := NewManager(testConfig())
	a := m.GetOrCreate("google-news", Config{})
	b := m.GetOrCreate("google-news", Config{})
	assert.Same(t, a, b)
}

func TestManager_WithMetricsPropagatesToExistingAndNewBreakers(t *testing.T) {
	m := NewManager(testConfig())
	existing := m.GetOrCreate("existing", Config{})

	met := metrics.New(prometheus.NewRegistry())
	m.WithMetrics(met)
	assert.Same(t, met, existing.metrics, "breakers created before WithMetrics must also be updated")

	created := m.GetOrCreate("created-after", Config{})
	assert.Same(t, met, created.metrics)
}

func TestManager_CallWithBreaker(t *testing.T) {
	m := NewManager(testConfig())
	_, err := CallWithBreaker(context.Background(), m, "svc", Config{}, func(ctx context.Context) (int, error) {
		return 0, errors.New("plain error")
	})
	require.Error(t, err)
	assert.Len(t, m.GetAllStats(), 1)
}
