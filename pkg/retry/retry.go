// Package retry implements bounded retry with exponential backoff and
// jitter, driven by the tagged error model in pkg/crawlerr rather than
// string matching.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jeffrey/intellinieuws/pkg/crawlerr"
	"github.com/jeffrey/intellinieuws/pkg/logger"
	"github.com/jeffrey/intellinieuws/pkg/metrics"
)

// Config controls retry behavior. Zero-value Config is not usable; use one
// of the predefined configs or Config{...} with all fields set.
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	JitterRange     float64 // fraction in [0,1], e.g. 0.5 = +/-50%

	// RetryableKinds, if non-nil, is consulted before the error's own
	// Retryable flag. NonRetryableKinds always wins over both.
	RetryableKinds    map[crawlerr.Kind]bool
	NonRetryableKinds map[crawlerr.Kind]bool
}

// Predefined configurations mirroring the Python original's
// EXTERNAL_SERVICE_RETRY / DATABASE_RETRY / RATE_LIMIT_RETRY constants.
var (
	ExternalService = Config{
		MaxRetries:      3,
		BaseDelay:       1 * time.Second,
		MaxDelay:        300 * time.Second,
		ExponentialBase: 2.0,
		JitterRange:     0.5,
	}
	Database = Config{
		MaxRetries:      2,
		BaseDelay:       500 * time.Millisecond,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
		JitterRange:     0.3,
	}
	RateLimit = Config{
		MaxRetries:      5,
		BaseDelay:       60 * time.Second,
		MaxDelay:        3600 * time.Second,
		ExponentialBase: 1.5,
		JitterRange:     0.2,
	}
)

// Op is the operation a Retrier runs. It receives the attempt index
// (0-based, attempt 0 is the initial call).
type Op[T any] func(ctx context.Context, attempt int) (T, error)

// Run executes op with bounded retries per cfg, logging each attempt with
// the correlation id. It returns the last result/error once retries are
// exhausted or a non-retryable error is hit. m/operation are optional: when
// m is non-nil, every attempt beyond the first records
// retry_attempts_total{operation, error_kind}.
func Run[T any](ctx context.Context, log *logger.Logger, m *metrics.Metrics, operation string, cfg Config, cid string, op Op[T]) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := op(ctx, attempt)
		if err == nil {
			if attempt > 0 {
				log.WithFields(map[string]interface{}{
					"correlation_id":     cid,
					"successful_attempt": attempt + 1,
				}).Info("operation succeeded after retry")
			}
			return result, nil
		}

		lastErr = err
		kind := crawlerr.KindOf(err)
		if m != nil {
			m.RetryAttemptsTotal.WithLabelValues(operation, string(kind)).Inc()
		}
		log.WithFields(map[string]interface{}{
			"correlation_id": cid,
			"attempt":        attempt + 1,
			"max_attempts":   cfg.MaxRetries + 1,
			"error_kind":     string(kind),
		}).WithError(err).Warn("operation attempt failed")

		if !shouldRetry(cfg, err, attempt) {
			log.WithFields(map[string]interface{}{
				"correlation_id": cid,
				"total_attempts": attempt + 1,
			}).Error("not retrying: non-retryable error or attempts exhausted")
			return zero, lastErr
		}

		if attempt == cfg.MaxRetries {
			break
		}

		if m != nil {
			m.RetryAttemptsTotal.WithLabelValues(operation, string(kind)).Inc()
		}

		delay := nextDelay(cfg, err, attempt)
		log.WithFields(map[string]interface{}{
			"correlation_id": cid,
			"delay_ms":       delay.Milliseconds(),
			"next_attempt":   attempt + 2,
		}).Info("retrying after delay")

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	log.WithFields(map[string]interface{}{
		"correlation_id": cid,
		"total_attempts": cfg.MaxRetries + 1,
	}).Error("all retries exhausted")
	return zero, lastErr
}

func shouldRetry(cfg Config, err error, attempt int) bool {
	if attempt >= cfg.MaxRetries {
		return false
	}
	kind := crawlerr.KindOf(err)
	if cfg.NonRetryableKinds != nil && cfg.NonRetryableKinds[kind] {
		return false
	}
	if cfg.RetryableKinds != nil {
		if ok := cfg.RetryableKinds[kind]; ok {
			return true
		}
	}
	return crawlerr.IsRetryable(err)
}

// nextDelay computes the delay for the attempt just completed, honoring an
// error-specified retry_after hint over the computed backoff curve.
func nextDelay(cfg Config, err error, attempt int) time.Duration {
	if ra, ok := crawlerr.RetryAfterOf(err); ok {
		return ra
	}
	return calculateDelay(cfg, attempt)
}

// calculateDelay reproduces the Python original's
// retry_handler.py:calculate_delay: exponential growth capped at MaxDelay,
// multiplied by (1 + jitter), floored at 100ms.
func calculateDelay(cfg Config, attempt int) time.Duration {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.BaseDelay
	eb.Multiplier = cfg.ExponentialBase
	eb.MaxInterval = cfg.MaxDelay
	eb.RandomizationFactor = 0 // our own jitter is applied below, matching cfg.JitterRange
	eb.Reset()

	var delay time.Duration
	for i := 0; i <= attempt; i++ {
		delay = eb.NextBackOff()
	}
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}

	jitter := (rand.Float64()*2 - 1) * cfg.JitterRange // U(-range, +range)
	delay = time.Duration(float64(delay) * (1 + jitter))

	if delay < 100*time.Millisecond {
		delay = 100 * time.Millisecond
	}
	return delay
}
