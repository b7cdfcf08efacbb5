package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	assert.Equal(t, PatternRateLimit, ClassifyError("429 Too Many Requests"))
	assert.Equal(t, PatternNetwork, ClassifyError("connection timeout after 30s"))
	assert.Equal(t, PatternParsing, ClassifyError("extraction failed: no content found"))
	assert.Equal(t, PatternAuthentication, ClassifyError("403 Forbidden"))
	assert.Equal(t, PatternServiceUnavailable, ClassifyError("503 service unavailable"))
	assert.Equal(t, PatternUnknown, ClassifyError("something weird happened"))
	assert.Equal(t, PatternUnknown, ClassifyError(""))
}

func TestDominantPattern(t *testing.T) {
	pattern, counts := DominantPattern([]string{
		"connection timeout", "network unreachable", "403 forbidden",
	})
	assert.Equal(t, PatternNetwork, pattern)
	assert.Equal(t, 2, counts[PatternNetwork])
	assert.Equal(t, 1, counts[PatternAuthentication])
}

func TestDominantPattern_Empty(t *testing.T) {
	pattern, counts := DominantPattern(nil)
	assert.Equal(t, PatternUnknown, pattern)
	assert.Empty(t, counts)
}

func TestDetermineAction_HighFailureCountEscalatesForAuthOrUnavailable(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ActionEscalate, DetermineAction(cfg, 5, PatternAuthentication))
	assert.Equal(t, ActionEscalate, DetermineAction(cfg, 6, PatternServiceUnavailable))
}

func TestDetermineAction_HighFailureCountDisablesOtherPatterns(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ActionDisableCategory, DetermineAction(cfg, 5, PatternNetwork))
	assert.Equal(t, ActionDisableCategory, DetermineAction(cfg, 5, PatternUnknown))
}

func TestDetermineAction_RateLimitNetworkUnavailableRetryDelayed(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ActionRetryDelayed, DetermineAction(cfg, 1, PatternRateLimit))
	assert.Equal(t, ActionRetryDelayed, DetermineAction(cfg, 1, PatternNetwork))
	assert.Equal(t, ActionRetryDelayed, DetermineAction(cfg, 1, PatternServiceUnavailable))
}

func TestDetermineAction_AuthOrParsingEscalatesAtThreshold(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ActionMarkFailed, DetermineAction(cfg, 2, PatternAuthentication))
	assert.Equal(t, ActionEscalate, DetermineAction(cfg, 3, PatternAuthentication))
	assert.Equal(t, ActionMarkFailed, DetermineAction(cfg, 2, PatternParsing))
	assert.Equal(t, ActionEscalate, DetermineAction(cfg, 3, PatternParsing))
}

func TestDetermineAction_UnknownEscalatesAtThreshold(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ActionRetryDelayed, DetermineAction(cfg, 2, PatternUnknown))
	assert.Equal(t, ActionEscalate, DetermineAction(cfg, 3, PatternUnknown))
}

func TestRetryDelaySeconds(t *testing.T) {
	assert.Equal(t, 2100, RetryDelaySeconds(PatternRateLimit, 1))
	assert.Equal(t, 360, RetryDelaySeconds(PatternNetwork, 1))
}
