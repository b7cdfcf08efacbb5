package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyBuckets_SplitsIntoOneBucketPerDay(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	buckets := dailyBuckets(start, end, 100)
	require.Len(t, buckets, 5)

	for i, b := range buckets {
		expectedStart := start.Add(time.Duration(i) * 24 * time.Hour)
		expectedEnd := expectedStart.Add(24*time.Hour - time.Second)
		assert.Equal(t, expectedStart, b.start)
		assert.Equal(t, expectedEnd, b.end)
	}
}

func TestDailyBuckets_MaxResultsDividedEvenly(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	buckets := dailyBuckets(start, end, 100)
	require.Len(t, buckets, 10)
	for _, b := range buckets {
		assert.Equal(t, 10, b.maxResults)
	}
}

func TestDailyBuckets_MinimumOnePerDay(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	buckets := dailyBuckets(start, end, 5)
	require.Len(t, buckets, 10)
	for _, b := range buckets {
		assert.GreaterOrEqual(t, b.maxResults, 1)
	}
}

func TestDailyBuckets_SingleDayMakesOneBucket(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	buckets := dailyBuckets(day, day, 100)
	require.Len(t, buckets, 1)
}

func TestDailyBuckets_EndBeforeStartReturnsNil(t *testing.T) {
	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Nil(t, dailyBuckets(start, end, 100))
}

func TestBuildFeedURL_PeriodAddsWhenOperator(t *testing.T) {
	u := buildFeedURL(`"bitcoin"`, Config{Language: "vi", Country: "VN", Period: "1d"})
	assert.Contains(t, u, "when%3A1d")
}

func TestBuildFeedURL_DateRangeAddsAfterBeforeOperators(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 23, 59, 59, 0, time.UTC)
	u := buildFeedURL(`"bitcoin"`, Config{Language: "vi", Country: "VN", StartDate: &start, EndDate: &end})
	assert.Contains(t, u, "after%3A2024-01-01")
	assert.Contains(t, u, "before%3A2024-01-01")
}

func TestBuildFeedURL_PeriodTakesPrecedenceOverDateRangeWhenBothSet(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	u := buildFeedURL(`"bitcoin"`, Config{Language: "vi", Country: "VN", Period: "7d", StartDate: &start, EndDate: &end})
	assert.Contains(t, u, "when%3A7d")
	assert.NotContains(t, u, "after%3A")
}
