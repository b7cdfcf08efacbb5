package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNew_RecordsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CrawlJobsTotal.WithLabelValues("tech", "completed").Inc()
	m.ArticlesSaved.WithLabelValues("tech", "new").Add(3)
	m.BreakerState.WithLabelValues("google-news").Set(BreakerStateValue("open"))

	families, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]bool{}
	for _, fam := range families {
		found[fam.GetName()] = true
		if fam.GetName() == "crawler_breaker_state" {
			require.Equal(t, float64(1), fam.Metric[0].GetGauge().GetValue())
		}
	}
	require.True(t, found["crawler_jobs_total"])
	require.True(t, found["crawler_articles_saved_total"])
}

func TestBreakerStateValue(t *testing.T) {
	cases := map[string]float64{"closed": 0, "open": 1, "half-open": 2, "unknown": 0}
	for state, want := range cases {
		require.Equal(t, want, BreakerStateValue(state), state)
	}
}
