package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseFlexibleDate_RFC3339(t *testing.T) {
	got, err := parseFlexibleDate("2026-07-01T10:00:00Z")
	assert.NoError(t, err)
	assert.Equal(t, 2026, got.Year())
	assert.Equal(t, time.Month(7), got.Month())
}

func TestParseFlexibleDate_DateOnly(t *testing.T) {
	got, err := parseFlexibleDate("2026-07-01")
	assert.NoError(t, err)
	assert.Equal(t, 1, got.Day())
}

func TestParseFlexibleDate_Unrecognized(t *testing.T) {
	_, err := parseFlexibleDate("not a date at all")
	assert.Error(t, err)
}
