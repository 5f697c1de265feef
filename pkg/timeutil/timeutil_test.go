package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartAndEndOfDay(t *testing.T) {
	ts := time.Date(2025, 3, 15, 14, 30, 45, 123, time.UTC)

	start := StartOfDay(ts)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), start)

	end := EndOfDay(ts)
	assert.Equal(t, 23, end.Hour())
	assert.Equal(t, 59, end.Minute())
	assert.True(t, end.After(start))
}

func TestWindowSince(t *testing.T) {
	cutoff := WindowSince(24 * time.Hour)
	assert.True(t, cutoff.Before(time.Now().UTC()))
	assert.WithinDuration(t, time.Now().UTC().Add(-24*time.Hour), cutoff, time.Second)
}

func TestIsSameDay(t *testing.T) {
	a := time.Date(2025, 3, 15, 0, 30, 0, 0, time.UTC)
	b := time.Date(2025, 3, 15, 23, 30, 0, 0, time.UTC)
	c := time.Date(2025, 3, 16, 0, 0, 1, 0, time.UTC)

	assert.True(t, IsSameDay(a, b))
	assert.False(t, IsSameDay(b, c))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, 3, 15, 23, 0, 0, 0, time.UTC)
	b := time.Date(2025, 3, 18, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 3, DaysBetween(a, b))
	assert.Equal(t, 0, DaysBetween(a, a))
}

func TestParseDateRoundTrip(t *testing.T) {
	parsed, err := ParseDate("2025-03-15")
	assert.NoError(t, err)
	assert.Equal(t, "2025-03-15", FormatDateStr(parsed))

	_, err = ParseDate("15.03.2025")
	assert.Error(t, err)
}
