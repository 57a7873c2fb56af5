package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSampleWeekdays(t *testing.T) {
	// One January: every weekday exactly once, in order.
	var samples = sampleWeekdays(date(2024, 1, 1), date(2024, 1, 31), maxInventorySamples)
	require.Len(t, samples, 23)
	for i, day := range samples {
		require.NotEqual(t, time.Saturday, day.Weekday())
		require.NotEqual(t, time.Sunday, day.Weekday())
		if i > 0 {
			require.True(t, samples[i-1].Before(day))
		}
	}

	// A five-year range stays within the cap.
	samples = sampleWeekdays(date(2020, 1, 1), date(2024, 12, 31), maxInventorySamples)
	require.NotEmpty(t, samples)
	require.LessOrEqual(t, len(samples), maxInventorySamples)

	// A weekend-only range has nothing to probe.
	samples = sampleWeekdays(date(2024, 1, 6), date(2024, 1, 7), maxInventorySamples)
	require.Empty(t, samples)
}

func TestExpectedTradingDays(t *testing.T) {
	// January 2024 has 23 weekdays; under a year, no holiday deduction.
	require.Equal(t, 23, expectedTradingDays(date(2024, 1, 1), date(2024, 1, 31)))

	// A full year: 2024 has 262 weekdays, minus the holiday estimate
	// prorated over just under one year.
	require.Equal(t, 253, expectedTradingDays(date(2024, 1, 1), date(2024, 12, 31)))
}

func TestRecommendationLadder(t *testing.T) {
	require.Equal(t, "ACQUIRE_DATA", recommend(0).Action)
	require.Equal(t, "ACQUIRE_DATA", recommend(9.9).Action)
	require.Equal(t, "FILL_GAPS", recommend(10).Action)
	require.Equal(t, "FILL_GAPS", recommend(69.9).Action)
	require.Equal(t, "OPTIMIZE_COVERAGE", recommend(70).Action)
	require.Equal(t, "OPTIMIZE_COVERAGE", recommend(94.9).Action)
	require.Equal(t, "DATA_READY", recommend(95).Action)
	require.Equal(t, "DATA_READY", recommend(100).Action)
}
