package service

import (
	"context"
	"errors"
	"time"

	"github.com/strollhq/stroll-history/go/catalog"
	"github.com/strollhq/stroll-history/go/market"
	"github.com/strollhq/stroll-history/go/query"
	"github.com/strollhq/stroll-history/go/wire"
)

const (
	// maxInventorySamples caps the dates probed per inventory report.
	maxInventorySamples = 50
	// maxSampleList caps each of the available/missing lists in the report.
	maxSampleList = 10
	// holidaysPerYear is the flat estimate subtracted from weekdays when
	// approximating expected trading days.
	holidaysPerYear = 10
)

// Recommendation is one prioritized follow-up in an inventory report.
type Recommendation struct {
	Priority string `json:"priority"`
	Action   string `json:"action"`
	Detail   string `json:"detail"`
}

// InventoryReport is the data_inventory payload.
type InventoryReport struct {
	Symbol              string           `json:"symbol"`
	From                string           `json:"from"`
	To                  string           `json:"to"`
	SampledDays         int              `json:"sampled_days"`
	ExpectedTradingDays int              `json:"expected_trading_days"`
	CoveragePct         float64          `json:"coverage_pct"`
	AvailableSamples    []string         `json:"available_samples"`
	MissingSamples      []string         `json:"missing_samples"`
	Recommendations     []Recommendation `json:"recommendations"`
}

// inventory samples daily-bar availability for symbol across [from, to] and
// grades the coverage. Sampling keeps the report cheap on multi-year ranges:
// at most maxInventorySamples weekdays, spread uniformly.
func (s *Service) inventory(ctx context.Context, symbol market.Symbol, from, to time.Time) (*InventoryReport, error) {
	var report = &InventoryReport{
		Symbol:              symbol.String(),
		From:                from.Format("2006-01-02"),
		To:                  to.Format("2006-01-02"),
		ExpectedTradingDays: expectedTradingDays(from, to),
		AvailableSamples:    []string{},
		MissingSamples:      []string{},
	}

	var samples = sampleWeekdays(from, to, maxInventorySamples)
	var found int
	for _, day := range samples {
		var result, err = s.planner.Bars(ctx, query.Query{
			Symbol:      symbol,
			From:        day,
			To:          day,
			Granularity: market.Day1,
		})

		var available = err == nil && len(result.Bars) > 0
		if err != nil {
			var domain *wire.Error
			if !errors.As(err, &domain) || domain.Kind != wire.KindNotFound {
				// Probe failures other than a coverage gap abort the report.
				return nil, err
			}
		}

		if available {
			found++
			if len(report.AvailableSamples) < maxSampleList {
				report.AvailableSamples = append(report.AvailableSamples, day.Format("2006-01-02"))
			}
		} else if len(report.MissingSamples) < maxSampleList {
			report.MissingSamples = append(report.MissingSamples, day.Format("2006-01-02"))
		}
	}

	report.SampledDays = len(samples)
	if len(samples) > 0 {
		report.CoveragePct = 100 * float64(found) / float64(len(samples))
	}
	report.Recommendations = []Recommendation{recommend(report.CoveragePct)}
	return report, nil
}

// recommend grades coverage onto the four-step ladder.
func recommend(coveragePct float64) Recommendation {
	switch {
	case coveragePct < 10:
		return Recommendation{
			Priority: "HIGH",
			Action:   "ACQUIRE_DATA",
			Detail:   "almost no sampled days are covered; acquire partitions for this range",
		}
	case coveragePct < 70:
		return Recommendation{
			Priority: "MEDIUM",
			Action:   "FILL_GAPS",
			Detail:   "coverage is partial; backfill the missing spans",
		}
	case coveragePct < 95:
		return Recommendation{
			Priority: "LOW",
			Action:   "OPTIMIZE_COVERAGE",
			Detail:   "coverage is near-complete; fill the remaining gaps opportunistically",
		}
	default:
		return Recommendation{
			Priority: "INFO",
			Action:   "DATA_READY",
			Detail:   "sampled coverage is complete",
		}
	}
}

// sampleWeekdays picks up to max dates uniformly across [from, to],
// shifting weekend picks forward to the next weekday. Duplicates after
// shifting collapse.
func sampleWeekdays(from, to time.Time, max int) []time.Time {
	var days = int(to.Sub(from).Hours()/24) + 1
	if days <= 0 {
		return nil
	}
	var stride = 1
	if days > max {
		stride = days / max
	}

	var out []time.Time
	var last time.Time
	for offset := 0; offset < days && len(out) < max; offset += stride {
		var day = from.AddDate(0, 0, offset)
		for isWeekend(day) && day.Before(to.AddDate(0, 0, 1)) {
			day = day.AddDate(0, 0, 1)
		}
		if isWeekend(day) || day.After(to) || day.Equal(last) {
			continue
		}
		out = append(out, day)
		last = day
	}
	return out
}

func isWeekend(t time.Time) bool {
	var wd = t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// expectedTradingDays counts weekdays in [from, to] minus a flat holiday
// estimate per year. An approximation; no exchange calendar is consulted.
func expectedTradingDays(from, to time.Time) int {
	var weekdays int
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if !isWeekend(day) {
			weekdays++
		}
	}
	var years = to.Sub(from).Hours() / 24 / 365.25
	var expected = weekdays - int(years*holidaysPerYear)
	if expected < 0 {
		expected = 0
	}
	return expected
}

// inventoryDefaults fills omitted data_inventory arguments from the catalog:
// the first cataloged bars symbol, and that symbol's earliest span start
// through today.
func (s *Service) inventoryDefaults(symbol market.Symbol, from, to time.Time) (market.Symbol, time.Time, time.Time, error) {
	if symbol == "" {
		for _, e := range s.catalog.Entries() {
			if e.Kind == catalog.KindBars {
				symbol = e.Symbol
				break
			}
		}
		if symbol == "" {
			return "", time.Time{}, time.Time{}, wire.NewError(wire.KindNotFound,
				"no bar partitions cataloged; specify a symbol")
		}
	}

	if from.IsZero() {
		for _, e := range s.catalog.Entries() {
			if e.Kind != catalog.KindBars || e.Symbol != symbol {
				continue
			}
			if from.IsZero() || e.Span.Start.Before(from) {
				from = e.Span.Start
			}
		}
		if from.IsZero() {
			return "", time.Time{}, time.Time{}, wire.NewError(wire.KindNotFound,
				"no bar partitions cataloged for %s", symbol)
		}
	}
	if to.IsZero() {
		to = time.Now().UTC().Truncate(24 * time.Hour)
	}
	if from.After(to) {
		return "", time.Time{}, time.Time{}, wire.NewError(wire.KindInvalidArgument,
			"from %s is after to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	return symbol, from, to, nil
}
