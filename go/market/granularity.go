package market

import (
	"fmt"
	"strings"
	"time"
)

// Granularity identifies the fixed cadence of a bar stream.
// Its value is always one of the canonical forms "1m", "5m", "1h", or "1d".
type Granularity string

const (
	// Minute1 is one-minute bars.
	Minute1 Granularity = "1m"
	// Minute5 is five-minute bars.
	Minute5 Granularity = "5m"
	// Hour1 is hourly bars.
	Hour1 Granularity = "1h"
	// Day1 is daily bars.
	Day1 Granularity = "1d"
)

// SpanClass is the partition span targeted by a granularity.
type SpanClass int

const (
	// SpanYearly partitions cover a single calendar year.
	SpanYearly SpanClass = iota
	// SpanFiveYear partitions cover a five-year window.
	SpanFiveYear
	// SpanMonthly partitions cover a single month (sub-minute tick data).
	SpanMonthly
)

// aliases maps accepted lowercase spellings to canonical granularities.
var aliases = map[string]Granularity{
	"1m":    Minute1,
	"1min":  Minute1,
	"5m":    Minute5,
	"5min":  Minute5,
	"1h":    Hour1,
	"60m":   Hour1,
	"hour":  Hour1,
	"1d":    Day1,
	"d":     Day1,
	"day":   Day1,
	"daily": Day1,
}

// ParseGranularity maps a case-insensitive spelling to its canonical
// Granularity, or returns an error naming the unknown input.
func ParseGranularity(s string) (Granularity, error) {
	if g, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return g, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

// Valid returns true if g is one of the canonical granularities.
func (g Granularity) Valid() bool {
	switch g {
	case Minute1, Minute5, Hour1, Day1:
		return true
	}
	return false
}

// Cadence is the expected spacing between consecutive bars.
func (g Granularity) Cadence() time.Duration {
	switch g {
	case Minute1:
		return time.Minute
	case Minute5:
		return 5 * time.Minute
	case Hour1:
		return time.Hour
	case Day1:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Span is the partition span class targeted by this granularity.
// One-minute data partitions by year; coarser bar data by five-year window.
func (g Granularity) Span() SpanClass {
	if g == Minute1 {
		return SpanYearly
	}
	return SpanFiveYear
}

func (g Granularity) String() string { return string(g) }
