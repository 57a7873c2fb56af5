package catalog

import (
	"fmt"
	"time"

	"github.com/strollhq/stroll-history/go/market"
)

// Kind classifies the rows held by a partition.
type Kind string

const (
	// KindBars partitions hold OHLCV bars.
	KindBars Kind = "bars"
	// KindOptions partitions hold option chain rows.
	KindOptions Kind = "options"
	// KindTicks partitions hold sub-minute tick data. They are discovered
	// and inventoried, but bar and option queries never match them.
	KindTicks Kind = "ticks"
)

// Span is an inclusive date range covered by a partition, at UTC midnight
// date precision.
type Span struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the span intersects [from, to], inclusive on
// both ends.
func (s Span) Overlaps(from, to time.Time) bool {
	return !s.Start.After(to) && !s.End.Before(from)
}

func (s Span) String() string {
	return fmt.Sprintf("%s..%s", s.Start.Format("2006-01-02"), s.End.Format("2006-01-02"))
}

// yearSpan covers whole calendar years [y1, y2].
func yearSpan(y1, y2 int) Span {
	return Span{
		Start: time.Date(y1, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(y2, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

// monthSpan covers one calendar month.
func monthSpan(year int, month time.Month) Span {
	var start = time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Span{
		Start: start,
		End:   start.AddDate(0, 1, -1),
	}
}

// Entry is one discovered partition. Entries are unique by
// (symbol, kind, granularity, span start).
type Entry struct {
	Symbol      market.Symbol
	Kind        Kind
	Granularity market.Granularity // Empty for options and tick partitions.
	Span        Span
	Path        string
	Order       int // Discovery order; stable resolve tie-break.
}

// Key is the uniqueness key of the entry.
func (e Entry) Key() string {
	return fmt.Sprintf("%s/%s/%s/%s", e.Symbol, e.Kind, e.Granularity, e.Span.Start.Format("2006-01-02"))
}
