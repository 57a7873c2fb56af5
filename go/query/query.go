package query

import (
	"time"

	"github.com/strollhq/stroll-history/go/market"
	"github.com/strollhq/stroll-history/go/wire"
)

// epoch is the earliest queryable date.
var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// ParseDate parses a strict YYYY-MM-DD date. Rejects impossible calendar
// dates such as 2024-02-30.
func ParseDate(s string) (time.Time, error) {
	var t, err = time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, wire.NewError(wire.KindInvalidArgument, "invalid date %q", s)
	}
	return t.UTC(), nil
}

// Query is a validated bar query over an inclusive date range.
type Query struct {
	Symbol      market.Symbol
	From        time.Time
	To          time.Time
	Granularity market.Granularity
}

// Validate enforces the query invariants: from <= to, from >= 1970-01-01,
// to <= today+1.
func (q Query) Validate() error {
	if q.Symbol == "" {
		return wire.NewError(wire.KindInvalidArgument, "symbol is required")
	} else if !q.Granularity.Valid() {
		return wire.NewError(wire.KindInvalidArgument, "granularity %q is not valid", q.Granularity)
	} else if q.From.After(q.To) {
		return wire.NewError(wire.KindInvalidArgument, "from %s is after to %s",
			q.From.Format("2006-01-02"), q.To.Format("2006-01-02"))
	} else if q.From.Before(epoch) {
		return wire.NewError(wire.KindInvalidArgument, "from %s precedes 1970-01-01",
			q.From.Format("2006-01-02"))
	}

	var limit = time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	if q.To.After(limit) {
		return wire.NewError(wire.KindInvalidArgument, "to %s is in the future",
			q.To.Format("2006-01-02"))
	}
	return nil
}

// ChainQuery is a validated option-chain query for one expiry date.
type ChainQuery struct {
	Symbol market.Symbol
	Expiry time.Time
}

// Validate enforces chain query invariants.
func (q ChainQuery) Validate() error {
	if q.Symbol == "" {
		return wire.NewError(wire.KindInvalidArgument, "symbol is required")
	} else if q.Expiry.Before(epoch) {
		return wire.NewError(wire.KindInvalidArgument, "expiry %s precedes 1970-01-01",
			q.Expiry.Format("2006-01-02"))
	}
	return nil
}
