package market

import (
	"fmt"
	"time"
)

// Bar is a single OHLCV record at a fixed cadence. Bars are immutable once
// normalized; the wire representation is owned by the packager.
type Bar struct {
	Time        time.Time
	Open        Price
	High        Price
	Low         Price
	Close       Price
	Volume      int64
	Symbol      Symbol
	Granularity Granularity
}

// Validate checks the bar integrity invariant:
// l <= min(o,c) <= max(o,c) <= h, and v >= 0.
func (b *Bar) Validate() error {
	var lo, hi = b.Open, b.Open
	if b.Close < lo {
		lo = b.Close
	}
	if b.Close > hi {
		hi = b.Close
	}

	if b.Low > lo {
		return fmt.Errorf("bar low %s exceeds min(open, close) %s", b.Low, lo)
	} else if b.High < hi {
		return fmt.Errorf("bar high %s is below max(open, close) %s", b.High, hi)
	} else if b.Volume < 0 {
		return fmt.Errorf("bar volume %d is negative", b.Volume)
	} else if b.Symbol == "" {
		return fmt.Errorf("bar symbol is empty")
	} else if !b.Granularity.Valid() {
		return fmt.Errorf("bar granularity %q is not canonical", b.Granularity)
	} else if b.Time.IsZero() {
		return fmt.Errorf("bar timestamp is zero")
	}
	return nil
}
