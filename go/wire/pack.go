package wire

import (
	"github.com/strollhq/stroll-history/go/market"
)

// BarPayload is the compact wire form of a Bar. Field names are part of the
// stable contract and must not change.
type BarPayload struct {
	T      string       `json:"t"`
	O      market.Price `json:"o"`
	H      market.Price `json:"h"`
	L      market.Price `json:"l"`
	C      market.Price `json:"c"`
	V      int64        `json:"v"`
	Symbol string       `json:"symbol"`
	G      string       `json:"g"`
}

// PackBar maps a canonical Bar to its wire form.
func PackBar(b market.Bar) BarPayload {
	return BarPayload{
		T:      FormatTime(b.Time),
		O:      b.Open,
		H:      b.High,
		L:      b.Low,
		C:      b.Close,
		V:      b.Volume,
		Symbol: b.Symbol.String(),
		G:      b.Granularity.String(),
	}
}

// PackBars maps a bar slice, always yielding a non-nil (possibly empty)
// slice so empty results serialize as [] rather than null.
func PackBars(bars []market.Bar) []BarPayload {
	var out = make([]BarPayload, 0, len(bars))
	for _, b := range bars {
		out = append(out, PackBar(b))
	}
	return out
}

// OptionPayload is the wire form of an OptionRow. Optional quote fields
// serialize as null when absent.
type OptionPayload struct {
	Symbol string        `json:"symbol"`
	Expiry string        `json:"expiry"`
	Right  string        `json:"right"`
	Strike market.Price  `json:"strike"`
	Bid    *market.Price `json:"bid"`
	Ask    *market.Price `json:"ask"`
	Mid    *market.Price `json:"mid"`
	Delta  *float64      `json:"delta"`
	Gamma  *float64      `json:"gamma"`
}

// PackOption maps a canonical OptionRow to its wire form.
func PackOption(r market.OptionRow) OptionPayload {
	return OptionPayload{
		Symbol: r.Symbol.String(),
		Expiry: r.Expiry.UTC().Format("2006-01-02"),
		Right:  string(r.Right),
		Strike: r.Strike,
		Bid:    r.Bid,
		Ask:    r.Ask,
		Mid:    r.Mid,
		Delta:  r.Delta,
		Gamma:  r.Gamma,
	}
}

// PackOptions maps an option chain, always yielding a non-nil slice.
func PackOptions(rows []market.OptionRow) []OptionPayload {
	var out = make([]OptionPayload, 0, len(rows))
	for _, r := range rows {
		out = append(out, PackOption(r))
	}
	return out
}
