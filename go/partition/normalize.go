package partition

import (
	"fmt"
	"strconv"
	"time"

	"github.com/strollhq/stroll-history/go/market"
)

// The uniform partition schema stores timestamps as UTC text. Offsets are
// converted to UTC on read; zone-less forms are UTC by definition; named
// zones and anything else are ambiguous and rejected.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02",
}

// parseTimestamp coerces a raw timestamp column value to a UTC instant.
func parseTimestamp(raw interface{}) (time.Time, error) {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case time.Time:
		return v.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("timestamp %v has non-text type %T", raw, raw)
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q is not an unambiguous UTC instant", s)
}

// parsePrice coerces a raw price column value (REAL or decimal TEXT) to a
// fixed-point Price.
func parsePrice(raw interface{}) (market.Price, error) {
	switch v := raw.(type) {
	case float64:
		return market.PriceFromFloat(v)
	case int64:
		return market.PriceFromFloat(float64(v))
	case string:
		return market.ParsePrice(v)
	case []byte:
		return market.ParsePrice(string(v))
	default:
		return 0, fmt.Errorf("price %v has unsupported type %T", raw, raw)
	}
}

// parseVolume coerces a raw volume column value to a non-negative integer.
func parseVolume(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("volume %v has unsupported type %T", raw, raw)
	}
}

// normalizeBar converts one raw bars row into a canonical Bar, overwriting
// the symbol and granularity tags with their interned canonical forms, and
// enforcing the bar integrity invariant.
func normalizeBar(t, o, h, l, c, v interface{}, symbol market.Symbol, g market.Granularity) (market.Bar, error) {
	var bar = market.Bar{Symbol: symbol, Granularity: g}
	var err error

	if bar.Time, err = parseTimestamp(t); err != nil {
		return market.Bar{}, err
	}
	if bar.Open, err = parsePrice(o); err != nil {
		return market.Bar{}, fmt.Errorf("open: %w", err)
	}
	if bar.High, err = parsePrice(h); err != nil {
		return market.Bar{}, fmt.Errorf("high: %w", err)
	}
	if bar.Low, err = parsePrice(l); err != nil {
		return market.Bar{}, fmt.Errorf("low: %w", err)
	}
	if bar.Close, err = parsePrice(c); err != nil {
		return market.Bar{}, fmt.Errorf("close: %w", err)
	}
	if bar.Volume, err = parseVolume(v); err != nil {
		return market.Bar{}, fmt.Errorf("volume: %w", err)
	}

	if err = bar.Validate(); err != nil {
		return market.Bar{}, err
	}
	return bar, nil
}

// optionalPrice parses a nullable price column.
func optionalPrice(raw interface{}) (*market.Price, error) {
	if raw == nil {
		return nil, nil
	}
	var p, err = parsePrice(raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// normalizeOption converts one raw options row into a canonical OptionRow.
func normalizeOption(expiry, right, strike, bid, ask, mid, delta, gamma interface{}, symbol market.Symbol) (market.OptionRow, error) {
	var row = market.OptionRow{Symbol: symbol}
	var err error

	if row.Expiry, err = parseTimestamp(expiry); err != nil {
		return market.OptionRow{}, fmt.Errorf("expiry: %w", err)
	}

	var rightStr string
	switch v := right.(type) {
	case string:
		rightStr = v
	case []byte:
		rightStr = string(v)
	default:
		return market.OptionRow{}, fmt.Errorf("right %v has non-text type %T", right, right)
	}
	if row.Right, err = market.ParseRight(rightStr); err != nil {
		return market.OptionRow{}, err
	}

	if row.Strike, err = parsePrice(strike); err != nil {
		return market.OptionRow{}, fmt.Errorf("strike: %w", err)
	}
	if row.Bid, err = optionalPrice(bid); err != nil {
		return market.OptionRow{}, fmt.Errorf("bid: %w", err)
	}
	if row.Ask, err = optionalPrice(ask); err != nil {
		return market.OptionRow{}, fmt.Errorf("ask: %w", err)
	}
	if row.Mid, err = optionalPrice(mid); err != nil {
		return market.OptionRow{}, fmt.Errorf("mid: %w", err)
	}
	if row.Delta, err = optionalFloat(delta); err != nil {
		return market.OptionRow{}, fmt.Errorf("delta: %w", err)
	}
	if row.Gamma, err = optionalFloat(gamma); err != nil {
		return market.OptionRow{}, fmt.Errorf("gamma: %w", err)
	}

	if err = row.Validate(); err != nil {
		return market.OptionRow{}, err
	}
	return row, nil
}

func optionalFloat(raw interface{}) (*float64, error) {
	if raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case float64:
		return &v, nil
	case int64:
		var f = float64(v)
		return &f, nil
	case []byte:
		var f, err = strconv.ParseFloat(string(v), 64)
		if err != nil {
			return nil, err
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("value %v has unsupported type %T", raw, raw)
	}
}
