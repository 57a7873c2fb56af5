package market

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Price is a signed fixed-point decimal with four fractional digits,
// stored as the scaled integer value*10^4. The representation is exact for
// every price quoted to four decimals and marshals deterministically.
type Price int64

// priceScale is the fixed-point denominator.
const priceScale = 10_000

// PriceFromFloat converts a raw float (as read from a partition row) to a
// Price, rounding half away from zero at the fourth decimal.
func PriceFromFloat(f float64) (Price, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("price %v is not finite", f)
	}
	var scaled = f * priceScale
	if scaled >= math.MaxInt64 || scaled <= math.MinInt64 {
		return 0, fmt.Errorf("price %v overflows fixed-point range", f)
	}
	return Price(math.Round(scaled)), nil
}

// ParsePrice parses a decimal string into a Price.
func ParsePrice(s string) (Price, error) {
	var f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing price %q: %w", s, err)
	}
	return PriceFromFloat(f)
}

// Float returns the price as a float64. Intended for comparisons and
// analytics only; serialization must go through String.
func (p Price) Float() float64 { return float64(p) / priceScale }

// String formats the price as a minimal decimal: the integer value when the
// fraction is zero, otherwise up to four fractional digits with trailing
// zeros trimmed. The output is a valid JSON number.
func (p Price) String() string {
	var neg = p < 0
	var v = int64(p)
	if neg {
		v = -v
	}
	var whole, frac = v / priceScale, v % priceScale

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(strconv.FormatInt(whole, 10))
	if frac != 0 {
		var digits = fmt.Sprintf("%04d", frac)
		digits = strings.TrimRight(digits, "0")
		b.WriteByte('.')
		b.WriteString(digits)
	}
	return b.String()
}

// MarshalJSON emits the price as a JSON number.
func (p Price) MarshalJSON() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalJSON parses a JSON number or numeric string.
func (p *Price) UnmarshalJSON(data []byte) error {
	var s = strings.Trim(string(data), `"`)
	var parsed, err = ParsePrice(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
