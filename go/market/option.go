package market

import (
	"fmt"
	"time"
)

// Right is an option contract right.
type Right string

const (
	// Call option right.
	Call Right = "CALL"
	// Put option right.
	Put Right = "PUT"
)

// ParseRight canonicalizes an option right spelling ("C", "call", ...).
func ParseRight(s string) (Right, error) {
	switch s {
	case "C", "c", "CALL", "call", "Call":
		return Call, nil
	case "P", "p", "PUT", "put", "Put":
		return Put, nil
	}
	return "", fmt.Errorf("unknown option right %q", s)
}

// OptionRow is one row of a stored option chain. Bid, Ask, Mid, Delta and
// Gamma are optional: absent values are nil and serialize as null.
type OptionRow struct {
	Symbol Symbol
	Expiry time.Time
	Right  Right
	Strike Price
	Bid    *Price
	Ask    *Price
	Mid    *Price
	Delta  *float64
	Gamma  *float64
}

// Validate checks chain invariants: strike > 0 and bid <= ask when both
// sides are present.
func (r *OptionRow) Validate() error {
	if r.Strike <= 0 {
		return fmt.Errorf("option strike %s is not positive", r.Strike)
	} else if r.Right != Call && r.Right != Put {
		return fmt.Errorf("option right %q is not canonical", r.Right)
	} else if r.Bid != nil && r.Ask != nil && *r.Bid > *r.Ask {
		return fmt.Errorf("option bid %s exceeds ask %s", *r.Bid, *r.Ask)
	} else if r.Expiry.IsZero() {
		return fmt.Errorf("option expiry is zero")
	}
	return nil
}
