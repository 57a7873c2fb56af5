package catalog

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/strollhq/stroll-history/go/market"
)

// Partition filename grammar. Tokens are lowercase; extensions are
// case-insensitive:
//
//	bars:       <symbol>_<g>_<y1>[_<y2>].<ext>     spy_1min_2024.db
//	sub-minute: <kind>_<symbol>_<yyyy>_<mm>.<ext>  trades_spy_2025_01.db
//	options:    options_<symbol>_<yyyy>[_<mm>].<ext>
//
// Anything else is not a partition and is ignored by discovery.

// extensions accepted for partition files.
var extensions = map[string]bool{
	".db":      true,
	".sqlite":  true,
	".sqlite3": true,
}

// tickKinds are the recognized sub-minute partition kinds.
var tickKinds = map[string]bool{
	"trades": true,
	"quotes": true,
	"ticks":  true,
}

const (
	minYear = 1970
	maxYear = 2100
)

// parsedName is the outcome of parsing one partition filename.
type parsedName struct {
	symbol      string
	kind        Kind
	granularity market.Granularity
	span        Span
}

// parseName parses the base name of a candidate partition file against the
// filename grammar.
func parseName(base string) (parsedName, error) {
	var ext = filepath.Ext(base)
	if !extensions[strings.ToLower(ext)] {
		return parsedName{}, fmt.Errorf("extension %q is not a partition extension", ext)
	}

	var stem = strings.TrimSuffix(base, ext)
	if stem != strings.ToLower(stem) {
		return parsedName{}, fmt.Errorf("name %q has non-lowercase tokens", stem)
	}
	var tokens = strings.Split(stem, "_")

	switch {
	case tokens[0] == "options":
		return parseOptionsName(tokens)
	case tickKinds[tokens[0]]:
		return parseTicksName(tokens)
	default:
		return parseBarsName(tokens)
	}
}

// parseOptionsName parses options_<symbol>_<yyyy>[_<mm>].
func parseOptionsName(tokens []string) (parsedName, error) {
	if len(tokens) < 3 || len(tokens) > 4 {
		return parsedName{}, fmt.Errorf("options name has %d tokens, want 3 or 4", len(tokens))
	}
	var year, err = parseYear(tokens[2])
	if err != nil {
		return parsedName{}, err
	}

	var span = yearSpan(year, year)
	if len(tokens) == 4 {
		month, err := parseMonth(tokens[3])
		if err != nil {
			return parsedName{}, err
		}
		span = monthSpan(year, month)
	}
	return parsedName{symbol: tokens[1], kind: KindOptions, span: span}, nil
}

// parseTicksName parses <kind>_<symbol>_<yyyy>_<mm>.
func parseTicksName(tokens []string) (parsedName, error) {
	if len(tokens) != 4 {
		return parsedName{}, fmt.Errorf("tick name has %d tokens, want 4", len(tokens))
	}
	var year, err = parseYear(tokens[2])
	if err != nil {
		return parsedName{}, err
	}
	month, err := parseMonth(tokens[3])
	if err != nil {
		return parsedName{}, err
	}
	return parsedName{symbol: tokens[1], kind: KindTicks, span: monthSpan(year, month)}, nil
}

// parseBarsName parses <symbol>_<g>_<y1>[_<y2>].
func parseBarsName(tokens []string) (parsedName, error) {
	if len(tokens) < 3 || len(tokens) > 4 {
		return parsedName{}, fmt.Errorf("bars name has %d tokens, want 3 or 4", len(tokens))
	}
	var g, err = market.ParseGranularity(tokens[1])
	if err != nil {
		return parsedName{}, err
	}
	y1, err := parseYear(tokens[2])
	if err != nil {
		return parsedName{}, err
	}

	var y2 = y1
	if len(tokens) == 4 {
		if y2, err = parseYear(tokens[3]); err != nil {
			return parsedName{}, err
		} else if y2 < y1 {
			return parsedName{}, fmt.Errorf("year range %d_%d is inverted", y1, y2)
		}
	}
	return parsedName{
		symbol:      tokens[0],
		kind:        KindBars,
		granularity: g,
		span:        yearSpan(y1, y2),
	}, nil
}

func parseYear(s string) (int, error) {
	var y, err = strconv.Atoi(s)
	if err != nil || len(s) != 4 || y < minYear || y > maxYear {
		return 0, fmt.Errorf("%q is not a year", s)
	}
	return y, nil
}

func parseMonth(s string) (time.Month, error) {
	var m, err = strconv.Atoi(s)
	if err != nil || len(s) != 2 || m < 1 || m > 12 {
		return 0, fmt.Errorf("%q is not a month", s)
	}
	return time.Month(m), nil
}
