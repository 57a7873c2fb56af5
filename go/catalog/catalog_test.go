package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/strollhq/stroll-history/go/market"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseNameGrammar(t *testing.T) {
	var cases = []struct {
		name   string
		expect parsedName
	}{
		{"spy_1min_2024.db", parsedName{
			symbol: "spy", kind: KindBars, granularity: market.Minute1,
			span: yearSpan(2024, 2024),
		}},
		{"spy_5min_2021_2025.sqlite", parsedName{
			symbol: "spy", kind: KindBars, granularity: market.Minute5,
			span: yearSpan(2021, 2025),
		}},
		{"qqq_1d_2020_2024.SQLITE3", parsedName{
			symbol: "qqq", kind: KindBars, granularity: market.Day1,
			span: yearSpan(2020, 2024),
		}},
		{"trades_spy_2025_01.db", parsedName{
			symbol: "spy", kind: KindTicks,
			span: monthSpan(2025, time.January),
		}},
		{"options_spx_2024.db", parsedName{
			symbol: "spx", kind: KindOptions,
			span: yearSpan(2024, 2024),
		}},
		{"options_spx_2024_01.db", parsedName{
			symbol: "spx", kind: KindOptions,
			span: monthSpan(2024, time.January),
		}},
	}
	for _, tc := range cases {
		var got, err = parseName(tc.name)
		require.NoError(t, err, tc.name)
		require.Equal(t, tc.expect, got, tc.name)
	}
}

func TestParseNameRejects(t *testing.T) {
	var rejects = []string{
		"SPY_2005_to_2009.csv",    // Legacy naming: uppercase, wrong shape, wrong ext.
		"spy_1min_2024.csv",       // Not a partition extension.
		"SPY_1min_2024.db",        // Uppercase token.
		"spy_2024.db",             // Too few tokens.
		"spy_1min_2024_2023.db",   // Inverted year range.
		"spy_2min_2024.db",        // Unknown granularity.
		"options_spx_2024_13.db",  // Bad month.
		"trades_spy_2025.db",      // Sub-minute name without month.
		"spy_1min_24.db",          // Two-digit year.
		"notes.txt",               // Not a database at all.
	}
	for _, name := range rejects {
		var _, err = parseName(name)
		require.Error(t, err, name)
	}
}

func writePartitionFixture(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
}

func TestDiscoverAndResolve(t *testing.T) {
	var dir = t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	writePartitionFixture(t, dir,
		"spy_1min_2023.db",
		"spy_1min_2024.db",
		"spy_1d_2020_2024.db",
		"qqq_1min_2024.db",
		"options_spx_2024_01.db",
		"trades_spy_2025_01.db",
		"README.md",
		"legacy_junk.db",
	)
	writePartitionFixture(t, filepath.Join(dir, "nested"), "spy_1min_2025.db")

	var symbols = market.NewSymbolTable()
	var cat = NewCatalog(dir, symbols)
	require.False(t, cat.Degraded())
	require.Len(t, cat.Entries(), 7)

	// Yearly 1m partitions, ordered by span start.
	var got = cat.Resolve("SPY", KindBars, market.Minute1, date(2023, 6, 1), date(2025, 2, 1))
	require.Len(t, got, 3)
	require.Equal(t, date(2023, 1, 1), got[0].Span.Start)
	require.Equal(t, date(2024, 1, 1), got[1].Span.Start)
	require.Equal(t, date(2025, 1, 1), got[2].Span.Start)

	// Range overlap is inclusive on both ends.
	got = cat.Resolve("SPY", KindBars, market.Minute1, date(2023, 12, 31), date(2023, 12, 31))
	require.Len(t, got, 1)

	// Granularity filters bar entries.
	got = cat.Resolve("SPY", KindBars, market.Day1, date(2021, 1, 1), date(2021, 1, 2))
	require.Len(t, got, 1)
	require.Equal(t, market.Day1, got[0].Granularity)

	// 1h is accepted but has no covering partition.
	got = cat.Resolve("SPY", KindBars, market.Hour1, date(2024, 1, 1), date(2024, 1, 2))
	require.Empty(t, got)

	// Options resolve by symbol and span only.
	got = cat.Resolve("SPX", KindOptions, "", date(2024, 1, 19), date(2024, 1, 19))
	require.Len(t, got, 1)

	// Tick partitions never match bar queries.
	got = cat.Resolve("SPY", KindBars, market.Minute1, date(2025, 1, 10), date(2025, 1, 10))
	for _, e := range got {
		require.NotEqual(t, KindTicks, e.Kind)
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	var cat = NewCatalog(filepath.Join(t.TempDir(), "nope"), market.NewSymbolTable())
	require.True(t, cat.Degraded())
	require.Empty(t, cat.Entries())
}

func TestQuarantineExcludesUntilRefresh(t *testing.T) {
	var dir = t.TempDir()
	writePartitionFixture(t, dir, "spy_1min_2024.db")

	var cat = NewCatalog(dir, market.NewSymbolTable())
	var got = cat.Resolve("SPY", KindBars, market.Minute1, date(2024, 1, 1), date(2024, 12, 31))
	require.Len(t, got, 1)

	cat.Quarantine(got[0].Path, "structural read failure")
	require.True(t, cat.Quarantined(got[0].Path))
	require.Empty(t, cat.Resolve("SPY", KindBars, market.Minute1, date(2024, 1, 1), date(2024, 12, 31)))

	cat.Refresh()
	require.False(t, cat.Quarantined(got[0].Path))
	require.Len(t, cat.Resolve("SPY", KindBars, market.Minute1, date(2024, 1, 1), date(2024, 12, 31)), 1)
}

func TestDuplicateEntriesIgnored(t *testing.T) {
	var dir = t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "copy"), 0o755))
	writePartitionFixture(t, dir, "spy_1min_2024.db")
	writePartitionFixture(t, filepath.Join(dir, "copy"), "spy_1min_2024.db")

	var cat = NewCatalog(dir, market.NewSymbolTable())
	require.Len(t, cat.Entries(), 1)
}
