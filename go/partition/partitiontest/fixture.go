// Package partitiontest builds throwaway SQLite partition fixtures for
// tests of the store, planner, and tool handlers.
package partitiontest

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3" // Import for registration side-effect.
	"github.com/stretchr/testify/require"
)

// Open opens (creating if needed) a writable fixture database at path, and
// closes it when the test ends.
func Open(t testing.TB, path string) *sql.DB {
	t.Helper()
	var db, err = sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// InitBars creates the uniform bars schema. Uniqueness of (symbol, t, g) is
// deliberately not enforced here: the service must tolerate partitions
// written by misbehaving ingesters, and tests exercise exactly that.
func InitBars(t testing.TB, db *sql.DB) {
	t.Helper()
	var stmts = []string{
		`CREATE TABLE IF NOT EXISTS bars (
			symbol TEXT NOT NULL,
			t      TEXT NOT NULL,
			o      REAL NOT NULL,
			h      REAL NOT NULL,
			l      REAL NOT NULL,
			c      REAL NOT NULL,
			v      INTEGER NOT NULL,
			g      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS bars_symbol_t ON bars(symbol, t)`,
		`CREATE INDEX IF NOT EXISTS bars_symbol_g ON bars(symbol, g)`,
		`CREATE INDEX IF NOT EXISTS bars_t ON bars(t)`,
	}
	for _, stmt := range stmts {
		var _, err = db.Exec(stmt)
		require.NoError(t, err)
	}
}

// InsertBar adds one raw bars row.
func InsertBar(t testing.TB, db *sql.DB, symbol, ts string, o, h, l, c float64, v int64, g string) {
	t.Helper()
	var _, err = db.Exec(
		`INSERT INTO bars (symbol, t, o, h, l, c, v, g) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		symbol, ts, o, h, l, c, v, g)
	require.NoError(t, err)
}

// InitOptions creates the uniform options schema.
func InitOptions(t testing.TB, db *sql.DB) {
	t.Helper()
	var stmts = []string{
		`CREATE TABLE IF NOT EXISTS options (
			symbol  TEXT NOT NULL,
			expiry  TEXT NOT NULL,
			"right" TEXT NOT NULL,
			strike  REAL NOT NULL,
			bid     REAL,
			ask     REAL,
			mid     REAL,
			delta   REAL,
			gamma   REAL
		)`,
		`CREATE INDEX IF NOT EXISTS options_symbol_expiry ON options(symbol, expiry)`,
		`CREATE INDEX IF NOT EXISTS options_expiry ON options(expiry)`,
	}
	for _, stmt := range stmts {
		var _, err = db.Exec(stmt)
		require.NoError(t, err)
	}
}

// InsertOption adds one raw options row. Nullable columns accept nil.
func InsertOption(t testing.TB, db *sql.DB, symbol, expiry, right string, strike float64, bid, ask, mid, delta, gamma interface{}) {
	t.Helper()
	var _, err = db.Exec(
		`INSERT INTO options (symbol, expiry, "right", strike, bid, ask, mid, delta, gamma)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		symbol, expiry, right, strike, bid, ask, mid, delta, gamma)
	require.NoError(t, err)
}

// BarSeed is a compact row spec for WriteBars.
type BarSeed struct {
	T          string
	O, H, L, C float64
	V          int64
}

// WriteBars creates a bars partition at path holding the seeded rows for
// (symbol, g).
func WriteBars(t testing.TB, path, symbol, g string, seeds []BarSeed) {
	t.Helper()
	var db = Open(t, path)
	InitBars(t, db)
	for _, s := range seeds {
		InsertBar(t, db, symbol, s.T, s.O, s.H, s.L, s.C, s.V, g)
	}
}
