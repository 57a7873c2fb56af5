package partition

import (
	"context"
	"database/sql"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/strollhq/stroll-history/go/market"
	"github.com/strollhq/stroll-history/go/wire"
)

const scanBarsSQL = `
SELECT t, o, h, l, c, v FROM bars
WHERE symbol = ? AND g = ? AND date(t) BETWEEN ? AND ?
ORDER BY t ASC`

const scanOptionsSQL = `
SELECT expiry, "right", strike, bid, ask, mid, delta, gamma FROM options
WHERE symbol = ? AND date(expiry) = ?
ORDER BY "right" ASC, strike ASC`

// ScanBars begins a streaming range scan of bars for (symbol, g) over the
// inclusive date range [from, to]. The scan carries its own deadline,
// independent of (but bounded by) the caller's context.
func (s *Store) ScanBars(ctx context.Context, h *Handle, symbol market.Symbol, from, to time.Time, g market.Granularity) (*BarScan, error) {
	var scanCtx, cancel = context.WithTimeout(ctx, s.scanTimeout)

	var rows, err = h.db.QueryContext(scanCtx, scanBarsSQL,
		symbol.String(), g.String(),
		from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))
	if err != nil {
		cancel()
		return nil, s.classify(h, err)
	}
	return &BarScan{store: s, h: h, rows: rows, cancel: cancel, symbol: symbol, g: g}, nil
}

// BarScan streams normalized bars from one partition in ascending
// timestamp order. Rows failing normalization are dropped and counted;
// Err reports DATA_ERROR when more than half of all scanned rows dropped.
type BarScan struct {
	store  *Store
	h      *Handle
	rows   *sql.Rows
	cancel context.CancelFunc
	symbol market.Symbol
	g      market.Granularity

	total   int
	dropped int
	lastT   time.Time
	hasLast bool
	done    bool
	err     error
}

// Next returns the next bar, or false when the scan is exhausted or
// failed. After false, consult Err.
func (b *BarScan) Next() (market.Bar, bool) {
	if b.done {
		return market.Bar{}, false
	}

	for b.rows.Next() {
		var t, o, h, l, c, v interface{}
		if err := b.rows.Scan(&t, &o, &h, &l, &c, &v); err != nil {
			b.finish(err)
			return market.Bar{}, false
		}
		b.total++

		var bar, err = normalizeBar(t, o, h, l, c, v, b.symbol, b.g)
		if err != nil {
			b.drop(err)
			continue
		}
		// Duplicate timestamps within one partition violate the
		// (symbol, t, g) uniqueness invariant; keep the first row.
		if b.hasLast && !bar.Time.After(b.lastT) {
			b.drop(wire.NewError(wire.KindDataError,
				"duplicate timestamp %s", wire.FormatTime(bar.Time)))
			continue
		}
		b.lastT, b.hasLast = bar.Time, true
		return bar, true
	}

	b.finish(b.rows.Err())
	return market.Bar{}, false
}

func (b *BarScan) drop(err error) {
	b.dropped++
	rowsDropped.WithLabelValues("bars").Inc()
	log.WithFields(log.Fields{
		"partition": b.h.Entry.Path,
		"err":       err,
	}).Debug("dropped bar row")
}

func (b *BarScan) finish(err error) {
	if b.done {
		return
	}
	b.done = true
	b.err = b.store.classify(b.h, err)

	if b.err == nil && b.total > 0 && b.dropped*2 > b.total {
		b.err = wire.NewError(wire.KindDataError,
			"partition %s dropped %d of %d rows", b.h.Entry.Span, b.dropped, b.total)
	}
	scansTotal.WithLabelValues("bars", scanOutcome(b.err)).Inc()
}

// Err returns the terminal error of the scan, if any.
func (b *BarScan) Err() error { return b.err }

// Dropped returns the count of rows dropped during normalization.
func (b *BarScan) Dropped() int { return b.dropped }

// Total returns the count of raw rows observed.
func (b *BarScan) Total() int { return b.total }

// Close releases the scan's resources. Safe to call more than once.
func (b *BarScan) Close() error {
	b.done = true
	var err = b.rows.Close()
	b.cancel()
	return err
}

// ScanOptions reads the full option chain of (symbol, expiry), ordered by
// (right, strike). The chain is small and bounded, so it is materialized
// rather than streamed.
func (s *Store) ScanOptions(ctx context.Context, h *Handle, symbol market.Symbol, expiry time.Time) ([]market.OptionRow, error) {
	var scanCtx, cancel = context.WithTimeout(ctx, s.scanTimeout)
	defer cancel()

	var rows, err = h.db.QueryContext(scanCtx, scanOptionsSQL,
		symbol.String(), expiry.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, s.classify(h, err)
	}
	defer rows.Close()

	var out []market.OptionRow
	var total, dropped int
	for rows.Next() {
		var expiryRaw, right, strike, bid, ask, mid, delta, gamma interface{}
		if err := rows.Scan(&expiryRaw, &right, &strike, &bid, &ask, &mid, &delta, &gamma); err != nil {
			scansTotal.WithLabelValues("options", "error").Inc()
			return nil, s.classify(h, err)
		}
		total++

		var row, nerr = normalizeOption(expiryRaw, right, strike, bid, ask, mid, delta, gamma, symbol)
		if nerr != nil {
			dropped++
			rowsDropped.WithLabelValues("options").Inc()
			log.WithFields(log.Fields{
				"partition": h.Entry.Path,
				"err":       nerr,
			}).Debug("dropped option row")
			continue
		}
		out = append(out, row)
	}

	if err := s.classify(h, rows.Err()); err != nil {
		scansTotal.WithLabelValues("options", scanOutcome(err)).Inc()
		return nil, err
	}
	if total > 0 && dropped*2 > total {
		scansTotal.WithLabelValues("options", "data_error").Inc()
		return nil, wire.NewError(wire.KindDataError,
			"partition %s dropped %d of %d chain rows", h.Entry.Span, dropped, total)
	}

	// Raw "right" spellings vary across ingesters, so the SQL ordering is
	// only approximate; re-sort on the canonical (right, strike) key.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Right != out[j].Right {
			return out[i].Right < out[j].Right
		}
		return out[i].Strike < out[j].Strike
	})
	scansTotal.WithLabelValues("options", "ok").Inc()
	return out, nil
}
