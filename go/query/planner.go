package query

import (
	"container/heap"
	"context"
	"sort"
	"sync/atomic"

	"github.com/strollhq/stroll-history/go/catalog"
	"github.com/strollhq/stroll-history/go/market"
	"github.com/strollhq/stroll-history/go/partition"
	"github.com/strollhq/stroll-history/go/wire"
)

// DefaultMaxRows caps materialized rows per query.
const DefaultMaxRows = 1_000_000

// Planner resolves a query to partitions and merges their row streams in
// timestamp order.
type Planner struct {
	catalog *catalog.Catalog
	store   *partition.Store
	maxRows int

	invocations atomic.Int64
}

// NewPlanner returns a Planner over the catalog and store. maxRows <= 0
// selects DefaultMaxRows.
func NewPlanner(cat *catalog.Catalog, store *partition.Store, maxRows int) *Planner {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Planner{catalog: cat, store: store, maxRows: maxRows}
}

// Invocations returns the count of planner entries since startup. Cache
// hits never enter the planner, which makes this counter the observable
// half of the singleflight contract.
func (p *Planner) Invocations() int64 { return p.invocations.Load() }

// BarResult is a fully materialized, merged bar stream.
type BarResult struct {
	Bars             []market.Bar
	Dropped          int
	OverlapConflicts int
}

// Bars plans and executes a bar query: resolve partitions, open a scan per
// partition, and k-way merge in ascending timestamp order. Duplicate
// (symbol, t, g) rows across partitions keep the copy from the partition
// with the later span start.
func (p *Planner) Bars(ctx context.Context, q Query) (*BarResult, error) {
	p.invocations.Add(1)

	if p.catalog.Degraded() {
		return nil, wire.NewError(wire.KindProviderUnavailable, "data root is unavailable")
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var entries = p.catalog.Resolve(q.Symbol, catalog.KindBars, q.Granularity, q.From, q.To)
	if len(entries) == 0 {
		return nil, wire.NewError(wire.KindNotFound,
			"no %s partitions cover %s from %s to %s", q.Granularity, q.Symbol,
			q.From.Format("2006-01-02"), q.To.Format("2006-01-02"))
	}

	var scans = make([]*partition.BarScan, 0, len(entries))
	defer func() {
		for _, s := range scans {
			_ = s.Close()
		}
	}()

	for _, entry := range entries {
		var h, err = p.store.OpenRead(entry)
		if err != nil {
			return nil, err
		}
		scan, err := p.store.ScanBars(ctx, h, q.Symbol, q.From, q.To, q.Granularity)
		if err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}

	return p.merge(entries, scans)
}

// merge drains the per-partition scans through a min-heap keyed on
// (timestamp asc, span start desc), so that for duplicate timestamps the
// preferred copy surfaces first and the rest are counted as conflicts.
func (p *Planner) merge(entries []catalog.Entry, scans []*partition.BarScan) (*BarResult, error) {
	var result = &BarResult{}
	var h = &mergeHeap{}

	var advance = func(idx int) error {
		var bar, ok = scans[idx].Next()
		if ok {
			heap.Push(h, mergeItem{bar: bar, idx: idx, spanStart: entries[idx].Span.Start.Unix()})
			return nil
		}
		return scans[idx].Err()
	}

	for idx := range scans {
		if err := advance(idx); err != nil {
			return nil, err
		}
	}

	for h.Len() > 0 {
		var item = heap.Pop(h).(mergeItem)

		if n := len(result.Bars); n > 0 && !item.bar.Time.After(result.Bars[n-1].Time) {
			// Cross-partition duplicate; the preferred copy already popped.
			result.OverlapConflicts++
			overlapConflicts.Inc()
		} else {
			if len(result.Bars) >= p.maxRows {
				return nil, wire.NewError(wire.KindQueryTooLarge,
					"query exceeds %d rows; narrow the range", p.maxRows)
			}
			result.Bars = append(result.Bars, item.bar)
		}

		if err := advance(item.idx); err != nil {
			return nil, err
		}
	}

	for _, s := range scans {
		result.Dropped += s.Dropped()
	}
	return result, nil
}

// Chain plans and executes an option-chain query. An empty chain is not an
// error: absent expiries yield zero rows. Duplicate (right, strike) rows
// across overlapping partitions keep the later span start.
func (p *Planner) Chain(ctx context.Context, q ChainQuery) ([]market.OptionRow, error) {
	p.invocations.Add(1)

	if p.catalog.Degraded() {
		return nil, wire.NewError(wire.KindProviderUnavailable, "data root is unavailable")
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var entries = p.catalog.Resolve(q.Symbol, catalog.KindOptions, "", q.Expiry, q.Expiry)

	// Entries arrive in ascending span-start order, so later spans simply
	// overwrite earlier copies of the same contract.
	var byContract = make(map[contractKey]market.OptionRow)
	for _, entry := range entries {
		var h, err = p.store.OpenRead(entry)
		if err != nil {
			return nil, err
		}
		rows, err := p.store.ScanOptions(ctx, h, q.Symbol, q.Expiry)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			var key = contractKey{right: row.Right, strike: row.Strike}
			if _, dup := byContract[key]; dup {
				overlapConflicts.Inc()
			}
			byContract[key] = row
		}
	}

	var out = make([]market.OptionRow, 0, len(byContract))
	for _, row := range byContract {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Right != out[j].Right {
			return out[i].Right < out[j].Right
		}
		return out[i].Strike < out[j].Strike
	})
	return out, nil
}

type contractKey struct {
	right  market.Right
	strike market.Price
}

type mergeItem struct {
	bar       market.Bar
	idx       int
	spanStart int64
}

// mergeHeap orders by ascending bar time; equal times order by descending
// span start so the preferred duplicate pops first.
type mergeHeap []mergeItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if !h[i].bar.Time.Equal(h[j].bar.Time) {
		return h[i].bar.Time.Before(h[j].bar.Time)
	}
	return h[i].spanStart > h[j].spanStart
}
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(mergeItem)) }
func (h *mergeHeap) Pop() interface{} {
	var old = *h
	var item = old[len(old)-1]
	*h = old[:len(old)-1]
	return item
}
