package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/strollhq/stroll-history/go/market"
)

// Snapshot is an immutable view of discovered partitions. Catalog swaps
// whole snapshots atomically on refresh; readers never observe a partial
// discovery.
type Snapshot struct {
	entries  []Entry
	degraded bool
}

// Discover walks root and parses every partition filename it recognizes.
// Unknown names are logged at warn and skipped. A missing root yields an
// empty, degraded snapshot rather than an error: the service stays up and
// reports PROVIDER_UNAVAILABLE per-query.
func Discover(root string, symbols *market.SymbolTable) *Snapshot {
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		log.WithFields(log.Fields{"root": root, "err": err}).
			Warn("data root is missing; catalog is degraded")
		return &Snapshot{degraded: true}
	}

	var snap = &Snapshot{}
	var seen = make(map[string]string) // Entry key -> path.

	var walkErr = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.WithFields(log.Fields{"path": path, "err": err}).Warn("skipping unreadable path")
			return nil
		} else if d.IsDir() {
			return nil
		}

		var parsed, perr = parseName(d.Name())
		if perr != nil {
			if extensions[strings.ToLower(filepath.Ext(d.Name()))] {
				log.WithFields(log.Fields{"file": d.Name(), "reason": perr}).
					Warn("ignoring unrecognized partition filename")
			}
			return nil
		}

		var symbol, serr = symbols.Intern(parsed.symbol)
		if serr != nil {
			log.WithFields(log.Fields{"file": d.Name(), "err": serr}).
				Warn("ignoring partition with invalid symbol")
			return nil
		}

		var entry = Entry{
			Symbol:      symbol,
			Kind:        parsed.kind,
			Granularity: parsed.granularity,
			Span:        parsed.span,
			Path:        path,
			Order:       len(snap.entries),
		}
		if prior, dup := seen[entry.Key()]; dup {
			log.WithFields(log.Fields{"file": path, "duplicateOf": prior}).
				Warn("ignoring duplicate partition")
			return nil
		}
		seen[entry.Key()] = path
		snap.entries = append(snap.entries, entry)

		var size int64
		if fi, ferr := d.Info(); ferr == nil {
			size = fi.Size()
		}
		log.WithFields(log.Fields{
			"symbol": symbol,
			"kind":   entry.Kind,
			"g":      entry.Granularity,
			"span":   entry.Span,
			"size":   humanize.Bytes(uint64(size)),
		}).Debug("discovered partition")
		return nil
	})
	if walkErr != nil {
		log.WithFields(log.Fields{"root": root, "err": walkErr}).
			Warn("partition discovery terminated early")
	}

	log.WithFields(log.Fields{"root": root, "partitions": len(snap.entries)}).
		Info("catalog discovery complete")
	return snap
}

// Entries returns all discovered entries in discovery order.
func (s *Snapshot) Entries() []Entry { return s.entries }

// Degraded reports whether the data root was unavailable at discovery.
func (s *Snapshot) Degraded() bool { return s.degraded }

// Catalog resolves queries onto partition entries. It owns the current
// Snapshot (swapped atomically by Refresh) and the quarantine set of
// partitions that failed structurally since the last refresh.
type Catalog struct {
	root    string
	symbols *market.SymbolTable

	snap        atomic.Pointer[Snapshot]
	mu          sync.Mutex // Serializes Refresh.
	quarantined sync.Map   // path -> reason string.
}

// NewCatalog discovers root and returns a ready Catalog.
func NewCatalog(root string, symbols *market.SymbolTable) *Catalog {
	var c = &Catalog{root: root, symbols: symbols}
	c.snap.Store(Discover(root, symbols))
	return c
}

// Refresh re-discovers the data root, swaps in the new snapshot, and clears
// the quarantine set.
func (c *Catalog) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap.Store(Discover(c.root, c.symbols))
	c.quarantined.Range(func(k, _ interface{}) bool {
		c.quarantined.Delete(k)
		return true
	})
}

// Degraded reports whether the current snapshot was built without a data
// root.
func (c *Catalog) Degraded() bool { return c.snap.Load().Degraded() }

// Root returns the configured data root.
func (c *Catalog) Root() string { return c.root }

// Entries returns the current snapshot's entries, excluding quarantined
// partitions.
func (c *Catalog) Entries() []Entry {
	var out []Entry
	for _, e := range c.snap.Load().Entries() {
		if _, bad := c.quarantined.Load(e.Path); !bad {
			out = append(out, e)
		}
	}
	return out
}

// Resolve returns the non-quarantined entries matching (symbol, kind, g)
// whose spans intersect [from, to], ordered by span start ascending with
// discovery order as the stable tie-break. Granularity is ignored for
// non-bar kinds.
func (c *Catalog) Resolve(symbol market.Symbol, kind Kind, g market.Granularity, from, to time.Time) []Entry {
	var out []Entry
	for _, e := range c.snap.Load().Entries() {
		if e.Symbol != symbol || e.Kind != kind {
			continue
		} else if kind == KindBars && e.Granularity != g {
			continue
		} else if !e.Span.Overlaps(from, to) {
			continue
		} else if _, bad := c.quarantined.Load(e.Path); bad {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Span.Start.Equal(out[j].Span.Start) {
			return out[i].Span.Start.Before(out[j].Span.Start)
		}
		return out[i].Order < out[j].Order
	})
	return out
}

// Quarantine excludes a partition from future resolution until the next
// Refresh. Used by the store when a partition fails structurally.
func (c *Catalog) Quarantine(path, reason string) {
	if _, loaded := c.quarantined.LoadOrStore(path, reason); !loaded {
		log.WithFields(log.Fields{"path": path, "reason": reason}).
			Warn("quarantined partition")
	}
}

// Quarantined reports whether path is currently quarantined.
func (c *Catalog) Quarantined(path string) bool {
	var _, bad = c.quarantined.Load(path)
	return bad
}

// String describes the catalog for diagnostics.
func (c *Catalog) String() string {
	return fmt.Sprintf("catalog(root=%s, partitions=%d, degraded=%t)",
		c.root, len(c.snap.Load().Entries()), c.Degraded())
}
