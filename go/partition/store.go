package partition

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
	"github.com/strollhq/stroll-history/go/catalog"
	"github.com/strollhq/stroll-history/go/wire"
)

// DefaultScanTimeout bounds the wall-clock time of a single partition scan.
const DefaultScanTimeout = 250 * time.Millisecond

// Store owns read-only handles to partition databases. A partition is
// opened on first access and held open for the process lifetime; the
// connection pool across all partitions is bounded.
type Store struct {
	scanTimeout time.Duration
	maxConns    int
	quarantine  func(path, reason string)

	mu      sync.Mutex
	handles map[string]*Handle
}

// Handle is a pooled read-only handle to one partition.
type Handle struct {
	Entry catalog.Entry
	db    *sql.DB
}

// Config configures a Store.
type Config struct {
	// ScanTimeout is the per-scan deadline; DefaultScanTimeout if zero.
	ScanTimeout time.Duration
	// MaxConns bounds open connections across all partitions;
	// 2 x GOMAXPROCS if zero.
	MaxConns int
	// Quarantine is invoked when a partition fails structurally.
	// Typically catalog.Quarantine. May be nil.
	Quarantine func(path, reason string)
}

// NewStore returns an empty Store.
func NewStore(cfg Config) *Store {
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = DefaultScanTimeout
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 2 * runtime.GOMAXPROCS(0)
	}
	if cfg.Quarantine == nil {
		cfg.Quarantine = func(string, string) {}
	}
	return &Store{
		scanTimeout: cfg.ScanTimeout,
		maxConns:    cfg.MaxConns,
		quarantine:  cfg.Quarantine,
		handles:     make(map[string]*Handle),
	}
}

// OpenRead returns the pooled handle for entry, opening the partition
// read-only on first access. Writers are assumed absent for the service
// lifetime; shared cache keeps per-partition page caches common across
// pooled connections, and reads tolerate databases left in WAL mode.
func (s *Store) OpenRead(entry catalog.Entry) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.handles[entry.Path]; ok {
		return h, nil
	}

	if _, err := os.Stat(entry.Path); err != nil {
		return nil, wire.NewError(wire.KindPartitionMissing,
			"partition %s is missing", entry.Span)
	}

	var dsn = fmt.Sprintf("file:%s?mode=ro&cache=shared&_busy_timeout=%d",
		entry.Path, s.scanTimeout.Milliseconds())
	var db, err = sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening partition %s: %w", entry.Path, err)
	}
	db.SetMaxOpenConns(s.maxConns)
	db.SetConnMaxIdleTime(0) // Idle read connections are cheap; keep them.

	var h = &Handle{Entry: entry, db: db}
	s.handles[entry.Path] = h

	log.WithFields(log.Fields{
		"path": entry.Path,
		"kind": entry.Kind,
		"span": entry.Span,
	}).Debug("opened partition read-only")
	return h, nil
}

// Probe runs a trivial read against the partition, verifying the file is
// openable and structurally sound. Used by the health prober; a probe
// failure marks the provider degraded but does not quarantine.
func (s *Store) Probe(ctx context.Context, h *Handle) error {
	var probeCtx, cancel = context.WithTimeout(ctx, s.scanTimeout)
	defer cancel()

	var one int
	var err = h.db.QueryRowContext(probeCtx,
		`SELECT 1 FROM sqlite_master LIMIT 1`).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil // Empty schema is still a readable partition.
	}
	return s.classify(h, err)
}

// Close releases all open partitions.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var first error
	for path, h := range s.handles {
		if err := h.db.Close(); err != nil && first == nil {
			first = fmt.Errorf("closing partition %s: %w", path, err)
		}
		delete(s.handles, path)
	}
	return first
}

// classify maps a raw scan error onto the wire taxonomy, quarantining the
// partition on structural failures.
func (s *Store) classify(h *Handle, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return wire.NewError(wire.KindScanTimeout,
			"scan of partition %s exceeded %s", h.Entry.Span, s.scanTimeout)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrCorrupt, sqlite3.ErrNotADB, sqlite3.ErrIoErr:
			s.quarantine(h.Entry.Path, sqliteErr.Error())
			return wire.NewError(wire.KindPartitionCorrupt,
				"partition %s failed a structural read", h.Entry.Span)
		}
	}
	if _, statErr := os.Stat(h.Entry.Path); statErr != nil {
		s.quarantine(h.Entry.Path, "file vanished")
		return wire.NewError(wire.KindPartitionMissing,
			"partition %s is missing", h.Entry.Span)
	}

	log.WithFields(log.Fields{"path": h.Entry.Path, "err": err}).
		Warn("partition scan failed")
	return fmt.Errorf("scanning partition %s: %w", h.Entry.Path, err)
}
