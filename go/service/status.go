package service

import (
	"context"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/strollhq/stroll-history/go/catalog"
	"github.com/strollhq/stroll-history/go/partition"
	"github.com/strollhq/stroll-history/go/wire"
)

// probeMaxAge bounds how stale a probe result may be before provider_status
// re-runs it.
const probeMaxAge = 30 * time.Second

// Provider is one entry of the provider_status payload.
type Provider struct {
	Name        string  `json:"name"`
	Available   bool    `json:"available"`
	ResponseMS  float64 `json:"response_ms"`
	LastChecked string  `json:"last_checked"`
	Detail      string  `json:"detail,omitempty"`
}

type probeResult struct {
	available bool
	latency   time.Duration
	detail    string
	checkedAt time.Time
}

// Prober runs trivial reads against one partition per catalog kind and
// retains the outcome. A failed probe marks the kind degraded in
// provider_status; quarantine is reserved for scan-time failures.
type Prober struct {
	catalog *catalog.Catalog
	store   *partition.Store

	mu      sync.Mutex
	results map[catalog.Kind]probeResult
}

// NewProber returns a Prober; Warm or Status runs the first probes.
func NewProber(cat *catalog.Catalog, store *partition.Store) *Prober {
	return &Prober{
		catalog: cat,
		store:   store,
		results: make(map[catalog.Kind]probeResult),
	}
}

// Warm probes every cataloged kind once. Called at startup so the first
// provider_status reflects real latencies.
func (p *Prober) Warm(ctx context.Context) {
	for _, kind := range p.kinds() {
		p.probe(ctx, kind)
	}
}

// Status returns one provider entry per cataloged kind, plus a "catalog"
// entry reflecting the data root itself. Probe results older than
// probeMaxAge are refreshed in-line.
func (p *Prober) Status(ctx context.Context) []Provider {
	var now = time.Now()
	var out = []Provider{{
		Name:        "catalog",
		Available:   !p.catalog.Degraded(),
		LastChecked: wire.FormatTime(now),
		Detail:      p.catalog.String(),
	}}

	for _, kind := range p.kinds() {
		p.mu.Lock()
		var r, ok = p.results[kind]
		p.mu.Unlock()

		if !ok || now.Sub(r.checkedAt) > probeMaxAge {
			r = p.probe(ctx, kind)
		}
		out = append(out, Provider{
			Name:        string(kind),
			Available:   r.available,
			ResponseMS:  float64(r.latency.Microseconds()) / 1000.0,
			LastChecked: wire.FormatTime(r.checkedAt),
			Detail:      r.detail,
		})
	}
	return out
}

// kinds lists the distinct partition kinds of the current snapshot, in a
// stable order.
func (p *Prober) kinds() []catalog.Kind {
	var seen = make(map[catalog.Kind]bool)
	for _, e := range p.catalog.Entries() {
		seen[e.Kind] = true
	}
	var out = make([]catalog.Kind, 0, len(seen))
	for kind := range seen {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// probe opens the first cataloged partition of kind and runs a trivial read
// against it, recording latency and availability.
func (p *Prober) probe(ctx context.Context, kind catalog.Kind) probeResult {
	var r = probeResult{checkedAt: time.Now()}
	defer func() {
		p.mu.Lock()
		p.results[kind] = r
		p.mu.Unlock()
	}()

	var target *catalog.Entry
	for _, e := range p.catalog.Entries() {
		if e.Kind == kind {
			e := e
			target = &e
			break
		}
	}
	if target == nil {
		r.detail = "no partitions cataloged"
		return r
	}

	var started = time.Now()
	var h, err = p.store.OpenRead(*target)
	if err == nil {
		err = p.store.Probe(ctx, h)
	}
	r.latency = time.Since(started)

	if err != nil {
		r.detail = wire.AsError(err).Message
		log.WithFields(log.Fields{
			"kind": kind,
			"path": target.Path,
			"err":  err,
		}).Warn("provider probe failed")
		return r
	}
	r.available = true
	return r
}
