// Package service wires the catalog, partition store, planner, cache, and
// telemetry into the stdio tool surface, and owns the tool handlers.
package service

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/strollhq/stroll-history/go/cache"
	"github.com/strollhq/stroll-history/go/catalog"
	"github.com/strollhq/stroll-history/go/market"
	"github.com/strollhq/stroll-history/go/partition"
	"github.com/strollhq/stroll-history/go/query"
	"github.com/strollhq/stroll-history/go/rpc"
	"github.com/strollhq/stroll-history/go/telemetry"
)

// Service owns every long-lived component and implements rpc.Handler.
type Service struct {
	cfg     Config
	symbols *market.SymbolTable
	catalog *catalog.Catalog
	store   *partition.Store
	planner *query.Planner
	cache   *cache.Cache
	ring    *telemetry.Ring
	prober  *Prober
	static  staticPayloads
	tools   map[string]toolHandler
}

// NewService builds the full component graph over cfg's data root, runs the
// startup provider probes, and pre-seeds the static cache entries.
func NewService(cfg Config) (*Service, error) {
	cfg = cfg.withDefaults()

	var s = &Service{cfg: cfg, symbols: market.NewSymbolTable()}
	s.catalog = catalog.NewCatalog(cfg.DataRoot, s.symbols)
	s.store = partition.NewStore(partition.Config{
		ScanTimeout: cfg.ScanTimeout,
		MaxConns:    cfg.MaxInFlight,
		Quarantine:  s.catalog.Quarantine,
	})
	s.planner = query.NewPlanner(s.catalog, s.store, cfg.MaxRows)

	var err error
	if s.cache, err = cache.New(cfg.CacheSize); err != nil {
		return nil, err
	}
	s.ring = telemetry.NewRing()
	s.prober = NewProber(s.catalog, s.store)

	if s.static, err = buildStatic(); err != nil {
		return nil, err
	}
	s.cache.Put(cache.Fingerprint("discover"), s.static.discover, cache.TTLStatic)
	s.cache.Put(cache.Fingerprint("version"), s.static.version, cache.TTLStatic)

	s.tools = s.handlers()

	var warmCtx, cancel = context.WithTimeout(context.Background(), cfg.ToolTimeout)
	defer cancel()
	s.prober.Warm(warmCtx)

	log.WithFields(log.Fields{
		"root":       cfg.DataRoot,
		"partitions": len(s.catalog.Entries()),
		"byKind":     entriesByKind(s.catalog.Entries()),
		"degraded":   s.catalog.Degraded(),
	}).Info("service ready")
	return s, nil
}

// Close releases held partition handles.
func (s *Service) Close() error { return s.store.Close() }

// Planner exposes the planner for invocation accounting in tests.
func (s *Service) Planner() *query.Planner { return s.planner }

// Refresh re-discovers the data root.
func (s *Service) Refresh() { s.catalog.Refresh() }

// callParams is the tools/call parameter shape.
type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// callResult wraps a serialized envelope in the tools/call result shape.
type callResult struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Serve implements rpc.Handler. initialize and tools/list are answered from
// precomputed bytes; tools/call routes to a handler under the per-tool
// deadline.
func (s *Service) Serve(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, *rpc.Error) {
	switch method {
	case "initialize":
		return s.static.initialize, nil
	case "tools/list":
		return s.static.toolsList, nil
	case "tools/call":
		return s.call(ctx, params)
	default:
		return nil, rpc.NewError(rpc.CodeMethodNotFound, fmt.Sprintf("unknown method %q", method))
	}
}

// call dispatches one tool invocation and records its telemetry sample.
func (s *Service) call(ctx context.Context, params json.RawMessage) (json.RawMessage, *rpc.Error) {
	var p callParams
	if err := json.Unmarshal(params, &p); err != nil || p.Name == "" {
		return nil, rpc.NewError(rpc.CodeInvalidParams, "params require a tool name")
	}

	var handler, ok = s.tools[p.Name]
	if !ok {
		return nil, rpc.NewError(rpc.CodeMethodNotFound, fmt.Sprintf("unknown tool %q", p.Name))
	}

	var toolCtx, cancel = context.WithTimeout(ctx, s.cfg.ToolTimeout)
	defer cancel()

	var envelope, rpcErr = s.invoke(toolCtx, p.Name, handler, p.Arguments)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var result, err = json.Marshal(callResult{
		Content: []contentBlock{{Type: "text", Text: string(envelope)}},
	})
	if err != nil {
		log.WithFields(log.Fields{"tool": p.Name, "err": err}).Error("marshalling tool result")
		return nil, rpc.NewError(rpc.CodeInternalError, "internal error")
	}
	return result, nil
}
