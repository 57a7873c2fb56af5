package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/strollhq/stroll-history/go/cache"
	"github.com/strollhq/stroll-history/go/catalog"
	"github.com/strollhq/stroll-history/go/market"
	"github.com/strollhq/stroll-history/go/query"
	"github.com/strollhq/stroll-history/go/rpc"
	"github.com/strollhq/stroll-history/go/telemetry"
	"github.com/strollhq/stroll-history/go/wire"
)

// toolHandler produces a serialized envelope for one tool call. Returned
// errors become failure envelopes, never protocol errors; errArguments is
// the single exception.
type toolHandler func(ctx context.Context, args json.RawMessage) ([]byte, error)

// errArguments marks structurally unusable arguments, surfaced as -32602
// rather than a domain envelope.
var errArguments = errors.New("malformed tool arguments")

func (s *Service) handlers() map[string]toolHandler {
	return map[string]toolHandler{
		"discover":        s.handleDiscover,
		"version":         s.handleVersion,
		"list_datasets":   s.handleListDatasets,
		"get_bars":        s.handleGetBars,
		"get_options":     s.handleGetOptions,
		"provider_status": s.handleProviderStatus,
		"data_inventory":  s.handleDataInventory,
	}
}

// invoke runs one handler, maps failures onto the wire taxonomy, and records
// the telemetry sample. Internal partition kinds never reach clients.
func (s *Service) invoke(ctx context.Context, tool string, handler toolHandler, args json.RawMessage) (json.RawMessage, *rpc.Error) {
	var started = time.Now()
	var envelope, err = handler(ctx, args)

	if errors.Is(err, errArguments) {
		s.ring.Record(tool, time.Since(started), false)
		return nil, rpc.NewError(rpc.CodeInvalidParams, "malformed tool arguments")
	}
	if err != nil {
		var domain = wire.AsError(err)
		switch domain.Kind {
		case wire.KindPartitionCorrupt, wire.KindPartitionMissing:
			domain = wire.NewError(wire.KindDataError, "a partition failed during the scan")
		}
		if envelope, err = wire.Fail(domain); err != nil {
			log.WithFields(log.Fields{"tool": tool, "err": err}).Error("serializing failure envelope")
			s.ring.Record(tool, time.Since(started), false)
			return nil, rpc.NewError(rpc.CodeInternalError, "internal error")
		}
		s.ring.Record(tool, time.Since(started), false)
		return envelope, nil
	}

	s.ring.Record(tool, time.Since(started), true)
	return envelope, nil
}

func (s *Service) handleDiscover(context.Context, json.RawMessage) ([]byte, error) {
	if payload, ok := s.cache.Get(cache.Fingerprint("discover")); ok {
		return payload, nil
	}
	return s.static.discover, nil
}

func (s *Service) handleVersion(context.Context, json.RawMessage) ([]byte, error) {
	if payload, ok := s.cache.Get(cache.Fingerprint("version")); ok {
		return payload, nil
	}
	return s.static.version, nil
}

// datasetPayload is one list_datasets row.
type datasetPayload struct {
	Symbol      string `json:"symbol"`
	Kind        string `json:"kind"`
	Granularity string `json:"granularity,omitempty"`
	From        string `json:"from"`
	To          string `json:"to"`
	Path        string `json:"path"`
}

func (s *Service) handleListDatasets(_ context.Context, args json.RawMessage) ([]byte, error) {
	var in struct {
		Symbol string `json:"symbol"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, errArguments
		}
	}

	var filter market.Symbol
	if in.Symbol != "" {
		var symbol, err = s.symbols.Intern(in.Symbol)
		if err != nil {
			return nil, wire.NewError(wire.KindInvalidArgument, "%s", err)
		}
		filter = symbol
	}

	var datasets = make([]datasetPayload, 0)
	for _, e := range s.catalog.Entries() {
		if filter != "" && e.Symbol != filter {
			continue
		}
		datasets = append(datasets, datasetPayload{
			Symbol:      e.Symbol.String(),
			Kind:        string(e.Kind),
			Granularity: e.Granularity.String(),
			From:        e.Span.Start.Format("2006-01-02"),
			To:          e.Span.End.Format("2006-01-02"),
			Path:        e.Path,
		})
	}
	return wire.OK(map[string]interface{}{"datasets": datasets}, len(datasets))
}

// barsData is the get_bars payload.
type barsData struct {
	Symbol      string            `json:"symbol"`
	From        string            `json:"from"`
	To          string            `json:"to"`
	Granularity string            `json:"granularity"`
	Bars        []wire.BarPayload `json:"bars"`
}

func (s *Service) handleGetBars(ctx context.Context, args json.RawMessage) ([]byte, error) {
	var in struct {
		Symbol      string `json:"symbol"`
		From        string `json:"from"`
		To          string `json:"to"`
		Granularity string `json:"granularity"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, errArguments
	}
	if in.Granularity == "" {
		in.Granularity = market.Day1.String()
	}

	var q, err = s.parseBarsQuery(in.Symbol, in.From, in.To, in.Granularity)
	if err != nil {
		return nil, err
	}

	var key = cache.Fingerprint("get_bars",
		q.Symbol.String(), in.From, in.To, q.Granularity.String())
	var payload, _, derr = s.cache.Do(key, cache.TTLBars, func() ([]byte, error) {
		var result, perr = s.planner.Bars(ctx, q)
		if perr != nil {
			return nil, perr
		}
		if result.Dropped > 0 || result.OverlapConflicts > 0 {
			log.WithFields(log.Fields{
				"symbol":    q.Symbol,
				"dropped":   result.Dropped,
				"conflicts": result.OverlapConflicts,
			}).Debug("bar merge discarded rows")
		}
		return wire.OK(barsData{
			Symbol:      q.Symbol.String(),
			From:        q.From.Format("2006-01-02"),
			To:          q.To.Format("2006-01-02"),
			Granularity: q.Granularity.String(),
			Bars:        wire.PackBars(result.Bars),
		}, len(result.Bars))
	})
	if derr != nil {
		return nil, derr
	}
	return payload, nil
}

func (s *Service) parseBarsQuery(symbol, from, to, granularity string) (query.Query, error) {
	var q query.Query

	var sym, err = s.symbols.Intern(symbol)
	if err != nil {
		return q, wire.NewError(wire.KindInvalidArgument, "%s", err)
	}
	g, err := market.ParseGranularity(granularity)
	if err != nil {
		return q, wire.NewError(wire.KindInvalidArgument, "%s", err)
	}
	if q.From, err = query.ParseDate(from); err != nil {
		return q, err
	}
	if q.To, err = query.ParseDate(to); err != nil {
		return q, err
	}
	q.Symbol, q.Granularity = sym, g
	return q, q.Validate()
}

// chainData is the get_options payload.
type chainData struct {
	Symbol string               `json:"symbol"`
	Expiry string               `json:"expiry"`
	Chain  []wire.OptionPayload `json:"chain"`
}

func (s *Service) handleGetOptions(ctx context.Context, args json.RawMessage) ([]byte, error) {
	var in struct {
		Symbol string `json:"symbol"`
		Date   string `json:"date"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, errArguments
	}

	var symbol, err = s.symbols.Intern(in.Symbol)
	if err != nil {
		return nil, wire.NewError(wire.KindInvalidArgument, "%s", err)
	}
	expiry, err := query.ParseDate(in.Date)
	if err != nil {
		return nil, err
	}
	var q = query.ChainQuery{Symbol: symbol, Expiry: expiry}
	if err = q.Validate(); err != nil {
		return nil, err
	}

	var key = cache.Fingerprint("get_options", symbol.String(), in.Date)
	var payload, _, derr = s.cache.Do(key, cache.TTLChain, func() ([]byte, error) {
		var rows, perr = s.planner.Chain(ctx, q)
		if perr != nil {
			return nil, perr
		}
		return wire.OK(chainData{
			Symbol: symbol.String(),
			Expiry: expiry.Format("2006-01-02"),
			Chain:  wire.PackOptions(rows),
		}, len(rows))
	})
	if derr != nil {
		return nil, derr
	}
	return payload, nil
}

// statusData is the provider_status payload.
type statusData struct {
	Providers   []Provider         `json:"providers"`
	Performance telemetry.Snapshot `json:"performance"`
}

func (s *Service) handleProviderStatus(ctx context.Context, args json.RawMessage) ([]byte, error) {
	var in struct {
		Output string `json:"output"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, errArguments
		}
	}

	// Status is intentionally uncached: it exists to observe the present.
	return wire.OK(statusData{
		Providers:   s.prober.Status(ctx),
		Performance: s.ring.Snapshot(),
	}, -1)
}

func (s *Service) handleDataInventory(ctx context.Context, args json.RawMessage) ([]byte, error) {
	var in struct {
		Symbol string `json:"symbol"`
		From   string `json:"from"`
		To     string `json:"to"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, errArguments
		}
	}

	if s.catalog.Degraded() {
		return nil, wire.NewError(wire.KindProviderUnavailable, "data root is unavailable")
	}

	var symbol market.Symbol
	var from, to time.Time
	var err error
	if in.Symbol != "" {
		if symbol, err = s.symbols.Intern(in.Symbol); err != nil {
			return nil, wire.NewError(wire.KindInvalidArgument, "%s", err)
		}
	}
	if in.From != "" {
		if from, err = query.ParseDate(in.From); err != nil {
			return nil, err
		}
	}
	if in.To != "" {
		if to, err = query.ParseDate(in.To); err != nil {
			return nil, err
		}
	}

	if symbol, from, to, err = s.inventoryDefaults(symbol, from, to); err != nil {
		return nil, err
	}
	var report *InventoryReport
	if report, err = s.inventory(ctx, symbol, from, to); err != nil {
		return nil, err
	}
	return wire.OK(report, -1)
}

// entriesByKind is a diagnostic used by startup logging.
func entriesByKind(entries []catalog.Entry) map[catalog.Kind]int {
	var out = make(map[catalog.Kind]int)
	for _, e := range entries {
		out[e.Kind]++
	}
	return out
}
