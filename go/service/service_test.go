package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nsf/jsondiff"
	"github.com/stretchr/testify/require"
	"github.com/strollhq/stroll-history/go/partition/partitiontest"
	"github.com/strollhq/stroll-history/go/rpc"
)

// envelope mirrors the wire envelope for assertions.
type envelope struct {
	Schema string          `json:"schema"`
	OK     bool            `json:"ok"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta struct {
		Count     *int   `json:"count"`
		Timestamp string `json:"timestamp"`
	} `json:"meta"`
}

// seedJanuaryBars writes a daily-bar partition covering every weekday of
// January 2024.
func seedJanuaryBars(t *testing.T, dir string) {
	t.Helper()
	var seeds []partitiontest.BarSeed
	for d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC); d.Month() == time.January; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		seeds = append(seeds, partitiontest.BarSeed{
			T: d.Format("2006-01-02") + " 21:00:00",
			O: 470, H: 472, L: 469, C: 471, V: 1000,
		})
	}
	partitiontest.WriteBars(t, filepath.Join(dir, "spy_1d_2023_2025.db"), "SPY", "1d", seeds)
}

func seedOptions(t *testing.T, dir string) {
	t.Helper()
	var db = partitiontest.Open(t, filepath.Join(dir, "options_spy_2024.db"))
	partitiontest.InitOptions(t, db)
	partitiontest.InsertOption(t, db, "SPY", "2024-01-19", "P", 470, 1.2, 1.4, 1.3, -0.45, 0.02)
	partitiontest.InsertOption(t, db, "SPY", "2024-01-19", "C", 475, 2.0, 2.2, 2.1, 0.40, 0.03)
	partitiontest.InsertOption(t, db, "SPY", "2024-01-19", "C", 470, 4.0, 4.2, 4.1, 0.60, 0.02)
}

func newTestService(t *testing.T, root string) *Service {
	t.Helper()
	var s, err = NewService(Config{
		DataRoot:  root,
		LogLevel:  "info",
		CacheSize: 128,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// callTool drives one tools/call through Serve and decodes the envelope.
func callTool(t *testing.T, s *Service, tool, arguments string) envelope {
	t.Helper()
	var raw = callToolRaw(t, s, tool, arguments)

	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Equal(t, "stroll.history.v1", env.Schema)
	return env
}

func callToolRaw(t *testing.T, s *Service, tool, arguments string) []byte {
	t.Helper()
	var params = fmt.Sprintf(`{"name":%q,"arguments":%s}`, tool, arguments)
	var result, rpcErr = s.Serve(context.Background(), "tools/call", json.RawMessage(params))
	require.Nil(t, rpcErr)

	var wrapped struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(result, &wrapped))
	require.Len(t, wrapped.Content, 1)
	require.Equal(t, "text", wrapped.Content[0].Type)
	return []byte(wrapped.Content[0].Text)
}

func TestInitializeAndToolsList(t *testing.T) {
	var s = newTestService(t, t.TempDir())

	var result, rpcErr = s.Serve(context.Background(), "initialize", nil)
	require.Nil(t, rpcErr)
	var init struct {
		ServerInfo struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
	}
	require.NoError(t, json.Unmarshal(result, &init))
	require.Equal(t, "stroll.history", init.ServerInfo.Name)
	require.Equal(t, "1.0.0", init.ServerInfo.Version)

	result, rpcErr = s.Serve(context.Background(), "tools/list", nil)
	require.Nil(t, rpcErr)
	var list struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(result, &list))

	var names = map[string]bool{}
	for _, tool := range list.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"discover", "version", "list_datasets", "get_bars",
		"get_options", "provider_status", "data_inventory",
	} {
		require.True(t, names[want], want)
	}
}

func TestUnknownMethodAndTool(t *testing.T) {
	var s = newTestService(t, t.TempDir())

	var _, rpcErr = s.Serve(context.Background(), "resources/list", nil)
	require.NotNil(t, rpcErr)
	require.Equal(t, rpc.CodeMethodNotFound, rpcErr.Code)

	_, rpcErr = s.Serve(context.Background(), "tools/call",
		json.RawMessage(`{"name":"nope","arguments":{}}`))
	require.NotNil(t, rpcErr)
	require.Equal(t, rpc.CodeMethodNotFound, rpcErr.Code)
}

func TestMalformedArguments(t *testing.T) {
	var s = newTestService(t, t.TempDir())
	var _, rpcErr = s.Serve(context.Background(), "tools/call",
		json.RawMessage(`{"name":"get_bars","arguments":[1,2,3]}`))
	require.NotNil(t, rpcErr)
	require.Equal(t, rpc.CodeInvalidParams, rpcErr.Code)
}

func TestDiscoverTool(t *testing.T) {
	var env = callTool(t, newTestService(t, t.TempDir()), "discover", `{}`)
	require.True(t, env.OK)

	var data struct {
		Service  string   `json:"service"`
		Version  string   `json:"version"`
		Commands []string `json:"commands"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "stroll.history", data.Service)
	require.Equal(t, "1.0.0", data.Version)

	var commands = map[string]bool{}
	for _, c := range data.Commands {
		commands[c] = true
	}
	for _, want := range []string{
		"version", "discover", "list-datasets",
		"get-bars", "get-options", "provider-status",
	} {
		require.True(t, commands[want], want)
	}
}

func TestVersionTool(t *testing.T) {
	var env = callTool(t, newTestService(t, t.TempDir()), "version", `{}`)
	require.True(t, env.OK)

	var opts = jsondiff.DefaultConsoleOptions()
	var diff, report = jsondiff.Compare(env.Data,
		[]byte(`{"service":"stroll.history","version":"1.0.0"}`), &opts)
	require.Equal(t, jsondiff.FullMatch, diff, report)
}

func TestGetBars(t *testing.T) {
	var dir = t.TempDir()
	seedJanuaryBars(t, dir)
	var s = newTestService(t, dir)

	var env = callTool(t, s, "get_bars",
		`{"symbol":"spy","from":"2024-01-02","to":"2024-01-05"}`)
	require.True(t, env.OK)
	require.NotNil(t, env.Meta.Count)
	require.Equal(t, 4, *env.Meta.Count)

	var data struct {
		Symbol      string `json:"symbol"`
		Granularity string `json:"granularity"`
		Bars        []struct {
			T string  `json:"t"`
			C float64 `json:"c"`
			V int64   `json:"v"`
		} `json:"bars"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "SPY", data.Symbol)
	require.Equal(t, "1d", data.Granularity)
	require.Len(t, data.Bars, 4)
	require.Equal(t, "2024-01-02T21:00:00.000Z", data.Bars[0].T)
	for i := 1; i < len(data.Bars); i++ {
		require.Less(t, data.Bars[i-1].T, data.Bars[i].T)
	}
}

func TestGetBarsWeekendIsEmpty(t *testing.T) {
	var dir = t.TempDir()
	seedJanuaryBars(t, dir)
	var s = newTestService(t, dir)

	var env = callTool(t, s, "get_bars",
		`{"symbol":"SPY","from":"2024-01-06","to":"2024-01-07","granularity":"1d"}`)
	require.True(t, env.OK)
	require.NotNil(t, env.Meta.Count)
	require.Equal(t, 0, *env.Meta.Count)

	var data struct {
		Bars []json.RawMessage `json:"bars"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotNil(t, data.Bars)
	require.Empty(t, data.Bars)
}

func TestGetBarsInvalidDate(t *testing.T) {
	var dir = t.TempDir()
	seedJanuaryBars(t, dir)

	var env = callTool(t, newTestService(t, dir), "get_bars",
		`{"symbol":"SPY","from":"2024-02-30","to":"2024-03-01"}`)
	require.False(t, env.OK)
	require.NotNil(t, env.Error)
	require.Equal(t, "INVALID_ARGUMENT", env.Error.Code)
}

func TestGetBarsUncoveredRangeIsNotFound(t *testing.T) {
	var dir = t.TempDir()
	seedJanuaryBars(t, dir)

	var env = callTool(t, newTestService(t, dir), "get_bars",
		`{"symbol":"SPY","from":"2020-01-02","to":"2020-01-03"}`)
	require.False(t, env.OK)
	require.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestGetBarsSingleflight(t *testing.T) {
	var dir = t.TempDir()
	seedJanuaryBars(t, dir)
	var s = newTestService(t, dir)
	require.Zero(t, s.Planner().Invocations())

	var wg sync.WaitGroup
	var payloads = make([][]byte, 50)
	for i := range payloads {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payloads[i] = callToolRaw(t, s, "get_bars",
				`{"symbol":"SPY","from":"2024-01-02","to":"2024-01-05","granularity":"1d"}`)
		}(i)
	}
	wg.Wait()

	require.Equal(t, int64(1), s.Planner().Invocations())
	for i := 1; i < len(payloads); i++ {
		require.Equal(t, string(payloads[0]), string(payloads[i]))
	}
}

func TestGetOptionsChain(t *testing.T) {
	var dir = t.TempDir()
	seedOptions(t, dir)
	var s = newTestService(t, dir)

	var env = callTool(t, s, "get_options", `{"symbol":"SPY","date":"2024-01-19"}`)
	require.True(t, env.OK)
	require.NotNil(t, env.Meta.Count)
	require.Equal(t, 3, *env.Meta.Count)

	var data struct {
		Symbol string `json:"symbol"`
		Expiry string `json:"expiry"`
		Chain  []struct {
			Right  string  `json:"right"`
			Strike float64 `json:"strike"`
			Bid    float64 `json:"bid"`
		} `json:"chain"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "2024-01-19", data.Expiry)

	// Canonical chain order: calls before puts, strikes ascending.
	require.Equal(t, "C", data.Chain[0].Right)
	require.Equal(t, 470.0, data.Chain[0].Strike)
	require.Equal(t, "C", data.Chain[1].Right)
	require.Equal(t, 475.0, data.Chain[1].Strike)
	require.Equal(t, "P", data.Chain[2].Right)
}

func TestGetOptionsAbsentExpiryIsEmptyChain(t *testing.T) {
	var dir = t.TempDir()
	seedOptions(t, dir)

	var env = callTool(t, newTestService(t, dir), "get_options",
		`{"symbol":"SPY","date":"2024-02-16"}`)
	require.True(t, env.OK)
	require.Equal(t, 0, *env.Meta.Count)
}

func TestListDatasets(t *testing.T) {
	var dir = t.TempDir()
	seedJanuaryBars(t, dir)
	seedOptions(t, dir)

	var env = callTool(t, newTestService(t, dir), "list_datasets", `{}`)
	require.True(t, env.OK)
	require.Equal(t, 2, *env.Meta.Count)

	var data struct {
		Datasets []struct {
			Symbol string `json:"symbol"`
			Kind   string `json:"kind"`
			From   string `json:"from"`
			To     string `json:"to"`
		} `json:"datasets"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	var kinds = map[string]bool{}
	for _, d := range data.Datasets {
		require.Equal(t, "SPY", d.Symbol)
		kinds[d.Kind] = true
	}
	require.True(t, kinds["bars"])
	require.True(t, kinds["options"])
}

func TestProviderStatusHealthy(t *testing.T) {
	var dir = t.TempDir()
	seedJanuaryBars(t, dir)
	seedOptions(t, dir)
	var s = newTestService(t, dir)

	// Generate one sample so performance stats are non-empty.
	callTool(t, s, "get_bars", `{"symbol":"SPY","from":"2024-01-02","to":"2024-01-03"}`)

	var env = callTool(t, s, "provider_status", `{}`)
	require.True(t, env.OK)

	var data struct {
		Providers []struct {
			Name      string `json:"name"`
			Available bool   `json:"available"`
		} `json:"providers"`
		Performance struct {
			Overall struct {
				Count int `json:"count"`
			} `json:"overall"`
		} `json:"performance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	var available = map[string]bool{}
	for _, p := range data.Providers {
		available[p.Name] = p.Available
	}
	require.True(t, available["catalog"])
	require.True(t, available["bars"])
	require.True(t, available["options"])
	require.GreaterOrEqual(t, data.Performance.Overall.Count, 1)
}

func TestProviderStatusDegraded(t *testing.T) {
	var s = newTestService(t, filepath.Join(t.TempDir(), "does-not-exist"))

	var env = callTool(t, s, "provider_status", `{}`)
	require.True(t, env.OK)

	var data struct {
		Providers []struct {
			Name      string `json:"name"`
			Available bool   `json:"available"`
		} `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Providers, 1)
	require.Equal(t, "catalog", data.Providers[0].Name)
	require.False(t, data.Providers[0].Available)

	env = callTool(t, s, "get_bars",
		`{"symbol":"SPY","from":"2024-01-02","to":"2024-01-03"}`)
	require.False(t, env.OK)
	require.Equal(t, "PROVIDER_UNAVAILABLE", env.Error.Code)
}

func TestDataInventoryFullCoverage(t *testing.T) {
	var dir = t.TempDir()
	seedJanuaryBars(t, dir)
	var s = newTestService(t, dir)

	var env = callTool(t, s, "data_inventory",
		`{"symbol":"SPY","from":"2024-01-01","to":"2024-01-31"}`)
	require.True(t, env.OK)

	var report InventoryReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	require.Equal(t, "SPY", report.Symbol)
	require.Equal(t, 23, report.SampledDays)
	require.Equal(t, 100.0, report.CoveragePct)
	require.Empty(t, report.MissingSamples)
	require.LessOrEqual(t, len(report.AvailableSamples), 10)
	require.Len(t, report.Recommendations, 1)
	require.Equal(t, "INFO", report.Recommendations[0].Priority)
	require.Equal(t, "DATA_READY", report.Recommendations[0].Action)
}

func TestDataInventoryEmptyCoverage(t *testing.T) {
	var dir = t.TempDir()
	seedJanuaryBars(t, dir)
	var s = newTestService(t, dir)

	// The partition spans February but holds no rows there.
	var env = callTool(t, s, "data_inventory",
		`{"symbol":"SPY","from":"2024-02-01","to":"2024-02-29"}`)
	require.True(t, env.OK)

	var report InventoryReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	require.Equal(t, 0.0, report.CoveragePct)
	require.LessOrEqual(t, len(report.MissingSamples), 10)
	require.Equal(t, "HIGH", report.Recommendations[0].Priority)
	require.Equal(t, "ACQUIRE_DATA", report.Recommendations[0].Action)
}

func TestDataInventoryDefaults(t *testing.T) {
	var dir = t.TempDir()
	seedJanuaryBars(t, dir)
	var s = newTestService(t, dir)

	var env = callTool(t, s, "data_inventory", `{}`)
	require.True(t, env.OK)

	var report InventoryReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	require.Equal(t, "SPY", report.Symbol)
	require.Equal(t, "2023-01-01", report.From)
	require.LessOrEqual(t, report.SampledDays, 50)
	require.Len(t, report.Recommendations, 1)
}

func TestGetBarsCachedPayloadIsByteStable(t *testing.T) {
	var dir = t.TempDir()
	seedJanuaryBars(t, dir)
	var s = newTestService(t, dir)

	var args = `{"symbol":"SPY","from":"2024-01-02","to":"2024-01-05"}`
	var first = callToolRaw(t, s, "get_bars", args)
	var second = callToolRaw(t, s, "get_bars", args)
	require.Equal(t, string(first), string(second))
	require.Equal(t, int64(1), s.Planner().Invocations())
}
