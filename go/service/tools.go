package service

import (
	"encoding/json"
	"fmt"

	"github.com/strollhq/stroll-history/go/wire"
)

// Service identity, part of the discover/version contracts.
const (
	ServiceName    = "stroll.history"
	ServiceVersion = "1.0.0"
)

// protocolVersion is the initialize handshake revision.
const protocolVersion = "2024-11-05"

// discoverPayload is the constant discover tool response.
type discoverPayload struct {
	Service     string   `json:"service"`
	Version     string   `json:"version"`
	Schema      string   `json:"schema"`
	Description string   `json:"description"`
	Commands    []string `json:"commands"`
}

// versionPayload is the constant version tool response.
type versionPayload struct {
	Service string `json:"service"`
	Version string `json:"version"`
}

// toolSpec describes one tool for tools/list.
type toolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// toolSpecs is the constant tool inventory. Argument schemas mirror the
// handler contracts exactly; both are part of the stable surface.
var toolSpecs = []toolSpec{
	{
		Name:        "discover",
		Description: "Describe the service and the commands it exposes.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
	},
	{
		Name:        "version",
		Description: "Report the service name and version.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
	},
	{
		Name:        "list_datasets",
		Description: "List cataloged partition datasets, optionally filtered by symbol.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"symbol": {"type": "string", "description": "Restrict to one ticker"}
			}
		}`),
	},
	{
		Name:        "get_bars",
		Description: "Fetch merged OHLCV bars for a symbol over an inclusive date range.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"symbol":      {"type": "string", "description": "Ticker, e.g. SPY"},
				"from":        {"type": "string", "description": "Start date, YYYY-MM-DD"},
				"to":          {"type": "string", "description": "End date, YYYY-MM-DD (inclusive)"},
				"granularity": {"type": "string", "description": "1m, 5m, 1h, or 1d (default 1d)"}
			},
			"required": ["symbol", "from", "to"]
		}`),
	},
	{
		Name:        "get_options",
		Description: "Fetch the option chain for a symbol at one expiry date.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"symbol": {"type": "string", "description": "Underlying ticker"},
				"date":   {"type": "string", "description": "Expiry date, YYYY-MM-DD"}
			},
			"required": ["symbol", "date"]
		}`),
	},
	{
		Name:        "provider_status",
		Description: "Report per-provider availability, probe latency, and tool performance.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"output": {"type": "string", "description": "Reserved; output selector"}
			}
		}`),
	},
	{
		Name:        "data_inventory",
		Description: "Sample daily-bar coverage across a date range and grade the gaps.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"symbol": {"type": "string", "description": "Ticker (default: first cataloged)"},
				"from":   {"type": "string", "description": "Start date, YYYY-MM-DD"},
				"to":     {"type": "string", "description": "End date, YYYY-MM-DD"}
			}
		}`),
	},
}

// staticPayloads holds responses computed once at startup and served as byte
// copies thereafter.
type staticPayloads struct {
	initialize json.RawMessage // JSON-RPC result for initialize.
	toolsList  json.RawMessage // JSON-RPC result for tools/list.
	discover   []byte          // Full envelope for the discover tool.
	version    []byte          // Full envelope for the version tool.
}

func buildStatic() (staticPayloads, error) {
	var static staticPayloads

	var init = map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
		"serverInfo": map[string]interface{}{
			"name":    ServiceName,
			"version": ServiceVersion,
		},
	}
	var raw, err = json.Marshal(init)
	if err != nil {
		return static, fmt.Errorf("marshalling initialize payload: %w", err)
	}
	static.initialize = raw

	if raw, err = json.Marshal(map[string]interface{}{"tools": toolSpecs}); err != nil {
		return static, fmt.Errorf("marshalling tool inventory: %w", err)
	}
	static.toolsList = raw

	if static.discover, err = wire.OK(discoverPayload{
		Service:     ServiceName,
		Version:     ServiceVersion,
		Schema:      wire.Schema,
		Description: "Historical market data over partitioned local stores.",
		Commands: []string{
			"version", "discover", "list-datasets",
			"get-bars", "get-options", "provider-status", "data-inventory",
		},
	}, -1); err != nil {
		return static, err
	}

	if static.version, err = wire.OK(versionPayload{
		Service: ServiceName,
		Version: ServiceVersion,
	}, -1); err != nil {
		return static, err
	}
	return static, nil
}
