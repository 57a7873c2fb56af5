// Package rpc speaks JSON-RPC 2.0 over newline-delimited frames on a
// stdio-style transport. It owns framing, protocol errors, and the worker
// pool; tool semantics live behind the Handler interface.
package rpc

import (
	"context"
	"encoding/json"
)

// JSON-RPC 2.0 protocol error codes. These are distinct from domain error
// kinds and never carry a domain envelope.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is one decoded JSON-RPC request frame.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is one response frame.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC protocol error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewError builds a protocol error.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Handler routes one method call. A returned *Error produces a protocol
// error response; otherwise the raw result is echoed in the result field.
type Handler interface {
	Serve(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, *Error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, *Error)

// Serve implements Handler.
func (f HandlerFunc) Serve(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, *Error) {
	return f(ctx, method, params)
}
