package wire

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind is a stable, client-visible error code carried in the response
// envelope. The set is closed: handlers must map every failure onto one of
// these kinds before it reaches the wire.
type ErrorKind string

const (
	// KindInvalidArgument is returned for bad dates, unknown granularities,
	// or an empty symbol. Not retryable.
	KindInvalidArgument ErrorKind = "INVALID_ARGUMENT"
	// KindNotFound is returned when no partitions cover the requested range.
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindProviderUnavailable is returned while the catalog is degraded.
	KindProviderUnavailable ErrorKind = "PROVIDER_UNAVAILABLE"
	// KindScanTimeout is returned when a single partition scan exceeds its
	// deadline.
	KindScanTimeout ErrorKind = "SCAN_TIMEOUT"
	// KindTimeout is returned when the whole tool call exceeds its deadline.
	KindTimeout ErrorKind = "TIMEOUT"
	// KindQueryTooLarge is returned when a query would materialize more rows
	// than the per-query cap.
	KindQueryTooLarge ErrorKind = "QUERY_TOO_LARGE"
	// KindDataError is returned for invariant breaches within stored data.
	KindDataError ErrorKind = "DATA_ERROR"
	// KindPartitionCorrupt marks a structural read failure. The partition is
	// quarantined; clients observe KindDataError.
	KindPartitionCorrupt ErrorKind = "PARTITION_CORRUPT"
	// KindPartitionMissing marks a partition that vanished between catalog
	// resolution and open. Clients observe KindDataError.
	KindPartitionMissing ErrorKind = "PARTITION_MISSING"
	// KindInternal is the fallback for uncategorized failures.
	KindInternal ErrorKind = "INTERNAL_ERROR"
)

// Error is a domain failure with a stable kind and a short, human-readable
// message. Messages never carry stack traces or internal paths.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsError coerces an arbitrary error into a wire *Error. Typed errors pass
// through; context deadline expiry maps to KindTimeout; anything else
// becomes KindInternal with a generic message.
func AsError(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, "operation deadline exceeded")
	}
	return NewError(KindInternal, "internal error")
}
