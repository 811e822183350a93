// Package ingest holds the pieces shared by the feed adapters: the error
// taxonomy callers branch on and timestamp normalization.
package ingest

import (
	"errors"
	"fmt"
)

// ErrNoData indicates the upstream responded successfully but carried no
// usable observations (empty series, or only sentinel values).
var ErrNoData = errors.New("no data available")

// TransportError wraps a network or HTTP-level failure talking to a feed.
type TransportError struct {
	Feed string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Feed, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError wraps a malformed payload from a feed. Detail identifies the
// offending field or record.
type ParseError struct {
	Feed   string
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: parse %s: %v", e.Feed, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: parse %s", e.Feed, e.Detail)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PersistenceError wraps a warehouse failure so callers can tell a store
// outage apart from feed trouble. Op names the failed operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsNoData reports whether err represents an empty-but-successful response.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}
