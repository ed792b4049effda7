// Package warehouse executes vetted read-only statements against the
// analytics database and shapes the results for answering.
package warehouse

import (
	"errors"
	"time"
)

// Statement is a parameterized query plus the values bound to its $n
// placeholders. Statements reach the executor only as a pair; raw SQL with
// interpolated values has no representation here.
type Statement struct {
	Name   string
	Text   string
	Params []any
}

// QueryResult is a bounded tabular result. Truncated reports that the row
// cap cut the result short.
type QueryResult struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Duration  time.Duration
}

// Failure kinds. Callers match with errors.Is to choose a safe reply.
var (
	// ErrRejected means the safety gate refused the statement.
	ErrRejected = errors.New("statement rejected")
	// ErrUnavailable means the warehouse could not be reached.
	ErrUnavailable = errors.New("warehouse unavailable")
	// ErrQueryFailed means the warehouse accepted the connection but the
	// query did not complete.
	ErrQueryFailed = errors.New("warehouse query failed")
)
