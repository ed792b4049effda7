package warehouse

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/warebot/warebot/internal/observability"
	"github.com/warebot/warebot/internal/sqlguard"
)

// Executor runs statements against the pooled warehouse connection. Every
// statement passes the safety gate inside Execute, so callers cannot reach
// the database around it.
type Executor struct {
	db      *sql.DB
	rowCap  int
	timeout time.Duration
	logger  *slog.Logger
}

func NewExecutor(db *sql.DB, rowCap int, timeout time.Duration, logger *slog.Logger) *Executor {
	return &Executor{db: db, rowCap: rowCap, timeout: timeout, logger: logger}
}

// Execute validates, runs, and collects one statement. Results are capped
// at the configured row limit; the cap is reported, never silently applied.
func (e *Executor) Execute(ctx context.Context, stmt Statement) (QueryResult, error) {
	decision := sqlguard.Validate(stmt.Text, stmt.Params)
	if !decision.Admitted {
		observability.ObserveSQLRejected(decision.Reason)
		e.logger.Warn("statement rejected",
			slog.String("statement", stmt.Name),
			slog.String("reason", decision.Reason),
			slog.String("detail", decision.Detail))
		return QueryResult{}, fmt.Errorf("%w: %s", ErrRejected, decision.Detail)
	}

	queryCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := e.db.QueryContext(queryCtx, stmt.Text, stmt.Params...)
	if err != nil {
		return QueryResult{}, e.fail(stmt, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return QueryResult{}, e.fail(stmt, err)
	}

	result := QueryResult{Columns: columns, Rows: make([][]any, 0)}
	for rows.Next() {
		if e.rowCap > 0 && len(result.Rows) >= e.rowCap {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return QueryResult{}, e.fail(stmt, err)
		}
		result.Rows = append(result.Rows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, e.fail(stmt, err)
	}

	result.Duration = time.Since(start)
	observability.ObserveWarehouseQuery(result.Duration)
	return result, nil
}

// Ping reports warehouse reachability for readiness checks.
func (e *Executor) Ping(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// fail classifies a database error into the failure taxonomy and records it.
// Connection loss and deadline expiry both mean the warehouse could not be
// reached in time, so they share the unavailable classification.
func (e *Executor) fail(stmt Statement, err error) error {
	kind := ErrQueryFailed
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = ErrUnavailable
	}
	label := "query_failed"
	if kind == ErrUnavailable {
		label = "unavailable"
	}
	observability.ObserveWarehouseFailure(label)
	e.logger.Error("warehouse query failed",
		slog.String("statement", stmt.Name),
		slog.String("kind", label),
		slog.String("error", err.Error()))
	return fmt.Errorf("%w: statement %s: %v", kind, stmt.Name, err)
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
