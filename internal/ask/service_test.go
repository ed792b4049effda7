package ask

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/warebot/warebot/internal/answer"
	"github.com/warebot/warebot/internal/classify"
	"github.com/warebot/warebot/internal/nl2sql"
	"github.com/warebot/warebot/internal/warehouse"
)

type fakeTranslator struct {
	sql  string
	err  error
	last nl2sql.Request
}

func (f *fakeTranslator) Translate(ctx context.Context, req nl2sql.Request) (nl2sql.Result, error) {
	f.last = req
	if f.err != nil {
		return nl2sql.Result{}, f.err
	}
	return nl2sql.Result{SQL: f.sql, Provider: "fake", Model: "fake"}, nil
}

func newTestService(t *testing.T, translator nl2sql.Translator) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	executor := warehouse.NewExecutor(db, 500, time.Second, logger)
	assembler := answer.NewAssembler(3500, 20)
	service := New(executor, translator, assembler, 100, logger)
	service.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	return service, mock
}

func TestAnswerHelp(t *testing.T) {
	service, _ := newTestService(t, nil)
	reply := service.Answer(context.Background(), Request{Text: "help"})
	if reply.Category != classify.CategoryHelp {
		t.Fatalf("category = %s", reply.Category)
	}
	if reply.Text != answer.HelpMessage {
		t.Fatalf("text = %q", reply.Text)
	}
}

func TestAnswerListingQuestionUsesTemplateStrategy(t *testing.T) {
	service, mock := newTestService(t, nil)

	mock.ExpectQuery("SELECT .* FROM subscriptions").
		WillReturnRows(sqlmock.NewRows([]string{"subscription_id", "user_id", "plan", "start_date", "end_date"}).
			AddRow(int64(1), int64(10), "pro", time.Now(), nil))

	reply := service.Answer(context.Background(), Request{Text: "show me active subscriptions"})
	if reply.Category != classify.CategoryDataQuestion {
		t.Fatalf("category = %s", reply.Category)
	}
	if reply.Strategy != "template" {
		t.Fatalf("strategy = %q", reply.Strategy)
	}
	if !strings.Contains(reply.Text, "plan=pro") {
		t.Fatalf("text = %q", reply.Text)
	}
}

func TestAnswerTotalRevenueUsesAggregateOverview(t *testing.T) {
	service, mock := newTestService(t, nil)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount_usd\), 0\) AS total_revenue_usd.* FROM payments WHERE payment_date >=`).
		WillReturnRows(sqlmock.NewRows([]string{"total_revenue_usd", "payment_count", "paying_users"}).
			AddRow(15234.5, int64(320), int64(180)))

	reply := service.Answer(context.Background(), Request{Text: "What is total revenue last quarter?"})
	if reply.Category != classify.CategoryDataQuestion {
		t.Fatalf("category = %s", reply.Category)
	}
	if reply.Strategy != "overview" {
		t.Fatalf("strategy = %q", reply.Strategy)
	}
	for _, want := range []string{"revenue", "15234.50", "last 90 days"} {
		if !strings.Contains(reply.Text, want) {
			t.Fatalf("missing %q in %q", want, reply.Text)
		}
	}
}

func TestAnswerCountQuestionUsesAggregateOverview(t *testing.T) {
	service, mock := newTestService(t, nil)

	mock.ExpectQuery("SELECT COUNT.* FROM subscriptions").
		WillReturnRows(sqlmock.NewRows([]string{"total_subscriptions", "active", "churned"}).
			AddRow(int64(120), int64(95), int64(25)))

	reply := service.Answer(context.Background(), Request{Text: "how many active subscriptions do we have?"})
	if reply.Strategy != "overview" {
		t.Fatalf("strategy = %q", reply.Strategy)
	}
	if !strings.Contains(reply.Text, "active=95") {
		t.Fatalf("text = %q", reply.Text)
	}
}

func TestAnswerPrefersTranslatorStrategy(t *testing.T) {
	translator := &fakeTranslator{sql: "SELECT COUNT(*) AS user_count FROM users"}
	service, mock := newTestService(t, translator)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) AS user_count FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"user_count"}).AddRow(int64(123)))

	reply := service.Answer(context.Background(), Request{Text: "how many users do we have?", Principal: "alice"})
	if reply.Strategy != "translator" {
		t.Fatalf("strategy = %q", reply.Strategy)
	}
	if !strings.Contains(reply.Text, "123") {
		t.Fatalf("text = %q", reply.Text)
	}
	if translator.last.Principal != "alice" {
		t.Fatalf("translator principal = %q", translator.last.Principal)
	}
}

func TestAnswerFallsBackWhenTranslatorSQLIsUnsafe(t *testing.T) {
	// The gate rejects the translated statement before it reaches the
	// database, so the only expected query is the overview one.
	translator := &fakeTranslator{sql: "DROP TABLE users"}
	service, mock := newTestService(t, translator)

	mock.ExpectQuery("SELECT .* FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"total_users", "countries"}).
			AddRow(int64(42), int64(9)))

	reply := service.Answer(context.Background(), Request{Text: "how many users do we have?"})
	if reply.Strategy != "overview" {
		t.Fatalf("strategy = %q", reply.Strategy)
	}
}

func TestAnswerForecastIncreasingHighConfidence(t *testing.T) {
	service, mock := newTestService(t, nil)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"month", "value"})
	for i := 0; i < 24; i++ {
		rows.AddRow(start.AddDate(0, i, 0), int64(50+2*i))
	}
	mock.ExpectQuery("SELECT date_trunc.* FROM subscriptions").WillReturnRows(rows)

	reply := service.Answer(context.Background(), Request{Text: "predict subscriptions for next year"})
	if reply.Category != classify.CategoryForecastQuestion {
		t.Fatalf("category = %s", reply.Category)
	}
	for _, want := range []string{"increasing", "confidence: high", "Total projected"} {
		if !strings.Contains(reply.Text, want) {
			t.Fatalf("missing %q in %q", want, reply.Text)
		}
	}
	// Average of the projection must exceed the last historical month for
	// a strictly growing series.
	if !strings.Contains(reply.Text, "based on 24 months of history") {
		t.Fatalf("text = %q", reply.Text)
	}
}

func TestAnswerForecastInsufficientHistory(t *testing.T) {
	service, mock := newTestService(t, nil)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"month", "value"})
	for i := 0; i < 5; i++ {
		rows.AddRow(start.AddDate(0, i, 0), int64(10))
	}
	mock.ExpectQuery("SELECT date_trunc.* FROM payments").WillReturnRows(rows)

	reply := service.Answer(context.Background(), Request{Text: "forecast revenue"})
	if !strings.Contains(reply.Text, "at least 6 months") {
		t.Fatalf("text = %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "only 5") {
		t.Fatalf("text = %q", reply.Text)
	}
}

func TestAnswerRunsUserSQL(t *testing.T) {
	service, mock := newTestService(t, nil)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) AS n FROM payments").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(7)))

	reply := service.Answer(context.Background(), Request{Text: "SELECT COUNT(*) AS n FROM payments"})
	if reply.Category != classify.CategorySQLQuery {
		t.Fatalf("category = %s", reply.Category)
	}
	if !strings.Contains(reply.Text, "n=7") {
		t.Fatalf("text = %q", reply.Text)
	}
}

func TestAnswerUserSQLWithLiteralIsRefusedSafely(t *testing.T) {
	service, _ := newTestService(t, nil)

	reply := service.Answer(context.Background(), Request{Text: "SELECT * FROM users WHERE country = 'DE'"})
	if reply.Text != answer.SafeFailureMessage {
		t.Fatalf("text = %q", reply.Text)
	}
}

func TestAnswerUnavailableWarehouse(t *testing.T) {
	service, mock := newTestService(t, nil)

	mock.ExpectQuery("SELECT .* FROM payments").WillReturnError(sql.ErrConnDone)
	mock.ExpectQuery("SELECT .* FROM payments").WillReturnError(sql.ErrConnDone)

	reply := service.Answer(context.Background(), Request{Text: "how much revenue did we make?"})
	if reply.Text != answer.UnavailableMessage {
		t.Fatalf("text = %q", reply.Text)
	}
}

func TestAnswerGenerateSQLShowsStatementWithoutExecuting(t *testing.T) {
	service, _ := newTestService(t, nil)

	reply := service.Answer(context.Background(), Request{Text: "generate sql for subscriptions in the eu"})
	if reply.Category != classify.CategoryGenerateSQL {
		t.Fatalf("category = %s", reply.Category)
	}
	if !strings.Contains(reply.Text, "JOIN users u") {
		t.Fatalf("text = %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "bound parameter") {
		t.Fatalf("text = %q", reply.Text)
	}
}

func TestAnswerGenerateSQLWithoutDatasetAsksForTable(t *testing.T) {
	service, _ := newTestService(t, nil)

	reply := service.Answer(context.Background(), Request{Text: "generate sql please"})
	if !strings.Contains(reply.Text, "users, subscriptions, payments, sessions") {
		t.Fatalf("text = %q", reply.Text)
	}
}

func TestAnswerUnknownNeverEmpty(t *testing.T) {
	service, _ := newTestService(t, nil)

	reply := service.Answer(context.Background(), Request{Text: "tell me something cool"})
	if reply.Category != classify.CategoryUnknown {
		t.Fatalf("category = %s", reply.Category)
	}
	if reply.Text != answer.UnknownMessage {
		t.Fatalf("text = %q", reply.Text)
	}
}

func TestAnswerTranslatorErrorFallsThrough(t *testing.T) {
	translator := &fakeTranslator{err: errors.New("model timeout")}
	service, mock := newTestService(t, translator)

	mock.ExpectQuery("SELECT .* FROM sessions").
		WillReturnRows(sqlmock.NewRows([]string{"session_id", "user_id", "activity_type", "duration_minutes", "session_date"}).
			AddRow(int64(1), int64(2), "browse", int64(12), time.Now()))

	reply := service.Answer(context.Background(), Request{Text: "show me sessions from last week"})
	if reply.Strategy != "template" {
		t.Fatalf("strategy = %q", reply.Strategy)
	}
}

func TestExtractSQL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"SELECT 1 FROM users", "SELECT 1 FROM users"},
		{"```sql\nSELECT 1 FROM users\n```", "SELECT 1 FROM users"},
		{"sql: SELECT 1 FROM users", "SELECT 1 FROM users"},
		{"run sql: SELECT 1 FROM users", "SELECT 1 FROM users"},
	}
	for _, tc := range cases {
		if got := ExtractSQL(tc.in); got != tc.want {
			t.Errorf("ExtractSQL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
