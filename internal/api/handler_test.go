package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/warebot/warebot/internal/ask"
	"github.com/warebot/warebot/internal/auth"
	"github.com/warebot/warebot/internal/classify"
	"github.com/warebot/warebot/internal/config"
	"github.com/warebot/warebot/internal/warehouse"
)

type fakeAskService struct {
	lastRequest ask.Request
	reply       ask.Reply
}

func (f *fakeAskService) Answer(_ context.Context, req ask.Request) ask.Reply {
	f.lastRequest = req
	return f.reply
}

type fakeExecutor struct {
	result warehouse.QueryResult
	err    error
	last   warehouse.Statement
}

func (f *fakeExecutor) Execute(_ context.Context, stmt warehouse.Statement) (warehouse.QueryResult, error) {
	f.last = stmt
	if f.err != nil {
		return warehouse.QueryResult{}, f.err
	}
	return f.result, nil
}

func testConfig(authRequired bool) config.Config {
	var cfg config.Config
	cfg.Service.Name = "warebot"
	cfg.Auth.Required = authRequired
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHealthEndpoint(t *testing.T) {
	handler := NewHandler(testConfig(false), Dependencies{Logger: testLogger()})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["service"] != "warebot" {
		t.Fatalf("service = %v", body["service"])
	}
}

func TestReadyEndpointReportsFailure(t *testing.T) {
	handler := NewHandler(testConfig(false), Dependencies{
		Logger:    testLogger(),
		Readiness: func(context.Context) error { return errors.New("warehouse down") },
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAskEndpoint(t *testing.T) {
	askService := &fakeAskService{reply: ask.Reply{
		Text:     "Total revenue: 1200",
		Category: classify.CategoryDataQuestion,
		Dataset:  classify.DatasetPayments,
		Strategy: "template",
	}}
	handler := NewHandler(testConfig(false), Dependencies{Logger: testLogger(), Ask: askService})

	body := strings.NewReader(`{"text":"how much revenue last month?","conversation_id":"c-1"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ask", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	var resp askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Reply != "Total revenue: 1200" {
		t.Fatalf("reply = %q", resp.Reply)
	}
	if resp.Category != "data_question" || resp.Dataset != "payments" {
		t.Fatalf("category = %s dataset = %s", resp.Category, resp.Dataset)
	}
	if askService.lastRequest.ConversationID != "c-1" {
		t.Fatalf("conversation id = %q", askService.lastRequest.ConversationID)
	}
}

func TestAskEndpointRejectsEmptyText(t *testing.T) {
	handler := NewHandler(testConfig(false), Dependencies{Logger: testLogger(), Ask: &fakeAskService{}})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"text":"  "}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSQLEndpointExecutesStatement(t *testing.T) {
	executor := &fakeExecutor{result: warehouse.QueryResult{
		Columns: []string{"n"},
		Rows:    [][]any{{int64(5)}},
	}}
	handler := NewHandler(testConfig(false), Dependencies{Logger: testLogger(), Executor: executor})

	body := strings.NewReader(`{"sql":"SELECT COUNT(*) AS n FROM users","params":[]}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sql", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if executor.last.Text != "SELECT COUNT(*) AS n FROM users" {
		t.Fatalf("statement = %q", executor.last.Text)
	}
}

func TestSQLEndpointMapsFailures(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: forbidden keyword", warehouse.ErrRejected), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: dial tcp", warehouse.ErrUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: syntax error", warehouse.ErrQueryFailed), http.StatusBadGateway},
	}
	for _, tc := range cases {
		handler := NewHandler(testConfig(false), Dependencies{Logger: testLogger(), Executor: &fakeExecutor{err: tc.err}})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sql", strings.NewReader(`{"sql":"SELECT 1 FROM users"}`)))
		if rec.Code != tc.status {
			t.Errorf("error %v: status = %d, want %d", tc.err, rec.Code, tc.status)
		}
	}
}

func TestGenerateSQLEndpoint(t *testing.T) {
	handler := NewHandler(testConfig(false), Dependencies{Logger: testLogger(), RowLimit: 100})

	body := strings.NewReader(`{"question":"show me active subscriptions in the eu by plan"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sql/generate", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	var resp generateSQLResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Dataset != "subscriptions" {
		t.Fatalf("dataset = %s", resp.Dataset)
	}
	if !strings.Contains(resp.SQL, "GROUP BY s.plan") {
		t.Fatalf("sql = %s", resp.SQL)
	}
	if len(resp.Params) == 0 {
		t.Fatal("expected bound EU country parameters")
	}
}

func TestListQueriesEndpoint(t *testing.T) {
	handler := NewHandler(testConfig(false), Dependencies{Logger: testLogger()})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/queries", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "monthly_revenue") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func newAuthHandler(t *testing.T, deps Dependencies) http.Handler {
	t.Helper()
	validator, err := auth.NewStaticAPIKeyValidator("ask-key:alice:asker,analyst-key:bob:analyst|asker")
	if err != nil {
		t.Fatalf("validator error = %v", err)
	}
	deps.Logger = testLogger()
	deps.AuthMiddleware = auth.Middleware(deps.Logger, validator)
	return NewHandler(testConfig(true), deps)
}

func TestAuthRequiredWithoutKey(t *testing.T) {
	handler := newAuthHandler(t, Dependencies{Ask: &fakeAskService{}})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"text":"hi"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAskerRoleCannotRunRawSQL(t *testing.T) {
	handler := newAuthHandler(t, Dependencies{Executor: &fakeExecutor{}})

	req := httptest.NewRequest(http.MethodPost, "/v1/sql", strings.NewReader(`{"sql":"SELECT 1 FROM users"}`))
	req.Header.Set("X-API-Key", "ask-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAnalystRoleRunsRawSQL(t *testing.T) {
	executor := &fakeExecutor{result: warehouse.QueryResult{Columns: []string{"n"}, Rows: [][]any{{int64(1)}}}}
	handler := newAuthHandler(t, Dependencies{Executor: executor})

	req := httptest.NewRequest(http.MethodPost, "/v1/sql", strings.NewReader(`{"sql":"SELECT COUNT(*) AS n FROM users"}`))
	req.Header.Set("X-API-Key", "analyst-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestHealthStaysOpenWithAuthRequired(t *testing.T) {
	handler := newAuthHandler(t, Dependencies{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
