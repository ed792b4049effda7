package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/warebot/warebot/internal/classify"
	"github.com/warebot/warebot/internal/sqlgen"
	"github.com/warebot/warebot/internal/sqlguard"
	"github.com/warebot/warebot/internal/warehouse"
)

type sqlRequest struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

type sqlResponse struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated"`
}

// handleSQL runs an analyst-supplied statement through the same gated
// executor as every other query.
func handleSQL(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Executor == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "WAREHOUSE_UNAVAILABLE", "warehouse is not configured", true)
		return
	}

	var req sqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "request body must be JSON", false)
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "EMPTY_SQL", "sql is required", false)
		return
	}

	result, err := deps.Executor.Execute(r.Context(), warehouse.Statement{
		Name:   "api_sql",
		Text:   req.SQL,
		Params: req.Params,
	})
	if err != nil {
		status, code := classifySQLFailure(err)
		writeError(r.Context(), w, status, code, err.Error(), status == http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, sqlResponse{
		Columns:   result.Columns,
		Rows:      result.Rows,
		Truncated: result.Truncated,
	})
}

func classifySQLFailure(err error) (int, string) {
	switch {
	case errors.Is(err, warehouse.ErrRejected):
		return http.StatusUnprocessableEntity, "SQL_REJECTED"
	case errors.Is(err, warehouse.ErrUnavailable):
		return http.StatusServiceUnavailable, "WAREHOUSE_UNAVAILABLE"
	default:
		return http.StatusBadGateway, "QUERY_FAILED"
	}
}

type generateSQLRequest struct {
	Question string `json:"question"`
	Dataset  string `json:"dataset"`
}

type generateSQLResponse struct {
	Dataset string `json:"dataset"`
	SQL     string `json:"sql"`
	Params  []any  `json:"params"`
}

// handleGenerateSQL builds the template statement for a question without
// executing it, so analysts can inspect what would run.
func handleGenerateSQL(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req generateSQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "request body must be JSON", false)
		return
	}
	if strings.TrimSpace(req.Question) == "" && strings.TrimSpace(req.Dataset) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "EMPTY_REQUEST", "question or dataset is required", false)
		return
	}

	normalized := classify.Normalize(req.Question)
	dataset := strings.TrimSpace(req.Dataset)
	if dataset == "" {
		c := classify.Classify(normalized)
		dataset = string(c.Dataset)
	}
	if dataset == "" || dataset == string(classify.DatasetNone) {
		writeError(r.Context(), w, http.StatusBadRequest, "UNKNOWN_DATASET",
			"could not determine a dataset; name one of users, subscriptions, payments, sessions", false)
		return
	}

	filters := sqlgen.DetectFilters(normalized)
	stmt, ok := sqlgen.Generate(dataset, filters, deps.RowLimit)
	if !ok {
		writeError(r.Context(), w, http.StatusBadRequest, "UNKNOWN_DATASET",
			"dataset must be one of users, subscriptions, payments, sessions", false)
		return
	}

	params := stmt.Params
	if params == nil {
		params = []any{}
	}
	writeJSON(w, http.StatusOK, generateSQLResponse{Dataset: dataset, SQL: stmt.Text, Params: params})
}

type catalogEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// handleListQueries lists the statement catalog and the table whitelist.
func handleListQueries(_ Dependencies, w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tables": sqlguard.AllowedTables(),
		"queries": []catalogEntry{
			{Name: "payments_overview", Description: "total revenue, payment count, and paying users"},
			{Name: "users_overview", Description: "user count and country coverage"},
			{Name: "subscriptions_overview", Description: "total, active, and churned subscriptions"},
			{Name: "sessions_overview", Description: "session count and minutes"},
			{Name: "subscriptions_by_plan", Description: "active subscriptions per plan"},
			{Name: "monthly_revenue", Description: "monthly revenue series for forecasting"},
			{Name: "monthly_signups", Description: "monthly signup series for forecasting"},
			{Name: "monthly_new_subscriptions", Description: "monthly new subscription series for forecasting"},
			{Name: "monthly_session_minutes", Description: "monthly session minutes series for forecasting"},
		},
	})
}
