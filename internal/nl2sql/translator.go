// Package nl2sql turns a natural-language question into a candidate SQL
// statement. Candidates are advisory: everything produced here still goes
// through the safety gate before touching the warehouse.
package nl2sql

import "context"

type Request struct {
	Question  string `json:"question"`
	Dataset   string `json:"dataset"`
	RowLimit  int    `json:"row_limit"`
	Principal string `json:"principal"`
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
