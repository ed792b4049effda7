// Package sqlgen builds parameterized SQL from filters detected in a
// question. It is the deterministic fallback behind the model-backed
// translator: no network, no surprises, every dynamic value bound.
package sqlgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/warebot/warebot/internal/warehouse"
)

// euCountries is the membership list behind the EU region filter.
var euCountries = []string{
	"Austria", "Belgium", "Bulgaria", "Croatia", "Cyprus", "Czech Republic",
	"Denmark", "Estonia", "Finland", "France", "Germany", "Greece", "Hungary",
	"Ireland", "Italy", "Latvia", "Lithuania", "Luxembourg", "Malta", "Netherlands",
	"Poland", "Portugal", "Romania", "Slovakia", "Slovenia", "Spain", "Sweden",
}

// Filters are the structured constraints a question carries. Cutoff is
// supplied by the caller from the question's timeframe.
type Filters struct {
	Region  string // "", "EU", "US"
	Status  string // "", "active", "churned"
	GroupBy string // "", "plan", "country"
	Cutoff  *time.Time
}

// DetectFilters extracts region, status, and grouping hints from lowered
// question text.
func DetectFilters(text string) Filters {
	lower := strings.ToLower(text)
	var f Filters

	switch {
	case hasWord(lower, "eu") || strings.Contains(lower, "europe"):
		f.Region = "EU"
	case hasWord(lower, "us") || hasWord(lower, "usa") || strings.Contains(lower, "united states"):
		f.Region = "US"
	}

	switch {
	case hasWord(lower, "active"):
		f.Status = "active"
	case hasWord(lower, "churned") || hasWord(lower, "canceled") || hasWord(lower, "cancelled"):
		f.Status = "churned"
	}

	switch {
	case containsAny(lower, "by plan", "per plan"):
		f.GroupBy = "plan"
	case containsAny(lower, "by country", "per country", "by region", "per region"):
		f.GroupBy = "country"
	}

	return f
}

func containsAny(text string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

// hasWord reports whether word appears with non-letter boundaries, so
// "eu" matches "in the eu" but not "revenue".
func hasWord(text, word string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		leftOK := idx == 0 || !isLetter(text[idx-1])
		rightOK := end == len(text) || !isLetter(text[end])
		if leftOK && rightOK {
			return true
		}
		start = idx + 1
	}
}

func isLetter(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

// Generate builds a statement for the dataset under the given filters.
// It reports false when the dataset is unknown.
func Generate(dataset string, f Filters, rowLimit int) (warehouse.Statement, bool) {
	if rowLimit <= 0 {
		rowLimit = 100
	}
	var stmt warehouse.Statement
	switch dataset {
	case "subscriptions":
		stmt = generateSubscriptions(f, rowLimit)
	case "users":
		stmt = generateUsers(f, rowLimit)
	case "payments":
		stmt = generatePayments(f, rowLimit)
	case "sessions":
		stmt = generateSessions(f, rowLimit)
	default:
		return warehouse.Statement{}, false
	}
	stmt.Name = "generated_" + dataset
	return stmt, true
}

// builder accumulates WHERE conditions with densely numbered parameters.
type builder struct {
	where  []string
	params []any
}

func (b *builder) bind(value any) string {
	b.params = append(b.params, value)
	return fmt.Sprintf("$%d", len(b.params))
}

func (b *builder) regionCondition(column string, region string) {
	switch region {
	case "EU":
		placeholders := make([]string, 0, len(euCountries))
		for _, country := range euCountries {
			placeholders = append(placeholders, b.bind(country))
		}
		b.where = append(b.where, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")))
	case "US":
		b.where = append(b.where, fmt.Sprintf("%s = %s", column, b.bind("United States")))
	}
}

func (b *builder) cutoffCondition(column string, cutoff *time.Time) {
	if cutoff != nil {
		b.where = append(b.where, fmt.Sprintf("%s >= %s", column, b.bind(*cutoff)))
	}
}

func (b *builder) whereClause() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

func generateSubscriptions(f Filters, rowLimit int) warehouse.Statement {
	var b builder
	needsUsers := f.Region != "" || f.GroupBy == "country"

	from := "FROM subscriptions s"
	if needsUsers {
		from += " JOIN users u ON s.user_id = u.user_id"
		b.regionCondition("u.country", f.Region)
	}
	switch f.Status {
	case "active":
		b.where = append(b.where, "s.end_date IS NULL")
	case "churned":
		b.where = append(b.where, "s.end_date IS NOT NULL")
	}
	b.cutoffCondition("s.start_date", f.Cutoff)

	switch f.GroupBy {
	case "plan":
		text := "SELECT s.plan, COUNT(*) AS subscription_count " + from + b.whereClause() +
			" GROUP BY s.plan ORDER BY subscription_count DESC"
		return warehouse.Statement{Text: text, Params: b.params}
	case "country":
		text := "SELECT u.country, COUNT(*) AS subscription_count " + from + b.whereClause() +
			" GROUP BY u.country ORDER BY subscription_count DESC"
		return warehouse.Statement{Text: text, Params: b.params}
	default:
		text := "SELECT s.subscription_id, s.user_id, s.plan, s.start_date, s.end_date " + from + b.whereClause() +
			fmt.Sprintf(" ORDER BY s.start_date DESC LIMIT %d", rowLimit)
		return warehouse.Statement{Text: text, Params: b.params}
	}
}

func generateUsers(f Filters, rowLimit int) warehouse.Statement {
	var b builder
	b.regionCondition("country", f.Region)
	b.cutoffCondition("signup_date", f.Cutoff)

	if f.GroupBy == "country" {
		text := "SELECT country, COUNT(*) AS user_count FROM users" + b.whereClause() +
			" GROUP BY country ORDER BY user_count DESC"
		return warehouse.Statement{Text: text, Params: b.params}
	}
	text := "SELECT user_id, country, device_type, signup_date FROM users" + b.whereClause() +
		fmt.Sprintf(" ORDER BY signup_date DESC LIMIT %d", rowLimit)
	return warehouse.Statement{Text: text, Params: b.params}
}

func generatePayments(f Filters, rowLimit int) warehouse.Statement {
	var b builder
	needsUsers := f.Region != "" || f.GroupBy == "country"

	from := "FROM payments p"
	if needsUsers {
		from += " JOIN users u ON p.user_id = u.user_id"
		b.regionCondition("u.country", f.Region)
	}
	b.cutoffCondition("p.payment_date", f.Cutoff)

	if f.GroupBy == "country" {
		text := "SELECT u.country, SUM(p.amount_usd) AS total_usd " + from + b.whereClause() +
			" GROUP BY u.country ORDER BY total_usd DESC"
		return warehouse.Statement{Text: text, Params: b.params}
	}
	text := "SELECT p.payment_id, p.user_id, p.amount_usd, p.payment_date " + from + b.whereClause() +
		fmt.Sprintf(" ORDER BY p.payment_date DESC LIMIT %d", rowLimit)
	return warehouse.Statement{Text: text, Params: b.params}
}

func generateSessions(f Filters, rowLimit int) warehouse.Statement {
	var b builder
	needsUsers := f.Region != ""

	from := "FROM sessions se"
	if needsUsers {
		from += " JOIN users u ON se.user_id = u.user_id"
		b.regionCondition("u.country", f.Region)
	}
	b.cutoffCondition("se.session_date", f.Cutoff)

	if f.GroupBy != "" {
		// Sessions group by activity regardless of the requested key; the
		// table has no plan or country of its own.
		text := "SELECT se.activity_type, COUNT(*) AS session_count, SUM(se.duration_minutes) AS total_minutes " +
			from + b.whereClause() + " GROUP BY se.activity_type ORDER BY session_count DESC"
		return warehouse.Statement{Text: text, Params: b.params}
	}
	text := "SELECT se.session_id, se.user_id, se.activity_type, se.duration_minutes, se.session_date " +
		from + b.whereClause() + fmt.Sprintf(" ORDER BY se.session_date DESC LIMIT %d", rowLimit)
	return warehouse.Statement{Text: text, Params: b.params}
}
