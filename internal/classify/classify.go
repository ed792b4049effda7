// Package classify maps normalized question text to a typed classification.
// Classification is pure and deterministic: the same text always yields the
// same result, and keyword precedence is data, not control flow.
package classify

import "strings"

type Category string

const (
	CategoryHelp             Category = "help"
	CategorySmallTalk        Category = "small_talk"
	CategoryDataQuestion     Category = "data_question"
	CategoryForecastQuestion Category = "forecast_question"
	CategorySQLQuery         Category = "sql_query"
	CategoryGenerateSQL      Category = "generate_sql"
	CategoryListQueries      Category = "list_queries"
	CategoryUnknown          Category = "unknown"
)

type Dataset string

const (
	DatasetUsers         Dataset = "users"
	DatasetPayments      Dataset = "payments"
	DatasetSubscriptions Dataset = "subscriptions"
	DatasetSessions      Dataset = "sessions"
	DatasetNone          Dataset = "none"
)

type Timeframe string

const (
	TimeframeNone        Timeframe = "none"
	TimeframeLastWeek    Timeframe = "last_week"
	TimeframeLastMonth   Timeframe = "last_month"
	TimeframeLastQuarter Timeframe = "last_quarter"
	TimeframeLastYear    Timeframe = "last_year"
)

// Days returns the lookback window length for a timeframe, or 0 for none.
func (tf Timeframe) Days() int {
	switch tf {
	case TimeframeLastWeek:
		return 7
	case TimeframeLastMonth:
		return 30
	case TimeframeLastQuarter:
		return 90
	case TimeframeLastYear:
		return 365
	default:
		return 0
	}
}

type Classification struct {
	Category  Category
	Dataset   Dataset
	Timeframe Timeframe
	Reason    string
}

var helpKeywords = []string{"help", "how do i", "what can you do", "commands"}

var smallTalkKeywords = []string{"hi", "hello", "hey", "thanks", "thank you", "yo"}

var forecastKeywords = []string{
	"predict", "forecast", "future", "estimate", "projection",
	"next year", "will be", "going to",
}

// Only statement forms the executor can actually run count as SQL here;
// "show me revenue" is a data question, not a SHOW statement.
var sqlPrefixes = []string{"select", "with"}

var sqlIndicators = []string{"sql:", "query:", "run sql", "execute sql", "run query"}

var listQueriesKeywords = []string{
	"list queries", "show queries", "available queries",
	"query catalog", "what queries", "query examples",
}

var generateSQLKeywords = []string{
	"create sql", "generate sql", "make sql", "write sql",
	"build sql", "sql query for",
}

var dataPhrases = []string{
	"how many", "what is", "what are", "show me",
	"trend", "average", "total", "sum", "by country",
	"by region", "by product", "over time", "segment",
}

// Holiday vocabulary defaults to the payments dataset: these questions are
// nearly always about sales.
var holidayKeywords = []string{
	"holiday", "black friday", "cyber monday",
	"christmas", "xmas", "new year", "q4",
}

// DatasetRule binds a keyword set to a dataset. Rules are evaluated in
// slice order and the first match wins when a question mentions terms from
// more than one set.
type DatasetRule struct {
	Dataset  Dataset
	Keywords []string
}

// datasetRules is the fixed precedence order: payments, subscriptions,
// users, sessions.
var datasetRules = []DatasetRule{
	{Dataset: DatasetPayments, Keywords: []string{
		"payment", "payments", "revenue", "income", "gmv",
		"sales", "sale", "orders", "order", "transactions", "transaction",
		"spend", "spending",
	}},
	{Dataset: DatasetSubscriptions, Keywords: []string{
		"subscription", "subscriptions", "plan", "plans", "churn",
		"cancel", "renewal",
	}},
	{Dataset: DatasetUsers, Keywords: []string{
		"user", "users", "signup", "signups", "country", "region", "cohort",
	}},
	{Dataset: DatasetSessions, Keywords: []string{
		"session", "sessions", "engagement", "activity", "usage",
		"visit", "visits",
	}},
}

// Classify maps normalized text to a classification. It is total: every
// input yields a value and unmatched input resolves to CategoryUnknown.
func Classify(normalized string) Classification {
	text := strings.TrimSpace(normalized)
	timeframe := extractTimeframe(text)

	if matchesAny(text, helpKeywords) {
		return Classification{Category: CategoryHelp, Dataset: DatasetNone, Timeframe: timeframe, Reason: "matched help keywords"}
	}

	if matchesAny(text, generateSQLKeywords) {
		return Classification{Category: CategoryGenerateSQL, Dataset: matchDataset(text), Timeframe: timeframe, Reason: "matched sql generation keywords"}
	}

	if matchesAny(text, listQueriesKeywords) {
		return Classification{Category: CategoryListQueries, Dataset: DatasetNone, Timeframe: timeframe, Reason: "matched query listing keywords"}
	}

	if looksLikeSQL(text) {
		return Classification{Category: CategorySQLQuery, Dataset: DatasetNone, Timeframe: timeframe, Reason: "detected sql syntax"}
	}

	dataset := matchDataset(text)

	if matchesAny(text, forecastKeywords) && dataset != DatasetNone {
		return Classification{Category: CategoryForecastQuestion, Dataset: dataset, Timeframe: timeframe, Reason: "matched forecast keywords with dataset"}
	}

	mentionsHoliday := matchesAny(text, holidayKeywords)
	if mentionsHoliday && dataset == DatasetNone {
		dataset = DatasetPayments
	}
	if dataset != DatasetNone || matchesAny(text, dataPhrases) || mentionsHoliday {
		return Classification{Category: CategoryDataQuestion, Dataset: dataset, Timeframe: timeframe, Reason: "looks like a data question"}
	}

	if len(strings.Fields(text)) <= 4 && matchesAny(text, smallTalkKeywords) {
		return Classification{Category: CategorySmallTalk, Dataset: DatasetNone, Timeframe: timeframe, Reason: "matched small talk on short message"}
	}

	return Classification{Category: CategoryUnknown, Dataset: DatasetNone, Timeframe: timeframe, Reason: "no keyword or pattern matched"}
}

// matchDataset returns the first dataset whose keyword set matches, in
// rule order, or DatasetNone.
func matchDataset(text string) Dataset {
	for _, rule := range datasetRules {
		if matchesAny(text, rule.Keywords) {
			return rule.Dataset
		}
	}
	return DatasetNone
}

func extractTimeframe(text string) Timeframe {
	switch {
	case containsPhrase(text, "last week") || containsPhrase(text, "past week"):
		return TimeframeLastWeek
	case containsPhrase(text, "last month") || containsPhrase(text, "past month"):
		return TimeframeLastMonth
	case containsPhrase(text, "last quarter") || containsPhrase(text, "past quarter"):
		return TimeframeLastQuarter
	case containsPhrase(text, "last year") || containsPhrase(text, "past year"):
		return TimeframeLastYear
	default:
		return TimeframeNone
	}
}

func looksLikeSQL(text string) bool {
	for _, prefix := range sqlPrefixes {
		if strings.HasPrefix(text, prefix+" ") {
			return true
		}
	}
	for _, indicator := range sqlIndicators {
		if strings.Contains(text, indicator) {
			return true
		}
	}
	return containsPhrase(text, "select") && (containsPhrase(text, "from") || containsPhrase(text, "where"))
}

func matchesAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if containsPhrase(text, phrase) {
			return true
		}
	}
	return false
}

// containsPhrase reports whether phrase occurs in text on word boundaries,
// so "plan" does not match inside "explain".
func containsPhrase(text, phrase string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], phrase)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(phrase)
		beforeOK := idx == 0 || isBoundary(text[idx-1])
		afterOK := end == len(text) || isBoundary(text[end])
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isBoundary(ch byte) bool {
	return !(ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' || ch == '_')
}
