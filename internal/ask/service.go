// Package ask wires the question pipeline: classify the text, choose and
// run a data-access strategy, and assemble a bounded reply. Every failure
// inside the pipeline becomes a safe text response; Answer never returns
// an error and never panics the process.
package ask

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/warebot/warebot/internal/answer"
	"github.com/warebot/warebot/internal/classify"
	"github.com/warebot/warebot/internal/forecast"
	"github.com/warebot/warebot/internal/nl2sql"
	"github.com/warebot/warebot/internal/observability"
	"github.com/warebot/warebot/internal/sqlgen"
	"github.com/warebot/warebot/internal/warehouse"
)

// historyWindowMonths bounds how far back the forecaster's input series
// reaches.
const historyWindowMonths = 36

type Request struct {
	Text           string
	ConversationID string
	Principal      string
}

type Reply struct {
	Text           string
	Category       classify.Category
	Dataset        classify.Dataset
	Timeframe      classify.Timeframe
	Strategy       string
	ConversationID string
}

// Service owns the pipeline. The translator is optional; when absent, data
// questions go straight to the deterministic strategies.
type Service struct {
	executor     *warehouse.Executor
	translator   nl2sql.Translator
	assembler    *answer.Assembler
	forecastOpts forecast.Options
	rowLimit     int
	logger       *slog.Logger
	now          func() time.Time
}

func New(executor *warehouse.Executor, translator nl2sql.Translator, assembler *answer.Assembler, rowLimit int, logger *slog.Logger) *Service {
	return &Service{
		executor:     executor,
		translator:   translator,
		assembler:    assembler,
		forecastOpts: forecast.DefaultOptions(),
		rowLimit:     rowLimit,
		logger:       logger,
		now:          time.Now,
	}
}

// Answer processes one question end to end.
func (s *Service) Answer(ctx context.Context, req Request) Reply {
	question := classify.NewQuestion(req.Text)
	c := classify.Classify(question.NormalizedText)
	observability.ObserveQuestion(string(c.Category), string(c.Dataset))

	reply := Reply{
		Category:       c.Category,
		Dataset:        c.Dataset,
		Timeframe:      c.Timeframe,
		ConversationID: req.ConversationID,
	}

	switch c.Category {
	case classify.CategoryHelp:
		reply.Text = answer.HelpMessage
	case classify.CategorySmallTalk:
		reply.Text = answer.SmallTalkMessage
	case classify.CategoryListQueries:
		reply.Text = s.listQueries()
	case classify.CategoryGenerateSQL:
		reply.Text = s.generateSQL(question, c)
	case classify.CategorySQLQuery:
		reply.Text = s.runUserSQL(ctx, question)
	case classify.CategoryForecastQuestion:
		reply.Text = s.forecastAnswer(ctx, c)
	case classify.CategoryDataQuestion:
		reply.Text, reply.Strategy = s.dataAnswer(ctx, req, question, c)
	default:
		reply.Text = answer.UnknownMessage
	}

	if reply.Text == "" {
		reply.Text = answer.SafeFailureMessage
	}
	return reply
}

// strategy is one named way of producing a statement for a data question.
// Strategies run in slice order; the first whose statement both builds and
// executes wins.
type strategy struct {
	name  string
	build func(ctx context.Context) (warehouse.Statement, error)
}

func (s *Service) dataAnswer(ctx context.Context, req Request, question classify.Question, c classify.Classification) (string, string) {
	if c.Dataset == classify.DatasetNone {
		return answer.UnknownMessage, ""
	}

	cutoff := s.cutoff(c.Timeframe)
	filters := sqlgen.DetectFilters(question.NormalizedText)
	filters.Cutoff = cutoff

	strategies := make([]strategy, 0, 3)
	if s.translator != nil {
		strategies = append(strategies, strategy{
			name: "translator",
			build: func(ctx context.Context) (warehouse.Statement, error) {
				result, err := s.translator.Translate(ctx, nl2sql.Request{
					Question:  question.RawText,
					Dataset:   string(c.Dataset),
					RowLimit:  s.rowLimit,
					Principal: req.Principal,
				})
				if err != nil {
					return warehouse.Statement{}, err
				}
				return warehouse.Statement{Name: "translated", Text: result.SQL}, nil
			},
		})
	}
	template := strategy{
		name: "template",
		build: func(context.Context) (warehouse.Statement, error) {
			stmt, ok := sqlgen.Generate(string(c.Dataset), filters, s.rowLimit)
			if !ok {
				return warehouse.Statement{}, fmt.Errorf("no template for dataset %s", c.Dataset)
			}
			return stmt, nil
		},
	}
	overview := strategy{
		name: "overview",
		build: func(context.Context) (warehouse.Statement, error) {
			stmt, ok := warehouse.OverviewFor(string(c.Dataset), cutoff)
			if !ok {
				return warehouse.Statement{}, fmt.Errorf("no overview for dataset %s", c.Dataset)
			}
			return stmt, nil
		},
	}
	// Summary questions get the aggregate overview ahead of the row-listing
	// template; grouped questions keep the template first, since it already
	// aggregates per group.
	if wantsAggregate(question.NormalizedText, filters) {
		strategies = append(strategies, overview, template)
	} else {
		strategies = append(strategies, template, overview)
	}

	var lastErr error
	for _, st := range strategies {
		stmt, err := st.build(ctx)
		if err != nil {
			s.logger.Info("strategy build failed",
				slog.String("strategy", st.name), slog.String("error", err.Error()))
			lastErr = err
			continue
		}
		result, err := s.executor.Execute(ctx, stmt)
		if err != nil {
			s.logger.Info("strategy execution failed",
				slog.String("strategy", st.name),
				slog.String("statement", stmt.Name),
				slog.String("error", err.Error()))
			lastErr = err
			continue
		}
		return s.assembler.FormatTable(s.title(c), result), st.name
	}

	return failureText(lastErr), ""
}

func (s *Service) forecastAnswer(ctx context.Context, c classify.Classification) string {
	if c.Dataset == classify.DatasetNone {
		return answer.UnknownMessage
	}

	since := s.now().AddDate(0, -historyWindowMonths, 0)
	stmt, ok := warehouse.SeriesFor(string(c.Dataset), since)
	if !ok {
		return answer.UnknownMessage
	}
	result, err := s.executor.Execute(ctx, stmt)
	if err != nil {
		return failureText(err)
	}

	series, err := toSeries(result)
	if err != nil {
		s.logger.Error("forecast series parse failed", slog.String("error", err.Error()))
		return answer.SafeFailureMessage
	}

	projection, err := forecast.Project(series, s.forecastOpts)
	if err != nil {
		if errors.Is(err, forecast.ErrInsufficientHistory) {
			return answer.InsufficientHistoryMessage(s.forecastOpts.MinPoints, len(series))
		}
		return answer.SafeFailureMessage
	}
	observability.ObserveForecast(projection.Confidence)

	return s.assembler.FormatForecast(forecastSubject(c.Dataset), projection)
}

// runUserSQL executes SQL the user typed directly. The statement carries no
// bound parameters, so the gate additionally forces it to be literal-free.
func (s *Service) runUserSQL(ctx context.Context, question classify.Question) string {
	sqlText := ExtractSQL(question.RawText)
	if sqlText == "" {
		return answer.SafeFailureMessage
	}
	result, err := s.executor.Execute(ctx, warehouse.Statement{Name: "user_sql", Text: sqlText})
	if err != nil {
		return failureText(err)
	}
	return s.assembler.FormatTable("Query result", result)
}

// generateSQL shows the user the statement the template strategy would run,
// without executing it.
func (s *Service) generateSQL(question classify.Question, c classify.Classification) string {
	if c.Dataset == classify.DatasetNone {
		return "I couldn't tell which table to generate SQL for. " +
			"Name one of: users, subscriptions, payments, sessions. " +
			"For example: \"generate sql for subscriptions in the EU\"."
	}
	filters := sqlgen.DetectFilters(question.NormalizedText)
	filters.Cutoff = s.cutoff(c.Timeframe)
	stmt, ok := sqlgen.Generate(string(c.Dataset), filters, s.rowLimit)
	if !ok {
		return answer.UnknownMessage
	}

	var b strings.Builder
	b.WriteString("Generated SQL for ")
	b.WriteString(string(c.Dataset))
	b.WriteString(":\n")
	b.WriteString(stmt.Text)
	if len(stmt.Params) > 0 {
		fmt.Fprintf(&b, "\n(%d bound parameter%s)", len(stmt.Params), pluralSuffix(len(stmt.Params)))
	}
	return b.String()
}

func (s *Service) listQueries() string {
	return "Questions I can answer directly:\n" +
		"- \"how much revenue did we make last month?\" (payments)\n" +
		"- \"how many active subscriptions do we have by plan?\" (subscriptions)\n" +
		"- \"how many users signed up last quarter?\" (users)\n" +
		"- \"how much time did users spend in sessions last week?\" (sessions)\n" +
		"- \"predict revenue for next year\" (12-month forecast)\n" +
		"You can also send a read-only SELECT against users, subscriptions, payments, or sessions."
}

func (s *Service) cutoff(tf classify.Timeframe) *time.Time {
	days := tf.Days()
	if days <= 0 {
		return nil
	}
	cutoff := s.now().AddDate(0, 0, -days)
	return &cutoff
}

func (s *Service) title(c classify.Classification) string {
	title := datasetTitle(c.Dataset)
	if days := c.Timeframe.Days(); days > 0 {
		title = fmt.Sprintf("%s (last %d days)", title, days)
	}
	return title
}

func datasetTitle(dataset classify.Dataset) string {
	switch dataset {
	case classify.DatasetPayments:
		return "Payments"
	case classify.DatasetUsers:
		return "Users"
	case classify.DatasetSubscriptions:
		return "Subscriptions"
	case classify.DatasetSessions:
		return "Sessions"
	}
	return "Results"
}

func forecastSubject(dataset classify.Dataset) string {
	switch dataset {
	case classify.DatasetPayments:
		return "monthly revenue"
	case classify.DatasetUsers:
		return "monthly signups"
	case classify.DatasetSubscriptions:
		return "new subscriptions per month"
	case classify.DatasetSessions:
		return "monthly session minutes"
	}
	return "monthly activity"
}

// Cues that a question asks for a single summary number rather than a row
// listing.
var (
	aggregatePhrases = []string{"how much", "how many"}
	aggregateWords   = []string{"total", "sum", "count", "average", "avg", "revenue"}
)

func wantsAggregate(normalized string, f sqlgen.Filters) bool {
	if f.GroupBy != "" {
		return false
	}
	for _, phrase := range aggregatePhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	for _, word := range aggregateWords {
		if containsWord(normalized, word) {
			return true
		}
	}
	return false
}

// containsWord matches on word boundaries so "count" does not fire on
// "country".
func containsWord(text, word string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		leftOK := idx == 0 || !isASCIILetter(text[idx-1])
		rightOK := end == len(text) || !isASCIILetter(text[end])
		if leftOK && rightOK {
			return true
		}
		start = idx + 1
	}
}

func isASCIILetter(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

// failureText maps an executor failure to its safe user-facing message.
func failureText(err error) string {
	switch {
	case err == nil:
		return answer.SafeFailureMessage
	case errors.Is(err, warehouse.ErrUnavailable):
		return answer.UnavailableMessage
	default:
		return answer.SafeFailureMessage
	}
}

// ExtractSQL pulls a SQL statement out of a chat message: fenced blocks
// and "sql:"-style prefixes are stripped, anything else passes through.
func ExtractSQL(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if end := strings.Index(trimmed, "```"); end >= 0 {
			trimmed = trimmed[:end]
		}
		return strings.TrimSpace(trimmed)
	}
	lower := strings.ToLower(trimmed)
	for _, prefix := range []string{"run sql:", "sql:", "query:"} {
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(trimmed[len(prefix):])
		}
	}
	return trimmed
}

// toSeries converts a (month, value) result into forecast points.
func toSeries(result warehouse.QueryResult) ([]forecast.Point, error) {
	points := make([]forecast.Point, 0, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("series row has %d columns, want 2", len(row))
		}
		month, err := coerceTime(row[0])
		if err != nil {
			return nil, err
		}
		value, err := coerceFloat(row[1])
		if err != nil {
			return nil, err
		}
		points = append(points, forecast.Point{Month: month, Value: value})
	}
	return points, nil
}

func coerceTime(value any) (time.Time, error) {
	switch typed := value.(type) {
	case time.Time:
		return typed, nil
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, typed); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse month %q", typed)
	default:
		return time.Time{}, fmt.Errorf("unexpected month type %T", value)
	}
}

func coerceFloat(value any) (float64, error) {
	switch typed := value.(type) {
	case float64:
		return typed, nil
	case float32:
		return float64(typed), nil
	case int64:
		return float64(typed), nil
	case int:
		return float64(typed), nil
	case string:
		var f float64
		if _, err := fmt.Sscanf(typed, "%g", &f); err != nil {
			return 0, fmt.Errorf("cannot parse value %q", typed)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unexpected value type %T", value)
	}
}

func pluralSuffix(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
