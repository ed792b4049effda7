// Package answer renders query and forecast results into the short text
// replies the chat transport delivers. Every reply is bounded and every
// failure path maps to a fixed, safe message; the assembler never returns
// an empty string.
package answer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/warebot/warebot/internal/forecast"
	"github.com/warebot/warebot/internal/warehouse"
)

// Fixed replies. Kept as constants so tests and the transport layer agree
// on the exact wording.
const (
	NoDataMessage = "No data found for that question."

	SafeFailureMessage = "Sorry, I couldn't answer that safely. Try rephrasing the question."

	UnavailableMessage = "The data warehouse is unreachable right now. Please try again in a few minutes."

	HelpMessage = "I answer questions about users, subscriptions, payments, and sessions. " +
		"Try \"how much revenue did we make last month?\", \"how many active subscriptions do we have?\", " +
		"or \"predict signups for next year\". I can also run a read-only SQL query if you start your message with SELECT."

	SmallTalkMessage = "Hi! Ask me about users, subscriptions, payments, or sessions and I'll pull the numbers."

	UnknownMessage = "I didn't catch which dataset that's about. " +
		"Ask about users, subscriptions, payments, or sessions, or say \"help\" for examples."
)

// InsufficientHistoryMessage names the minimum so the user knows what is
// missing, not just that something failed.
func InsufficientHistoryMessage(minMonths, haveMonths int) string {
	return fmt.Sprintf("I need at least %d months of history to make a forecast, but only %d %s available.",
		minMonths, haveMonths, plural(haveMonths, "is", "are"))
}

// Assembler renders results within the configured size bounds.
type Assembler struct {
	maxReplyChars int
	maxRows       int
}

func NewAssembler(maxReplyChars, maxRows int) *Assembler {
	return &Assembler{maxReplyChars: maxReplyChars, maxRows: maxRows}
}

// FormatTable renders a bounded row listing under a title. Zero rows yield
// the fixed no-data message.
func (a *Assembler) FormatTable(title string, result warehouse.QueryResult) string {
	if len(result.Rows) == 0 {
		return NoDataMessage
	}

	var b strings.Builder
	if title != "" {
		b.WriteString(title)
		b.WriteString("\n")
	}

	shown := len(result.Rows)
	if a.maxRows > 0 && shown > a.maxRows {
		shown = a.maxRows
	}
	for _, row := range result.Rows[:shown] {
		pairs := make([]string, 0, len(result.Columns))
		for i, col := range result.Columns {
			if i >= len(row) {
				break
			}
			pairs = append(pairs, fmt.Sprintf("%s=%s", col, formatValue(row[i])))
		}
		b.WriteString("- ")
		b.WriteString(strings.Join(pairs, ", "))
		b.WriteString("\n")
	}
	if shown < len(result.Rows) || result.Truncated {
		fmt.Fprintf(&b, "(showing the first %d rows)\n", shown)
	}

	return a.bound(strings.TrimRight(b.String(), "\n"))
}

// FormatForecast renders the fixed forecast template: total, average,
// trend, confidence, then the monthly breakdown.
func (a *Assembler) FormatForecast(subject string, result forecast.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Forecast for %s over the next %d months, based on %d months of history:\n",
		subject, len(result.Projected), result.HistoricalSpanMonths)
	fmt.Fprintf(&b, "Total projected: %s\n", formatValue(result.TotalProjected))
	fmt.Fprintf(&b, "Average per month: %s\n", formatValue(result.AverageProjected))
	fmt.Fprintf(&b, "Trend: %s (confidence: %s)\n", result.TrendDirection, result.Confidence)
	for _, p := range result.Projected {
		fmt.Fprintf(&b, "- %s: %s\n", p.Month.Format("Jan 2006"), formatValue(p.Value))
	}
	return a.bound(strings.TrimRight(b.String(), "\n"))
}

// bound trims the reply to the configured maximum, marking the cut.
func (a *Assembler) bound(text string) string {
	if text == "" {
		return NoDataMessage
	}
	if a.maxReplyChars <= 0 || len(text) <= a.maxReplyChars {
		return text
	}
	const marker = "…"
	cut := a.maxReplyChars - len(marker)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + marker
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "null"
	case float64:
		return trimZeros(fmt.Sprintf("%.2f", typed))
	case float32:
		return trimZeros(fmt.Sprintf("%.2f", typed))
	case string:
		return typed
	default:
		return fmt.Sprintf("%v", typed)
	}
}

// trimZeros drops a fractional part that carries no information, so counts
// render as 42 while amounts keep their cents.
func trimZeros(s string) string {
	if strings.HasSuffix(s, ".00") {
		return strings.TrimSuffix(s, ".00")
	}
	return s
}

func plural(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
