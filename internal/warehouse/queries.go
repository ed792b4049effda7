package warehouse

import "time"

// The statement catalog. Each entry is a fixed SQL template; anything
// dynamic (cutoff dates) arrives as a bound parameter. Month bucketing
// uses date_trunc so the same text runs on postgres and duckdb.

// PaymentsOverview totals revenue, optionally restricted to payments on or
// after the cutoff.
func PaymentsOverview(cutoff *time.Time) Statement {
	text := "SELECT COALESCE(SUM(amount_usd), 0) AS total_revenue_usd, COUNT(*) AS payment_count, COUNT(DISTINCT user_id) AS paying_users FROM payments"
	var params []any
	if cutoff != nil {
		text += " WHERE payment_date >= $1"
		params = append(params, *cutoff)
	}
	return Statement{Name: "payments_overview", Text: text, Params: params}
}

// UsersOverview counts signups, optionally restricted to the cutoff window.
func UsersOverview(cutoff *time.Time) Statement {
	text := "SELECT COUNT(*) AS total_users, COUNT(DISTINCT country) AS countries FROM users"
	var params []any
	if cutoff != nil {
		text += " WHERE signup_date >= $1"
		params = append(params, *cutoff)
	}
	return Statement{Name: "users_overview", Text: text, Params: params}
}

// SubscriptionsOverview breaks subscriptions into active and churned. A
// cutoff restricts to subscriptions started in the window.
func SubscriptionsOverview(cutoff *time.Time) Statement {
	text := "SELECT COUNT(*) AS total_subscriptions, " +
		"COALESCE(SUM(CASE WHEN end_date IS NULL THEN 1 ELSE 0 END), 0) AS active, " +
		"COALESCE(SUM(CASE WHEN end_date IS NULL THEN 0 ELSE 1 END), 0) AS churned " +
		"FROM subscriptions"
	var params []any
	if cutoff != nil {
		text += " WHERE start_date >= $1"
		params = append(params, *cutoff)
	}
	return Statement{Name: "subscriptions_overview", Text: text, Params: params}
}

// SessionsOverview summarizes activity, optionally within the cutoff window.
func SessionsOverview(cutoff *time.Time) Statement {
	text := "SELECT COUNT(*) AS session_count, COALESCE(SUM(duration_minutes), 0) AS total_minutes, COALESCE(AVG(duration_minutes), 0) AS avg_minutes FROM sessions"
	var params []any
	if cutoff != nil {
		text += " WHERE session_date >= $1"
		params = append(params, *cutoff)
	}
	return Statement{Name: "sessions_overview", Text: text, Params: params}
}

// SubscriptionsByPlan counts active subscriptions per plan.
func SubscriptionsByPlan() Statement {
	return Statement{
		Name: "subscriptions_by_plan",
		Text: "SELECT plan, COUNT(*) AS subscriptions FROM subscriptions WHERE end_date IS NULL GROUP BY plan ORDER BY subscriptions DESC",
	}
}

// MonthlyRevenue returns one (month, value) row per month since the given
// date, feeding the forecaster its payments series.
func MonthlyRevenue(since time.Time) Statement {
	return Statement{
		Name:   "monthly_revenue",
		Text:   "SELECT date_trunc('month', payment_date) AS month, SUM(amount_usd) AS value FROM payments WHERE payment_date >= $1 GROUP BY 1 ORDER BY 1",
		Params: []any{since},
	}
}

// MonthlySignups is the forecasting series for the users dataset.
func MonthlySignups(since time.Time) Statement {
	return Statement{
		Name:   "monthly_signups",
		Text:   "SELECT date_trunc('month', signup_date) AS month, COUNT(*) AS value FROM users WHERE signup_date >= $1 GROUP BY 1 ORDER BY 1",
		Params: []any{since},
	}
}

// MonthlyNewSubscriptions is the forecasting series for the subscriptions
// dataset.
func MonthlyNewSubscriptions(since time.Time) Statement {
	return Statement{
		Name:   "monthly_new_subscriptions",
		Text:   "SELECT date_trunc('month', start_date) AS month, COUNT(*) AS value FROM subscriptions WHERE start_date >= $1 GROUP BY 1 ORDER BY 1",
		Params: []any{since},
	}
}

// MonthlySessionMinutes is the forecasting series for the sessions dataset.
func MonthlySessionMinutes(since time.Time) Statement {
	return Statement{
		Name:   "monthly_session_minutes",
		Text:   "SELECT date_trunc('month', session_date) AS month, SUM(duration_minutes) AS value FROM sessions WHERE session_date >= $1 GROUP BY 1 ORDER BY 1",
		Params: []any{since},
	}
}

// OverviewFor maps a dataset name to its overview statement.
func OverviewFor(dataset string, cutoff *time.Time) (Statement, bool) {
	switch dataset {
	case "payments":
		return PaymentsOverview(cutoff), true
	case "users":
		return UsersOverview(cutoff), true
	case "subscriptions":
		return SubscriptionsOverview(cutoff), true
	case "sessions":
		return SessionsOverview(cutoff), true
	}
	return Statement{}, false
}

// SeriesFor maps a dataset name to its monthly forecasting series.
func SeriesFor(dataset string, since time.Time) (Statement, bool) {
	switch dataset {
	case "payments":
		return MonthlyRevenue(since), true
	case "users":
		return MonthlySignups(since), true
	case "subscriptions":
		return MonthlyNewSubscriptions(since), true
	case "sessions":
		return MonthlySessionMinutes(since), true
	}
	return Statement{}, false
}
