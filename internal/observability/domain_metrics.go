package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warebot_questions_total",
			Help: "Total number of classified questions by category and dataset.",
		},
		[]string{"category", "dataset"},
	)
	sqlRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warebot_sql_rejected_total",
			Help: "Total number of SQL statements rejected by the safety gate.",
		},
		[]string{"reason"},
	)
	warehouseQuerySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warebot_warehouse_query_duration_seconds",
			Help:    "Warehouse query latency.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
	warehouseFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warebot_warehouse_failures_total",
			Help: "Total number of warehouse failures by kind.",
		},
		[]string{"kind"},
	)
	forecastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warebot_forecasts_total",
			Help: "Total number of produced forecasts by confidence.",
		},
		[]string{"confidence"},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		sqlRejectedTotal,
		warehouseQuerySeconds,
		warehouseFailuresTotal,
		forecastsTotal,
	)
}

func ObserveQuestion(category, dataset string) {
	questionsTotal.WithLabelValues(category, dataset).Inc()
}

func ObserveSQLRejected(reason string) {
	sqlRejectedTotal.WithLabelValues(reason).Inc()
}

func ObserveWarehouseQuery(elapsed time.Duration) {
	warehouseQuerySeconds.Observe(elapsed.Seconds())
}

func ObserveWarehouseFailure(kind string) {
	warehouseFailuresTotal.WithLabelValues(kind).Inc()
}

func ObserveForecast(confidence string) {
	forecastsTotal.WithLabelValues(confidence).Inc()
}
