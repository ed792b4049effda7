// Package forecast fits a least-squares trend to a monthly time series and
// projects it forward. It is a pure computation: no I/O, no shared state.
package forecast

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInsufficientHistory is returned when the series is too short to fit a
// meaningful trend.
var ErrInsufficientHistory = errors.New("insufficient history")

// Trend directions.
const (
	DirectionIncreasing = "increasing"
	DirectionDecreasing = "decreasing"
	DirectionStable     = "stable"
)

// Confidence labels, derived from the length of the historical window.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Point is one month of observed or projected activity.
type Point struct {
	Month time.Time
	Value float64
}

// Options holds the forecaster's tunables. All thresholds are explicit so
// a reader of the call site sees exactly what governs the output.
type Options struct {
	// Horizon is the number of future months to project.
	Horizon int
	// MinPoints is the minimum historical months required to fit at all.
	MinPoints int
	// TrendEpsilon is the slope magnitude below which the trend reads as
	// stable.
	TrendEpsilon float64
	// HighConfidenceMonths and MediumConfidenceMonths are the span
	// thresholds for the confidence label.
	HighConfidenceMonths   int
	MediumConfidenceMonths int
}

func DefaultOptions() Options {
	return Options{
		Horizon:                12,
		MinPoints:              6,
		TrendEpsilon:           0.1,
		HighConfidenceMonths:   24,
		MediumConfidenceMonths: 12,
	}
}

// Result is a fitted trend and its forward projection.
type Result struct {
	HistoricalSpanMonths int
	Slope                float64
	Intercept            float64
	TrendDirection       string
	Confidence           string
	Projected            []Point
	TotalProjected       float64
	AverageProjected     float64
}

// Project fits ordinary least squares to the series and extends it by the
// configured horizon. Months absent from the input are filled with zero
// activity before fitting; projections are clamped at zero because the
// underlying quantities are counts and sums.
func Project(series []Point, opts Options) (Result, error) {
	months, err := fillGaps(series)
	if err != nil {
		return Result{}, err
	}
	n := len(months)
	if n < opts.MinPoints {
		return Result{}, fmt.Errorf("%w: %d monthly points, need at least %d", ErrInsufficientHistory, n, opts.MinPoints)
	}

	slope, intercept := fitLine(months)

	direction := DirectionStable
	switch {
	case slope > opts.TrendEpsilon:
		direction = DirectionIncreasing
	case slope < -opts.TrendEpsilon:
		direction = DirectionDecreasing
	}

	confidence := ConfidenceLow
	switch {
	case n >= opts.HighConfidenceMonths:
		confidence = ConfidenceHigh
	case n >= opts.MediumConfidenceMonths:
		confidence = ConfidenceMedium
	}

	last := months[n-1].Month
	projected := make([]Point, 0, opts.Horizon)
	var total float64
	for step := 1; step <= opts.Horizon; step++ {
		value := intercept + slope*float64(n-1+step)
		if value < 0 {
			value = 0
		}
		projected = append(projected, Point{Month: last.AddDate(0, step, 0), Value: value})
		total += value
	}

	average := 0.0
	if opts.Horizon > 0 {
		average = total / float64(opts.Horizon)
	}

	return Result{
		HistoricalSpanMonths: n,
		Slope:                slope,
		Intercept:            intercept,
		TrendDirection:       direction,
		Confidence:           confidence,
		Projected:            projected,
		TotalProjected:       total,
		AverageProjected:     average,
	}, nil
}

// fitLine solves the normal equations for y = slope*x + intercept with
// x = 0..n-1.
func fitLine(points []Point) (slope, intercept float64) {
	n := float64(len(points))
	var sumX, sumY, sumXY, sumXX float64
	for i, p := range points {
		x := float64(i)
		sumX += x
		sumY += p.Value
		sumXY += x * p.Value
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// fillGaps normalizes the series to consecutive month buckets: months are
// truncated to their first day, and months with no activity between the
// first and last observation become zero points. Two points landing in the
// same month is an input error; the series feeding this comes pre-bucketed.
func fillGaps(series []Point) ([]Point, error) {
	if len(series) == 0 {
		return nil, nil
	}

	byMonth := map[time.Time]float64{}
	for _, p := range series {
		m := time.Date(p.Month.Year(), p.Month.Month(), 1, 0, 0, 0, 0, time.UTC)
		if _, exists := byMonth[m]; exists {
			return nil, fmt.Errorf("duplicate month %s in series", m.Format("2006-01"))
		}
		byMonth[m] = p.Value
	}

	keys := make([]time.Time, 0, len(byMonth))
	for m := range byMonth {
		keys = append(keys, m)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	var filled []Point
	for m := keys[0]; !m.After(keys[len(keys)-1]); m = m.AddDate(0, 1, 0) {
		filled = append(filled, Point{Month: m, Value: byMonth[m]})
	}
	return filled, nil
}
