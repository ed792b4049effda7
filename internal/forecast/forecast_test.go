package forecast

import (
	"errors"
	"math"
	"testing"
	"time"
)

func monthlySeries(start time.Time, values []float64) []Point {
	points := make([]Point, 0, len(values))
	for i, v := range values {
		points = append(points, Point{Month: start.AddDate(0, i, 0), Value: v})
	}
	return points
}

func TestProjectContinuesLinearSeries(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	series := monthlySeries(start, []float64{10, 12, 14, 16, 18, 20})

	result, err := Project(series, DefaultOptions())
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if result.TrendDirection != DirectionIncreasing {
		t.Fatalf("TrendDirection = %s", result.TrendDirection)
	}
	if result.HistoricalSpanMonths != 6 {
		t.Fatalf("HistoricalSpanMonths = %d", result.HistoricalSpanMonths)
	}
	if len(result.Projected) != 12 {
		t.Fatalf("projected months = %d", len(result.Projected))
	}
	// Perfectly linear input: slope 2, next value 22, then +2 per month.
	for i, p := range result.Projected {
		want := 22 + 2*float64(i)
		if math.Abs(p.Value-want) > 1e-6 {
			t.Fatalf("projection %d = %f, want %f", i, p.Value, want)
		}
		if p.Value < 0 {
			t.Fatalf("projection %d is negative", i)
		}
		wantMonth := start.AddDate(0, 6+i, 0)
		if !p.Month.Equal(wantMonth) {
			t.Fatalf("projection %d month = %v, want %v", i, p.Month, wantMonth)
		}
	}
	wantTotal := 0.0
	for i := 0; i < 12; i++ {
		wantTotal += 22 + 2*float64(i)
	}
	if math.Abs(result.TotalProjected-wantTotal) > 1e-6 {
		t.Fatalf("TotalProjected = %f, want %f", result.TotalProjected, wantTotal)
	}
	if math.Abs(result.AverageProjected-wantTotal/12) > 1e-6 {
		t.Fatalf("AverageProjected = %f", result.AverageProjected)
	}
}

func TestProjectRequiresSixMonths(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	series := monthlySeries(start, []float64{10, 12, 14, 16, 18})

	_, err := Project(series, DefaultOptions())
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestProjectClampsNegativeProjections(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	series := monthlySeries(start, []float64{60, 50, 40, 30, 20, 10})

	result, err := Project(series, DefaultOptions())
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if result.TrendDirection != DirectionDecreasing {
		t.Fatalf("TrendDirection = %s", result.TrendDirection)
	}
	for i, p := range result.Projected {
		if p.Value < 0 {
			t.Fatalf("projection %d = %f, want clamp at 0", i, p.Value)
		}
	}
	// Slope -10/month from value 10 crosses zero immediately.
	if last := result.Projected[11].Value; last != 0 {
		t.Fatalf("late projection = %f, want 0", last)
	}
}

func TestProjectStableWithinEpsilon(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	series := monthlySeries(start, []float64{100, 100, 100, 100, 100, 100})

	result, err := Project(series, DefaultOptions())
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if result.TrendDirection != DirectionStable {
		t.Fatalf("TrendDirection = %s", result.TrendDirection)
	}
	for i, p := range result.Projected {
		if math.Abs(p.Value-100) > 1e-6 {
			t.Fatalf("projection %d = %f, want 100", i, p.Value)
		}
	}
}

func TestConfidenceTracksHistoricalSpan(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		months     int
		confidence string
	}{
		{6, ConfidenceLow},
		{11, ConfidenceLow},
		{12, ConfidenceMedium},
		{23, ConfidenceMedium},
		{24, ConfidenceHigh},
		{36, ConfidenceHigh},
	}
	for _, tc := range cases {
		values := make([]float64, tc.months)
		for i := range values {
			values[i] = float64(10 + i)
		}
		result, err := Project(monthlySeries(start, values), DefaultOptions())
		if err != nil {
			t.Fatalf("Project(%d months) error = %v", tc.months, err)
		}
		if result.Confidence != tc.confidence {
			t.Fatalf("confidence for %d months = %s, want %s", tc.months, result.Confidence, tc.confidence)
		}
	}
}

func TestProjectFillsMissingMonthsWithZero(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// Months 2 and 4 have no activity at all.
	series := []Point{
		{Month: start, Value: 10},
		{Month: start.AddDate(0, 2, 0), Value: 10},
		{Month: start.AddDate(0, 4, 0), Value: 10},
		{Month: start.AddDate(0, 5, 0), Value: 10},
	}

	result, err := Project(series, DefaultOptions())
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if result.HistoricalSpanMonths != 6 {
		t.Fatalf("HistoricalSpanMonths = %d, want gap-filled 6", result.HistoricalSpanMonths)
	}
}

func TestProjectRejectsDuplicateMonths(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	series := monthlySeries(start, []float64{10, 12, 14, 16, 18, 20})
	// A second point inside an existing month bucket.
	series = append(series, Point{Month: start.AddDate(0, 2, 14), Value: 5})

	if _, err := Project(series, DefaultOptions()); err == nil {
		t.Fatal("expected error for duplicate month in series")
	}
}

func TestProjectIsDeterministic(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	series := monthlySeries(start, []float64{5, 9, 4, 12, 8, 15, 11})

	first, err := Project(series, DefaultOptions())
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	second, err := Project(series, DefaultOptions())
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if first.Slope != second.Slope || first.TotalProjected != second.TotalProjected {
		t.Fatal("identical input produced different fits")
	}
}
