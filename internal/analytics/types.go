// Package analytics provides common types and utilities for time-series analytics
// including trend fitting, seasonality, anomaly detection, correlation and forecasting.
//
// Everything under this package tree is pure computation: no I/O, no global mutable
// state and no wall-clock reads. Callers supply series and configuration, the
// analyzers return immutable result values.
package analytics

import (
	"math"
	"time"
)

// TimeSeriesPoint represents a single time-series data point with time and value.
// This is the common type used across all analytics packages (forecast, anomaly, etc.)
type TimeSeriesPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// TimeSeriesData represents a collection of time-series data points
type TimeSeriesData []TimeSeriesPoint

// Values extracts just the values from the time series
func (ts TimeSeriesData) Values() []float64 {
	values := make([]float64, len(ts))
	for i, p := range ts {
		values[i] = p.Value
	}
	return values
}

// Times extracts just the times from the time series
func (ts TimeSeriesData) Times() []time.Time {
	times := make([]time.Time, len(ts))
	for i, p := range ts {
		times[i] = p.Time
	}
	return times
}

// Len returns the number of data points
func (ts TimeSeriesData) Len() int {
	return len(ts)
}

// Mean calculates the mean of all values
func (ts TimeSeriesData) Mean() float64 {
	if len(ts) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range ts {
		sum += p.Value
	}
	return sum / float64(len(ts))
}

// StdDev calculates the sample standard deviation of all values
func (ts TimeSeriesData) StdDev() float64 {
	if len(ts) < 2 {
		return 0
	}
	mean := ts.Mean()
	sumSq := 0.0
	for _, p := range ts {
		diff := p.Value - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(ts)-1))
}

// FromValues builds a series from raw values spaced interval apart starting at start.
func FromValues(start time.Time, interval time.Duration, values []float64) TimeSeriesData {
	data := make(TimeSeriesData, len(values))
	for i, v := range values {
		data[i] = TimeSeriesPoint{
			Time:  start.Add(interval * time.Duration(i)),
			Value: v,
		}
	}
	return data
}

// MetricSeries is a named, ordered series of points supplied by a caller.
type MetricSeries struct {
	MetricID string         `json:"metric_id"`
	Points   TimeSeriesData `json:"points"`
}

// Len returns the number of points in the series
func (m MetricSeries) Len() int {
	return len(m.Points)
}

// Values extracts the values of the series
func (m MetricSeries) Values() []float64 {
	return m.Points.Values()
}

// Status tags a result as computed or skipped for lack of history.
type Status string

const (
	StatusOK               Status = "ok"
	StatusInsufficientData Status = "insufficient_data"
)

// ReasonInsufficientData is the Reason attached to results with StatusInsufficientData.
const ReasonInsufficientData = "insufficient_data"
