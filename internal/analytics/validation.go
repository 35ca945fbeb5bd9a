package analytics

import (
	"fmt"
	"math"
)

// Validation error codes
const (
	CodeEmptyMetricID     = "EMPTY_METRIC_ID"
	CodeNonFiniteValue    = "NON_FINITE_VALUE"
	CodeValueOutOfRange   = "VALUE_OUT_OF_RANGE"
	CodeUnorderedTime     = "UNORDERED_TIMESTAMPS"
	CodeLengthMismatch    = "LENGTH_MISMATCH"
	CodeInvalidParameter  = "INVALID_PARAMETER"
	CodeDuplicateMetricID = "DUPLICATE_METRIC_ID"
)

// MaxMagnitude bounds the absolute value of an analyzable point. Squared deviations
// of larger values overflow float64 in the fits and error terms.
const MaxMagnitude = 1e100

// ValidationError reports malformed input. It is always surfaced to the caller and
// never retried by the analyzers.
type ValidationError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError
func NewValidationError(code, message string, details map[string]interface{}) *ValidationError {
	return &ValidationError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Validate checks the series invariants: a metric id, finite values and strictly
// increasing timestamps.
func (m MetricSeries) Validate() error {
	if m.MetricID == "" {
		return NewValidationError(CodeEmptyMetricID, "metric id is required", nil)
	}
	if err := ValidatePoints(m.Points); err != nil {
		if ve, ok := err.(*ValidationError); ok {
			ve.Message = fmt.Sprintf("metric %s: %s", m.MetricID, ve.Message)
			ve.Details["metric_id"] = m.MetricID
		}
		return err
	}
	return nil
}

// ValidateValues rejects NaN, infinite values and values beyond MaxMagnitude.
func ValidateValues(values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewValidationError(CodeNonFiniteValue,
				fmt.Sprintf("value at index %d is not finite", i),
				map[string]interface{}{"index": i})
		}
		if math.Abs(v) > MaxMagnitude {
			return NewValidationError(CodeValueOutOfRange,
				fmt.Sprintf("value at index %d exceeds %g in magnitude", i, MaxMagnitude),
				map[string]interface{}{"index": i, "value": v})
		}
	}
	return nil
}

// ValidatePoints rejects invalid values and timestamps that are not strictly
// increasing.
func ValidatePoints(data []TimeSeriesPoint) error {
	if err := ValidateValues(TimeSeriesData(data).Values()); err != nil {
		return err
	}
	for i := 1; i < len(data); i++ {
		if !data[i].Time.After(data[i-1].Time) {
			return NewValidationError(CodeUnorderedTime,
				fmt.Sprintf("timestamps must be strictly increasing (index %d)", i),
				map[string]interface{}{"index": i})
		}
	}
	return nil
}

// ValidateAligned checks that every series validates on its own, that metric ids
// are unique and that all series have the same length.
func ValidateAligned(series []MetricSeries) error {
	seen := make(map[string]bool, len(series))
	for _, s := range series {
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.MetricID] {
			return NewValidationError(CodeDuplicateMetricID,
				fmt.Sprintf("duplicate metric id %s", s.MetricID),
				map[string]interface{}{"metric_id": s.MetricID})
		}
		seen[s.MetricID] = true
	}
	for i := 1; i < len(series); i++ {
		if series[i].Len() != series[0].Len() {
			return NewValidationError(CodeLengthMismatch,
				fmt.Sprintf("series %s has %d points, %s has %d",
					series[0].MetricID, series[0].Len(), series[i].MetricID, series[i].Len()),
				map[string]interface{}{
					"metric_a": series[0].MetricID,
					"metric_b": series[i].MetricID,
				})
		}
	}
	return nil
}
