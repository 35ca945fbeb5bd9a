package anomaly

import (
	"github.com/soltixdb/trendcore/internal/analytics"
)

// StreamResult is the outcome of evaluating the newest point of a series
type StreamResult struct {
	Status    analytics.Status `json:"status"`
	Reason    string           `json:"reason,omitempty"`
	Method    Method           `json:"method"`
	Window    int              `json:"window"`
	Anomalous bool             `json:"anomalous"`
	Record    *AnomalyRecord   `json:"record,omitempty"`
}

// DetectLatest evaluates only the last point of history against the AnomalyWindow
// points before it. Fewer than AnomalyWindow+1 points yield insufficient_data rather
// than a verdict.
func DetectLatest(method Method, history []DataPoint, config DetectorConfig) (StreamResult, error) {
	detector, err := GetDetector(method)
	if err != nil {
		return StreamResult{}, err
	}
	if err := config.Validate(); err != nil {
		return StreamResult{}, err
	}
	if err := analytics.ValidatePoints(history); err != nil {
		return StreamResult{}, err
	}

	window := config.anomalyWindow()
	result := StreamResult{Method: method, Window: window}
	if len(history) < window+1 {
		result.Status = analytics.StatusInsufficientData
		result.Reason = analytics.ReasonInsufficientData
		return result, nil
	}

	last := len(history) - 1
	reference := make([]float64, window)
	for i, dp := range history[last-window : last] {
		reference[i] = dp.Value
	}

	result.Status = analytics.StatusOK
	r, ok := detector.Evaluate(reference, history[last].Value, config)
	if ok {
		r = newRecord(history, last, r)
		result.Anomalous = true
		result.Record = &r
	}
	return result, nil
}
