package anomaly

import (
	"math"
	"testing"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flaggedIndices(records []AnomalyRecord) map[int]bool {
	set := make(map[int]bool, len(records))
	for _, r := range records {
		set[r.Index] = true
	}
	return set
}

func TestIQR_WiderMultiplierNeverFlagsMore(t *testing.T) {
	values := []float64{12, 15, 11, 14, 13, 40, 12, 16, 2, 14, 13, 25, 12, 11, 15, -8, 13, 14, 60, 12}
	data := createTestDataPoints(values)

	narrow := DefaultConfig()
	narrow.IQRMultiplier = 1.5
	wide := DefaultConfig()
	wide.IQRMultiplier = 3.0

	narrowResult, err := Detect(MethodIQR, data, narrow)
	require.NoError(t, err)
	wideResult, err := Detect(MethodIQR, data, wide)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(wideResult.Anomalies), len(narrowResult.Anomalies))
	narrowSet := flaggedIndices(narrowResult.Anomalies)
	for _, r := range wideResult.Anomalies {
		assert.True(t, narrowSet[r.Index], "index %d flagged only by the wider bounds", r.Index)
	}
	assert.NotEmpty(t, wideResult.Anomalies)
}

func TestIQR_Severity(t *testing.T) {
	assert.Equal(t, SeverityCritical, severityOf(3.5, 3, 2, 1))
	assert.Equal(t, SeverityHigh, severityOf(2.5, 3, 2, 1))
	assert.Equal(t, SeverityMedium, severityOf(1.5, 3, 2, 1))
	assert.Equal(t, SeverityLow, severityOf(0.5, 3, 2, 1))
}

func TestIsolationDetector_IsolatedPoint(t *testing.T) {
	values := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 100}
	result, err := Detect(MethodIsolation, createTestDataPoints(values), DefaultConfig())
	require.NoError(t, err)

	require.Len(t, result.Anomalies, 1)
	r := result.Anomalies[0]
	assert.Equal(t, 9, r.Index)
	assert.Equal(t, MethodIsolation, r.Method)
	assert.InDelta(t, 1.0, r.Score, 1e-12)
	assert.Equal(t, SeverityCritical, r.Severity)
	assert.Equal(t, DirectionHigh, r.Direction)
}

func TestIsolationScore(t *testing.T) {
	values := []float64{0, 1, 2, 3, 4}
	// distances from the middle point: 2, 1, 1, 2
	assert.InDelta(t, 0.75, IsolationScore(values, 2), 1e-12)
	assert.Equal(t, 0.0, IsolationScore([]float64{5, 5, 5}, 1))
	assert.Equal(t, 0.0, IsolationScore([]float64{5}, 0))
}

func TestIsolationDetector_ThresholdConfigurable(t *testing.T) {
	values := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	data := createTestDataPoints(values)

	config := DefaultConfig()
	config.IsolationThreshold = 0.99
	result, err := Detect(MethodIsolation, data, config)
	require.NoError(t, err)
	assert.Empty(t, result.Anomalies)
}

func TestDetect_UnknownMethod(t *testing.T) {
	_, err := Detect("nope", createTestDataPoints([]float64{1, 2, 3}), DefaultConfig())
	var ve *analytics.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, analytics.CodeInvalidParameter, ve.Code)
}

func TestDetect_RejectsNonFinite(t *testing.T) {
	values := []float64{1, 2, math.Inf(1), 4, 5, 6, 7, 8, 9, 10}
	_, err := Detect(MethodZScore, createTestDataPoints(values), DefaultConfig())
	var ve *analytics.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, analytics.CodeNonFiniteValue, ve.Code)
}

func TestDetect_RejectsUnorderedTimestamps(t *testing.T) {
	points := createTestDataPoints([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	points[6].Time = points[2].Time
	_, err := Detect(MethodIQR, points, DefaultConfig())
	var ve *analytics.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, analytics.CodeUnorderedTime, ve.Code)
}

func TestDetect_RejectsBadSensitivity(t *testing.T) {
	config := DefaultConfig()
	config.Sensitivity = 1.5
	_, err := Detect(MethodZScore, createTestDataPoints([]float64{1, 2, 3}), config)
	require.Error(t, err)
}

func TestDetect_RecordsCarryTime(t *testing.T) {
	values := []float64{10, 11, 10, 12, 11, 10, 90, 11, 10, 12, 11, 10}
	data := createTestDataPoints(values)

	result, err := Detect(MethodZScore, data, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, result.Anomalies, 1)
	assert.Equal(t, analytics.StatusOK, result.Status)
	assert.Equal(t, len(values), result.Checked)
	assert.Equal(t, "2024-01-01T00:06:00Z", result.Anomalies[0].Time)
	assert.Equal(t, 90.0, result.Anomalies[0].Value)
	require.NotNil(t, result.Anomalies[0].Expected)
	assert.Less(t, result.Anomalies[0].Expected.Max, 90.0)
}

func TestDetect_Deterministic(t *testing.T) {
	values := []float64{3, 5, 4, 6, 5, 30, 4, 5, 6, 4, -20, 5}
	data := createTestDataPoints(values)
	for _, method := range ListDetectors() {
		a, err := Detect(method, data, DefaultConfig())
		require.NoError(t, err)
		b, err := Detect(method, data, DefaultConfig())
		require.NoError(t, err)
		assert.Equal(t, a, b, "method %s", method)
	}
}

func streamHistory(n int, last float64) []DataPoint {
	values := make([]float64, n)
	for i := range values {
		values[i] = 10 + float64(i%2)
	}
	values[n-1] = last
	return createTestDataPoints(values)
}

func TestDetectLatest_NeedsFullWindow(t *testing.T) {
	config := DefaultConfig()
	config.AnomalyWindow = 20

	result, err := DetectLatest(MethodZScore, streamHistory(20, 50), config)
	require.NoError(t, err)
	assert.Equal(t, analytics.StatusInsufficientData, result.Status)
	assert.False(t, result.Anomalous)
	assert.Nil(t, result.Record)
}

func TestDetectLatest_FlagsSpike(t *testing.T) {
	config := DefaultConfig()
	config.AnomalyWindow = 20

	for _, method := range []Method{MethodZScore, MethodIQR, MethodIsolation, MethodMovingAverage} {
		result, err := DetectLatest(method, streamHistory(21, 50), config)
		require.NoError(t, err)
		assert.Equal(t, analytics.StatusOK, result.Status, "method %s", method)
		require.True(t, result.Anomalous, "method %s", method)
		assert.Equal(t, 20, result.Record.Index)
		assert.Equal(t, DirectionHigh, result.Record.Direction)
		assert.Equal(t, method, result.Record.Method)
	}
}

func TestDetectLatest_NormalPoint(t *testing.T) {
	config := DefaultConfig()
	config.AnomalyWindow = 20

	result, err := DetectLatest(MethodZScore, streamHistory(30, 10.5), config)
	require.NoError(t, err)
	assert.Equal(t, analytics.StatusOK, result.Status)
	assert.False(t, result.Anomalous)
}

func TestDetectLatest_UsesOnlyTrailingWindow(t *testing.T) {
	// an old spike outside the window must not widen the reference statistics
	history := streamHistory(40, 30)
	history[5].Value = 10000

	config := DefaultConfig()
	config.AnomalyWindow = 20
	result, err := DetectLatest(MethodZScore, history, config)
	require.NoError(t, err)
	assert.True(t, result.Anomalous)
}

func TestDetectLatest_FlatWindowIsNeutralForZScore(t *testing.T) {
	values := make([]float64, 21)
	for i := range values {
		values[i] = 7
	}
	values[20] = 9

	result, err := DetectLatest(MethodZScore, createTestDataPoints(values), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, analytics.StatusOK, result.Status)
	assert.False(t, result.Anomalous)
}
