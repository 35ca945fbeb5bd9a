package seasonality

import (
	"math"
	"testing"
	"time"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC) // a Monday

func alternating(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		if i%2 == 0 {
			values[i] = 1
		} else {
			values[i] = 100
		}
	}
	return values
}

func TestDetectPeriod_Alternating(t *testing.T) {
	period, ok := DetectPeriod(alternating(24), DefaultMaxLag)
	assert.True(t, ok)
	assert.Equal(t, 2, period)
}

func TestDetectPeriod_SineWave(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 50 + 10*math.Sin(2*math.Pi*float64(i)/6)
	}
	period, ok := DetectPeriod(values, DefaultMaxLag)
	assert.True(t, ok)
	assert.Equal(t, 6, period)
}

func TestDetectPeriod_FallsBackToDefault(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = float64(i)
	}
	period, ok := DetectPeriod(values, DefaultMaxLag)
	assert.False(t, ok)
	assert.Equal(t, DefaultPeriod, period)

	period, ok = DetectPeriod([]float64{1, 2, 3}, DefaultMaxLag)
	assert.False(t, ok)
	assert.Equal(t, DefaultPeriod, period)
}

func TestDecompose_Reconstructs(t *testing.T) {
	values := make([]float64, 49)
	for i := range values {
		values[i] = 3*float64(i) + 20*math.Sin(2*math.Pi*float64(i)/7) + float64((i*37)%11)
	}

	d, ok := Decompose(values, 7)
	require.True(t, ok)
	assert.Len(t, d.Seasonal, 7)
	assert.Len(t, d.Trend, len(values))
	assert.Len(t, d.Residual, len(values))

	for i, v := range values {
		assert.InDelta(t, v, d.Trend[i]+d.Seasonal[i%7]+d.Residual[i], 1e-9, "index %d", i)
		assert.InDelta(t, v, d.Reconstruct(i), 1e-9)
	}
}

func TestDecompose_NeedsTwoPeriods(t *testing.T) {
	_, ok := Decompose([]float64{1, 2, 3, 4, 5}, 3)
	assert.False(t, ok)

	_, ok = Decompose([]float64{1, 2, 3, 4, 5, 6}, 3)
	assert.True(t, ok)
}

func TestAnalyze_Alternating(t *testing.T) {
	data := analytics.FromValues(testStart, time.Hour, alternating(24))

	result, err := Analyze(data, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, analytics.StatusOK, result.Status)
	assert.Equal(t, 2, result.Period)
	assert.True(t, result.PeriodDetected)
	assert.Greater(t, result.Strength, 0.5)
	require.NotNil(t, result.Decomposition)

	// 4, 6, 8... are all multiples of period 2 with strong positive autocorrelation
	require.NotEmpty(t, result.Harmonics)
	assert.Equal(t, 4, result.Harmonics[0].Period)
	assert.Equal(t, 2, result.Harmonics[0].Multiple)
	assert.Greater(t, result.Harmonics[0].RelativeStrength, 0.5)
}

func TestAnalyze_ConstantSeriesHasNoStrength(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 5
	}
	result, err := Analyze(analytics.FromValues(testStart, time.Hour, values), Config{Period: 4})
	require.NoError(t, err)
	assert.Equal(t, analytics.StatusOK, result.Status)
	assert.Zero(t, result.Strength)
}

func TestAnalyze_InsufficientData(t *testing.T) {
	result, err := Analyze(analytics.FromValues(testStart, time.Hour, []float64{1, 2, 3, 4}), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, analytics.StatusInsufficientData, result.Status)
	assert.Equal(t, analytics.ReasonInsufficientData, result.Reason)
	assert.Nil(t, result.Decomposition)
}

func TestAnalyze_RejectsInvalidPeriod(t *testing.T) {
	_, err := Analyze(analytics.FromValues(testStart, time.Hour, alternating(10)), Config{Period: 1})
	var ve *analytics.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, analytics.CodeInvalidParameter, ve.Code)
}

func TestCalendarPatterns_Weekly(t *testing.T) {
	// four weeks of daily points, weekends much higher than weekdays
	values := make([]float64, 28)
	for i := range values {
		day := testStart.AddDate(0, 0, i).Weekday()
		if day == time.Saturday || day == time.Sunday {
			values[i] = 200
		} else {
			values[i] = 100
		}
	}
	data := analytics.FromValues(testStart, 24*time.Hour, values)

	patterns := CalendarPatterns(data, time.UTC)

	var weekly *CalendarPattern
	for i := range patterns {
		switch patterns[i].Period {
		case CalendarWeekly:
			weekly = &patterns[i]
		case CalendarDaily:
			t.Fatalf("daily grouping needs more than one hour of day")
		}
	}
	require.NotNil(t, weekly)
	assert.True(t, weekly.Detected)
	assert.Equal(t, 7, weekly.Groups)
	assert.Greater(t, weekly.Coefficient, 0.1)
	assert.Equal(t, 200.0, weekly.GroupMeans[int(time.Sunday)])
}

func TestCalendarPatterns_LocationShiftsHours(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	data := analytics.FromValues(testStart, time.Hour, alternating(48))

	utc := CalendarPatterns(data, nil)
	shifted := CalendarPatterns(data, loc)
	require.NotEmpty(t, utc)
	require.NotEmpty(t, shifted)
	assert.Equal(t, CalendarDaily, utc[0].Period)
	assert.Equal(t, 24, utc[0].Groups)

	// odd UTC hours hold 100; with a +9 offset they land on even local hours
	assert.Equal(t, 100.0, utc[0].GroupMeans[1])
	assert.Equal(t, 100.0, shifted[0].GroupMeans[10])
}

func TestAnalyze_Deterministic(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = float64((i*7)%5) + 0.5*float64(i)
	}
	data := analytics.FromValues(testStart, time.Hour, values)

	a, err := Analyze(data, DefaultConfig())
	require.NoError(t, err)
	b, err := Analyze(data, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
