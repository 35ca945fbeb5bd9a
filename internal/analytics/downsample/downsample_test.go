package downsample

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/soltixdb/trendcore/internal/analytics"
)

var start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func series(n int, f func(i int) float64) analytics.TimeSeriesData {
	values := make([]float64, n)
	for i := range values {
		values[i] = f(i)
	}
	return analytics.FromValues(start, time.Minute, values)
}

func assertOrdered(t *testing.T, data analytics.TimeSeriesData) {
	t.Helper()
	for i := 1; i < len(data); i++ {
		if !data[i].Time.After(data[i-1].Time) {
			t.Fatalf("point %d at %v is not after %v", i, data[i].Time, data[i-1].Time)
		}
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		mode  string
		valid bool
	}{
		{"none", true},
		{"auto", true},
		{"lttb", true},
		{"m4", true},
		{"invalid", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			if got := IsValid(tt.mode); got != tt.valid {
				t.Errorf("IsValid(%q) = %v, want %v", tt.mode, got, tt.valid)
			}
		})
	}
}

func TestApply_NoneAndShortSeries(t *testing.T) {
	data := series(50, func(i int) float64 { return float64(i) })

	for _, mode := range []Mode{ModeNone, "", ModeLTTB, ModeAuto} {
		got, err := Apply(data, mode, 100)
		if err != nil {
			t.Fatalf("mode %q: unexpected error: %v", mode, err)
		}
		if len(got) != len(data) {
			t.Errorf("mode %q: expected %d points, got %d", mode, len(data), len(got))
		}
	}
}

func TestApply_UnknownMode(t *testing.T) {
	_, err := Apply(series(10, func(int) float64 { return 1 }), "cubic", 5)
	var ve *analytics.ValidationError
	if !errors.As(err, &ve) || ve.Code != analytics.CodeInvalidParameter {
		t.Fatalf("expected invalid parameter error, got %v", err)
	}
}

func TestApply_LTTB(t *testing.T) {
	data := series(2000, func(i int) float64 { return math.Sin(float64(i) / 50) })

	got, err := Apply(data, ModeLTTB, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 200 {
		t.Fatalf("expected 200 points, got %d", len(got))
	}
	if got[0] != data[0] || got[len(got)-1] != data[len(data)-1] {
		t.Error("expected first and last points to be kept")
	}
	assertOrdered(t, got)
}

func TestApply_LTTBMinimumTarget(t *testing.T) {
	data := series(500, func(i int) float64 { return float64(i % 7) })

	got, err := Apply(data, ModeLTTB, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != minLTTBPoints {
		t.Errorf("expected %d points, got %d", minLTTBPoints, len(got))
	}
}

func TestApply_MinMaxKeepsSpike(t *testing.T) {
	data := series(1000, func(i int) float64 {
		if i == 437 {
			return 1000
		}
		return float64(i % 5)
	})

	got, err := Apply(data, ModeMinMax, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) > 50 {
		t.Errorf("expected at most 50 points, got %d", len(got))
	}
	found := false
	for _, p := range got {
		if p.Value == 1000 {
			found = true
		}
	}
	if !found {
		t.Error("expected the spike to survive minmax downsampling")
	}
	assertOrdered(t, got)
}

func TestApply_M4(t *testing.T) {
	data := series(1000, func(i int) float64 { return math.Sin(float64(i)) })

	got, err := Apply(data, ModeM4, 40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) > 40 {
		t.Errorf("expected at most 40 points, got %d", len(got))
	}
	if got[0] != data[0] || got[len(got)-1] != data[len(data)-1] {
		t.Error("expected first and last points to be kept")
	}
	assertOrdered(t, got)
}

func TestApply_Average(t *testing.T) {
	data := series(100, func(i int) float64 { return float64(i) })

	got, err := Apply(data, ModeAverage, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 buckets, got %d", len(got))
	}
	// bucket 0 holds 0..9
	if got[0].Value != 4.5 {
		t.Errorf("expected first bucket mean 4.5, got %v", got[0].Value)
	}
	if !got[0].Time.Equal(data[5].Time) {
		t.Errorf("expected bucket stamped at its middle point, got %v", got[0].Time)
	}
	assertOrdered(t, got)
}

func TestChoose(t *testing.T) {
	smooth := make([]float64, 500)
	for i := range smooth {
		smooth[i] = float64(i)
	}
	if got := Choose(smooth); got != ModeLTTB {
		t.Errorf("expected lttb for smooth data, got %s", got)
	}

	spiky := make([]float64, 500)
	for i := range spiky {
		if i%2 == 0 {
			spiky[i] = 100
		}
	}
	if got := Choose(spiky); got != ModeMinMax {
		t.Errorf("expected minmax for spiky data, got %s", got)
	}
}

func TestSpikiness(t *testing.T) {
	if got := Spikiness([]float64{1, 2, 3}); got != 0 {
		t.Errorf("expected 0 for short input, got %v", got)
	}
	if got := Spikiness([]float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5}); got != 0 {
		t.Errorf("expected 0 for constant input, got %v", got)
	}
}
