package seasonality

import (
	"math"
	"sort"
	"time"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/analytics/stats"
)

// CalendarPeriod names a calendar grouping.
type CalendarPeriod string

const (
	CalendarDaily   CalendarPeriod = "daily"   // grouped by hour of day
	CalendarWeekly  CalendarPeriod = "weekly"  // grouped by weekday
	CalendarMonthly CalendarPeriod = "monthly" // grouped by day of month
)

// CalendarPattern summarises how much group means vary across one calendar grouping.
type CalendarPattern struct {
	Period      CalendarPeriod  `json:"period"`
	Detected    bool            `json:"detected"`
	Coefficient float64         `json:"coefficient"`
	Groups      int             `json:"groups"`
	GroupMeans  map[int]float64 `json:"group_means"`
	PeakGroup   int             `json:"peak_group"`
}

// CalendarPatterns groups points by hour of day, weekday and day of month in loc and
// reports the coefficient of variation of the group means. A grouping with fewer
// than two populated groups is omitted.
func CalendarPatterns(data []analytics.TimeSeriesPoint, loc *time.Location) []CalendarPattern {
	if loc == nil {
		loc = time.UTC
	}

	keys := []struct {
		period CalendarPeriod
		key    func(time.Time) int
	}{
		{CalendarDaily, func(t time.Time) int { return t.Hour() }},
		{CalendarWeekly, func(t time.Time) int { return int(t.Weekday()) }},
		{CalendarMonthly, func(t time.Time) int { return t.Day() }},
	}

	var patterns []CalendarPattern
	for _, k := range keys {
		if p, ok := calendarPattern(data, loc, k.period, k.key); ok {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

func calendarPattern(data []analytics.TimeSeriesPoint, loc *time.Location, period CalendarPeriod, key func(time.Time) int) (CalendarPattern, bool) {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, p := range data {
		k := key(p.Time.In(loc))
		sums[k] += p.Value
		counts[k]++
	}
	if len(sums) < 2 {
		return CalendarPattern{}, false
	}

	groups := make([]int, 0, len(sums))
	for k := range sums {
		groups = append(groups, k)
	}
	sort.Ints(groups)

	means := make(map[int]float64, len(groups))
	ordered := make([]float64, len(groups))
	peak := groups[0]
	for i, k := range groups {
		means[k] = sums[k] / float64(counts[k])
		ordered[i] = means[k]
		if means[k] > means[peak] {
			peak = k
		}
	}

	mean := stats.Mean(ordered)
	cv := stats.SafeDiv(stats.PopulationStdDev(ordered), math.Abs(mean), 0)

	return CalendarPattern{
		Period:      period,
		Detected:    cv > calendarCVThreshold,
		Coefficient: cv,
		Groups:      len(groups),
		GroupMeans:  means,
		PeakGroup:   peak,
	}, true
}
