package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Logging.Level == "debug" && c.Logging.Format == "console"
}

var timeWindowPattern = regexp.MustCompile(`^(\d+)(m|h|d|w)$`)

// ParseTimeWindow converts a lookback label such as "30m", "24h", "7d" or "2w" into a
// duration.
func ParseTimeWindow(label string) (time.Duration, error) {
	matches := timeWindowPattern.FindStringSubmatch(label)
	if len(matches) != 3 {
		return 0, fmt.Errorf("invalid time window %q (expected <n>m, <n>h, <n>d or <n>w)", label)
	}

	n, err := strconv.Atoi(matches[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid time window %q", label)
	}

	unit := map[string]time.Duration{
		"m": time.Minute,
		"h": time.Hour,
		"d": 24 * time.Hour,
		"w": 7 * 24 * time.Hour,
	}[matches[2]]
	return time.Duration(n) * unit, nil
}

// Lookback resolves the time window against now and returns the [start, end) range
// the caller should load. now is always supplied by the caller.
func (c *AnalysisConfig) Lookback(now time.Time) (start, end time.Time, err error) {
	window, err := ParseTimeWindow(c.TimeWindow)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return now.Add(-window), now, nil
}

// Location returns the configured timezone for calendar patterns
// Returns UTC if not configured or invalid
// Supports formats:
//   - IANA timezone names: "Asia/Tokyo", "America/New_York", "UTC"
//   - Offset format: "+09:00", "-05:00", "+00:00"
func (c *AnalysisConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}

	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}

	if loc, err := parseOffsetTimezone(c.Timezone); err == nil {
		return loc
	}

	return time.UTC
}

var offsetPattern = regexp.MustCompile(`^([+-])(\d{2}):(\d{2})$`)

// parseOffsetTimezone parses timezone offset format like "+09:00", "-05:00"
func parseOffsetTimezone(offset string) (*time.Location, error) {
	matches := offsetPattern.FindStringSubmatch(offset)
	if len(matches) != 4 {
		return nil, fmt.Errorf("invalid offset format: %s", offset)
	}

	sign := 1
	if matches[1] == "-" {
		sign = -1
	}

	hours, _ := strconv.Atoi(matches[2])
	minutes, _ := strconv.Atoi(matches[3])

	offsetSeconds := sign * (hours*3600 + minutes*60)
	return time.FixedZone(offset, offsetSeconds), nil
}
