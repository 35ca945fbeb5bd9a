package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/queue"
	"github.com/soltixdb/trendcore/internal/utils"
)

const (
	formatJSON = "json"
	formatCSV  = "csv"
)

type inputPoint struct {
	Time  json.RawMessage `json:"time"`
	Value interface{}     `json:"value"`
}

type inputSeries struct {
	MetricID string       `json:"metric_id"`
	Points   []inputPoint `json:"points"`
}

// readSeries loads series from path ("-" reads stdin). Points keep their input order
// so unordered series are reported by validation rather than silently fixed.
func readSeries(path, format string, stdin io.Reader) ([]analytics.MetricSeries, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	if format == "" {
		format = formatJSON
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			format = formatCSV
		}
	}

	switch strings.ToLower(format) {
	case formatJSON:
		return parseJSONSeries(data)
	case formatCSV:
		return parseCSVSeries(data)
	default:
		return nil, fmt.Errorf("unsupported input format: %s", format)
	}
}

func parseJSONSeries(data []byte) ([]analytics.MetricSeries, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []inputSeries
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON input: %w", err)
	}

	series := make([]analytics.MetricSeries, 0, len(raw))
	for _, s := range raw {
		points := make(analytics.TimeSeriesData, 0, len(s.Points))
		for i, p := range s.Points {
			ts, err := parseJSONTime(p.Time)
			if err != nil {
				return nil, fmt.Errorf("metric %q point %d: %w", s.MetricID, i, err)
			}
			v, ok := utils.ToFloat64(p.Value)
			if !ok {
				return nil, fmt.Errorf("metric %q point %d: invalid value %v", s.MetricID, i, p.Value)
			}
			points = append(points, analytics.TimeSeriesPoint{Time: ts, Value: v})
		}
		series = append(series, analytics.MetricSeries{MetricID: s.MetricID, Points: points})
	}
	return series, nil
}

func parseJSONTime(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseTime(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return parseTime(n.String())
	}
	return time.Time{}, fmt.Errorf("invalid time %s", string(raw))
}

// parseCSVSeries reads metric_id,time,value rows. A header row is optional; series
// appear in order of first occurrence.
func parseCSVSeries(data []byte) ([]analytics.MetricSeries, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = 3
	r.TrimLeadingSpace = true
	r.Comment = '#'

	index := make(map[string]int)
	var series []analytics.MetricSeries

	for line := 1; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid CSV input: %w", err)
		}
		if line == 1 && strings.EqualFold(record[0], "metric_id") {
			continue
		}

		ts, err := parseTime(record[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		v, ok := utils.ToFloat64(record[2])
		if !ok {
			return nil, fmt.Errorf("line %d: invalid value %q", line, record[2])
		}

		idx, found := index[record[0]]
		if !found {
			idx = len(series)
			index[record[0]] = idx
			series = append(series, analytics.MetricSeries{MetricID: record[0]})
		}
		series[idx].Points = append(series[idx].Points, analytics.TimeSeriesPoint{Time: ts, Value: v})
	}
	return series, nil
}

// parseTime accepts RFC3339 (with or without fractional seconds) or unix seconds
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}

func sortPoints(points []queue.PointMessage) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})
}
