package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/analytics/anomaly"
	"github.com/soltixdb/trendcore/internal/analytics/correlation"
	"github.com/soltixdb/trendcore/internal/analytics/downsample"
	"github.com/soltixdb/trendcore/internal/analytics/forecast"
	"github.com/soltixdb/trendcore/internal/analytics/pattern"
	"github.com/soltixdb/trendcore/internal/analytics/seasonality"
	"github.com/soltixdb/trendcore/internal/analytics/trend"
	"github.com/soltixdb/trendcore/internal/config"
	"github.com/soltixdb/trendcore/internal/logging"
)

// Kind names one analysis of a request
type Kind string

const (
	KindTrend       Kind = "trend"
	KindSeasonality Kind = "seasonality"
	KindAnomalies   Kind = "anomalies"
	KindForecast    Kind = "forecast"
	KindPatterns    Kind = "patterns"
	KindCorrelation Kind = "correlation"
)

// AllKinds lists every analysis in report order
var AllKinds = []Kind{KindTrend, KindSeasonality, KindAnomalies, KindForecast, KindPatterns, KindCorrelation}

// MetricStatus is the outcome for one metric of a request
type MetricStatus string

const (
	MetricOK               MetricStatus = "ok"
	MetricInsufficientData MetricStatus = "insufficient_data"
	MetricInvalid          MetricStatus = "invalid"
)

// AnalysisRequest represents a batch analysis request
type AnalysisRequest struct {
	Series []analytics.MetricSeries

	// Now anchors the time window and stamps the report. Required.
	Now time.Time

	// TimeWindow overrides analysis.time_window; points outside [Now-window, Now] are
	// ignored. "none" keeps every point.
	TimeWindow string

	// Horizon overrides analysis.horizon when > 0
	Horizon int

	// Kinds selects the analyses, all when empty
	Kinds []Kind

	// AnomalyMethod and ForecastMethod default to auto selection
	AnomalyMethod  anomaly.Method
	ForecastMethod forecast.Method

	// Downsample and MaxPoints override analysis.downsample and analysis.max_points
	Downsample downsample.Mode
	MaxPoints  int
}

// MetricReport holds every analysis of one metric. Metrics fail independently.
type MetricReport struct {
	MetricID    string                   `json:"metric_id"`
	Status      MetricStatus             `json:"status"`
	Error       *ServiceError            `json:"error,omitempty"`
	Points      int                      `json:"points"`
	Trend       *trend.Result            `json:"trend,omitempty"`
	Seasonality *seasonality.Analysis    `json:"seasonality,omitempty"`
	Anomalies   *anomaly.DetectionResult `json:"anomalies,omitempty"`
	Forecast    *forecast.ForecastResult `json:"forecast,omitempty"`
	Patterns    *pattern.Report          `json:"patterns,omitempty"`
}

// AnalysisReport represents the complete analysis response
type AnalysisReport struct {
	ID               string                `json:"id"`
	GeneratedAt      time.Time             `json:"generated_at"`
	WindowStart      *time.Time            `json:"window_start,omitempty"`
	Metrics          []MetricReport        `json:"metrics"`
	Correlations     *correlation.Analysis `json:"correlations,omitempty"`
	CorrelationError *ServiceError         `json:"correlation_error,omitempty"`
	Clusters         []correlation.Cluster `json:"clusters"`
}

// AnalysisService runs batch analyses. It is safe for concurrent use.
type AnalysisService struct {
	logger  *logging.Logger
	config  config.AnalysisConfig
	weights forecast.WeightStore
}

// NewAnalysisService creates a new AnalysisService. weights may be nil, which
// disables ensemble weight memoisation.
func NewAnalysisService(logger *logging.Logger, cfg config.AnalysisConfig, weights forecast.WeightStore) *AnalysisService {
	if logger == nil {
		logger = logging.Global()
	}
	return &AnalysisService{
		logger:  logger,
		config:  cfg,
		weights: weights,
	}
}

// TrendConfig maps the analysis configuration onto trend detection
func (s *AnalysisService) TrendConfig() trend.Config {
	cfg := trend.DefaultConfig()
	if s.config.ConfidenceThreshold > 0 {
		cfg.ConfidenceThreshold = s.config.ConfidenceThreshold
	}
	return cfg
}

// SeasonalityConfig maps the analysis configuration onto seasonality analysis
func (s *AnalysisService) SeasonalityConfig() seasonality.Config {
	cfg := seasonality.DefaultConfig()
	cfg.Period = s.config.SeasonalPeriod
	if s.config.MaxLag > 0 {
		cfg.MaxLag = s.config.MaxLag
	}
	cfg.Location = s.config.Location()
	return cfg
}

// DetectorConfig maps the analysis configuration onto anomaly detection
func (s *AnalysisService) DetectorConfig() anomaly.DetectorConfig {
	cfg := anomaly.DefaultConfig()
	if s.config.Sensitivity > 0 {
		cfg.Sensitivity = s.config.Sensitivity
	}
	if s.config.WindowSize > 0 {
		cfg.WindowSize = s.config.WindowSize
	}
	if s.config.AnomalyWindow > 0 {
		cfg.AnomalyWindow = s.config.AnomalyWindow
	}
	if s.config.MinDataPoints > 0 {
		cfg.MinDataPoints = s.config.MinDataPoints
	}
	return cfg
}

// ForecastConfig maps the analysis configuration onto forecasting for one metric
func (s *AnalysisService) ForecastConfig(metricID string, horizon int) forecast.ForecastConfig {
	cfg := forecast.DefaultForecastConfig()
	if horizon > 0 {
		cfg.Horizon = horizon
	} else if s.config.Horizon > 0 {
		cfg.Horizon = s.config.Horizon
	}
	cfg.SeasonalPeriod = s.config.SeasonalPeriod
	cfg.ValidationSplit = s.config.ValidationSplit
	if s.config.MaxLag > 0 {
		cfg.MaxLag = s.config.MaxLag
	}
	if s.config.MinDataPoints > 0 {
		cfg.MinDataPoints = s.config.MinDataPoints
	}
	cfg.MetricID = metricID
	cfg.Weights = s.weights
	return cfg
}

// PatternConfig maps the analysis configuration onto pattern detection
func (s *AnalysisService) PatternConfig() pattern.Config {
	cfg := pattern.DefaultConfig()
	if s.config.MinDataPoints > 0 {
		cfg.MinDataPoints = s.config.MinDataPoints
	}
	if s.config.MaxLag > 0 {
		cfg.MaxLag = s.config.MaxLag
	}
	cfg.Period = s.config.SeasonalPeriod
	if s.config.ClusterK > 0 {
		cfg.ClusterK = s.config.ClusterK
	}
	cfg.Seed = s.config.Seed
	cfg.Trend = s.TrendConfig()
	return cfg
}

// CorrelationConfig maps the analysis configuration onto correlation analysis
func (s *AnalysisService) CorrelationConfig() correlation.Config {
	cfg := correlation.DefaultConfig()
	cfg.MaxLag = s.config.MaxLag
	cfg.Window = s.config.WindowSize
	if s.config.Workers > 0 {
		cfg.Workers = s.config.Workers
	}
	return cfg
}

func (s *AnalysisService) workers() int {
	if s.config.Workers > 0 {
		return s.config.Workers
	}
	return 1
}

// validate checks the request as a whole. Problems of single series are reported
// per metric instead.
func (s *AnalysisService) validate(req *AnalysisRequest) (map[Kind]bool, *time.Time, error) {
	if req.Now.IsZero() {
		return nil, nil, NewServiceError(CodeInvalidRequest, "now is required")
	}
	if len(req.Series) == 0 {
		return nil, nil, NewServiceError(CodeInvalidRequest, "at least one series is required")
	}
	if req.Horizon < 0 {
		return nil, nil, NewServiceErrorWithDetails(CodeInvalidRequest, "horizon must not be negative",
			map[string]interface{}{"horizon": req.Horizon})
	}

	seen := make(map[string]bool, len(req.Series))
	for _, series := range req.Series {
		if series.MetricID != "" && seen[series.MetricID] {
			return nil, nil, NewServiceErrorWithDetails(CodeInvalidRequest, "duplicate metric id",
				map[string]interface{}{"metric_id": series.MetricID})
		}
		seen[series.MetricID] = true
	}

	kinds := req.Kinds
	if len(kinds) == 0 {
		kinds = AllKinds
	}
	selected := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		known := false
		for _, candidate := range AllKinds {
			if k == candidate {
				known = true
				break
			}
		}
		if !known {
			return nil, nil, NewServiceErrorWithDetails(CodeInvalidRequest, fmt.Sprintf("unknown analysis: %s", k),
				map[string]interface{}{"available": AllKinds})
		}
		selected[k] = true
	}

	if req.AnomalyMethod != "" {
		if _, err := anomaly.GetDetector(req.AnomalyMethod); err != nil {
			return nil, nil, wrapError(CodeInvalidRequest, err)
		}
	}
	if req.ForecastMethod != "" {
		if _, err := forecast.GetForecaster(req.ForecastMethod); err != nil {
			return nil, nil, wrapError(CodeInvalidRequest, err)
		}
	}
	if req.Downsample != "" && !downsample.IsValid(string(req.Downsample)) {
		return nil, nil, NewServiceErrorWithDetails(CodeInvalidRequest, fmt.Sprintf("unknown downsampling mode: %s", req.Downsample),
			map[string]interface{}{"available": downsample.ValidModes()})
	}
	if req.MaxPoints < 0 {
		return nil, nil, NewServiceErrorWithDetails(CodeInvalidRequest, "max_points must not be negative",
			map[string]interface{}{"max_points": req.MaxPoints})
	}

	window := req.TimeWindow
	if window == "" {
		window = s.config.TimeWindow
	}
	if window == "" || window == "none" {
		return selected, nil, nil
	}
	cfg := s.config
	cfg.TimeWindow = window
	start, _, err := cfg.Lookback(req.Now)
	if err != nil {
		return nil, nil, NewServiceError(CodeInvalidRequest, err.Error())
	}
	return selected, &start, nil
}

// Analyze runs the selected analyses over every series. Metrics are analysed
// concurrently and independently: an invalid or short series yields its own status
// while the others complete. Only request-level problems return an error.
func (s *AnalysisService) Analyze(ctx context.Context, req *AnalysisRequest) (*AnalysisReport, error) {
	selected, windowStart, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	ctx, done := logging.StartOperation(logging.WithLogger(ctx, s.logger), "analyze")
	report := &AnalysisReport{
		ID:          logging.AnalysisID(ctx),
		GeneratedAt: req.Now,
		WindowStart: windowStart,
		Metrics:     make([]MetricReport, len(req.Series)),
		Clusters:    []correlation.Cluster{},
	}

	windowed := make([]analytics.MetricSeries, len(req.Series))
	for i, series := range req.Series {
		windowed[i] = analytics.MetricSeries{
			MetricID: series.MetricID,
			Points:   s.reduce(ctx, series.MetricID, clip(series.Points, windowStart, req.Now), req),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for i := range windowed {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report.Metrics[i] = s.analyzeMetric(gctx, windowed[i], selected, req)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		se := NewServiceError(CodeRequestCanceled, err.Error())
		done(se)
		return nil, se
	}

	if selected[KindCorrelation] {
		s.correlate(ctx, report, windowed)
	}

	counts := map[MetricStatus]int{}
	for _, m := range report.Metrics {
		counts[m.Status]++
	}
	done(nil,
		"report_id", report.ID,
		"metrics", len(report.Metrics),
		"ok", counts[MetricOK],
		"insufficient", counts[MetricInsufficientData],
		"invalid", counts[MetricInvalid])
	return report, nil
}

// reduce downsamples a valid series above the point budget. Invalid series are left
// for per-metric validation to report.
func (s *AnalysisService) reduce(ctx context.Context, metricID string, points analytics.TimeSeriesData, req *AnalysisRequest) analytics.TimeSeriesData {
	mode := req.Downsample
	if mode == "" {
		mode = downsample.Mode(s.config.Downsample)
	}
	if mode == "" || mode == downsample.ModeNone {
		return points
	}
	maxPoints := req.MaxPoints
	if maxPoints == 0 {
		maxPoints = s.config.MaxPoints
	}
	if analytics.ValidatePoints(points) != nil {
		return points
	}

	reduced, err := downsample.Apply(points, mode, maxPoints)
	if err != nil {
		return points
	}
	if len(reduced) < len(points) {
		logging.FromContext(ctx).Debug("Downsampled series",
			"metric_id", metricID, "mode", mode, "from", len(points), "to", len(reduced))
	}
	return reduced
}

// clip keeps the points inside [start, end]; a nil start keeps everything
func clip(points analytics.TimeSeriesData, start *time.Time, end time.Time) analytics.TimeSeriesData {
	if start == nil {
		return points
	}
	kept := make(analytics.TimeSeriesData, 0, len(points))
	for _, p := range points {
		if !p.Time.Before(*start) && !p.Time.After(end) {
			kept = append(kept, p)
		}
	}
	return kept
}

func (s *AnalysisService) analyzeMetric(ctx context.Context, series analytics.MetricSeries, selected map[Kind]bool, req *AnalysisRequest) MetricReport {
	report := MetricReport{MetricID: series.MetricID, Points: series.Len()}
	ctx = logging.WithMetricID(ctx, series.MetricID)

	if err := series.Validate(); err != nil {
		report.Status = MetricInvalid
		report.Error = wrapError(CodeInvalidSeries, err)
		logging.WarnCtx(ctx, "Skipping invalid series", "error", err)
		return report
	}

	minPoints := s.config.MinDataPoints
	if minPoints < 2 {
		minPoints = 2
	}
	if series.Len() < minPoints {
		report.Status = MetricInsufficientData
	} else {
		report.Status = MetricOK
	}

	data := []analytics.TimeSeriesPoint(series.Points)
	values := series.Values()

	fail := func(kind Kind, err error) {
		report.Status = MetricInvalid
		report.Error = wrapError(CodeAnalysisFailed, fmt.Errorf("%s: %w", kind, err))
		logging.WarnCtx(ctx, "Analysis failed", "analysis", string(kind), "error", err)
	}

	if selected[KindTrend] {
		r := trend.DetectValues(values, s.TrendConfig())
		report.Trend = &r
	}

	if selected[KindSeasonality] {
		a, err := seasonality.Analyze(data, s.SeasonalityConfig())
		if err != nil {
			fail(KindSeasonality, err)
			return report
		}
		report.Seasonality = &a
	}

	if selected[KindAnomalies] {
		method := req.AnomalyMethod
		if method == "" {
			method = anomaly.MethodAuto
		}
		r, err := anomaly.Detect(method, data, s.DetectorConfig())
		if err != nil {
			fail(KindAnomalies, err)
			return report
		}
		report.Anomalies = &r
	}

	if selected[KindForecast] {
		method := req.ForecastMethod
		if method == "" {
			method = forecast.MethodAuto
		}
		r, err := forecast.Forecast(method, data, s.ForecastConfig(series.MetricID, req.Horizon))
		switch {
		case errors.Is(err, forecast.ErrNotApplicable):
			logging.DebugCtx(ctx, "Forecast method not applicable", "method", string(method))
		case err != nil:
			fail(KindForecast, err)
			return report
		default:
			report.Forecast = r
		}
	}

	if selected[KindPatterns] {
		r := pattern.DetectValues(values, s.PatternConfig())
		report.Patterns = &r
	}

	return report
}

// correlate runs the correlation engine over the series that validated and share the
// most common length
func (s *AnalysisService) correlate(ctx context.Context, report *AnalysisReport, series []analytics.MetricSeries) {
	lengths := map[int]int{}
	valid := make([]analytics.MetricSeries, 0, len(series))
	for i, m := range report.Metrics {
		if m.Status == MetricInvalid {
			continue
		}
		valid = append(valid, series[i])
		lengths[series[i].Len()]++
	}

	common, best := 0, 0
	for n, count := range lengths {
		if count > best || (count == best && n > common) {
			common, best = n, count
		}
	}

	aligned := make([]analytics.MetricSeries, 0, len(valid))
	var skipped []string
	for _, m := range valid {
		if m.Len() == common {
			aligned = append(aligned, m)
		} else {
			skipped = append(skipped, m.MetricID)
		}
	}
	if len(skipped) > 0 {
		logging.InfoCtx(ctx, "Correlation skips misaligned series", "skipped", fmt.Sprint(skipped))
	}

	analysis, err := correlation.NewEngine(s.CorrelationConfig()).Analyze(aligned)
	if err != nil {
		report.CorrelationError = wrapError(CodeAnalysisFailed, err)
		return
	}
	report.Correlations = &analysis
	report.Clusters = analysis.Clusters
}
