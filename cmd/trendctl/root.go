package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/soltixdb/trendcore/internal/analytics"
	"github.com/soltixdb/trendcore/internal/analytics/downsample"
	"github.com/soltixdb/trendcore/internal/cache"
	"github.com/soltixdb/trendcore/internal/config"
	"github.com/soltixdb/trendcore/internal/logging"
	"github.com/soltixdb/trendcore/internal/services"
	"github.com/soltixdb/trendcore/internal/utils"
)

// globalOptions are shared by every subcommand
type globalOptions struct {
	ConfigFile  string
	InputFile   string
	InputFormat string
	Now         string
	TimeWindow  string
	Downsample  string
	MaxPoints   int
	LogLevel    string

	cfg    *config.Config
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "trendctl",
		Short: "Time-series analytics: trends, seasonality, anomalies, correlation, forecasts",
		Long: `trendctl reads metric series from JSON or CSV, runs trend, seasonality, anomaly,
correlation, forecast and pattern analyses and prints the results as JSON.
The monitor command runs streaming anomaly detection against a message queue.`,
		Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (default ./config.yaml or /etc/trendcore/config.yaml)")
	flags.StringVarP(&opts.InputFile, "input", "i", "-", "input file, - for stdin")
	flags.StringVar(&opts.InputFormat, "format", "", "input format: json or csv (default from file extension, json for stdin)")
	flags.StringVar(&opts.Now, "now", "", "analysis time, RFC3339 (default: latest point in the input)")
	flags.StringVar(&opts.TimeWindow, "window", "", "lookback window such as 24h or 7d, none keeps every point (default analysis.time_window)")
	flags.StringVar(&opts.Downsample, "downsample", "", "reduce long series first: none, auto, lttb, minmax, avg or m4 (default analysis.downsample)")
	flags.IntVar(&opts.MaxPoints, "max-points", 0, "downsampling target per series (default analysis.max_points)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "override logging.level")

	root.AddCommand(newAnalyzeCmd(opts))
	for _, k := range []kindCommand{
		{services.KindTrend, "Fit trend forms and classify direction"},
		{services.KindSeasonality, "Detect the seasonal period and decompose each series"},
		{services.KindPatterns, "Detect cyclical, seasonal, trend, volatility, regime and clustering patterns"},
		{services.KindCorrelation, "Correlate every pair of aligned series"},
	} {
		root.AddCommand(newKindCmd(opts, k))
	}
	root.AddCommand(newAnomaliesCmd(opts))
	root.AddCommand(newForecastCmd(opts))
	root.AddCommand(newMonitorCmd(opts))

	return root
}

// init loads the configuration and installs the global logger
func (o *globalOptions) init() error {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
		if err := cfg.Logging.Validate(); err != nil {
			return err
		}
	}

	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.SetGlobal(logger)

	o.cfg = cfg
	o.logger = logger
	return nil
}

// loadSeries reads the input and resolves the analysis time
func (o *globalOptions) loadSeries(stdin io.Reader) ([]analytics.MetricSeries, time.Time, error) {
	series, err := readSeries(o.InputFile, o.InputFormat, stdin)
	if err != nil {
		return nil, time.Time{}, err
	}

	if o.Now != "" {
		now, err := time.Parse(time.RFC3339, o.Now)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("invalid --now: %w", err)
		}
		return series, now, nil
	}

	var latest time.Time
	for _, s := range series {
		if n := s.Len(); n > 0 && s.Points[n-1].Time.After(latest) {
			latest = s.Points[n-1].Time
		}
	}
	return series, latest, nil
}

// run executes one analysis request and prints the report
func (o *globalOptions) run(cmd *cobra.Command, req services.AnalysisRequest) error {
	series, now, err := o.loadSeries(cmd.InOrStdin())
	if err != nil {
		return err
	}
	req.Series = series
	req.Now = now
	req.TimeWindow = o.TimeWindow
	req.Downsample = downsample.Mode(o.Downsample)
	req.MaxPoints = o.MaxPoints

	weights, err := cache.NewWeightStore(o.cfg.Cache)
	if err != nil {
		o.logger.Warn("Ensemble weight cache disabled", "error", err)
		weights = nil
	}
	if closer, ok := weights.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), utils.DefaultAnalysisTimeout)
	defer cancel()

	svc := services.NewAnalysisService(o.logger, o.cfg.Analysis, weights)
	report, err := svc.Analyze(ctx, &req)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), report)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
