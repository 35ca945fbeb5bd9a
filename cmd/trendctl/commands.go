package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soltixdb/trendcore/internal/analytics/anomaly"
	"github.com/soltixdb/trendcore/internal/analytics/forecast"
	"github.com/soltixdb/trendcore/internal/queue"
	"github.com/soltixdb/trendcore/internal/services"
	"github.com/soltixdb/trendcore/internal/stream"
	"github.com/soltixdb/trendcore/internal/utils"
)

type kindCommand struct {
	kind  services.Kind
	short string
}

func newKindCmd(opts *globalOptions, k kindCommand) *cobra.Command {
	use := string(k.kind)
	if k.kind == services.KindCorrelation {
		use = "correlate"
	}
	return &cobra.Command{
		Use:   use,
		Short: k.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, services.AnalysisRequest{Kinds: []services.Kind{k.kind}})
		},
	}
}

func newAnalyzeCmd(opts *globalOptions) *cobra.Command {
	var (
		kinds          []string
		horizon        int
		anomalyMethod  string
		forecastMethod string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run every analysis over every series",
		Example: `  # Full report for a CSV export
  trendctl analyze -i metrics.csv

  # Trend and forecast only, 12 steps ahead
  trendctl analyze -i metrics.json --kinds trend,forecast --horizon 12`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := services.AnalysisRequest{
				Horizon:        horizon,
				AnomalyMethod:  anomaly.Method(anomalyMethod),
				ForecastMethod: forecast.Method(forecastMethod),
			}
			for _, k := range kinds {
				req.Kinds = append(req.Kinds, services.Kind(k))
			}
			return opts.run(cmd, req)
		},
	}

	cmd.Flags().StringSliceVar(&kinds, "kinds", nil, "analyses to run (trend, seasonality, anomalies, forecast, patterns, correlation), all when empty")
	cmd.Flags().IntVar(&horizon, "horizon", 0, "forecast steps (default analysis.horizon)")
	cmd.Flags().StringVar(&anomalyMethod, "anomaly-method", "", "zscore, iqr, isolation, moving_avg or auto (default auto)")
	cmd.Flags().StringVar(&forecastMethod, "forecast-method", "", "linear, exponential, seasonal, arima, sma, ensemble or auto (default auto)")
	return cmd
}

func newAnomaliesCmd(opts *globalOptions) *cobra.Command {
	var method string

	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Flag anomalous points in each series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, services.AnalysisRequest{
				Kinds:         []services.Kind{services.KindAnomalies},
				AnomalyMethod: anomaly.Method(method),
			})
		},
	}
	cmd.Flags().StringVarP(&method, "method", "m", string(anomaly.MethodAuto), "zscore, iqr, isolation, moving_avg or auto")
	return cmd
}

func newForecastCmd(opts *globalOptions) *cobra.Command {
	var (
		method  string
		horizon int
	)

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast each series with prediction intervals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, services.AnalysisRequest{
				Kinds:          []services.Kind{services.KindForecast},
				Horizon:        horizon,
				ForecastMethod: forecast.Method(method),
			})
		},
	}
	cmd.Flags().StringVarP(&method, "method", "m", string(forecast.MethodAuto), "linear, exponential, seasonal, arima, sma, ensemble or auto")
	cmd.Flags().IntVar(&horizon, "horizon", 0, "forecast steps (default analysis.horizon)")
	return cmd
}

func newMonitorCmd(opts *globalOptions) *cobra.Command {
	var (
		replay   bool
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run streaming anomaly detection on the configured queue",
		Long: `monitor subscribes to stream.input_subject, evaluates every new point against
the trailing window of its metric and publishes anomaly events on
stream.output_subject. With --replay the input series are published first, which
together with queue.type=memory gives an offline run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.monitor(cmd, replay, duration)
		},
	}
	cmd.Flags().BoolVar(&replay, "replay", false, "publish the input series to the input subject after starting")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long, 0 runs until interrupted")
	return cmd
}

func (o *globalOptions) monitor(cmd *cobra.Command, replay bool, duration time.Duration) error {
	logger := o.logger
	logger.Info("Connecting to Queue", "type", o.cfg.Queue.Type, "url", o.cfg.Queue.URL)
	q, err := queue.NewQueue(o.cfg.Queue)
	if err != nil {
		return err
	}
	defer func() { _ = q.Close() }()

	m, err := stream.NewMonitor(q, q, stream.ConfigFrom(o.cfg))
	if err != nil {
		return err
	}
	if err := m.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	if replay {
		if err := o.replay(ctx, cmd, q); err != nil {
			_ = m.Stop()
			return err
		}
	}

	<-ctx.Done()
	logger.Info("Shutting down monitor...")

	if err := m.Stop(); err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), m.Stats())
}

// replay publishes every input point, interleaving metrics by timestamp
func (o *globalOptions) replay(ctx context.Context, cmd *cobra.Command, pub queue.Publisher) error {
	series, _, err := o.loadSeries(cmd.InOrStdin())
	if err != nil {
		return err
	}

	var points []queue.PointMessage
	for _, s := range series {
		for _, p := range s.Points {
			points = append(points, queue.PointMessage{MetricID: s.MetricID, Time: p.Time, Value: p.Value})
		}
	}
	sortPoints(points)

	batch, err := queue.EncodePoints(o.cfg.Stream.InputSubject, points)
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, utils.ShutdownTimeout)
	defer cancel()
	published, err := pub.PublishBatch(pubCtx, batch)
	if err != nil {
		return err
	}
	o.logger.Info("Replayed input", "points", published, "subject", o.cfg.Stream.InputSubject)
	return nil
}
