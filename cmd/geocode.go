package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/resort-geocoder/internal/catalog"
	"github.com/sells-group/resort-geocoder/internal/config"
	"github.com/sells-group/resort-geocoder/internal/enrich"
	"github.com/sells-group/resort-geocoder/internal/geocache"
	"github.com/sells-group/resort-geocoder/internal/model"
	"github.com/sells-group/resort-geocoder/internal/monitoring"
	"github.com/sells-group/resort-geocoder/internal/override"
	"github.com/sells-group/resort-geocoder/internal/resilience"
	"github.com/sells-group/resort-geocoder/internal/store"
	"github.com/sells-group/resort-geocoder/pkg/geocode"
)

// progressLogEvery is the log cadence when stderr is not a terminal.
const progressLogEvery = 25

// summaryFailedLimit caps the unresolved records listed in the summary.
const summaryFailedLimit = 20

var geocodeFlags struct {
	provider   string
	input      string
	output     string
	cache      string
	overrides  string
	failed     string
	geojson    string
	timeout    time.Duration
	delay      time.Duration
	batchSize  int
	noProgress bool
}

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Attach coordinates to every record in the input catalog",
	Long: "Resolves each record through overrides, the location cache and the configured geocoding " +
		"service, then writes the enriched catalog, a failure report and an optional GeoJSON export.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyGeocodeFlags(cmd, cfg)
		interactive := !geocodeFlags.noProgress && isatty.IsTerminal(os.Stderr.Fd())
		_, err := runGeocode(ctx, cfg, os.Stdout, interactive)
		return err
	},
}

func init() {
	f := geocodeCmd.Flags()
	f.StringVar(&geocodeFlags.provider, "provider", "", "geocoding provider (nominatim, google, mapbox)")
	f.StringVar(&geocodeFlags.input, "input", "", "input catalog JSON")
	f.StringVar(&geocodeFlags.output, "output", "", "output catalog JSON")
	f.StringVar(&geocodeFlags.cache, "cache", "", "location cache file")
	f.StringVar(&geocodeFlags.overrides, "overrides", "", "override file (JSON or YAML)")
	f.StringVar(&geocodeFlags.failed, "failed", "", "failure report path (default: beside output)")
	f.StringVar(&geocodeFlags.geojson, "geojson", "", "also write resolved records as GeoJSON")
	f.DurationVar(&geocodeFlags.timeout, "timeout", 0, "per-request timeout")
	f.DurationVar(&geocodeFlags.delay, "delay", 0, "minimum delay between provider calls")
	f.IntVar(&geocodeFlags.batchSize, "batch-size", 0, "new cache entries between cache flushes")
	f.BoolVar(&geocodeFlags.noProgress, "no-progress", false, "disable the progress bar")
	rootCmd.AddCommand(geocodeCmd)
}

// applyGeocodeFlags overlays explicitly set flags on the loaded config.
func applyGeocodeFlags(cmd *cobra.Command, c *config.Config) {
	changed := cmd.Flags().Changed
	if changed("provider") {
		c.Geocode.Provider = geocodeFlags.provider
	}
	if changed("input") {
		c.Paths.Input = geocodeFlags.input
	}
	if changed("output") {
		c.Paths.Output = geocodeFlags.output
	}
	if changed("cache") {
		c.Paths.Cache = geocodeFlags.cache
	}
	if changed("overrides") {
		c.Paths.Overrides = geocodeFlags.overrides
	}
	if changed("failed") {
		c.Paths.Failed = geocodeFlags.failed
	}
	if changed("geojson") {
		c.Paths.GeoJSON = geocodeFlags.geojson
	}
	if changed("timeout") {
		c.Geocode.Timeout = geocodeFlags.timeout
	}
	if changed("delay") {
		c.Geocode.Delay = geocodeFlags.delay
	}
	if changed("batch-size") {
		c.Geocode.BatchSize = geocodeFlags.batchSize
	}
}

// runGeocode performs one enrichment run and records it. Run-history,
// metrics and alert failures are logged and never change the result.
func runGeocode(ctx context.Context, c *config.Config, out io.Writer, interactive bool) (*model.RunStats, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("command", "geocode"), zap.String("provider", c.Geocode.Provider))

	resorts, err := catalog.LoadResorts(c.Paths.Input)
	if err != nil {
		return nil, eris.Wrapf(config.ErrInvalid, "geocode: %v", err)
	}
	overrides, err := override.Load(c.Paths.Overrides)
	if err != nil {
		return nil, eris.Wrapf(config.ErrInvalid, "geocode: %v", err)
	}
	cache, err := geocache.Open(c.Paths.Cache)
	if err != nil {
		return nil, err
	}
	provider, err := newProvider(c.Geocode)
	if err != nil {
		return nil, eris.Wrapf(config.ErrInvalid, "geocode: %v", err)
	}

	log.Info("starting run",
		zap.Int("records", len(resorts)),
		zap.Int("overrides", overrides.Len()),
		zap.Int("cached_locations", cache.Len()),
	)

	st, err := store.New(ctx, c.Store.Driver, c.Store.DatabaseURL)
	if err != nil {
		log.Warn("run history unavailable", zap.Error(err))
		st = store.Nop{}
	}
	defer st.Close() //nolint:errcheck

	newRun := store.NewRun{Provider: provider.Name(), InputPath: c.Paths.Input, OutputPath: c.Paths.Output}
	run, err := st.CreateRun(ctx, newRun)
	if err != nil {
		log.Warn("record run start", zap.Error(err))
		run, _ = store.Nop{}.CreateRun(ctx, newRun)
	}
	if run.ID != "" {
		log = log.With(zap.String("run_id", run.ID))
	}

	retry := resilience.DefaultRetryConfig()
	retry.InitialBackoff = c.Geocode.RetryBackoff

	metrics := monitoring.NewMetrics()
	progress, finishProgress := newProgress(len(resorts), interactive, log)

	e := enrich.New(provider, cache, overrides, geocode.NewMinInterval(c.Geocode.Delay, nil),
		enrich.WithTimeout(c.Geocode.Timeout),
		enrich.WithBatchSize(c.Geocode.BatchSize),
		enrich.WithRetry(retry),
		enrich.WithRecorder(metrics),
		enrich.WithProgress(progress),
	)

	stats, runErr := e.Run(ctx, resorts)
	finishProgress()
	if runErr == nil {
		runErr = writeOutputs(c.Paths, resorts, stats)
	}

	status := model.RunStatusComplete
	switch {
	case errors.Is(runErr, context.Canceled):
		status = model.RunStatusInterrupted
	case runErr != nil:
		status = model.RunStatusFailed
	}

	// The run context may already be cancelled; bookkeeping still happens.
	finishCtx := context.WithoutCancel(ctx)
	run.Status = status
	run.Stats = stats
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := st.FinishRun(finishCtx, run.ID, status, stats, runErr); err != nil {
		log.Warn("record run finish", zap.Error(err))
	}

	if c.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(c.Metrics.Textfile); err != nil {
			log.Warn("metrics textfile", zap.Error(err))
		}
	}

	alerter := monitoring.NewAlerter(c.Monitoring)
	alerts := alerter.Evaluate(run)
	for _, a := range alerts {
		log.Warn("threshold breached", zap.String("alert", string(a.Type)), zap.String("message", a.Message))
	}
	alerter.SendAlerts(finishCtx, alerts)

	if stats != nil {
		printSummary(out, run.ID, status, stats)
		log.Info("run finished",
			zap.String("status", string(status)),
			zap.Int("geocoded", stats.Geocoded()),
			zap.Int("unresolved", stats.Unresolved()),
			zap.Int("provider_calls", stats.ProviderCalls),
		)
	}
	return stats, runErr
}

func newProvider(g config.GeocodeConfig) (geocode.Provider, error) {
	key := g.GoogleAPIKey
	if g.Provider == geocode.ProviderMapbox {
		key = g.MapboxToken
	}
	return geocode.New(g.Provider,
		geocode.WithUserAgent(g.UserAgent),
		geocode.WithBaseURL(g.BaseURL),
		geocode.WithAPIKey(key),
		geocode.WithRateLimit(g.EffectiveQPS()),
	)
}

// newProgress returns a per-record callback and a finisher. On a terminal it
// drives a progress bar; otherwise it logs every progressLogEvery records.
func newProgress(total int, interactive bool, log *zap.Logger) (func(done, total int), func()) {
	if !interactive {
		return func(done, total int) {
			if done%progressLogEvery == 0 || done == total {
				log.Info("progress", zap.Int("done", done), zap.Int("total", total))
			}
		}, func() {}
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Geocoding"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	set := func(done, _ int) { _ = bar.Set(done) }
	finish := func() { _ = bar.Finish() }
	return set, finish
}

// writeOutputs writes the enriched catalog, the failure report and the
// optional GeoJSON export. Each goes to a different file.
func writeOutputs(p config.PathsConfig, resorts []model.Resort, stats *model.RunStats) error {
	failedPath := p.Failed
	if failedPath == "" {
		failedPath = catalog.FailedPath(p.Output)
	}

	var g errgroup.Group
	g.Go(func() error { return catalog.WriteResorts(p.Output, resorts) })
	g.Go(func() error { return catalog.WriteFailed(failedPath, stats.Failed) })
	if p.GeoJSON != "" {
		g.Go(func() error { return catalog.WriteGeoJSON(p.GeoJSON, resorts) })
	}
	return eris.Wrap(g.Wait(), "geocode: write outputs")
}

// printSummary writes the end-of-run statistics to w.
func printSummary(out io.Writer, runID string, status model.RunStatus, s *model.RunStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if runID != "" {
		_, _ = fmt.Fprintf(w, "Run:\t%s\n", runID)
	}
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", status)
	_, _ = fmt.Fprintf(w, "Records:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "  Overrides:\t%d\n", s.OverrideHits)
	_, _ = fmt.Fprintf(w, "  Already located:\t%d\n", s.Skipped)
	_, _ = fmt.Fprintf(w, "  Cache hits:\t%d\n", s.CacheHits)
	_, _ = fmt.Fprintf(w, "  Cached failures:\t%d\n", s.CacheFailures)
	_, _ = fmt.Fprintf(w, "  New successes:\t%d\n", s.NewSuccesses)
	_, _ = fmt.Fprintf(w, "  New failures:\t%d\n", s.NewFailures)
	_, _ = fmt.Fprintf(w, "Provider calls:\t%d\n", s.ProviderCalls)
	_, _ = fmt.Fprintf(w, "Transient errors:\t%d\n", s.TransientErrors)
	_, _ = fmt.Fprintf(w, "Cache flushes:\t%d\n", s.CacheFlushes)
	_, _ = fmt.Fprintf(w, "Success rate:\t%.1f%%\n", s.SuccessRate()*100)
	if len(s.VariationsAttempted) > 0 {
		_, _ = fmt.Fprintf(w, "Candidates tried:\t%s\n", formatVariations(s.VariationsAttempted))
	}
	_ = w.Flush()

	if len(s.Failed) == 0 {
		return
	}
	_, _ = fmt.Fprintf(out, "\nUnresolved (%d):\n", len(s.Failed))
	for i, f := range s.Failed {
		if i == summaryFailedLimit {
			_, _ = fmt.Fprintf(out, "  ... and %d more\n", len(s.Failed)-summaryFailedLimit)
			break
		}
		_, _ = fmt.Fprintf(out, "  %s\t%s\n", f.Code, f.Location)
	}
}

// formatVariations renders the histogram as "1:40 2:3 5:1".
func formatVariations(h map[int]int) string {
	keys := make([]int, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%d:%d", k, h[k])
	}
	return strings.Join(parts, " ")
}
