// Package enrich attaches coordinates to resort records, consulting manual
// overrides, the persistent cache, and finally a geocoding provider.
package enrich

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/resort-geocoder/internal/geocache"
	"github.com/sells-group/resort-geocoder/internal/location"
	"github.com/sells-group/resort-geocoder/internal/model"
	"github.com/sells-group/resort-geocoder/internal/override"
	"github.com/sells-group/resort-geocoder/internal/resilience"
	"github.com/sells-group/resort-geocoder/pkg/geocode"
)

// Record outcomes reported to the Recorder.
const (
	OutcomeOverride     = "override"
	OutcomeSkipped      = "skipped"
	OutcomeCacheHit     = "cache_hit"
	OutcomeCacheFailure = "cache_failure"
	OutcomeFound        = "found"
	OutcomeNotFound     = "not_found"
	OutcomeInterrupted  = "interrupted"
)

// DefaultBatchSize is the number of new cache entries between flushes.
const DefaultBatchSize = 100

// Cache is the persistent location cache.
type Cache interface {
	Get(key string) (geocache.Entry, bool)
	Put(key string, e geocache.Entry)
	Flush() error
}

// Overrides resolves record codes to manual coordinates.
type Overrides interface {
	Lookup(code string) (override.Override, bool)
}

// Limiter spaces provider calls.
type Limiter interface {
	Wait(ctx context.Context) error
	Mark()
}

// Recorder receives run metrics.
type Recorder interface {
	RecordOutcome(outcome string)
	ObserveProviderCall(provider, outcome string, elapsed time.Duration)
	CacheFlushed()
}

type nopRecorder struct{}

func (nopRecorder) RecordOutcome(string)                              {}
func (nopRecorder) ObserveProviderCall(string, string, time.Duration) {}
func (nopRecorder) CacheFlushed()                                     {}

// Option configures an Enricher.
type Option func(*Enricher)

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(e *Enricher) { e.timeout = d }
}

// WithBatchSize sets how many new cache entries trigger a flush.
func WithBatchSize(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithRetry sets the retry policy for transient provider errors.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(e *Enricher) { e.retry = cfg }
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(e *Enricher) {
		if r != nil {
			e.metrics = r
		}
	}
}

// WithProgress registers a callback invoked after each record.
func WithProgress(fn func(done, total int)) Option {
	return func(e *Enricher) { e.progress = fn }
}

// WithClock sets the clock used for call timing.
func WithClock(c clockwork.Clock) Option {
	return func(e *Enricher) {
		if c != nil {
			e.clock = c
		}
	}
}

// Enricher resolves record locations one at a time, in input order.
type Enricher struct {
	provider  geocode.Provider
	cache     Cache
	overrides Overrides
	limiter   Limiter

	timeout   time.Duration
	batchSize int
	retry     resilience.RetryConfig
	metrics   Recorder
	progress  func(done, total int)
	clock     clockwork.Clock
	log       *zap.Logger
}

// New creates an Enricher.
func New(p geocode.Provider, c Cache, o Overrides, l Limiter, opts ...Option) *Enricher {
	e := &Enricher{
		provider:  p,
		cache:     c,
		overrides: o,
		limiter:   l,
		timeout:   10 * time.Second,
		batchSize: DefaultBatchSize,
		retry:     resilience.DefaultRetryConfig(),
		metrics:   nopRecorder{},
		clock:     clockwork.NewRealClock(),
		log:       zap.L().With(zap.String("component", "enrich"), zap.String("provider", p.Name())),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.retry.OnRetry == nil {
		e.retry.OnRetry = resilience.RetryLogger(p.Name(), "resolve")
	}
	return e
}

// Run enriches resorts in place and returns the run statistics. The cache is
// flushed every batch-size new entries and once more before Run returns, on
// success, on cancellation, and on error. A flush failure is returned as is.
// When ctx is cancelled, Run stops after the current record and returns an
// error wrapping ctx.Err().
func (e *Enricher) Run(ctx context.Context, resorts []model.Resort) (*model.RunStats, error) {
	stats := model.NewRunStats()
	stats.Total = len(resorts)

	var pending int
	for i := range resorts {
		if ctx.Err() != nil {
			break
		}

		if e.enrichOne(ctx, &resorts[i], stats) {
			pending++
		}

		if pending >= e.batchSize {
			if err := e.flush(stats); err != nil {
				return stats, err
			}
			pending = 0
		}

		if e.progress != nil {
			e.progress(i+1, len(resorts))
		}
	}

	if err := e.flush(stats); err != nil {
		return stats, err
	}

	if err := ctx.Err(); err != nil {
		return stats, eris.Wrap(err, "enrich: interrupted")
	}
	return stats, nil
}

func (e *Enricher) flush(stats *model.RunStats) error {
	if err := e.cache.Flush(); err != nil {
		return eris.Wrap(err, "enrich: flush cache")
	}
	stats.CacheFlushes++
	e.metrics.CacheFlushed()
	return nil
}

// enrichOne resolves a single record and reports whether a new cache entry
// was written.
func (e *Enricher) enrichOne(ctx context.Context, r *model.Resort, stats *model.RunStats) bool {
	log := e.log.With(zap.String("code", r.Code))

	if o, ok := e.overrides.Lookup(r.Code); ok {
		r.SetCoordinates(o.Latitude, o.Longitude)
		stats.OverrideHits++
		e.metrics.RecordOutcome(OutcomeOverride)
		log.Debug("override applied")
		return false
	}

	if r.HasCoordinates() {
		stats.Skipped++
		e.metrics.RecordOutcome(OutcomeSkipped)
		return false
	}

	key := location.Normalize(r.Location)
	if key == "" {
		r.ClearCoordinates()
		stats.NewFailures++
		stats.Failed = append(stats.Failed, failedRecord(r, key))
		e.metrics.RecordOutcome(OutcomeNotFound)
		log.Warn("empty location")
		return false
	}
	log = log.With(zap.String("location", key))

	if entry, ok := e.cache.Get(key); ok {
		if entry.Failed() {
			r.ClearCoordinates()
			stats.CacheFailures++
			stats.Failed = append(stats.Failed, failedRecord(r, key))
			e.metrics.RecordOutcome(OutcomeCacheFailure)
			log.Debug("cached failure")
			return false
		}
		r.SetCoordinates(entry.Coords.Latitude, entry.Coords.Longitude)
		stats.CacheHits++
		e.metrics.RecordOutcome(OutcomeCacheHit)
		log.Debug("cache hit")
		return false
	}

	res, tried, interrupted := e.resolve(ctx, key, stats)
	if interrupted {
		e.metrics.RecordOutcome(OutcomeInterrupted)
		log.Info("interrupted before resolution", zap.Int("candidates_tried", tried))
		return false
	}
	stats.VariationsAttempted[tried]++

	if res.Outcome == geocode.OutcomeFound {
		e.cache.Put(key, geocache.Success(res.Latitude, res.Longitude, res.MatchedQuery))
		r.SetCoordinates(res.Latitude, res.Longitude)
		stats.NewSuccesses++
		e.metrics.RecordOutcome(OutcomeFound)
		log.Info("geocoded",
			zap.String("matched_query", res.MatchedQuery),
			zap.Float64("latitude", res.Latitude),
			zap.Float64("longitude", res.Longitude),
			zap.Int("candidates_tried", tried),
		)
		return true
	}

	e.cache.Put(key, geocache.FailureMarker)
	r.ClearCoordinates()
	stats.NewFailures++
	stats.Failed = append(stats.Failed, failedRecord(r, key))
	e.metrics.RecordOutcome(OutcomeNotFound)
	log.Warn("no candidate resolved", zap.Int("candidates_tried", tried))
	return true
}

// resolve walks the rewrite candidates for key until one is found. It
// returns the final result, the number of candidates tried, and whether ctx
// was cancelled before the candidates were exhausted.
func (e *Enricher) resolve(ctx context.Context, key string, stats *model.RunStats) (geocode.Result, int, bool) {
	var (
		last  = geocode.NotFound()
		tried int
	)

	for cand := range location.Variations(key) {
		tried++
		res, attempts := resilience.Attempt(ctx, e.retry, func(ctx context.Context) geocode.Result {
			return e.call(ctx, cand.Query, stats)
		}, func(r geocode.Result) (bool, error) {
			return r.Transient(), r.Err
		})
		last = res

		if ctx.Err() != nil {
			return last, tried, true
		}

		e.log.Debug("candidate resolved",
			zap.String("strategy", cand.Strategy),
			zap.String("query", cand.Query),
			zap.String("outcome", res.Label()),
			zap.Int("attempts", attempts),
		)

		if res.Outcome == geocode.OutcomeFound {
			return res, tried, false
		}
	}
	return last, tried, false
}

// call makes a single rate-limited provider call.
func (e *Enricher) call(ctx context.Context, query string, stats *model.RunStats) geocode.Result {
	if err := e.limiter.Wait(ctx); err != nil {
		return geocode.Failed(geocode.ErrorOther, eris.Wrap(err, "enrich: limiter wait"))
	}

	start := e.clock.Now()
	res := e.provider.Resolve(ctx, query, e.timeout)
	e.limiter.Mark()

	stats.ProviderCalls++
	if res.Transient() {
		stats.TransientErrors++
	}
	e.metrics.ObserveProviderCall(e.provider.Name(), res.Label(), e.clock.Since(start))
	return res
}

func failedRecord(r *model.Resort, key string) model.FailedRecord {
	return model.FailedRecord{
		Code:       r.Code,
		Name:       r.Name,
		Location:   r.Location,
		Normalized: key,
	}
}
