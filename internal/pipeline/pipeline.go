// Package pipeline orchestrates the resolve, fetch, parse, assemble and plan
// stages of a METAR cycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/couchcryptid/metar-etl/internal/domain"
	"github.com/couchcryptid/metar-etl/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second

	// DefaultInterval is the pause between scheduled cycles.
	DefaultInterval = 10 * time.Minute
)

// BulletinFetcher retrieves the report blocks of one cycle hour.
type BulletinFetcher interface {
	Fetch(ctx context.Context, hour int) ([]string, error)
}

// RegionResolver turns a region identifier into a bounding region.
type RegionResolver interface {
	Resolve(ctx context.Context, identifier string) (domain.BoundingRegion, error)
}

// Publisher hands a finished payload to the rendering side.
type Publisher interface {
	Publish(ctx context.Context, payload *domain.RenderPayload) error
}

// Exporter writes a payload to caller-visible artifacts.
type Exporter interface {
	Export(ctx context.Context, payload *domain.RenderPayload) error
}

// Config controls the scheduled loop.
type Config struct {
	Regions  []string
	Workers  int
	Interval time.Duration
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithPublisher publishes every payload produced by RunCycle.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithExporter exports every payload produced by RunCycle.
func WithExporter(exp Exporter) Option {
	return func(p *Pipeline) { p.exporter = exp }
}

// WithClock overrides the clock that picks the cycle hour and times cycles.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// Pipeline runs METAR cycles for a set of regions.
type Pipeline struct {
	resolver  RegionResolver
	fetcher   BulletinFetcher
	decoder   domain.ReportDecoder
	publisher Publisher
	exporter  Exporter
	cfg       Config
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(resolver RegionResolver, fetcher BulletinFetcher, decoder domain.ReportDecoder, cfg Config, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	p := &Pipeline{
		resolver: resolver,
		fetcher:  fetcher,
		decoder:  decoder,
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once a cycle has completed, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a cycle yet")
	}
	return nil
}

// Ready reports whether a cycle has completed.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// Plan computes the render payload for a region and cycle hour without
// publishing or exporting it.
func (p *Pipeline) Plan(ctx context.Context, regionID string, hour int) (*domain.RenderPayload, error) {
	ctx, span := observability.Tracer().Start(ctx, "pipeline.plan", trace.WithAttributes(
		attribute.String("region", regionID),
		attribute.Int("hour", hour),
	))
	defer span.End()

	payload, err := p.plan(ctx, regionID, hour)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("observations", len(payload.Observations)))
	return payload, nil
}

func (p *Pipeline) plan(ctx context.Context, regionID string, hour int) (*domain.RenderPayload, error) {
	box, err := p.resolver.Resolve(ctx, regionID)
	if err != nil {
		return nil, fmt.Errorf("resolve region: %w", err)
	}

	blocks, err := p.fetch(ctx, hour)
	if err != nil {
		return nil, err
	}

	results := p.parse(ctx, blocks)
	observations := p.assemble(ctx, regionID, results, box)

	densityPlan := domain.PlanDensity(box)
	payload := domain.BuildRenderPayload(regionID, box, densityPlan, observations, domain.CycleTime(p.clock.Now(), hour))
	p.logger.Info("render plan built",
		"region", regionID,
		"hour", hour,
		"area_sq_mi", densityPlan.AreaSquareMiles,
		"reduction", densityPlan.Reduction,
		"font_scale", densityPlan.FontScale.String(),
		"observations", len(observations),
	)
	return &payload, nil
}

func (p *Pipeline) fetch(ctx context.Context, hour int) ([]string, error) {
	ctx, span := observability.Tracer().Start(ctx, "bulletin.fetch")
	defer span.End()

	blocks, err := p.fetcher.Fetch(ctx, hour)
	if err != nil {
		p.metrics.BulletinsFetched.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("fetch bulletin: %w", err)
	}
	p.metrics.BulletinsFetched.WithLabelValues("success").Inc()
	span.SetAttributes(attribute.Int("blocks", len(blocks)))
	return blocks, nil
}

func (p *Pipeline) parse(ctx context.Context, blocks []string) []domain.ParseResult {
	_, span := observability.Tracer().Start(ctx, "pipeline.parse")
	defer span.End()

	results := ParseBlocks(p.decoder, blocks, p.cfg.Workers)
	for _, r := range results {
		p.metrics.BlocksParsed.WithLabelValues(r.Outcome.String()).Inc()
		if r.Outcome == domain.OutcomeSkippedMalformed {
			p.logger.Warn("report block skipped", "block", r.Index, "error", r.Err)
		}
	}
	span.SetAttributes(attribute.Int("workers", p.cfg.Workers))
	return results
}

func (p *Pipeline) assemble(ctx context.Context, regionID string, results []domain.ParseResult, box domain.BoundingRegion) []domain.Observation {
	_, span := observability.Tracer().Start(ctx, "pipeline.assemble")
	defer span.End()

	observations, stats := Assemble(results, box)
	p.metrics.DuplicatesDropped.Add(float64(stats.Duplicates))
	p.metrics.ObservationsEmitted.Add(float64(stats.Emitted))
	span.SetAttributes(
		attribute.Int("decoded", stats.Decoded),
		attribute.Int("skipped", stats.Skipped),
		attribute.Int("duplicates", stats.Duplicates),
		attribute.Int("emitted", stats.Emitted),
	)
	p.logger.Debug("observations assembled",
		"region", regionID,
		"decoded", stats.Decoded,
		"skipped", stats.Skipped,
		"duplicates", stats.Duplicates,
		"outside_region", stats.OutsideRegion,
		"emitted", stats.Emitted,
	)
	return observations
}

// RunCycle plans one region and hands the payload to the configured
// publisher and exporter.
func (p *Pipeline) RunCycle(ctx context.Context, regionID string, hour int) (*domain.RenderPayload, error) {
	start := p.clock.Now()

	payload, err := p.Plan(ctx, regionID, hour)
	if err != nil {
		return nil, err
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, payload); err != nil {
			return nil, fmt.Errorf("publish plan: %w", err)
		}
		p.metrics.PlansPublished.Inc()
	}
	if p.exporter != nil {
		if err := p.exporter.Export(ctx, payload); err != nil {
			return nil, fmt.Errorf("export plan: %w", err)
		}
	}

	p.metrics.CycleDuration.WithLabelValues(domain.NormalizeRegionKey(regionID)).Observe(p.clock.Since(start).Seconds())
	p.ready.Store(true)
	return payload, nil
}

// Run executes a cycle for every configured region each interval until the
// context is cancelled. Fetch and publish failures back off exponentially.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "regions", p.cfg.Regions, "workers", p.cfg.Workers, "interval", p.cfg.Interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}

		wait := p.cfg.Interval
		if p.runRegions(ctx) {
			backoff = initialBackoff
		} else {
			wait = backoff
			backoff = retry.NextBackoff(backoff, maxBackoff)
		}

		if !retry.SleepWithContext(ctx, wait) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// runRegions runs the current hour for each region. It returns false when a
// retryable failure means the loop should back off.
func (p *Pipeline) runRegions(ctx context.Context) bool {
	hour := domain.CycleHourAt(p.clock.Now())
	ok := true
	for _, regionID := range p.cfg.Regions {
		if ctx.Err() != nil {
			return true
		}
		if _, err := p.RunCycle(ctx, regionID, hour); err != nil {
			if ctx.Err() != nil {
				return true
			}
			p.logger.Error("cycle failed", "region", regionID, "hour", hour, "error", err)
			if retryable(err) {
				ok = false
			}
		}
	}
	return ok
}

// retryable reports whether err may succeed on a later attempt. Bad regions
// and bad geocoder replies are not retried.
func retryable(err error) bool {
	var re *domain.ResolutionError
	var ve *domain.ValidationError
	return !errors.As(err, &re) && !errors.As(err, &ve)
}
