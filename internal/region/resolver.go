// Package region resolves free-text region identifiers to bounding regions.
//
// Lookups go through an in-process LRU, then the durable RegionStore, and
// only then the external geocoder. Concurrent resolutions of the same
// identifier share one geocoder call.
package region

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/metar-etl/internal/domain"
	"github.com/couchcryptid/metar-etl/internal/observability"
)

// DefaultCacheSize bounds the in-process front cache.
const DefaultCacheSize = 256

// Options tunes a Resolver.
type Options struct {
	// CacheSize is the LRU capacity. Zero selects DefaultCacheSize.
	CacheSize int
}

// Resolver implements the region resolution contract on top of a durable
// store and a geocoding collaborator.
type Resolver struct {
	store    domain.RegionStore
	geocoder domain.RegionGeocoder
	front    *lru.Cache[string, domain.BoundingRegion]
	group    singleflight.Group
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewResolver wires a Resolver.
func NewResolver(store domain.RegionStore, geocoder domain.RegionGeocoder, opts Options, logger *slog.Logger, metrics *observability.Metrics) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("region store is required")
	}
	if geocoder == nil {
		return nil, errors.New("region geocoder is required")
	}
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	front, err := lru.New[string, domain.BoundingRegion](size)
	if err != nil {
		return nil, fmt.Errorf("create region cache: %w", err)
	}
	return &Resolver{
		store:    store,
		geocoder: geocoder,
		front:    front,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Resolve returns the bounding region for identifier. The identifier is
// case-folded for caching; cached regions are re-validated before use.
// An unusable geocoder reply is a *domain.ResolutionError and is not retried.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (domain.BoundingRegion, error) {
	key := domain.NormalizeRegionKey(identifier)
	if key == "" {
		return domain.BoundingRegion{}, &domain.ValidationError{Param: "region", Reason: "must not be empty"}
	}

	ctx, span := observability.Tracer().Start(ctx, "region.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("region.key", key))

	if region, ok := r.front.Get(key); ok {
		r.metrics.RegionCache.WithLabelValues("memory", "hit").Inc()
		span.SetAttributes(attribute.String("region.source", "memory"))
		return region, nil
	}
	r.metrics.RegionCache.WithLabelValues("memory", "miss").Inc()

	// The shared call outlives any single caller; each caller still stops
	// waiting when its own context ends.
	flight := r.group.DoChan(key, func() (any, error) {
		return r.resolveSlow(context.WithoutCancel(ctx), key, identifier)
	})
	select {
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		span.SetStatus(codes.Error, ctx.Err().Error())
		return domain.BoundingRegion{}, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			return domain.BoundingRegion{}, res.Err
		}
		if res.Shared {
			r.logger.Debug("region resolution shared", "region", key)
		}
		return res.Val.(domain.BoundingRegion), nil
	}
}

func (r *Resolver) resolveSlow(ctx context.Context, key, identifier string) (domain.BoundingRegion, error) {
	cached, ok, err := r.store.Load(ctx, key)
	if err != nil {
		return domain.BoundingRegion{}, fmt.Errorf("load region %q: %w", key, err)
	}
	if ok {
		verr := cached.Validate()
		if verr == nil {
			r.metrics.RegionCache.WithLabelValues("store", "hit").Inc()
			r.front.Add(key, cached)
			return cached, nil
		}
		r.logger.Warn("discarding invalid cached region", "region", key, "box", cached.String(), "error", verr)
	}
	r.metrics.RegionCache.WithLabelValues("store", "miss").Inc()

	reply, err := r.geocoder.GeocodeRegion(ctx, identifier)
	if err != nil {
		return domain.BoundingRegion{}, fmt.Errorf("geocode region %q: %w", key, err)
	}
	region, err := domain.ParseRegionReply(identifier, reply)
	if err != nil {
		return domain.BoundingRegion{}, err
	}

	if err := r.store.Merge(ctx, key, region); err != nil {
		return domain.BoundingRegion{}, fmt.Errorf("persist region %q: %w", key, err)
	}
	r.front.Add(key, region)
	r.logger.Info("region resolved", "region", key, "box", region.String())
	return region, nil
}
