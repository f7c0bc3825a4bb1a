// Package app wires configuration into the pipeline and its collaborators.
// Both the service and the CLI build their components here.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/metar-etl/internal/adapter/dynamodb"
	"github.com/couchcryptid/metar-etl/internal/adapter/export"
	"github.com/couchcryptid/metar-etl/internal/adapter/filestore"
	kafkaadapter "github.com/couchcryptid/metar-etl/internal/adapter/kafka"
	"github.com/couchcryptid/metar-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/metar-etl/internal/adapter/openai"
	"github.com/couchcryptid/metar-etl/internal/adapter/s3"
	"github.com/couchcryptid/metar-etl/internal/bulletin"
	"github.com/couchcryptid/metar-etl/internal/catalog"
	"github.com/couchcryptid/metar-etl/internal/config"
	"github.com/couchcryptid/metar-etl/internal/domain"
	"github.com/couchcryptid/metar-etl/internal/observability"
	"github.com/couchcryptid/metar-etl/internal/pipeline"
	"github.com/couchcryptid/metar-etl/internal/region"
)

// App holds the wired components.
type App struct {
	Catalog  *catalog.Catalog
	Resolver *region.Resolver
	Pipeline *pipeline.Pipeline

	writer *kafkaadapter.Writer
	logger *slog.Logger
}

// Options adjusts what Build wires beyond the core stages.
type Options struct {
	// Publish attaches the Kafka writer and file exporter when configured.
	Publish bool
}

// Build loads the station catalog and wires the resolver and pipeline.
func Build(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	cat, err := LoadCatalog(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	metrics.CatalogStations.Set(float64(cat.Len()))

	resolver, err := NewResolver(ctx, cfg, logger, metrics)
	if err != nil {
		return nil, err
	}

	a := &App{Catalog: cat, Resolver: resolver, logger: logger}

	var pipelineOpts []pipeline.Option
	if opts.Publish {
		if cfg.KafkaEnabled {
			a.writer = kafkaadapter.NewWriter(cfg, logger)
			pipelineOpts = append(pipelineOpts, pipeline.WithPublisher(a.writer))
			logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers,
				"observations_topic", cfg.KafkaObservationsTopic, "plans_topic", cfg.KafkaPlansTopic)
		}
		if cfg.ExportDir != "" {
			pipelineOpts = append(pipelineOpts, pipeline.WithExporter(export.NewExporter(cfg.ExportDir, logger)))
			logger.Info("file export enabled", "dir", cfg.ExportDir)
		}
	}

	a.Pipeline = pipeline.New(
		resolver,
		bulletin.NewFetcher(cfg.BulletinBaseURL, cfg.FetchTimeout, logger),
		domain.NewMETARDecoder(cat),
		pipeline.Config{Regions: cfg.Regions, Workers: cfg.ParseWorkers, Interval: cfg.CycleInterval},
		logger,
		metrics,
		pipelineOpts...,
	)
	return a, nil
}

// Close releases publishing resources.
func (a *App) Close() error {
	if a.writer == nil {
		return nil
	}
	return a.writer.Close()
}

// NewResolver wires the configured region store and geocoder.
func NewResolver(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*region.Resolver, error) {
	store, err := newRegionStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return region.NewResolver(store, newGeocoder(cfg, metrics, logger),
		region.Options{CacheSize: cfg.RegionCacheSize}, logger, metrics)
}

// LoadCatalog downloads the station table, going through the S3 snapshot when
// CATALOG_S3_BUCKET is set.
func LoadCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*catalog.Catalog, error) {
	var snapshot catalog.SnapshotStore
	if cfg.CatalogS3Bucket != "" {
		client, err := s3.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		snapshot = s3.NewSnapshotStore(client, cfg.CatalogS3Bucket, cfg.CatalogTTL, logger)
	}

	cat, err := catalog.NewLoader(cfg.StationTableURL, cfg.FetchTimeout, snapshot, logger).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load station catalog: %w", err)
	}
	return cat, nil
}

func newRegionStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.RegionStore, error) {
	switch cfg.RegionStore {
	case config.StoreDynamoDB:
		client, err := dynamodb.NewClient(ctx, cfg.DynamoDBEndpoint)
		if err != nil {
			return nil, err
		}
		logger.Info("region store: dynamodb", "table", cfg.RegionDynamoDBTable)
		return dynamodb.NewStore(client, cfg.RegionDynamoDBTable, logger), nil
	case config.StoreMemory:
		logger.Info("region store: memory")
		return region.NewMemoryStore(), nil
	default:
		logger.Info("region store: file", "path", cfg.RegionCacheFile)
		return filestore.New(cfg.RegionCacheFile, logger), nil
	}
}

func newGeocoder(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) domain.RegionGeocoder {
	switch cfg.Geocoder {
	case config.GeocoderOpenAI:
		logger.Info("region geocoder: openai", "model", cfg.OpenAIModel)
		return openai.NewGeocoder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.OpenAITimeout, metrics, logger)
	case config.GeocoderMapbox:
		logger.Info("region geocoder: mapbox", "timeout", cfg.MapboxTimeout)
		return mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
	default:
		logger.Warn("no region geocoder configured; only stored regions resolve")
		return unavailableGeocoder{}
	}
}

// unavailableGeocoder fails every lookup so that only stored regions resolve.
type unavailableGeocoder struct{}

func (unavailableGeocoder) GeocodeRegion(_ context.Context, identifier string) (string, error) {
	return "", &domain.ResolutionError{Identifier: identifier, Reason: "no geocoder configured (set OPENAI_API_KEY or MAPBOX_TOKEN)"}
}
