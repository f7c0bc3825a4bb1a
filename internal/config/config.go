package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Region store backends.
const (
	StoreFile     = "file"
	StoreDynamoDB = "dynamodb"
	StoreMemory   = "memory"
)

// Geocoding collaborators.
const (
	GeocoderOpenAI = "openai"
	GeocoderMapbox = "mapbox"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Bulletin and catalog sources.
	BulletinBaseURL string
	StationTableURL string
	FetchTimeout    time.Duration
	ParseWorkers    int

	// Scheduled cycles.
	Regions       []string
	CycleInterval time.Duration

	// Region resolution.
	RegionStore         string
	RegionCacheFile     string
	RegionDynamoDBTable string
	DynamoDBEndpoint    string
	RegionCacheSize     int

	Geocoder      string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	OpenAITimeout time.Duration
	MapboxToken   string
	MapboxTimeout time.Duration

	// Outputs.
	KafkaEnabled           bool
	KafkaBrokers           []string
	KafkaObservationsTopic string
	KafkaPlansTopic        string
	ExportDir              string

	// Station catalog snapshot.
	CatalogS3Bucket string
	CatalogTTL      time.Duration

	TracingEnabled     bool
	TracingSampleRatio float64
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is read first; variables
// already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		BulletinBaseURL: sharedcfg.EnvOrDefault("BULLETIN_BASE_URL", "https://tgftp.nws.noaa.gov/data/observations/metar/cycles"),
		StationTableURL: sharedcfg.EnvOrDefault("STATION_TABLE_URL", "https://weather.rap.ucar.edu/surface/stations.txt"),

		Regions: splitList(os.Getenv("REGIONS")),

		RegionStore:         strings.ToLower(sharedcfg.EnvOrDefault("REGION_STORE", StoreFile)),
		RegionCacheFile:     sharedcfg.EnvOrDefault("REGION_CACHE_FILE", "bounding_box.json"),
		RegionDynamoDBTable: sharedcfg.EnvOrDefault("REGION_DYNAMODB_TABLE", "metar-regions"),
		DynamoDBEndpoint:    os.Getenv("DYNAMODB_ENDPOINT"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   sharedcfg.EnvOrDefault("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		MapboxToken:   os.Getenv("MAPBOX_TOKEN"),

		KafkaBrokers:           sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaObservationsTopic: sharedcfg.EnvOrDefault("KAFKA_OBSERVATIONS_TOPIC", "metar-observations"),
		KafkaPlansTopic:        sharedcfg.EnvOrDefault("KAFKA_PLANS_TOPIC", "metar-plans"),
		ExportDir:              os.Getenv("EXPORT_DIR"),

		CatalogS3Bucket: os.Getenv("CATALOG_S3_BUCKET"),
	}

	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"FETCH_TIMEOUT", "30s", &cfg.FetchTimeout},
		{"CYCLE_INTERVAL", "10m", &cfg.CycleInterval},
		{"OPENAI_TIMEOUT", "30s", &cfg.OpenAITimeout},
		{"MAPBOX_TIMEOUT", "5s", &cfg.MapboxTimeout},
		{"CATALOG_TTL", "24h", &cfg.CatalogTTL},
	}
	for _, d := range durations {
		if *d.dst, err = parsePositiveDuration(d.key, d.fallback); err != nil {
			return nil, err
		}
	}

	if cfg.ParseWorkers, err = parseIntInRange("PARSE_WORKERS", 8, 1, 256); err != nil {
		return nil, err
	}
	if cfg.RegionCacheSize, err = parseIntInRange("REGION_CACHE_SIZE", 256, 1, 100000); err != nil {
		return nil, err
	}
	if cfg.KafkaEnabled, err = parseBool("KAFKA_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.TracingEnabled, err = parseBool("TRACING_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.TracingSampleRatio, err = parseRatio("TRACING_SAMPLE_RATIO", 1.0); err != nil {
		return nil, err
	}

	cfg.Geocoder = strings.ToLower(os.Getenv("GEOCODER"))
	if cfg.Geocoder == "" {
		cfg.Geocoder = defaultGeocoder(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.RegionStore {
	case StoreFile:
		if c.RegionCacheFile == "" {
			return errors.New("REGION_CACHE_FILE is required when REGION_STORE is file")
		}
	case StoreDynamoDB:
		if c.RegionDynamoDBTable == "" {
			return errors.New("REGION_DYNAMODB_TABLE is required when REGION_STORE is dynamodb")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("invalid REGION_STORE %q: must be one of file, dynamodb, memory", c.RegionStore)
	}

	switch c.Geocoder {
	case "":
	case GeocoderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("GEOCODER is openai but OPENAI_API_KEY is not set")
		}
	case GeocoderMapbox:
		if c.MapboxToken == "" {
			return errors.New("GEOCODER is mapbox but MAPBOX_TOKEN is not set")
		}
	default:
		return fmt.Errorf("invalid GEOCODER %q: must be openai or mapbox", c.Geocoder)
	}

	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaObservationsTopic == "" {
			return errors.New("KAFKA_OBSERVATIONS_TOPIC is required when KAFKA_ENABLED is true")
		}
		if c.KafkaPlansTopic == "" {
			return errors.New("KAFKA_PLANS_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	return nil
}

// defaultGeocoder picks the collaborator whose credentials are present,
// preferring OpenAI. An empty result leaves resolution to cached regions.
func defaultGeocoder(c *Config) string {
	switch {
	case c.OpenAIAPIKey != "":
		return GeocoderOpenAI
	case c.MapboxToken != "":
		return GeocoderMapbox
	default:
		return ""
	}
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parseIntInRange(key string, fallback, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer between %d and %d", key, lo, hi)
	}
	return n, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: must be true or false", key)
	}
	return b, nil
}

func parseRatio(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > 1 {
		return 0, fmt.Errorf("invalid %s: must be a number between 0 and 1", key)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
