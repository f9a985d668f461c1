package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/wildfire-tracker/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// SQLitePath holds the id-remap table and the step audit log.
	SQLitePath string

	// Land-cover classification configuration.
	LandcoverURL       string
	LandcoverEnabled   bool
	LandcoverTimeout   time.Duration
	LandcoverCacheSize int

	Tracking domain.Params
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	landcoverTimeoutStr := sharedcfg.EnvOrDefault("LANDCOVER_TIMEOUT", "5s")
	landcoverTimeout, err2 := time.ParseDuration(landcoverTimeoutStr)
	if err2 != nil || landcoverTimeout <= 0 {
		return nil, errors.New("invalid LANDCOVER_TIMEOUT")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	tracking, err := parseTracking()
	if err != nil {
		return nil, err
	}

	landcoverURL := os.Getenv("LANDCOVER_URL")
	landcoverEnabled := landcoverURL != ""
	if v := os.Getenv("LANDCOVER_ENABLED"); v != "" {
		landcoverEnabled = v == "true"
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "fire-pixel-steps"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "fire-step-changes"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "wildfire-tracker"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		SQLitePath: sharedcfg.EnvOrDefault("SQLITE_PATH", "wildfire.db"),

		LandcoverURL:       landcoverURL,
		LandcoverEnabled:   landcoverEnabled,
		LandcoverTimeout:   landcoverTimeout,
		LandcoverCacheSize: parseLandcoverCacheSize(),

		Tracking: tracking,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.LandcoverEnabled && cfg.LandcoverURL == "" {
		return nil, errors.New("LANDCOVER_ENABLED is true but LANDCOVER_URL is not set")
	}

	return cfg, nil
}

// TrackingParams returns the tracking thresholds handed to fire collections.
func (c *Config) TrackingParams() domain.Params {
	return c.Tracking
}

func parseTracking() (domain.Params, error) {
	p := domain.DefaultParams()
	fields := []struct {
		key string
		dst *float64
	}{
		{"GROWTH_WINDOW_DAYS", &p.GrowthWindow},
		{"DEATH_WINDOW_DAYS", &p.DeathWindow},
		{"NOMINAL_PIXEL_AREA_KM2", &p.NominalPixelArea},
		{"VIIRS_BUFFER_M", &p.ViirsBuffer},
		{"MODIS_BUFFER_M", &p.ModisBuffer},
		{"NEAR_BOUNDARY_M", &p.NearBoundaryDistance},
		{"FIRELINE_BUFFER_M", &p.FireLineBuffer},
		{"STATIC_DENSITY_MIN", &p.StaticDensity},
		{"STATIC_AREA_MAX_KM2", &p.StaticMaxArea},
	}
	for _, f := range fields {
		s := os.Getenv(f.key)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.Params{}, fmt.Errorf("invalid %s: %w", f.key, err)
		}
		*f.dst = v
	}
	if err := p.Validate(); err != nil {
		return domain.Params{}, fmt.Errorf("invalid tracking thresholds: %w", err)
	}
	return p, nil
}

func parseLandcoverCacheSize() int {
	if s := os.Getenv("LANDCOVER_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
