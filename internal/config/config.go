// Package config loads the scheduling service configuration.
// Precedence: environment (OPCENTRIX_*) > config file > defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/HenryGill4/OpCentrix-sub006/internal/application"
	"github.com/HenryGill4/OpCentrix-sub006/internal/domain"
	"github.com/HenryGill4/OpCentrix-sub006/internal/infrastructure/lock"
	"github.com/HenryGill4/OpCentrix-sub006/internal/scheduling"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/kafka"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/logging"
	pkgmongo "github.com/HenryGill4/OpCentrix-sub006/pkg/mongodb"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/outbox"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/tracing"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OPCENTRIX"

// FileEnv names the variable holding the config file path.
const FileEnv = "OPCENTRIX_CONFIG"

// ServiceName identifies the service in logs, metrics and traces.
const ServiceName = "scheduling-service"

// Config is the service configuration
type Config struct {
	Server     ServerConfig       `mapstructure:"server"`
	MongoDB    MongoDBConfig      `mapstructure:"mongodb"`
	Redis      RedisConfig        `mapstructure:"redis"`
	Kafka      KafkaConfig        `mapstructure:"kafka"`
	Tracing    TracingConfig      `mapstructure:"tracing"`
	Logging    LoggingConfig      `mapstructure:"logging"`
	Scheduling SchedulingConfig   `mapstructure:"scheduling"`
	Materials  []MaterialOverride `mapstructure:"materials"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// MongoDBConfig configures the Mongo connection
type MongoDBConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MaxPoolSize    uint64        `mapstructure:"max_pool_size"`
}

// RedisConfig configures the distributed lock. Disabled means the in-process
// lock is used.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// KafkaConfig configures the outbox relay
type KafkaConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Brokers            []string      `mapstructure:"brokers"`
	ClientID           string        `mapstructure:"client_id"`
	OutboxPollInterval time.Duration `mapstructure:"outbox_poll_interval"`
	OutboxBatchSize    int           `mapstructure:"outbox_batch_size"`
}

// TracingConfig configures OTLP export
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	AddSource bool   `mapstructure:"add_source"`
}

// SchedulingConfig tunes the calculators
type SchedulingConfig struct {
	Layout      LayoutConfig     `mapstructure:"layout"`
	Changeover  ChangeoverConfig `mapstructure:"changeover"`
	Cost        CostConfig       `mapstructure:"cost"`
	LockTimeout time.Duration    `mapstructure:"lock_timeout"`
}

// LayoutConfig sizes machine rows in pixels
type LayoutConfig struct {
	LayerHeightPx  int `mapstructure:"layer_height_px"`
	PaddingPx      int `mapstructure:"padding_px"`
	MinRowHeightPx int `mapstructure:"min_row_height_px"`
	MaxRowHeightPx int `mapstructure:"max_row_height_px"`
}

// ChangeoverConfig holds shop-wide changeover minutes
type ChangeoverConfig struct {
	domain.ChangeoverDurations `mapstructure:",squash"`
	UnknownMachine             string `mapstructure:"unknown_machine"`
}

// CostConfig tunes the estimator
type CostConfig struct {
	UseMaterialPrice bool  `mapstructure:"use_material_price"`
	Places           int32 `mapstructure:"places"`
}

// MaterialOverride replaces parts of a material's profile. Zero fields keep
// the compiled values.
type MaterialOverride struct {
	Name                  string        `mapstructure:"name"`
	LaserPowerWatts       domain.Window `mapstructure:"laser_power_watts"`
	ScanSpeedMmPerSec     domain.Window `mapstructure:"scan_speed_mm_per_sec"`
	LayerThicknessMicrons domain.Window `mapstructure:"layer_thickness_microns"`
	HatchSpacingMicrons   domain.Window `mapstructure:"hatch_spacing_microns"`
	BuildTemperatureC     domain.Window `mapstructure:"build_temperature_c"`
	MinArgonPurityPercent float64       `mapstructure:"min_argon_purity_percent"`
	MaxOxygenContentPpm   float64       `mapstructure:"max_oxygen_content_ppm"`
	PowderCostPerKg       float64       `mapstructure:"powder_cost_per_kg"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.request_timeout", "10s")

	v.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb.database", "opcentrix")
	v.SetDefault("mongodb.connect_timeout", "10s")
	v.SetDefault("mongodb.max_pool_size", 50)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "30s")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.client_id", "opcentrix-scheduling")
	v.SetDefault("kafka.outbox_poll_interval", "1s")
	v.SetDefault("kafka.outbox_batch_size", 100)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.add_source", false)

	layout := scheduling.DefaultLayoutConfig()
	v.SetDefault("scheduling.layout.layer_height_px", layout.LayerHeightPx)
	v.SetDefault("scheduling.layout.padding_px", layout.PaddingPx)
	v.SetDefault("scheduling.layout.min_row_height_px", layout.MinRowHeightPx)
	v.SetDefault("scheduling.layout.max_row_height_px", layout.MaxRowHeightPx)

	changeover := scheduling.DefaultChangeoverConfig()
	v.SetDefault("scheduling.changeover.same_family_minutes", changeover.Durations.SameFamilyMinutes)
	v.SetDefault("scheduling.changeover.cross_family_minutes", changeover.Durations.CrossFamilyMinutes)
	v.SetDefault("scheduling.changeover.default_minutes", changeover.Durations.DefaultMinutes)
	v.SetDefault("scheduling.changeover.unknown_machine", string(changeover.UnknownMachine))

	cost := scheduling.DefaultCostConfig()
	v.SetDefault("scheduling.cost.use_material_price", cost.UseMaterialPrice)
	v.SetDefault("scheduling.cost.places", cost.Places)
	v.SetDefault("scheduling.lock_timeout", "5s")
}

// Load reads defaults, then the config file at path (or $OPCENTRIX_CONFIG,
// or ./config.yaml), then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv(FileEnv)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values the service cannot start without
func (c *Config) Validate() error {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		fail("server.port must be between 1 and 65535")
	}
	if c.MongoDB.URI == "" {
		fail("mongodb.uri is required")
	}
	if c.MongoDB.Database == "" {
		fail("mongodb.database is required")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		fail("redis.addr is required when redis is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		fail("kafka.brokers is required when kafka is enabled")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		fail("tracing.sample_rate must be between 0 and 1")
	}
	switch logging.LogLevel(strings.ToLower(c.Logging.Level)) {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		fail("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	l := c.Scheduling.Layout
	if l.LayerHeightPx <= 0 || l.MinRowHeightPx <= 0 || l.PaddingPx < 0 {
		fail("scheduling.layout sizes must be positive")
	}
	if l.MaxRowHeightPx < l.MinRowHeightPx {
		fail("scheduling.layout.max_row_height_px must not be below min_row_height_px")
	}

	co := c.Scheduling.Changeover
	if co.SameFamilyMinutes <= 0 || co.CrossFamilyMinutes <= 0 || co.DefaultMinutes <= 0 {
		fail("scheduling.changeover minutes must be positive")
	}
	switch scheduling.UnknownMachinePolicy(co.UnknownMachine) {
	case scheduling.UnknownMachineStrict, scheduling.UnknownMachineUseDefault:
	default:
		fail("scheduling.changeover.unknown_machine %q is not one of strict, default", co.UnknownMachine)
	}
	if c.Scheduling.Cost.Places < 0 || c.Scheduling.Cost.Places > 6 {
		fail("scheduling.cost.places must be between 0 and 6")
	}

	for _, m := range c.Materials {
		if _, ok := domain.ParseMaterial(m.Name); !ok {
			fail("materials: unknown material %q", m.Name)
			continue
		}
		for name, w := range map[string]domain.Window{
			"laser_power_watts":       m.LaserPowerWatts,
			"scan_speed_mm_per_sec":   m.ScanSpeedMmPerSec,
			"layer_thickness_microns": m.LayerThicknessMicrons,
			"hatch_spacing_microns":   m.HatchSpacingMicrons,
			"build_temperature_c":     m.BuildTemperatureC,
		} {
			if w.Min > 0 && w.Max > 0 && w.Min > w.Max {
				fail("materials.%s.%s: min %.2f exceeds max %.2f", m.Name, name, w.Min, w.Max)
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// MaterialTable returns the compiled material table with the overrides
// applied.
func (c *Config) MaterialTable() domain.MaterialTable {
	table := domain.DefaultMaterialTable()
	for _, o := range c.Materials {
		mat, ok := domain.ParseMaterial(o.Name)
		if !ok {
			continue
		}
		p := table[mat]
		overrideWindow(&p.LaserPowerWatts, o.LaserPowerWatts)
		overrideWindow(&p.ScanSpeedMmPerSec, o.ScanSpeedMmPerSec)
		overrideWindow(&p.LayerThicknessMicrons, o.LayerThicknessMicrons)
		overrideWindow(&p.HatchSpacingMicrons, o.HatchSpacingMicrons)
		overrideWindow(&p.BuildTemperatureC, o.BuildTemperatureC)
		if o.MinArgonPurityPercent > 0 {
			p.MinArgonPurityPercent = o.MinArgonPurityPercent
		}
		if o.MaxOxygenContentPpm > 0 {
			p.MaxOxygenContentPpm = o.MaxOxygenContentPpm
		}
		if o.PowderCostPerKg > 0 {
			p.PowderCostPerKg = o.PowderCostPerKg
		}
		table[mat] = p
	}
	return table
}

func overrideWindow(dst *domain.Window, src domain.Window) {
	if src.Min > 0 {
		dst.Min = src.Min
	}
	if src.Max > 0 {
		dst.Max = src.Max
	}
}

// Engine returns the calculator configuration.
func (c *Config) Engine() application.EngineConfig {
	s := c.Scheduling
	return application.EngineConfig{
		Materials: c.MaterialTable(),
		Changeover: scheduling.ChangeoverConfig{
			Durations:      s.Changeover.ChangeoverDurations,
			UnknownMachine: scheduling.UnknownMachinePolicy(s.Changeover.UnknownMachine),
		},
		Layout: scheduling.LayoutConfig{
			LayerHeightPx:  s.Layout.LayerHeightPx,
			PaddingPx:      s.Layout.PaddingPx,
			MinRowHeightPx: s.Layout.MinRowHeightPx,
			MaxRowHeightPx: s.Layout.MaxRowHeightPx,
		},
		Cost: scheduling.CostConfig{
			UseMaterialPrice: s.Cost.UseMaterialPrice,
			Places:           s.Cost.Places,
		},
	}
}

// LoggerConfig returns the logger configuration.
func (c *Config) LoggerConfig() *logging.Config {
	lc := logging.DefaultConfig(ServiceName)
	lc.Level = logging.ParseLevel(c.Logging.Level)
	lc.Environment = c.Server.Environment
	lc.AddSource = c.Logging.AddSource
	return lc
}

// TracerConfig returns the tracing configuration.
func (c *Config) TracerConfig() *tracing.Config {
	tc := tracing.DefaultConfig(ServiceName)
	tc.Enabled = c.Tracing.Enabled
	tc.OTLPEndpoint = c.Tracing.Endpoint
	tc.SampleRate = c.Tracing.SampleRate
	tc.Environment = c.Server.Environment
	return tc
}

// MongoConfig returns the Mongo client configuration.
func (c *Config) MongoConfig() *pkgmongo.Config {
	mc := pkgmongo.DefaultConfig()
	mc.URI = c.MongoDB.URI
	mc.Database = c.MongoDB.Database
	if c.MongoDB.ConnectTimeout > 0 {
		mc.ConnectTimeout = c.MongoDB.ConnectTimeout
	}
	if c.MongoDB.MaxPoolSize > 0 {
		mc.MaxPoolSize = c.MongoDB.MaxPoolSize
	}
	return mc
}

// KafkaProducerConfig returns the producer configuration.
func (c *Config) KafkaProducerConfig() *kafka.Config {
	kc := kafka.DefaultConfig()
	kc.Brokers = c.Kafka.Brokers
	if c.Kafka.ClientID != "" {
		kc.ClientID = c.Kafka.ClientID
	}
	return kc
}

// OutboxConfig returns the outbox relay configuration.
func (c *Config) OutboxConfig() *outbox.PublisherConfig {
	pc := outbox.DefaultPublisherConfig()
	if c.Kafka.OutboxPollInterval > 0 {
		pc.PollInterval = c.Kafka.OutboxPollInterval
	}
	if c.Kafka.OutboxBatchSize > 0 {
		pc.BatchSize = c.Kafka.OutboxBatchSize
	}
	return pc
}

// RedisLockConfig returns the distributed lock configuration.
func (c *Config) RedisLockConfig() *lock.RedisConfig {
	rc := lock.DefaultRedisConfig()
	rc.Addr = c.Redis.Addr
	rc.Password = c.Redis.Password
	rc.DB = c.Redis.DB
	if c.Redis.LockTTL > 0 {
		rc.TTL = c.Redis.LockTTL
	}
	return rc
}
