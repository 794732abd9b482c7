package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file loaded when no path is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Log         LogConfig         `koanf:"log"`
	Coordinator CoordinatorConfig `koanf:"coordinator"`
	Reconciler  ReconcilerConfig  `koanf:"reconciler"`
	Eligibility EligibilityConfig `koanf:"eligibility"`
	Rates       RatesConfig       `koanf:"rates"`
	Cache       CacheConfig       `koanf:"cache"`
	Storage     StorageConfig     `koanf:"storage"`
	Reference   ReferenceConfig   `koanf:"reference"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Providers   []ProviderConfig  `koanf:"providers"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

// CoordinatorConfig bounds plan execution.
type CoordinatorConfig struct {
	MaxInFlight    int           `koanf:"max_in_flight"` // 0 = unbounded
	CallTimeout    time.Duration `koanf:"call_timeout"`
	PlanDeadline   time.Duration `koanf:"plan_deadline"`
	MaxRetries     int           `koanf:"max_retries"`
	InitialBackoff time.Duration `koanf:"initial_backoff"`
}

type ReconcilerConfig struct {
	Staleness time.Duration `koanf:"staleness"`
	FreshFor  time.Duration `koanf:"fresh_for"` // cached rates younger than this skip the lookup
}

type EligibilityConfig struct {
	MissingAgePolicy string `koanf:"missing_age_policy"` // assume_eligible, assume_blocked
}

type RatesConfig struct {
	Source  string        `koanf:"source"` // static, frankfurter
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type CacheConfig struct {
	Type  string      `koanf:"type"` // memory, redis
	Redis RedisConfig `koanf:"redis"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// ReferenceConfig points at the YAML file holding exchange rates and visa
// rulesets.
type ReferenceConfig struct {
	Path  string `koanf:"path"`
	Watch bool   `koanf:"watch"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

// ProviderConfig enables and tunes one capability provider.
type ProviderConfig struct {
	Name     string `koanf:"name"`
	Type     string `koanf:"type"` // factory name; defaults to Name
	Disabled bool   `koanf:"disabled"`

	// Optional overrides of the provider's declared capabilities.
	SingleFlight   *bool `koanf:"single_flight"`
	RetryOnTimeout *bool `koanf:"retry_on_timeout"`

	// Latency adds a simulated delay to every call (demo and load testing).
	Latency time.Duration     `koanf:"latency"`
	Options map[string]string `koanf:"options"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

var defaults = map[string]any{
	"server.port":                    8080,
	"server.request_timeout":         "90s",
	"log.level":                      "info",
	"coordinator.max_in_flight":      0,
	"coordinator.call_timeout":       "30s",
	"coordinator.plan_deadline":      "60s",
	"coordinator.max_retries":        3,
	"coordinator.initial_backoff":    "1s",
	"reconciler.staleness":           "24h",
	"reconciler.fresh_for":           "1h",
	"eligibility.missing_age_policy": "assume_eligible",
	"rates.source":                   "static",
	"rates.base_url":                 "https://api.frankfurter.app",
	"rates.timeout":                  "5s",
	"cache.type":                     "memory",
	"cache.redis.prefix":             "trip:rate:",
	"storage.type":                   "sqlite",
	"storage.sqlite.path":            "./data/trips.db",
	"reference.path":                 "reference.yaml",
	"reference.watch":                true,
	"telemetry.enabled":              true,
	"telemetry.service_name":         "trip-planner",
}

// Load reads DefaultPath (if present) and TRIP_ environment variables.
func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

// LoadFile reads the YAML file at path (if present), then TRIP_ environment
// variables, then defaults. Double underscores in variable names separate
// levels: TRIP_COORDINATOR__CALL_TIMEOUT=10s.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("TRIP_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "TRIP_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	cfg.Cache.Redis.Password = substituteEnvVars(cfg.Cache.Redis.Password)

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
