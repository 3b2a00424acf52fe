package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default values shared by registerDefaults, ApplyDefaults and GetDefaultConfig.
const (
	DefaultShutdownTimeout = 30 * time.Second
	DefaultCacheDir        = ".alarmcache/"
	DefaultCacheSize       = ByteSize(256 << 20)
	DefaultAPIPort         = 8080
	DefaultMetricsPort     = 9090
	DefaultOTLPEndpoint    = "localhost:4317"
	DefaultPyroscopeURL    = "http://localhost:4040"
)

var defaultProfileTypes = []string{
	"cpu",
	"alloc_objects",
	"alloc_space",
	"inuse_objects",
	"inuse_space",
	"goroutines",
}

// registerDefaults makes every key known to viper so that environment
// variables are honoured even when no config file exists.
func registerDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("shutdown_timeout", DefaultShutdownTimeout)

	v.SetDefault("cache.path", DefaultCacheDir)
	v.SetDefault("cache.size", uint64(DefaultCacheSize))

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.port", DefaultAPIPort)
	v.SetDefault("api.read_timeout", 10*time.Second)
	v.SetDefault("api.write_timeout", 10*time.Second)
	v.SetDefault("api.idle_timeout", 60*time.Second)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", DefaultMetricsPort)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", DefaultOTLPEndpoint)
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sample_rate", 1.0)
	v.SetDefault("telemetry.profiling.enabled", false)
	v.SetDefault("telemetry.profiling.endpoint", DefaultPyroscopeURL)
	v.SetDefault("telemetry.profiling.profile_types", defaultProfileTypes)
}

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", nil) are replaced with defaults; explicit values are preserved.
// Booleans, ports and the sample rate are left alone since 0 is meaningful for
// them (port 0 binds an OS-assigned port, rate 0 samples nothing); their
// defaults come from registerDefaults.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	applyCacheDefaults(&cfg.Cache)
	applyAPIDefaults(&cfg.API)
	applyTelemetryDefaults(&cfg.Telemetry)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	cfg.Format = strings.ToLower(cfg.Format)

	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Path == "" {
		cfg.Path = DefaultCacheDir
	}
	if cfg.Size == 0 {
		cfg.Size = DefaultCacheSize
	}
}

func applyAPIDefaults(cfg *APIConfig) {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
}

// applyTelemetryDefaults sets OpenTelemetry and Pyroscope defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultOTLPEndpoint
	}
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = DefaultPyroscopeURL
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = append([]string(nil), defaultProfileTypes...)
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{
		API:     APIConfig{Enabled: true, Port: DefaultAPIPort},
		Metrics: MetricsConfig{Port: DefaultMetricsPort},
		Telemetry: TelemetryConfig{
			Insecure:   true,
			SampleRate: 1.0,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
