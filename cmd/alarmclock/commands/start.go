package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marmos91/alarmclock/internal/logger"
	"github.com/marmos91/alarmclock/internal/telemetry"
	"github.com/marmos91/alarmclock/pkg/app"
	"github.com/marmos91/alarmclock/pkg/cachedir"
	"github.com/marmos91/alarmclock/pkg/config"
	"github.com/marmos91/alarmclock/pkg/metrics"
	"github.com/marmos91/alarmclock/pkg/supervisor"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/alarmclock/pkg/metrics/prometheus"
)

var startCmd = &cobra.Command{
	Use:   StartCommand,
	Short: "Start the Alarm Clock service",
	Long: `Start the Alarm Clock service in the foreground.

The cache directory is prepared first, then the application is constructed
and supervised until SIGINT or SIGTERM. Teardown is bounded by
shutdown_timeout (default 30s).

Examples:
  # Start with default config location
  alarmclock start

  # Start with custom config file
  alarmclock start --config /etc/alarmclock/config.yaml

  # Start with environment variable overrides
  ALARMCLOCK_LOGGING_LEVEL=DEBUG ALARMCLOCK_CACHE_PATH=/tmp/cache alarmclock`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRoot(cmd, []string{StartCommand})
	},
}

// startAlarmClock runs the whole lifecycle. With the production exit function
// it only returns on configuration or construction failure.
func startAlarmClock(ctx context.Context) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	instanceID := uuid.NewString()
	ctx = logger.WithContext(ctx, logger.NewLogContext(instanceID).WithComponent("supervisor"))

	var cleanups []supervisor.Cleanup
	runCleanups := func() {
		for _, c := range cleanups {
			if err := c.Fn(); err != nil {
				logger.Warn("Cleanup failed", logger.KeyComponent, c.Name, logger.KeyError, err)
			}
		}
	}

	tracing, profiling := telemetry.FromSettings(cfg.Telemetry, Version, instanceID)

	telemetryShutdown, err := telemetry.Init(ctx, tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	cleanups = append(cleanups, supervisor.Cleanup{Name: "telemetry", Fn: func() error {
		return telemetryShutdown(context.Background())
	}})

	profilingShutdown, err := telemetry.InitProfiling(profiling)
	if err != nil {
		runCleanups()
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	cleanups = append(cleanups, supervisor.Cleanup{Name: "profiling", Fn: profilingShutdown})

	logger.InfoCtx(ctx, "Configuration loaded", logger.KeySource, getConfigSource(GetConfigFile()))
	logger.Debug("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	}

	// Initialize metrics FIRST so NewSupervisorMetrics sees the registry
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", logger.KeyPort, cfg.Metrics.Port)
	}

	if path := config.ResolvePath(GetConfigFile()); path != "" {
		watcher, err := config.Watch(path, applyReloadedConfig)
		if err != nil {
			logger.Warn("Config hot reload disabled", logger.KeyPath, path, logger.KeyError, err)
		} else {
			cleanups = append(cleanups, supervisor.Cleanup{Name: "config-watcher", Fn: watcher.Close})
		}
	}

	cleanups = append(cleanups, supervisor.Cleanup{Name: "logger", Fn: logger.Close})

	cache := cachedir.New(nil)
	build := func(ctx context.Context) (supervisor.Application, error) {
		warnIfCacheOverCapacity(cache, cfg.Cache.Size)

		a, err := app.New(ctx, app.Options{
			InstanceID: instanceID,
			CacheDir:   cache.Path(),
			CacheUsage: cache.Usage,
			API:        cfg.API,
			Metrics:    cfg.Metrics,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	}

	err = supervisor.Launch(ctx, cache, cfg.Cache.Path, build, supervisor.Options{
		ShutdownTimeout: cfg.ShutdownTimeout,
		Cleanups:        cleanups,
		Metrics:         metrics.NewSupervisorMetrics(),
		InstanceID:      instanceID,
	})
	if err != nil {
		runCleanups()
	}
	return err
}

// warnIfCacheOverCapacity logs when the cache directory already holds more
// than its advisory size.
func warnIfCacheOverCapacity(cache *cachedir.Dir, capacity config.ByteSize) {
	used, err := cache.Usage()
	if err != nil {
		logger.Warn("Failed to measure cache directory", logger.KeyPath, cache.Path(), logger.KeyError, err)
		return
	}

	logger.Debug("Cache directory ready", logger.KeyPath, cache.Path(),
		logger.KeySize, config.ByteSize(used).String(), "capacity", capacity.String())

	if capacity > 0 && used > uint64(capacity) {
		logger.Warn("Cache directory exceeds configured size", logger.KeyPath, cache.Path(),
			logger.KeySize, config.ByteSize(used).String(), "capacity", capacity.String())
	}
}
