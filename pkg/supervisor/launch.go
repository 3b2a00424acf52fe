package supervisor

import (
	"context"
	"fmt"

	"github.com/marmos91/alarmclock/internal/logger"
	"github.com/marmos91/alarmclock/internal/telemetry"
	"github.com/marmos91/alarmclock/pkg/cachedir"
)

// Constructor builds the application. It runs synchronously and either
// returns a running application or an error.
type Constructor func(ctx context.Context) (Application, error)

// Launch configures the cache directory, constructs the application and
// supervises it until shutdown.
//
// Configuration and construction failures are returned wrapped in
// ErrConfiguration and ErrConstruction. In both cases no supervisor is created,
// no signal handler is registered and nothing is torn down.
func Launch(ctx context.Context, cfgr cachedir.Configurator, cacheDir string, build Constructor, opts Options) error {
	app, err := prepare(ctx, cfgr, cacheDir, build)
	if err != nil {
		return err
	}

	return New(app, opts).Run(ctx)
}

func prepare(ctx context.Context, cfgr cachedir.Configurator, cacheDir string, build Constructor) (Application, error) {
	ctx, span := telemetry.StartStartupSpan(ctx, telemetry.CacheDir(cacheDir))
	defer span.End()

	if err := cfgr.SetCacheDir(cacheDir); err != nil {
		err = fmt.Errorf("%w: %w", ErrConfiguration, err)
		telemetry.RecordError(ctx, err)
		logger.Error("Failed to configure cache directory", logger.KeyPath, cacheDir, logger.KeyError, err)
		return nil, err
	}

	logger.Info("Alarm Clock starting...")

	app, err := build(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrConstruction, err)
		telemetry.RecordError(ctx, err)
		logger.Error("Failed to start alarm-clock", logger.KeyError, err)
		return nil, err
	}

	return app, nil
}
