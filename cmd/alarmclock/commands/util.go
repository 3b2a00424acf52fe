package commands

import (
	"fmt"

	"github.com/marmos91/alarmclock/internal/logger"
	"github.com/marmos91/alarmclock/pkg/config"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// getConfigSource describes where the configuration came from.
func getConfigSource(configFile string) string {
	if path := config.ResolvePath(configFile); path != "" {
		return path
	}
	return "defaults"
}

// applyReloadedConfig applies the settings that can change without a restart.
func applyReloadedConfig(cfg *config.Config) {
	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	logger.Info("Configuration reloaded", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
}
