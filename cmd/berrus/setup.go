package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/aatumaykin/berrus-helper/internal/config"
	"github.com/aatumaykin/berrus-helper/internal/logger"
)

const defaultConfigPath = "config.toml"

// loadConfig reads .env, then the configuration. Without --config a missing
// ./config.toml means defaults.
func loadConfig() (*config.Config, string, error) {
	if err := config.LoadEnvOptional(envPath); err != nil {
		return nil, "", fmt.Errorf("failed to load %s: %w", envPath, err)
	}

	path := configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); errors.Is(err, fs.ErrNotExist) {
			cfg := config.Default()
			applyOverrides(cfg)
			return cfg, "", nil
		}
		path = defaultConfigPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	applyOverrides(cfg)
	return cfg, path, nil
}

func applyOverrides(cfg *config.Config) {
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}

// loadValidConfig is loadConfig followed by Validate.
func loadValidConfig() (*config.Config, string, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, path, err
	}
	if err := validationError(cfg.Validate()); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func validationError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		lines = append(lines, "  - "+e.Error())
	}
	return fmt.Errorf("configuration validation failed:\n%s", strings.Join(lines, "\n"))
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetDefault(log)
	return log, nil
}
