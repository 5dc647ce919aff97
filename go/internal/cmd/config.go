package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/todoroom/go/internal/config"
)

// loadSettings reads the environment, configures logging and loads room presets.
func loadSettings() (config.Config, *config.Presets, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := config.SetupLogging(cfg.LogLevel); err != nil {
		return config.Config{}, nil, err
	}

	presets, err := config.LoadPresets(cfg.PresetsPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to load room presets: %w", err)
	}

	log.Info().
		Str("storage_driver", cfg.StorageDriver).
		Int("default_point_cap", presets.Defaults.PointCap).
		Str("default_matching_type", string(presets.Defaults.MatchingType)).
		Msg("configuration loaded")
	return cfg, presets, nil
}
