package config

import (
	"fmt"
	"strings"

	"splitstream/core/types"
	"splitstream/native/fees"
)

func Validate(cfg *Config) error {
	switch cfg.StorageBackend {
	case BackendMemory, BackendLevelDB, BackendBolt:
	default:
		return fmt.Errorf("storage: unknown backend %q", cfg.StorageBackend)
	}
	if cfg.FeeBps > fees.MaxFeeBps {
		return fmt.Errorf("fees: fee_bps %d exceeds maximum %d", cfg.FeeBps, fees.MaxFeeBps)
	}
	if cfg.FeeBps > 0 && strings.TrimSpace(cfg.FeeCollector) == "" {
		return fmt.Errorf("fees: fee_collector required when fee_bps > 0")
	}
	if cfg.FeeCollector != "" {
		if _, err := types.ParseAddress(cfg.FeeCollector); err != nil {
			return fmt.Errorf("fees: fee_collector: %w", err)
		}
	}
	if cfg.Admin != "" {
		if _, err := types.ParseAddress(cfg.Admin); err != nil {
			return fmt.Errorf("admin: %w", err)
		}
	}
	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: unknown level %q", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("log: unknown format %q", cfg.LogFormat)
	}
	return nil
}
