// Package seeder provisions a demo warehouse: it creates the four tables
// and fills them with deterministic synthetic activity so the service can
// be exercised without production data.
package seeder

import (
	"fmt"
	"strconv"
	"strings"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	// Users is the approximate number of users generated across the
	// whole history window.
	Users int
	// Months is the length of the history window. Keep it >= 24 if the
	// demo should show high-confidence forecasts.
	Months int
	Seed   int64
}

func DefaultConfig() Config {
	return Config{
		Users:  600,
		Months: 30,
		Seed:   1,
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyInt(lookup, "WAREBOT_SEED_USERS", &cfg.Users); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "WAREBOT_SEED_MONTHS", &cfg.Months); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "WAREBOT_SEED_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}

	if cfg.Users <= 0 {
		return Config{}, fmt.Errorf("WAREBOT_SEED_USERS must be positive")
	}
	if cfg.Months <= 0 {
		return Config{}, fmt.Errorf("WAREBOT_SEED_MONTHS must be positive")
	}
	return cfg, nil
}

func applyInt(lookup LookupFunc, key string, target *int) error {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	*target = parsed
	return nil
}

func applyInt64(lookup LookupFunc, key string, target *int64) error {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	*target = parsed
	return nil
}
