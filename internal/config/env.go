package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment overrides, applied by the CLI after the file is loaded.
const (
	EnvSeed  = "INSMARKET_SEED"
	EnvYears = "INSMARKET_YEARS"
)

// ApplyEnv overrides seed and run length from the environment.
func ApplyEnv(c *Config) error {
	if v := os.Getenv(EnvSeed); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSeed, err)
		}
		c.Seed = seed
	}
	if v := os.Getenv(EnvYears); v != "" {
		years, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvYears, err)
		}
		c.Years = years
	}
	return nil
}

// EnvOrDefault returns the environment value of key, or defaultVal when unset.
func EnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// EnvIntOrDefault is EnvOrDefault for integers; unparsable values fall back
// to the default.
func EnvIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
