package utils

import "os"

// ParseWithFallback reads an environment variable, falling back when unset or
// empty. For the handful of knobs not worth a config field.
func ParseWithFallback(envName string, fallback string) string {
	result := os.Getenv(envName)
	if result == "" {
		result = fallback
	}

	return result
}
