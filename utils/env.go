package utils

import "os"

// GetEnv returns the environment variable value or the fallback when unset.
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
