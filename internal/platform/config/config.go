// Package config reads process settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Load seeds the environment from the given .env files, ".env" when none are
// named. Variables already present in the environment keep their values. A
// missing file is reported; callers that treat .env as optional ignore it.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the trimmed value of key, or fallback when it is unset or blank.
func GetEnv(key, fallback string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return fallback
}
