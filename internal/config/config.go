// Package config reads deployment settings from the environment, with
// an optional .env file for local runs.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config is everything the process needs to come up.
type Config struct {
	// GameAddr is the raw-stream game port.
	GameAddr string
	// HTTPAddr is the registration/login web surface.
	HTTPAddr string
	// DatabaseURL is the postgres DSN; empty selects the in-memory
	// store (dev only, nothing survives a restart).
	DatabaseURL string
	// AssetsDir holds the game-balance tables.
	AssetsDir string
}

// Load reads the environment. A missing .env file is fine; explicit
// environment variables always win.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		GameAddr:    envOr("WO_GAME_ADDR", ":8000"),
		HTTPAddr:    envOr("WO_HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("WO_DATABASE_URL"),
		AssetsDir:   envOr("WO_ASSETS_DIR", "assets"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
