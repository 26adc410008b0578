package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr       string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath         string     `env:"DB_PATH" envDefault:"data/packs.db"`
	LogLevel       slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	MaxUploadBytes int64      `env:"MAX_UPLOAD_BYTES" envDefault:"536870912"`

	// Zero disables the item and question limits.
	ImportConcurrency   int   `env:"IMPORT_CONCURRENCY" envDefault:"8"`
	ImportMaxDepth      int   `env:"IMPORT_MAX_DEPTH" envDefault:"32"`
	ImportMaxItems      int   `env:"IMPORT_MAX_ITEMS" envDefault:"1000"`
	ImportMaxQuestions  int   `env:"IMPORT_MAX_QUESTIONS" envDefault:"5000"`
	ImportMaxEntryBytes int64 `env:"IMPORT_MAX_ENTRY_BYTES" envDefault:"268435456"`
	ImportMaxEntries    int   `env:"IMPORT_MAX_ENTRIES" envDefault:"10000"`

	FileCacheSize int           `env:"FILE_CACHE_SIZE" envDefault:"256"`
	FileCacheTTL  time.Duration `env:"FILE_CACHE_TTL" envDefault:"10m"`
}

// Load reads the configuration from the environment. Variables from a .env
// file in the working directory are applied first without overriding the
// real environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) validate() error {
	positive := map[string]int64{
		"MAX_UPLOAD_BYTES":       c.MaxUploadBytes,
		"IMPORT_CONCURRENCY":     int64(c.ImportConcurrency),
		"IMPORT_MAX_DEPTH":       int64(c.ImportMaxDepth),
		"IMPORT_MAX_ENTRY_BYTES": c.ImportMaxEntryBytes,
		"IMPORT_MAX_ENTRIES":     int64(c.ImportMaxEntries),
		"FILE_CACHE_SIZE":        int64(c.FileCacheSize),
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	return nil
}
