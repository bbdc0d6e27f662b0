package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kass/go-geogrid/pkg/store"
)

// Config holds all application configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Raster RasterConfig `mapstructure:"raster"`
	Grid   GridConfig   `mapstructure:"grid"`
	Store  StoreConfig  `mapstructure:"store"`
	Render RenderConfig `mapstructure:"render"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RasterConfig struct {
	Divisor float64 `mapstructure:"divisor"`
}

type GridConfig struct {
	Default float64 `mapstructure:"default"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// RenderConfig sizes are in inches.
type RenderConfig struct {
	Width  float64 `mapstructure:"width"`
	Height float64 `mapstructure:"height"`
}

// Load reads configuration from an optional geogrid.yaml, a .env file and
// environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	v := viper.New()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("raster.divisor", 255.0)
	v.SetDefault("grid.default", 0.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "geogrid.db")
	v.SetDefault("render.width", 6.0)
	v.SetDefault("render.height", 6.0)

	// Config file (optional)
	v.SetConfigName("geogrid")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// Environment variables: GEOGRID_STORE_DSN → store.dsn
	v.SetEnvPrefix("GEOGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Raster.Divisor == 0 {
		errs = append(errs, "raster.divisor must be non-zero")
	}
	if _, err := store.ParseDialect(c.Store.Driver); err != nil {
		errs = append(errs, fmt.Sprintf("store.driver: %v", err))
	}
	if c.Store.DSN == "" {
		errs = append(errs, "store.dsn is required")
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		errs = append(errs, fmt.Sprintf("render size must be positive, got %gx%g", c.Render.Width, c.Render.Height))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
