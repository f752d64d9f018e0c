// Package config loads server settings from defaults, an optional config
// file, a .env file and TETRIS_* environment variables, in increasing
// precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "TETRIS"

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Addr              string        `mapstructure:"addr"`
	LogLevel          string        `mapstructure:"log_level"`
	LogFormat         string        `mapstructure:"log_format"`
	DatabaseURL       string        `mapstructure:"database_url"`
	TickInterval      time.Duration `mapstructure:"tick_interval"`
	DefaultMaxPlayers int           `mapstructure:"default_max_players"`
	MaxPlayersLimit   int           `mapstructure:"max_players_limit"`
	SendBuffer        int           `mapstructure:"send_buffer"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	BoardRows         int           `mapstructure:"board_rows"`
	BoardCols         int           `mapstructure:"board_cols"`
	HistoryLimit      int           `mapstructure:"history_limit"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("database_url", "")
	v.SetDefault("tick_interval", time.Second/60)
	v.SetDefault("default_max_players", 4)
	v.SetDefault("max_players_limit", 8)
	v.SetDefault("send_buffer", 256)
	v.SetDefault("write_timeout", 3*time.Second)
	v.SetDefault("board_rows", 20)
	v.SetDefault("board_cols", 10)
	v.SetDefault("history_limit", 100)
}

// Load reads the configuration. An empty path skips the config file; a .env
// file in the working directory is optional.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.BoardRows < 4 || c.BoardCols < 4:
		return fmt.Errorf("%w: board must be at least 4x4, got %dx%d", ErrInvalid, c.BoardRows, c.BoardCols)
	case c.TickInterval <= 0:
		return fmt.Errorf("%w: tick_interval must be positive", ErrInvalid)
	case c.MaxPlayersLimit < 1:
		return fmt.Errorf("%w: max_players_limit must be at least 1", ErrInvalid)
	case c.DefaultMaxPlayers < 1 || c.DefaultMaxPlayers > c.MaxPlayersLimit:
		return fmt.Errorf("%w: default_max_players must be between 1 and %d", ErrInvalid, c.MaxPlayersLimit)
	case c.SendBuffer < 1:
		return fmt.Errorf("%w: send_buffer must be at least 1", ErrInvalid)
	case c.WriteTimeout <= 0:
		return fmt.Errorf("%w: write_timeout must be positive", ErrInvalid)
	}
	return nil
}
