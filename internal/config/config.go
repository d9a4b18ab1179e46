package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"ludo/internal/dice"
)

// Config holds the server settings.
type Config struct {
	Addr             string `json:"addr"`
	DBPath           string `json:"db_path"`
	LogLevel         string `json:"log_level"`
	RoomTTLSeconds   int    `json:"room_ttl_seconds"`
	CleanupSeconds   int    `json:"cleanup_interval_seconds"`
	RetentionHours   int    `json:"retention_hours"`
	AssistDifficulty string `json:"assist_difficulty"`
	// DiceWeights overrides the assist die table for AssistDifficulty when set.
	DiceWeights *dice.Weights `json:"dice_weights,omitempty"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:             ":8080",
		DBPath:           "ludo.db",
		LogLevel:         "info",
		RoomTTLSeconds:   15 * 60,
		CleanupSeconds:   60,
		RetentionHours:   24,
		AssistDifficulty: string(dice.Normal),
	}
}

// Load reads the optional JSON file at path over the defaults, then applies
// environment overrides (PORT, DB_PATH, LOG_LEVEL, ROOM_TTL).
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := json.Unmarshal(data, &c); err != nil {
			return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}
	if p := os.Getenv("PORT"); p != "" {
		c.Addr = ":" + p
	}
	if p := os.Getenv("DB_PATH"); p != "" {
		c.DBPath = p
	}
	if l := os.Getenv("LOG_LEVEL"); l != "" {
		c.LogLevel = l
	}
	if ttl := os.Getenv("ROOM_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return Config{}, fmt.Errorf("parse ROOM_TTL: %w", err)
		}
		c.RoomTTLSeconds = int(d.Seconds())
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks ranges and names.
func (c Config) Validate() error {
	if c.RoomTTLSeconds <= 0 {
		return fmt.Errorf("room_ttl_seconds must be positive")
	}
	if c.CleanupSeconds <= 0 {
		return fmt.Errorf("cleanup_interval_seconds must be positive")
	}
	if c.RetentionHours <= 0 {
		return fmt.Errorf("retention_hours must be positive")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if _, err := c.AssistWeights(); err != nil {
		return err
	}
	return nil
}

// RoomTTL is how long a waiting room lives.
func (c Config) RoomTTL() time.Duration {
	return time.Duration(c.RoomTTLSeconds) * time.Second
}

// CleanupInterval is the period of the room sweeper.
func (c Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupSeconds) * time.Second
}

// Retention is how long retired rooms are kept.
func (c Config) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// Level parses LogLevel.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// AssistWeights resolves the weight table of the pass-and-play die.
func (c Config) AssistWeights() (dice.Weights, error) {
	if c.DiceWeights != nil {
		return *c.DiceWeights, nil
	}
	return dice.WeightsFor(dice.Difficulty(c.AssistDifficulty))
}
