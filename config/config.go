// Package config loads chess-lab settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jacokyle01/chess-lab/engine"
	"github.com/jacokyle01/chess-lab/review"
)

// Config is the full application configuration.
type Config struct {
	Engine EngineConfig  `yaml:"engine"`
	Play   PlayConfig    `yaml:"play"`
	Review review.Config `yaml:"review"`
	Server ServerConfig  `yaml:"server"`
}

type EngineConfig struct {
	Path string `yaml:"path"`
	Seed uint64 `yaml:"seed"` // selector seed, 0 picks one at startup
}

type PlayConfig struct {
	Skill     engine.SkillRange `yaml:"skill"`
	Elo       int               `yaml:"elo"`
	ErrorBias float64           `yaml:"error_bias"`
	Depth     int               `yaml:"depth"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Engine: EngineConfig{Path: "stockfish"},
		Play: PlayConfig{
			Skill: engine.DefaultSkillRange,
			Elo:   1200,
			Depth: 12,
		},
		Review: review.Config{Depth: 14, TimeMS: 1500},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read the config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges that would break the skill mapping.
func (c Config) Validate() error {
	s := c.Play.Skill
	if s.Max <= s.Min {
		return fmt.Errorf("play.skill: max (%d) must exceed min (%d)", s.Max, s.Min)
	}
	if c.Play.ErrorBias < -1 || c.Play.ErrorBias > 1 {
		return fmt.Errorf("play.error_bias %.2f outside [-1, 1]", c.Play.ErrorBias)
	}
	if c.Review.TimeMS <= 0 {
		return fmt.Errorf("review.time_ms must be positive")
	}
	return nil
}

// Encode writes cfg to w as YAML.
func Encode(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// Write stores cfg as YAML at path.
func Write(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create the config file: %w", err)
	}
	if err := Encode(f, cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
