// Package config loads Social Weight scoring configuration from YAML files.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/socialweight/socialweight/pkg/scoring"
)

// Dir and FileName locate the project configuration file.
const (
	Dir      = ".socialweight"
	FileName = "config.yaml"
)

// Config is the file representation of the scoring configuration.
type Config struct {
	Weights scoring.WeightConfig    `yaml:"weights"`
	Tiers   []scoring.TierThreshold `yaml:"tiers"`
}

// DefaultConfig returns a Config with the built-in weights and tiers.
func DefaultConfig() *Config {
	return &Config{
		Weights: scoring.Defaults(),
		Tiers:   scoring.DefaultTiers(),
	}
}

// Load reads a config file from the given path. Keys the file leaves out keep
// their defaults; a tiers list replaces the default tiers entirely.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// LoadFile is Load without the fallback: a missing file is an error.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weights in %s: %w", path, err)
	}
	if _, err := scoring.NewTiers(cfg.Tiers); err != nil {
		return nil, fmt.Errorf("invalid tiers in %s: %w", path, err)
	}
	return cfg, nil
}

// Scoring converts the file config to the engine's form.
func (c *Config) Scoring() (*scoring.Config, error) {
	tiers, err := scoring.NewTiers(c.Tiers)
	if err != nil {
		return nil, err
	}
	return &scoring.Config{Weights: c.Weights, Tiers: tiers}, nil
}

// FileProvider serves the configuration of one file, read once.
type FileProvider struct {
	cfg *scoring.Config
}

// NewFileProvider loads path, which must exist.
func NewFileProvider(path string) (*FileProvider, error) {
	c, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := c.Scoring()
	if err != nil {
		return nil, err
	}
	return &FileProvider{cfg: cfg}, nil
}

func (p *FileProvider) Config(ctx context.Context) (*scoring.Config, error) {
	return p.cfg, nil
}

// FindConfigFile looks for .socialweight/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, Dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
