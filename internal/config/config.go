package config

import (
	"fmt"
	"os"

	"cdhsearch/internal/decode"
	"cdhsearch/internal/feature"
	"cdhsearch/internal/retrieval"
	"cdhsearch/internal/similarity"
	"cdhsearch/pkg/logger"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Feature FeatureConfig `yaml:"feature"`
	Scoring ScoringConfig `yaml:"scoring"`
	Ingest  IngestConfig  `yaml:"ingest"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	Mode        string `yaml:"mode"` // gin mode: debug, release or test
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type FeatureConfig struct {
	Bins          int    `yaml:"bins"`
	ImageSize     uint   `yaml:"image_size"`
	Interpolation string `yaml:"interpolation"`
}

type ScoringConfig struct {
	similarity.Weights `yaml:",inline"`
	TopK               int `yaml:"top_k"`
}

type IngestConfig struct {
	Workers   int `yaml:"workers"`
	CacheSize int `yaml:"cache_size"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			Mode:        "release",
			MaxUploadMB: 64,
		},
		Log: LogConfig{Level: logger.InfoLevel},
		Feature: FeatureConfig{
			Bins:          feature.DefaultBins,
			ImageSize:     decode.DefaultSize,
			Interpolation: "bilinear",
		},
		Scoring: ScoringConfig{
			Weights: similarity.DefaultWeights,
			TopK:    retrieval.DefaultTopK,
		},
		Ingest: IngestConfig{
			Workers:   1,
			CacheSize: 128,
		},
	}
}

// FromFile reads a YAML file over the defaults and validates the result.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if err := feature.ValidateBins(c.Feature.Bins); err != nil {
		return fmt.Errorf("config: feature.bins: %w", err)
	}
	if c.Feature.ImageSize < 2 {
		return fmt.Errorf("config: feature.image_size must be at least 2, got %d", c.Feature.ImageSize)
	}
	if err := c.Scoring.Weights.Validate(); err != nil {
		return fmt.Errorf("config: scoring: %w", err)
	}
	if c.Scoring.TopK <= 0 {
		return fmt.Errorf("config: scoring.top_k must be positive, got %d", c.Scoring.TopK)
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("config: ingest.workers must be positive, got %d", c.Ingest.Workers)
	}
	if c.Ingest.CacheSize < 0 {
		return fmt.Errorf("config: ingest.cache_size must not be negative, got %d", c.Ingest.CacheSize)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("config: server.max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}
	return nil
}
