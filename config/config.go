package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		MaxUploadBytes int64         `yaml:"max_upload_bytes"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"http"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	ML struct {
		ModelPath       string  `yaml:"model_path"`
		Seed            int64   `yaml:"seed"`
		TestRatio       float64 `yaml:"test_ratio"`
		Trees           int     `yaml:"trees"`
		MaxDepth        int     `yaml:"max_depth"`
		MinSamplesSplit int     `yaml:"min_samples_split"`
		MinSamplesLeaf  int     `yaml:"min_samples_leaf"`
	} `yaml:"ml"`
	Sessions struct {
		Capacity       int `yaml:"capacity"`
		RequiredFields int `yaml:"required_fields"`
	} `yaml:"sessions"`
	Dataset struct {
		Target   string        `yaml:"target"`
		WatchDir string        `yaml:"watch_dir"`
		Debounce time.Duration `yaml:"debounce"`
	} `yaml:"dataset"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// Load reads a YAML file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Http.Port == 0 {
		c.Http.Port = 8080
	}
	if c.Http.Timeout == 0 {
		c.Http.Timeout = 60 * time.Second
	}
	if c.Http.MaxUploadBytes == 0 {
		c.Http.MaxUploadBytes = 32 << 20
	}
	if len(c.Http.AllowedOrigins) == 0 {
		c.Http.AllowedOrigins = []string{"*"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 28
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/messforecast.db"
	}
	if c.ML.Seed == 0 {
		c.ML.Seed = 42
	}
	if c.ML.TestRatio == 0 {
		c.ML.TestRatio = 0.2
	}
	if c.ML.Trees == 0 {
		c.ML.Trees = 200
	}
	if c.Sessions.Capacity == 0 {
		c.Sessions.Capacity = 1024
	}
	if c.Sessions.RequiredFields == 0 {
		c.Sessions.RequiredFields = 6
	}
	if c.Dataset.Target == "" {
		c.Dataset.Target = "students_present"
	}
	if c.Dataset.Debounce == 0 {
		c.Dataset.Debounce = 500 * time.Millisecond
	}
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if c.Http.Port < 0 || c.Http.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.Http.Port)
	}
	if c.ML.TestRatio <= 0 || c.ML.TestRatio >= 1 {
		return fmt.Errorf("ml.test_ratio %g must be between 0 and 1", c.ML.TestRatio)
	}
	if c.ML.Trees < 0 || c.ML.MaxDepth < 0 {
		return errors.New("ml.trees and ml.max_depth must not be negative")
	}
	if c.Sessions.Capacity < 0 || c.Sessions.RequiredFields < 0 {
		return errors.New("sessions values must not be negative")
	}
	return nil
}
