package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "factorylift.yaml"

type Config struct {
	Source struct {
		Path string `yaml:"path"` // export document or directory
	} `yaml:"source"`
	Mappings struct {
		Connections string `yaml:"connections"` // linked service -> connection id file
		Activities  string `yaml:"activities"`  // pipeline/activity -> connection id file
	} `yaml:"mappings"`
	Resolver struct {
		FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
		CacheSize      int     `yaml:"cache_size"`
	} `yaml:"resolver"`
	Transform struct {
		Workers      int      `yaml:"workers"`
		Verification string   `yaml:"verification"` // assume_supported | strict
		Supported    []string `yaml:"supported_types"`
	} `yaml:"transform"`
	Output struct {
		Dir         string `yaml:"dir"`
		DBPath      string `yaml:"db"`
		MetricsFile string `yaml:"metrics_file"`
		Workspace   string `yaml:"workspace"`
	} `yaml:"output"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text | json
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Resolver.FuzzyThreshold = 0.8
	cfg.Resolver.CacheSize = 1024
	cfg.Transform.Workers = 4
	cfg.Transform.Verification = "assume_supported"
	cfg.Output.Dir = "out"
	cfg.Output.DBPath = "factorylift.db"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return &cfg
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config over the defaults
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// 3. Override with Environment Variables if present
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("FACTORYLIFT_SOURCE"); v != "" {
		c.Source.Path = v
	}
	if v := os.Getenv("FACTORYLIFT_DB"); v != "" {
		c.Output.DBPath = v
	}
	if v := os.Getenv("FACTORYLIFT_OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv("FACTORYLIFT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("FACTORYLIFT_FUZZY_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("FACTORYLIFT_FUZZY_THRESHOLD: %w", err)
		}
		c.Resolver.FuzzyThreshold = f
	}
	if v := os.Getenv("FACTORYLIFT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FACTORYLIFT_WORKERS: %w", err)
		}
		c.Transform.Workers = n
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Resolver.FuzzyThreshold <= 0 || c.Resolver.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("resolver.fuzzy_threshold must be in (0,1], got %v", c.Resolver.FuzzyThreshold))
	}
	if c.Transform.Workers < 1 {
		errs = append(errs, fmt.Errorf("transform.workers must be at least 1, got %d", c.Transform.Workers))
	}
	switch strings.ToLower(c.Transform.Verification) {
	case "", "assume_supported", "strict":
	default:
		errs = append(errs, fmt.Errorf("transform.verification: unknown policy %q", c.Transform.Verification))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
