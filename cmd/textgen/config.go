package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/seboll13/TextGenerator/pkg/markov"
)

// Environment variables that override the config file.
const (
	envLogLevel  = "TEXTGEN_LOG_LEVEL"
	envLogFormat = "TEXTGEN_LOG_FORMAT"
	envDBPath    = "TEXTGEN_DB_PATH"
	envApiAddr   = "TEXTGEN_API_ADDR"
)

// ServerConfig holds the process-level settings: logging, storage and the
// HTTP API.
type ServerConfig struct {
	ApiAddr            string `json:"api_addr" yaml:"api_addr"`
	LogLevel           string `json:"log_level" yaml:"log_level"`
	LogFormat          string `json:"log_format" yaml:"log_format"`
	DatabasePath       string `json:"database_path" yaml:"database_path"`
	ShutdownTimeoutSec int    `json:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec"`
	MaxBodyBytes       int64  `json:"max_body_bytes" yaml:"max_body_bytes"`
}

// GenerationConfig holds the defaults used when training and sampling.
type GenerationConfig struct {
	DefaultMode string   `json:"default_mode" yaml:"default_mode"`
	MaxSteps    int      `json:"max_steps" yaml:"max_steps"`
	Temperature float64  `json:"temperature" yaml:"temperature"`
	TopK        int      `json:"top_k" yaml:"top_k"`
	Starters    []string `json:"starters" yaml:"starters"`
	FoldAccents bool     `json:"fold_accents" yaml:"fold_accents"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server     *ServerConfig     `json:"server_config" yaml:"server_config"`
	Generation *GenerationConfig `json:"generation_config" yaml:"generation_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ApiAddr:            ":7280",
		LogLevel:           "info",
		LogFormat:          "text",
		DatabasePath:       "./data/textgen.db",
		ShutdownTimeoutSec: 10,
		MaxBodyBytes:       32 << 20,
	}
}

// DefaultGenerationConfig reproduces plain weighted sampling with the
// default walk bound and starter set.
func DefaultGenerationConfig() *GenerationConfig {
	return &GenerationConfig{
		DefaultMode: markov.ModePlain.String(),
		MaxSteps:    markov.DefaultMaxSteps,
		Temperature: 1.0,
		TopK:        0,
		Starters:    append([]string(nil), markov.DefaultStarters...),
	}
}

// DefaultConfig returns a Config with every section set to its defaults.
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		Generation: DefaultGenerationConfig(),
	}
}

// LoadConfig reads the configuration from a JSON or YAML file at the given
// path, chosen by extension. If the file doesn't exist, it creates one with
// default values. Environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		data, err := marshalConfig(path, config)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
			// Defaults are still usable without a file on disk.
			fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
		}
	} else if err = unmarshalConfig(path, file, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Server == nil {
		config.Server = DefaultServerConfig()
	}
	if config.Generation == nil {
		config.Generation = DefaultGenerationConfig()
	}
	applyEnv(config)

	if err = config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the generator cannot work with.
func (c *Config) Validate() error {
	if _, ok := markov.ParseMode(c.Generation.DefaultMode); !ok {
		return fmt.Errorf("invalid default_mode %q", c.Generation.DefaultMode)
	}
	if c.Generation.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative, got %d", c.Generation.MaxSteps)
	}
	if c.Generation.TopK < 0 {
		return fmt.Errorf("top_k must not be negative, got %d", c.Generation.TopK)
	}
	if c.Server.DatabasePath == "" {
		return fmt.Errorf("database_path must be set")
	}
	return nil
}

// GenerateOptions translates the generation section into walk options.
func (g *GenerationConfig) GenerateOptions() []markov.GenerateOption {
	opts := []markov.GenerateOption{
		markov.WithMaxSteps(g.MaxSteps),
		markov.WithTemperature(g.Temperature),
		markov.WithTopK(g.TopK),
	}
	if len(g.Starters) > 0 {
		opts = append(opts, markov.WithStarters(g.Starters...))
	}
	return opts
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func marshalConfig(path string, config *Config) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(config)
	}
	return json.MarshalIndent(config, "", "  ")
}

func unmarshalConfig(path string, data []byte, config *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, config)
	}
	return json.Unmarshal(data, config)
}

func applyEnv(config *Config) {
	if v := os.Getenv(envLogLevel); v != "" {
		config.Server.LogLevel = v
	}
	if v := os.Getenv(envLogFormat); v != "" {
		config.Server.LogFormat = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		config.Server.DatabasePath = v
	}
	if v := os.Getenv(envApiAddr); v != "" {
		config.Server.ApiAddr = v
	}
}
