package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seboll13/TextGenerator/pkg/markov"
)

func TestLoadConfig_WritesDefaults(t *testing.T) {
	for _, name := range []string{"config.json", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			cfg, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, DefaultConfig(), cfg)
			require.FileExists(t, path)

			// The written file must load back to the same values.
			again, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, again)
		})
	}
}

func TestLoadConfig_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := "generation_config:\n  default_mode: tagged\n  top_k: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "tagged", cfg.Generation.DefaultMode)
	assert.Equal(t, 3, cfg.Generation.TopK)
	assert.Equal(t, markov.DefaultMaxSteps, cfg.Generation.MaxSteps)
	assert.Equal(t, DefaultServerConfig(), cfg.Server)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv(envDBPath, "/tmp/other.db")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envApiAddr, "127.0.0.1:9999")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.Server.DatabasePath)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.ApiAddr)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `{"server_config":`},
		{"unknown mode", `{"generation_config":{"default_mode":"trigram"}}`},
		{"negative steps", `{"generation_config":{"max_steps":-1}}`},
		{"negative top k", `{"generation_config":{"top_k":-2}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0o644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLogLevel("Debug").String())
	assert.Equal(t, "WARN", parseLogLevel("warn").String())
	assert.Equal(t, "INFO", parseLogLevel("nonsense").String())
}
