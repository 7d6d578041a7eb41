package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnedkv/pkg/common"
)

func TestLoadDefaults(t *testing.T) {
	_, err := Load("/nonexistent/path/learnedkv.yaml")
	require.Error(t, err, "expected error for nonexistent path")

	// Load with empty path uses default search (may use defaults if no config file)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Index.Epsilon)
	assert.Equal(t, 4, cfg.Index.EpsilonRecursive)
	assert.Equal(t, 8, cfg.Dynamic.Base)
	assert.Equal(t, 128, cfg.Dynamic.BufferCapacity)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	content := `
index:
  epsilon: 16
  parallelism: 4
dynamic:
  base: 4
  buffer_capacity: 16
  bloom_false_prob: 0
log:
  level: debug
  development: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Index.Epsilon)
	assert.Equal(t, 4, cfg.Index.EpsilonRecursive, "unset field keeps its default")
	assert.Equal(t, 4, cfg.Index.Parallelism)
	assert.Equal(t, 4, cfg.Dynamic.Base)
	assert.Equal(t, 16, cfg.Dynamic.BufferCapacity)
	assert.Equal(t, 32, cfg.Dynamic.BufferDegree)
	assert.Zero(t, cfg.Dynamic.BloomFalseProb)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsInvalidParameters(t *testing.T) {
	testList := []struct {
		desc   string
		mutate func(*Config)
	}{
		{desc: "negative epsilon", mutate: func(c *Config) { c.Index.Epsilon = -1 }},
		{desc: "zero recursive epsilon", mutate: func(c *Config) { c.Index.EpsilonRecursive = 0 }},
		{desc: "base of one", mutate: func(c *Config) { c.Dynamic.Base = 1 }},
		{desc: "negative buffer", mutate: func(c *Config) { c.Dynamic.BufferCapacity = -5 }},
		{desc: "bloom probability of one", mutate: func(c *Config) { c.Dynamic.BloomFalseProb = 1 }},
	}

	for _, tc := range testList {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrConfiguration))
		})
	}
}

func TestLoadKeepsExplicitInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dynamic:\n  base: 1\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Validate(), common.ErrConfiguration)
}
