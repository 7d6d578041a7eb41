package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"learnedkv/pkg/common"
)

type Config struct {
	Index   IndexConfig   `yaml:"index"`
	Dynamic DynamicConfig `yaml:"dynamic"`
	Log     LogConfig     `yaml:"log"`
}

type IndexConfig struct {
	Epsilon          int `yaml:"epsilon"`           // max error on the data level
	EpsilonRecursive int `yaml:"epsilon_recursive"` // max error on the upper levels
	Parallelism      int `yaml:"parallelism"`
}

type DynamicConfig struct {
	Base           int     `yaml:"base"`
	BufferCapacity int     `yaml:"buffer_capacity"`
	BufferDegree   int     `yaml:"buffer_degree"`
	BloomFalseProb float64 `yaml:"bloom_false_prob"` // 0 disables the per-level filters
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() *Config {
	return &Config{
		Index: IndexConfig{
			Epsilon:          64,
			EpsilonRecursive: 4,
			Parallelism:      1,
		},
		Dynamic: DynamicConfig{
			Base:           8,
			BufferCapacity: 128,
			BufferDegree:   32,
			BloomFalseProb: 0.01,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		for _, p := range []string{"configs/learnedkv.yaml", "learnedkv.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return cfg, err
				}
				applyDefaults(cfg)
				return cfg, nil
			}
		}
		return cfg, nil // no file found: use defaults
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills fields left unset by the file. Explicitly invalid
// values (negative epsilon, base 1, ...) are kept so Validate reports them.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Index.Epsilon == 0 {
		cfg.Index.Epsilon = def.Index.Epsilon
	}
	if cfg.Index.EpsilonRecursive == 0 {
		cfg.Index.EpsilonRecursive = def.Index.EpsilonRecursive
	}
	if cfg.Index.Parallelism <= 0 {
		cfg.Index.Parallelism = def.Index.Parallelism
	}
	if cfg.Dynamic.Base == 0 {
		cfg.Dynamic.Base = def.Dynamic.Base
	}
	if cfg.Dynamic.BufferCapacity == 0 {
		cfg.Dynamic.BufferCapacity = def.Dynamic.BufferCapacity
	}
	if cfg.Dynamic.BufferDegree < 2 {
		cfg.Dynamic.BufferDegree = def.Dynamic.BufferDegree
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
}

// Validate reports the first invalid parameter, wrapped in common.ErrConfiguration.
func (c *Config) Validate() error {
	switch {
	case c.Index.Epsilon <= 0:
		return fmt.Errorf("%w: index.epsilon must be positive, got %d", common.ErrConfiguration, c.Index.Epsilon)
	case c.Index.EpsilonRecursive <= 0:
		return fmt.Errorf("%w: index.epsilon_recursive must be positive, got %d", common.ErrConfiguration, c.Index.EpsilonRecursive)
	case c.Dynamic.Base <= 1:
		return fmt.Errorf("%w: dynamic.base must be greater than 1, got %d", common.ErrConfiguration, c.Dynamic.Base)
	case c.Dynamic.BufferCapacity <= 0:
		return fmt.Errorf("%w: dynamic.buffer_capacity must be positive, got %d", common.ErrConfiguration, c.Dynamic.BufferCapacity)
	case c.Dynamic.BloomFalseProb < 0 || c.Dynamic.BloomFalseProb >= 1:
		return fmt.Errorf("%w: dynamic.bloom_false_prob must be in [0, 1), got %g", common.ErrConfiguration, c.Dynamic.BloomFalseProb)
	}
	return nil
}
