// Package config loads the process-wide environment configuration:
// cache byte budget, shard count, sweeper interval, restore window R,
// versioning strategy, codec choice, epoch-tracker capacity, and the
// debug flag gating leak diagnostics. Parsed from YAML via
// gopkg.in/yaml.v3, layered over a pre-populated set of defaults rather
// than a zero value.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sirixgo/sirixgo/codec"
	"github.com/sirixgo/sirixgo/version"
)

// Config is the process-wide buffer manager configuration.
type Config struct {
	CacheByteBudget    int64         `yaml:"cache_byte_budget"`
	ShardCount         int           `yaml:"shard_count"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
	RestoreWindow      int           `yaml:"restore_window"`
	VersioningStrategy string        `yaml:"versioning_strategy"`
	Codec              codec.Name    `yaml:"codec"`
	EpochCapacity      int           `yaml:"epoch_capacity"`
	Debug              bool          `yaml:"debug"`
}

// Default returns the out-of-the-box configuration used when no file is
// supplied: a restore window and shard count within the typical ranges
// for a moderately sized resource.
func Default() Config {
	return Config{
		CacheByteBudget:    256 << 20,
		ShardCount:         64,
		SweepInterval:      100 * time.Millisecond,
		RestoreWindow:      3,
		VersioningStrategy: version.SlidingSnapshot.String(),
		Codec:              codec.LZ4,
		EpochCapacity:      1024,
		Debug:              false,
	}
}

// Load parses a YAML document into a Config seeded with Default()'s
// values, so a partial file only needs to override what differs.
func Load(data []byte) (Config, error) {
	cfg := Default()
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// Strategy parses VersioningStrategy into a version.Strategy.
func (c Config) Strategy() (version.Strategy, error) {
	switch c.VersioningStrategy {
	case version.Full.String():
		return version.Full, nil
	case version.Differential.String():
		return version.Differential, nil
	case version.Incremental.String():
		return version.Incremental, nil
	case version.SlidingSnapshot.String():
		return version.SlidingSnapshot, nil
	default:
		return 0, fmt.Errorf("config: unknown versioning strategy %q", c.VersioningStrategy)
	}
}

// Marshal serialises cfg back to YAML, e.g. to persist an
// auto-assigned default alongside a resource configuration blob.
func (c Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("config: encode: %w", err)
	}
	return data, nil
}
