package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sirixgo/sirixgo/config"
)

func TestLoadEmptyDataReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(nil)
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)
}

func TestLoadOverridesOnlyProvidedFields(t *testing.T) {
	yamlDoc := []byte("shard_count: 8\ndebug: true\n")
	cfg, err := config.Load(yamlDoc)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.ShardCount)
	require.True(t, cfg.Debug)
	require.Equal(t, config.Default().CacheByteBudget, cfg.CacheByteBudget)
}

func TestStrategyParsesKnownNames(t *testing.T) {
	cfg := config.Default()
	cfg.VersioningStrategy = "INCREMENTAL"
	strategy, err := cfg.Strategy()
	require.NoError(t, err)
	require.Equal(t, "INCREMENTAL", strategy.String())
}

func TestStrategyRejectsUnknownName(t *testing.T) {
	cfg := config.Default()
	cfg.VersioningStrategy = "bogus"
	_, err := cfg.Strategy()
	require.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := config.Default()
	data, err := cfg.Marshal()
	require.NoError(t, err)

	loaded, err := config.Load(data)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}
