package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotConstants(t *testing.T) {
	assert.Equal(t, 96, SlotsPerDay)
	assert.Equal(t, "15m0s", SlotWidth.String())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("VTANA_DRIVER", DriverCgo)
	t.Setenv("VTANA_SYMMETRIC_K", "3")
	t.Setenv("VTANA_TRIM_PASSES", "4")
	t.Setenv("VTANA_LINEAGE_DIR", "/tmp/lineage")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverCgo, cfg.Driver)
	assert.Equal(t, 3.0, cfg.SymmetricK)
	assert.Equal(t, 4, cfg.TrimPasses)
	assert.Equal(t, "/tmp/lineage", cfg.LineageDir)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("VTANA_TRIM_PASSES", "many")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"driver", func(c *Config) { c.Driver = "postgres" }},
		{"symmetric k", func(c *Config) { c.SymmetricK = 0 }},
		{"twitch k", func(c *Config) { c.TwitchK = -1 }},
		{"passes", func(c *Config) { c.TrimPasses = 0 }},
		{"floor", func(c *Config) { c.ViewerFloor = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}
