package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/cosim/internal/transfer"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "2d", cfg.Mode)
	assert.NotEmpty(t, cfg.Engines)
	assert.NotEmpty(t, cfg.Steps)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coupling.yaml")
	cfg := DefaultConfig()
	cfg.Transfer.Neighbors = 6
	cfg.Engines[0].Command = "run_solver.sh"
	cfg.Engines[0].TimeoutSeconds = 120

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no engines", func(c *Config) { c.Engines = nil }},
		{"no steps", func(c *Config) { c.Steps = nil }},
		{"duplicate engine", func(c *Config) { c.Engines[1].Name = c.Engines[0].Name }},
		{"unknown kind", func(c *Config) { c.Engines[0].Kind = "fem" }},
		{"no fields", func(c *Config) { c.Engines[0].Fields = nil }},
		{"transfer from unknown engine", func(c *Config) { c.Transfers[0].From = "nope" }},
		{"transfer to unknown engine", func(c *Config) { c.Transfers[0].To = "nope" }},
		{"transfer without field", func(c *Config) { c.Transfers[0].Field = "" }},
		{"unknown mode", func(c *Config) { c.Mode = "4d" }},
		{"duplicate step", func(c *Config) { c.Steps = []string{"a", "a"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestTransferOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "3d"
	cfg.Transfer.Neighbors = 4
	cfg.Transfer.MaxDistance = 2.5

	opts, err := cfg.TransferOptions()
	require.NoError(t, err)
	assert.Equal(t, transfer.Mode3D, opts.Mode)
	assert.Equal(t, 4, opts.Neighbors)
	assert.Equal(t, 2.5, opts.MaxDistance)
	assert.Nil(t, opts.Rigid)
}

func TestTransferOptionsRigid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transfer.Rotation = [][]float64{
		{0, -1, 0},
		{1, 0, 0},
		{0, 0, 1},
	}
	cfg.Transfer.Translation = []float64{1, 2, 3}

	opts, err := cfg.TransferOptions()
	require.NoError(t, err)
	require.NotNil(t, opts.Rigid)
	assert.Equal(t, [3]float64{1, 2, 3}, opts.Rigid.Translation)
	assert.Equal(t, -1.0, opts.Rigid.Rotation.At(0, 1))
}

func TestTransferOptionsBadRigid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transfer.Translation = []float64{1, 2}
	_, err := cfg.TransferOptions()
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Transfer.Rotation = [][]float64{{1, 0}, {0, 1}}
	_, err = cfg.TransferOptions()
	assert.Error(t, err)
}

func TestEngineDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkDir = "/tmp/run"
	assert.Equal(t, "/tmp/run/mechanical", cfg.EngineDir(cfg.Engines[0]))

	cfg.Engines[0].Dir = "/data/solver"
	assert.Equal(t, "/data/solver", cfg.EngineDir(cfg.Engines[0]))
}

func TestInboundTransfers(t *testing.T) {
	cfg := DefaultConfig()
	in := cfg.InboundTransfers("mechanical")
	require.Len(t, in, 1)
	assert.Equal(t, "flow", in[0].From)

	assert.Empty(t, cfg.InboundTransfers("nope"))
}

func TestPresetsAreValid(t *testing.T) {
	for _, name := range ListPresets() {
		cfg := GetPreset(name)
		require.NotNil(t, cfg, name)
		assert.NoError(t, cfg.Validate(), name)

		_, err := cfg.TransferOptions()
		assert.NoError(t, err, name)
	}
	assert.Nil(t, GetPreset("nonexistent"))
}
