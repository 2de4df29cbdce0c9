package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*CodingSettings)
		wantErr  string
	}{
		{"defaults are valid", func(s *CodingSettings) {}, ""},
		{"zero data fragments", func(s *CodingSettings) { s.DataFragments = 0 }, "data fragment"},
		{"negative parity", func(s *CodingSettings) { s.ParityFragments = -1 }, "parity fragment"},
		{"bad word size", func(s *CodingSettings) { s.WordSize = 12 }, "word size"},
		{"field overflow", func(s *CodingSettings) { s.DataFragments = 300 }, "does not fit"},
		{"bad method", func(s *CodingSettings) { s.Method = "liberation" }, "method"},
		{"bad technique", func(s *CodingSettings) { s.Technique = "simd" }, "technique"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultConfig().Defaults
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cm := &ConfigManager{config: DefaultConfig()}

	var s CodingSettings
	cm.ApplyDefaults(&s)
	assert.Equal(t, cm.config.Defaults, s)

	s = CodingSettings{DataFragments: 10, Technique: "schedule"}
	cm.ApplyDefaults(&s)
	assert.Equal(t, 10, s.DataFragments)
	assert.Equal(t, "schedule", s.Technique)
	assert.Equal(t, cm.config.Defaults.Method, s.Method)
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("ERASURE_CONFIG", path)

	cm, err := NewConfigManager()
	require.NoError(t, err)
	assert.FileExists(t, path)

	cfg := cm.GetConfig()
	cfg.Defaults.ParityFragments = 5
	cm.SetConfig(cfg)
	require.NoError(t, cm.SaveConfig())

	cm2, err := NewConfigManager()
	require.NoError(t, err)
	assert.Equal(t, 5, cm2.GetConfig().Defaults.ParityFragments)
}

func TestProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("ERASURE_CONFIG", path)

	cm, err := NewConfigManager()
	require.NoError(t, err)

	err = cm.AddProfile(&CodingProfile{})
	assert.Error(t, err)

	profile := &CodingProfile{
		Name:   "archive",
		Coding: CodingSettings{DataFragments: 10, ParityFragments: 4, WordSize: 8, Method: "reed-solomon", Technique: "schedule"},
	}
	require.NoError(t, cm.AddProfile(profile))

	cm2, err := NewConfigManager()
	require.NoError(t, err)
	got, err := cm2.GetProfile("archive")
	require.NoError(t, err)
	assert.Equal(t, profile.Coding, got.Coding)

	assert.Len(t, cm2.ListProfiles(), 1)
	require.NoError(t, cm2.DeleteProfile("archive"))
	_, err = cm2.GetProfile("archive")
	assert.Error(t, err)
}
