// Package config provides configuration management for the erasure CLI tool
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/Davincible/erasure/pkg/codec"
	"github.com/Davincible/erasure/pkg/coding"
)

// Config represents the main configuration structure
type Config struct {
	Version  string         `json:"version"`
	Defaults CodingSettings `json:"defaults"`
	UI       UIConfig       `json:"ui"`
	Storage  StorageConfig  `json:"storage"`
}

// CodingSettings contains default values for encode and decode operations
type CodingSettings struct {
	DataFragments   int    `json:"data_fragments"`   // Default: 4
	ParityFragments int    `json:"parity_fragments"` // Default: 2
	WordSize        uint   `json:"word_size"`        // Default: 8
	Method          string `json:"method"`           // reed-solomon, cauchy
	Technique       string `json:"technique"`        // matrix, bitmatrix, schedule
}

// UIConfig contains user interface settings
type UIConfig struct {
	UseColor    bool   `json:"use_color"`    // Enable colored output
	Verbosity   string `json:"verbosity"`    // quiet, normal, verbose
	JSONOutput  bool   `json:"json_output"`  // Machine-readable output
	ShowWeights bool   `json:"show_weights"` // Print XOR weights on inspect
}

// StorageConfig contains fragment storage settings
type StorageConfig struct {
	DefaultPath     string `json:"default_path"`     // Default fragment directory
	FilePermissions string `json:"file_permissions"` // Default file permissions
	VerifyChecksums bool   `json:"verify_checksums"` // Check fragment digests on read
	EncryptManifest bool   `json:"encrypt_manifest"` // Encrypt the fragment manifest
}

// CodingProfile represents a saved parameter set for quick access
type CodingProfile struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Coding      CodingSettings `json:"coding"`
	Tags        []string       `json:"tags"`
}

// ConfigManager manages configuration loading and saving
type ConfigManager struct {
	config     *Config
	configPath string
	profiles   map[string]*CodingProfile
}

// NewConfigManager creates a new configuration manager
func NewConfigManager() (*ConfigManager, error) {
	cm := &ConfigManager{
		profiles: make(map[string]*CodingProfile),
	}

	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	cm.configPath = configPath

	// Load or create default config
	if err := cm.LoadConfig(); err != nil {
		cm.config = DefaultConfig()
		if err := cm.SaveConfig(); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	}

	// Profiles are optional, so a load failure is not fatal
	if err := cm.LoadProfiles(); err != nil {
		cm.profiles = make(map[string]*CodingProfile)
	}

	return cm, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0.0",
		Defaults: CodingSettings{
			DataFragments:   4,
			ParityFragments: 2,
			WordSize:        8,
			Method:          string(coding.MethodReedSolomon),
			Technique:       string(codec.TechniqueMatrix),
		},
		UI: UIConfig{
			UseColor:    true,
			Verbosity:   "normal",
			JSONOutput:  false,
			ShowWeights: false,
		},
		Storage: StorageConfig{
			DefaultPath:     "~/.erasure/fragments",
			FilePermissions: "0600",
			VerifyChecksums: true,
			EncryptManifest: false,
		},
	}
}

// LoadConfig loads the configuration from disk
func (cm *ConfigManager) LoadConfig() error {
	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return err
	}

	config := &Config{}
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	cm.config = config
	return nil
}

// SaveConfig saves the configuration to disk
func (cm *ConfigManager) SaveConfig() error {
	configDir := filepath.Dir(cm.configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cm.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(cm.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetConfig returns the current configuration
func (cm *ConfigManager) GetConfig() *Config {
	return cm.config
}

// SetConfig updates the configuration
func (cm *ConfigManager) SetConfig(config *Config) {
	cm.config = config
}

// LoadProfiles loads saved coding profiles
func (cm *ConfigManager) LoadProfiles() error {
	profilesPath := filepath.Join(filepath.Dir(cm.configPath), "profiles.json")

	data, err := os.ReadFile(profilesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	profiles := make(map[string]*CodingProfile)
	if err := json.Unmarshal(data, &profiles); err != nil {
		return fmt.Errorf("failed to parse profiles: %w", err)
	}

	cm.profiles = profiles
	return nil
}

// SaveProfiles saves coding profiles to disk
func (cm *ConfigManager) SaveProfiles() error {
	profilesPath := filepath.Join(filepath.Dir(cm.configPath), "profiles.json")

	data, err := json.MarshalIndent(cm.profiles, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}

	if err := os.WriteFile(profilesPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}

	return nil
}

// AddProfile adds a new coding profile
func (cm *ConfigManager) AddProfile(profile *CodingProfile) error {
	if profile.Name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	cm.profiles[profile.Name] = profile
	return cm.SaveProfiles()
}

// GetProfile retrieves a coding profile by name
func (cm *ConfigManager) GetProfile(name string) (*CodingProfile, error) {
	profile, exists := cm.profiles[name]
	if !exists {
		return nil, fmt.Errorf("profile '%s' not found", name)
	}
	return profile, nil
}

// ListProfiles returns all available profiles
func (cm *ConfigManager) ListProfiles() []*CodingProfile {
	profiles := make([]*CodingProfile, 0, len(cm.profiles))
	for _, profile := range cm.profiles {
		profiles = append(profiles, profile)
	}
	return profiles
}

// DeleteProfile removes a coding profile
func (cm *ConfigManager) DeleteProfile(name string) error {
	if _, exists := cm.profiles[name]; !exists {
		return fmt.Errorf("profile '%s' not found", name)
	}

	delete(cm.profiles, name)
	return cm.SaveProfiles()
}

// getConfigPath returns the configuration file path
func getConfigPath() (string, error) {
	// Check for custom config path
	if customPath := os.Getenv("ERASURE_CONFIG"); customPath != "" {
		return customPath, nil
	}

	// Use XDG_CONFIG_HOME if set
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "erasure", "config.json"), nil
	}

	// Default to ~/.config/erasure/config.json
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "erasure", "config.json"), nil
}

// ApplyDefaults fills zero-valued coding settings from the configuration
func (cm *ConfigManager) ApplyDefaults(settings *CodingSettings) {
	if settings.DataFragments == 0 {
		settings.DataFragments = cm.config.Defaults.DataFragments
	}
	if settings.ParityFragments == 0 {
		settings.ParityFragments = cm.config.Defaults.ParityFragments
	}
	if settings.WordSize == 0 {
		settings.WordSize = cm.config.Defaults.WordSize
	}
	if settings.Method == "" {
		settings.Method = cm.config.Defaults.Method
	}
	if settings.Technique == "" {
		settings.Technique = cm.config.Defaults.Technique
	}
}

// Validate checks a coding parameter set before a codec is built from it
func (s *CodingSettings) Validate() error {
	if s.DataFragments <= 0 {
		return fmt.Errorf("data fragment count must be positive (got %d)", s.DataFragments)
	}
	if s.ParityFragments <= 0 {
		return fmt.Errorf("parity fragment count must be positive (got %d)", s.ParityFragments)
	}
	if !slices.Contains([]uint{8, 16, 32}, s.WordSize) {
		return fmt.Errorf("word size must be 8, 16, or 32 (got %d)", s.WordSize)
	}

	total := s.DataFragments + s.ParityFragments
	if s.WordSize < 32 && uint64(total) > uint64(1)<<s.WordSize {
		return fmt.Errorf("k+m=%d does not fit GF(2^%d)", total, s.WordSize)
	}

	switch coding.Method(s.Method) {
	case coding.MethodReedSolomon, coding.MethodCauchy:
	default:
		return fmt.Errorf("unknown coding method %q", s.Method)
	}

	if !slices.Contains(codec.Techniques(), codec.Technique(s.Technique)) {
		return fmt.Errorf("unknown coding technique %q", s.Technique)
	}
	return nil
}
