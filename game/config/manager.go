package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/chain-reaction-game/game/engine"
	"github.com/wricardo/chain-reaction-game/game/service"
)

var (
	// ErrConfigNotFound matches service.ErrConfigNotFound with errors.Is.
	ErrConfigNotFound = service.ErrConfigNotFound
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// DefaultConfigName is tried first when choosing the default configuration.
const DefaultConfigName = "classic"

// Manager handles game configuration loading and caching
type Manager struct {
	configDir     string
	defaultConfig *engine.GameConfig
	configs       map[string]*engine.GameConfig
	mu            sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configDir string) (*Manager, error) {
	// Ensure config directory exists
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*engine.GameConfig),
	}

	// Load default config
	m.setDefault(m.pickDefault())

	return m, nil
}

// Dir returns the directory configurations are read from
func (m *Manager) Dir() string {
	return m.configDir
}

// LoadConfig loads a configuration by name. The name may omit its extension,
// in which case .json, .yaml and .yml are tried in that order.
func (m *Manager) LoadConfig(name string) (*engine.GameConfig, error) {
	id := configID(name)

	m.mu.RLock()
	// Check cache first
	if config, exists := m.configs[id]; exists {
		m.mu.RUnlock()
		return config, nil
	}
	m.mu.RUnlock()

	if strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: config name %q must not contain a path", ErrInvalidConfig, name)
	}

	// Load from file
	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if config, exists := m.configs[id]; exists {
		return config, nil
	}

	configPath, err := engine.FindConfigFile(m.configDir, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, ErrConfigNotFound)
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse config
	config, err := engine.ParseGameConfig(data, filepath.Ext(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.ID = id

	// Validate config
	if err := engine.ValidateGameConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	// Cache the config
	m.configs[id] = config
	return config, nil
}

// ListConfigs returns information about all available configurations, sorted
// by config ID. Files that fail to load are skipped.
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var configs []*service.ConfigInfo
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() || !isConfigFile(entry.Name()) {
			continue
		}

		name := configID(entry.Name())
		if seen[name] {
			continue
		}

		// Try to load the config to get details
		config, err := m.LoadConfig(name)
		if err != nil {
			// Skip invalid configs
			continue
		}
		seen[name] = true

		configs = append(configs, &service.ConfigInfo{
			Filename:      entry.Name(),
			ConfigID:      name, // This is the identifier to use for session creation
			Name:          config.Name,
			Description:   config.Description,
			Rows:          config.Rows,
			Cols:          config.Cols,
			Mode:          service.ModeOf(config),
			PacedCascades: config.PacedCascades,
		})
	}

	sort.Slice(configs, func(i, j int) bool {
		return configs[i].ConfigID < configs[j].ConfigID
	})
	return configs, nil
}

// GetDefault returns the default configuration
func (m *Manager) GetDefault() *engine.GameConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// SetDefault sets the default configuration by name
func (m *Manager) SetDefault(name string) error {
	config, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.setDefault(config)
	return nil
}

func (m *Manager) setDefault(config *engine.GameConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConfig = config
}

// RefreshCache drops every cached configuration and picks the default again.
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.configs = make(map[string]*engine.GameConfig)
	m.mu.Unlock()

	m.setDefault(m.pickDefault())
	return nil
}

// Count returns the number of cached configurations
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.configs)
}

// pickDefault prefers classic, then the first loadable file, then the built-in
// configuration. It must be called without holding m.mu.
func (m *Manager) pickDefault() *engine.GameConfig {
	if config, err := m.LoadConfig(DefaultConfigName); err == nil {
		return config
	}

	configs, err := m.ListConfigs()
	if err != nil || len(configs) == 0 {
		return m.createMinimalConfig()
	}

	config, err := m.LoadConfig(configs[0].ConfigID)
	if err != nil {
		return m.createMinimalConfig()
	}
	return config
}

// SaveConfig saves a configuration to disk. A name ending in .yaml or .yml is
// written as YAML, anything else as JSON.
func (m *Manager) SaveConfig(name string, config *engine.GameConfig) error {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: invalid config name %q", ErrInvalidConfig, name)
	}

	// Validate config before saving
	if err := engine.ValidateGameConfig(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	ext := strings.ToLower(filepath.Ext(name))
	filename := name
	if !slices.Contains(engine.ConfigExtensions, ext) {
		ext = ".json"
		filename = name + ext
	}

	var (
		data []byte
		err  error
	)
	switch ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	default:
		// Marshal config to JSON with indentation
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := filepath.Join(m.configDir, filename)

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	id := configID(filename)
	config.ID = id

	// Update cache
	m.mu.Lock()
	m.configs[id] = config
	m.mu.Unlock()

	return nil
}

// createMinimalConfig creates a minimal valid configuration
func (m *Manager) createMinimalConfig() *engine.GameConfig {
	return engine.DefaultConfig()
}

func isConfigFile(name string) bool {
	return slices.Contains(engine.ConfigExtensions, strings.ToLower(filepath.Ext(name)))
}

// configID strips a known configuration extension from name.
func configID(name string) string {
	if isConfigFile(name) {
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}
