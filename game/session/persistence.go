package session

import (
	"fmt"
	"time"

	"github.com/wricardo/chain-reaction-game/game/engine"
	"github.com/wricardo/chain-reaction-game/game/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData represents the JSON structure for persisted sessions
type PersistedSessionData struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	GameConfig     *engine.GameConfig `json:"game_config,omitempty"`
	GameState      *engine.GameState  `json:"game_state"`
}

// restoreSession rebuilds a session from persisted data. The configuration is
// looked up by ID first; the stored snapshot covers configs that were renamed
// or removed since the session was saved.
func restoreSession(data *PersistedSessionData, configs service.ConfigManager) (*service.Session, error) {
	if data.GameState == nil {
		return nil, fmt.Errorf("session %s has no game state", data.ID)
	}

	gameConfig, err := configs.LoadConfig(data.ConfigName)
	if err != nil {
		if data.GameConfig == nil {
			return nil, fmt.Errorf("failed to load config '%s': %w", data.ConfigName, err)
		}
		gameConfig = data.GameConfig
		gameConfig.ID = data.ConfigName
	}

	// Create game engine with configuration
	gameEngine, err := engine.NewEngine(gameConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create game engine: %w", err)
	}

	// Set the restored state to the engine
	if err := gameEngine.SetState(data.GameState); err != nil {
		return nil, fmt.Errorf("failed to set game state: %w", err)
	}

	return &service.Session{
		ID:             data.ID,
		ConfigID:       data.ConfigName,
		Engine:         gameEngine,
		Config:         gameConfig,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}, nil
}

// configIDOf returns the config ID to persist for a session. Older sessions
// without one fall back to matching the display name.
func configIDOf(session *service.Session, configs service.ConfigManager) (string, error) {
	if session.ConfigID != "" {
		return session.ConfigID, nil
	}
	if session.Config.ID != "" {
		return session.Config.ID, nil
	}

	list, err := configs.ListConfigs()
	if err != nil {
		return "", fmt.Errorf("failed to list configs: %w", err)
	}
	for _, config := range list {
		if config.Name == session.Config.Name {
			return config.ConfigID, nil
		}
	}

	// If not found, assume the display name is already the config ID
	return session.Config.Name, nil
}
