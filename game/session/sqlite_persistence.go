package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wricardo/chain-reaction-game/game/engine"
	"github.com/wricardo/chain-reaction-game/game/service"
)

// sessionRecord is the sessions table row. The game state is stored as
// msgpack and the config snapshot as JSON.
type sessionRecord struct {
	ID             string `gorm:"primaryKey"`
	ConfigID       string `gorm:"index"`
	GameConfig     []byte
	GameState      []byte
	CreatedAt      time.Time
	LastAccessedAt time.Time `gorm:"index"`
	UpdatedAt      time.Time
}

func (sessionRecord) TableName() string { return "sessions" }

// SQLitePersistence implements SessionPersistence on a SQLite database
type SQLitePersistence struct {
	db            *gorm.DB
	configManager service.ConfigManager
}

// NewSQLitePersistence opens (or creates) the database at dsn and migrates
// the sessions table.
func NewSQLitePersistence(dsn string, configManager service.ConfigManager) (*SQLitePersistence, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases from splitting across the pool.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&sessionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session database: %w", err)
	}

	return &SQLitePersistence{db: db, configManager: configManager}, nil
}

// Save upserts a session row
func (sp *SQLitePersistence) Save(session *service.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}

	configID, err := configIDOf(session, sp.configManager)
	if err != nil {
		return fmt.Errorf("failed to get config ID: %w", err)
	}

	state, err := msgpack.Marshal(session.Engine.GetState())
	if err != nil {
		return fmt.Errorf("failed to encode game state: %w", err)
	}
	config, err := json.Marshal(session.Config)
	if err != nil {
		return fmt.Errorf("failed to encode game config: %w", err)
	}

	rec := sessionRecord{
		ID:             strings.ToLower(session.ID),
		ConfigID:       configID,
		GameConfig:     config,
		GameState:      state,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
	}
	if err := sp.db.Save(&rec).Error; err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	return nil
}

// Load reads a session row and rebuilds its engine
func (sp *SQLitePersistence) Load(id string) (*service.Session, error) {
	var rec sessionRecord
	if err := sp.db.First(&rec, "id = ?", strings.ToLower(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	var state engine.GameState
	if err := msgpack.Unmarshal(rec.GameState, &state); err != nil {
		return nil, fmt.Errorf("failed to decode game state: %w", err)
	}

	data := &PersistedSessionData{
		ID:             rec.ID,
		ConfigName:     rec.ConfigID,
		CreatedAt:      rec.CreatedAt,
		LastAccessedAt: rec.LastAccessedAt,
		GameState:      &state,
	}
	if len(rec.GameConfig) > 0 {
		var config engine.GameConfig
		if err := json.Unmarshal(rec.GameConfig, &config); err == nil {
			data.GameConfig = &config
		}
	}

	return restoreSession(data, sp.configManager)
}

// Delete removes a session row
func (sp *SQLitePersistence) Delete(id string) error {
	result := sp.db.Delete(&sessionRecord{}, "id = ?", strings.ToLower(id))
	if result.Error != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListAll returns all persisted session IDs
func (sp *SQLitePersistence) ListAll() ([]string, error) {
	var ids []string
	if err := sp.db.Model(&sessionRecord{}).Order("created_at").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ids, nil
}

// Exists checks if a session row exists
func (sp *SQLitePersistence) Exists(id string) bool {
	var count int64
	sp.db.Model(&sessionRecord{}).Where("id = ?", strings.ToLower(id)).Count(&count)
	return count > 0
}

// Close closes the underlying database
func (sp *SQLitePersistence) Close() error {
	sqlDB, err := sp.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
