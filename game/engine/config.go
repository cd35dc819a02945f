package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigExtensions lists the accepted configuration file extensions in lookup order.
var ConfigExtensions = []string{".json", ".yaml", ".yml"}

// DefaultMessages returns the built-in message templates.
func DefaultMessages() Messages {
	return Messages{
		Welcome:      "Welcome to Chain Reaction! Fill a cell to its critical mass to explode it.",
		Turn:         "%s's Turn (%s)",
		Victory:      "%s (%s) Wins!",
		Cascade:      "Chain reaction! %d explosions",
		NotYourTurn:  "It is not your turn",
		OpponentCell: "That cell belongs to your opponent",
		InputLocked:  "Wait for the board to settle",
		Forfeit:      "%s (%s) has no legal move and passes",
	}
}

// WithDefaults fills blank templates from DefaultMessages.
func (m Messages) WithDefaults() Messages {
	d := DefaultMessages()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&m.Welcome, d.Welcome)
	fill(&m.Turn, d.Turn)
	fill(&m.Victory, d.Victory)
	fill(&m.Cascade, d.Cascade)
	fill(&m.NotYourTurn, d.NotYourTurn)
	fill(&m.OpponentCell, d.OpponentCell)
	fill(&m.InputLocked, d.InputLocked)
	fill(&m.Forfeit, d.Forfeit)
	return m
}

// ForReason returns the message shown for a rejected move.
func (m Messages) ForReason(reason RejectReason) string {
	m = m.WithDefaults()
	switch reason {
	case ReasonNotYourTurn, ReasonNotAITurn:
		return m.NotYourTurn
	case ReasonOpponentCell:
		return m.OpponentCell
	case ReasonInputLocked:
		return m.InputLocked
	case ReasonOutOfBounds:
		return "That cell is outside the board"
	case ReasonGameOver:
		return "The game is over"
	default:
		return ""
	}
}

// DefaultConfig returns the classic 8x8 human versus AI game.
func DefaultConfig() *GameConfig {
	return &GameConfig{
		ID:          "classic",
		Name:        "Classic",
		Description: "8x8 board, red human against blue AI",
		Rows:        8,
		Cols:        8,
		Players: []Player{
			{ID: 1, Name: "Red", Color: "red"},
			{ID: 2, Name: "Blue", Color: "blue", IsAutomated: true},
		},
		AIDelayMS: DefaultAIDelayMS,
		Messages:  DefaultMessages(),
	}
}

// ValidateGameConfig validates a game configuration for correctness and playability
func ValidateGameConfig(config *GameConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is required")
	}

	// Validate required fields
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	// Validate grid size
	if config.Rows < MinGridSize || config.Rows > MaxGridSize {
		return fmt.Errorf("config validation: rows must be between %d and %d, got %d", MinGridSize, MaxGridSize, config.Rows)
	}
	if config.Cols < MinGridSize || config.Cols > MaxGridSize {
		return fmt.Errorf("config validation: cols must be between %d and %d, got %d", MinGridSize, MaxGridSize, config.Cols)
	}

	// Validate roster
	if len(config.Players) != PlayerCount {
		return fmt.Errorf("config validation: exactly %d players are required, got %d", PlayerCount, len(config.Players))
	}
	seenIDs := make(map[PlayerID]bool)
	seenColors := make(map[string]bool)
	for i, p := range config.Players {
		if p.ID <= NoPlayer {
			return fmt.Errorf("config validation: players[%d].id must be positive, got %d", i, p.ID)
		}
		if seenIDs[p.ID] {
			return fmt.Errorf("config validation: duplicate player id %d", p.ID)
		}
		seenIDs[p.ID] = true

		if p.Color == "" {
			return fmt.Errorf("config validation: players[%d].color is required", i)
		}
		if p.Color == NeutralColor {
			return fmt.Errorf("config validation: players[%d].color cannot be '%s'", i, NeutralColor)
		}
		if seenColors[p.Color] {
			return fmt.Errorf("config validation: duplicate player color '%s'", p.Color)
		}
		seenColors[p.Color] = true
	}

	if config.AIDelayMS < 0 || config.AIDelayMS > MaxAIDelayMS {
		return fmt.Errorf("config validation: ai_delay_ms must be between 0 and %d, got %d", MaxAIDelayMS, config.AIDelayMS)
	}

	// Validate format strings
	msgs := config.Messages.WithDefaults()
	if strings.Count(msgs.Turn, "%s") != 2 {
		return fmt.Errorf("config validation: messages.turn must contain two %%s for label and color")
	}
	if strings.Count(msgs.Victory, "%s") != 2 {
		return fmt.Errorf("config validation: messages.victory must contain two %%s for label and color")
	}
	if strings.Count(msgs.Forfeit, "%s") != 2 {
		return fmt.Errorf("config validation: messages.forfeit must contain two %%s for label and color")
	}
	if !strings.Contains(msgs.Cascade, "%d") {
		return fmt.Errorf("config validation: messages.cascade must contain %%d for the explosion count")
	}

	return nil
}

// ParseGameConfig decodes a configuration. ext selects YAML for ".yaml" and
// ".yml" and JSON otherwise. Blank messages are filled with defaults.
func ParseGameConfig(data []byte, ext string) (*GameConfig, error) {
	var config GameConfig
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, err
		}
	}
	config.Messages = config.Messages.WithDefaults()
	return &config, nil
}

// LoadGameConfig loads a game configuration from a JSON or YAML file
func LoadGameConfig(filename string) (*GameConfig, error) {
	// Support CONFIG_DIR environment variable for alternative config directory
	configPath := filename
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		if strings.HasPrefix(filename, "configs/") {
			configPath = filepath.Join(configDir, strings.TrimPrefix(filename, "configs/"))
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	config, err := ParseGameConfig(data, filepath.Ext(configPath))
	if err != nil {
		return nil, err
	}
	config.ID = configIDFromPath(configPath)

	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadConfigByName loads a game configuration by name from the configs directory,
// trying each of ConfigExtensions when name has none.
func LoadConfigByName(configName string) (*GameConfig, error) {
	dir := "configs"
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		dir = configDir
	}

	path, err := FindConfigFile(dir, configName)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %v", configName, err)
	}

	config, err := ParseGameConfig(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %v", configName, err)
	}
	config.ID = configIDFromPath(path)

	if err := ValidateGameConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config '%s': %v", configName, err)
	}

	return config, nil
}

// FindConfigFile resolves a configuration name to a file in dir.
func FindConfigFile(dir, configName string) (string, error) {
	if ext := filepath.Ext(configName); ext != "" {
		path := filepath.Join(dir, configName)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file '%s' not found", configName)
		}
		return path, nil
	}

	for _, ext := range ConfigExtensions {
		path := filepath.Join(dir, configName+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("config file '%s' not found", configName)
}

func configIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// InitGameStateFromConfig creates a new game state using the provided configuration
func InitGameStateFromConfig(config *GameConfig) *GameState {
	if config == nil {
		config = DefaultConfig()
	}

	board, err := NewBoard(config.Rows, config.Cols)
	if err != nil {
		// Unvalidated configs fall back to the classic board size.
		board, _ = NewBoard(8, 8)
	}

	players := make([]Player, len(config.Players))
	copy(players, config.Players)

	gs := &GameState{
		Board:             board,
		Players:           players,
		CurrentIndex:      0,
		Scores:            Scores(board, players),
		Message:           config.Messages.WithDefaults().Welcome,
		ConfigName:        config.Name,
		Round:             1,
		MoveHistory:       []MoveHistoryEntry{},
		TotalMoves:        0,
		CurrentMoves:      []MoveHistoryEntry{},
		CurrentMovesCount: 0,
	}

	if len(players) > 0 && players[0].IsAutomated {
		gs.Phase = AIThinking
		gs.InputLocked = true
	} else {
		gs.Phase = WaitingForInput
	}

	return gs
}
