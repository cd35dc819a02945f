package service

import (
	"time"

	"github.com/wricardo/chain-reaction-game/game/engine"
)

// Event types published to WebSocket clients and returned in results
const (
	EventStateUpdate = "state_update"
	EventCellChanged = "cell_changed"
	EventTransfer    = "transfer"
	EventTurnChanged = "turn_changed"
	EventGameOver    = "game_over"
	EventAIMove      = "ai_move"
	EventMove        = "move"
	EventExplosion   = "explosion"
	EventReset       = "reset"
	EventRejected    = "rejected"
	EventForfeit     = "forfeit"
	EventCascadeCut  = "cascade_cut"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	GameState      *engine.GameState  `json:"game_state"`
	GameConfig     *engine.GameConfig `json:"game_config"`
}

// MoveResult contains the result of a move, acknowledgement or AI turn
type MoveResult struct {
	Success    bool               `json:"success"`
	Outcome    engine.MoveOutcome `json:"outcome"`
	GameState  *engine.GameState  `json:"game_state"`
	Message    string             `json:"message"`
	Events     []GameEvent        `json:"events,omitempty"`
	Explosions int                `json:"explosions"`
	Transfers  int                `json:"transfers"`

	// Explosion is the step performed by an acknowledgement, if any.
	Explosion *engine.Explosion `json:"explosion,omitempty"`
}

// GameEvent represents an event that occurred during gameplay
type GameEvent struct {
	Type      string           `json:"type"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Position  *engine.Position `json:"position,omitempty"`
	Player    engine.PlayerID  `json:"player,omitempty"`
}

// AIMove is published when an automated player places an orb.
type AIMove struct {
	Player   engine.PlayerID `json:"player"`
	Position engine.Position `json:"position"`
	Score    int             `json:"score"`
	Forfeit  bool            `json:"forfeit,omitempty"`
}

// Hint is the AI heuristic's suggestion for a player.
type Hint struct {
	Player     engine.PlayerID   `json:"player"`
	Position   engine.Position   `json:"position"`
	Score      int               `json:"score"`
	Candidates []engine.Position `json:"candidates"`
	Unstable   []engine.Position `json:"unstable,omitempty"`
}

// HistoryOptions configures move history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated move history
type HistoryResponse struct {
	Moves       []engine.MoveHistoryEntry `json:"moves"`
	TotalMoves  int                       `json:"total_moves"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
	TotalPages  int                       `json:"total_pages"`
	HasNext     bool                      `json:"has_next"`
	HasPrevious bool                      `json:"has_previous"`
}

// ConfigInfo provides information about a game configuration
type ConfigInfo struct {
	Filename      string `json:"filename"`
	ConfigID      string `json:"config_id"` // The identifier to use for session creation
	Name          string `json:"name"`      // Display name
	Description   string `json:"description"`
	Rows          int    `json:"rows"`
	Cols          int    `json:"cols"`
	Mode          string `json:"mode"` // "human_vs_ai", "hotseat" or "ai_vs_ai"
	PacedCascades bool   `json:"paced_cascades"`
}

// ModeOf describes the roster of config.
func ModeOf(config *engine.GameConfig) string {
	automated := 0
	for _, p := range config.Players {
		if p.IsAutomated {
			automated++
		}
	}
	switch automated {
	case 0:
		return "hotseat"
	case len(config.Players):
		return "ai_vs_ai"
	default:
		return "human_vs_ai"
	}
}
