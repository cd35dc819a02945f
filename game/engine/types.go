package engine

// PlayerID identifies a player. Cells refer to their owner by ID only.
type PlayerID int

// NoPlayer is the owner of an empty cell.
const NoPlayer PlayerID = 0

// Phase is a state of the turn controller.
type Phase string

const (
	WaitingForInput    Phase = "waiting_for_input"
	ResolvingExplosion Phase = "resolving_explosion"
	AIThinking         Phase = "ai_thinking"
	GameOver           Phase = "game_over"

	// Validation constants
	MinGridSize      = 2
	MaxGridSize      = 20
	PlayerCount      = 2
	MaxAIDelayMS     = 10000
	DefaultAIDelayMS = 650
	NeutralColor     = "neutral"
)

// Position is a (row, col) board coordinate.
type Position struct {
	Row int `json:"row" msgpack:"row"`
	Col int `json:"col" msgpack:"col"`
}

// Player is a static roster entry.
type Player struct {
	ID          PlayerID `json:"id" yaml:"id" msgpack:"id"`
	Name        string   `json:"name" yaml:"name" msgpack:"name"`
	Color       string   `json:"color" yaml:"color" msgpack:"color"`
	IsAutomated bool     `json:"is_automated" yaml:"is_automated" msgpack:"is_automated"`
}

// Label is "AI" for automated players and "Player" otherwise.
func (p Player) Label() string {
	if p.IsAutomated {
		return "AI"
	}
	return "Player"
}

// Messages holds the user-facing message templates of a configuration.
type Messages struct {
	Welcome      string `json:"welcome" yaml:"welcome"`
	Turn         string `json:"turn" yaml:"turn"`           // label, color
	Victory      string `json:"victory" yaml:"victory"`     // label, color
	Cascade      string `json:"cascade" yaml:"cascade"`     // explosion count
	NotYourTurn  string `json:"not_your_turn" yaml:"not_your_turn"`
	OpponentCell string `json:"opponent_cell" yaml:"opponent_cell"`
	InputLocked  string `json:"input_locked" yaml:"input_locked"`
	Forfeit      string `json:"forfeit" yaml:"forfeit"` // label, color
}

// GameConfig is a game configuration loaded from JSON or YAML.
type GameConfig struct {
	// ID is the file name the configuration was loaded from, without extension.
	ID            string   `json:"-" yaml:"-"`
	Name          string   `json:"name" yaml:"name"`
	Description   string   `json:"description" yaml:"description"`
	Rows          int      `json:"rows" yaml:"rows"`
	Cols          int      `json:"cols" yaml:"cols"`
	Players       []Player `json:"players" yaml:"players"`
	AIDelayMS     int      `json:"ai_delay_ms" yaml:"ai_delay_ms"`
	PacedCascades bool     `json:"paced_cascades" yaml:"paced_cascades"`
	Messages      Messages `json:"messages" yaml:"messages"`
}

// PlayerScore is the orb total owned by one player.
type PlayerScore struct {
	Player PlayerID `json:"player" msgpack:"player"`
	Score  int      `json:"score" msgpack:"score"`
}

// TransferEvent is one orb moving from an exploding cell to a neighbour.
type TransferEvent struct {
	From   Position `json:"from" msgpack:"from"`
	To     Position `json:"to" msgpack:"to"`
	Player PlayerID `json:"player" msgpack:"player"`
	Color  string   `json:"color" msgpack:"color"`
}

// CellChange reports the new content of a cell.
type CellChange struct {
	Position Position `json:"position" msgpack:"position"`
	Cell     Cell     `json:"cell" msgpack:"cell"`
}

// TurnChange reports whose turn it is after a turn advance or reset.
type TurnChange struct {
	Player    PlayerID `json:"player" msgpack:"player"`
	Index     int      `json:"index" msgpack:"index"`
	Automated bool     `json:"automated" msgpack:"automated"`
	Phase     Phase    `json:"phase" msgpack:"phase"`
}

// CascadeCut reports a cascade stopped at the step ceiling while more than
// one player still owns cells. Critical lists the cells left unexploded.
type CascadeCut struct {
	Steps    int        `json:"steps" msgpack:"steps"`
	Critical []Position `json:"critical" msgpack:"critical"`
}

// GameOverEvent reports the end of a round.
type GameOverEvent struct {
	Winner PlayerID      `json:"winner" msgpack:"winner"`
	Color  string        `json:"color" msgpack:"color"`
	Scores []PlayerScore `json:"scores" msgpack:"scores"`
}

// RejectReason explains why a move was not accepted.
type RejectReason string

const (
	ReasonNone         RejectReason = ""
	ReasonInputLocked  RejectReason = "input_locked"
	ReasonNotYourTurn  RejectReason = "not_your_turn"
	ReasonOpponentCell RejectReason = "opponent_cell"
	ReasonOutOfBounds  RejectReason = "out_of_bounds"
	ReasonGameOver     RejectReason = "game_over"
	ReasonNotAITurn    RejectReason = "not_ai_turn"
)

// MoveOutcome is the result of a move request. Rejections are not errors.
type MoveOutcome struct {
	Accepted         bool         `json:"accepted"`
	TriggeredCascade bool         `json:"triggered_cascade"`
	Forfeited        bool         `json:"forfeited,omitempty"`
	Reason           RejectReason `json:"reason,omitempty"`
}

// GameState represents the complete game session state
type GameState struct {
	Board        *Board        `json:"board" msgpack:"board"`
	Players      []Player      `json:"players" msgpack:"players"`
	CurrentIndex int           `json:"current_player_index" msgpack:"current_player_index"`
	Phase        Phase         `json:"phase" msgpack:"phase"`
	Started      bool          `json:"started" msgpack:"started"`
	InputLocked  bool          `json:"input_locked" msgpack:"input_locked"`
	Ended        bool          `json:"ended" msgpack:"ended"`
	Winner       PlayerID      `json:"winner,omitempty" msgpack:"winner,omitempty"`
	Scores       []PlayerScore `json:"scores" msgpack:"scores"`
	Message      string        `json:"message" msgpack:"message"`
	ConfigName   string        `json:"config_name" msgpack:"config_name"`
	Round        int           `json:"round" msgpack:"round"`

	// MoveHistory is cumulative across resets; CurrentMoves only covers the current round.
	MoveHistory       []MoveHistoryEntry `json:"move_history" msgpack:"move_history"`
	TotalMoves        int                `json:"total_moves" msgpack:"total_moves"`
	CurrentMoves      []MoveHistoryEntry `json:"current_moves" msgpack:"current_moves"`
	CurrentMovesCount int                `json:"current_moves_count" msgpack:"current_moves_count"`

	// PendingCascade is the explosion queue of a paced cascade awaiting acknowledgement.
	PendingCascade []Position `json:"pending_cascade,omitempty" msgpack:"pending_cascade,omitempty"`
}

// CurrentPlayer returns the player whose turn it is.
func (gs *GameState) CurrentPlayer() Player {
	return gs.Players[gs.CurrentIndex]
}

// MoveHistoryEntry represents a single accepted move in the game history
type MoveHistoryEntry struct {
	MoveNumber int      `json:"move_number" msgpack:"move_number"`
	Round      int      `json:"round" msgpack:"round"`
	Player     PlayerID `json:"player" msgpack:"player"`
	Position   Position `json:"position" msgpack:"position"`
	Automated  bool     `json:"automated" msgpack:"automated"`
	Explosions int      `json:"explosions" msgpack:"explosions"`
	Transfers  int      `json:"transfers" msgpack:"transfers"`
	Timestamp  int64    `json:"timestamp" msgpack:"timestamp"`
}

// Clone returns a deep copy of the state, safe to read while the engine keeps
// mutating the original.
func (gs *GameState) Clone() *GameState {
	c := *gs
	if gs.Board != nil {
		c.Board = gs.Board.Clone()
	}
	c.Players = append([]Player(nil), gs.Players...)
	c.Scores = append([]PlayerScore(nil), gs.Scores...)
	c.MoveHistory = append([]MoveHistoryEntry{}, gs.MoveHistory...)
	c.CurrentMoves = append([]MoveHistoryEntry{}, gs.CurrentMoves...)
	if gs.PendingCascade != nil {
		c.PendingCascade = append([]Position(nil), gs.PendingCascade...)
	}
	return &c
}
