package engine

import (
	"fmt"
	"math/rand/v2"
)

// Engine provides the main interface for game operations
type Engine interface {
	// Game state management
	GetState() *GameState
	SetState(state *GameState) error
	Reset() *GameState
	IsGameOver() bool
	Phase() Phase
	CurrentPlayer() Player

	// Turn operations
	ApplyMove(row, col int, player PlayerID) MoveOutcome
	Acknowledge() (*Explosion, bool)
	FinishCascade() []Explosion
	RunAI() (Position, MoveOutcome)

	// Observation
	Subscribe(h Handlers) func()

	// Configuration
	GetConfig() *GameConfig
	SetConfig(config *GameConfig) error

	// History
	GetMoveHistory() []MoveHistoryEntry
	GetLastMove() *MoveHistoryEntry
}

// Handlers receive engine events. Nil fields are ignored.
type Handlers struct {
	OnCellChanged func(CellChange)
	OnTransfer    func(TransferEvent)
	OnTurnChanged func(TurnChange)
	OnGameOver    func(GameOverEvent)
	OnCascadeCut  func(CascadeCut)
}

type subscription struct {
	id       int
	handlers Handlers
}

// GameEngine implements the Engine interface. It is not safe for concurrent use.
type GameEngine struct {
	state   *GameState
	config  *GameConfig
	cascade *Cascade
	rng     *rand.Rand

	subs   []subscription
	nextID int
}

// Option configures a GameEngine.
type Option func(*GameEngine)

// WithRand sets the random source used to break ties between AI moves.
func WithRand(rng *rand.Rand) Option {
	return func(e *GameEngine) {
		e.rng = rng
	}
}

// WithSeed makes AI tie-breaking deterministic.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// NewEngine creates a new game engine with the provided configuration
func NewEngine(config *GameConfig, opts ...Option) (*GameEngine, error) {
	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}

	engine := &GameEngine{
		config: config,
		state:  InitGameStateFromConfig(config),
	}
	for _, opt := range opts {
		opt(engine)
	}
	if engine.rng == nil {
		engine.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return engine, nil
}

// NewEngineWithDefaults creates a new game engine with the default configuration
func NewEngineWithDefaults(opts ...Option) *GameEngine {
	engine, err := NewEngine(DefaultConfig(), opts...)
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return engine
}

// GetState returns the current game state
func (e *GameEngine) GetState() *GameState {
	return e.state
}

// SetState sets the game state (used for persistence loading). A state saved
// in the middle of a paced cascade resumes from its pending queue.
func (e *GameEngine) SetState(state *GameState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if state.Board == nil {
		return fmt.Errorf("state board cannot be nil")
	}
	if len(state.Players) != PlayerCount {
		return fmt.Errorf("state must have %d players, got %d", PlayerCount, len(state.Players))
	}
	if state.CurrentIndex < 0 || state.CurrentIndex >= len(state.Players) {
		return fmt.Errorf("state current player index %d out of range", state.CurrentIndex)
	}

	e.state = state
	e.cascade = nil
	if state.Phase == ResolvingExplosion {
		e.cascade = NewCascade(state.Board, state.Players, state.PendingCascade...)
	}
	return nil
}

// Reset starts a new round. A paced cascade in progress is resolved first so
// the finished round is recorded consistently.
func (e *GameEngine) Reset() *GameState {
	if e.cascade != nil {
		e.FinishCascade()
	}

	// Preserve cumulative history and totals across resets
	prevHistory := e.state.MoveHistory
	prevTotal := e.state.TotalMoves
	prevRound := e.state.Round

	e.state = InitGameStateFromConfig(e.config)

	e.state.MoveHistory = prevHistory
	e.state.TotalMoves = prevTotal
	e.state.Round = prevRound + 1
	e.state.CurrentMoves = []MoveHistoryEntry{}
	e.state.CurrentMovesCount = 0

	e.emitTurn()
	return e.state
}

// IsGameOver returns whether the round has ended
func (e *GameEngine) IsGameOver() bool {
	return e.state.Ended
}

// Phase returns the current turn phase
func (e *GameEngine) Phase() Phase {
	return e.state.Phase
}

// CurrentPlayer returns the player whose turn it is
func (e *GameEngine) CurrentPlayer() Player {
	return e.state.CurrentPlayer()
}

// Subscribe registers event handlers and returns a function that removes them.
// Handlers run synchronously in registration order.
func (e *GameEngine) Subscribe(h Handlers) func() {
	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, subscription{id: id, handlers: h})

	return func() {
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

// GetConfig returns the current game configuration
func (e *GameEngine) GetConfig() *GameConfig {
	return e.config
}

// SetConfig sets a new game configuration and starts a fresh game
func (e *GameEngine) SetConfig(config *GameConfig) error {
	if err := ValidateGameConfig(config); err != nil {
		return err
	}

	e.config = config
	e.cascade = nil
	e.state = InitGameStateFromConfig(config)
	return nil
}

// GetMoveHistory returns the complete move history
func (e *GameEngine) GetMoveHistory() []MoveHistoryEntry {
	return e.state.MoveHistory
}

// GetLastMove returns the last move made, or nil if no moves
func (e *GameEngine) GetLastMove() *MoveHistoryEntry {
	if len(e.state.MoveHistory) == 0 {
		return nil
	}
	return &e.state.MoveHistory[len(e.state.MoveHistory)-1]
}

func (e *GameEngine) emitCell(change CellChange) {
	for _, s := range e.subs {
		if s.handlers.OnCellChanged != nil {
			s.handlers.OnCellChanged(change)
		}
	}
}

func (e *GameEngine) emitTransfer(t TransferEvent) {
	for _, s := range e.subs {
		if s.handlers.OnTransfer != nil {
			s.handlers.OnTransfer(t)
		}
	}
}

func (e *GameEngine) emitTurn() {
	p := e.state.CurrentPlayer()
	change := TurnChange{
		Player:    p.ID,
		Index:     e.state.CurrentIndex,
		Automated: p.IsAutomated,
		Phase:     e.state.Phase,
	}
	for _, s := range e.subs {
		if s.handlers.OnTurnChanged != nil {
			s.handlers.OnTurnChanged(change)
		}
	}
}

func (e *GameEngine) emitGameOver(ev GameOverEvent) {
	for _, s := range e.subs {
		if s.handlers.OnGameOver != nil {
			s.handlers.OnGameOver(ev)
		}
	}
}

func (e *GameEngine) emitCascadeCut(cut CascadeCut) {
	for _, s := range e.subs {
		if s.handlers.OnCascadeCut != nil {
			s.handlers.OnCascadeCut(cut)
		}
	}
}

func (e *GameEngine) emitExplosion(exp Explosion) {
	e.emitCell(exp.Changed[0])
	for i, t := range exp.Transfers {
		e.emitTransfer(t)
		e.emitCell(exp.Changed[i+1])
	}
}
