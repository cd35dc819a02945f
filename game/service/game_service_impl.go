package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/chain-reaction-game/game/engine"
	"github.com/wricardo/chain-reaction-game/logging"
)

// maxInlineAITurns bounds the AI turns played inside one call when a
// configuration has no AI delay.
const maxInlineAITurns = 2 * engine.MaxGridSize * engine.MaxGridSize * 4

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	notifier Notifier
	logger   *zap.Logger
	mu       sync.RWMutex

	// pending AI turns by session ID
	timers map[string]*time.Timer
	closed bool
}

// Option configures the game service
type Option func(*gameServiceImpl)

// WithNotifier sets where state updates and engine events are pushed
func WithNotifier(n Notifier) Option {
	return func(s *gameServiceImpl) {
		s.notifier = n
	}
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *gameServiceImpl) {
		s.logger = logger
	}
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		timers:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger)
	return s
}

// configIDOf returns the config_id for a session, used for consistent API responses
func (s *gameServiceImpl) configIDOf(sess *Session) string {
	if sess.ConfigID != "" {
		return sess.ConfigID
	}
	if sess.Config.ID != "" {
		return sess.Config.ID
	}
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == sess.Config.Name {
				return cfg.ConfigID
			}
		}
	}
	if sess.Config.Name == "" {
		return "default"
	}
	return sess.Config.Name
}

func (s *gameServiceImpl) sessionInfo(sess *Session) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     s.configIDOf(sess), // Return the config_id, not the display name
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		GameState:      sess.Engine.GetState().Clone(),
		GameConfig:     sess.Config,
	}
}

func (s *gameServiceImpl) getSession(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("session not found: %w", err)
	}
	return sess, nil
}

// CreateSession creates a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Load configuration
	var config *engine.GameConfig
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			// Provide helpful error message with available options
			if errors.Is(err, ErrConfigNotFound) {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("config '%s' not found. Available configs: %v: %w", configName, configIDs, ErrConfigNotFound)
				}
				return nil, fmt.Errorf("config '%s' not found. Use /api/configs to list available configurations: %w", configName, ErrConfigNotFound)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if configName != "" {
		sess.ConfigID = configName
	}

	s.logger.Info("[SESSION] created",
		zap.String("session", sess.ID),
		zap.String("config", s.configIDOf(sess)),
		zap.String("mode", ModeOf(config)),
	)

	// An automated first player starts thinking right away
	rec := s.record(sess)
	s.afterChange(sess, rec)
	rec.stop()

	return s.sessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	s.sessions.UpdateLastAccessed(sessionID)
	return s.sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess))
	}

	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimer(sessionID)
	if err := s.sessions.Delete(sessionID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
		}
		return err
	}

	s.logger.Info("[SESSION] deleted", zap.String("session", sessionID))
	return nil
}

// Move places an orb for a human player. Rejected moves are not errors; they
// come back with Success false and the rejection reason.
func (s *gameServiceImpl) Move(ctx context.Context, sessionID string, row, col int, player engine.PlayerID, reset bool) (*MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	// Update last accessed time
	s.sessions.UpdateLastAccessed(sessionID)

	rec := s.record(sess)
	defer rec.stop()

	// Handle reset if requested
	if reset {
		mark := len(rec.events)
		s.resetLocked(sess)
		rec.insert(mark, newEvent(EventReset, "Game reset to initial state", nil, engine.NoPlayer))
	}

	pos := engine.Position{Row: row, Col: col}
	mark := len(rec.events)
	outcome := sess.Engine.ApplyMove(row, col, player)

	result := &MoveResult{
		Success: outcome.Accepted,
		Outcome: outcome,
	}

	if !outcome.Accepted {
		msg := sess.Config.Messages.ForReason(outcome.Reason)
		rec.add(EventRejected, msg, &pos, player)
		result.Message = msg
		s.logger.Debug("[MOVE] rejected",
			zap.String("session", sessionID),
			zap.Int("row", row),
			zap.Int("col", col),
			zap.Int("player", int(player)),
			zap.String("reason", string(outcome.Reason)),
		)
	} else {
		last := sess.Engine.GetLastMove()
		result.Explosions = last.Explosions
		result.Transfers = last.Transfers

		moveEvents := []GameEvent{
			newEvent(EventMove, fmt.Sprintf("Player %d placed an orb at (%d,%d)", player, row, col), &pos, player),
		}
		if last.Explosions > 0 {
			moveEvents = append(moveEvents,
				newEvent(EventExplosion, fmt.Sprintf("%d explosions, %d orbs moved", last.Explosions, last.Transfers), &pos, player))
		}
		rec.insert(mark, moveEvents...)

		s.logger.Info("[MOVE]",
			zap.String("session", sessionID),
			zap.Int("row", row),
			zap.Int("col", col),
			zap.Int("player", int(player)),
			zap.Int("explosions", last.Explosions),
			zap.String("phase", string(sess.Engine.Phase())),
		)
	}

	s.afterChange(sess, rec)

	state := sess.Engine.GetState()
	if outcome.Accepted {
		result.Message = state.Message
	}
	result.GameState = state.Clone()
	result.Events = rec.events
	return result, nil
}

// Acknowledge advances a paced cascade by one step
func (s *gameServiceImpl) Acknowledge(ctx context.Context, sessionID string) (*MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sessionID)

	if sess.Engine.Phase() != engine.ResolvingExplosion {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotPaced)
	}

	rec := s.record(sess)
	defer rec.stop()

	exp, _ := sess.Engine.Acknowledge()
	result := &MoveResult{
		Success:   true,
		Outcome:   engine.MoveOutcome{Accepted: true, TriggeredCascade: exp != nil},
		Explosion: exp,
	}
	if exp != nil {
		result.Explosions = 1
		result.Transfers = len(exp.Transfers)
		pos := exp.Position
		rec.add(EventExplosion, fmt.Sprintf("Cell (%d,%d) exploded", pos.Row, pos.Col), &pos, exp.Player)
	}

	s.afterChange(sess, rec)

	state := sess.Engine.GetState()
	result.Message = state.Message
	result.GameState = state.Clone()
	result.Events = rec.events
	return result, nil
}

// Reset starts a new round in a session
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sessionID)

	rec := s.record(sess)
	defer rec.stop()

	s.resetLocked(sess)
	s.notify(sessionID, EventReset, map[string]int{"round": sess.Engine.GetState().Round})
	s.afterChange(sess, rec)

	return sess.Engine.GetState().Clone(), nil
}

// resetLocked cancels a pending AI turn and starts a new round.
func (s *gameServiceImpl) resetLocked(sess *Session) {
	s.stopTimer(sess.ID)
	sess.Engine.Reset()
	s.logger.Info("[RESET]", zap.String("session", sess.ID), zap.Int("round", sess.Engine.GetState().Round))
}

// SuggestMove returns the AI heuristic's choice for player, or for the current
// player when player is NoPlayer. Ties resolve to the first cell in row-major order.
func (s *gameServiceImpl) SuggestMove(ctx context.Context, sessionID string, player engine.PlayerID) (*Hint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	state := sess.Engine.GetState()
	if player == engine.NoPlayer {
		player = state.CurrentPlayer().ID
	}

	known := false
	for _, p := range state.Players {
		if p.ID == player {
			known = true
		}
	}
	if !known {
		return nil, fmt.Errorf("player %d is not in this game: %w", player, ErrInvalidMove)
	}

	best, score := engine.BestMoves(state.Board, player)
	if len(best) == 0 {
		return nil, fmt.Errorf("player %d has no legal move: %w", player, ErrInvalidMove)
	}

	return &Hint{
		Player:     player,
		Position:   best[0],
		Score:      score,
		Candidates: best,
		Unstable:   engine.UnstableCells(state.Board, player),
	}, nil
}

// GetGameState returns the current game state
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	s.sessions.UpdateLastAccessed(sessionID)
	return sess.Engine.GetState().Clone(), nil
}

// GetMoveHistory returns paginated move history
func (s *gameServiceImpl) GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	history := sess.Engine.GetMoveHistory()
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	// Calculate pagination
	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	moves := []engine.MoveHistoryEntry{}
	if opts.Order == "desc" {
		// Most recent first
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			moves = append(moves, history[i])
		}
	} else if start < total {
		moves = append(moves, history[start:end]...)
	}

	return &HistoryResponse{
		Moves:       moves,
		TotalMoves:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListConfigs returns available game configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific game configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a game configuration to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error {
	return s.configs.SaveConfig(configName, config)
}

// Close cancels every pending AI turn. Later operations still work but no
// new timers are started.
func (s *gameServiceImpl) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for id := range s.timers {
		s.stopTimer(id)
	}
	return nil
}

// afterChange plays or schedules AI turns, persists the session and pushes
// the new state. Callers hold s.mu.
func (s *gameServiceImpl) afterChange(sess *Session, rec *recorder) {
	s.scheduleAI(sess, rec)

	if err := s.sessions.Save(sess.ID); err != nil {
		s.logger.Warn("failed to persist session", zap.String("session", sess.ID), zap.Error(err))
	}

	if s.notifier != nil {
		s.notifier.BroadcastToSession(sess.ID, sess.Engine.GetState().Clone())
	}
}

func (s *gameServiceImpl) notify(sessionID, event string, data interface{}) {
	if s.notifier != nil {
		s.notifier.BroadcastEvent(sessionID, event, data)
	}
}
