package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/chain-reaction-game/game/engine"
)

// scheduleAI starts the current automated player's turn. Without a delay the
// turn is played inline; otherwise a timer fires after the configured delay.
// Callers hold s.mu.
func (s *gameServiceImpl) scheduleAI(sess *Session, rec *recorder) {
	if sess.Engine.Phase() != engine.AIThinking {
		return
	}

	delay := time.Duration(sess.Config.AIDelayMS) * time.Millisecond
	if delay <= 0 {
		for i := 0; i < maxInlineAITurns && sess.Engine.Phase() == engine.AIThinking; i++ {
			s.playAI(sess, rec)
		}
		return
	}

	if s.closed {
		return
	}

	state := sess.Engine.GetState()
	round, moves := state.Round, state.TotalMoves
	id := sess.ID

	s.stopTimer(id)
	s.timers[id] = time.AfterFunc(delay, func() {
		s.runScheduledAI(id, round, moves)
	})
}

// runScheduledAI plays a delayed AI turn unless the session moved on since the
// timer was armed.
func (s *gameServiceImpl) runScheduledAI(sessionID string, round, moves int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	delete(s.timers, sessionID)

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		s.logger.Debug("[AI] session gone before turn", zap.String("session", sessionID))
		return
	}

	state := sess.Engine.GetState()
	if state.Phase != engine.AIThinking || state.Round != round || state.TotalMoves != moves {
		s.logger.Debug("[AI] stale turn ignored",
			zap.String("session", sessionID),
			zap.Int("round", round),
			zap.Int("moves", moves),
		)
		return
	}

	rec := s.record(sess)
	defer rec.stop()

	s.playAI(sess, rec)
	s.afterChange(sess, rec)
}

// playAI runs one AI turn and publishes the chosen cell.
func (s *gameServiceImpl) playAI(sess *Session, rec *recorder) {
	player := sess.Engine.CurrentPlayer()
	board := sess.Engine.GetState().Board.Clone()

	pos, outcome := sess.Engine.RunAI()
	if !outcome.Accepted {
		return
	}

	move := AIMove{Player: player.ID, Position: pos, Forfeit: outcome.Forfeited}
	if outcome.Forfeited {
		rec.add(EventForfeit, sess.Engine.GetState().Message, nil, player.ID)
	} else {
		move.Score = engine.MoveScore(board, pos)
		rec.add(EventAIMove, fmt.Sprintf("%s placed an orb at (%d,%d)", player.Name, pos.Row, pos.Col), &pos, player.ID)
	}
	s.notify(sess.ID, EventAIMove, move)

	s.logger.Info("[AI]",
		zap.String("session", sess.ID),
		zap.Int("player", int(player.ID)),
		zap.Int("row", pos.Row),
		zap.Int("col", pos.Col),
		zap.Int("score", move.Score),
		zap.Bool("forfeit", outcome.Forfeited),
		zap.Bool("cascade", outcome.TriggeredCascade),
	)
}

// stopTimer cancels a pending AI turn. Callers hold s.mu.
func (s *gameServiceImpl) stopTimer(sessionID string) {
	if t, ok := s.timers[sessionID]; ok {
		t.Stop()
		delete(s.timers, sessionID)
	}
}

// recorder collects the events of one service call while forwarding engine
// events to the notifier.
type recorder struct {
	events []GameEvent
	stop   func()
}

func (s *gameServiceImpl) record(sess *Session) *recorder {
	rec := &recorder{}
	id := sess.ID

	rec.stop = sess.Engine.Subscribe(engine.Handlers{
		OnCellChanged: func(c engine.CellChange) {
			s.notify(id, EventCellChanged, c)
		},
		OnTransfer: func(t engine.TransferEvent) {
			s.notify(id, EventTransfer, t)
		},
		OnTurnChanged: func(tc engine.TurnChange) {
			s.notify(id, EventTurnChanged, tc)
			rec.add(EventTurnChanged, sess.Engine.GetState().Message, nil, tc.Player)
		},
		OnGameOver: func(g engine.GameOverEvent) {
			s.notify(id, EventGameOver, g)
			rec.add(EventGameOver, sess.Engine.GetState().Message, nil, g.Winner)
			s.logger.Info("[GAME OVER]", zap.String("session", id), zap.Int("winner", int(g.Winner)))
		},
		OnCascadeCut: func(cut engine.CascadeCut) {
			s.notify(id, EventCascadeCut, cut)
			s.logger.Warn("[CASCADE CUT]",
				zap.String("session", id),
				zap.Int("steps", cut.Steps),
				zap.Int("critical_cells", len(cut.Critical)),
			)
		},
	})
	return rec
}

func newEvent(eventType, message string, pos *engine.Position, player engine.PlayerID) GameEvent {
	return GameEvent{
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now(),
		Position:  pos,
		Player:    player,
	}
}

func (r *recorder) add(eventType, message string, pos *engine.Position, player engine.PlayerID) {
	r.events = append(r.events, newEvent(eventType, message, pos, player))
}

// insert places events at index i, ahead of events recorded later.
func (r *recorder) insert(i int, events ...GameEvent) {
	tail := append([]GameEvent{}, r.events[i:]...)
	r.events = append(append(r.events[:i], events...), tail...)
}
