package engine

import (
	"fmt"
	"time"
)

// ApplyMove places an orb for a human player. Illegal requests are rejected
// without changing the state.
func (e *GameEngine) ApplyMove(row, col int, player PlayerID) MoveOutcome {
	gs := e.state
	switch {
	case gs.Ended || gs.Phase == GameOver:
		return MoveOutcome{Reason: ReasonGameOver}
	case gs.Phase != WaitingForInput || gs.InputLocked:
		return MoveOutcome{Reason: ReasonInputLocked}
	}

	current := gs.CurrentPlayer()
	if current.IsAutomated || current.ID != player {
		return MoveOutcome{Reason: ReasonNotYourTurn}
	}
	if !gs.Board.InBounds(row, col) {
		return MoveOutcome{Reason: ReasonOutOfBounds}
	}
	if !gs.Board.At(row, col).PlayableBy(player) {
		return MoveOutcome{Reason: ReasonOpponentCell}
	}

	return e.place(Position{Row: row, Col: col})
}

// RunAI plays the current automated player's move. A player with no legal
// move forfeits the turn.
func (e *GameEngine) RunAI() (Position, MoveOutcome) {
	gs := e.state
	if gs.Ended || gs.Phase == GameOver {
		return Position{}, MoveOutcome{Reason: ReasonGameOver}
	}
	if gs.Phase != AIThinking {
		return Position{}, MoveOutcome{Reason: ReasonNotAITurn}
	}

	current := gs.CurrentPlayer()
	pos, ok := ChooseMove(gs.Board, current.ID, e.rng)
	if !ok {
		e.advanceTurn()
		gs.Message = fmt.Sprintf(e.messages().Forfeit, current.Label(), current.Color)
		return Position{}, MoveOutcome{Accepted: true, Forfeited: true}
	}

	return pos, e.place(pos)
}

// Acknowledge advances a paced cascade by one explosion. The acknowledgement
// after the last explosion finishes the cascade and returns a nil explosion.
// It reports false when no cascade is in progress.
func (e *GameEngine) Acknowledge() (*Explosion, bool) {
	if e.state.Phase != ResolvingExplosion || e.cascade == nil {
		return nil, false
	}

	if exp, ok := e.step(); ok {
		return &exp, true
	}
	e.finishCascade()
	return nil, true
}

// FinishCascade resolves the remaining explosions of a paced cascade at once.
func (e *GameEngine) FinishCascade() []Explosion {
	if e.state.Phase != ResolvingExplosion || e.cascade == nil {
		return nil
	}

	var explosions []Explosion
	for {
		exp, ok := e.step()
		if !ok {
			break
		}
		explosions = append(explosions, exp)
	}
	e.finishCascade()
	return explosions
}

// place adds an orb for the current player at pos, which the caller has
// already validated.
func (e *GameEngine) place(pos Position) MoveOutcome {
	gs := e.state
	current := gs.CurrentPlayer()

	gs.Started = true
	gs.Board.ApplyOrb(pos.Row, pos.Col, current.ID)
	e.emitCell(CellChange{Position: pos, Cell: gs.Board.At(pos.Row, pos.Col)})
	e.recordMove(current, pos)

	if !gs.Board.IsCritical(pos.Row, pos.Col) {
		gs.Scores = Scores(gs.Board, gs.Players)
		e.advanceTurn()
		return MoveOutcome{Accepted: true}
	}

	e.cascade = NewCascade(gs.Board, gs.Players, pos)
	gs.Phase = ResolvingExplosion
	gs.InputLocked = true

	if e.config.PacedCascades {
		e.step()
		return MoveOutcome{Accepted: true, TriggeredCascade: true}
	}

	e.FinishCascade()
	return MoveOutcome{Accepted: true, TriggeredCascade: true}
}

// step performs one explosion and publishes it.
func (e *GameEngine) step() (Explosion, bool) {
	gs := e.state
	exp, ok := e.cascade.Step()
	if !ok {
		return exp, false
	}

	e.emitExplosion(exp)
	if n := len(gs.CurrentMoves); n > 0 {
		gs.CurrentMoves[n-1].Explosions++
		gs.CurrentMoves[n-1].Transfers += len(exp.Transfers)
	}
	if n := len(gs.MoveHistory); n > 0 {
		gs.MoveHistory[n-1].Explosions++
		gs.MoveHistory[n-1].Transfers += len(exp.Transfers)
	}

	gs.PendingCascade = e.cascade.Pending()
	gs.Scores = Scores(gs.Board, gs.Players)
	gs.Message = fmt.Sprintf(e.messages().Cascade, e.cascade.Steps())
	return exp, true
}

// finishCascade runs the win check once the queue is empty.
func (e *GameEngine) finishCascade() {
	gs := e.state
	if e.cascade.Decided() {
		if _, sole := gs.Board.SoleOwner(); !sole {
			e.emitCascadeCut(CascadeCut{Steps: e.cascade.Steps(), Critical: gs.Board.CriticalCells()})
		}
	}
	e.cascade = nil
	gs.PendingCascade = nil
	gs.Scores = Scores(gs.Board, gs.Players)

	if HasWinner(gs.Board, gs.Started) {
		e.endGame()
		return
	}
	e.advanceTurn()
}

func (e *GameEngine) advanceTurn() {
	gs := e.state
	gs.CurrentIndex = (gs.CurrentIndex + 1) % len(gs.Players)
	e.enterTurn()
	e.emitTurn()
}

// enterTurn sets the phase and message for the current player.
func (e *GameEngine) enterTurn() {
	gs := e.state
	next := gs.CurrentPlayer()
	if next.IsAutomated {
		gs.Phase = AIThinking
		gs.InputLocked = true
	} else {
		gs.Phase = WaitingForInput
		gs.InputLocked = false
	}
	gs.Message = fmt.Sprintf(e.messages().Turn, next.Label(), next.Color)
}

func (e *GameEngine) endGame() {
	gs := e.state
	winner := DetermineWinner(gs.Board, gs.Players, gs.CurrentIndex)

	gs.Phase = GameOver
	gs.Ended = true
	gs.InputLocked = true
	gs.Winner = winner

	color := colorOf(gs.Players, winner)
	label := "Player"
	for _, p := range gs.Players {
		if p.ID == winner {
			label = p.Label()
		}
	}
	gs.Message = fmt.Sprintf(e.messages().Victory, label, color)

	e.emitGameOver(GameOverEvent{Winner: winner, Color: color, Scores: gs.Scores})
}

func (e *GameEngine) recordMove(player Player, pos Position) {
	gs := e.state
	entry := MoveHistoryEntry{
		MoveNumber: gs.TotalMoves + 1,
		Round:      gs.Round,
		Player:     player.ID,
		Position:   pos,
		Automated:  player.IsAutomated,
		Timestamp:  time.Now().Unix(),
	}
	// Append to cumulative history (never cleared by reset) and increment total
	gs.MoveHistory = append(gs.MoveHistory, entry)
	gs.TotalMoves++

	gs.CurrentMoves = append(gs.CurrentMoves, entry)
	gs.CurrentMovesCount++
}

func (e *GameEngine) messages() Messages {
	if e.config == nil {
		return DefaultMessages()
	}
	return e.config.Messages.WithDefaults()
}
