package mcp

import (
	"fmt"
	"strings"

	"github.com/wricardo/chain-reaction-game/game/engine"
	"github.com/wricardo/chain-reaction-game/game/lobby"
	"github.com/wricardo/chain-reaction-game/game/service"
)

func playerLabel(players []engine.Player, id engine.PlayerID) string {
	for _, p := range players {
		if p.ID == id {
			return fmt.Sprintf("%s (%d, %s)", p.Name, p.ID, p.Color)
		}
	}
	return fmt.Sprintf("player %d", id)
}

func formatSessionInfo(session *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\n\n%s",
		session.ID, session.ConfigName,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		formatGameState(session.GameState))
}

func formatGameState(state *engine.GameState) string {
	if state == nil || state.Board == nil {
		return "No game state available"
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Round: %d | Moves: %d | Phase: %s\n", state.Round, state.TotalMoves, state.Phase)
	if len(state.Players) > 0 && !state.Ended {
		fmt.Fprintf(&b, "Turn: %s\n", playerLabel(state.Players, state.CurrentPlayer().ID))
	}
	if len(state.Scores) > 0 {
		parts := make([]string, 0, len(state.Scores))
		for _, s := range state.Scores {
			parts = append(parts, fmt.Sprintf("%s=%d", playerLabel(state.Players, s.Player), s.Score))
		}
		fmt.Fprintf(&b, "Orbs: %s\n", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
	b.WriteString(engine.RenderBoard(state.Board, state.Players))

	if len(state.PendingCascade) > 0 {
		fmt.Fprintf(&b, "\nCascade paused: %d explosion(s) queued, call acknowledge to continue\n", len(state.PendingCascade))
	}
	if state.Ended {
		fmt.Fprintf(&b, "\nGAME OVER - winner: %s\n", playerLabel(state.Players, state.Winner))
	}
	if state.Message != "" {
		fmt.Fprintf(&b, "\nMessage: %s", state.Message)
	}

	return b.String()
}

func formatMoveResult(result *service.MoveResult) string {
	var b strings.Builder

	if result.Success {
		b.WriteString("✓ ")
	} else {
		b.WriteString("✗ ")
		if result.Outcome.Reason != engine.ReasonNone {
			fmt.Fprintf(&b, "[%s] ", result.Outcome.Reason)
		}
	}
	if result.Message != "" {
		b.WriteString(result.Message)
	}
	b.WriteString("\n")

	if result.Explosions > 0 {
		fmt.Fprintf(&b, "Explosions: %d, captured cells: %d\n", result.Explosions, result.Transfers)
	}
	if exp := result.Explosion; exp != nil {
		fmt.Fprintf(&b, "Exploded (%d,%d) for player %d\n", exp.Position.Row, exp.Position.Col, exp.Player)
	}
	for _, ev := range result.Events {
		if ev.Type == service.EventAIMove || ev.Type == service.EventForfeit {
			fmt.Fprintf(&b, "AI: %s\n", ev.Message)
		}
	}

	if result.GameState != nil {
		b.WriteString("\n")
		b.WriteString(formatGameState(result.GameState))
	}
	return b.String()
}

func formatHint(hint *service.Hint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Suggested move for player %d: (%d,%d) score %d\n",
		hint.Player, hint.Position.Row, hint.Position.Col, hint.Score)

	if len(hint.Candidates) > 1 {
		cells := make([]string, 0, len(hint.Candidates))
		for _, p := range hint.Candidates {
			cells = append(cells, fmt.Sprintf("(%d,%d)", p.Row, p.Col))
		}
		fmt.Fprintf(&b, "Equally good: %s\n", strings.Join(cells, " "))
	}
	if len(hint.Unstable) > 0 {
		cells := make([]string, 0, len(hint.Unstable))
		for _, p := range hint.Unstable {
			cells = append(cells, fmt.Sprintf("(%d,%d)", p.Row, p.Col))
		}
		fmt.Fprintf(&b, "Explodes on next orb: %s\n", strings.Join(cells, " "))
	}
	return b.String()
}

func formatHistoryEntry(entry engine.MoveHistoryEntry) string {
	by := "human"
	if entry.Automated {
		by = "AI"
	}
	line := fmt.Sprintf("%d. player %d (%s) -> (%d,%d)", entry.MoveNumber, entry.Player, by, entry.Position.Row, entry.Position.Col)
	if entry.Explosions > 0 {
		line += fmt.Sprintf(" [%d explosions, %d captures]", entry.Explosions, entry.Transfers)
	}
	return line
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Move History (Page %d/%d) - Total (cumulative): %d\n\n",
		history.Page, history.TotalPages, history.TotalMoves)

	for _, move := range history.Moves {
		b.WriteString(formatHistoryEntry(move))
		b.WriteString("\n")
	}
	return b.String()
}

func formatCurrentRound(state *engine.GameState) string {
	header := fmt.Sprintf("Current Round %d - Moves: %d\n\n", state.Round, state.CurrentMovesCount)
	if len(state.CurrentMoves) == 0 {
		return header + "(no moves in current round)"
	}

	var b strings.Builder
	b.WriteString(header)
	for _, move := range state.CurrentMoves {
		b.WriteString(formatHistoryEntry(move))
		b.WriteString("\n")
	}
	return b.String()
}

func describeCell(state *engine.GameState, row, col int) string {
	board := state.Board
	cell := board.At(row, col)
	mass := board.CriticalMass(row, col)

	var b strings.Builder
	fmt.Fprintf(&b, "Cell (%d,%d)\n", row, col)
	fmt.Fprintf(&b, "Class: %s (critical mass %d)\n", board.Class(row, col), mass)

	if cell.IsEmpty() {
		b.WriteString("Owner: none\nOrbs: 0\n")
	} else {
		fmt.Fprintf(&b, "Owner: %s\nOrbs: %d\n", playerLabel(state.Players, cell.Owner()), cell.Orbs())
		if cell.Orbs()+1 >= mass {
			b.WriteString("Loaded: the next orb here explodes\n")
		}
	}

	if len(state.Players) > 0 && !state.Ended {
		current := state.CurrentPlayer()
		if cell.PlayableBy(current.ID) {
			fmt.Fprintf(&b, "Playable by %s: yes\n", current.Name)
		} else {
			fmt.Fprintf(&b, "Playable by %s: no (opponent cell)\n", current.Name)
		}
	}

	neighbors := board.Neighbors(row, col)
	b.WriteString("Neighbours:")
	for _, n := range neighbors {
		fmt.Fprintf(&b, " (%d,%d)=%s", n.Row, n.Col, strings.TrimSpace(board.At(n.Row, n.Col).String()))
	}
	b.WriteString("\n")
	return b.String()
}

func formatRoom(room *lobby.Room) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room %s (config %s)\n", room.Code, room.ConfigName)
	for _, m := range room.Members {
		role := "guest"
		if m.Host {
			role = "host"
		}
		ready := "not ready"
		if m.Ready || m.Host {
			ready = "ready"
		}
		line := fmt.Sprintf("- %s [%s, %s]", m.Name, role, ready)
		if m.Player != engine.NoPlayer {
			line += fmt.Sprintf(" plays as %d", m.Player)
		}
		b.WriteString(line + "\n")
	}
	if room.SessionID != "" {
		fmt.Fprintf(&b, "Started: session %s\n", room.SessionID)
	} else if room.AllReady {
		b.WriteString("Everyone is ready; the host can start.\n")
	}
	return b.String()
}
