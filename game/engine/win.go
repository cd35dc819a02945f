package engine

// HasWinner reports whether exactly one player owns all non-empty cells.
// It is always false before the first move of a round.
func HasWinner(b *Board, started bool) bool {
	if !started {
		return false
	}
	return len(b.Owners()) == 1
}

// Score returns the number of orbs owned by player.
func Score(b *Board, player PlayerID) int {
	total := 0
	b.Each(func(_ Position, cell Cell) {
		if cell.Owner() == player {
			total += cell.Orbs()
		}
	})
	return total
}

// Scores returns the score of every player in roster order.
func Scores(b *Board, players []Player) []PlayerScore {
	scores := make([]PlayerScore, 0, len(players))
	for _, p := range players {
		scores = append(scores, PlayerScore{Player: p.ID, Score: Score(b, p.ID)})
	}
	return scores
}

// DetermineWinner returns the sole owner of the board. When more than one
// owner remains it falls back to the player before currentIndex; callers
// check HasWinner first, so that branch is not reached in play.
func DetermineWinner(b *Board, players []Player, currentIndex int) PlayerID {
	if owners := b.Owners(); len(owners) == 1 {
		return owners[0]
	}
	if len(players) == 0 {
		return NoPlayer
	}
	prev := (currentIndex - 1 + len(players)) % len(players)
	return players[prev].ID
}
