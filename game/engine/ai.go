package engine

import "math/rand/v2"

// MoveScore rates placing an orb at pos. Cells closer to critical mass score
// higher; a cell that would explode immediately scores 0.
func MoveScore(b *Board, pos Position) int {
	cm := b.CriticalMass(pos.Row, pos.Col)
	return -(cm - (b.At(pos.Row, pos.Col).Orbs() + 1))
}

// LegalMoves returns every cell player may place an orb on, in row-major order.
func LegalMoves(b *Board, player PlayerID) []Position {
	var moves []Position
	b.Each(func(pos Position, cell Cell) {
		if cell.PlayableBy(player) {
			moves = append(moves, pos)
		}
	})
	return moves
}

// BestMoves returns the legal moves sharing the highest MoveScore, and that score.
func BestMoves(b *Board, player PlayerID) ([]Position, int) {
	var best []Position
	bestScore := 0
	for _, pos := range LegalMoves(b, player) {
		score := MoveScore(b, pos)
		switch {
		case len(best) == 0 || score > bestScore:
			best = []Position{pos}
			bestScore = score
		case score == bestScore:
			best = append(best, pos)
		}
	}
	return best, bestScore
}

// ChooseMove picks uniformly at random among the best moves for player.
// ok is false when player has no legal move.
func ChooseMove(b *Board, player PlayerID, rng *rand.Rand) (Position, bool) {
	best, _ := BestMoves(b, player)
	if len(best) == 0 {
		return Position{}, false
	}
	if rng == nil || len(best) == 1 {
		return best[0], true
	}
	return best[rng.IntN(len(best))], true
}
