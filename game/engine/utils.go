package engine

import (
	"fmt"
	"strings"
)

// CountByClass counts the positions of each critical-mass class on b.
func CountByClass(b *Board) map[PositionClass]int {
	counts := make(map[PositionClass]int, 3)
	for r := 0; r < b.Rows(); r++ {
		for c := 0; c < b.Cols(); c++ {
			counts[b.Class(r, c)]++
		}
	}
	return counts
}

// UnstableCells returns the cells owned by player that explode on the next orb.
func UnstableCells(b *Board, player PlayerID) []Position {
	var cells []Position
	b.Each(func(pos Position, cell Cell) {
		if cell.Owner() == player && cell.Orbs()+1 >= b.CriticalMass(pos.Row, pos.Col) {
			cells = append(cells, pos)
		}
	})
	return cells
}

// RenderBoard draws b as text, one row per line. Empty cells are ".", owned
// cells are the first letter of the owner's colour followed by the orb count.
func RenderBoard(b *Board, players []Player) string {
	var sb strings.Builder
	for r := 0; r < b.Rows(); r++ {
		for c := 0; c < b.Cols(); c++ {
			if c > 0 {
				sb.WriteByte(' ')
			}
			cell := b.At(r, c)
			if cell.IsEmpty() {
				sb.WriteString(" . ")
				continue
			}
			color := colorOf(players, cell.Owner())
			sb.WriteString(fmt.Sprintf("%s%-2d", strings.ToUpper(color[:1]), cell.Orbs()))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
