package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/zyedidia/generic/mapset"
)

var ErrInvalidDimensions = errors.New("invalid board dimensions")

// Cell is either empty or owned by exactly one player holding at least one orb.
// The zero value is an empty cell.
type Cell struct {
	owner PlayerID
	orbs  int
}

// EmptyCell returns a cell with no orbs and no owner.
func EmptyCell() Cell {
	return Cell{}
}

// OwnedBy returns a cell holding orbs for player. A non-positive count or
// NoPlayer yields an empty cell.
func OwnedBy(player PlayerID, orbs int) Cell {
	if player == NoPlayer || orbs <= 0 {
		return Cell{}
	}
	return Cell{owner: player, orbs: orbs}
}

// IsEmpty reports whether the cell holds no orbs.
func (c Cell) IsEmpty() bool {
	return c.orbs == 0
}

// Owner returns the owning player, or NoPlayer for an empty cell.
func (c Cell) Owner() PlayerID {
	return c.owner
}

// Orbs returns the orb count.
func (c Cell) Orbs() int {
	return c.orbs
}

// PlayableBy reports whether player may place an orb here.
func (c Cell) PlayableBy(player PlayerID) bool {
	return c.IsEmpty() || c.owner == player
}

func (c Cell) String() string {
	if c.IsEmpty() {
		return "."
	}
	return fmt.Sprintf("%d:%d", c.owner, c.orbs)
}

// PositionClass is the critical-mass class of a position.
type PositionClass string

const (
	Corner   PositionClass = "corner"
	Edge     PositionClass = "edge"
	Interior PositionClass = "interior"
)

// Board is a fixed-size grid of cells stored row-major.
type Board struct {
	rows  int
	cols  int
	cells []Cell
}

// NewBoard creates an empty rows x cols board.
func NewBoard(rows, cols int) (*Board, error) {
	if rows < MinGridSize || rows > MaxGridSize || cols < MinGridSize || cols > MaxGridSize {
		return nil, fmt.Errorf("%w: %dx%d (each side must be between %d and %d)",
			ErrInvalidDimensions, rows, cols, MinGridSize, MaxGridSize)
	}
	return &Board{
		rows:  rows,
		cols:  cols,
		cells: make([]Cell, rows*cols),
	}, nil
}

// Rows returns the number of rows.
func (b *Board) Rows() int { return b.rows }

// Cols returns the number of columns.
func (b *Board) Cols() int { return b.cols }

// InBounds reports whether (r, c) lies on the board.
func (b *Board) InBounds(r, c int) bool {
	return r >= 0 && r < b.rows && c >= 0 && c < b.cols
}

// At returns the cell at (r, c).
func (b *Board) At(r, c int) Cell {
	return b.cells[r*b.cols+c]
}

func (b *Board) set(r, c int, cell Cell) {
	b.cells[r*b.cols+c] = cell
}

// Class classifies (r, c) as corner, edge or interior.
func (b *Board) Class(r, c int) PositionClass {
	vertical := r == 0 || r == b.rows-1
	horizontal := c == 0 || c == b.cols-1
	switch {
	case vertical && horizontal:
		return Corner
	case vertical || horizontal:
		return Edge
	default:
		return Interior
	}
}

// CriticalMass returns the orb count at which (r, c) explodes. It is derived
// from the position on every call.
func (b *Board) CriticalMass(r, c int) int {
	switch b.Class(r, c) {
	case Corner:
		return 2
	case Edge:
		return 3
	default:
		return 4
	}
}

// IsCritical reports whether the cell at (r, c) has reached its critical mass.
func (b *Board) IsCritical(r, c int) bool {
	return b.At(r, c).Orbs() >= b.CriticalMass(r, c)
}

var neighborOffsets = [4]Position{
	{Row: -1, Col: 0},
	{Row: 1, Col: 0},
	{Row: 0, Col: -1},
	{Row: 0, Col: 1},
}

// Neighbors returns the orthogonal in-bounds neighbours of (r, c): up, down, left, right.
func (b *Board) Neighbors(r, c int) []Position {
	result := make([]Position, 0, 4)
	for _, d := range neighborOffsets {
		nr, nc := r+d.Row, c+d.Col
		if b.InBounds(nr, nc) {
			result = append(result, Position{Row: nr, Col: nc})
		}
	}
	return result
}

// ApplyOrb adds one orb to (r, c) for player. The caller guarantees the cell
// is empty or already owned by player.
func (b *Board) ApplyOrb(r, c int, player PlayerID) {
	b.set(r, c, OwnedBy(player, b.At(r, c).Orbs()+1))
}

// Each calls fn for every cell in row-major order.
func (b *Board) Each(fn func(pos Position, cell Cell)) {
	for r := 0; r < b.rows; r++ {
		for c := 0; c < b.cols; c++ {
			fn(Position{Row: r, Col: c}, b.At(r, c))
		}
	}
}

// TotalOrbs returns the number of orbs on the board.
func (b *Board) TotalOrbs() int {
	total := 0
	for _, cell := range b.cells {
		total += cell.Orbs()
	}
	return total
}

// Owners returns the distinct owners of non-empty cells in ascending order.
func (b *Board) Owners() []PlayerID {
	set := mapset.New[PlayerID]()
	for _, cell := range b.cells {
		if !cell.IsEmpty() {
			set.Put(cell.Owner())
		}
	}

	owners := make([]PlayerID, 0, set.Size())
	set.Each(func(p PlayerID) {
		owners = append(owners, p)
	})
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	return owners
}

// SoleOwner reports whether every non-empty cell belongs to one player, and
// that player. An empty board has no sole owner.
func (b *Board) SoleOwner() (PlayerID, bool) {
	owner := NoPlayer
	for _, cell := range b.cells {
		if cell.IsEmpty() {
			continue
		}
		if owner == NoPlayer {
			owner = cell.Owner()
		} else if cell.Owner() != owner {
			return NoPlayer, false
		}
	}
	return owner, owner != NoPlayer
}

// CriticalCells returns every cell at or over its critical mass.
func (b *Board) CriticalCells() []Position {
	var cells []Position
	b.Each(func(pos Position, _ Cell) {
		if b.IsCritical(pos.Row, pos.Col) {
			cells = append(cells, pos)
		}
	})
	return cells
}

// Capacity returns the largest orb total the board can hold without any cell
// being critical.
func (b *Board) Capacity() int {
	total := 0
	for r := 0; r < b.rows; r++ {
		for c := 0; c < b.cols; c++ {
			total += b.CriticalMass(r, c) - 1
		}
	}
	return total
}

// Clone returns a deep copy of the board.
func (b *Board) Clone() *Board {
	cells := make([]Cell, len(b.cells))
	copy(cells, b.cells)
	return &Board{rows: b.rows, cols: b.cols, cells: cells}
}
