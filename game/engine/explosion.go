package engine

// Explosion is the result of one cell reaching critical mass and distributing
// its orbs to its neighbours.
type Explosion struct {
	Position  Position        `json:"position" msgpack:"position"`
	Player    PlayerID        `json:"player" msgpack:"player"`
	Transfers []TransferEvent `json:"transfers" msgpack:"transfers"`
	Changed   []CellChange    `json:"changed" msgpack:"changed"`
}

// Cascade resolves chain reactions on a board one explosion at a time.
// Duplicate queue entries are allowed; an entry whose cell is no longer
// critical when popped is skipped.
type Cascade struct {
	board   *Board
	players []Player
	queue   []Position
	steps   int
	limit   int
	settled bool
}

// NewCascade creates a cascade over board seeded with the given positions.
func NewCascade(board *Board, players []Player, seeds ...Position) *Cascade {
	cells := board.Rows() * board.Cols()
	c := &Cascade{
		board:   board,
		players: players,
		limit:   cells * cells * 4,
	}
	for _, pos := range seeds {
		c.Enqueue(pos)
	}
	return c
}

// Enqueue adds pos to the work queue.
func (c *Cascade) Enqueue(pos Position) {
	if c.board.InBounds(pos.Row, pos.Col) {
		c.queue = append(c.queue, pos)
	}
}

// Pending returns a copy of the work queue, including stale entries.
func (c *Cascade) Pending() []Position {
	pending := make([]Position, len(c.queue))
	copy(pending, c.queue)
	return pending
}

// Done reports whether no live entries remain in the queue.
func (c *Cascade) Done() bool {
	c.dropStale()
	return len(c.queue) == 0
}

// Steps returns the number of explosions performed so far.
func (c *Cascade) Steps() int {
	return c.steps
}

// Decided reports whether the cascade discarded its queue early, either
// because a single owner holds more orbs than the board can hold without a
// critical cell, so it can never settle, or because the step ceiling was
// reached.
func (c *Cascade) Decided() bool {
	return c.settled
}

func (c *Cascade) dropStale() {
	for len(c.queue) > 0 {
		head := c.queue[0]
		if c.board.IsCritical(head.Row, head.Col) {
			return
		}
		c.queue = c.queue[1:]
	}
}

// Step performs exactly one explosion. It returns false when the queue holds
// no critical cell.
func (c *Cascade) Step() (Explosion, bool) {
	c.dropStale()
	if len(c.queue) == 0 {
		return Explosion{}, false
	}

	pos := c.queue[0]
	c.queue = c.queue[1:]

	b := c.board
	cell := b.At(pos.Row, pos.Col)
	distribute := b.CriticalMass(pos.Row, pos.Col)
	player := cell.Owner()
	color := colorOf(c.players, player)

	b.set(pos.Row, pos.Col, OwnedBy(player, cell.Orbs()-distribute))

	exp := Explosion{
		Position:  pos,
		Player:    player,
		Transfers: make([]TransferEvent, 0, 4),
		Changed:   []CellChange{{Position: pos, Cell: b.At(pos.Row, pos.Col)}},
	}

	for _, n := range b.Neighbors(pos.Row, pos.Col) {
		next := OwnedBy(player, b.At(n.Row, n.Col).Orbs()+1)
		b.set(n.Row, n.Col, next)

		exp.Transfers = append(exp.Transfers, TransferEvent{From: pos, To: n, Player: player, Color: color})
		exp.Changed = append(exp.Changed, CellChange{Position: n, Cell: next})

		if b.IsCritical(n.Row, n.Col) {
			c.queue = append(c.queue, n)
		}
	}

	c.steps++
	if c.steps >= c.limit || c.unsettleable() {
		c.settled = true
		c.queue = nil
	}

	return exp, true
}

func (c *Cascade) unsettleable() bool {
	_, sole := c.board.SoleOwner()
	return sole && c.board.TotalOrbs() > c.board.Capacity()
}

// Run drains the queue and returns every explosion in order.
func (c *Cascade) Run() []Explosion {
	var explosions []Explosion
	for {
		exp, ok := c.Step()
		if !ok {
			return explosions
		}
		explosions = append(explosions, exp)
	}
}

// colorOf returns the colour of player, or NeutralColor when unknown.
func colorOf(players []Player, id PlayerID) string {
	for _, p := range players {
		if p.ID == id {
			return p.Color
		}
	}
	return NeutralColor
}
