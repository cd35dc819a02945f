package engine

import "testing"

var testPlayers = []Player{
	{ID: 1, Name: "Red", Color: "red"},
	{ID: 2, Name: "Blue", Color: "blue", IsAutomated: true},
}

func TestCascade_CornerExplosion(t *testing.T) {
	b := mustBoard(t, 8, 8)
	b.set(0, 0, OwnedBy(1, 2))
	b.set(7, 7, OwnedBy(2, 1))

	cascade := NewCascade(b, testPlayers, Position{0, 0})
	explosions := cascade.Run()

	if len(explosions) != 1 {
		t.Fatalf("Expected 1 explosion, got %d", len(explosions))
	}
	if !b.At(0, 0).IsEmpty() {
		t.Errorf("Expected (0,0) to be cleared, got %v", b.At(0, 0))
	}
	for _, pos := range []Position{{0, 1}, {1, 0}} {
		if got := b.At(pos.Row, pos.Col); got.Owner() != 1 || got.Orbs() != 1 {
			t.Errorf("Expected %v to hold 1 orb of player 1, got %v", pos, got)
		}
	}

	exp := explosions[0]
	if exp.Player != 1 || len(exp.Transfers) != 2 {
		t.Errorf("Expected 2 transfers by player 1, got %+v", exp)
	}
	for _, tr := range exp.Transfers {
		if tr.Color != "red" || tr.From != (Position{0, 0}) {
			t.Errorf("Unexpected transfer %+v", tr)
		}
	}
	if len(exp.Changed) != 3 || exp.Changed[0].Position != (Position{0, 0}) {
		t.Errorf("Expected exploding cell first then 2 neighbours, got %+v", exp.Changed)
	}
}

func TestCascade_Capture(t *testing.T) {
	b := mustBoard(t, 3, 3)
	b.set(0, 0, OwnedBy(1, 2))
	b.set(0, 1, OwnedBy(2, 1))
	b.set(2, 2, OwnedBy(2, 1))

	NewCascade(b, testPlayers, Position{0, 0}).Run()

	if got := b.At(0, 1); got.Owner() != 1 || got.Orbs() != 2 {
		t.Errorf("Expected captured cell to hold 2 orbs of player 1, got %v", got)
	}
	if got := b.At(2, 2); got.Owner() != 2 {
		t.Errorf("Expected untouched cell to stay with player 2, got %v", got)
	}
}

func TestCascade_ChainAndConservation(t *testing.T) {
	b := mustBoard(t, 3, 3)
	b.set(0, 0, OwnedBy(1, 2))
	b.set(0, 1, OwnedBy(1, 2))
	b.set(2, 2, OwnedBy(2, 2))
	b.set(1, 1, OwnedBy(2, 1))
	before := b.TotalOrbs()

	cascade := NewCascade(b, testPlayers, Position{0, 0})
	explosions := cascade.Run()

	if len(explosions) < 2 {
		t.Fatalf("Expected the edge cell to chain, got %d explosions", len(explosions))
	}
	if b.TotalOrbs() != before {
		t.Errorf("Expected %d orbs after cascade, got %d", before, b.TotalOrbs())
	}
	if got := b.At(1, 1); got.Owner() != 1 {
		t.Errorf("Expected centre to be captured by player 1, got %v", got)
	}
	if !cascade.Done() {
		t.Error("Expected cascade to be done")
	}
}

func TestCascade_StaleEntryIsNoop(t *testing.T) {
	b := mustBoard(t, 3, 3)
	b.set(0, 0, OwnedBy(1, 2))
	b.set(2, 2, OwnedBy(2, 1))

	// Duplicate seeds: the second pop finds (0,0) drained.
	cascade := NewCascade(b, testPlayers, Position{0, 0}, Position{0, 0})
	first, ok := cascade.Step()
	if !ok || first.Position != (Position{0, 0}) {
		t.Fatalf("Expected first step to explode (0,0), got %+v ok=%v", first, ok)
	}

	snapshot := b.Clone()
	if _, ok := cascade.Step(); ok {
		t.Error("Expected stale entry to be skipped")
	}
	snapshot.Each(func(pos Position, cell Cell) {
		if b.At(pos.Row, pos.Col) != cell {
			t.Errorf("Expected %v unchanged after stale pop, got %v", pos, b.At(pos.Row, pos.Col))
		}
	})
	if cascade.Steps() != 1 {
		t.Errorf("Expected 1 step, got %d", cascade.Steps())
	}
}

func TestCascade_SeedBelowCriticalIsSkipped(t *testing.T) {
	b := mustBoard(t, 3, 3)
	b.set(1, 1, OwnedBy(1, 3))

	explosions := NewCascade(b, testPlayers, Position{1, 1}, Position{5, 5}).Run()
	if len(explosions) != 0 {
		t.Errorf("Expected no explosions, got %d", len(explosions))
	}
	if b.At(1, 1).Orbs() != 3 {
		t.Errorf("Expected cell to be untouched, got %v", b.At(1, 1))
	}
}

func TestCascade_ExcessOrbsStayOnCell(t *testing.T) {
	b := mustBoard(t, 3, 3)
	b.set(0, 0, OwnedBy(1, 3))
	b.set(2, 2, OwnedBy(2, 1))

	cascade := NewCascade(b, testPlayers, Position{0, 0})
	cascade.Step()

	if got := b.At(0, 0); got.Owner() != 1 || got.Orbs() != 1 {
		t.Errorf("Expected 1 leftover orb owned by player 1, got %v", got)
	}
}

func TestCascade_TerminatesOnSaturatedBoard(t *testing.T) {
	tests := []struct {
		name  string
		rows  int
		cols  int
		owner func(r, c int) PlayerID
	}{
		{"single owner", 6, 6, func(r, c int) PlayerID { return 1 }},
		{"checkerboard", 6, 6, func(r, c int) PlayerID { return PlayerID(1 + (r+c)%2) }},
		{"stripes", 5, 8, func(r, c int) PlayerID { return PlayerID(1 + r%2) }},
		{"large checkerboard", 20, 20, func(r, c int) PlayerID { return PlayerID(1 + (r+c)%2) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := mustBoard(t, tt.rows, tt.cols)
			var seeds []Position
			for r := 0; r < tt.rows; r++ {
				for c := 0; c < tt.cols; c++ {
					b.set(r, c, OwnedBy(tt.owner(r, c), b.CriticalMass(r, c)))
					seeds = append(seeds, Position{r, c})
				}
			}
			before := b.TotalOrbs()

			cascade := NewCascade(b, testPlayers, seeds...)
			cascade.Run()

			if !cascade.Done() {
				t.Error("Expected cascade to finish")
			}
			if b.TotalOrbs() != before {
				t.Errorf("Expected %d orbs, got %d", before, b.TotalOrbs())
			}
			if !cascade.Decided() {
				t.Error("Expected saturated board to end with the queue discarded")
			}
			if owner, sole := b.SoleOwner(); sole && b.TotalOrbs() <= b.Capacity() {
				t.Errorf("Player %d owns a board that could still settle", owner)
			}
		})
	}
}

func TestCascade_WinningCascadeDrains(t *testing.T) {
	b := mustBoard(t, 3, 3)
	b.set(0, 0, OwnedBy(1, 2))
	b.set(0, 1, OwnedBy(1, 2))
	b.set(1, 0, OwnedBy(2, 1))

	cascade := NewCascade(b, testPlayers, Position{0, 0})
	explosions := cascade.Run()

	// Capturing (1,0) leaves player 1 as sole owner after the first
	// explosion, but (0,1) is still critical and must explode too.
	if len(explosions) != 2 {
		t.Fatalf("Expected 2 explosions, got %d", len(explosions))
	}
	if explosions[1].Position != (Position{0, 1}) {
		t.Errorf("Expected (0,1) to explode second, got %v", explosions[1].Position)
	}
	if cascade.Decided() {
		t.Error("A settling board should drain its queue, not discard it")
	}
	if crit := b.CriticalCells(); len(crit) != 0 {
		t.Errorf("Expected no critical cells left, got %v", crit)
	}
	if owner, sole := b.SoleOwner(); !sole || owner != 1 {
		t.Errorf("Expected player 1 as sole owner, got %d %v", owner, sole)
	}
	if b.TotalOrbs() != 5 {
		t.Errorf("Expected 5 orbs, got %d", b.TotalOrbs())
	}
}

func TestCascade_StepCeiling(t *testing.T) {
	b := mustBoard(t, 3, 3)
	b.set(0, 0, OwnedBy(1, 2))
	b.set(0, 1, OwnedBy(1, 2))
	b.set(2, 2, OwnedBy(2, 1))

	cascade := NewCascade(b, testPlayers, Position{0, 0})
	cascade.limit = 1
	explosions := cascade.Run()

	if len(explosions) != 1 || !cascade.Decided() {
		t.Fatalf("Expected the ceiling to stop after 1 explosion, got %d decided=%v", len(explosions), cascade.Decided())
	}
	if crit := b.CriticalCells(); len(crit) != 1 || crit[0] != (Position{0, 1}) {
		t.Errorf("Expected (0,1) left critical, got %v", crit)
	}
}

func TestCascade_UnknownPlayerColorIsNeutral(t *testing.T) {
	b := mustBoard(t, 2, 2)
	b.set(0, 0, OwnedBy(9, 2))

	explosions := NewCascade(b, testPlayers, Position{0, 0}).Run()
	if len(explosions) != 1 {
		t.Fatalf("Expected 1 explosion, got %d", len(explosions))
	}
	for _, tr := range explosions[0].Transfers {
		if tr.Color != NeutralColor {
			t.Errorf("Expected neutral colour, got %s", tr.Color)
		}
	}
}

func TestCascade_PendingCopiesQueue(t *testing.T) {
	b := mustBoard(t, 3, 3)
	b.set(0, 0, OwnedBy(1, 2))

	cascade := NewCascade(b, testPlayers, Position{0, 0})
	pending := cascade.Pending()
	pending[0] = Position{2, 2}

	if got := cascade.Pending()[0]; got != (Position{0, 0}) {
		t.Errorf("Expected queue to be unaffected by caller edits, got %v", got)
	}
}
