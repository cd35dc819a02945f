package engine

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

type cellJSON struct {
	Orbs  int      `json:"orbs"`
	Owner PlayerID `json:"owner,omitempty"`
}

// MarshalJSON encodes a cell as {"orbs": n, "owner": id}.
func (c Cell) MarshalJSON() ([]byte, error) {
	return json.Marshal(cellJSON{Orbs: c.orbs, Owner: c.owner})
}

// UnmarshalJSON decodes a cell, normalising inconsistent input to the empty cell.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var raw cellJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = OwnedBy(raw.Owner, raw.Orbs)
	return nil
}

// EncodeMsgpack encodes a cell as the pair (orbs, owner).
func (c Cell) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeMulti(c.orbs, int(c.owner))
}

// DecodeMsgpack decodes a cell written by EncodeMsgpack.
func (c *Cell) DecodeMsgpack(dec *msgpack.Decoder) error {
	var orbs, owner int
	if err := dec.DecodeMulti(&orbs, &owner); err != nil {
		return err
	}
	*c = OwnedBy(PlayerID(owner), orbs)
	return nil
}

type boardJSON struct {
	Rows  int      `json:"rows" msgpack:"rows"`
	Cols  int      `json:"cols" msgpack:"cols"`
	Cells [][]Cell `json:"cells" msgpack:"cells"`
}

func (b *Board) toWire() boardJSON {
	grid := make([][]Cell, b.rows)
	for r := range grid {
		grid[r] = make([]Cell, b.cols)
		copy(grid[r], b.cells[r*b.cols:(r+1)*b.cols])
	}
	return boardJSON{Rows: b.rows, Cols: b.cols, Cells: grid}
}

func (b *Board) fromWire(w boardJSON) error {
	board, err := NewBoard(w.Rows, w.Cols)
	if err != nil {
		return err
	}
	if len(w.Cells) != w.Rows {
		return fmt.Errorf("board: expected %d rows of cells, got %d", w.Rows, len(w.Cells))
	}
	for r, row := range w.Cells {
		if len(row) != w.Cols {
			return fmt.Errorf("board: row %d has %d cells, expected %d", r, len(row), w.Cols)
		}
		for c, cell := range row {
			board.set(r, c, cell)
		}
	}
	*b = *board
	return nil
}

// MarshalJSON encodes the board as {"rows", "cols", "cells": [[...]]}.
func (b *Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.toWire())
}

// UnmarshalJSON decodes a board written by MarshalJSON.
func (b *Board) UnmarshalJSON(data []byte) error {
	var w boardJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	return b.fromWire(w)
}

// EncodeMsgpack encodes the board with the same shape as its JSON form.
func (b *Board) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(b.toWire())
}

// DecodeMsgpack decodes a board written by EncodeMsgpack.
func (b *Board) DecodeMsgpack(dec *msgpack.Decoder) error {
	var w boardJSON
	if err := dec.Decode(&w); err != nil {
		return err
	}
	return b.fromWire(w)
}
