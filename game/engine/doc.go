// Package engine provides the core game logic for the Chain Reaction game.
//
// The engine package implements the game mechanics including:
//   - A fixed grid of cells that are either empty or owned by one player
//   - Critical mass per position (corner 2, edge 3, interior 4)
//   - Queue-driven explosion cascades that capture neighbouring cells
//   - A turn state machine for human and automated players
//   - The AI move heuristic and win evaluation
//   - Configuration loading and validation (JSON or YAML)
//
// Core Types:
//
// The Engine interface defines the main contract for game operations,
// implemented by GameEngine. GameState is the complete session value and is
// what gets persisted. Board and Cell model the grid; Cascade resolves chain
// reactions one explosion at a time.
//
// Usage:
//
//	config, err := engine.LoadConfigByName("classic")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameEngine, err := engine.NewEngine(config)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	outcome := gameEngine.ApplyMove(0, 0, 1)
//	if gameEngine.Phase() == engine.AIThinking {
//		gameEngine.RunAI()
//	}
//
// Game Rules:
//
// Players take turns adding one orb to an empty cell or a cell they own.
// A cell reaching its critical mass explodes: it loses that many orbs and
// each orthogonal neighbour gains one orb and changes owner to the exploding
// player. Explosions can chain. After a cascade, a player owning every
// non-empty cell wins.
//
// The engine holds no timers. When a configuration enables paced cascades the
// engine stops after each explosion until Acknowledge is called, so a
// presentation layer can animate each step; AI delays belong to the caller.
package engine
