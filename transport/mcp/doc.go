// Package mcp exposes the game to AI agents over the Model Context Protocol.
//
// Client is a thin proxy: every tool call becomes a REST request against a
// running API server, and the JSON reply is turned into readable text with
// the board drawn as a grid (". " empty, "R2" two orbs owned by Red).
//
// Tools:
//   - create_session, get_session, list_sessions
//   - game_state, describe_cell
//   - place_orb (row, col, optional player, token and intent), acknowledge
//   - suggest_move: the built-in AI heuristic for a player
//   - reset_game, move_history, list_configs, game_instructions
//   - create_room, join_room, room_status, ready_room, start_room
//
// API failures come back as tool error results, never as protocol errors.
//
// Transport:
//
// The server binary serves the same tool set over HTTP at /mcp and over
// stdio with the stdio-mcp command. In stdio mode the client points at an
// existing server when one answers on localhost:8080 and otherwise starts
// an in-process server on a loopback port.
package mcp
