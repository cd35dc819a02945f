// Package lobby lets two people meet before a game.
//
// A host creates a room and receives a six-character code to share. A
// second player joins with the code, marks themselves ready, and the host
// starts the game. Starting creates a session through the game service and
// assigns each member the player they control, in join order.
//
// Every member gets a seat token when entering a room. Ready, Leave and
// Start identify the caller by that token; room snapshots never carry it.
// Once a room has started, Authorize maps a token to the player it may move
// for, and Guards tells callers that the session only accepts such moves.
package lobby
