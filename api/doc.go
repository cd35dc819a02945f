// Package api provides the HTTP REST API for the chain reaction game.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create a session ({"config_id": "duel"})
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=n)
//   - GET /api/sessions/unified - Several sessions side by side (?sessionIds=a,b or ?configName=x)
//   - GET /api/sessions/{id} - Get a session
//   - DELETE /api/sessions/{id} - Delete a session
//
// Game Operations:
//   - GET /api/sessions/{id}/state - Current game state
//   - GET /api/sessions/{id}/board - Plain-text board
//   - POST /api/sessions/{id}/move - Place an orb ({"row": 0, "col": 0, "player": 1, "reset": false})
//   - POST /api/sessions/{id}/ack - Resolve the next explosion of a paced cascade
//   - POST /api/sessions/{id}/reset - Start a new round
//   - GET /api/sessions/{id}/history - Move history (?page=1&limit=20&order=desc)
//   - GET /api/sessions/{id}/hint - Heuristic suggestion (?player=n)
//
// Configuration:
//   - GET /api/configs - List configurations
//   - POST /api/configs - Save a configuration (?id=name&format=yaml)
//   - GET /api/configs/{name} - Get a configuration
//
// Rooms:
//   - POST /api/rooms - Open a room ({"name": "alice"})
//   - GET /api/rooms/{code} - Room status
//   - POST /api/rooms/{code}/join - Take the second seat ({"name": "bob"})
//   - POST /api/rooms/{code}/ready - Mark ready ({"token": "..."})
//   - POST /api/rooms/{code}/leave - Leave the room
//   - POST /api/rooms/{code}/start - Host starts the game
//
// Every move in a game started from a room must carry the seat "token"
// ("room" is optional) and plays as that seat's player. A missing token, or
// one from another room or session, is refused with 403.
//
// Errors:
//
// Failures return {"error": "..."}. Unknown sessions, configs and rooms map
// to 404, malformed input to 400, seat violations to 403 and state conflicts
// (nothing to acknowledge, room full, players not ready) to 409. A rejected
// move is not an error: it returns 200 with success false and the reason.
//
// Real-time Updates:
//
// GET /ws?session={id} upgrades to a WebSocket that receives the current
// state immediately and every change afterwards. See package websocket.
//
// Static Files:
//
// Any other path is served from the static directory.
package api
