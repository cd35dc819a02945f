// Package websocket pushes live game updates to browsers and other watchers.
//
// A central Hub owns every connection. Clients attach to one session with
// ?session=<id> and receive a state_update message after each change, plus
// the turn, cell, transfer, explosion and game-over events the game service
// publishes. Clients never send game commands over the socket; moves go
// through the REST API.
//
// Encoding:
//
// Messages are JSON text frames by default. Connecting with
// ?encoding=msgpack switches that client to msgpack binary frames carrying
// the same Message structure.
//
// Concurrency:
//
// Only the Run goroutine touches the client table. BroadcastToSession and
// BroadcastEvent queue onto a buffered channel and return immediately; when
// the queue is full the message is dropped and logged. A client whose
// outbound buffer is full is disconnected.
//
// Usage:
//
//	hub := websocket.NewHub(websocket.WithLogger(logger))
//	go hub.Run()
//	defer hub.Stop()
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"), nil)
//	})
package websocket
