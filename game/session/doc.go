// Package session keeps the live Chain Reaction games of a server.
//
// Manager maps four-character hexadecimal IDs to service.Session values, each
// owning its own engine.GameEngine and a copy of the configuration it was
// created from. IDs are generated from crypto/rand and matched
// case-insensitively, so "A1B2" and "a1b2" name the same game.
//
// All Manager methods are safe for concurrent use. Get loads sessions that
// are not in memory from the configured persistence, and concurrent lookups
// of the same ID share a single load.
//
//	manager := session.NewManagerWithPersistence(store, session.WithLogger(logger))
//	if err := manager.LoadPersistedSessions(); err != nil {
//		logger.Warn("restore sessions", zap.Error(err))
//	}
//
//	sess, err := manager.Create("", config)
//	...
//	removed := manager.CleanupExpiredSessions(24 * time.Hour)
//
// Persistence:
//
// FilePersistence writes one JSON file per session. SQLitePersistence keeps a
// sessions table through gorm, storing the game state as msgpack. Both keep a
// snapshot of the session's configuration so a session can be restored after
// its config file is renamed or removed. A session saved in the middle of a
// paced cascade resumes from its pending explosions.
package session
