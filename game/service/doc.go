// Package service provides the business logic layer for the chain reaction game.
//
// The service package implements:
//   - Multi-session game management
//   - Move processing with rejection reasons
//   - Paced cascade acknowledgement
//   - Delayed AI turns and move hints
//   - Move history tracking
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// ConfigManager manages game configuration loading and validation.
// Notifier receives state snapshots and engine events for connected clients.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the game engine. Engines are not safe for concurrent use, so every engine
// call happens under the service lock, and callers only ever see cloned
// states.
//
// Automated players move after the configuration's AI delay. A delay of zero
// plays AI turns inline before the call returns. A pending AI turn is dropped
// when the session is reset, deleted or has moved on before the timer fires.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr := config.NewManager("configs")
//	gameService := service.NewGameService(sessionMgr, configMgr,
//		service.WithNotifier(hub),
//		service.WithLogger(logger),
//	)
//	defer gameService.Close()
//
//	info, err := gameService.CreateSession(ctx, "classic")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := gameService.Move(ctx, info.ID, 0, 0, 1, false)
package service
