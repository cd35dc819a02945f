package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wricardo/chain-reaction-game/game/config"
	"github.com/wricardo/chain-reaction-game/game/engine"
	"github.com/wricardo/chain-reaction-game/game/lobby"
	"github.com/wricardo/chain-reaction-game/game/service"
	"github.com/wricardo/chain-reaction-game/logging"
	"github.com/wricardo/chain-reaction-game/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service   service.GameService
	hub       *websocket.Hub
	lobby     *lobby.Lobby
	logger    *zap.Logger
	router    *mux.Router
	staticDir string
	startedAt time.Time
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithLobby enables the /api/rooms routes
func WithLobby(l *lobby.Lobby) Option {
	return func(s *Server) {
		s.lobby = l
	}
}

// WithStaticDir serves files from dir for unmatched paths
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		s.staticDir = dir
	}
}

// NewServer creates a new API server
func NewServer(gameService service.GameService, hub *websocket.Hub, opts ...Option) *Server {
	s := &Server{
		service:   gameService,
		hub:       hub,
		router:    mux.NewRouter(),
		staticDir: "./static/",
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger)

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	// Must be registered before the {id} pattern
	api.HandleFunc("/sessions/unified", s.handleUnifiedSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Game operations
	api.HandleFunc("/sessions/{id}/state", s.handleGetGameState).Methods("GET")
	api.HandleFunc("/sessions/{id}/board", s.handleGetBoard).Methods("GET")
	api.HandleFunc("/sessions/{id}/move", s.handleMove).Methods("POST")
	api.HandleFunc("/sessions/{id}/ack", s.handleAcknowledge).Methods("POST")
	api.HandleFunc("/sessions/{id}/reset", s.handleReset).Methods("POST")
	api.HandleFunc("/sessions/{id}/history", s.handleGetHistory).Methods("GET")
	api.HandleFunc("/sessions/{id}/hint", s.handleHint).Methods("GET")

	// Configuration
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs", s.handleCreateConfig).Methods("POST")
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")

	// Rooms
	if s.lobby != nil {
		api.HandleFunc("/rooms", s.handleCreateRoom).Methods("POST")
		api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
		api.HandleFunc("/rooms/{code}", s.handleGetRoom).Methods("GET")
		api.HandleFunc("/rooms/{code}/join", s.handleJoinRoom).Methods("POST")
		api.HandleFunc("/rooms/{code}/ready", s.handleReadyRoom).Methods("POST")
		api.HandleFunc("/rooms/{code}/leave", s.handleLeaveRoom).Methods("POST")
		api.HandleFunc("/rooms/{code}/start", s.handleStartRoom).Methods("POST")
	}

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Static files
	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.staticDir)))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps domain errors to HTTP statuses.
func respondErr(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrConfigNotFound),
		errors.Is(err, lobby.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidMove),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, lobby.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, lobby.ErrNotHost),
		errors.Is(err, lobby.ErrNotMember):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotPaced),
		errors.Is(err, lobby.ErrRoomFull),
		errors.Is(err, lobby.ErrNameTaken),
		errors.Is(err, lobby.ErrPlayersNotReady),
		errors.Is(err, lobby.ErrAlreadyStarted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody treats an empty body as an empty object.
func decodeBody(r *http.Request, target interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID   string `json:"config_id,omitempty"`
		ConfigName string `json:"config_name,omitempty"` // Deprecated, use config_id
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	configID := req.ConfigID
	if configID == "" && req.ConfigName != "" {
		configID = req.ConfigName
	}

	session, err := s.service.CreateSession(r.Context(), configID)
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	total := len(sessions)

	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default)
	limitStr := query.Get("limit") // number of sessions to return

	if sortBy != "created" {
		sortBy = "accessed"
	}
	if order != "asc" {
		order = "desc"
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}

		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(sessions) {
			sessions = sessions[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// Game Operation Handlers

func (s *Server) handleGetGameState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetGameState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetGameState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondErr(w, err)
		return
	}
	if state.Board == nil {
		respondError(w, http.StatusInternalServerError, "session has no board")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, engine.RenderBoard(state.Board, state.Players))
}

// moveRequest places an orb. Moves in a game started from a room must carry
// a seat token so the server decides who they are; room is optional then.
type moveRequest struct {
	Row    *int            `json:"row"`
	Col    *int            `json:"col"`
	Player engine.PlayerID `json:"player"`
	Reset  bool            `json:"reset,omitempty"`
	Room   string          `json:"room,omitempty"`
	Token  string          `json:"token,omitempty"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Row == nil || req.Col == nil {
		respondError(w, http.StatusBadRequest, "row and col are required")
		return
	}

	player := req.Player
	if req.Room != "" || req.Token != "" || (s.lobby != nil && s.lobby.Guards(sessionID)) {
		if s.lobby == nil {
			respondError(w, http.StatusBadRequest, "rooms are not enabled")
			return
		}
		seat, err := s.lobby.Authorize(sessionID, req.Room, req.Token, req.Player)
		if err != nil {
			respondError(w, http.StatusForbidden, err.Error())
			return
		}
		player = seat
	}

	result, err := s.service.Move(r.Context(), sessionID, *req.Row, *req.Col, player, req.Reset)
	if err != nil {
		respondErr(w, err)
		return
	}

	status := "OK"
	if !result.Success {
		status = "REJECTED"
	}
	s.logger.Info("[MOVE]",
		zap.String("session", sessionID),
		zap.Int("player", int(player)),
		zap.Int("row", *req.Row),
		zap.Int("col", *req.Col),
		zap.String("status", status),
		zap.Int("explosions", result.Explosions),
		zap.String("reason", string(result.Outcome.Reason)),
	)

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	result, err := s.service.Acknowledge(r.Context(), sessionID)
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.Reset(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Game reset successfully",
		"state":   state,
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	opts := service.HistoryOptions{
		Page:  1,
		Limit: 20,
		Order: "desc",
	}

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			opts.Page = p
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			opts.Limit = l
		}
	}
	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}

	history, err := s.service.GetMoveHistory(r.Context(), mux.Vars(r)["id"], opts)
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, history)
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	player := engine.NoPlayer
	if p := r.URL.Query().Get("player"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			respondError(w, http.StatusBadRequest, "player must be a number")
			return
		}
		player = engine.PlayerID(n)
	}

	hint, err := s.service.SuggestMove(r.Context(), mux.Vars(r)["id"], player)
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, hint)
}

// Configuration Handlers

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListConfigs(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	configName := mux.Vars(r)["name"]
	for _, ext := range engine.ConfigExtensions {
		configName = strings.TrimSuffix(configName, ext)
	}

	cfg, err := s.service.LoadConfig(r.Context(), configName)
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cfg)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// configSlug turns a display name into a config ID.
func configSlug(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var gameConfig engine.GameConfig
	if err := json.NewDecoder(r.Body).Decode(&gameConfig); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if gameConfig.Name == "" {
		respondError(w, http.StatusBadRequest, "Config name is required")
		return
	}

	configID := r.URL.Query().Get("id")
	if configID == "" {
		configID = configSlug(gameConfig.Name)
	}
	if configID == "" {
		respondError(w, http.StatusBadRequest, "Config ID is required")
		return
	}
	if format := r.URL.Query().Get("format"); format == "yaml" {
		configID += ".yaml"
	}

	if err := s.service.SaveConfig(r.Context(), configID, &gameConfig); err != nil {
		respondErr(w, fmt.Errorf("failed to save config: %w", err))
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Configuration saved successfully",
		"config_id": strings.TrimSuffix(configID, ".yaml"),
	})
}

// Unified Sessions Handler

// handleUnifiedSessions returns several sessions side by side for a
// spectator view, selected by ?sessionIds=a,b or ?configName=x.
func (s *Server) handleUnifiedSessions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var sessions []*service.SessionInfo

	if sessionIDs := query.Get("sessionIds"); sessionIDs != "" {
		for _, id := range strings.Split(sessionIDs, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if session, err := s.service.GetSession(r.Context(), id); err == nil {
				sessions = append(sessions, session)
			}
		}
	} else {
		all, err := s.service.ListSessions(r.Context())
		if err != nil {
			respondErr(w, err)
			return
		}
		configName := query.Get("configName")
		for _, session := range all {
			if configName == "" || session.ConfigName == configName {
				sessions = append(sessions, session)
			}
		}
	}

	configName := ""
	totalCells := 0
	if len(sessions) > 0 {
		configName = sessions[0].ConfigName
		if cfg := sessions[0].GameConfig; cfg != nil {
			totalCells = cfg.Rows * cfg.Cols
		}
	}

	entries := make([]map[string]interface{}, 0, len(sessions))
	for _, session := range sessions {
		entry := map[string]interface{}{
			"session_id":    session.ID,
			"config_name":   session.ConfigName,
			"game_state":    session.GameState,
			"created_at":    session.CreatedAt,
			"last_accessed": session.LastAccessedAt,
		}
		if session.GameState != nil {
			entry["scores"] = session.GameState.Scores
			entry["ended"] = session.GameState.Ended
		}
		entries = append(entries, entry)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"config_name": configName,
		"total_cells": totalCells,
		"sessions":    entries,
	})
}

// Room Handlers

type roomRequest struct {
	Name       string `json:"name"`
	ConfigName string `json:"config_name,omitempty"`
	Token      string `json:"token"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	room, seat, err := s.lobby.Create(req.Name, req.ConfigName)
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"room": room,
		"seat": seat,
	})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.lobby.List())
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.lobby.Get(mux.Vars(r)["code"])
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, room)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	room, seat, err := s.lobby.Join(mux.Vars(r)["code"], req.Name)
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"room": room,
		"seat": seat,
	})
}

func (s *Server) handleReadyRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	room, err := s.lobby.Ready(mux.Vars(r)["code"], req.Token)
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, room)
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.lobby.Leave(mux.Vars(r)["code"], req.Token); err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Left room"})
}

func (s *Server) handleStartRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	room, err := s.lobby.Start(r.Context(), mux.Vars(r)["code"], req.Token)
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, room)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	state, err := s.service.GetGameState(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "Invalid session", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, sessionID, state)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	}
	if sessions, err := s.service.ListSessions(r.Context()); err == nil {
		resp["sessions"] = len(sessions)
	}
	if s.lobby != nil {
		resp["rooms"] = s.lobby.Count()
	}
	respondJSON(w, http.StatusOK, resp)
}
