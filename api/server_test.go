package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wricardo/chain-reaction-game/game/config"
	"github.com/wricardo/chain-reaction-game/game/engine"
	"github.com/wricardo/chain-reaction-game/game/lobby"
	"github.com/wricardo/chain-reaction-game/game/service"
	"github.com/wricardo/chain-reaction-game/transport/websocket"
)

// MockGameService implements service.GameService for testing
type MockGameService struct {
	// Session Management
	CreateSessionFunc func(ctx context.Context, configName string) (*service.SessionInfo, error)
	GetSessionFunc    func(ctx context.Context, sessionID string) (*service.SessionInfo, error)
	ListSessionsFunc  func(ctx context.Context) ([]*service.SessionInfo, error)
	DeleteSessionFunc func(ctx context.Context, sessionID string) error

	// Game Operations
	MoveFunc        func(ctx context.Context, sessionID string, row, col int, player engine.PlayerID, reset bool) (*service.MoveResult, error)
	AcknowledgeFunc func(ctx context.Context, sessionID string) (*service.MoveResult, error)
	ResetFunc       func(ctx context.Context, sessionID string) (*engine.GameState, error)
	SuggestMoveFunc func(ctx context.Context, sessionID string, player engine.PlayerID) (*service.Hint, error)

	// Game State
	GetGameStateFunc   func(ctx context.Context, sessionID string) (*engine.GameState, error)
	GetMoveHistoryFunc func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error)

	// Configuration
	ListConfigsFunc func(ctx context.Context) ([]*service.ConfigInfo, error)
	LoadConfigFunc  func(ctx context.Context, configName string) (*engine.GameConfig, error)
	SaveConfigFunc  func(ctx context.Context, configName string, config *engine.GameConfig) error
}

// Session Management
func (m *MockGameService) CreateSession(ctx context.Context, configName string) (*service.SessionInfo, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, configName)
	}
	return &service.SessionInfo{
		ID:         "test-session",
		ConfigName: configName,
		CreatedAt:  time.Now(),
		GameConfig: testConfig(),
	}, nil
}

func (m *MockGameService) GetSession(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return &service.SessionInfo{
		ID:         sessionID,
		ConfigName: "test-config",
		CreatedAt:  time.Now(),
	}, nil
}

func (m *MockGameService) ListSessions(ctx context.Context) ([]*service.SessionInfo, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx)
	}
	return []*service.SessionInfo{}, nil
}

func (m *MockGameService) DeleteSession(ctx context.Context, sessionID string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, sessionID)
	}
	return nil
}

// Game Operations
func (m *MockGameService) Move(ctx context.Context, sessionID string, row, col int, player engine.PlayerID, reset bool) (*service.MoveResult, error) {
	if m.MoveFunc != nil {
		return m.MoveFunc(ctx, sessionID, row, col, player, reset)
	}
	return &service.MoveResult{
		Success:   true,
		Outcome:   engine.MoveOutcome{Accepted: true},
		GameState: &engine.GameState{},
	}, nil
}

func (m *MockGameService) Acknowledge(ctx context.Context, sessionID string) (*service.MoveResult, error) {
	if m.AcknowledgeFunc != nil {
		return m.AcknowledgeFunc(ctx, sessionID)
	}
	return &service.MoveResult{Success: true, GameState: &engine.GameState{}}, nil
}

func (m *MockGameService) Reset(ctx context.Context, sessionID string) (*engine.GameState, error) {
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, sessionID)
	}
	return &engine.GameState{}, nil
}

func (m *MockGameService) SuggestMove(ctx context.Context, sessionID string, player engine.PlayerID) (*service.Hint, error) {
	if m.SuggestMoveFunc != nil {
		return m.SuggestMoveFunc(ctx, sessionID, player)
	}
	return &service.Hint{Player: player}, nil
}

// Game State
func (m *MockGameService) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	if m.GetGameStateFunc != nil {
		return m.GetGameStateFunc(ctx, sessionID)
	}
	return &engine.GameState{}, nil
}

func (m *MockGameService) GetMoveHistory(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
	if m.GetMoveHistoryFunc != nil {
		return m.GetMoveHistoryFunc(ctx, sessionID, opts)
	}
	return &service.HistoryResponse{
		Moves:      []engine.MoveHistoryEntry{},
		TotalMoves: 0,
		Page:       opts.Page,
		PageSize:   opts.Limit,
		TotalPages: 1,
	}, nil
}

// Configuration
func (m *MockGameService) ListConfigs(ctx context.Context) ([]*service.ConfigInfo, error) {
	if m.ListConfigsFunc != nil {
		return m.ListConfigsFunc(ctx)
	}
	return []*service.ConfigInfo{}, nil
}

func (m *MockGameService) LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error) {
	if m.LoadConfigFunc != nil {
		return m.LoadConfigFunc(ctx, configName)
	}
	return &engine.GameConfig{
		Name:        configName,
		Description: "Test config",
	}, nil
}

func (m *MockGameService) SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error {
	if m.SaveConfigFunc != nil {
		return m.SaveConfigFunc(ctx, configName, config)
	}
	return nil
}

func (m *MockGameService) Close() error { return nil }

// Test helpers
func testConfig() *engine.GameConfig {
	return &engine.GameConfig{
		ID:   "duel",
		Name: "Duel",
		Rows: 3,
		Cols: 3,
		Players: []engine.Player{
			{ID: 1, Name: "Red", Color: "red"},
			{ID: 2, Name: "Green", Color: "green"},
		},
		Messages: engine.DefaultMessages(),
	}
}

func testState(t *testing.T, moves ...engine.Position) *engine.GameState {
	t.Helper()
	eng, err := engine.NewEngine(testConfig())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	for _, m := range moves {
		if outcome := eng.ApplyMove(m.Row, m.Col, eng.CurrentPlayer().ID); !outcome.Accepted {
			t.Fatalf("Move %v rejected: %s", m, outcome.Reason)
		}
	}
	return eng.GetState().Clone()
}

func setupTestServer(t *testing.T, mockService *MockGameService) *Server {
	t.Helper()
	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return NewServer(mockService, hub, WithLobby(lobby.New(mockService)), WithStaticDir(t.TempDir()))
}

func makeRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(server *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
}

func intPtr(n int) *int { return &n }

// Session Management Tests

func TestCreateSession(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    map[string]string
		setupMock      func(*MockGameService)
		expectedStatus int
		validateResp   func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:        "Create session with default config",
			requestBody: nil,
			setupMock: func(m *MockGameService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					if configName != "" {
						t.Errorf("Expected empty config name, got %q", configName)
					}
					return &service.SessionInfo{ID: "sess-123", ConfigName: "classic"}, nil
				}
			},
			expectedStatus: http.StatusCreated,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.SessionInfo
				parseResponse(t, w, &resp)
				if resp.ID != "sess-123" {
					t.Errorf("Expected session ID sess-123, got %s", resp.ID)
				}
			},
		},
		{
			name:        "Create session with config_id",
			requestBody: map[string]string{"config_id": "duel"},
			setupMock: func(m *MockGameService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					return &service.SessionInfo{ID: "sess-456", ConfigName: configName}, nil
				}
			},
			expectedStatus: http.StatusCreated,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.SessionInfo
				parseResponse(t, w, &resp)
				if resp.ConfigName != "duel" {
					t.Errorf("Expected config duel, got %s", resp.ConfigName)
				}
			},
		},
		{
			name:        "Deprecated config_name still works",
			requestBody: map[string]string{"config_name": "paced"},
			setupMock: func(m *MockGameService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					return &service.SessionInfo{ID: "sess-789", ConfigName: configName}, nil
				}
			},
			expectedStatus: http.StatusCreated,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.SessionInfo
				parseResponse(t, w, &resp)
				if resp.ConfigName != "paced" {
					t.Errorf("Expected config paced, got %s", resp.ConfigName)
				}
			},
		},
		{
			name:        "Unknown config",
			requestBody: map[string]string{"config_id": "nope"},
			setupMock: func(m *MockGameService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					return nil, fmt.Errorf("%w: %s", service.ErrConfigNotFound, configName)
				}
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{}
			if tt.setupMock != nil {
				tt.setupMock(mockService)
			}
			server := setupTestServer(t, mockService)

			var req *http.Request
			if tt.requestBody == nil {
				req = httptest.NewRequest("POST", "/api/sessions", nil)
			} else {
				req = makeRequest("POST", "/api/sessions", tt.requestBody)
			}
			w := serve(server, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.validateResp != nil {
				tt.validateResp(t, w)
			}
		})
	}
}

func TestListSessions(t *testing.T) {
	now := time.Now()
	sessions := func() []*service.SessionInfo {
		return []*service.SessionInfo{
			{ID: "a", CreatedAt: now.Add(-3 * time.Hour), LastAccessedAt: now.Add(-1 * time.Minute)},
			{ID: "b", CreatedAt: now.Add(-2 * time.Hour), LastAccessedAt: now.Add(-3 * time.Minute)},
			{ID: "c", CreatedAt: now.Add(-1 * time.Hour), LastAccessedAt: now.Add(-2 * time.Minute)},
		}
	}

	tests := []struct {
		name      string
		query     string
		wantOrder []string
		wantTotal int
	}{
		{"default sorts by last access desc", "", []string{"a", "c", "b"}, 3},
		{"created ascending", "?sort=created&order=asc", []string{"a", "b", "c"}, 3},
		{"created descending", "?sort=created", []string{"c", "b", "a"}, 3},
		{"limit", "?sort=created&order=asc&limit=2", []string{"a", "b"}, 3},
		{"bad limit ignored", "?limit=zero", []string{"a", "c", "b"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{
				ListSessionsFunc: func(ctx context.Context) ([]*service.SessionInfo, error) {
					return sessions(), nil
				},
			}
			server := setupTestServer(t, mockService)
			w := serve(server, httptest.NewRequest("GET", "/api/sessions"+tt.query, nil))

			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			var resp struct {
				Count    int                    `json:"count"`
				Total    int                    `json:"total"`
				Sessions []*service.SessionInfo `json:"sessions"`
			}
			parseResponse(t, w, &resp)

			if resp.Total != tt.wantTotal || resp.Count != len(tt.wantOrder) {
				t.Errorf("Expected count %d of %d, got %d of %d", len(tt.wantOrder), tt.wantTotal, resp.Count, resp.Total)
			}
			for i, id := range tt.wantOrder {
				if i >= len(resp.Sessions) || resp.Sessions[i].ID != id {
					t.Fatalf("Expected order %v, got %+v", tt.wantOrder, resp.Sessions)
				}
			}
		})
	}
}

func TestGetAndDeleteSession(t *testing.T) {
	mockService := &MockGameService{
		GetSessionFunc: func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
			if sessionID != "abcd" {
				return nil, fmt.Errorf("%w: %s", service.ErrSessionNotFound, sessionID)
			}
			return &service.SessionInfo{ID: sessionID, ConfigName: "classic"}, nil
		},
		DeleteSessionFunc: func(ctx context.Context, sessionID string) error {
			if sessionID != "abcd" {
				return service.ErrSessionNotFound
			}
			return nil
		},
	}
	server := setupTestServer(t, mockService)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/api/sessions/abcd", http.StatusOK},
		{"GET", "/api/sessions/zzzz", http.StatusNotFound},
		{"DELETE", "/api/sessions/abcd", http.StatusOK},
		{"DELETE", "/api/sessions/zzzz", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(server, httptest.NewRequest(tt.method, tt.path, nil))
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

// Game Operation Tests

func TestMove(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		setupMock      func(*testing.T, *MockGameService)
		expectedStatus int
		validateResp   func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name: "Accepted move",
			body: moveRequest{Row: intPtr(1), Col: intPtr(2), Player: 1},
			setupMock: func(t *testing.T, m *MockGameService) {
				m.MoveFunc = func(ctx context.Context, sessionID string, row, col int, player engine.PlayerID, reset bool) (*service.MoveResult, error) {
					if sessionID != "abcd" || row != 1 || col != 2 || player != 1 || reset {
						t.Errorf("Unexpected move args %s (%d,%d) p%d reset=%v", sessionID, row, col, player, reset)
					}
					return &service.MoveResult{
						Success:   true,
						Outcome:   engine.MoveOutcome{Accepted: true},
						GameState: &engine.GameState{TotalMoves: 1},
					}, nil
				}
			},
			expectedStatus: http.StatusOK,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.MoveResult
				parseResponse(t, w, &resp)
				if !resp.Success || resp.GameState.TotalMoves != 1 {
					t.Errorf("Expected a successful move, got %+v", resp)
				}
			},
		},
		{
			name: "Rejected move is still 200",
			body: moveRequest{Row: intPtr(0), Col: intPtr(0), Player: 2},
			setupMock: func(t *testing.T, m *MockGameService) {
				m.MoveFunc = func(ctx context.Context, sessionID string, row, col int, player engine.PlayerID, reset bool) (*service.MoveResult, error) {
					return &service.MoveResult{
						Outcome: engine.MoveOutcome{Reason: engine.ReasonNotYourTurn},
						Message: "Not your turn",
					}, nil
				}
			},
			expectedStatus: http.StatusOK,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.MoveResult
				parseResponse(t, w, &resp)
				if resp.Success || resp.Outcome.Reason != engine.ReasonNotYourTurn {
					t.Errorf("Expected a rejected move, got %+v", resp)
				}
			},
		},
		{
			name: "Reset flag passed through",
			body: map[string]interface{}{"row": 0, "col": 0, "player": 1, "reset": true},
			setupMock: func(t *testing.T, m *MockGameService) {
				m.MoveFunc = func(ctx context.Context, sessionID string, row, col int, player engine.PlayerID, reset bool) (*service.MoveResult, error) {
					if !reset {
						t.Error("Expected reset to be true")
					}
					return &service.MoveResult{Success: true}, nil
				}
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Missing coordinates",
			body:           map[string]interface{}{"player": 1},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Invalid body",
			body:           "not json",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Unknown session",
			body: moveRequest{Row: intPtr(0), Col: intPtr(0), Player: 1},
			setupMock: func(t *testing.T, m *MockGameService) {
				m.MoveFunc = func(ctx context.Context, sessionID string, row, col int, player engine.PlayerID, reset bool) (*service.MoveResult, error) {
					return nil, service.ErrSessionNotFound
				}
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Token without room",
			body:           moveRequest{Row: intPtr(0), Col: intPtr(0), Token: "bogus"},
			expectedStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{}
			if tt.setupMock != nil {
				tt.setupMock(t, mockService)
			}
			server := setupTestServer(t, mockService)

			var req *http.Request
			if s, ok := tt.body.(string); ok {
				req = httptest.NewRequest("POST", "/api/sessions/abcd/move", strings.NewReader(s))
			} else {
				req = makeRequest("POST", "/api/sessions/abcd/move", tt.body)
			}
			w := serve(server, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.validateResp != nil {
				tt.validateResp(t, w)
			}
		})
	}
}

func TestAcknowledge(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"steps the cascade", nil, http.StatusOK},
		{"nothing to acknowledge", service.ErrNotPaced, http.StatusConflict},
		{"unknown session", service.ErrSessionNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{
				AcknowledgeFunc: func(ctx context.Context, sessionID string) (*service.MoveResult, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &service.MoveResult{
						Success:   true,
						Explosion: &engine.Explosion{Position: engine.Position{Row: 0, Col: 0}, Player: 1},
					}, nil
				},
			}
			server := setupTestServer(t, mockService)
			w := serve(server, httptest.NewRequest("POST", "/api/sessions/abcd/ack", nil))
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestReset(t *testing.T) {
	mockService := &MockGameService{
		ResetFunc: func(ctx context.Context, sessionID string) (*engine.GameState, error) {
			return &engine.GameState{Round: 2}, nil
		},
	}
	server := setupTestServer(t, mockService)

	w := serve(server, httptest.NewRequest("POST", "/api/sessions/abcd/reset", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp struct {
		Message string            `json:"message"`
		State   *engine.GameState `json:"state"`
	}
	parseResponse(t, w, &resp)
	if resp.State == nil || resp.State.Round != 2 {
		t.Errorf("Expected round 2 state, got %+v", resp.State)
	}
}

func TestGetHistory(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  service.HistoryOptions
	}{
		{"defaults", "", service.HistoryOptions{Page: 1, Limit: 20, Order: "desc"}},
		{"explicit", "?page=3&limit=5&order=asc", service.HistoryOptions{Page: 3, Limit: 5, Order: "asc"}},
		{"invalid values ignored", "?page=-1&limit=x&order=up", service.HistoryOptions{Page: 1, Limit: 20, Order: "desc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got service.HistoryOptions
			mockService := &MockGameService{
				GetMoveHistoryFunc: func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
					got = opts
					return &service.HistoryResponse{Page: opts.Page, PageSize: opts.Limit}, nil
				},
			}
			server := setupTestServer(t, mockService)
			w := serve(server, httptest.NewRequest("GET", "/api/sessions/abcd/history"+tt.query, nil))
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			if got != tt.want {
				t.Errorf("Expected options %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestHint(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantPlayer engine.PlayerID
		err        error
		want       int
	}{
		{"current player", "", engine.NoPlayer, nil, http.StatusOK},
		{"explicit player", "?player=2", 2, nil, http.StatusOK},
		{"bad player", "?player=two", 0, nil, http.StatusBadRequest},
		{"unknown player", "?player=9", 9, service.ErrInvalidMove, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{
				SuggestMoveFunc: func(ctx context.Context, sessionID string, player engine.PlayerID) (*service.Hint, error) {
					if player != tt.wantPlayer {
						t.Errorf("Expected player %d, got %d", tt.wantPlayer, player)
					}
					if tt.err != nil {
						return nil, tt.err
					}
					return &service.Hint{Player: 1, Position: engine.Position{Row: 0, Col: 0}, Score: -1}, nil
				},
			}
			server := setupTestServer(t, mockService)
			w := serve(server, httptest.NewRequest("GET", "/api/sessions/abcd/hint"+tt.query, nil))
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestGetGameStateAndBoard(t *testing.T) {
	state := testState(t, engine.Position{Row: 0, Col: 0}, engine.Position{Row: 2, Col: 2})
	mockService := &MockGameService{
		GetGameStateFunc: func(ctx context.Context, sessionID string) (*engine.GameState, error) {
			if sessionID != "abcd" {
				return nil, service.ErrSessionNotFound
			}
			return state, nil
		},
	}
	server := setupTestServer(t, mockService)

	w := serve(server, httptest.NewRequest("GET", "/api/sessions/abcd/state", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var got engine.GameState
	parseResponse(t, w, &got)
	if got.TotalMoves != 2 || got.Board.At(2, 2).Owner() != 2 {
		t.Errorf("Expected the two-move state, got %+v", got)
	}

	w = serve(server, httptest.NewRequest("GET", "/api/sessions/abcd/board", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("Expected text/plain, got %s", w.Header().Get("Content-Type"))
	}
	if w.Body.String() != engine.RenderBoard(state.Board, state.Players) {
		t.Errorf("Unexpected board rendering:\n%s", w.Body.String())
	}

	w = serve(server, httptest.NewRequest("GET", "/api/sessions/zzzz/state", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

// Configuration Tests

func TestConfigs(t *testing.T) {
	var saved string
	mockService := &MockGameService{
		ListConfigsFunc: func(ctx context.Context) ([]*service.ConfigInfo, error) {
			return []*service.ConfigInfo{{ConfigID: "classic", Rows: 8, Cols: 8, Mode: "human_vs_ai"}}, nil
		},
		LoadConfigFunc: func(ctx context.Context, configName string) (*engine.GameConfig, error) {
			if configName != "classic" {
				return nil, config.ErrConfigNotFound
			}
			return engine.DefaultConfig(), nil
		},
		SaveConfigFunc: func(ctx context.Context, configName string, cfg *engine.GameConfig) error {
			if cfg.Rows == 0 {
				return fmt.Errorf("%w: rows", config.ErrInvalidConfig)
			}
			saved = configName
			return nil
		},
	}
	server := setupTestServer(t, mockService)

	t.Run("list", func(t *testing.T) {
		w := serve(server, httptest.NewRequest("GET", "/api/configs", nil))
		var configs []*service.ConfigInfo
		parseResponse(t, w, &configs)
		if len(configs) != 1 || configs[0].ConfigID != "classic" {
			t.Errorf("Unexpected configs %+v", configs)
		}
	})

	t.Run("get strips extension", func(t *testing.T) {
		for _, path := range []string{"/api/configs/classic", "/api/configs/classic.json", "/api/configs/classic.yaml"} {
			w := serve(server, httptest.NewRequest("GET", path, nil))
			if w.Code != http.StatusOK {
				t.Errorf("%s: expected status 200, got %d", path, w.Code)
			}
		}
	})

	t.Run("get unknown", func(t *testing.T) {
		w := serve(server, httptest.NewRequest("GET", "/api/configs/nope", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})

	tests := []struct {
		name      string
		query     string
		body      *engine.GameConfig
		want      int
		wantSaved string
	}{
		{"slug from name", "", &engine.GameConfig{Name: "Big Board!", Rows: 9, Cols: 9}, http.StatusCreated, "big-board"},
		{"explicit id as yaml", "?id=mine&format=yaml", &engine.GameConfig{Name: "Mine", Rows: 4, Cols: 4}, http.StatusCreated, "mine.yaml"},
		{"missing name", "", &engine.GameConfig{Rows: 4, Cols: 4}, http.StatusBadRequest, ""},
		{"invalid config", "", &engine.GameConfig{Name: "Broken"}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saved = ""
			w := serve(server, makeRequest("POST", "/api/configs"+tt.query, tt.body))
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			if saved != tt.wantSaved {
				t.Errorf("Expected save as %q, got %q", tt.wantSaved, saved)
			}
		})
	}
}

func TestUnifiedSessions(t *testing.T) {
	cfg := testConfig()
	state := testState(t, engine.Position{Row: 1, Col: 1})
	all := []*service.SessionInfo{
		{ID: "a", ConfigName: "duel", GameConfig: cfg, GameState: state},
		{ID: "b", ConfigName: "classic", GameState: state},
		{ID: "c", ConfigName: "duel", GameConfig: cfg, GameState: state},
	}
	mockService := &MockGameService{
		ListSessionsFunc: func(ctx context.Context) ([]*service.SessionInfo, error) { return all, nil },
		GetSessionFunc: func(ctx context.Context, id string) (*service.SessionInfo, error) {
			for _, s := range all {
				if s.ID == id {
					return s, nil
				}
			}
			return nil, service.ErrSessionNotFound
		},
	}
	server := setupTestServer(t, mockService)

	tests := []struct {
		query     string
		wantCount int
		wantCells int
	}{
		{"", 3, 9},
		{"?configName=duel", 2, 9},
		{"?sessionIds=c,missing,b", 2, 9},
		{"?configName=none", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := serve(server, httptest.NewRequest("GET", "/api/sessions/unified"+tt.query, nil))
			var resp struct {
				TotalCells int                      `json:"total_cells"`
				Sessions   []map[string]interface{} `json:"sessions"`
			}
			parseResponse(t, w, &resp)
			if len(resp.Sessions) != tt.wantCount || resp.TotalCells != tt.wantCells {
				t.Errorf("Expected %d sessions with %d cells, got %d with %d", tt.wantCount, tt.wantCells, len(resp.Sessions), resp.TotalCells)
			}
		})
	}
}

// Room Tests

func TestRoomFlow(t *testing.T) {
	var moved engine.PlayerID
	mockService := &MockGameService{
		MoveFunc: func(ctx context.Context, sessionID string, row, col int, player engine.PlayerID, reset bool) (*service.MoveResult, error) {
			moved = player
			return &service.MoveResult{Success: true}, nil
		},
	}
	server := setupTestServer(t, mockService)

	type seatResponse struct {
		Room lobby.Room `json:"room"`
		Seat lobby.Seat `json:"seat"`
	}

	w := serve(server, makeRequest("POST", "/api/rooms", map[string]string{"name": "alice"}))
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var host seatResponse
	parseResponse(t, w, &host)
	code := host.Room.Code

	w = serve(server, makeRequest("POST", "/api/rooms/"+code+"/join", map[string]string{"name": "bob"}))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var guest seatResponse
	parseResponse(t, w, &guest)

	w = serve(server, makeRequest("POST", "/api/rooms/"+code+"/join", map[string]string{"name": "carol"}))
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for a full room, got %d", w.Code)
	}

	w = serve(server, makeRequest("POST", "/api/rooms/"+code+"/start", map[string]string{"token": guest.Seat.Token}))
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for a non-host start, got %d", w.Code)
	}
	w = serve(server, makeRequest("POST", "/api/rooms/"+code+"/start", map[string]string{"token": host.Seat.Token}))
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 before everyone is ready, got %d", w.Code)
	}

	w = serve(server, makeRequest("POST", "/api/rooms/"+code+"/ready", map[string]string{"token": guest.Seat.Token}))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	w = serve(server, makeRequest("POST", "/api/rooms/"+code+"/start", map[string]string{"token": host.Seat.Token}))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var started lobby.Room
	parseResponse(t, w, &started)
	if started.SessionID != "test-session" {
		t.Fatalf("Expected session test-session, got %q", started.SessionID)
	}

	w = serve(server, makeRequest("POST", "/api/sessions/test-session/move", moveRequest{
		Row: intPtr(0), Col: intPtr(0), Player: 1, Room: code, Token: guest.Seat.Token,
	}))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if moved != 2 {
		t.Errorf("Expected the seat token to move as player 2, got %d", moved)
	}

	w = serve(server, makeRequest("POST", "/api/sessions/other/move", moveRequest{
		Row: intPtr(0), Col: intPtr(0), Room: code, Token: guest.Seat.Token,
	}))
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for a token from another session, got %d", w.Code)
	}

	forbidden := []struct {
		name string
		req  moveRequest
	}{
		{"room without token", moveRequest{Row: intPtr(0), Col: intPtr(0), Player: 1, Room: code}},
		{"no room and no token", moveRequest{Row: intPtr(0), Col: intPtr(0), Player: 1}},
		{"unknown token", moveRequest{Row: intPtr(0), Col: intPtr(0), Player: 1, Token: "bogus"}},
	}
	for _, tt := range forbidden {
		t.Run(tt.name, func(t *testing.T) {
			moved = 0
			w := serve(server, makeRequest("POST", "/api/sessions/test-session/move", tt.req))
			if w.Code != http.StatusForbidden {
				t.Errorf("Expected 403, got %d: %s", w.Code, w.Body.String())
			}
			if moved != 0 {
				t.Errorf("Move should not reach the service, moved as %d", moved)
			}
		})
	}

	w = serve(server, makeRequest("POST", "/api/sessions/test-session/move", moveRequest{
		Row: intPtr(0), Col: intPtr(0), Player: 2, Token: host.Seat.Token,
	}))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if moved != 1 {
		t.Errorf("Expected the host token to move as player 1, got %d", moved)
	}

	w = serve(server, httptest.NewRequest("GET", "/api/rooms/"+strings.ToLower(code), nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected room lookup to ignore case, got %d", w.Code)
	}
	w = serve(server, httptest.NewRequest("GET", "/api/rooms/FFFFFG", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown room, got %d", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrapped: %w", service.ErrSessionNotFound), http.StatusNotFound},
		{service.ErrConfigNotFound, http.StatusNotFound},
		{lobby.ErrRoomNotFound, http.StatusNotFound},
		{service.ErrInvalidMove, http.StatusBadRequest},
		{config.ErrInvalidConfig, http.StatusBadRequest},
		{lobby.ErrNotHost, http.StatusForbidden},
		{service.ErrNotPaced, http.StatusConflict},
		{lobby.ErrPlayersNotReady, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestHealth(t *testing.T) {
	server := setupTestServer(t, &MockGameService{})
	w := serve(server, httptest.NewRequest("GET", "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp map[string]interface{}
	parseResponse(t, w, &resp)
	if resp["status"] != "healthy" {
		t.Errorf("Expected healthy, got %v", resp["status"])
	}
	if _, ok := resp["rooms"]; !ok {
		t.Error("Expected room count in health response")
	}
}

func TestWebSocket(t *testing.T) {
	state := testState(t, engine.Position{Row: 0, Col: 0})
	mockService := &MockGameService{
		GetGameStateFunc: func(ctx context.Context, sessionID string) (*engine.GameState, error) {
			if sessionID != "abcd" {
				return nil, service.ErrSessionNotFound
			}
			return state, nil
		},
	}
	server := setupTestServer(t, mockService)
	ts := httptest.NewServer(server)
	defer ts.Close()

	t.Run("missing session", func(t *testing.T) {
		w := serve(server, httptest.NewRequest("GET", "/ws", nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		w := serve(server, httptest.NewRequest("GET", "/ws?session=zzzz", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})

	t.Run("receives initial state", func(t *testing.T) {
		wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?session=abcd"
		conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("Failed to connect: %v", err)
		}
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed to read message: %v", err)
		}
		var message websocket.Message
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to parse message: %v", err)
		}
		if message.Event != "state_update" || message.GameState == nil || message.GameState.TotalMoves != 1 {
			t.Errorf("Unexpected initial message %+v", message)
		}
	})
}

func TestMove_LogFields(t *testing.T) {
	mockService := &MockGameService{
		MoveFunc: func(ctx context.Context, sessionID string, row, col int, player engine.PlayerID, reset bool) (*service.MoveResult, error) {
			return &service.MoveResult{
				Success:    false,
				Outcome:    engine.MoveOutcome{Reason: engine.ReasonOpponentCell},
				Explosions: 3,
			}, nil
		},
	}
	core, logs := observer.New(zapcore.InfoLevel)
	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	server := NewServer(mockService, hub, WithLogger(zap.New(core)), WithStaticDir(t.TempDir()))

	w := serve(server, makeRequest("POST", "/api/sessions/abcd/move", moveRequest{Row: intPtr(1), Col: intPtr(2), Player: 2}))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	entries := logs.FilterMessage("[MOVE]").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one [MOVE] entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	want := map[string]interface{}{
		"session":    "abcd",
		"player":     int64(2),
		"row":        int64(1),
		"col":        int64(2),
		"status":     "REJECTED",
		"explosions": int64(3),
		"reason":     string(engine.ReasonOpponentCell),
	}
	for key, value := range want {
		if fields[key] != value {
			t.Errorf("Field %s = %v, want %v", key, fields[key], value)
		}
	}
}
