package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/chain-reaction-game/game/engine"
	"github.com/wricardo/chain-reaction-game/game/lobby"
	"github.com/wricardo/chain-reaction-game/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Chain Reaction",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Chain Reaction - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Own every orb on the board. Players take turns placing one orb on an empty
cell or a cell they own. A cell holding as many orbs as it has neighbours
explodes: it empties and sends one orb to each neighbour, converting it to
the exploding player's colour. Explosions chain.

AVAILABLE TOOLS:
- create_session / get_session / list_sessions: manage games
- game_state: board, scores and whose turn it is
- place_orb: place an orb at (row, col) - requires intent explanation
- acknowledge: resolve the next explosion of a paced cascade
- suggest_move: the built-in AI's preferred cells for a player
- describe_cell: details for one cell
- reset_game: start a new round
- move_history: past moves
- list_configs: available board setups
- create_room / join_room / room_status / ready_room / start_room: two-player rooms
- game_instructions: full rules

NOTE: The 'intent' parameter on place_orb serves as rubber duck debugging - explain your reasoning!`),
	)

	c.registerTools()
}

func sessionIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

func roomProperties(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"code": map[string]interface{}{
			"type":        "string",
			"description": "Six-character room code",
		},
		"token": map[string]interface{}{
			"type":        "string",
			"description": "Seat token returned when creating or joining the room",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session with optional config selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "ID of the config to use (optional, see list_configs)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the current board, scores and turn",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "place_orb",
		Description: "Place an orb for a player at (row, col)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"row": map[string]interface{}{
					"type":        "integer",
					"description": "Row index, 0 is the top row",
				},
				"col": map[string]interface{}{
					"type":        "integer",
					"description": "Column index, 0 is the left column",
				},
				"player": map[string]interface{}{
					"type":        "integer",
					"description": "Player ID making the move (defaults to the player whose turn it is)",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of the intent behind this move (serves as a rubber duck to help explain your reasoning)",
				},
				"reset": map[string]interface{}{
					"type":        "boolean",
					"description": "Reset before moving",
				},
				"token": map[string]interface{}{
					"type":        "string",
					"description": "Seat token, required in games started from a room",
				},
			},
			Required: []string{"session_id", "row", "col"},
		},
	}, c.handlePlaceOrb)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "acknowledge",
		Description: "Resolve the next explosion of a paced cascade",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleAcknowledge)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "suggest_move",
		Description: "Ask the built-in AI heuristic for the best cells for a player",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"player": map[string]interface{}{
					"type":        "integer",
					"description": "Player ID (defaults to the player whose turn it is)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleSuggestMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_game",
		Description: "Reset the game to an empty board",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "move_history",
		Description: "Get move history with pagination",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number (default 1)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Moves per page (default 20)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleMoveHistory)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available game configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the complete rules and strategy notes",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Get owner, orbs, critical mass and neighbours of one cell",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"row":        map[string]interface{}{"type": "integer", "description": "Row index"},
				"col":        map[string]interface{}{"type": "integer", "description": "Column index"},
			},
			Required: []string{"session_id", "row", "col"},
		},
	}, c.handleDescribeCell)

	// Rooms
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_room",
		Description: "Open a two-player room and get its code and your seat token",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name":      map[string]interface{}{"type": "string", "description": "Your player name"},
				"config_id": map[string]interface{}{"type": "string", "description": "Config to play (default duel)"},
			},
			Required: []string{"name"},
		},
	}, c.handleCreateRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "join_room",
		Description: "Join a room by code",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code": map[string]interface{}{"type": "string", "description": "Six-character room code"},
				"name": map[string]interface{}{"type": "string", "description": "Your player name"},
			},
			Required: []string{"code", "name"},
		},
	}, c.handleJoinRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "room_status",
		Description: "Show members, readiness and the session of a room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"code": map[string]interface{}{"type": "string", "description": "Six-character room code"},
			},
			Required: []string{"code"},
		},
	}, c.handleRoomStatus)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "ready_room",
		Description: "Mark yourself ready in a room",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: roomProperties(nil),
			Required:   []string{"code", "token"},
		},
	}, c.handleReadyRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_room",
		Description: "Start the game (host only, once everyone is ready)",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: roomProperties(nil),
			Required:   []string{"code", "token"},
		},
	}, c.handleStartRoom)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	return args
}

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg reads a JSON number argument.
func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	default:
		return 0, false
	}
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

func roomPath(code, suffix string) string {
	return "/api/rooms/" + url.PathEscape(code) + suffix
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	body := map[string]string{}
	if configID := stringArg(args, "config_id"); configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Created session: %s\nConfig: %s\n\n%s",
		session.ID, session.ConfigName, formatGameState(session.GameState))), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		status := "in progress"
		if s.GameState != nil && s.GameState.Ended {
			status = "finished"
		}
		fmt.Fprintf(&b, "- %s (Config: %s, Created: %s, %s)\n",
			s.ID, s.ConfigName, s.CreatedAt.Format("15:04:05"), status)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(arguments(request), "session_id")

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(arguments(request), "session_id")

	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handlePlaceOrb(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID := stringArg(args, "session_id")
	row, okRow := intArg(args, "row")
	col, okCol := intArg(args, "col")
	if !okRow || !okCol {
		return mcp.NewToolResultError("row and col are required"), nil
	}
	reset, _ := args["reset"].(bool)
	// Intent is rubber duck debugging; nothing reads it.
	_ = stringArg(args, "intent")

	player, ok := intArg(args, "player")
	if !ok {
		var state engine.GameState
		if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(state.Players) > 0 {
			player = int(state.CurrentPlayer().ID)
		}
	}

	body := map[string]interface{}{
		"row":    row,
		"col":    col,
		"player": player,
		"reset":  reset,
	}
	if token := stringArg(args, "token"); token != "" {
		body["token"] = token
	}

	var result service.MoveResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/move"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMoveResult(&result)), nil
}

func (c *Client) handleAcknowledge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(arguments(request), "session_id")

	var result service.MoveResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/ack"), nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMoveResult(&result)), nil
}

func (c *Client) handleSuggestMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID := stringArg(args, "session_id")

	path := sessionPath(sessionID, "/hint")
	if player, ok := intArg(args, "player"); ok {
		path += fmt.Sprintf("?player=%d", player)
	}

	var hint service.Hint
	if err := c.apiCall(ctx, "GET", path, nil, &hint); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHint(&hint)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(arguments(request), "session_id")

	var response struct {
		Message string            `json:"message"`
		State   *engine.GameState `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatGameState(response.State))), nil
}

func (c *Client) handleMoveHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID := stringArg(args, "session_id")

	params := url.Values{}
	if page, ok := intArg(args, "page"); ok {
		params.Set("page", fmt.Sprint(page))
	}
	if limit, ok := intArg(args, "limit"); ok {
		params.Set("limit", fmt.Sprint(limit))
	}
	path := sessionPath(sessionID, "/history")
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := formatHistory(&history)

	// Current round from the live state
	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err == nil {
		result += "\n" + formatCurrentRound(&state)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Configurations:\n\n")
	for _, config := range configs {
		paced := ""
		if config.PacedCascades {
			paced = ", paced cascades"
		}
		fmt.Fprintf(&b, "• %s (%s)\n  %s\n  Board: %dx%d, Mode: %s%s\n\n",
			config.ConfigID, config.Name, config.Description, config.Rows, config.Cols, config.Mode, paced)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `Chain Reaction - Complete Instructions

BOARD:
A grid of cells. Rows are numbered from 0 at the top, columns from 0 at the left.

CRITICAL MASS:
• Corner cells explode at 2 orbs
• Edge cells explode at 3 orbs
• Interior cells explode at 4 orbs

TURNS:
• On your turn place one orb on an empty cell or a cell you already own.
• You cannot place on an opponent's cell, out of turn, or while a cascade is resolving.

EXPLOSIONS:
• A cell that reaches critical mass empties and sends one orb to each neighbour.
• Each neighbour becomes yours and keeps its previous orbs plus the new one.
• Neighbours that reach critical mass explode in turn, in the order they filled up.
• Paced configs pause after each explosion until someone calls acknowledge.

WINNING:
• Once both players have moved, a player who owns every orb on the board wins.
• The cascade stops as soon as one player owns everything.

STRATEGY NOTES:
• suggest_move shows the cells the built-in AI prefers: those closest to exploding.
• Cells one orb short of critical mass are loaded; capturing them lets you chain.
• Corners explode quickly but only reach two neighbours.

BOARD LEGEND (game_state):
 .   empty
 R2  two orbs owned by the player whose colour starts with R`

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID := stringArg(args, "session_id")
	row, okRow := intArg(args, "row")
	col, okCol := intArg(args, "col")
	if !okRow || !okCol {
		return mcp.NewToolResultError("row and col are required"), nil
	}

	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if state.Board == nil {
		return mcp.NewToolResultError("game state has no board"), nil
	}

	b := state.Board
	if !b.InBounds(row, col) {
		return mcp.NewToolResultError(fmt.Sprintf("Coordinates (%d, %d) are out of bounds. Board is %dx%d (rows 0-%d, cols 0-%d)",
			row, col, b.Rows(), b.Cols(), b.Rows()-1, b.Cols()-1)), nil
	}

	return mcp.NewToolResultText(describeCell(&state, row, col)), nil
}

func (c *Client) handleCreateRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	body := map[string]string{
		"name":        stringArg(args, "name"),
		"config_name": stringArg(args, "config_id"),
	}

	var resp struct {
		Room lobby.Room `json:"room"`
		Seat lobby.Seat `json:"seat"`
	}
	if err := c.apiCall(ctx, "POST", "/api/rooms", body, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Room %s created.\nYour seat token: %s\nShare the code with your opponent.\n\n%s",
		resp.Room.Code, resp.Seat.Token, formatRoom(&resp.Room))), nil
}

func (c *Client) handleJoinRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	code := stringArg(args, "code")

	var resp struct {
		Room lobby.Room `json:"room"`
		Seat lobby.Seat `json:"seat"`
	}
	if err := c.apiCall(ctx, "POST", roomPath(code, "/join"), map[string]string{"name": stringArg(args, "name")}, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Joined room %s.\nYour seat token: %s\n\n%s",
		resp.Room.Code, resp.Seat.Token, formatRoom(&resp.Room))), nil
}

func (c *Client) handleRoomStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var room lobby.Room
	if err := c.apiCall(ctx, "GET", roomPath(stringArg(arguments(request), "code"), ""), nil, &room); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRoom(&room)), nil
}

func (c *Client) handleReadyRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.roomAction(ctx, request, "/ready")
}

func (c *Client) handleStartRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.roomAction(ctx, request, "/start")
}

func (c *Client) roomAction(ctx context.Context, request mcp.CallToolRequest, suffix string) (*mcp.CallToolResult, error) {
	args := arguments(request)

	var room lobby.Room
	body := map[string]string{"token": stringArg(args, "token")}
	if err := c.apiCall(ctx, "POST", roomPath(stringArg(args, "code"), suffix), body, &room); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRoom(&room)), nil
}
