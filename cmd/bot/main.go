// Command bot plays Chain Reaction against a running server through the REST
// API. It creates a session (or continues one), picks moves with the same
// heuristic the server AI uses, acknowledges paced cascades and waits out AI
// turns, then resets the round until the requested number of games is done.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wricardo/chain-reaction-game/game/engine"
	"github.com/wricardo/chain-reaction-game/game/service"
	"github.com/wricardo/chain-reaction-game/logging"
)

// ErrStuck is returned when the bot has a turn but no legal move.
var ErrStuck = errors.New("no legal move")

// Client talks to the game REST API for a single session.
type Client struct {
	baseURL   string
	sessionID string
	token     string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SessionID returns the session the client plays in.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Use points the client at an existing session.
func (c *Client) Use(sessionID string) {
	c.sessionID = sessionID
}

// UseToken sends a room seat token with every move.
func (c *Client) UseToken(token string) {
	c.token = token
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("parse %s response: %w", path, err)
		}
	}
	return nil
}

func (c *Client) sessionPath(suffix string) string {
	return "/api/sessions/" + c.sessionID + suffix
}

// CreateSession starts a new session and plays in it from now on.
func (c *Client) CreateSession(ctx context.Context, configID string) (*service.SessionInfo, error) {
	var info service.SessionInfo
	if err := c.do(ctx, http.MethodPost, "/api/sessions", map[string]string{"config_id": configID}, &info); err != nil {
		return nil, err
	}
	c.sessionID = info.ID
	return &info, nil
}

func (c *Client) State(ctx context.Context) (*engine.GameState, error) {
	var state engine.GameState
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/state"), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) Move(ctx context.Context, pos engine.Position, player engine.PlayerID) (*service.MoveResult, error) {
	req := map[string]interface{}{"row": pos.Row, "col": pos.Col, "player": player}
	if c.token != "" {
		req["token"] = c.token
	}
	var result service.MoveResult
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/move"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Acknowledge(ctx context.Context) (*service.MoveResult, error) {
	var result service.MoveResult
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/ack"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Reset(ctx context.Context) (*engine.GameState, error) {
	var resp struct {
		State *engine.GameState `json:"state"`
	}
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/reset"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.State, nil
}

// Bot plays the seats of one session.
type Bot struct {
	client *Client
	rng    *rand.Rand
	logger *zap.Logger

	// Player is the seat to play; NoPlayer plays every human seat.
	Player   engine.PlayerID
	MaxMoves int
	Delay    time.Duration
	Poll     time.Duration
}

// GameResult summarizes one finished (or abandoned) game.
type GameResult struct {
	Round      int
	Moves      int
	Explosions int
	Rejected   int
	Winner     engine.PlayerID
	Finished   bool
}

func NewBot(client *Client, seed uint64, logger *zap.Logger) *Bot {
	return &Bot{
		client:   client,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		logger:   logging.OrNop(logger),
		MaxMoves: 1000,
		Poll:     100 * time.Millisecond,
	}
}

func (b *Bot) mine(p engine.Player) bool {
	if p.IsAutomated {
		return false
	}
	return b.Player == engine.NoPlayer || p.ID == b.Player
}

func (b *Bot) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// PlayGame plays the current round until it ends or MaxMoves bot moves were made.
func (b *Bot) PlayGame(ctx context.Context) (*GameResult, error) {
	result := &GameResult{}

	for {
		state, err := b.client.State(ctx)
		if err != nil {
			return result, err
		}
		result.Round = state.Round

		switch state.Phase {
		case engine.GameOver:
			result.Finished = true
			result.Winner = state.Winner
			return result, nil

		case engine.ResolvingExplosion:
			ack, err := b.client.Acknowledge(ctx)
			if err != nil {
				return result, err
			}
			if ack.Explosion != nil {
				result.Explosions++
			}
			continue

		case engine.AIThinking:
			if err := b.wait(ctx, b.Poll); err != nil {
				return result, err
			}
			continue
		}

		current := state.CurrentPlayer()
		if !b.mine(current) {
			if err := b.wait(ctx, b.Poll); err != nil {
				return result, err
			}
			continue
		}
		if result.Moves >= b.MaxMoves {
			return result, nil
		}

		pos, ok := engine.ChooseMove(state.Board, current.ID, b.rng)
		if !ok {
			return result, fmt.Errorf("player %d: %w", current.ID, ErrStuck)
		}

		move, err := b.client.Move(ctx, pos, current.ID)
		if err != nil {
			return result, err
		}
		if !move.Success {
			result.Rejected++
			b.logger.Warn("move rejected", zap.Int("row", pos.Row), zap.Int("col", pos.Col), zap.String("reason", string(move.Outcome.Reason)))
		} else {
			result.Moves++
			result.Explosions += move.Explosions
			b.logger.Debug("move", zap.Int("player", int(current.ID)), zap.Int("row", pos.Row), zap.Int("col", pos.Col), zap.Int("explosions", move.Explosions))
		}

		if err := b.wait(ctx, b.Delay); err != nil {
			return result, err
		}
	}
}

// Play plays games rounds, resetting the session between them.
func (b *Bot) Play(ctx context.Context, games int) ([]*GameResult, error) {
	var results []*GameResult
	for i := 0; i < games; i++ {
		if i > 0 {
			if _, err := b.client.Reset(ctx); err != nil {
				return results, err
			}
		}
		result, err := b.PlayGame(ctx)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			return results, err
		}
		b.logger.Info("game finished",
			zap.Int("round", result.Round),
			zap.Bool("finished", result.Finished),
			zap.Int("winner", int(result.Winner)),
			zap.Int("moves", result.Moves),
			zap.Int("explosions", result.Explosions),
		)
	}
	return results, nil
}

func printSummary(out io.Writer, sessionID string, results []*GameResult) {
	fmt.Fprintf(out, "Session: %s\n", sessionID)
	wins := make(map[engine.PlayerID]int)
	for _, r := range results {
		status := fmt.Sprintf("winner player %d", r.Winner)
		if !r.Finished {
			status = "unfinished"
		} else {
			wins[r.Winner]++
		}
		fmt.Fprintf(out, "Round %d: %s after %d bot moves, %d explosions\n", r.Round, status, r.Moves, r.Explosions)
	}
	for id := engine.PlayerID(1); id <= engine.PlayerID(engine.PlayerCount); id++ {
		fmt.Fprintf(out, "Player %d wins: %d\n", id, wins[id])
	}
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "bot",
		Usage: "play Chain Reaction against a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "game server URL", Sources: cli.EnvVars("GAME_URL")},
			&cli.StringFlag{Name: "config", Usage: "configuration ID for a new session (server default when empty)"},
			&cli.StringFlag{Name: "continue", Usage: "play in an existing session instead of creating one"},
			&cli.StringFlag{Name: "token", Usage: "room seat token for a session started from a room", Sources: cli.EnvVars("SEAT_TOKEN")},
			&cli.IntFlag{Name: "player", Usage: "seat to play (0 plays every human seat)"},
			&cli.IntFlag{Name: "games", Value: 1, Usage: "rounds to play, resetting between them"},
			&cli.IntFlag{Name: "max-moves", Value: 1000, Usage: "maximum bot moves per round"},
			&cli.DurationFlag{Name: "delay", Usage: "pause after each bot move"},
			&cli.Uint64Flag{Name: "seed", Value: uint64(time.Now().UnixNano()), Usage: "seed for tie-breaking between equal moves"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log every move"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, err := logging.New(cmd.Bool("verbose"))
			if err != nil {
				return err
			}
			defer logger.Sync()

			client := NewClient(cmd.String("url"))
			client.UseToken(cmd.String("token"))
			if id := cmd.String("continue"); id != "" {
				client.Use(id)
				if _, err := client.State(ctx); err != nil {
					return fmt.Errorf("continue session %s: %w", id, err)
				}
			} else {
				info, err := client.CreateSession(ctx, cmd.String("config"))
				if err != nil {
					return err
				}
				logger.Info("session created", zap.String("session", info.ID), zap.String("config", info.ConfigName))
			}

			bot := NewBot(client, cmd.Uint64("seed"), logger)
			bot.Player = engine.PlayerID(cmd.Int("player"))
			bot.MaxMoves = cmd.Int("max-moves")
			bot.Delay = cmd.Duration("delay")

			results, err := bot.Play(ctx, cmd.Int("games"))
			printSummary(out, client.SessionID(), results)
			return err
		},
	}
}

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "bot: %v\n", err)
		os.Exit(1)
	}
}
