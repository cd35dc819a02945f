// Command analyze prints quick, human-readable statistics about the game
// configurations in the configs directory: board dimensions, how many corner,
// edge and interior cells the board has, how many orbs it holds before any
// cell goes critical, and the outcome of seeded AI-vs-AI self-play games.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/chain-reaction-game/game/config"
	"github.com/wricardo/chain-reaction-game/game/engine"
)

// Report is the analysis of one configuration.
type Report struct {
	ConfigID string
	Name     string
	Rows     int
	Cols     int
	Classes  map[engine.PositionClass]int
	Capacity int
	Players  []engine.Player
	SelfPlay *SelfPlayStats
}

// SelfPlayStats summarizes a batch of AI-vs-AI games.
type SelfPlayStats struct {
	Games         int
	Wins          map[engine.PlayerID]int
	Unfinished    int
	TotalMoves    int
	TotalExplode  int
	LongestGame   int
	BiggestBurst  int
	FirstMoveWins int
}

// AvgMoves is the mean number of moves per game.
func (s *SelfPlayStats) AvgMoves() float64 {
	if s.Games == 0 {
		return 0
	}
	return float64(s.TotalMoves) / float64(s.Games)
}

// AvgExplosions is the mean number of explosions per game.
func (s *SelfPlayStats) AvgExplosions() float64 {
	if s.Games == 0 {
		return 0
	}
	return float64(s.TotalExplode) / float64(s.Games)
}

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "report board statistics and AI self-play results for game configurations",
		ArgsUsage: "[config-id...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "directory containing game configurations", Sources: cli.EnvVars("CONFIG_DIR")},
			&cli.IntFlag{Name: "games", Value: 20, Usage: "AI-vs-AI games to play per configuration (0 disables self-play)"},
			&cli.Uint64Flag{Name: "seed", Value: 1, Usage: "seed of the first self-play game"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			manager, err := config.NewManager(cmd.String("config-dir"))
			if err != nil {
				return err
			}

			ids := cmd.Args().Slice()
			if len(ids) == 0 {
				infos, err := manager.ListConfigs()
				if err != nil {
					return err
				}
				for _, info := range infos {
					ids = append(ids, info.ConfigID)
				}
			}

			for _, id := range ids {
				fmt.Fprintf(out, "\n=== Analyzing %s ===\n", id)
				gameConfig, err := manager.LoadConfig(id)
				if err != nil {
					fmt.Fprintf(out, "Error loading config: %v\n", err)
					continue
				}
				report, err := analyzeConfig(gameConfig, cmd.Int("games"), cmd.Uint64("seed"))
				if err != nil {
					fmt.Fprintf(out, "Error analyzing config: %v\n", err)
					continue
				}
				printReport(out, report)
			}
			return nil
		},
	}
}

// analyzeConfig builds the board report for gameConfig and plays games
// AI-vs-AI games seeded from seed upwards.
func analyzeConfig(gameConfig *engine.GameConfig, games int, seed uint64) (*Report, error) {
	board, err := engine.NewBoard(gameConfig.Rows, gameConfig.Cols)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ConfigID: gameConfig.ID,
		Name:     gameConfig.Name,
		Rows:     gameConfig.Rows,
		Cols:     gameConfig.Cols,
		Classes:  engine.CountByClass(board),
		Capacity: board.Capacity(),
		Players:  gameConfig.Players,
	}

	if games > 0 {
		stats, err := selfPlay(gameConfig, games, seed)
		if err != nil {
			return nil, err
		}
		report.SelfPlay = stats
	}
	return report, nil
}

// automated returns a copy of gameConfig where every player is an AI and
// cascades resolve immediately.
func automated(gameConfig *engine.GameConfig) *engine.GameConfig {
	clone := *gameConfig
	clone.PacedCascades = false
	clone.Players = make([]engine.Player, len(gameConfig.Players))
	for i, p := range gameConfig.Players {
		p.IsAutomated = true
		clone.Players[i] = p
	}
	return &clone
}

// moveLimit bounds a self-play game. Every move adds an orb and the board can
// hold at most Capacity orbs without exploding, so real games end far sooner.
func moveLimit(gameConfig *engine.GameConfig) int {
	return gameConfig.Rows * gameConfig.Cols * 16
}

// selfPlay plays games AI-vs-AI games on gameConfig's board.
func selfPlay(gameConfig *engine.GameConfig, games int, seed uint64) (*SelfPlayStats, error) {
	aiConfig := automated(gameConfig)
	limit := moveLimit(gameConfig)
	first := gameConfig.Players[0].ID

	stats := &SelfPlayStats{Games: games, Wins: make(map[engine.PlayerID]int)}
	for i := 0; i < games; i++ {
		eng, err := engine.NewEngine(aiConfig, engine.WithSeed(seed+uint64(i)))
		if err != nil {
			return nil, err
		}

		moves := 0
		for !eng.IsGameOver() && moves < limit {
			if _, outcome := eng.RunAI(); !outcome.Accepted {
				break
			}
			moves++
		}

		state := eng.GetState()
		if !state.Ended {
			stats.Unfinished++
		} else {
			stats.Wins[state.Winner]++
			if state.Winner == first {
				stats.FirstMoveWins++
			}
		}

		history := eng.GetMoveHistory()
		stats.TotalMoves += len(history)
		if len(history) > stats.LongestGame {
			stats.LongestGame = len(history)
		}
		for _, entry := range history {
			stats.TotalExplode += entry.Explosions
			if entry.Explosions > stats.BiggestBurst {
				stats.BiggestBurst = entry.Explosions
			}
		}
	}
	return stats, nil
}

func printReport(out io.Writer, r *Report) {
	fmt.Fprintf(out, "Name: %s\n", r.Name)
	fmt.Fprintf(out, "Board: %d x %d (%d cells)\n", r.Rows, r.Cols, r.Rows*r.Cols)
	fmt.Fprintf(out, "Cells: %d corner, %d edge, %d interior\n",
		r.Classes[engine.Corner], r.Classes[engine.Edge], r.Classes[engine.Interior])
	fmt.Fprintf(out, "Capacity: %d orbs before any cell is critical\n", r.Capacity)

	names := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		kind := "human"
		if p.IsAutomated {
			kind = "AI"
		}
		names = append(names, fmt.Sprintf("%s (%s, %s)", p.Name, p.Color, kind))
	}
	fmt.Fprintf(out, "Players: %s\n", strings.Join(names, " vs "))

	s := r.SelfPlay
	if s == nil {
		return
	}
	fmt.Fprintf(out, "Self-play: %d games\n", s.Games)

	ids := make([]engine.PlayerID, 0, len(s.Wins))
	for id := range s.Wins {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Fprintf(out, "  %s wins: %d\n", playerName(r.Players, id), s.Wins[id])
	}
	if s.Unfinished > 0 {
		fmt.Fprintf(out, "  ⚠️  unfinished: %d\n", s.Unfinished)
	}
	fmt.Fprintf(out, "  First player win rate: %.0f%%\n", 100*float64(s.FirstMoveWins)/float64(s.Games))
	fmt.Fprintf(out, "  Avg moves: %.1f (longest %d)\n", s.AvgMoves(), s.LongestGame)
	fmt.Fprintf(out, "  Avg explosions: %.1f (biggest cascade %d)\n", s.AvgExplosions(), s.BiggestBurst)
}

func playerName(players []engine.Player, id engine.PlayerID) string {
	for _, p := range players {
		if p.ID == id {
			return p.Name
		}
	}
	return fmt.Sprintf("player %d", id)
}
