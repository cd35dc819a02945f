// Command validate checks the game configuration files (JSON or YAML) in a
// configs directory. For every file it checks:
//   - the file parses as JSON (.json) or YAML (.yaml, .yml)
//   - required fields, board dimensions and the two-player roster
//   - message templates carry the placeholders the game fills in
//   - no two files share a config ID, since only one of them can be loaded
//
// Valid files are summarized with their board, roster and mode. The command
// exits non-zero when any file is invalid.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/chain-reaction-game/game/engine"
	"github.com/wricardo/chain-reaction-game/game/service"
)

// errInvalid is returned after a report that lists invalid files.
var errInvalid = errors.New("invalid configurations")

// ValidationResult captures the outcome of validating a single file. Info
// holds the summary lines of a valid file.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
	Info   []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single configuration file.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(filePath),
		Valid: true,
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	config, err := engine.ParseGameConfig(data, ext)
	if err != nil {
		format := "JSON"
		if ext != ".json" {
			format = "YAML"
		}
		result.fail("Invalid %s: %v", format, err)
		return result
	}

	if err := engine.ValidateGameConfig(config); err != nil {
		result.fail("%s", strings.TrimPrefix(err.Error(), "config validation: "))
		return result
	}

	board, err := engine.NewBoard(config.Rows, config.Cols)
	if err != nil {
		result.fail("%v", err)
		return result
	}

	players := make([]string, 0, len(config.Players))
	for _, p := range config.Players {
		players = append(players, fmt.Sprintf("%s (%s, %s)", p.Name, p.Color, strings.ToLower(p.Label())))
	}

	result.Info = append(result.Info,
		fmt.Sprintf("✓ Name: %s", config.Name),
		fmt.Sprintf("✓ Board: %dx%d, capacity %d orbs", config.Rows, config.Cols, board.Capacity()),
		fmt.Sprintf("✓ Players: %s", strings.Join(players, " vs ")),
		fmt.Sprintf("✓ Mode: %s", service.ModeOf(config)),
	)
	if service.ModeOf(config) != "hotseat" {
		result.Info = append(result.Info, fmt.Sprintf("✓ AI delay: %dms", config.AIDelayMS))
	}
	if config.PacedCascades {
		result.Info = append(result.Info, "✓ Paced cascades")
	}

	return result
}

// validateDir validates every configuration file in dir, sorted by name. A
// file whose config ID is already taken by a higher-priority extension is
// reported as shadowed.
func validateDir(dir string) ([]ValidationResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !slices.Contains(engine.ConfigExtensions, strings.ToLower(filepath.Ext(entry.Name()))) {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	results := make([]ValidationResult, 0, len(files))
	for _, file := range files {
		result := validateConfig(filepath.Join(dir, file))
		if winner, err := engine.FindConfigFile(dir, configIDOf(file)); err == nil && filepath.Base(winner) != file {
			result.fail("Shadowed by %s: both files define config %q", filepath.Base(winner), configIDOf(file))
		}
		results = append(results, result)
	}
	return results, nil
}

func configIDOf(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file))
}

// printResults writes a report and returns whether every file is valid.
func printResults(out io.Writer, results []ValidationResult) bool {
	allValid := true
	for _, result := range results {
		fmt.Fprintf(out, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(out, "✅ VALID")
			for _, info := range result.Info {
				fmt.Fprintln(out, "  "+info)
			}
			continue
		}

		allValid = false
		fmt.Fprintln(out, "❌ INVALID")
		for _, err := range result.Errors {
			fmt.Fprintln(out, "  ❌ "+err)
		}
	}

	fmt.Fprintf(out, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(out, "✅ All configurations are valid!")
	} else {
		fmt.Fprintln(out, "❌ Some configurations have errors")
	}
	return allValid
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "validate game configuration files",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config-dir", Value: "../configs", Usage: "directory containing game configurations", Sources: cli.EnvVars("CONFIG_DIR")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			results, err := validateDir(cmd.String("config-dir"))
			if err != nil {
				return err
			}
			if len(results) == 0 {
				return fmt.Errorf("no configuration files in %s", cmd.String("config-dir"))
			}
			if !printResults(out, results) {
				return errInvalid
			}
			return nil
		},
	}
}

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		if !errors.Is(err, errInvalid) {
			fmt.Fprintf(os.Stderr, "validate: %v\n", err)
		}
		os.Exit(1)
	}
}
