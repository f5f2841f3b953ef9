// Package cli implements the chess-lab command line.
package cli

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/jacokyle01/chess-lab/config"
	"github.com/jacokyle01/chess-lab/engine"
	"github.com/jacokyle01/chess-lab/humanize"
)

var rootCmd = &cobra.Command{
	Use:   "chess-lab",
	Short: "Play a humanized engine and review finished games",
	Long: `chess-lab drives a UCI engine for two things: live play against a
skill-limited opponent that makes human-like mistakes, and post-game
review that ranks each side's worst moves.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "chess-lab.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().String("engine", "", "engine binary, overrides engine.path")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Root().PersistentFlags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if p, _ := flags.GetString("engine"); p != "" {
		cfg.Engine.Path = p
	}
	return cfg, nil
}

// openEngine starts the engine and fails fast when it is unavailable.
func openEngine(cfg config.Config) (*engine.Session, error) {
	s := engine.Open(cfg.Engine.Path, cfg.Play.Skill)
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Engine.Path, err)
	}
	return s, nil
}

func newSelector(cfg config.Config) *humanize.Selector {
	seed := cfg.Engine.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	log.Printf("[game] selector seed %d", seed)
	return humanize.New(cfg.Play.Skill, seed)
}
