package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jacokyle01/chess-lab/models"
	"github.com/jacokyle01/chess-lab/rules"
)

var moveCmd = &cobra.Command{
	Use:   "move",
	Short: "Pick one humanized engine move for a position",
	Example: `  chess-lab move --elo 1200
  chess-lab move --fen "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3" --elo 1800 -v`,
	RunE: runMove,
}

func init() {
	moveCmd.Flags().String("fen", "", "position to move from (default: initial position)")
	moveCmd.Flags().Int("elo", 0, "playing strength, overrides play.elo")
	moveCmd.Flags().Float64("bias", 0, "error bias in [-1, 1], overrides play.error_bias")
	moveCmd.Flags().BoolP("verbose", "v", false, "print the candidate lines and selection parameters")
}

func runMove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if elo, _ := cmd.Flags().GetInt("elo"); elo > 0 {
		cfg.Play.Elo = elo
	}
	if cmd.Flags().Changed("bias") {
		cfg.Play.ErrorBias, _ = cmd.Flags().GetFloat64("bias")
	}
	elo := cfg.Play.Skill.Clamp(cfg.Play.Elo)

	fen, _ := cmd.Flags().GetString("fen")
	pos, err := rules.New(fen)
	if err != nil {
		return err
	}
	if pos.IsGameOver() {
		return fmt.Errorf("no move: the game is over")
	}

	session, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer session.Close()
	if err := session.Configure(elo); err != nil {
		return err
	}

	timeMS := cfg.Play.Skill.MoveTime(elo)
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeMS)*time.Millisecond+10*time.Second)
	defer cancel()
	out, err := session.Analyze(ctx, models.EngineRequest{
		FEN:     pos.FEN(),
		TimeMS:  timeMS,
		MultiPV: cfg.Play.Skill.Options(elo).MultiPV,
		Depth:   cfg.Play.Depth,
	})
	if err != nil {
		return err
	}

	d, ok := newSelector(cfg).Decide(out.Lines, elo, cfg.Play.ErrorBias)
	if !ok {
		return fmt.Errorf("engine returned no move")
	}
	m, err := pos.ApplyUCI(d.Move)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		for _, l := range out.Lines {
			fmt.Fprintf(w, "  %d. %-6s %6d  depth %d\n", l.Rank, l.Move, l.Score.Int(), l.Depth)
		}
		fmt.Fprintf(w, "  elo %d, blunder probability %.2f, max drop %.0f\n", elo, d.Params.Probability, d.Params.MaxDrop)
	}
	suffix := ""
	if d.Blunder {
		suffix = " (blunder)"
	}
	fmt.Fprintf(w, "%s %s%s\n", m.UCI, m.SAN, suffix)
	return nil
}
