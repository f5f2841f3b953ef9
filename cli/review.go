package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jacokyle01/chess-lab/models"
	"github.com/jacokyle01/chess-lab/review"
	"github.com/jacokyle01/chess-lab/rules"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review a finished game and rank its mistakes",
	Long: `Evaluate every position of a PGN game with the engine and list each
side's mistakes, worst first. Interrupting the review prints what was found
so far.`,
	Example: `  chess-lab review --pgn game.pgn
  cat game.pgn | chess-lab review --pgn - --json`,
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().String("pgn", "", "PGN file to review, - for stdin (required)")
	reviewCmd.Flags().Int("depth", 0, "search depth per position, overrides review.depth")
	reviewCmd.Flags().Int("movetime", 0, "milliseconds per position, overrides review.time_ms")
	reviewCmd.Flags().Bool("json", false, "print the full report as JSON")
	reviewCmd.MarkFlagRequired("pgn")
}

func runReview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if d, _ := cmd.Flags().GetInt("depth"); d > 0 {
		cfg.Review.Depth = d
	}
	if ms, _ := cmd.Flags().GetInt("movetime"); ms > 0 {
		cfg.Review.TimeMS = ms
	}

	path, _ := cmd.Flags().GetString("pgn")
	g, err := readPGN(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	history := g.History()
	moves := make([]string, len(history))
	for i, m := range history {
		moves[i] = m.UCI
	}

	session, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	errOut := cmd.ErrOrStderr()
	pipeline := review.New(session, rules.Replay{}, cfg.Review, func(p review.Progress) {
		if p.State == models.ReviewRunning {
			fmt.Fprintf(errOut, "\ranalyzing %d/%d", p.Ply+1, p.Total)
		}
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if _, err := pipeline.Start(ctx, g.InitialFEN(), moves); err != nil {
		return err
	}
	if err := pipeline.Wait(context.Background()); err != nil {
		return err
	}
	fmt.Fprintln(errOut)
	if err := pipeline.Err(); err != nil {
		fmt.Fprintf(errOut, "review stopped early: %v\n", err)
	}

	rep := pipeline.Report()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	printReport(cmd.OutOrStdout(), rep)
	return nil
}

func readPGN(stdin io.Reader, path string) (*rules.Game, error) {
	if path == "-" {
		return rules.FromPGN(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return rules.FromPGN(f)
}

func printReport(w io.Writer, rep models.ReviewReport) {
	fmt.Fprintf(w, "Review %s: %s, %d/%d positions analyzed\n", rep.ID, rep.State, rep.Analyzed, len(rep.Plies))
	if len(rep.Mistakes) == 0 {
		fmt.Fprintln(w, "No mistakes found.")
		return
	}
	for i, m := range rep.Mistakes {
		fmt.Fprintf(w, "%2d. %-8s %s %-7s drop %4d  %s\n",
			i+1, moveNumber(rep.Plies, m.Ply), sideName(m.Mover), m.SAN, m.Drop, m.Severity)
	}
}

// moveNumber formats a ply as "12." or "12..." for black.
func moveNumber(plies []models.ReviewPly, ply int) string {
	if ply <= 0 || ply >= len(plies) {
		return "?"
	}
	n := fullMove(plies[ply-1].FEN)
	if plies[ply].Mover == models.Black {
		return fmt.Sprintf("%d...", n)
	}
	return fmt.Sprintf("%d.", n)
}

func fullMove(fen string) int {
	var n int
	var board, turn, castle, ep string
	var half int
	if _, err := fmt.Sscanf(fen, "%s %s %s %s %d %d", &board, &turn, &castle, &ep, &half, &n); err != nil || n < 1 {
		return 1
	}
	return n
}

func sideName(c models.Color) string {
	if c == models.Black {
		return "Black"
	}
	return "White"
}
