package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jacokyle01/chess-lab/engine"
	"github.com/jacokyle01/chess-lab/game"
	"github.com/jacokyle01/chess-lab/primaryserver"
	"github.com/jacokyle01/chess-lab/rules"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the play and review server",
	Long: `Start the HTTP server for live play and game review.

Endpoints:
  GET  /api/state           current game, skill and engine status
  POST /api/new             new game, {"human_color":"w"|"b"}
  POST /api/move            human move, {"from","to","promotion"}
  POST /api/undo            take back the last full move
  POST /api/flip            turn the board around
  POST /api/skill           {"elo","error_bias"}
  POST /api/review          review the live game, or {"pgn"}
  POST /api/review/cancel   stop the running review
  GET  /api/review?id=      review report
  GET  /ws                  board and review updates
  GET  /metrics             Prometheus metrics
  GET  /healthz             health check`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", "", "address to listen on, overrides server.addr")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	// an unavailable engine still serves the board; engine calls report the error
	session := engine.Open(cfg.Engine.Path, cfg.Play.Skill)
	if err := session.Configure(cfg.Play.Elo); err != nil {
		log.Printf("[engine] configure: %v", err)
	}

	board, err := rules.New("")
	if err != nil {
		return err
	}
	hub := primaryserver.NewHub()
	ctrl := game.NewController(board, hub, session, newSelector(cfg), game.Config{
		Skill:     cfg.Play.Skill,
		Elo:       cfg.Play.Elo,
		ErrorBias: cfg.Play.ErrorBias,
		Depth:     cfg.Play.Depth,
	})
	srv := primaryserver.NewServer(cfg.Server.Addr, ctrl, session, hub, cfg.Review)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.StartServer)
	g.Go(func() error {
		<-ctx.Done()
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		session.Close()
		return err
	})
	return g.Wait()
}
