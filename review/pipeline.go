// Package review re-analyzes every position of a finished game and ranks
// the mistakes each side made.
package review

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/jacokyle01/chess-lab/metrics"
	"github.com/jacokyle01/chess-lab/models"
)

var ErrNoReview = errors.New("no review")

// Analyzer is the engine session as used by the pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, req models.EngineRequest) (models.RequestOutcome, error)
	WaitIdle(ctx context.Context) error
}

// Replayer rebuilds the ply sequence of a game.
type Replayer interface {
	Plies(initialFEN string, moves []string) ([]models.ReviewPly, error)
}

// Config is the per-position search budget.
type Config struct {
	Depth  int `yaml:"depth"`
	TimeMS int `yaml:"time_ms"`
}

// Progress is published after every evaluated ply and on completion.
type Progress struct {
	ID       string             `json:"id"`
	State    models.ReviewState `json:"state"`
	Ply      int                `json:"ply"`
	Total    int                `json:"total"`
	Eval     *models.EvalPoint  `json:"eval,omitempty"`
	Mistakes int                `json:"mistakes"`

	// Report is set on the final event only.
	Report *models.ReviewReport `json:"report,omitempty"`
}

// Pipeline owns at most one review session at a time.
type Pipeline struct {
	engine Analyzer
	replay Replayer
	cfg    Config
	notify func(Progress)

	startMu sync.Mutex

	mu       sync.Mutex
	id       string
	state    models.ReviewState
	plies    []models.ReviewPly
	evals    []models.EvalPoint
	analyzed int
	mistakes []models.MistakeRecord
	err      error
	cancel   context.CancelFunc
	done     chan struct{}
}

// New returns an idle pipeline. notify may be nil.
func New(an Analyzer, replay Replayer, cfg Config, notify func(Progress)) *Pipeline {
	if notify == nil {
		notify = func(Progress) {}
	}
	return &Pipeline{
		engine: an,
		replay: replay,
		cfg:    cfg,
		notify: notify,
		state:  models.ReviewIdle,
	}
}

// Start replaces any previous review with one of the given game and begins
// evaluating it in the background. It returns the review id.
func (p *Pipeline) Start(ctx context.Context, initialFEN string, moves []string) (string, error) {
	p.startMu.Lock()
	defer p.startMu.Unlock()

	plies, err := p.replay.Plies(initialFEN, moves)
	if err != nil {
		return "", fmt.Errorf("replay game: %w", err)
	}

	p.Cancel()
	p.mu.Lock()
	prev := p.done
	p.mu.Unlock()
	if prev != nil {
		<-prev
	}

	runCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()

	p.mu.Lock()
	p.id = id
	p.state = models.ReviewRunning
	p.plies = plies
	p.evals = make([]models.EvalPoint, len(plies))
	p.analyzed = 0
	p.mistakes = nil
	p.err = nil
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	log.Printf("[review %s] started, %d plies", id, len(plies))
	go p.run(runCtx, id, plies, done)
	return id, nil
}

// Cancel stops issuing requests. Evaluations gathered so far are kept and
// mistakes are classified from them.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the current review finishes or ctx is done.
func (p *Pipeline) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return ErrNoReview
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a review is in progress.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == models.ReviewRunning
}

// Report snapshots the current review.
func (p *Pipeline) Report() models.ReviewReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reportLocked()
}

func (p *Pipeline) reportLocked() models.ReviewReport {
	return models.ReviewReport{
		ID:       p.id,
		State:    p.state,
		Plies:    append([]models.ReviewPly(nil), p.plies...),
		Evals:    append([]models.EvalPoint(nil), p.evals...),
		Analyzed: p.analyzed,
		Mistakes: append([]models.MistakeRecord(nil), p.mistakes...),
	}
}

// Err returns the engine failure that ended the last review early, if any.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Pipeline) run(ctx context.Context, id string, plies []models.ReviewPly, done chan struct{}) {
	defer close(done)

	first := plies[0].SideToMove()
	state := models.ReviewComplete
	var runErr error

	for i := 0; i < len(plies); {
		if ctx.Err() != nil {
			state = models.ReviewCancelled
			break
		}

		ply := plies[i]
		if ply.Mated {
			// mated positions have no search; score them as lost for the side to move
			p.record(id, i, first, models.MateIn(0), len(plies))
			i++
			continue
		}

		if err := p.engine.WaitIdle(ctx); err != nil {
			state = models.ReviewCancelled
			break
		}
		out, err := p.engine.Analyze(ctx, models.EngineRequest{
			FEN:     ply.FEN,
			TimeMS:  p.cfg.TimeMS,
			MultiPV: 1,
			Depth:   p.cfg.Depth,
		})
		if err != nil {
			if ctx.Err() == nil {
				runErr = err
				log.Printf("[review %s] ply %d: %v", id, i, err)
			}
			state = models.ReviewCancelled
			break
		}
		if out.Busy() {
			// another caller grabbed the engine between WaitIdle and Analyze
			continue
		}

		var raw models.Score
		if best, ok := out.Best(); ok {
			raw = best.Score
		}
		p.record(id, i, first, raw, len(plies))
		i++
	}

	p.finish(id, state, runErr)
}

func (p *Pipeline) record(id string, i int, first models.Color, raw models.Score, total int) {
	p.mu.Lock()
	if p.id != id {
		p.mu.Unlock()
		return
	}
	ev := models.EvalPoint{Set: true, Raw: raw, Perspective: Perspective(p.plies[i], first, raw)}
	p.evals[i] = ev
	p.analyzed++
	p.mu.Unlock()

	metrics.ReviewPlies.Inc()
	p.notify(Progress{ID: id, State: models.ReviewRunning, Ply: i, Total: total, Eval: &ev})
}

func (p *Pipeline) finish(id string, state models.ReviewState, err error) {
	p.mu.Lock()
	if p.id != id {
		p.mu.Unlock()
		return
	}
	p.state = state
	p.err = err
	p.mistakes = Classify(p.plies, p.evals)
	p.cancel()
	p.cancel = nil
	total, found := len(p.plies), len(p.mistakes)
	for _, m := range p.mistakes {
		metrics.ReviewMistakes.WithLabelValues(m.Severity.String()).Inc()
	}
	rep := p.reportLocked()
	p.mu.Unlock()

	log.Printf("[review %s] %s, %d mistakes", id, state, found)
	p.notify(Progress{ID: id, State: state, Ply: total - 1, Total: total, Mistakes: found, Report: &rep})
}
