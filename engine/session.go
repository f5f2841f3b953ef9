package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jacokyle01/chess-lab/metrics"
	"github.com/jacokyle01/chess-lab/models"
	"github.com/jacokyle01/chess-lab/uci"
)

var (
	ErrUnavailable = errors.New("engine unavailable")
	ErrClosed      = errors.New("engine session closed")
)

// Session owns one engine connection: the readiness handshake, the single
// in-flight request slot and its MultiPV collector.
type Session struct {
	conn  uci.Conn
	skill SkillRange

	mu       sync.Mutex
	err      error
	acks     int // isready pings not yet acknowledged
	ready    bool
	readyCh  chan struct{}
	inflight *pending
	idle     chan struct{}
	multiPV  int
}

type pending struct {
	req       models.EngineRequest
	collector *Collector
	started   time.Time
	done      chan models.RequestOutcome
	resolved  bool
}

// Open starts the engine binary at path. A start failure is logged once and
// leaves the returned session permanently unavailable.
func Open(path string, skill SkillRange) *Session {
	proc, err := uci.Start(path)
	if err != nil {
		log.Printf("[engine] could not start %s: %v", path, err)
		s := newSession(nil, skill)
		s.err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		return s
	}
	return NewSession(proc, skill)
}

// NewSession runs the UCI handshake over conn and starts reading its output.
func NewSession(conn uci.Conn, skill SkillRange) *Session {
	s := newSession(conn, skill)
	go s.readLoop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.send(uci.CmdUCI); err != nil {
		s.failLocked(err)
		return s
	}
	if err := s.pingLocked(); err != nil {
		s.failLocked(err)
	}
	return s
}

func newSession(conn uci.Conn, skill SkillRange) *Session {
	idle := make(chan struct{})
	close(idle)
	return &Session{
		conn:    conn,
		skill:   skill,
		readyCh: make(chan struct{}),
		idle:    idle,
		multiPV: 1,
	}
}

// Err returns the permanent failure of the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Ready reports whether every isready ping has been acknowledged.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready && s.err == nil
}

// Busy reports whether a request is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight != nil
}

// Idle returns a channel closed once no request is in flight.
func (s *Session) Idle() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle
}

// WaitIdle blocks until the session is free or ctx is done.
func (s *Session) WaitIdle(ctx context.Context) error {
	select {
	case <-s.Idle():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Configure maps a skill value onto engine options and pings for readiness again.
// A search in progress is asked to stop.
func (s *Session) Configure(elo int) error {
	opts := s.skill.Options(elo)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}

	if s.inflight != nil {
		if err := s.send(uci.CmdStop); err != nil {
			return s.opError(err)
		}
	}
	for _, cmd := range opts.Commands() {
		if err := s.send(cmd); err != nil {
			return s.opError(err)
		}
	}
	s.multiPV = opts.MultiPV
	if err := s.pingLocked(); err != nil {
		return s.opError(err)
	}
	log.Printf("[engine] configured elo %d (skill %d, multipv %d)", opts.Elo, opts.SkillLevel, opts.MultiPV)
	return nil
}

// NewGame tells the engine a new game starts.
func (s *Session) NewGame() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if err := s.send(uci.CmdNewGame); err != nil {
		return s.opError(err)
	}
	return s.pingLocked()
}

// Analyze runs one search. If another request is in flight it returns at
// once with a busy outcome and no error. Otherwise it waits for readiness,
// starts a time-bounded search and blocks until the collector or the
// engine's bestmove resolves it.
//
// If ctx ends first, a stop is sent and ctx.Err() returned; the session
// stays busy until the engine emits bestmove.
func (s *Session) Analyze(ctx context.Context, req models.EngineRequest) (models.RequestOutcome, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return models.RequestOutcome{}, err
	}
	if s.inflight != nil {
		s.mu.Unlock()
		metrics.EngineRequests.WithLabelValues(string(models.StatusBusy)).Inc()
		return models.RequestOutcome{RequestID: req.ID, FEN: req.FEN, Status: models.StatusBusy}, nil
	}
	p := &pending{
		req:       req,
		collector: NewCollector(req),
		done:      make(chan models.RequestOutcome, 1),
	}
	s.inflight = p
	s.idle = make(chan struct{})

	if req.Lines() != s.multiPV {
		err := s.send(uci.SetOption("MultiPV", req.Lines()))
		if err == nil {
			s.multiPV = req.Lines()
			err = s.pingLocked()
		}
		if err != nil {
			s.releaseLocked(p)
			err = s.opError(err)
			s.mu.Unlock()
			return models.RequestOutcome{}, err
		}
	}
	s.mu.Unlock()

	if err := s.awaitReady(ctx); err != nil {
		s.mu.Lock()
		s.releaseLocked(p)
		s.mu.Unlock()
		return models.RequestOutcome{}, err
	}

	s.mu.Lock()
	if s.inflight != p {
		// the connection failed while waiting
		err := s.err
		s.mu.Unlock()
		if err == nil {
			err = ErrClosed
		}
		return models.RequestOutcome{}, err
	}
	err := s.send(uci.Position(req.FEN))
	if err == nil {
		err = s.send(uci.GoMoveTime(req.TimeMS))
	}
	if err != nil {
		s.releaseLocked(p)
		err = s.opError(err)
		s.mu.Unlock()
		return models.RequestOutcome{}, err
	}
	p.started = time.Now()
	s.mu.Unlock()

	select {
	case out := <-p.done:
		return out, nil
	case <-ctx.Done():
		s.Cancel()
		return models.RequestOutcome{}, ctx.Err()
	}
}

// Cancel asks the engine to stop the current search. The pending request
// resolves with whatever was collected once bestmove arrives.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == nil || s.err != nil {
		return
	}
	if err := s.send(uci.CmdStop); err != nil {
		log.Printf("[engine] stop: %v", err)
	}
}

// Close shuts the engine down. Pending requests resolve with partial data.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.conn == nil || errors.Is(s.err, ErrClosed) {
		s.mu.Unlock()
		return nil
	}
	s.failLocked(ErrClosed)
	conn := s.conn
	s.mu.Unlock()
	return conn.Close()
}

func (s *Session) awaitReady(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return err
		}
		if s.ready {
			s.mu.Unlock()
			return nil
		}
		ch := s.readyCh
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) readLoop() {
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			s.mu.Lock()
			s.failLocked(err)
			s.mu.Unlock()
			return
		}
		ev, ok := uci.Parse(line)
		if !ok {
			continue
		}
		s.handle(ev)
	}
}

func (s *Session) handle(ev uci.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case uci.EventReady:
		if s.acks > 0 {
			s.acks--
		}
		if s.acks == 0 && !s.ready {
			s.ready = true
			close(s.readyCh)
			metrics.EngineReady.Set(1)
		}

	case uci.EventInfo:
		p := s.inflight
		if p == nil || p.resolved {
			return
		}
		if p.collector.Add(ev.Info) {
			// the slot itself is released on bestmove
			if err := s.send(uci.CmdStop); err != nil {
				log.Printf("[engine] stop: %v", err)
			}
			s.resolveLocked(p, models.StatusComplete, p.collector.Lines(), "")
		}

	case uci.EventBestMove:
		p := s.inflight
		if p == nil {
			return
		}
		if !p.resolved {
			status := models.StatusPartial
			if p.collector.Ready() {
				status = models.StatusComplete
			}
			s.resolveLocked(p, status, p.collector.Resolve(ev.BestMove), ev.BestMove)
		}
		s.releaseLocked(p)
	}
}

func (s *Session) resolveLocked(p *pending, status models.OutcomeStatus, lines []models.CandidateLine, best string) {
	if p.resolved {
		return
	}
	p.resolved = true
	if best == "" && len(lines) > 0 {
		best = lines[0].Move
	}
	metrics.EngineRequests.WithLabelValues(string(status)).Inc()
	if !p.started.IsZero() {
		metrics.EngineRequestDuration.Observe(time.Since(p.started).Seconds())
	}
	p.done <- models.RequestOutcome{
		RequestID: p.req.ID,
		FEN:       p.req.FEN,
		Status:    status,
		Lines:     lines,
		BestMove:  best,
	}
}

func (s *Session) releaseLocked(p *pending) {
	if s.inflight != p {
		return
	}
	s.inflight = nil
	close(s.idle)
}

// pingLocked sends isready and marks the session not ready until the
// matching readyok arrives.
func (s *Session) pingLocked() error {
	if s.ready {
		s.ready = false
		s.readyCh = make(chan struct{})
		metrics.EngineReady.Set(0)
	}
	s.acks++
	return s.send(uci.CmdIsReady)
}

// failLocked makes the session permanently unusable and wakes every waiter.
func (s *Session) failLocked(err error) {
	if s.err != nil {
		return
	}
	if errors.Is(err, ErrClosed) {
		s.err = err
	} else {
		s.err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		log.Printf("[engine] connection lost: %v", err)
	}
	if p := s.inflight; p != nil {
		s.resolveLocked(p, models.StatusPartial, p.collector.Resolve(""), "")
		s.releaseLocked(p)
	}
	if !s.ready {
		close(s.readyCh)
		s.ready = true
	}
	metrics.EngineReady.Set(0)
}

// opError reports a write failure. The process is left alone; only the
// in-flight slot is cleared by the caller.
func (s *Session) opError(err error) error {
	metrics.EngineRequests.WithLabelValues("error").Inc()
	return fmt.Errorf("engine write: %w", err)
}

func (s *Session) send(cmd string) error {
	if s.conn == nil {
		return ErrUnavailable
	}
	return s.conn.Send(cmd)
}
