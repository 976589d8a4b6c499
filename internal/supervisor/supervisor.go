// Package supervisor drives the handoff pipeline's main loop: scan, track,
// transfer, record, relocate, update — the Go rendering of manager.py's
// Manager.run.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/artemis/handoffd/internal/cleaner"
	"github.com/artemis/handoffd/internal/command"
	"github.com/artemis/handoffd/internal/finder"
	"github.com/artemis/handoffd/internal/model"
	"github.com/artemis/handoffd/internal/porter"
	"github.com/artemis/handoffd/internal/queue"
	"github.com/artemis/handoffd/internal/tracker"
	"go.uber.org/zap"
)

// Finder is the subset of *finder.Finder the supervisor depends on.
type Finder interface {
	Run() error
}

// Metrics receives per-cycle measurements. A nil Metrics is valid — every
// method call is a no-op in that case via the supervisor's own nil check.
type Metrics interface {
	ObserveScan(found int, dur time.Duration)
	ObserveTransfer(dur time.Duration)
}

// Config holds the general settings section from spec.md §6 that the
// supervisor itself (as opposed to any one stage) consumes.
type Config struct {
	NumThreads int
	Pause      time.Duration
}

// Supervisor owns every queue that couples pipeline stages and drives one
// full cycle of the pipeline per Tick, or runs continuously via Run.
type Supervisor struct {
	finder   Finder
	tracker  *tracker.Tracker
	recorder *tracker.Recorder
	porter   *porter.Porter
	wiper    *porter.Wiper
	cleaner  *command.Macro

	discovered *queue.Queue[model.FileItem]
	pending    *queue.Queue[model.FileItem]
	processed  *queue.Queue[model.FileItem]
	completed  *queue.Queue[model.FileItem]
	transfers  *queue.Queue[model.TransferRecord]

	numThreads int
	pause      time.Duration
	metrics    Metrics
	logger     *zap.Logger
}

// New wires a Supervisor out of its component stages. bufferRoot and
// excludeList build the Finder internally against the Supervisor's own
// discovered queue, since that queue is not otherwise reachable from outside
// this package. mover and eraser are composed into a command.Macro in the
// same order manager.py builds its cleaner (move, then erase), so a full
// directory only becomes eligible for removal after this cycle's moves have
// emptied it.
func New(bufferRoot string, excludeList []string, t *tracker.Tracker, r *tracker.Recorder, p *porter.Porter, w *porter.Wiper,
	mover *cleaner.Mover, eraser *cleaner.Eraser, cfg Config, metrics Metrics, logger *zap.Logger) (*Supervisor, error) {

	if logger == nil {
		logger = zap.NewNop()
	}
	numThreads := cfg.NumThreads
	if numThreads <= 0 {
		numThreads = 1
	}
	pause := cfg.Pause
	if pause <= 0 {
		pause = time.Second
	}

	discovered := queue.New[model.FileItem]()
	pending := queue.New[model.FileItem]()
	processed := queue.New[model.FileItem]()
	completed := queue.New[model.FileItem]()
	transfers := queue.New[model.TransferRecord]()

	fd, err := finder.New(bufferRoot, discovered, excludeList, logger)
	if err != nil {
		return nil, err
	}

	macro := &command.Macro{}
	macro.Add(moverCommand{mover, processed, completed})
	macro.Add(eraserCommand{eraser})

	return &Supervisor{
		finder: fd, tracker: t, recorder: r, porter: p, wiper: w, cleaner: macro,
		discovered: discovered, pending: pending, processed: processed, completed: completed, transfers: transfers,
		numThreads: numThreads, pause: pause, metrics: metrics, logger: logger,
	}, nil
}

// moverCommand and eraserCommand adapt Mover/Eraser to command.Command so
// they can be sequenced through a command.Macro without the supervisor
// having to special-case them.
type moverCommand struct {
	mover   *cleaner.Mover
	in, out *queue.Queue[model.FileItem]
}

func (m moverCommand) Run() error { return m.mover.Run(m.in, m.out) }

type eraserCommand struct{ eraser *cleaner.Eraser }

func (e eraserCommand) Run() error { return e.eraser.Run() }

// Tick runs one full pass of the pipeline: scan, reconcile, transfer, wipe,
// record, update. Relocation into the holding area is not part of Tick; the
// cleaner daemon started by Run does it. Tick never blocks past what its
// stages take; the pause between cycles is the caller's responsibility (see
// Run).
func (s *Supervisor) Tick(ctx context.Context) error {
	scanStart := time.Now()
	if err := s.finder.Run(); err != nil {
		return err
	}
	found := s.discovered.Len()
	s.observeScan(found, time.Since(scanStart))

	if found == 0 {
		return nil
	}

	if err := s.tracker.Reconcile(ctx, s.discovered, s.pending); err != nil {
		return err
	}

	transferStart := time.Now()
	s.runPorters(ctx)
	if err := s.wiper.Run(ctx); err != nil {
		s.logger.Warn("wiper failed", zap.Error(err))
	}
	s.observeTransfer(time.Since(transferStart))

	if err := s.recorder.Record(ctx, s.transfers, s.processed); err != nil {
		return err
	}

	return s.tracker.Update(ctx, s.completed)
}

// runPorters fans out min(numThreads, pending items) goroutines, each
// draining from the shared pending queue until it is empty, matching
// manager.py's per-cycle thread pool.
func (s *Supervisor) runPorters(ctx context.Context) {
	workers := s.numThreads
	if n := s.pending.Len(); n < workers {
		workers = n
	}
	if workers <= 0 {
		return
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.porter.Run(ctx, s.pending, s.transfers); err != nil {
				s.logger.Error("porter failed", zap.Error(err))
			}
		}()
	}
	wg.Wait()
}

// tickCommand adapts Tick to command.Command so Run can drive it through
// command.RunContinuously.
type tickCommand struct {
	s   *Supervisor
	ctx context.Context
}

func (t tickCommand) Run() error { return t.s.Tick(t.ctx) }

// Run drives the main cycle (Tick) continuously until ctx is cancelled,
// sleeping Pause between cycles. The Cleaner runs on its own goroutine on
// the same pause cadence, a dedicated daemon independent of the main loop:
// it shares the processed/completed queues, and may drain processed
// mid-cycle — queue operations are atomic, so this never races with the
// main loop's own access to those queues.
func (s *Supervisor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		command.RunContinuously(ctx, s.cleaner, s.pause, func(err error) {
			s.logger.Error("cleaner cycle failed", zap.Error(err))
		})
	}()

	command.RunContinuously(ctx, tickCommand{s, ctx}, s.pause, func(err error) {
		s.logger.Error("pipeline cycle failed", zap.Error(err))
	})
	wg.Wait()
	return ctx.Err()
}

func (s *Supervisor) observeScan(found int, dur time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveScan(found, dur)
	}
}

func (s *Supervisor) observeTransfer(dur time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveTransfer(dur)
	}
}
