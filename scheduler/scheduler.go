package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lexandro/csync2-hintd/batch"
	"github.com/lexandro/csync2-hintd/metrics"
	"github.com/lexandro/csync2-hintd/queue"
	"github.com/lexandro/csync2-hintd/sink"
)

// Defaults for the flush cadence.
const (
	DefaultTickInterval  = time.Second
	DefaultAnnounceEvery = 600
)

// State is the position of the scheduler in its flush cycle.
type State int32

const (
	Idle State = iota
	Draining
	Building
	Committing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Draining:
		return "draining"
	case Building:
		return "building"
	case Committing:
		return "committing"
	default:
		return "unknown"
	}
}

// Options configures a Scheduler.
type Options struct {
	Queue *queue.Queue
	Sink  sink.Sink
	// TickInterval is the pause between queue checks.
	TickInterval time.Duration
	// AnnounceEvery is the number of ticks between liveness announcements.
	AnnounceEvery int
	// RequeueOnFailure pushes drained paths back when a batch is lost.
	RequeueOnFailure bool
	// Roots are the watched directories, named in announcements.
	Roots   []string
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Cycles         uint64
	HintsCommitted uint64
	BatchesFailed  uint64
	BatchesDropped uint64
	Requeued       uint64
	LastFlush      time.Time
	Pending        int
	Uptime         time.Duration
	State          State
}

// Scheduler drains the queue on a fixed tick and commits each batch to the sink.
// Only one flush cycle runs at a time.
type Scheduler struct {
	queue         *queue.Queue
	sink          sink.Sink
	tickInterval  time.Duration
	announceEvery int
	requeue       bool
	roots         []string
	metrics       *metrics.Metrics
	logger        *slog.Logger
	startTime     time.Time

	flushMu sync.Mutex
	state   atomic.Int32

	statsMu sync.Mutex
	stats   Stats
}

// New creates a scheduler. Zero durations and counts take the defaults.
func New(options Options) *Scheduler {
	tickInterval := options.TickInterval
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	announceEvery := options.AnnounceEvery
	if announceEvery <= 0 {
		announceEvery = DefaultAnnounceEvery
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		queue:         options.Queue,
		sink:          options.Sink,
		tickInterval:  tickInterval,
		announceEvery: announceEvery,
		requeue:       options.RequeueOnFailure,
		roots:         options.Roots,
		metrics:       options.Metrics,
		logger:        logger,
		startTime:     time.Now(),
	}
}

// Run ticks until ctx is done or the sink reports a fatal error.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	s.logger.Info("flush scheduler started",
		"tickInterval", s.tickInterval,
		"announceEvery", s.announceEvery,
	)
	s.announce()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("flush scheduler stopped")
			return nil
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				return err
			}
			ticks++
			if ticks%s.announceEvery == 0 {
				s.announce()
			}
		}
	}
}

// Tick runs one scheduler step: flush if anything is pending. Only fatal
// sink errors are returned.
func (s *Scheduler) Tick(ctx context.Context) error {
	pending := s.queue.Len()
	s.metrics.SetPending(pending)
	if pending == 0 {
		return nil
	}
	_, err := s.Flush(ctx)
	if sink.IsFatal(err) {
		return err
	}
	return nil
}

// Flush drains the queue, builds a batch and commits it. It returns the
// number of hints that landed. Store errors are logged and returned but
// leave the scheduler running.
func (s *Scheduler) Flush(ctx context.Context) (int, error) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	defer s.setState(Idle)

	start := time.Now()

	s.setState(Draining)
	raw := s.queue.DrainAll()

	s.setState(Building)
	b := batch.Build(raw)
	if b.Empty() {
		return 0, nil
	}

	s.setState(Committing)
	err := s.sink.Commit(ctx, b)
	committed := sink.Committed(b, err)
	elapsed := time.Since(start)

	s.metrics.ObserveFlush(len(raw), committed, sink.Kind(err), elapsed)
	s.record(committed, err)

	if err == nil {
		s.logger.Debug("flush complete", "batch", b.ID(), "events", len(raw), "hints", committed, "duration", elapsed)
		return committed, nil
	}

	switch {
	case sink.IsFatal(err):
		s.logger.Error("hint stream failed", "batch", b.ID(), "error", err)
	case sink.Lost(err) && s.requeue:
		s.queue.Requeue(raw)
		s.addRequeued()
		s.logger.Warn("batch requeued for next cycle", "batch", b.ID(), "events", len(raw), "error", err)
	case sink.Lost(err):
		s.addDropped()
		s.logger.Warn("batch dropped", "batch", b.ID(), "hints", b.Len(), "error", err)
	default:
		s.logger.Warn("batch partially committed", "batch", b.ID(), "hints", committed, "of", b.Len(), "error", err)
	}
	return committed, err
}

// State returns the current cycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	s.statsMu.Lock()
	stats := s.stats
	s.statsMu.Unlock()

	stats.Pending = s.queue.Len()
	stats.Uptime = time.Since(s.startTime)
	stats.State = s.State()
	return stats
}

func (s *Scheduler) setState(state State) {
	s.state.Store(int32(state))
}

func (s *Scheduler) record(committed int, err error) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats.Cycles++
	s.stats.HintsCommitted += uint64(committed)
	s.stats.LastFlush = time.Now()
	if err != nil {
		s.stats.BatchesFailed++
	}
}

func (s *Scheduler) addDropped() {
	s.statsMu.Lock()
	s.stats.BatchesDropped++
	s.statsMu.Unlock()
}

func (s *Scheduler) addRequeued() {
	s.statsMu.Lock()
	s.stats.Requeued++
	s.statsMu.Unlock()
}
