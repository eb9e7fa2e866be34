// Package sampler runs the continuous emotion sampling loop: frame,
// expression vector, dominant emotion, display, throttled save.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/moodcam/capture"
	"github.com/maastricht-university/moodcam/display"
	"github.com/maastricht-university/moodcam/emotion"
)

const (
	DefaultSaveInterval  = 5000 * time.Millisecond
	DefaultFrameInterval = 33 * time.Millisecond

	persistTimeout = 30 * time.Second
)

var ErrActive = errors.New("sampler already active")

type Inference interface {
	Load(ctx context.Context) error
	Analyze(ctx context.Context, f capture.Frame) (emotion.Vector, error)
}

// Store is the remote side of a tracking session.
type Store interface {
	StartSession(ctx context.Context) (string, error)
	EndSession(ctx context.Context, id string, count int) error
	SaveMood(ctx context.Context, d emotion.Dominant) error
}

type Config struct {
	SaveInterval  time.Duration
	FrameInterval time.Duration
	Constraints   capture.Constraints
	// ReportDir receives one report.json per run; empty disables reports.
	ReportDir string
}

type Option func(*Sampler)

func WithLogger(l logrus.FieldLogger) Option { return func(s *Sampler) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Sampler) { s.now = now } }

type phase int

const (
	idle phase = iota
	starting
	active
	stopping
)

type Sampler struct {
	cfg   Config
	inf   Inference
	store Store
	log   logrus.FieldLogger
	now   func() time.Time

	state State

	mu        sync.Mutex
	phase     phase
	loaded    bool
	src       capture.Source
	cancel    context.CancelFunc
	done      chan struct{}
	runID     string
	startedAt time.Time

	lmu       sync.RWMutex
	listeners []func(display.Update)
}

// New builds an idle sampler. A nil store means nobody is logged in: the
// loop still runs and displays, but opens no session and saves nothing.
func New(cfg Config, inf Inference, store Store, opts ...Option) *Sampler {
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = DefaultSaveInterval
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if cfg.Constraints == (capture.Constraints{}) {
		cfg.Constraints = capture.DefaultConstraints
	}
	s := &Sampler{
		cfg:   cfg,
		inf:   inf,
		store: store,
		log:   logrus.StandardLogger(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.WithField("component", "sampler")
	return s
}

// OnDisplayUpdate registers fn to receive every display write, in order.
func (s *Sampler) OnDisplayUpdate(fn func(display.Update)) {
	s.lmu.Lock()
	s.listeners = append(s.listeners, fn)
	s.lmu.Unlock()
}

func (s *Sampler) emit(u display.Update) {
	s.lmu.RLock()
	defer s.lmu.RUnlock()
	for _, fn := range s.listeners {
		fn(u)
	}
}

func (s *Sampler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == active
}

func (s *Sampler) State() View { return s.state.View() }

// Start acquires src, loads the expression model on first use, opens a
// session when possible and starts the cycle loop. On error the sampler
// stays idle and src is released. Display listeners run without the
// sampler's lock held, so they may call back into it.
func (s *Sampler) Start(ctx context.Context, src capture.Source) error {
	s.mu.Lock()
	if s.phase != idle {
		s.mu.Unlock()
		return ErrActive
	}
	s.phase = starting
	loaded := s.loaded
	s.mu.Unlock()

	fail := func(status string, err error) error {
		s.mu.Lock()
		s.phase = idle
		s.mu.Unlock()
		s.emit(display.StatusOnly(status, display.Error))
		return err
	}

	s.emit(display.StatusOnly("Requesting camera access...", display.Loading))
	if err := src.Acquire(ctx, s.cfg.Constraints); err != nil {
		return fail("Camera access denied or unavailable", fmt.Errorf("acquire video source: %w", err))
	}

	if !loaded {
		s.emit(display.StatusOnly("Loading AI models...", display.Loading))
		if err := s.inf.Load(ctx); err != nil {
			_ = src.Release()
			return fail("Expression model unavailable", fmt.Errorf("load expression model: %w", err))
		}
	}

	runID, startedAt := uuid.NewString(), s.now()
	sessionID := s.startSession(ctx)
	s.state.begin(sessionID)

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.loaded = true
	s.runID, s.startedAt = runID, startedAt
	s.src, s.cancel, s.done = src, cancel, done
	s.phase = active
	s.mu.Unlock()

	s.emit(display.StatusOnly("Camera active - Detecting emotions...", display.Success))
	go s.loop(loopCtx, src, done)

	s.log.WithFields(logrus.Fields{
		"run_id":  runID,
		"session": sessionID,
	}).Info("capture started")
	return nil
}

// startSession is best-effort: failures only mean nothing gets saved.
func (s *Sampler) startSession(ctx context.Context) string {
	if s.store == nil {
		s.log.Info("not logged in, mood records will not be saved")
		return ""
	}
	id, err := s.store.StartSession(ctx)
	if err != nil {
		s.log.WithError(err).Warn("session start failed, mood records will not be saved")
		return ""
	}
	return id
}

// Stop ends scheduling and waits for the in-flight cycle to finish; that
// wait is not bounded by ctx. A pending save is then given until ctx
// expires. Stop closes the session, releases the source and resets the
// display. Stopping a sampler that is not active is a no-op. Stop must not
// be called from a display listener invoked by a cycle, since it waits for
// that cycle.
func (s *Sampler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != active {
		s.mu.Unlock()
		return nil
	}
	s.phase = stopping
	src, cancel, done := s.src, s.cancel, s.done
	runID, startedAt := s.runID, s.startedAt
	s.mu.Unlock()

	cancel()
	<-done
	if err := waitSave(ctx, s.state.pending()); err != nil {
		s.log.WithError(err).Warn("stopped before pending save settled")
	}

	v := s.state.View()
	if v.SessionID != "" && s.store != nil {
		if err := s.store.EndSession(ctx, v.SessionID, v.SamplesPersisted); err != nil {
			s.log.WithError(err).WithField("session", v.SessionID).Warn("session end failed")
		} else {
			s.log.WithField("session", v.SessionID).Info("session ended")
		}
	}

	var relErr error
	if err := src.Release(); err != nil {
		relErr = fmt.Errorf("release video source: %w", err)
	}

	if s.cfg.ReportDir != "" {
		r := Report{
			RunID:            runID,
			SessionID:        v.SessionID,
			StartedAt:        startedAt,
			StoppedAt:        s.now(),
			SamplesPersisted: v.SamplesPersisted,
			Counters:         v.Counters,
		}
		if path, err := writeReport(s.cfg.ReportDir, r); err != nil {
			s.log.WithError(err).Warn("run report not written")
		} else {
			s.log.WithField("path", path).Info("run report written")
		}
	}

	s.state.teardown()
	s.mu.Lock()
	s.src, s.cancel, s.done = nil, nil, nil
	s.phase = idle
	s.mu.Unlock()

	s.emit(display.Cleared())
	s.log.WithFields(logrus.Fields{
		"run_id":    runID,
		"persisted": v.SamplesPersisted,
		"cycles":    v.Counters.Cycles,
	}).Info("capture stopped")
	return relErr
}

// waitSave waits for ch to close or ctx to end. A settled save wins over
// an expired ctx.
func waitSave(ctx context.Context, ch <-chan struct{}) error {
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	default:
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
