// Package scheduler persists classifier evidence on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Flusher writes pending evidence to durable storage.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Scheduler runs Flush on a cron spec ("@every 30s", "*/5 * * * *").
// An overrunning flush makes the next tick skip instead of piling up.
type Scheduler struct {
	cron    *cron.Cron
	flusher Flusher
	spec    string
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	entryID cron.EntryID
	started bool
}

// New validates spec and creates a stopped Scheduler. timeout bounds each
// flush; zero means no bound.
func New(spec string, flusher Flusher, timeout time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if flusher == nil {
		return nil, fmt.Errorf("flusher is required")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse flush schedule %q: %w", spec, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{logger.Sugar()}),
		cron.SkipIfStillRunning(cronLogger{logger.Sugar()}),
	))
	s := &Scheduler{
		cron:    c,
		flusher: flusher,
		spec:    spec,
		timeout: timeout,
		logger:  logger,
	}

	id, err := c.AddFunc(spec, s.run)
	if err != nil {
		return nil, fmt.Errorf("adding cron entry: %w", err)
	}
	s.entryID = id
	return s, nil
}

// Start begins the cron loop. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	s.logger.Info("flush scheduled", zap.String("spec", s.spec))
}

// Stop halts the loop and waits for a running flush until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running flush: %w", ctx.Err())
	}
}

// Next returns the time of the next scheduled flush (zero when stopped).
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

func (s *Scheduler) run() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := s.flusher.Flush(ctx); err != nil {
		// Failed words stay queued and go out with the next tick.
		s.logger.Warn("scheduled flush failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return
	}
	s.logger.Debug("scheduled flush done", zap.Duration("took", time.Since(start)))
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
