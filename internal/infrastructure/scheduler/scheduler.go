package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrSchedulerNotRunning = errors.New("scheduler: not running")

// Entry is one periodically triggered job. Run is invoked sequentially per
// entry, so a slow run delays the next tick instead of overlapping it.
type Entry struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Config holds scheduler configuration.
type Config struct {
	Enabled    bool
	JobTimeout time.Duration
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		JobTimeout: 30 * time.Minute,
	}
}

// Scheduler triggers registered entries on their intervals until stopped.
type Scheduler struct {
	config  Config
	entries []Entry
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a scheduler over the given entries.
func NewScheduler(config Config, entries []Entry, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		config:  config,
		entries: entries,
		logger:  logger,
	}
}

// Start launches one goroutine per entry. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, entry := range s.entries {
		if entry.Interval <= 0 {
			s.logger.Warn("schedule entry disabled", zap.String("job", entry.Name))
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, entry)
	}

	s.logger.Info("job scheduler started", zap.Int("entries", len(s.entries)))
	return nil
}

// Stop cancels all entry loops and waits for in-flight runs, bounded by the
// given context.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("job scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("job scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context, entry Entry) {
	defer s.wg.Done()

	ticker := time.NewTicker(entry.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, entry)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, entry Entry) {
	runCtx := ctx
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := entry.Run(runCtx); err != nil {
		s.logger.Error("scheduled job failed",
			zap.String("job", entry.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return
	}
	s.logger.Info("scheduled job finished",
		zap.String("job", entry.Name),
		zap.Duration("elapsed", time.Since(start)))
}
