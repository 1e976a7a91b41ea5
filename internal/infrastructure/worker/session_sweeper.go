package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionExpirer finalizes review sessions that went idle
type SessionExpirer interface {
	ExpireIdleSessions(ctx context.Context, now time.Time) int
}

// SessionSweeper periodically expires idle review sessions so their quotes
// are released for other reviewers
type SessionSweeper struct {
	expirer  SessionExpirer
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
	swept     int
}

// NewSessionSweeper creates a sweeper that runs every interval
func NewSessionSweeper(expirer SessionExpirer, interval time.Duration, logger *zap.Logger) *SessionSweeper {
	return &SessionSweeper{
		expirer:  expirer,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Name returns the worker name for identification
func (w *SessionSweeper) Name() string {
	return "SessionSweeper"
}

// Start launches the sweep loop
func (w *SessionSweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("session sweeper is already running")
	}
	if w.interval <= 0 {
		return fmt.Errorf("session sweeper interval must be positive, got %s", w.interval)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("SessionSweeper started", zap.Duration("interval", w.interval))

	go w.loop(loopCtx, w.done)
	return nil
}

// Stop ends the sweep loop and waits for an in-flight sweep to finish
func (w *SessionSweeper) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("SessionSweeper stopped")
	return nil
}

// Swept returns how many sessions the sweeper has expired so far
func (w *SessionSweeper) Swept() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.swept
}

func (w *SessionSweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce expires idle sessions as of now and returns how many it finalized
func (w *SessionSweeper) SweepOnce(ctx context.Context) int {
	n := w.expirer.ExpireIdleSessions(ctx, w.now())
	if n == 0 {
		return 0
	}

	w.mu.Lock()
	w.swept += n
	w.mu.Unlock()

	w.logger.Info("Expired idle review sessions", zap.Int("count", n))
	return n
}
