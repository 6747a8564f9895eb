package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/socialia/sym"
)

// Ticker drives the dispatcher as a daemon: it wakes at a fixed
// interval and runs every due post. Ticks never overlap; a slow batch
// delays the next check rather than running concurrently with it.
type Ticker struct {
	dispatcher *Dispatcher
	store      *Store
	interval   time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	log        *zap.SugaredLogger

	mu              sync.Mutex
	lastTickAt      time.Time
	ticksSinceStart int64
	lastPendingLog  string
}

// TickerConfig contains configuration for the daemon loop.
type TickerConfig struct {
	Interval time.Duration // How often to check for due posts (default: 1 second)
}

// DefaultTickerConfig returns sensible defaults.
func DefaultTickerConfig() TickerConfig {
	return TickerConfig{
		Interval: 1 * time.Second,
	}
}

// NewTicker creates a daemon ticker over the dispatcher.
func NewTicker(dispatcher *Dispatcher, store *Store, cfg TickerConfig, log *zap.SugaredLogger) *Ticker {
	return NewTickerWithContext(context.Background(), dispatcher, store, cfg, log)
}

// NewTickerWithContext creates a ticker with a parent context.
func NewTickerWithContext(ctx context.Context, dispatcher *Dispatcher, store *Store, cfg TickerConfig, log *zap.SugaredLogger) *Ticker {
	tickerCtx, cancel := context.WithCancel(ctx)

	return &Ticker{
		dispatcher: dispatcher,
		store:      store,
		interval:   cfg.Interval,
		ctx:        tickerCtx,
		cancel:     cancel,
		log:        log,
	}
}

// Start begins the ticker loop.
func (t *Ticker) Start() {
	t.wg.Add(1)
	go t.run()
	t.log.Infow(sym.Pulse+" Scheduler started", "interval", t.interval)
}

// Stop gracefully stops the ticker. An in-flight batch finishes first.
func (t *Ticker) Stop() {
	t.cancel()
	t.wg.Wait()
	t.log.Infow(sym.Pulse + " Scheduler stopped")
}

// run is the main ticker loop.
func (t *Ticker) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case tickTime := <-ticker.C:
			t.mu.Lock()
			t.lastTickAt = tickTime
			t.ticksSinceStart++
			t.mu.Unlock()

			t.logNextPending(tickTime)

			if _, err := t.dispatcher.RunDue(t.ctx, tickTime); err != nil {
				// Don't spam logs - batch errors land at warn level
				t.log.Warnw("Scheduler tick error", "error", err, "tick", t.ticksSinceStart)
			}
		}
	}
}

// logNextPending logs time until the next pending post, only when the
// message would differ from the previous tick's.
func (t *Ticker) logNextPending(now time.Time) {
	next, err := t.store.NextPending()
	if err != nil {
		t.log.Warnw("Failed to get next pending post", "error", err)
		return
	}

	var msg string
	if next == nil {
		msg = sym.Pulse + " Scheduler - no pending posts"
	} else {
		timeUntil := next.DueAt.Sub(now)
		if timeUntil < 0 {
			timeUntil = 0
		}
		msg = fmt.Sprintf("%s Scheduler - next post to %s in %s",
			sym.Pulse, next.Platform, timeUntil.Round(time.Second))
	}

	t.mu.Lock()
	changed := msg != t.lastPendingLog
	t.lastPendingLog = msg
	t.mu.Unlock()

	if changed {
		t.log.Infow(msg)
	}
}

// GetStats returns ticker statistics.
func (t *Ticker) GetStats() map[string]interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	return map[string]interface{}{
		"last_tick_at":      t.lastTickAt,
		"ticks_since_start": t.ticksSinceStart,
		"interval":          t.interval,
	}
}
