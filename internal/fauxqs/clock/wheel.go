package clock

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTick is the cadence at which the wheel sweeps registered
// processors when no explicit interval is configured.
const DefaultTick = 20 * time.Millisecond

// Processor is anything the wheel can sweep on every tick. A
// queue.Store implements this to advance delayed->ready, inflight->ready,
// retention expiry and dedup expiry for every queue it owns (redrive to a
// DLQ happens on receive, not here).
type Processor interface {
	ProcessTimers(now time.Time)
}

// Wheel runs a single cooperative loop that sweeps every registered
// Processor on a fixed cadence, and can also be swept on demand (e.g.
// right after a write that might have advanced a deadline). It is the
// adaptation of internal/background.SingletonTask's periodic-ticker loop
// to a single-process engine: no cluster, so no advisory lock is needed,
// just a plain ticker protected by its own mutex.
type Wheel struct {
	clock Clock
	tick  time.Duration

	mu         sync.Mutex
	processors []Processor

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWheel creates a Wheel driven by clk, sweeping every tick duration
// (DefaultTick if tick <= 0).
func NewWheel(clk Clock, tick time.Duration) *Wheel {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Wheel{clock: clk, tick: tick}
}

// Register adds p to the set of processors swept on every tick. Safe to
// call before or after Start.
func (w *Wheel) Register(p Processor) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.processors = append(w.processors, p)
}

// Start begins the sweep loop. Stop cancels it.
func (w *Wheel) Start(ctx context.Context) {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop()
	}()

	log.Info().Dur("tick", w.tick).Msg("Timer wheel started")
}

// Stop gracefully shuts the wheel down.
func (w *Wheel) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	log.Info().Msg("Timer wheel stopped")
}

// Sweep processes all registered processors once, immediately, using the
// wheel's clock. The sweep loop calls it on every tick; no store
// operation calls it directly.
func (w *Wheel) Sweep() {
	now := w.clock.Now()
	w.mu.Lock()
	processors := append([]Processor(nil), w.processors...)
	w.mu.Unlock()

	for _, p := range processors {
		p.ProcessTimers(now)
	}
}

func (w *Wheel) loop() {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}
