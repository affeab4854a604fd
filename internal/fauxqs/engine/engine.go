// Package engine is the process-wide composition root: one region.Router
// (lazily creating one queue.Store, topic.Store and bucket.Store per
// region), the single clock.Wheel that drives every region's queue
// stores, the optional message spy, and the metrics collector. Mirrors
// the teacher's v1.Server holding one *config.Config plus service
// structs and nothing else.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/kibertoad/fauxqs/internal/fauxqs/bucket"
	"github.com/kibertoad/fauxqs/internal/fauxqs/clock"
	fauxqsmetrics "github.com/kibertoad/fauxqs/internal/fauxqs/metrics"
	"github.com/kibertoad/fauxqs/internal/fauxqs/queue"
	"github.com/kibertoad/fauxqs/internal/fauxqs/region"
	"github.com/kibertoad/fauxqs/internal/fauxqs/spy"
	"github.com/kibertoad/fauxqs/internal/fauxqs/topic"
	"github.com/kibertoad/fauxqs/internal/worker"
)

// Engine wires every leaf component into the composed runtime that
// internal/api.Server drives.
type Engine struct {
	Router  *region.Router
	Wheel   *clock.Wheel
	Spy     *spy.Spy // nil when message spies are disabled
	Metrics *fauxqsmetrics.Collector
	Pool    *worker.Pool

	clock clock.Clock
}

// Options configures a new Engine.
type Options struct {
	DefaultRegion    string
	Clock            clock.Clock // nil = clock.Real{}
	TimerTick        time.Duration
	SpyEnabled       bool
	SpyBufferSize    int
	MetricsRegistry  prometheus.Registerer
	NotifyMaxWorkers int
}

// New builds an Engine per Options but does not start its background
// loops; call Start to begin the timer wheel and worker pool.
func New(opts Options) *Engine {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	router := region.New(opts.DefaultRegion)

	var sp *spy.Spy
	if opts.SpyEnabled {
		sp = spy.New(opts.SpyBufferSize)
		router.SetEventSink(sp)
	}

	registry := opts.MetricsRegistry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	maxWorkers := opts.NotifyMaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	return &Engine{
		Router:  router,
		Wheel:   clock.NewWheel(clk, opts.TimerTick),
		Spy:     sp,
		Metrics: fauxqsmetrics.NewCollector(registry),
		Pool: worker.NewPool(worker.PoolConfig{
			Name:       "sns-fanout",
			MaxWorkers: maxWorkers,
		}),
		clock: clk,
	}
}

// Start begins the timer wheel and worker pool. The timer wheel does
// not know about queue stores up front (regions are created on demand),
// so it sweeps via the engine's own Processor that re-resolves the
// router's regions on every tick.
func (e *Engine) Start(ctx context.Context) {
	e.Wheel.Register(routerProcessor{e.Router})
	e.Wheel.Start(ctx)
	e.Pool.Start(ctx)
	log.Info().Str("default_region", e.Router.DefaultRegion()).Msg("fauxqs engine started")
}

// Stop cancels the timer wheel and worker pool, and cancels every
// outstanding long-poll waiter across every region's queues.
func (e *Engine) Stop() {
	e.Wheel.Stop()
	e.Pool.Stop()
	for _, region := range e.Router.Regions() {
		qs := e.Router.QueueStore(region)
		for _, name := range qs.ListQueues("") {
			_ = qs.DeleteQueue(name)
		}
	}
	log.Info().Msg("fauxqs engine stopped")
}

// Now returns the engine's current time, honoring an injected test clock.
func (e *Engine) Now() time.Time { return e.clock.Now() }

// routerProcessor adapts region.Router to clock.Processor: each tick it
// re-lists every region (new regions can appear between ticks, as
// requests create stores on demand) and sweeps each one's queue store.
type routerProcessor struct {
	router *region.Router
}

func (p routerProcessor) ProcessTimers(now time.Time) {
	for _, region := range p.router.Regions() {
		p.router.QueueStore(region).ProcessTimers(now)
	}
}

// ResolveDLQ builds a queue.ResolveDLQ bound to one region's store, for
// wiring into queue.Queue.ReceiveMessage.
func ResolveDLQ(qs *queue.Store) queue.ResolveDLQ {
	return qs.ResolveDLQByArn
}

// ResolveSQSSubscriptionQueue builds a topic.QueueResolver that looks up
// an sqs-protocol subscription's target queue by ARN, across regions (an
// sqs subscription's endpoint ARN embeds its own region, which may
// differ from the topic's).
func ResolveSQSSubscriptionQueue(router *region.Router) topic.QueueResolver {
	return func(arn string) *queue.Queue {
		reg := arnRegion(arn)
		if reg == "" {
			return nil
		}
		return router.QueueStore(reg).ResolveDLQByArn(arn)
	}
}

// arnRegion extracts the region segment from an
// "arn:aws:<service>:<region>:<account>:<name>" ARN.
func arnRegion(arn string) string {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) < 4 {
		return ""
	}
	return parts[3]
}

// BucketStore is a convenience accessor mirroring queue/topic.
func (e *Engine) BucketStore(region string) *bucket.Store { return e.Router.BucketStore(region) }
