// Package pool runs submitted units of work in bounded waves.
//
// Units are queued by Submit and executed by Drain, which takes up to batchSize
// pending units at a time, starts them together and waits for every one of them
// to settle before taking the next wave. Submit never starts work: nothing runs
// until Drain is called, so at most batchSize units are in flight no matter how
// many were submitted. A unit's failure is counted and logged
// at debug level but never returned to the caller of Drain; units are expected
// to handle and report their own errors.
package pool

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/cart-crawler/internal/metrics"
)

// DefaultBatchSize is the wave size used when Drain is given a non-positive size.
const DefaultBatchSize = 25

// Unit is one piece of asynchronous work.
type Unit func(ctx context.Context) error

// Stats reports how many units have settled over the pool's lifetime.
type Stats struct {
	Succeeded int
	Failed    int
}

// Pool queues units and drains them in waves.
type Pool struct {
	mu      sync.Mutex
	pending []Unit
	stats   Stats

	drainMu sync.Mutex
	name    string
	logger  *zap.Logger
}

// New constructs an empty Pool. The name labels metrics and logs.
func New(name string, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		name:   name,
		logger: logger.Named("pool").With(zap.String("pool", name)),
	}
}

// Submit queues a unit. It is safe to call concurrently, including from a
// running unit; such units join a later wave of the current Drain.
func (p *Pool) Submit(unit Unit) {
	if unit == nil {
		return
	}
	p.mu.Lock()
	p.pending = append(p.pending, unit)
	p.mu.Unlock()
}

// Pending returns the number of queued units not yet started.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Stats returns the settled-unit counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Drain runs every pending unit in waves of at most batchSize and returns once
// all of them have settled, along with the outcomes of the units it ran.
// Concurrent callers are serialized.
func (p *Pool) Drain(ctx context.Context, batchSize int) Stats {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	p.drainMu.Lock()
	defer p.drainMu.Unlock()

	before := p.Stats()
	for wave := 1; ; wave++ {
		units := p.take(batchSize)
		if len(units) == 0 {
			after := p.Stats()
			return Stats{
				Succeeded: after.Succeeded - before.Succeeded,
				Failed:    after.Failed - before.Failed,
			}
		}
		p.logger.Debug("starting wave",
			zap.Int("wave", wave),
			zap.Int("units", len(units)),
			zap.Int("queued", p.Pending()),
		)

		var g errgroup.Group
		for _, unit := range units {
			g.Go(func() error {
				p.settle(p.run(ctx, unit))
				return nil
			})
		}
		_ = g.Wait()
	}
}

func (p *Pool) take(n int) []Unit {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n > len(p.pending) {
		n = len(p.pending)
	}
	units := p.pending[:n:n]
	p.pending = p.pending[n:]
	return units
}

func (p *Pool) run(ctx context.Context, unit Unit) (err error) {
	metrics.IncInFlight(p.name)
	defer metrics.DecInFlight(p.name)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit panicked: %v", r)
		}
	}()
	return unit(ctx)
}

func (p *Pool) settle(err error) {
	p.mu.Lock()
	if err != nil {
		p.stats.Failed++
	} else {
		p.stats.Succeeded++
	}
	p.mu.Unlock()

	if err != nil {
		metrics.ObservePoolUnit(p.name, metrics.OutcomeFailed)
		p.logger.Debug("unit failed", zap.Error(err))
		return
	}
	metrics.ObservePoolUnit(p.name, metrics.OutcomeOK)
}
