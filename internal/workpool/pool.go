// Package workpool runs tasks on a fixed set of workers. It bounds concurrent
// calls to external providers and concurrent ingestion jobs.
package workpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"
)

// DefaultSize is the default number of workers.
const DefaultSize = 25

// Task is a unit of work run by the pool.
type Task func(ctx context.Context) error

// Pool runs tasks on a fixed number of workers, optionally throttled by a
// token bucket. Callers sharing a Pool share its bound.
type Pool struct {
	workers *ants.Pool
	limiter *rate.Limiter
}

// Option configures a Pool.
type Option func(*Pool)

// WithRateLimit caps task starts at rps per second with the given burst.
// A non-positive rps disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(p *Pool) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates a pool with size workers. A non-positive size uses DefaultSize.
func New(size int, opts ...Option) (*Pool, error) {
	if size <= 0 {
		size = DefaultSize
	}

	workers, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	p := &Pool{workers: workers}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Size returns the maximum number of concurrently running tasks.
func (p *Pool) Size() int {
	return p.workers.Cap()
}

// Running returns the number of tasks currently executing.
func (p *Pool) Running() int {
	return p.workers.Running()
}

// Release stops the workers. The pool cannot be used afterwards.
func (p *Pool) Release() {
	p.workers.Release()
}

// Do runs every task and waits for all of them. The first failure cancels the
// context passed to the remaining tasks; tasks that have not started by then
// are skipped. Do returns the first failure, or ctx's error if ctx ended
// before all tasks succeeded.
func (p *Pool) Do(ctx context.Context, tasks []Task) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		err := p.workers.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					fail(err)
					return
				}
			}
			if err := task(ctx); err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("submit task: %w", err))
			break
		}
	}

	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// All runs every task to completion regardless of the others' outcome and
// returns their failures joined. Tasks not yet started when ctx ends are
// skipped.
func (p *Pool) All(ctx context.Context, tasks []Task) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		err := p.workers.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					record(err)
					return
				}
			}
			if err := task(ctx); err != nil {
				record(err)
			}
		})
		if err != nil {
			wg.Done()
			record(fmt.Errorf("submit task: %w", err))
			break
		}
	}

	wg.Wait()
	return errors.Join(errs...)
}
