// Package workerpool runs background jobs on an ants goroutine pool.
package workerpool

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pitabwire/util"

	"github.com/pitabwire/modeltranslation/config"
)

const releaseTimeout = time.Second

// WorkerPool runs submitted tasks on a bounded set of goroutines.
type WorkerPool interface {
	Submit(ctx context.Context, task func()) error
	Running() int
	Shutdown()
}

// Options sizes the pool. Zero values take the configured defaults.
type Options struct {
	PoolCount          int
	SinglePoolCapacity int
	MaxBlockingTasks   int
	ExpiryDuration     time.Duration
	Nonblocking        bool
	Logger             *util.LogEntry
}

type Option func(*Options)

// WithPoolNonblocking makes Submit fail instead of waiting when the pool is full.
func WithPoolNonblocking(nonblocking bool) Option {
	return func(opts *Options) {
		opts.Nonblocking = nonblocking
	}
}

// WithPoolLogger sets the logger receiving pool messages and task panics.
func WithPoolLogger(logger *util.LogEntry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// New creates a pool sized from cfg, adjusted by opts. More than one configured pool gives an
// ants.MultiPool balancing on the least busy pool.
func New(ctx context.Context, cfg config.ConfigurationWorkerPool, opts ...Option) (WorkerPool, error) {
	wopts := &Options{
		PoolCount:          cfg.GetCount(),
		SinglePoolCapacity: cfg.GetCapacity(),
		MaxBlockingTasks:   runtime.NumCPU() * cfg.GetCPUFactor(),
		ExpiryDuration:     cfg.GetExpiryDuration(),
		Logger:             util.Log(ctx).WithField("component", "workerpool"),
	}
	for _, opt := range opts {
		opt(wopts)
	}

	log := wopts.Logger
	antsOpts := []ants.Option{
		ants.WithNonblocking(wopts.Nonblocking),
		ants.WithLogger(antsLogger{log: log}),
		ants.WithPanicHandler(func(recovered any) {
			log.WithField("panic", recovered).Error("workerpool -- task panicked")
		}),
	}
	if wopts.ExpiryDuration > 0 {
		antsOpts = append(antsOpts, ants.WithExpiryDuration(wopts.ExpiryDuration))
	}
	if wopts.MaxBlockingTasks > 0 {
		antsOpts = append(antsOpts, ants.WithMaxBlockingTasks(wopts.MaxBlockingTasks))
	}

	if wopts.PoolCount <= 1 {
		p, err := ants.NewPool(wopts.SinglePoolCapacity, antsOpts...)
		if err != nil {
			return nil, fmt.Errorf("create worker pool: %w", err)
		}
		return &antsPool{runner: p, release: p.Release}, nil
	}

	mp, err := ants.NewMultiPool(wopts.PoolCount, wopts.SinglePoolCapacity, ants.LeastTasks, antsOpts...)
	if err != nil {
		return nil, fmt.Errorf("create worker multi pool: %w", err)
	}
	return &antsPool{runner: mp, release: func() { _ = mp.ReleaseTimeout(releaseTimeout) }}, nil
}

type antsLogger struct {
	log *util.LogEntry
}

func (l antsLogger) Printf(format string, args ...any) {
	l.log.Info(fmt.Sprintf(format, args...))
}

// runner is the part of *ants.Pool and *ants.MultiPool the service uses.
type runner interface {
	Submit(task func()) error
	Running() int
}

type antsPool struct {
	runner  runner
	release func()
}

func (p *antsPool) Submit(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.runner.Submit(task)
}

func (p *antsPool) Running() int {
	return p.runner.Running()
}

func (p *antsPool) Shutdown() {
	p.release()
}
