package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/pitabwire/util"
	"github.com/rs/xid"
)

const defaultJobResultBufferSize = 10

var (
	ErrJobClosed   = errors.New("worker job is already closed")
	ErrJobPanicked = errors.New("worker job panicked")
)

// JobResult represents the result of a job execution, which can be either a value of type T or an error.
type JobResult[T any] interface {
	IsError() bool
	Error() error
	Item() T
}

type jobResult[T any] struct {
	item T
	err  error
}

func (j *jobResult[T]) IsError() bool { return j.err != nil }
func (j *jobResult[T]) Error() error  { return j.err }
func (j *jobResult[T]) Item() T       { return j.item }

// Job is a unit of work producing results of type T on a buffered channel. The channel is
// closed once the job function returns.
type Job[T any] struct {
	id      string
	process func(ctx context.Context, job *Job[T]) error
	results chan JobResult[T]
	closed  atomic.Bool
}

func NewJob[T any](process func(ctx context.Context, job *Job[T]) error) *Job[T] {
	return NewJobWithBuffer(process, defaultJobResultBufferSize)
}

func NewJobWithBuffer[T any](process func(ctx context.Context, job *Job[T]) error, buffer int) *Job[T] {
	return &Job[T]{
		id:      xid.New().String(),
		process: process,
		results: make(chan JobResult[T], buffer),
	}
}

func (j *Job[T]) ID() string {
	return j.id
}

func (j *Job[T]) WriteResult(ctx context.Context, val T) error {
	return j.write(ctx, &jobResult[T]{item: val})
}

func (j *Job[T]) WriteError(ctx context.Context, err error) error {
	return j.write(ctx, &jobResult[T]{err: err})
}

func (j *Job[T]) write(ctx context.Context, res JobResult[T]) error {
	if j.closed.Load() {
		return ErrJobClosed
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("context canceled while writing job result: %w", ctx.Err())
	case j.results <- res:
		return nil
	}
}

// ReadResult blocks for the next result; false once the job is done or ctx is canceled.
func (j *Job[T]) ReadResult(ctx context.Context) (JobResult[T], bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case res, ok := <-j.results:
		return res, ok
	}
}

func (j *Job[T]) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return j.process(ctx, j)
}

func (j *Job[T]) close() {
	if j.closed.CompareAndSwap(false, true) {
		close(j.results)
	}
}

// Submit runs job on pool. A job function error, or a panic wrapped in ErrJobPanicked, is
// delivered as the last result.
func Submit[T any](ctx context.Context, pool WorkerPool, job *Job[T]) error {
	if pool == nil {
		return errors.New("worker pool is not configured")
	}

	err := pool.Submit(ctx, func() {
		defer job.close()

		if execErr := job.run(ctx); execErr != nil {
			util.Log(ctx).WithError(execErr).WithField("job", job.ID()).Error("job failed")
			_ = job.WriteError(ctx, execErr)
		}
	})
	if err != nil {
		job.close()
	}
	return err
}

// ConsumeResultStream feeds every result of job to consumer and returns the first error result.
func ConsumeResultStream[T any](ctx context.Context, job *Job[T], consumer func(T)) error {
	for {
		res, ok := job.ReadResult(ctx)
		if !ok {
			return ctx.Err()
		}

		if res.IsError() {
			return res.Error()
		}

		consumer(res.Item())
	}
}
