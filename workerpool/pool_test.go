package workerpool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pitabwire/modeltranslation/config"
	"github.com/pitabwire/modeltranslation/workerpool"
)

func TestSubmitAndConsume(t *testing.T) {
	testCases := []struct {
		name  string
		count int
	}{
		{name: "single pool", count: 1},
		{name: "multi pool", count: 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			cfg := &config.ConfigurationDefault{
				WorkerPoolCPUFactorForWorkerCount: 1,
				WorkerPoolCapacity:                4,
				WorkerPoolCount:                   tc.count,
				WorkerPoolExpiryDuration:          "1s",
			}

			pool, err := workerpool.New(ctx, cfg)
			require.NoError(t, err)
			defer pool.Shutdown()

			job := workerpool.NewJob(func(ctx context.Context, job *workerpool.Job[int]) error {
				for i := range 5 {
					if writeErr := job.WriteResult(ctx, i); writeErr != nil {
						return writeErr
					}
				}
				return nil
			})
			require.NotEmpty(t, job.ID())
			require.NoError(t, workerpool.Submit(ctx, pool, job))

			var sum int
			require.NoError(t, workerpool.ConsumeResultStream(ctx, job, func(v int) { sum += v }))
			require.Equal(t, 10, sum)

			require.ErrorIs(t, job.WriteResult(ctx, 1), workerpool.ErrJobClosed)
		})
	}
}

func TestJobErrorIsDelivered(t *testing.T) {
	ctx := context.Background()
	pool, err := workerpool.New(ctx, &config.ConfigurationDefault{WorkerPoolCapacity: 2, WorkerPoolCount: 1})
	require.NoError(t, err)
	defer pool.Shutdown()

	boom := errors.New("boom")
	var seen atomic.Int32
	job := workerpool.NewJob(func(ctx context.Context, job *workerpool.Job[string]) error {
		_ = job.WriteResult(ctx, "partial")
		return boom
	})
	require.NoError(t, workerpool.Submit(ctx, pool, job))

	err = workerpool.ConsumeResultStream(ctx, job, func(string) { seen.Add(1) })
	require.ErrorIs(t, err, boom)
	require.Equal(t, int32(1), seen.Load())
}

func TestSubmitWithoutPool(t *testing.T) {
	job := workerpool.NewJob(func(context.Context, *workerpool.Job[int]) error { return nil })
	require.Error(t, workerpool.Submit(context.Background(), nil, job))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pool, err := workerpool.New(context.Background(), &config.ConfigurationDefault{WorkerPoolCapacity: 1})
	require.NoError(t, err)
	defer pool.Shutdown()
	require.ErrorIs(t, workerpool.Submit(ctx, pool, workerpool.NewJob(func(context.Context, *workerpool.Job[int]) error {
		return nil
	})), context.Canceled)
}

func TestPanickingTaskDoesNotStopPool(t *testing.T) {
	ctx := context.Background()
	pool, err := workerpool.New(ctx, &config.ConfigurationDefault{WorkerPoolCapacity: 1, WorkerPoolCount: 1})
	require.NoError(t, err)
	defer pool.Shutdown()

	require.NoError(t, pool.Submit(ctx, func() { panic("bad row") }))

	done := make(chan struct{})
	require.NoError(t, pool.Submit(ctx, func() { close(done) }))
	<-done
}

func TestPanickingJobDeliversError(t *testing.T) {
	ctx := context.Background()
	pool, err := workerpool.New(ctx, &config.ConfigurationDefault{WorkerPoolCapacity: 1, WorkerPoolCount: 1})
	require.NoError(t, err)
	defer pool.Shutdown()

	job := workerpool.NewJobWithBuffer(func(context.Context, *workerpool.Job[int]) error {
		panic("boom")
	}, 1)
	require.NoError(t, workerpool.Submit(ctx, pool, job))

	got := -1
	err = workerpool.ConsumeResultStream(ctx, job, func(v int) { got = v })
	require.ErrorIs(t, err, workerpool.ErrJobPanicked)
	require.Contains(t, err.Error(), "boom")
	require.Equal(t, -1, got)
}
