package schemasync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pitabwire/modeltranslation/datastore/pool"
)

func TestSyncRefusesConcurrentRuns(t *testing.T) {
	ctx := context.Background()
	syncer := NewSyncer(nil, pool.NewPool(ctx))

	syncer.running.Lock()
	_, err := syncer.Sync(ctx, NoInput)
	require.ErrorIs(t, err, ErrSyncInProgress)
	_, err = syncer.Inspect(ctx)
	require.ErrorIs(t, err, ErrSyncInProgress)
	syncer.running.Unlock()

	_, err = syncer.Inspect(ctx)
	require.ErrorIs(t, err, ErrNoDatabase)
}
