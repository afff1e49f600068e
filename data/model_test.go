package data //nolint:testpackage // consistent with other test files in package

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBaseModelHooks(t *testing.T) {
	t.Parallel()

	m := &BaseModel{}
	require.NoError(t, m.BeforeCreate(nil))
	require.NotEmpty(t, m.GetID())
	require.True(t, m.ValidXID(m.GetID()))
	require.Equal(t, uint(1), m.Version)
	require.False(t, m.CreatedAt.IsZero())

	id := m.GetID()
	require.NoError(t, m.BeforeCreate(nil))
	require.Equal(t, id, m.GetID())

	require.NoError(t, m.BeforeUpdate(nil))
	require.Equal(t, uint(2), m.Version)
	require.False(t, m.ValidXID("not-an-xid"))
}
