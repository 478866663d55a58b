package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailot/taylored-orchestrator/pkg/types"
)

func TestBoltStorePutLoadDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer store.Close()

	run := types.Runner{
		SessionID:    "session-a",
		ContainerID:  "container-a",
		Image:        "taylored/runner",
		LastActivity: time.Now().Truncate(time.Second),
	}
	require.NoError(t, store.Put(run))

	loaded, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, run.SessionID, loaded[0].SessionID)
	assert.Equal(t, run.ContainerID, loaded[0].ContainerID)

	require.NoError(t, store.Delete("session-a"))
	loaded, err = store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put(types.Runner{SessionID: "session-a"}))
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "session-a", loaded[0].SessionID)
}
