package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailot/taylored-orchestrator/pkg/registry"
	"github.com/tailot/taylored-orchestrator/pkg/runtime"
	"github.com/tailot/taylored-orchestrator/pkg/types"
)

func TestSweepReapsExpiredRunners(t *testing.T) {
	ctx := context.Background()
	driver := runtime.NewFakeDriver()
	reg := registry.New(registry.PerSession)

	handle, err := driver.Create(ctx, runtime.ContainerConfig{Image: "taylored/runner", SessionID: "session-a"})
	require.NoError(t, err)
	require.NoError(t, driver.Start(ctx, handle))

	reg.Insert("session-a", types.Runner{
		SessionID:    "session-a",
		ContainerID:  handle.ID,
		LastActivity: time.Now().Add(-time.Hour),
	})

	reaper := NewReaper(ReaperConfig{
		Registry:          reg,
		Driver:            driver,
		InactivityTimeout: time.Minute,
	})
	reaper.sweep(ctx)

	assert.Equal(t, 0, reg.Len())
	_, err = driver.Inspect(ctx, handle)
	assert.Error(t, err, "expired runner's container should have been removed")
}

func TestSweepSparesActiveRunners(t *testing.T) {
	ctx := context.Background()
	driver := runtime.NewFakeDriver()
	reg := registry.New(registry.PerSession)

	handle, err := driver.Create(ctx, runtime.ContainerConfig{Image: "taylored/runner", SessionID: "session-a"})
	require.NoError(t, err)

	reg.Insert("session-a", types.Runner{
		SessionID:    "session-a",
		ContainerID:  handle.ID,
		LastActivity: time.Now(),
	})

	reaper := NewReaper(ReaperConfig{Registry: reg, Driver: driver, InactivityTimeout: time.Minute})
	reaper.sweep(ctx)

	assert.Equal(t, 1, reg.Len())
}

func TestReconcileRemovesOrphanContainersAndDanglingRecords(t *testing.T) {
	ctx := context.Background()
	driver := runtime.NewFakeDriver()
	reg := registry.New(registry.PerSession)

	orphan, err := driver.Create(ctx, runtime.ContainerConfig{
		Image:     "taylored/runner",
		SessionID: "orphan-session",
		Labels:    map[string]string{runtime.SessionLabel: "orphan-session"},
	})
	require.NoError(t, err)

	reg.Insert("dangling-session", types.Runner{SessionID: "dangling-session", ContainerID: "gone"})

	reaper := NewReaper(ReaperConfig{Registry: reg, Driver: driver})
	require.NoError(t, reaper.Reconcile(ctx))

	_, err = driver.Inspect(ctx, orphan)
	assert.Error(t, err, "orphan container should have been removed")

	_, ok := reg.Lookup("dangling-session")
	assert.False(t, ok, "dangling registry record should have been dropped")
}
