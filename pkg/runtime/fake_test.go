package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailot/taylored-orchestrator/pkg/types"
)

func TestFakeDriverCreateStartInspectLifecycle(t *testing.T) {
	ctx := context.Background()
	d := NewFakeDriver()

	h, err := d.Create(ctx, ContainerConfig{Image: "taylored/runner", SessionID: "s1"})
	require.NoError(t, err)

	st, err := d.Inspect(ctx, h)
	require.NoError(t, err)
	assert.False(t, st.Running)

	require.NoError(t, d.Start(ctx, h))
	st, err = d.Inspect(ctx, h)
	require.NoError(t, err)
	assert.True(t, st.Running)

	require.NoError(t, d.Stop(ctx, h))
	require.NoError(t, d.Remove(ctx, h))

	_, err = d.Inspect(ctx, h)
	assert.Error(t, err)
}

func TestFakeDriverMissingImage(t *testing.T) {
	ctx := context.Background()
	d := NewFakeDriver()
	d.MissingImage = "ghost:latest"

	_, err := d.Create(ctx, ContainerConfig{Image: "ghost:latest", SessionID: "s1"})
	require.Error(t, err)

	var oerr *types.OrchestratorError
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, types.ErrDockerImageMissing, oerr.Kind)
}

func TestFakeDriverListBySessionLabel(t *testing.T) {
	ctx := context.Background()
	d := NewFakeDriver()

	h, err := d.Create(ctx, ContainerConfig{
		Image:     "taylored/runner",
		SessionID: "s1",
		Labels:    map[string]string{SessionLabel: "s1"},
	})
	require.NoError(t, err)

	list, err := d.ListBySessionLabel(ctx)
	require.NoError(t, err)
	require.Contains(t, list, "s1")
	assert.Equal(t, h.ID, list["s1"].ID)
}
