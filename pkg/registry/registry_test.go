package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tailot/taylored-orchestrator/pkg/types"
)

func TestPerSessionIsolatesSessions(t *testing.T) {
	r := New(PerSession)

	r.Insert("session-a", types.Runner{SessionID: "session-a", ContainerID: "c-a"})
	r.Insert("session-b", types.Runner{SessionID: "session-b", ContainerID: "c-b"})

	a, ok := r.Lookup("session-a")
	assert.True(t, ok)
	assert.Equal(t, "c-a", a.ContainerID)

	b, ok := r.Lookup("session-b")
	assert.True(t, ok)
	assert.Equal(t, "c-b", b.ContainerID)

	assert.Equal(t, 2, r.Len())
}

func TestReuseSharesSingleRunnerAcrossSessions(t *testing.T) {
	r := New(Reuse)

	r.Insert("session-a", types.Runner{SessionID: "session-a", ContainerID: "shared"})

	b, ok := r.Lookup("session-b")
	assert.True(t, ok, "any session id should resolve to the shared runner")
	assert.Equal(t, "shared", b.ContainerID)

	assert.Equal(t, 1, r.Len())
}

func TestInsertReportsConflictWithoutOverwriting(t *testing.T) {
	r := New(PerSession)

	assert.True(t, r.Insert("session-a", types.Runner{SessionID: "session-a", ContainerID: "first"}))
	assert.False(t, r.Insert("session-a", types.Runner{SessionID: "session-a", ContainerID: "second"}))

	run, ok := r.Lookup("session-a")
	assert.True(t, ok)
	assert.Equal(t, "first", run.ContainerID, "a conflicting Insert must not clobber the existing record")
}

func TestRemoveReportsPresence(t *testing.T) {
	r := New(PerSession)
	r.Insert("session-a", types.Runner{SessionID: "session-a"})

	run, ok := r.Remove("session-a")
	assert.True(t, ok)
	assert.Equal(t, "session-a", run.SessionID)

	_, ok = r.Remove("session-a")
	assert.False(t, ok)
}

func TestTouchUpdatesLastActivity(t *testing.T) {
	r := New(PerSession)
	start := time.Now().Add(-time.Hour)
	r.Insert("session-a", types.Runner{SessionID: "session-a", LastActivity: start})

	now := time.Now()
	ok := r.Touch("session-a", now)
	assert.True(t, ok)

	run, _ := r.Lookup("session-a")
	assert.WithinDuration(t, now, run.LastActivity, time.Millisecond)

	assert.False(t, r.Touch("missing", now))
}

func TestSnapshotIsPointInTime(t *testing.T) {
	r := New(PerSession)
	r.Insert("session-a", types.Runner{SessionID: "session-a"})
	r.Insert("session-b", types.Runner{SessionID: "session-b"})

	snap := r.Snapshot()
	assert.Len(t, snap, 2)

	r.Remove("session-a")
	assert.Len(t, snap, 2, "snapshot must not reflect later mutations")
	assert.Equal(t, 1, r.Len())
}
