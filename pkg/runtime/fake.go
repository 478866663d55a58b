package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/tailot/taylored-orchestrator/pkg/types"
)

// FakeDriver is an in-memory Driver used by orchestrator and api
// package tests, avoiding a real Docker daemon dependency in unit
// tests the way the pack favors fakes over network-dependent mocks.
type FakeDriver struct {
	mu            sync.Mutex
	nextID        int
	containers    map[string]*fakeContainer
	pendingStarts int

	MissingImage string
	FailOnCreate error
	FailOnStart  error

	// StartBarrier, if non-nil, is received from before Start returns,
	// letting a test pause a Provision call mid-flight to force a
	// concurrent-provision race onto the registry.
	StartBarrier chan struct{}
}

type fakeContainer struct {
	cfg     ContainerConfig
	running bool
	removed bool
}

func NewFakeDriver() *FakeDriver {
	return &FakeDriver{containers: make(map[string]*fakeContainer)}
}

func (f *FakeDriver) ImageExists(ctx context.Context, name string) (bool, error) {
	return name != f.MissingImage, nil
}

func (f *FakeDriver) Create(ctx context.Context, cfg ContainerConfig) (Handle, error) {
	if f.FailOnCreate != nil {
		return Handle{}, f.FailOnCreate
	}
	if cfg.Image == f.MissingImage {
		return Handle{}, types.NewOrchestratorError(types.ErrDockerImageMissing, "image not found", nil)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("fake-%d", f.nextID)
	f.containers[id] = &fakeContainer{cfg: cfg}
	return Handle{ID: id}, nil
}

func (f *FakeDriver) Start(ctx context.Context, h Handle) error {
	if f.FailOnStart != nil {
		return f.FailOnStart
	}
	if barrier := f.StartBarrier; barrier != nil {
		f.mu.Lock()
		f.pendingStarts++
		f.mu.Unlock()
		<-barrier
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[h.ID]
	if !ok {
		return types.NewOrchestratorError(types.ErrRunnerNotFound, "container not found", nil)
	}
	c.running = true
	return nil
}

// PendingStarts reports how many Start calls are currently blocked on
// StartBarrier.
func (f *FakeDriver) PendingStarts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pendingStarts
}

// ActiveContainerCount reports how many containers the driver is still
// tracking (created but not yet removed).
func (f *FakeDriver) ActiveContainerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.containers)
}

func (f *FakeDriver) Inspect(ctx context.Context, h Handle) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[h.ID]
	if !ok {
		return State{}, types.NewOrchestratorError(types.ErrRunnerNotFound, "container not found", nil)
	}
	return State{Running: c.running}, nil
}

func (f *FakeDriver) Stop(ctx context.Context, h Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[h.ID]
	if !ok {
		return types.NewOrchestratorError(types.ErrRunnerNotFound, "container not found", nil)
	}
	c.running = false
	return nil
}

func (f *FakeDriver) Remove(ctx context.Context, h Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[h.ID]
	if !ok {
		return types.NewOrchestratorError(types.ErrRunnerNotFound, "container not found", nil)
	}
	c.removed = true
	delete(f.containers, h.ID)
	return nil
}

func (f *FakeDriver) ListBySessionLabel(ctx context.Context) (map[string]Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]Handle)
	for id, c := range f.containers {
		sessionID := c.cfg.Labels[SessionLabel]
		if sessionID == "" {
			sessionID = c.cfg.SessionID
		}
		out[sessionID] = Handle{ID: id}
	}
	return out, nil
}

var _ Driver = (*FakeDriver)(nil)
