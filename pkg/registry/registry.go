// Package registry holds the control plane's in-memory table of live
// runners, guarded by a single mutex.
package registry

import (
	"sync"
	"time"

	"github.com/tailot/taylored-orchestrator/pkg/types"
)

// Mode selects how session ids map onto runner records.
type Mode int

const (
	// PerSession gives every distinct session id its own runner.
	PerSession Mode = iota
	// Reuse maps every session id onto one shared singleton runner.
	Reuse
)

// reuseKey is the fixed internal key the singleton runner is stored
// under when the registry runs in Reuse mode.
const reuseKey = "\x00reuse"

// Registry is the session->runner table. Safe for concurrent use by
// many HTTP handler goroutines plus the reaper goroutine.
type Registry struct {
	mode Mode

	mu      sync.RWMutex
	runners map[string]types.Runner
}

// New constructs an empty registry running in the given mode.
func New(mode Mode) *Registry {
	return &Registry{
		mode:    mode,
		runners: make(map[string]types.Runner),
	}
}

// Mode reports which mode the registry was constructed with.
func (r *Registry) Mode() Mode {
	return r.mode
}

func (r *Registry) key(sessionID string) string {
	if r.mode == Reuse {
		return reuseKey
	}
	return sessionID
}

// Lookup returns the runner mapped to sessionID, if any.
func (r *Registry) Lookup(sessionID string) (types.Runner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runners[r.key(sessionID)]
	return run, ok
}

// Insert records a new runner for sessionID. It reports false without
// modifying the registry if a record already exists under the same
// key, so a caller racing another Insert for the same session can
// detect the conflict instead of clobbering the winner's record.
func (r *Registry) Insert(sessionID string, runner types.Runner) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.key(sessionID)
	if _, exists := r.runners[k]; exists {
		return false
	}
	r.runners[k] = runner
	return true
}

// Remove deletes the runner mapped to sessionID, if any, and reports
// whether one was present.
func (r *Registry) Remove(sessionID string) (types.Runner, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.key(sessionID)
	run, ok := r.runners[k]
	if ok {
		delete(r.runners, k)
	}
	return run, ok
}

// Touch updates the last-activity timestamp of the runner mapped to
// sessionID and reports whether one was present.
func (r *Registry) Touch(sessionID string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.key(sessionID)
	run, ok := r.runners[k]
	if !ok {
		return false
	}
	run.LastActivity = now
	r.runners[k] = run
	return true
}

// Snapshot returns a point-in-time copy of every runner currently
// tracked, safe to range over without holding the registry lock.
func (r *Registry) Snapshot() []types.Runner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Runner, 0, len(r.runners))
	for _, run := range r.runners {
		out = append(out, run)
	}
	return out
}

// Len reports the number of runners currently tracked.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runners)
}
