package agent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailot/taylored-orchestrator/pkg/events"
)

var errOutsideRoot = errors.New("Access denied: Path is outside the allowed directory.")

// resolveWithinRoot resolves requested against the agent's configured
// container root and rejects any path that escapes it. Prefix matching
// is segment-boundary aware: a root of "/root" must not admit
// "/rootbypass".
func (a *Agent) resolveWithinRoot(requested string) (string, error) {
	root := filepath.Clean(a.cfg.ContainerRoot)
	if root == "" {
		root = string(filepath.Separator)
	}

	joined := filepath.Join(root, requested)
	resolved, err := filepath.Abs(joined)
	if err != nil {
		return "", err
	}

	if resolved != root && !pathHasPrefix(resolved, root) {
		return "", errOutsideRoot
	}
	return resolved, nil
}

func pathHasPrefix(path, root string) bool {
	if root == string(filepath.Separator) {
		return true
	}
	return len(path) > len(root) && path[:len(root)] == root && path[len(root)] == filepath.Separator
}

// listDirectory reports the entries of a directory relative to the
// agent's container root.
func (a *Agent) listDirectory(broker *events.Broker, requestedPath string) {
	resolved, err := a.resolveWithinRoot(requestedPath)
	if err != nil {
		publishRunError(broker, nil, err.Error())
		return
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		publishRunError(broker, nil, fmt.Sprintf("Failed to read directory %q: %s", requestedPath, err))
		return
	}

	files := make([]directoryEntryWire, 0, len(entries))
	for _, entry := range entries {
		files = append(files, directoryEntryWire{Name: entry.Name(), IsDirectory: entry.IsDir()})
	}

	broker.Publish(&events.Event{
		Name:    events.DirectoryListing,
		Payload: directoryListingPayload{Path: resolved, Files: files},
	})
}

// downloadFile reads a single file relative to the agent's container
// root and publishes its raw bytes.
func (a *Agent) downloadFile(broker *events.Broker, requestedPath string) {
	if requestedPath == "" {
		publishRunError(broker, nil, "Access denied: a non-empty path is required.")
		return
	}

	resolved, err := a.resolveWithinRoot(requestedPath)
	if err != nil {
		publishRunError(broker, nil, err.Error())
		return
	}

	info, err := os.Stat(resolved)
	if err != nil {
		publishRunError(broker, nil, fmt.Sprintf("Failed to read file %q: %s", requestedPath, err))
		return
	}
	if !info.Mode().IsRegular() {
		publishRunError(broker, nil, fmt.Sprintf("Failed to read file %q: not a regular file", requestedPath))
		return
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		publishRunError(broker, nil, fmt.Sprintf("Failed to read file %q: %s", requestedPath, err))
		return
	}

	broker.Publish(&events.Event{
		Name:    events.FileContent,
		Payload: fileContentPayload{Path: requestedPath, Content: content},
	})
}
