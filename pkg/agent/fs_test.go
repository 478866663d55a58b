package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailot/taylored-orchestrator/pkg/events"
)

func TestResolveWithinRootRejectsSiblingPrefix(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "root")
	require.NoError(t, os.Mkdir(sub, 0o755))

	a := New(Config{ContainerRoot: sub})

	_, err := a.resolveWithinRoot("../rootbypass")
	assert.ErrorIs(t, err, errOutsideRoot)
}

func TestResolveWithinRootAcceptsNestedPath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))

	a := New(Config{ContainerRoot: root})

	resolved, err := a.resolveWithinRoot("a/b")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a", "b"), resolved)
}

func TestListDirectoryPublishesEntries(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "file.txt"), []byte("hi"), 0o644))

	a := New(Config{ContainerRoot: root})
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()

	a.listDirectory(broker, "")

	event := <-sub
	require.Equal(t, events.DirectoryListing, event.Name)
	payload := event.Payload.(directoryListingPayload)
	assert.Len(t, payload.Files, 2)
}

func TestDownloadFileRejectsMissingPath(t *testing.T) {
	a := New(Config{ContainerRoot: t.TempDir()})
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()

	a.downloadFile(broker, "")

	event := <-sub
	assert.Equal(t, events.TayloredRunError, event.Name)
}

func TestDownloadFileReturnsContent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "file.txt"), []byte("hello"), 0o644))

	a := New(Config{ContainerRoot: root})
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()

	a.downloadFile(broker, "file.txt")

	event := <-sub
	require.Equal(t, events.FileContent, event.Name)
	payload := event.Payload.(fileContentPayload)
	assert.Equal(t, []byte("hello"), payload.Content)
}
