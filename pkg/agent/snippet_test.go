package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailot/taylored-orchestrator/pkg/events"
)

func TestSnippetPatternExtractsFirstMatchOnly(t *testing.T) {
	body := `<taylored number="7" compute="js">echo hi</taylored><taylored number="9">echo bye</taylored>`
	match := snippetPattern.FindStringSubmatch(body)
	require.NotNil(t, match)
	assert.Equal(t, "7", match[1])
	assert.Equal(t, "js", match[2])
	assert.Equal(t, "echo hi", match[3])
}

func TestExecuteSnippetRejectsEmptyBody(t *testing.T) {
	a := New(Config{RunnerTool: []string{"true"}})
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()

	a.executeSnippet(context.Background(), broker, "")

	event := <-sub
	require.Equal(t, events.TayloredRunError, event.Name)
	payload := event.Payload.(tayloredRunErrorPayload)
	assert.Contains(t, payload.Error, "Invalid XML data")
}

func TestExecuteSnippetRejectsBodyWithoutSnippetBlock(t *testing.T) {
	a := New(Config{RunnerTool: []string{"true"}})
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()

	a.executeSnippet(context.Background(), broker, "no taylored block here")

	event := <-sub
	require.Equal(t, events.TayloredRunError, event.Name)
	payload := event.Payload.(tayloredRunErrorPayload)
	assert.Equal(t, "Could not extract snippet ID (number) from XML data.", payload.Error)
}
