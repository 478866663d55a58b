package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"

	"github.com/tailot/taylored-orchestrator/pkg/events"
	"github.com/tailot/taylored-orchestrator/pkg/log"
)

// handleConn owns one accepted connection end to end: a writer
// goroutine draining a dedicated broker subscription, and a reader
// goroutine dispatching inbound events, each request running in its
// own goroutine so interleaved snippet executions and filesystem
// requests never block one another on the shared connection.
func (a *Agent) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		writeLoop(conn, broker.Subscribe())
	}()

	a.readLoop(connCtx, conn, broker)
	cancel()
	broker.Stop()
	wg.Wait()
}

func writeLoop(conn net.Conn, sub events.Subscriber) {
	enc := json.NewEncoder(conn)
	for event := range sub {
		if err := enc.Encode(outboundEnvelope{Event: string(event.Name), Payload: event.Payload}); err != nil {
			return
		}
	}
}

func (a *Agent) readLoop(ctx context.Context, conn net.Conn, broker *events.Broker) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)

	var wg sync.WaitGroup
	defer wg.Wait()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var envelope inboundEnvelope
		if err := json.Unmarshal(line, &envelope); err != nil {
			log.Warn("discarding malformed event channel frame")
			continue
		}

		switch envelope.Event {
		case "tayloredRun":
			var payload tayloredRunPayload
			if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
				publishRunError(broker, nil, "Execution failed: malformed tayloredRun payload")
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				a.executeSnippet(ctx, broker, payload.Body)
			}()
		case "listDirectory":
			var payload listDirectoryPayload
			_ = json.Unmarshal(envelope.Payload, &payload)
			wg.Add(1)
			go func() {
				defer wg.Done()
				a.listDirectory(broker, payload.Path)
			}()
		case "downloadFile":
			var payload downloadFilePayload
			if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
				publishRunError(broker, nil, "Execution failed: malformed downloadFile payload")
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				a.downloadFile(broker, payload.Path)
			}()
		case "disconnect":
			return
		default:
			log.Warn("discarding unrecognized event channel event name")
		}
	}
}

func publishRunError(broker *events.Broker, id *int, message string) {
	broker.Publish(&events.Event{
		Name:    events.TayloredRunError,
		Payload: tayloredRunErrorPayload{ID: id, Error: message},
	})
}
