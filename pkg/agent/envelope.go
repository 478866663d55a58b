package agent

import "encoding/json"

// inboundEnvelope is the newline-delimited JSON frame a client sends:
// one event name plus its raw payload, dispatched by name.
type inboundEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// outboundEnvelope is the newline-delimited JSON frame the agent writes
// back for every events.Event the connection's writer goroutine drains
// off its broker subscription.
type outboundEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

type tayloredRunPayload struct {
	Body string `json:"body"`
}

type listDirectoryPayload struct {
	Path string `json:"path"`
}

type downloadFilePayload struct {
	Path string `json:"path"`
}

type tayloredOutputPayload struct {
	ID     int    `json:"id"`
	Output string `json:"output"`
}

type tayloredErrorPayload struct {
	ID    int    `json:"id"`
	Error string `json:"error"`
}

type tayloredRunErrorPayload struct {
	ID    *int   `json:"id,omitempty"`
	Error string `json:"error"`
}

type directoryListingPayload struct {
	Path  string                `json:"path"`
	Files []directoryEntryWire  `json:"files"`
}

type directoryEntryWire struct {
	Name        string `json:"name"`
	IsDirectory bool   `json:"isDirectory"`
}

type fileContentPayload struct {
	Path    string `json:"path"`
	Content []byte `json:"content"`
}
