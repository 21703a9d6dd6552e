package ws

import "encoding/json"

// Frame types exchanged with the realtime endpoint.
const (
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	frameChange      = "change"
	frameError       = "error"
)

// frame is the base envelope for all realtime messages.
type frame struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Table   string          `json:"table,omitempty"`
	Filter  string          `json:"filter,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// changePayload carries one row-level change. Record holds the full row
// for INSERT/UPDATE; for DELETE only the primary key is present.
type changePayload struct {
	Type   string          `json:"type"`
	Record json.RawMessage `json:"record"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
