package domain

// Event types delivered by the realtime feed, mirroring the row-level
// change kinds of the backing store.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// ChangeEvent is one row-level change for a subscribed record set.
// For DELETE events only Record.ID is guaranteed to be populated.
type ChangeEvent struct {
	Type   string  `json:"type"`
	Record Message `json:"record"`
}

// ConversationEvent is one row-level change on the conversations set,
// driving the inbox projection.
type ConversationEvent struct {
	Type   string       `json:"type"`
	Record Conversation `json:"record"`
}
