package domain

import "time"

// Conversation is the 1:1 container for the message history between two
// participants. The id is derived deterministically from the participant
// pair (see convid), so either side resolves the same conversation.
type Conversation struct {
	ID            string     `json:"id"`
	Participants  [2]string  `json:"participants"`
	LastMessage   string     `json:"last_message"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// HasParticipant reports whether id is one of the two conversation members.
func (c *Conversation) HasParticipant(id string) bool {
	return c.Participants[0] == id || c.Participants[1] == id
}

// Other returns the participant that is not me. Falls back to the first
// participant when me is not a member at all.
func (c *Conversation) Other(me string) string {
	if c.Participants[0] == me {
		return c.Participants[1]
	}
	if c.Participants[1] == me {
		return c.Participants[0]
	}
	return c.Participants[0]
}
