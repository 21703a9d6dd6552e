package domain

import (
	"strings"
	"time"
)

// AttachmentPlaceholder is the conversation summary used when a message
// carries an image and no text.
const AttachmentPlaceholder = "Image sent"

// Message is one unit of communication inside a conversation.
//
// ID is assigned by the store on insert. During the optimistic window the
// client fills in a temporary id and sets Pending; the temporary entry is
// replaced with the authoritative row as soon as the insert resolves.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Text           string     `json:"text"`
	AttachmentURL  string     `json:"attachment_url,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
	Edited         bool       `json:"edited"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`

	// Pending is client-only state, never persisted.
	Pending bool `json:"-"`
}

// Summary returns the text shown in a conversation's last-message line.
func (m *Message) Summary() string {
	if strings.TrimSpace(m.Text) == "" && m.AttachmentURL != "" {
		return AttachmentPlaceholder
	}
	return m.Text
}
