package repository

import (
	"context"
	"time"

	"github.com/whisperwave/whisperwave/internal/domain"
)

// ConversationStore persists conversation rows. Lookups return (nil, nil)
// when the row does not exist.
type ConversationStore interface {
	// Upsert creates the conversation if absent and refreshes its summary
	// fields if it already exists. Participants and created_at are never
	// overwritten for an existing row.
	Upsert(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	// UpdateSummary sets the last-message line and its timestamp. A nil
	// timestamp clears both (conversation has no messages left).
	UpdateSummary(ctx context.Context, id, lastMessage string, at *time.Time) error
	ListByParticipant(ctx context.Context, participantID string) ([]domain.Conversation, error)
}

// MessageStore persists message rows. The store assigns the authoritative
// id and timestamp on insert.
type MessageStore interface {
	Insert(ctx context.Context, msg *domain.Message) (*domain.Message, error)
	Update(ctx context.Context, id, text string, editedAt time.Time) error
	Delete(ctx context.Context, id string) error
	// List returns all messages of a conversation ordered by timestamp ascending.
	List(ctx context.Context, conversationID string) ([]domain.Message, error)
	// Latest returns the chronologically last message, or (nil, nil) when
	// the conversation is empty.
	Latest(ctx context.Context, conversationID string) (*domain.Message, error)
}

// Subscription is a live realtime feed. Cancel stops delivery and releases
// the underlying channel; it is safe to call more than once.
type Subscription interface {
	Cancel()
}

// Realtime delivers row-level change events for a filtered record set.
type Realtime interface {
	SubscribeMessages(ctx context.Context, conversationID string, fn func(domain.ChangeEvent)) (Subscription, error)
	SubscribeConversations(ctx context.Context, participantID string, fn func(domain.ConversationEvent)) (Subscription, error)
}

// BlobStore uploads attachment bytes and resolves a durable URL.
// onProgress, when non-nil, receives monotonically non-decreasing
// percentages from 0 to 100.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte, onProgress func(percent int)) (string, error)
}
