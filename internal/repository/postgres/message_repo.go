package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/whisperwave/whisperwave/internal/database"
	"github.com/whisperwave/whisperwave/internal/domain"
)

type MessageRepo struct {
	pool database.PgxPool
}

func NewMessageRepo(pool database.PgxPool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

// Insert persists a new message. The database assigns the id and the
// authoritative timestamp; the returned copy carries both.
func (r *MessageRepo) Insert(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	query := `
		INSERT INTO messages (chat_id, sender_id, text, attachment_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	stored := *msg
	err := r.pool.QueryRow(ctx, query,
		msg.ConversationID, msg.SenderID, msg.Text, msg.AttachmentURL,
	).Scan(&stored.ID, &stored.Timestamp)
	if err != nil {
		return nil, err
	}
	stored.Pending = false
	return &stored, nil
}

func (r *MessageRepo) Update(ctx context.Context, id, text string, editedAt time.Time) error {
	query := `UPDATE messages SET text = $1, edited = true, edited_at = $2 WHERE id = $3`
	_, err := r.pool.Exec(ctx, query, text, editedAt, id)
	return err
}

func (r *MessageRepo) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	return err
}

func (r *MessageRepo) List(ctx context.Context, conversationID string) ([]domain.Message, error) {
	query := `
		SELECT id, chat_id, sender_id, text, attachment_url, created_at, edited, edited_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Text,
			&msg.AttachmentURL, &msg.Timestamp, &msg.Edited, &msg.EditedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *MessageRepo) Latest(ctx context.Context, conversationID string) (*domain.Message, error) {
	query := `
		SELECT id, chat_id, sender_id, text, attachment_url, created_at, edited, edited_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at DESC
		LIMIT 1`
	var msg domain.Message
	err := r.pool.QueryRow(ctx, query, conversationID).Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Text,
		&msg.AttachmentURL, &msg.Timestamp, &msg.Edited, &msg.EditedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
