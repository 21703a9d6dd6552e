// Package postgres contains pgx-backed implementations of the store
// interfaces, targeting the chats and messages tables of a Supabase-style
// Postgres schema.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/whisperwave/whisperwave/internal/database"
	"github.com/whisperwave/whisperwave/internal/domain"
)

type ConversationRepo struct {
	pool database.PgxPool
}

func NewConversationRepo(pool database.PgxPool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

// Upsert creates the conversation row if absent. For an existing row only
// the summary fields are refreshed; participants and created_at stay as
// written by the first upsert.
func (r *ConversationRepo) Upsert(ctx context.Context, conv *domain.Conversation) error {
	u1, u2 := conv.Participants[0], conv.Participants[1]
	if u1 > u2 {
		u1, u2 = u2, u1
	}

	query := `
		INSERT INTO chats (id, user1_id, user2_id, last_message, last_message_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET last_message = EXCLUDED.last_message,
			last_message_at = EXCLUDED.last_message_at`
	_, err := r.pool.Exec(ctx, query,
		conv.ID, u1, u2, conv.LastMessage, conv.LastMessageAt, conv.CreatedAt,
	)
	return err
}

func (r *ConversationRepo) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	query := `
		SELECT id, user1_id, user2_id, last_message, last_message_at, created_at
		FROM chats
		WHERE id = $1`
	var conv domain.Conversation
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&conv.ID, &conv.Participants[0], &conv.Participants[1],
		&conv.LastMessage, &conv.LastMessageAt, &conv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepo) UpdateSummary(ctx context.Context, id, lastMessage string, at *time.Time) error {
	query := `UPDATE chats SET last_message = $1, last_message_at = $2 WHERE id = $3`
	_, err := r.pool.Exec(ctx, query, lastMessage, at, id)
	return err
}

func (r *ConversationRepo) ListByParticipant(ctx context.Context, participantID string) ([]domain.Conversation, error) {
	query := `
		SELECT id, user1_id, user2_id, last_message, last_message_at, created_at
		FROM chats
		WHERE user1_id = $1 OR user2_id = $1
		ORDER BY last_message_at DESC NULLS LAST`

	rows, err := r.pool.Query(ctx, query, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		if err := rows.Scan(
			&conv.ID, &conv.Participants[0], &conv.Participants[1],
			&conv.LastMessage, &conv.LastMessageAt, &conv.CreatedAt,
		); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}
