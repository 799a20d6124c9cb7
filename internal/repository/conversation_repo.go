package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"devchat/internal/domain"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation domain.Conversation) error
	ListByUser(ctx context.Context, userID string) ([]domain.Conversation, error)
}

type PgConversationRepository struct {
	pool *pgxpool.Pool
}

func NewPgConversationRepository(pool *pgxpool.Pool) *PgConversationRepository {
	return &PgConversationRepository{pool: pool}
}

func (r *PgConversationRepository) Create(ctx context.Context, conversation domain.Conversation) error {
	const query = `
		INSERT INTO conversations (id, user_id, user_input, image_urls, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	imageURLs := conversation.ImageURLs
	if imageURLs == nil {
		imageURLs = []string{}
	}
	_, err := r.pool.Exec(ctx, query,
		conversation.ID,
		conversation.UserID,
		conversation.UserInput,
		imageURLs,
		conversation.CreatedAt,
	)
	return err
}

// ListByUser devuelve las conversaciones del usuario, la más reciente primero.
func (r *PgConversationRepository) ListByUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	const query = `
		SELECT id, user_id, user_input, image_urls, created_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		err = rows.Scan(
			&conv.ID,
			&conv.UserID,
			&conv.UserInput,
			&conv.ImageURLs,
			&conv.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return conversations, nil
}
