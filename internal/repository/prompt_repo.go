package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"devchat/internal/domain"
)

type PromptRepository interface {
	CreatePair(ctx context.Context, userPrompt, assistantPrompt domain.Prompt) error
	ListByConversation(ctx context.Context, conversationID string) ([]domain.Prompt, error)
	ListRecentByUser(ctx context.Context, userID string, since time.Time) ([]domain.Prompt, error)
	ListForConversation(ctx context.Context, conversationID string) ([]domain.Prompt, error)
}

type PgPromptRepository struct {
	pool *pgxpool.Pool
}

func NewPgPromptRepository(pool *pgxpool.Pool) *PgPromptRepository {
	return &PgPromptRepository{pool: pool}
}

// CreatePair inserta los mensajes user y assistant de un turno en una sola
// transacción: o quedan los dos o no queda ninguno.
func (r *PgPromptRepository) CreatePair(ctx context.Context, userPrompt, assistantPrompt domain.Prompt) error {
	const query = `
		INSERT INTO prompts (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, p := range []domain.Prompt{userPrompt, assistantPrompt} {
		if _, err := tx.Exec(ctx, query,
			p.ID,
			p.ConversationID,
			p.Role,
			p.Content,
			p.CreatedAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ListByConversation devuelve el transcript, el mensaje más reciente primero.
func (r *PgPromptRepository) ListByConversation(ctx context.Context, conversationID string) ([]domain.Prompt, error) {
	const query = `
		SELECT role, content
		FROM prompts
		WHERE conversation_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prompts []domain.Prompt
	for rows.Next() {
		var p domain.Prompt
		if err := rows.Scan(&p.Role, &p.Content); err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return prompts, nil
}

// ListRecentByUser devuelve los mensajes del usuario creados desde `since`,
// el más reciente primero, con su conversation_id para agrupar.
func (r *PgPromptRepository) ListRecentByUser(ctx context.Context, userID string, since time.Time) ([]domain.Prompt, error) {
	const query = `
		SELECT p.id, p.conversation_id, p.role, p.content, p.created_at
		FROM prompts p
		JOIN conversations c ON c.id = p.conversation_id
		WHERE c.user_id = $1 AND p.created_at >= $2
		ORDER BY p.created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prompts []domain.Prompt
	for rows.Next() {
		var p domain.Prompt
		err = rows.Scan(
			&p.ID,
			&p.ConversationID,
			&p.Role,
			&p.Content,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return prompts, nil
}

// ListForConversation devuelve los prompts de una conversación en el orden
// en que el store los entrega; no se garantiza orden cronológico.
func (r *PgPromptRepository) ListForConversation(ctx context.Context, conversationID string) ([]domain.Prompt, error) {
	const query = `
		SELECT role, content, created_at
		FROM prompts
		WHERE conversation_id = $1
	`
	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prompts []domain.Prompt
	for rows.Next() {
		var p domain.Prompt
		if err := rows.Scan(&p.Role, &p.Content, &p.CreatedAt); err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return prompts, nil
}
