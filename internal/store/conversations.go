// internal/store/conversations.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"screening-engine/internal/models"
)

// ConversationRepository persists the 1:1 transcript record per candidate.
type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// FindOrCreate loads the candidate's conversation, creating an empty one
// at step intro when none exists yet. The unique constraint on
// candidate_id keeps this atomic under duplicate delivery.
func (r *ConversationRepository) FindOrCreate(ctx context.Context, candidateID string) (*models.Conversation, error) {
	query := `
		INSERT INTO conversations (id, candidate_id, messages, current_step, created_at)
		VALUES ($1, $2, '[]'::jsonb, $3, $4)
		ON CONFLICT (candidate_id)
		DO UPDATE SET candidate_id = EXCLUDED.candidate_id
		RETURNING id, candidate_id, messages, current_step, completed_at, created_at`

	row := r.db.QueryRowContext(ctx, query,
		uuid.NewString(), candidateID, models.StepIntro, time.Now().UTC(),
	)
	return scanConversation(row)
}

// FindByCandidateID loads the conversation for one candidate.
func (r *ConversationRepository) FindByCandidateID(ctx context.Context, candidateID string) (*models.Conversation, error) {
	query := `
		SELECT id, candidate_id, messages, current_step, completed_at, created_at
		FROM conversations
		WHERE candidate_id = $1`

	return scanConversation(r.db.QueryRowContext(ctx, query, candidateID))
}

// UpdateTranscript writes the full transcript, the current step, and the
// completion timestamp. COALESCE keeps an already-set completion timestamp
// stable under duplicate delivery.
func (r *ConversationRepository) UpdateTranscript(ctx context.Context, id string, messages []models.Message, step models.Step, completedAt *time.Time) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode transcript for conversation %s: %w", id, err)
	}

	query := `
		UPDATE conversations
		SET messages = $2, current_step = $3, completed_at = COALESCE(completed_at, $4)
		WHERE id = $1`

	_, err = r.db.ExecContext(ctx, query, id, payload, step, completedAt)
	if err != nil {
		return fmt.Errorf("update transcript for conversation %s: %w", id, err)
	}
	return nil
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var c models.Conversation
	var messages []byte

	err := row.Scan(&c.ID, &c.CandidateID, &messages, &c.CurrentStep, &c.CompletedAt, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}

	if len(messages) > 0 {
		if err := json.Unmarshal(messages, &c.Messages); err != nil {
			return nil, fmt.Errorf("decode transcript for conversation %s: %w", c.ID, err)
		}
	}

	return &c, nil
}
