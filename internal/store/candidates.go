// internal/store/candidates.go
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

// CandidateRepository persists candidate screening records.
type CandidateRepository struct {
	db *sql.DB
}

func NewCandidateRepository(db *sql.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

const candidateColumns = `id, job_id, encrypted_phone, phone_hash, name, email,
	cv_data, cv_url, score, score_details, summary, status, created_at, updated_at`

// Upsert finds or creates the candidate for (jobID, phoneHash) in a single
// atomic statement, so concurrent first-contact deliveries cannot create
// duplicates. The no-op DO UPDATE makes RETURNING yield the existing row.
func (r *CandidateRepository) Upsert(ctx context.Context, jobID, encryptedPhone, phoneHash string) (*models.Candidate, error) {
	query := `
		INSERT INTO candidates (id, job_id, encrypted_phone, phone_hash, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (job_id, phone_hash)
		DO UPDATE SET phone_hash = EXCLUDED.phone_hash
		RETURNING ` + candidateColumns

	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, query,
		uuid.NewString(), jobID, encryptedPhone, phoneHash, models.StatusInProgress, now,
	)
	return scanCandidate(row)
}

// FindByID loads one candidate.
func (r *CandidateRepository) FindByID(ctx context.Context, id string) (*models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE id = $1`
	return scanCandidate(r.db.QueryRowContext(ctx, query, id))
}

// FindOpenByPhoneHash returns the most recently created candidate for the
// given phone hash whose conversation has no completion timestamp. This is
// the router's phone path for mid-interview messages that carry no code.
func (r *CandidateRepository) FindOpenByPhoneHash(ctx context.Context, phoneHash string) (*models.Candidate, error) {
	query := `
		SELECT c.id, c.job_id, c.encrypted_phone, c.phone_hash, c.name, c.email,
		       c.cv_data, c.cv_url, c.score, c.score_details, c.summary, c.status,
		       c.created_at, c.updated_at
		FROM candidates c
		JOIN conversations conv ON conv.candidate_id = c.id
		WHERE c.phone_hash = $1 AND conv.completed_at IS NULL
		ORDER BY c.created_at DESC
		LIMIT 1`

	return scanCandidate(r.db.QueryRowContext(ctx, query, phoneHash))
}

// UpdateContact persists progressively captured name/email fields.
func (r *CandidateRepository) UpdateContact(ctx context.Context, id string, name, email *string) error {
	query := `
		UPDATE candidates
		SET name = COALESCE($2, name), email = COALESCE($3, email), updated_at = $4
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id, name, email, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update contact for candidate %s: %w", id, err)
	}
	return nil
}

// UpdateResume stores the structured résumé and the best-effort archive
// URL, backfilling name/email from the résumé when still unknown.
func (r *CandidateRepository) UpdateResume(ctx context.Context, id string, cv *models.ParsedCV, cvURL *string) error {
	cvData, err := json.Marshal(cv)
	if err != nil {
		return fmt.Errorf("encode résumé for candidate %s: %w", id, err)
	}

	query := `
		UPDATE candidates
		SET cv_data = $2,
		    cv_url = COALESCE($3, cv_url),
		    name = COALESCE(name, $4),
		    email = COALESCE(email, $5),
		    updated_at = $6
		WHERE id = $1`

	var name, email *string
	if cv != nil {
		name = cv.Name
		email = cv.Email
	}

	_, err = r.db.ExecContext(ctx, query, id, cvData, cvURL, name, email, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update résumé for candidate %s: %w", id, err)
	}
	return nil
}

// UpdateScore persists the finalization output and marks the candidate
// COMPLETED.
func (r *CandidateRepository) UpdateScore(ctx context.Context, id string, score float64, details []models.ScoreDetail, summary string) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode score details for candidate %s: %w", id, err)
	}

	query := `
		UPDATE candidates
		SET score = $2, score_details = $3, summary = $4, status = $5, updated_at = $6
		WHERE id = $1`

	_, err = r.db.ExecContext(ctx, query, id, score, detailsJSON, summary, models.StatusCompleted, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update score for candidate %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCandidate(row rowScanner) (*models.Candidate, error) {
	var c models.Candidate
	var cvData, scoreDetails []byte

	err := row.Scan(
		&c.ID, &c.JobID, &c.EncryptedPhone, &c.PhoneHash, &c.Name, &c.Email,
		&cvData, &c.CVURL, &c.Score, &scoreDetails, &c.Summary, &c.Status,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan candidate: %w", err)
	}

	if len(cvData) > 0 {
		if err := json.Unmarshal(cvData, &c.CVData); err != nil {
			return nil, fmt.Errorf("decode résumé for candidate %s: %w", c.ID, err)
		}
	}
	if len(scoreDetails) > 0 {
		if err := json.Unmarshal(scoreDetails, &c.ScoreDetails); err != nil {
			return nil, fmt.Errorf("decode score details for candidate %s: %w", c.ID, err)
		}
	}

	return &c, nil
}
