// Package store implements the persistence collaborators: PostgreSQL
// repositories for jobs, candidates and conversations, and the Redis
// key-value store for short codes and message de-duplication.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"screening-engine/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("NOT_FOUND")

// JobRepository reads job records. Jobs are created by the management
// layer and are read-only here.
type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// FindByID loads a job together with its owning organization's name.
func (r *JobRepository) FindByID(ctx context.Context, id string) (*models.Job, error) {
	query := `
		SELECT j.id, j.org_id, o.name, j.title, j.description,
		       j.essential_criteria, j.nice_to_have_criteria, j.created_at
		FROM jobs j
		JOIN organizations o ON o.id = j.org_id
		WHERE j.id = $1`

	var job models.Job
	var essential, niceToHave []byte

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&job.ID, &job.OrgID, &job.OrgName, &job.Title, &job.Description,
		&essential, &niceToHave, &job.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find job %s: %w", id, err)
	}

	if err := json.Unmarshal(essential, &job.EssentialCriteria); err != nil {
		return nil, fmt.Errorf("decode essential criteria for job %s: %w", id, err)
	}
	if err := json.Unmarshal(niceToHave, &job.NiceToHaveCriteria); err != nil {
		return nil, fmt.Errorf("decode nice-to-have criteria for job %s: %w", id, err)
	}

	return &job, nil
}
