// internal/store/apiconfig.go
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// OrgAPIConfig holds the encrypted per-organization integration settings
// as stored. All secret columns hold vault ciphertext; the credentials
// resolver decrypts them.
type OrgAPIConfig struct {
	OrgID                string
	TwilioAccountSID     *string
	TwilioAuthToken      *string
	TwilioWhatsAppNumber *string
	GenAIAPIKey          *string
	AWSAccessKeyID       *string
	AWSSecretAccessKey   *string
	AWSRegion            *string
	S3Bucket             *string
}

// APIConfigRepository reads per-organization integration settings.
type APIConfigRepository struct {
	db *sql.DB
}

func NewAPIConfigRepository(db *sql.DB) *APIConfigRepository {
	return &APIConfigRepository{db: db}
}

// FindByOrgID loads the organization's settings row, or ErrNotFound when
// the organization has never configured its own integrations.
func (r *APIConfigRepository) FindByOrgID(ctx context.Context, orgID string) (*OrgAPIConfig, error) {
	query := `
		SELECT org_id, twilio_account_sid, twilio_auth_token, twilio_whatsapp_number,
		       genai_api_key, aws_access_key_id, aws_secret_access_key, aws_region, s3_bucket
		FROM api_configurations
		WHERE org_id = $1`

	var cfg OrgAPIConfig
	err := r.db.QueryRowContext(ctx, query, orgID).Scan(
		&cfg.OrgID, &cfg.TwilioAccountSID, &cfg.TwilioAuthToken, &cfg.TwilioWhatsAppNumber,
		&cfg.GenAIAPIKey, &cfg.AWSAccessKeyID, &cfg.AWSSecretAccessKey, &cfg.AWSRegion, &cfg.S3Bucket,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find api configuration for org %s: %w", orgID, err)
	}

	return &cfg, nil
}
