// Package ingest downloads an attached résumé, extracts its text, runs
// structured extraction, and archives the original document best-effort.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	commonaws "screening-engine/internal/common/aws"
	"screening-engine/internal/common/logger"
	"screening-engine/internal/credentials"
	"screening-engine/internal/models"
)

// Generator is the slice of the model client used for structured
// extraction.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Pipeline runs the full fetch, extract, parse, archive sequence.
type Pipeline struct {
	httpClient HTTPDoer
	logger     logger.Logger
}

func NewPipeline(httpClient HTTPDoer, log logger.Logger) *Pipeline {
	return &Pipeline{httpClient: httpClient, logger: log}
}

// Result is a successful ingestion. ArchiveURL is nil when the
// best-effort upload failed or no bucket is configured.
type Result struct {
	CV         *models.ParsedCV
	ArchiveURL *string
}

// Run executes the pipeline. Only structured extraction is mandatory for
// success; archival failures are logged and swallowed.
func (p *Pipeline) Run(ctx context.Context, gen Generator, creds *credentials.Credentials, candidateID, mediaURL, contentType string) (*Result, error) {
	data, err := Fetch(ctx, p.httpClient, mediaURL, creds.TwilioAccountSID, creds.TwilioAuthToken)
	if err != nil {
		return nil, err
	}

	text, err := ExtractText(data, contentType)
	if err != nil {
		return nil, err
	}

	cv, err := ParseResume(ctx, gen, text)
	if err != nil {
		return nil, err
	}

	archiveURL := p.archive(ctx, creds, candidateID, contentType, data)

	return &Result{CV: cv, ArchiveURL: archiveURL}, nil
}

// archive uploads the original document. Failures never surface to the
// candidate or block the pipeline.
func (p *Pipeline) archive(ctx context.Context, creds *credentials.Credentials, candidateID, contentType string, data []byte) *string {
	if creds.S3Bucket == "" {
		return nil
	}

	key := fmt.Sprintf("resumes/%s/%s%s", candidateID, uuid.NewString(), extensionFor(contentType))

	client, err := commonaws.NewS3Client(ctx, creds.AWSRegion, creds.AWSAccessKeyID, creds.AWSSecretAccessKey)
	if err != nil {
		p.logger.WithError(err).Warn("resume archival skipped", map[string]interface{}{
			"candidate_id": candidateID,
		})
		return nil
	}

	uploadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := client.PutObject(uploadCtx, creds.S3Bucket, key, contentType, data); err != nil {
		p.logger.WithError(err).Warn("resume archival failed", map[string]interface{}{
			"candidate_id": candidateID,
			"key":          key,
		})
		return nil
	}

	url := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", creds.S3Bucket, creds.AWSRegion, key)
	return &url
}

func extensionFor(contentType string) string {
	switch normalizeContentType(contentType) {
	case "application/pdf":
		return ".pdf"
	case "application/msword":
		return ".doc"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return ".docx"
	default:
		return ""
	}
}
