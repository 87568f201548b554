// internal/store/codes.go
package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	codeKeyPrefix  = "job:"
	codeTTL        = 90 * 24 * time.Hour
	codeAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength     = 6
	dedupKeyPrefix = "wamid:"
	dedupTTL       = 24 * time.Hour
)

// CodeStore holds the ephemeral short-code to job mapping and the inbound
// message de-duplication set.
type CodeStore struct {
	client *redis.Client
}

func NewCodeStore(client *redis.Client) *CodeStore {
	return &CodeStore{client: client}
}

// ResolveJob returns the job id mapped to a short code, or ErrNotFound.
// Codes are consumed read-only; resolving never invalidates them.
func (s *CodeStore) ResolveJob(ctx context.Context, code string) (string, error) {
	jobID, err := s.client.Get(ctx, codeKeyPrefix+strings.ToUpper(code)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve code %s: %w", code, err)
	}
	return jobID, nil
}

// RegisterJob generates a fresh short code for a job and stores the
// mapping with a 90-day TTL. A job may be re-coded repeatedly; old codes
// stay valid until their TTL expires.
func (s *CodeStore) RegisterJob(ctx context.Context, jobID string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}

	if err := s.client.Set(ctx, codeKeyPrefix+code, jobID, codeTTL).Err(); err != nil {
		return "", fmt.Errorf("register code for job %s: %w", jobID, err)
	}
	return code, nil
}

// MarkMessageProcessed records a provider message id and reports whether
// this is the first time it was seen. Redelivered webhooks return false.
func (s *CodeStore) MarkMessageProcessed(ctx context.Context, messageSID string) (bool, error) {
	if messageSID == "" {
		// No id to de-duplicate on; treat as first delivery.
		return true, nil
	}

	first, err := s.client.SetNX(ctx, dedupKeyPrefix+messageSID, "1", dedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("dedup message %s: %w", messageSID, err)
	}
	return first, nil
}

// WhatsAppLink builds the click-to-chat URL that pre-fills the short code
// as the candidate's first message.
func WhatsAppLink(whatsappNumber, code string) string {
	number := strings.TrimPrefix(strings.TrimPrefix(whatsappNumber, "whatsapp:"), "+")
	text := url.QueryEscape(fmt.Sprintf("CODE-%s", strings.ToUpper(code)))
	return fmt.Sprintf("https://wa.me/%s?text=%s", number, text)
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	code := make([]byte, codeLength)
	for i, b := range buf {
		code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(code), nil
}
