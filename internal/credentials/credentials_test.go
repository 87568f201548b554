// internal/credentials/credentials_test.go
package credentials

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screening-engine/internal/store"
)

// ==========================
// Test Helper Functions
// ==========================

type stubConfigs struct {
	cfg *store.OrgAPIConfig
	err error
}

func (s *stubConfigs) FindByOrgID(_ context.Context, _ string) (*store.OrgAPIConfig, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.cfg, nil
}

// passthroughVault "decrypts" by stripping a marker prefix, so tests can
// tell decrypted values from stored ones.
type passthroughVault struct{}

func (passthroughVault) Decrypt(value string) (string, error) {
	return "dec:" + value, nil
}

func strPtr(s string) *string { return &s }

func testDefaults() Defaults {
	return Defaults{
		TwilioAccountSID:     "default-sid",
		TwilioAuthToken:      "default-token",
		TwilioWhatsAppNumber: "whatsapp:+100000",
		GenAIAPIKey:          "default-genai",
		AWSRegion:            "eu-west-1",
		AWSAccessKeyID:       "default-access",
		AWSSecretAccessKey:   "default-secret",
		S3Bucket:             "default-bucket",
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestResolver_Resolve_NoOrgConfig(t *testing.T) {
	r := NewResolver(&stubConfigs{err: store.ErrNotFound}, passthroughVault{}, testDefaults())

	creds, err := r.Resolve(context.Background(), "org-1")
	require.NoError(t, err)

	assert.Equal(t, "default-sid", creds.TwilioAccountSID)
	assert.Equal(t, "default-genai", creds.GenAIAPIKey)
	assert.Equal(t, "default-bucket", creds.S3Bucket)
}

func TestResolver_Resolve_FullOverride(t *testing.T) {
	r := NewResolver(&stubConfigs{cfg: &store.OrgAPIConfig{
		OrgID:                "org-1",
		TwilioAccountSID:     strPtr("org-sid"),
		TwilioAuthToken:      strPtr("org-token"),
		TwilioWhatsAppNumber: strPtr("whatsapp:+200000"),
		GenAIAPIKey:          strPtr("org-genai"),
	}}, passthroughVault{}, testDefaults())

	creds, err := r.Resolve(context.Background(), "org-1")
	require.NoError(t, err)

	assert.Equal(t, "dec:org-sid", creds.TwilioAccountSID)
	assert.Equal(t, "dec:org-token", creds.TwilioAuthToken)
	assert.Equal(t, "whatsapp:+200000", creds.TwilioWhatsAppNumber)
	assert.Equal(t, "dec:org-genai", creds.GenAIAPIKey)
	// AWS untouched, falls back.
	assert.Equal(t, "default-access", creds.AWSAccessKeyID)
}

func TestResolver_Resolve_PartialProviderConfigIgnored(t *testing.T) {
	// SID without token must not mix the org account with the default
	// auth token.
	r := NewResolver(&stubConfigs{cfg: &store.OrgAPIConfig{
		OrgID:            "org-1",
		TwilioAccountSID: strPtr("org-sid"),
	}}, passthroughVault{}, testDefaults())

	creds, err := r.Resolve(context.Background(), "org-1")
	require.NoError(t, err)

	assert.Equal(t, "default-sid", creds.TwilioAccountSID)
	assert.Equal(t, "default-token", creds.TwilioAuthToken)
}
