// Package credentials resolves the provider and model API credentials to
// use for one organization, falling back to the process-wide defaults.
// There is no magic fallback sentinel: an organization either has its own
// complete provider configuration or the injected defaults are used.
package credentials

import (
	"context"
	"errors"
	"fmt"

	"screening-engine/internal/store"
)

// Credentials is the resolved set used for one unit of work.
type Credentials struct {
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWhatsAppNumber string
	GenAIAPIKey          string
	AWSRegion            string
	AWSAccessKeyID       string
	AWSSecretAccessKey   string
	S3Bucket             string
}

// Defaults is the statically injected process-wide credential set.
type Defaults struct {
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWhatsAppNumber string
	GenAIAPIKey          string
	AWSRegion            string
	AWSAccessKeyID       string
	AWSSecretAccessKey   string
	S3Bucket             string
}

// ConfigReader loads an organization's stored integration settings.
type ConfigReader interface {
	FindByOrgID(ctx context.Context, orgID string) (*store.OrgAPIConfig, error)
}

// Decrypter reverses vault encryption on stored secret values.
type Decrypter interface {
	Decrypt(value string) (string, error)
}

type Resolver struct {
	configs  ConfigReader
	vault    Decrypter
	defaults Defaults
}

func NewResolver(configs ConfigReader, vault Decrypter, defaults Defaults) *Resolver {
	return &Resolver{configs: configs, vault: vault, defaults: defaults}
}

// Resolve returns the credentials for an organization. Fields the
// organization configured override the defaults individually; the
// provider triple (sid, token, number) is only overridden as a whole so a
// half-configured organization cannot mix accounts.
func (r *Resolver) Resolve(ctx context.Context, orgID string) (*Credentials, error) {
	resolved := &Credentials{
		TwilioAccountSID:     r.defaults.TwilioAccountSID,
		TwilioAuthToken:      r.defaults.TwilioAuthToken,
		TwilioWhatsAppNumber: r.defaults.TwilioWhatsAppNumber,
		GenAIAPIKey:          r.defaults.GenAIAPIKey,
		AWSRegion:            r.defaults.AWSRegion,
		AWSAccessKeyID:       r.defaults.AWSAccessKeyID,
		AWSSecretAccessKey:   r.defaults.AWSSecretAccessKey,
		S3Bucket:             r.defaults.S3Bucket,
	}

	cfg, err := r.configs.FindByOrgID(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return resolved, nil
		}
		return nil, fmt.Errorf("resolve credentials for org %s: %w", orgID, err)
	}

	sid, err := r.decryptOptional(cfg.TwilioAccountSID)
	if err != nil {
		return nil, err
	}
	token, err := r.decryptOptional(cfg.TwilioAuthToken)
	if err != nil {
		return nil, err
	}
	if sid != "" && token != "" {
		resolved.TwilioAccountSID = sid
		resolved.TwilioAuthToken = token
		if cfg.TwilioWhatsAppNumber != nil && *cfg.TwilioWhatsAppNumber != "" {
			resolved.TwilioWhatsAppNumber = *cfg.TwilioWhatsAppNumber
		}
	}

	if apiKey, err := r.decryptOptional(cfg.GenAIAPIKey); err != nil {
		return nil, err
	} else if apiKey != "" {
		resolved.GenAIAPIKey = apiKey
	}

	accessKey, err := r.decryptOptional(cfg.AWSAccessKeyID)
	if err != nil {
		return nil, err
	}
	secretKey, err := r.decryptOptional(cfg.AWSSecretAccessKey)
	if err != nil {
		return nil, err
	}
	if accessKey != "" && secretKey != "" {
		resolved.AWSAccessKeyID = accessKey
		resolved.AWSSecretAccessKey = secretKey
		if cfg.AWSRegion != nil && *cfg.AWSRegion != "" {
			resolved.AWSRegion = *cfg.AWSRegion
		}
		if cfg.S3Bucket != nil && *cfg.S3Bucket != "" {
			resolved.S3Bucket = *cfg.S3Bucket
		}
	}

	return resolved, nil
}

func (r *Resolver) decryptOptional(value *string) (string, error) {
	if value == nil || *value == "" {
		return "", nil
	}
	plaintext, err := r.vault.Decrypt(*value)
	if err != nil {
		return "", fmt.Errorf("decrypt stored credential: %w", err)
	}
	return plaintext, nil
}
