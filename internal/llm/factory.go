// internal/llm/factory.go
package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Factory builds generators on demand and caches them per API key, so
// organizations sharing a key share one client.
type Factory struct {
	model string

	mu    sync.Mutex
	cache map[string]*Generator
}

func NewFactory(model string) *Factory {
	return &Factory{model: model, cache: make(map[string]*Generator)}
}

// ForAPIKey returns the cached generator for this key, building it on
// first use.
func (f *Factory) ForAPIKey(ctx context.Context, apiKey string) (*Generator, error) {
	sum := sha256.Sum256([]byte(apiKey))
	cacheKey := hex.EncodeToString(sum[:])

	f.mu.Lock()
	defer f.mu.Unlock()

	if gen, ok := f.cache[cacheKey]; ok {
		return gen, nil
	}

	gen, err := NewGenerator(ctx, apiKey, f.model)
	if err != nil {
		return nil, err
	}

	f.cache[cacheKey] = gen
	return gen, nil
}
