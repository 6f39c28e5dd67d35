package ai

import (
	"strings"
	"sync"
)

// Credential is one secret in a KeyPool together with its slot index.
type Credential struct {
	Index  int
	Secret string
}

// KeyPool holds the ordered credentials for a single provider and a rotation cursor.
// The cursor is the only mutable state and every access goes through the mutex.
type KeyPool struct {
	mu      sync.Mutex
	secrets []string
	cursor  int
}

// NewKeyPool builds a pool from the given secrets, dropping blank entries.
func NewKeyPool(secrets []string) *KeyPool {
	cleaned := make([]string, 0, len(secrets))
	for _, secret := range secrets {
		if trimmed := strings.TrimSpace(secret); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return &KeyPool{secrets: cleaned}
}

// Current returns the credential under the cursor.
func (p *KeyPool) Current() (Credential, error) {
	if p == nil {
		return Credential{}, ErrNoCredentials
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.secrets) == 0 {
		return Credential{}, ErrNoCredentials
	}
	return Credential{Index: p.cursor, Secret: p.secrets[p.cursor]}, nil
}

// Rotate advances the cursor, wrapping around at the end of the pool.
func (p *KeyPool) Rotate() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.secrets) == 0 {
		return
	}
	p.cursor = (p.cursor + 1) % len(p.secrets)
}

// IsEmpty reports whether the pool has no usable credential.
func (p *KeyPool) IsEmpty() bool {
	return p.Size() == 0
}

// Size returns the number of credentials in the pool.
func (p *KeyPool) Size() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.secrets)
}
