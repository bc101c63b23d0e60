package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sigil/internal/domain"
)

// MemoryRegistry is the in-process trust registry. Mutations take the write
// lock, so a lookup that starts after a revoke returns always observes the
// revoked state.
type MemoryRegistry struct {
	mu      sync.RWMutex
	now     func() time.Time
	entries map[string]domain.TrustEntry
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		now:     time.Now,
		entries: make(map[string]domain.TrustEntry),
	}
}

func (r *MemoryRegistry) Register(_ context.Context, entry domain.TrustEntry) error {
	if entry.KeyID == "" {
		return fmt.Errorf("key id is required")
	}
	if len(entry.PublicKey) == 0 {
		return fmt.Errorf("public key is required")
	}
	if entry.TrustLevel == "" {
		entry.TrustLevel = domain.TrustMedium
	}
	if entry.RegisteredAt.IsZero() {
		entry.RegisteredAt = r.now().UTC()
	}
	entry.PublicKey = append([]byte(nil), entry.PublicKey...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entry.KeyID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateKey, entry.KeyID)
	}
	r.entries[entry.KeyID] = entry
	return nil
}

func (r *MemoryRegistry) Revoke(_ context.Context, keyID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[keyID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrKeyNotFound, keyID)
	}
	if entry.Revoked {
		return nil
	}
	revokedAt := r.now().UTC()
	entry.Revoked = true
	entry.RevokedAt = &revokedAt
	entry.RevocationReason = reason
	r.entries[keyID] = entry
	return nil
}

func (r *MemoryRegistry) Lookup(_ context.Context, keyID string) (*domain.TrustEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrKeyNotFound, keyID)
	}
	out := entry
	out.PublicKey = append([]byte(nil), entry.PublicKey...)
	return &out, nil
}

// TrustLevelOf implements domain.TrustSource. Unknown keys carry no trust.
func (r *MemoryRegistry) TrustLevelOf(ctx context.Context, keyID string) (domain.TrustLevel, error) {
	entry, err := r.Lookup(ctx, keyID)
	if err != nil {
		return domain.TrustNone, nil
	}
	if entry.Revoked {
		return domain.TrustNone, nil
	}
	return entry.TrustLevel, nil
}

var _ domain.TrustSource = (*MemoryRegistry)(nil)
