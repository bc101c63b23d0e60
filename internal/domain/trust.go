package domain

import (
	"context"
	"time"
)

// TrustEntry binds a key id to its public key and the trust level of the
// registered identity. Revocation flips the flag in place; revoked entries
// stay in the registry so the revocation itself remains auditable.
type TrustEntry struct {
	KeyID            string     `json:"key_id"`
	Alg              Algorithm  `json:"alg"`
	PublicKey        []byte     `json:"public_key"`
	TrustLevel       TrustLevel `json:"trust_level"`
	Revoked          bool       `json:"revoked"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	RevocationReason string     `json:"revocation_reason,omitempty"`
	RegisteredAt     time.Time  `json:"registered_at"`
}

// TrustSource resolves the trust level currently in force for a key id.
// Unknown keys resolve to TrustNone without error.
type TrustSource interface {
	TrustLevelOf(ctx context.Context, keyID string) (TrustLevel, error)
}
