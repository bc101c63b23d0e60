// Package keyring holds in-process signing key material. One key is active
// for signing at a time; rotated-out keys stay resident so their signatures
// remain verifiable.
package keyring

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"sync"

	"sigil/internal/domain"
	"sigil/internal/infra/crypto"
)

type Ring struct {
	mu     sync.RWMutex
	active string
	keys   map[string]*crypto.KeyPair
}

func New() *Ring {
	return &Ring{keys: make(map[string]*crypto.KeyPair)}
}

// NewFromSeed builds a ring with a single active ed25519 key. The seed is
// taken from the hex value first, then the base64 value; when both are empty
// a fresh key is generated.
func NewFromSeed(seedHex, seedBase64 string) (*Ring, error) {
	var (
		kp  *crypto.KeyPair
		err error
	)
	switch {
	case seedHex != "":
		var raw []byte
		raw, err = hex.DecodeString(seedHex)
		if err != nil {
			return nil, errors.New("signing key seed is not valid hex")
		}
		kp, err = crypto.NewEd25519KeyPairFromSeed(raw)
	case seedBase64 != "":
		var raw []byte
		raw, err = base64.StdEncoding.DecodeString(seedBase64)
		if err != nil {
			return nil, errors.New("signing key seed is not valid base64")
		}
		kp, err = crypto.NewEd25519KeyPairFromSeed(raw)
	default:
		kp, err = crypto.GenerateKeyPair(domain.AlgEd25519)
	}
	if err != nil {
		return nil, err
	}
	ring := New()
	ring.Add(kp, true)
	return ring, nil
}

// Add registers a key pair; activate makes it the signing key.
func (r *Ring) Add(kp *crypto.KeyPair, activate bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[kp.KeyID()] = kp
	if activate || r.active == "" {
		r.active = kp.KeyID()
	}
}

// Active returns the current signing key.
func (r *Ring) Active() (*crypto.KeyPair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kp, ok := r.keys[r.active]
	if !ok {
		return nil, domain.ErrNoActiveKey
	}
	return kp, nil
}

// Lookup returns a resident key by id, active or not.
func (r *Ring) Lookup(keyID string) (*crypto.KeyPair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kp, ok := r.keys[keyID]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return kp, nil
}

// Rotate generates a fresh key pair for the given algorithm and makes it the
// active signing key. The previous key stays resident for verification.
func (r *Ring) Rotate(alg domain.Algorithm) (*crypto.KeyPair, error) {
	kp, err := crypto.GenerateKeyPair(alg)
	if err != nil {
		return nil, err
	}
	r.Add(kp, true)
	return kp, nil
}
