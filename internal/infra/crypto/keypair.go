package crypto

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"sigil/internal/domain"
)

const rsaKeyBits = 2048

// KeyPair holds one signing key pair. The private half never leaves this
// struct; the public half (wire form) goes into the trust registry.
type KeyPair struct {
	keyID string
	alg   domain.Algorithm

	edPriv  ed25519.PrivateKey
	edPub   ed25519.PublicKey
	rsaPriv *rsa.PrivateKey
	rsaPub  *rsa.PublicKey
}

// GenerateKeyPair creates a fresh key pair for the given algorithm.
func GenerateKeyPair(alg domain.Algorithm) (*KeyPair, error) {
	switch alg {
	case domain.AlgEd25519:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate ed25519 key: %w", err)
		}
		kp := &KeyPair{alg: alg, edPriv: priv, edPub: pub}
		kp.keyID = KeyIDFromPublicKey(alg, kp.PublicKey())
		return kp, nil
	case domain.AlgRSAPSS:
		priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
		if err != nil {
			return nil, fmt.Errorf("generate rsa key: %w", err)
		}
		kp := &KeyPair{alg: alg, rsaPriv: priv, rsaPub: &priv.PublicKey}
		kp.keyID = KeyIDFromPublicKey(alg, kp.PublicKey())
		return kp, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedAlgorithm, alg)
	}
}

// NewEd25519KeyPairFromSeed rebuilds a key pair from a 32-byte seed or a
// 64-byte private key, the two forms the configuration accepts.
func NewEd25519KeyPairFromSeed(raw []byte) (*KeyPair, error) {
	var priv ed25519.PrivateKey
	switch len(raw) {
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(raw)
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(append([]byte(nil), raw...))
	default:
		return nil, errors.New("invalid ed25519 private key length")
	}
	pub := priv.Public().(ed25519.PublicKey)
	kp := &KeyPair{alg: domain.AlgEd25519, edPriv: priv, edPub: pub}
	kp.keyID = KeyIDFromPublicKey(kp.alg, kp.PublicKey())
	return kp, nil
}

func (kp *KeyPair) KeyID() string               { return kp.keyID }
func (kp *KeyPair) Algorithm() domain.Algorithm { return kp.alg }

// SeedHex exports the ed25519 seed for storage in configuration. RSA keys
// have no compact seed form and return empty.
func (kp *KeyPair) SeedHex() string {
	if kp.alg != domain.AlgEd25519 || kp.edPriv == nil {
		return ""
	}
	return hex.EncodeToString(kp.edPriv.Seed())
}

// PublicKey returns the wire form of the public key: raw 32 bytes for
// Ed25519, PKIX DER for RSA-PSS.
func (kp *KeyPair) PublicKey() []byte {
	switch kp.alg {
	case domain.AlgEd25519:
		return append([]byte(nil), kp.edPub...)
	case domain.AlgRSAPSS:
		der, err := x509.MarshalPKIXPublicKey(kp.rsaPub)
		if err != nil {
			return nil
		}
		return der
	default:
		return nil
	}
}

func (kp *KeyPair) Sign(data []byte) ([]byte, error) {
	switch kp.alg {
	case domain.AlgEd25519:
		if kp.edPriv == nil {
			return nil, domain.ErrNoActiveKey
		}
		return ed25519.Sign(kp.edPriv, data), nil
	case domain.AlgRSAPSS:
		if kp.rsaPriv == nil {
			return nil, domain.ErrNoActiveKey
		}
		digest := sha256.Sum256(data)
		return rsa.SignPSS(rand.Reader, kp.rsaPriv, crypto.SHA256, digest[:], &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthAuto,
		})
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedAlgorithm, kp.alg)
	}
}

// Verify checks sig over data with the given public key wire form. Malformed
// keys or signatures report false rather than an error; only an unknown
// algorithm is an error.
func Verify(alg domain.Algorithm, pubKey, data, sig []byte) (bool, error) {
	switch alg {
	case domain.AlgEd25519:
		if len(pubKey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
			return false, nil
		}
		return ed25519.Verify(ed25519.PublicKey(pubKey), data, sig), nil
	case domain.AlgRSAPSS:
		parsed, err := x509.ParsePKIXPublicKey(pubKey)
		if err != nil {
			return false, nil
		}
		rsaPub, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return false, nil
		}
		digest := sha256.Sum256(data)
		err = rsa.VerifyPSS(rsaPub, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthAuto,
		})
		return err == nil, nil
	default:
		return false, fmt.Errorf("%w: %s", domain.ErrUnsupportedAlgorithm, alg)
	}
}

// KeyIDFromPublicKey derives the stable key id: "<alg>-<hex sha256 prefix>".
func KeyIDFromPublicKey(alg domain.Algorithm, pubKey []byte) string {
	sum := sha256.Sum256(pubKey)
	return string(alg) + "-" + hex.EncodeToString(sum[:])[:16]
}

// ParsePublicKeyBase64 decodes a base64 public key wire form.
func ParsePublicKeyBase64(value string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid public key encoding: %w", err)
	}
	return raw, nil
}

// ParsePublicKeyHex decodes a hex public key wire form.
func ParsePublicKeyHex(value string) ([]byte, error) {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid public key encoding: %w", err)
	}
	return raw, nil
}
