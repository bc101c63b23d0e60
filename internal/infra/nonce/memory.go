package nonce

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"sigil/internal/domain"
)

const (
	nonceBytes       = 32
	maxTrackedNonces = 100000
)

// Stats are counters surfaced on the stats endpoint.
type Stats struct {
	Issued   int64 `json:"issued"`
	Consumed int64 `json:"consumed"`
	Replays  int64 `json:"replays"`
	Expired  int64 `json:"expired"`
	Live     int   `json:"live"`
}

// NewValue mints a fresh URL-safe random nonce value.
func NewValue() string {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

type memoryLedger struct {
	mu   sync.Mutex
	now  func() time.Time
	ttl  time.Duration
	used map[string]time.Time // value -> expiry of the consumed mark

	issued   int64
	consumed int64
	replays  int64
	expired  int64
}

type MemoryLedgerConfig struct {
	TTL time.Duration
	Now func() time.Time
}

// NewMemoryLedger builds a single-process ledger. Consume is atomic under a
// mutex. A consumed mark is kept until the nonce's own expiry, after which
// the stateless expiry check rejects the value, so eviction never re-opens
// a consumed nonce.
func NewMemoryLedger(cfg MemoryLedgerConfig) *memoryLedger {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	return &memoryLedger{
		now:  cfg.Now,
		ttl:  cfg.TTL,
		used: make(map[string]time.Time),
	}
}

func (m *memoryLedger) Issue() domain.Nonce {
	now := m.now()
	m.mu.Lock()
	m.issued++
	m.mu.Unlock()
	return domain.Nonce{
		Value:     NewValue(),
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}
}

func (m *memoryLedger) Consume(_ context.Context, n domain.Nonce) error {
	if n.Value == "" {
		return errors.New("nonce value is required")
	}
	now := m.now()
	if n.Expired(now) {
		m.mu.Lock()
		m.expired++
		m.mu.Unlock()
		return domain.ErrNonceExpired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.used[n.Value]; ok {
		m.replays++
		return domain.ErrReplay
	}
	if len(m.used) >= maxTrackedNonces {
		m.sweep(now)
	}
	m.used[n.Value] = n.ExpiresAt
	m.consumed++
	return nil
}

func (m *memoryLedger) sweep(now time.Time) {
	for value, expiry := range m.used {
		if now.After(expiry) {
			delete(m.used, value)
		}
	}
}

func (m *memoryLedger) Stats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Issued:   m.issued,
		Consumed: m.consumed,
		Replays:  m.replays,
		Expired:  m.expired,
		Live:     len(m.used),
	}, nil
}
