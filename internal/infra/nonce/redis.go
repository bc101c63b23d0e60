package nonce

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"sigil/internal/domain"
)

type redisLedger struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// consumeScript inserts the mark only if absent, returning whether this
// caller won. Atomicity comes from redis running the script serially.
var consumeScript = redis.NewScript(`
local ok = redis.call("SET", KEYS[1], "1", "NX", "PX", ARGV[1])
if ok then
  return 1
end
return 0
`)

type RedisLedgerConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Now      func() time.Time
}

// NewRedisLedger builds a ledger shared across processes. The consumed mark
// lives exactly as long as the nonce itself.
func NewRedisLedger(cfg RedisLedgerConfig) (*redisLedger, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &redisLedger{client: client, ttl: cfg.TTL, now: cfg.Now}, nil
}

func (r *redisLedger) Issue() domain.Nonce {
	now := r.now()
	return domain.Nonce{
		Value:     NewValue(),
		IssuedAt:  now,
		ExpiresAt: now.Add(r.ttl),
	}
}

func (r *redisLedger) Consume(ctx context.Context, n domain.Nonce) error {
	if n.Value == "" {
		return errors.New("nonce value is required")
	}
	now := r.now()
	if n.Expired(now) {
		return domain.ErrNonceExpired
	}
	remaining := n.ExpiresAt.Sub(now).Milliseconds()
	if remaining <= 0 {
		return domain.ErrNonceExpired
	}
	result, err := consumeScript.Run(ctx, r.client, []string{"sigil:nonce:" + n.Value}, remaining).Result()
	if err != nil {
		return err
	}
	won, ok := result.(int64)
	if !ok {
		return errors.New("unexpected redis nonce response")
	}
	if won != 1 {
		return domain.ErrReplay
	}
	return nil
}

func (r *redisLedger) Stats(ctx context.Context) (Stats, error) {
	// Per-node counters are not tracked for the shared ledger; report only
	// what redis can answer cheaply.
	live, err := r.client.DBSize(ctx).Result()
	if err != nil {
		return Stats{}, err
	}
	return Stats{Live: int(live)}, nil
}
