package allowlist

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// redisSetKey holds the allow-list as a Redis set so it can be updated
// out-of-band (e.g. by an operator tool) without restarting the server.
const redisSetKey = "ocpp:allowed-serials"

// RedisStore is the optional allow-list backend, activated when REDIS_ADDR is
// configured. It is seeded once from the same comma-separated configuration
// value the MemoryStore uses, then consults Redis for every subsequent
// membership test so out-of-band updates take effect without a restart.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to addr and seeds the allow-list set from raw (only
// if the set does not already exist, so a restart never clobbers an
// operator's out-of-band edits). A connection failure is returned to the
// caller, who falls back to a MemoryStore built from the same configured list
// rather than hold up startup.
func NewRedisStore(addr, password string, db int, raw string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("allowlist: connect to redis at %s: %w", addr, err)
	}

	exists, err := client.Exists(ctx, redisSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("allowlist: check seed state: %w", err)
	}
	if exists == 0 {
		for serial := range parseSerials(raw) {
			if err := client.SAdd(ctx, redisSetKey, serial).Err(); err != nil {
				return nil, fmt.Errorf("allowlist: seed redis set: %w", err)
			}
		}
	}

	return &RedisStore{client: client}, nil
}

// Allowed reports set membership in Redis. A disabled (empty) set means
// admission checking is off; a Redis error is logged and treated as
// permissive so a transient backend outage cannot harden the gate.
func (r *RedisStore) Allowed(serial string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	count, err := r.client.SCard(ctx, redisSetKey).Result()
	if err != nil {
		log.Warn().Err(err).Msg("allowlist: redis unavailable, admitting permissively")
		return true
	}
	if count == 0 {
		return true
	}

	ok, err := r.client.SIsMember(ctx, redisSetKey, serial).Result()
	if err != nil {
		log.Warn().Err(err).Msg("allowlist: redis unavailable, admitting permissively")
		return true
	}
	return ok
}

// Close releases the underlying Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
