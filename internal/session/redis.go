package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/restaurant-voice/backend/internal/dialogue"
)

const (
	keyPrefix   = "call:"
	lockPrefix  = "lock:call:"
	activeCalls = "active_calls"

	lockPoll = 25 * time.Millisecond
	lockTTL  = 30 * time.Second
)

// ErrLockTimeout is returned when another instance holds a call lock past
// the caller's deadline.
var ErrLockTimeout = errors.New("call is locked by another request")

// releaseLock deletes the lock key only while it still holds our token.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore shares sessions between server instances. Each session is
// one JSON value that expires after the configured TTL, and Lock gives
// every instance the same per-call turn lock.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, addr, password string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (r *RedisStore) Load(ctx context.Context, callID string) (*dialogue.CallSession, error) {
	b, err := r.client.Get(ctx, keyPrefix+callID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, dialogue.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(b)
}

func (r *RedisStore) Save(ctx context.Context, s *dialogue.CallSession) error {
	b, err := encode(s)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyPrefix+s.CallID, b, r.ttl)
		pipe.SAdd(ctx, activeCalls, s.CallID)
		return nil
	})
	return err
}

func (r *RedisStore) Delete(ctx context.Context, callID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keyPrefix+callID)
		pipe.SRem(ctx, activeCalls, callID)
		return nil
	})
	return err
}

// Active lists calls with a live session. Entries whose key has expired
// are pruned from the set.
func (r *RedisStore) Active(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, activeCalls).Result()
	if err != nil {
		return nil, err
	}
	var live []string
	for _, id := range ids {
		n, err := r.client.Exists(ctx, keyPrefix+id).Result()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			r.client.SRem(ctx, activeCalls, id)
			continue
		}
		live = append(live, id)
	}
	return live, nil
}

// Lock takes the per-call lock with SET NX, polling until it is free or
// ctx is done. The lock expires after lockTTL if its holder never
// releases it.
func (r *RedisStore) Lock(ctx context.Context, callID string) (func(), error) {
	key := lockPrefix + callID
	token := uuid.NewString()
	ticker := time.NewTicker(lockPoll)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("lock call %s: %w", callID, err)
		}
		if ok {
			return func() {
				// The turn's ctx may already be cancelled; release regardless.
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				releaseLock.Run(releaseCtx, r.client, []string{key}, token)
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, callID)
		case <-ticker.C:
		}
	}
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
