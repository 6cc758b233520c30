package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dotsetgreg/factkeeper/pkg/logger"
)

// redisKV is the slice of *redis.Client the session store uses.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisSessionStore keeps sessions as JSON values under prefix+"session:"+sender.
// Redis errors fall back to an in-process store so a sender is never stuck
// waiting on an unreachable server. A local entry only exists while Redis
// is behind it, so it always wins and is written back once Redis answers.
type RedisSessionStore struct {
	client  redisKV
	prefix  string
	timeout time.Duration
	local   *MemorySessionStore

	mu      sync.Mutex
	deleted map[string]struct{}
}

func NewRedisSessionStore(client redisKV, prefix string, timeout time.Duration) *RedisSessionStore {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RedisSessionStore{
		client:  client,
		prefix:  prefix,
		timeout: timeout,
		local:   NewMemorySessionStore(),
		deleted: make(map[string]struct{}),
	}
}

// DialRedis builds a client and pings it once. The ping error is
// returned alongside the client so callers can log and continue.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return client, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (r *RedisSessionStore) key(senderKey string) string {
	return r.prefix + "session:" + senderKey
}

func (r *RedisSessionStore) Load(ctx context.Context, senderKey string) (*Session, bool, error) {
	if s, ok, _ := r.local.Load(ctx, senderKey); ok {
		r.writeBack(ctx, s)
		return s, true, nil
	}
	if r.isDeleted(senderKey) && !r.retryDelete(ctx, senderKey) {
		return nil, false, nil
	}

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.client.Get(cctx, r.key(senderKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		logger.WarnCF("agent", "Session load failed, starting from local state", map[string]interface{}{
			"sender": senderKey,
			"error":  err.Error(),
		})
		return nil, false, nil
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		logger.WarnCF("agent", "Discarding undecodable session", map[string]interface{}{
			"sender": senderKey,
			"error":  err.Error(),
		})
		return nil, false, nil
	}
	return &s, true, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, s *Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.SenderKey, err)
	}

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.client.Set(cctx, r.key(s.SenderKey), payload, 0).Err(); err != nil {
		logger.WarnCF("agent", "Session save failed, keeping session locally", map[string]interface{}{
			"sender": s.SenderKey,
			"error":  err.Error(),
		})
		return r.local.Save(ctx, s)
	}
	r.forgetDeleted(s.SenderKey)
	return r.local.Delete(ctx, s.SenderKey)
}

// writeBack pushes a locally held session to Redis and drops the local
// copy on success.
func (r *RedisSessionStore) writeBack(ctx context.Context, s *Session) {
	payload, err := json.Marshal(s)
	if err != nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.client.Set(cctx, r.key(s.SenderKey), payload, 0).Err(); err != nil {
		return
	}
	r.forgetDeleted(s.SenderKey)
	_ = r.local.Delete(ctx, s.SenderKey)
	logger.InfoCF("agent", "Local session written back to redis", map[string]interface{}{
		"sender": s.SenderKey,
	})
}

// Delete always clears local state. When Redis cannot be reached the
// sender is remembered so a stale Redis copy is never loaded again.
func (r *RedisSessionStore) Delete(ctx context.Context, senderKey string) error {
	_ = r.local.Delete(ctx, senderKey)

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.client.Del(cctx, r.key(senderKey)).Err(); err != nil {
		r.mu.Lock()
		r.deleted[senderKey] = struct{}{}
		r.mu.Unlock()
		return fmt.Errorf("delete session %s: %w", senderKey, err)
	}
	r.forgetDeleted(senderKey)
	return nil
}

func (r *RedisSessionStore) retryDelete(ctx context.Context, senderKey string) bool {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.client.Del(cctx, r.key(senderKey)).Err(); err != nil {
		return false
	}
	r.forgetDeleted(senderKey)
	return true
}

func (r *RedisSessionStore) isDeleted(senderKey string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.deleted[senderKey]
	return ok
}

func (r *RedisSessionStore) forgetDeleted(senderKey string) {
	r.mu.Lock()
	delete(r.deleted, senderKey)
	r.mu.Unlock()
}

func (r *RedisSessionStore) Close() error {
	return r.client.Close()
}
