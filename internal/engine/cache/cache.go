// Package cache stores verified moves so repeated positions skip the backend.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "chessgate:move:"

// MoveCache stores moves by key.
type MoveCache interface {
	// Get returns the cached move. ok is false on a miss.
	Get(ctx context.Context, key string) (move string, ok bool, err error)

	// Set stores a move for ttl. A zero ttl never expires.
	Set(ctx context.Context, key, move string, ttl time.Duration) error

	// Invalidate drops every move cached for engine.
	Invalidate(ctx context.Context, engine string) error

	Ping(ctx context.Context) error
	Close() error
}

// Key derives the cache key for an engine, its configuration fingerprint,
// a position and a depth. Moves cached under an older configuration of the
// same engine never match.
func Key(engine, fingerprint, fen string, depth int) string {
	sum := sha256.Sum256([]byte(fen))
	return fmt.Sprintf("%s%d:%s", enginePrefix(engine, fingerprint), depth, hex.EncodeToString(sum[:12]))
}

func enginePrefix(engine, fingerprint string) string {
	if fingerprint == "" {
		fingerprint = "-"
	}
	return keyPrefix + engine + ":" + fingerprint + ":"
}

// Fingerprint hashes an engine configuration. An unencodable
// configuration yields "".
func Fingerprint(raw map[string]any) string {
	b, err := json.Marshal(raw)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:6])
}

// RedisCache keeps moves in Redis.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisCache connects to a redis:// URL and checks it answers.
func NewRedisCache(ctx context.Context, url string, logger *slog.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("move cache connected", "backend", "redis", "addr", opt.Addr)
	return &RedisCache{client: client, logger: logger}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, logger: logger}
}

// Get implements MoveCache.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	move, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return move, true, nil
}

// Set implements MoveCache.
func (c *RedisCache) Set(ctx context.Context, key, move string, ttl time.Duration) error {
	return c.client.Set(ctx, key, move, ttl).Err()
}

// Invalidate implements MoveCache by scanning the engine's key space.
func (c *RedisCache) Invalidate(ctx context.Context, engine string) error {
	pattern := escapePattern(keyPrefix+engine+":") + "*"
	iter := c.client.Scan(ctx, 0, pattern, 200).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", engine, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate %s: %w", engine, err)
	}
	c.logger.Debug("move cache invalidated", "engine", engine, "keys", len(keys))
	return nil
}

var patternEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// escapePattern quotes glob metacharacters for SCAN MATCH.
func escapePattern(s string) string {
	return patternEscaper.Replace(s)
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

type memoryEntry struct {
	move    string
	expires time.Time
}

// MemoryCache is an in-process MoveCache used when Redis is not configured.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

// Get implements MoveCache. Expired entries are dropped on access.
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		return "", false, nil
	}
	return e.move, true, nil
}

// Set implements MoveCache.
func (c *MemoryCache) Set(_ context.Context, key, move string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = c.now().Add(ttl)
	}
	c.entries[key] = memoryEntry{move: move, expires: expires}
	return nil
}

// Invalidate implements MoveCache.
func (c *MemoryCache) Invalidate(_ context.Context, engine string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := keyPrefix + engine + ":"
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Ping always succeeds.
func (c *MemoryCache) Ping(context.Context) error { return nil }

// Close drops every entry.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
	return nil
}
