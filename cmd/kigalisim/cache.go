package main

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/kigalisim/internal/engine/runner"
)

// resultCacheTTL bounds how long a cached scenario result is reused.
const resultCacheTTL = 15 * time.Minute

// resultCache memoizes scenario runs in Redis keyed by (script path,
// scenario, trials, seed), following the teacher's
// internal/performance.CacheLayer cache-aside pattern. A nil client makes
// every method a no-op, so callers don't need to branch on configuration.
type resultCache struct {
	client *redis.Client
	logger *slog.Logger
}

func newResultCache(ctx context.Context, redisURL string, logger *slog.Logger) *resultCache {
	if redisURL == "" {
		return &resultCache{}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error("invalid redis cache url, caching disabled", "error", err)
		return &resultCache{}
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error("redis cache unreachable, caching disabled", "error", err)
		return &resultCache{}
	}

	return &resultCache{client: client, logger: logger}
}

func (c *resultCache) key(scriptPath, scenario string, trials int, seed int64) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%d", scriptPath, scenario, trials, seed)))
	return fmt.Sprintf("kigalisim:run:%x", h)
}

func (c *resultCache) get(ctx context.Context, key string) ([]runner.EngineResult, bool) {
	if c.client == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var rows []runner.EngineResult
	if err := json.Unmarshal(raw, &rows); err != nil {
		c.logger.Error("corrupt cache entry, ignoring", "key", key, "error", err)
		return nil, false
	}
	return rows, true
}

func (c *resultCache) set(ctx context.Context, key string, rows []runner.EngineResult) {
	if c.client == nil {
		return
	}

	raw, err := json.Marshal(rows)
	if err != nil {
		c.logger.Error("failed to marshal result for cache", "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, resultCacheTTL).Err(); err != nil {
		c.logger.Error("failed to write cache entry", "key", key, "error", err)
	}
}

func (c *resultCache) close() {
	if c.client != nil {
		_ = c.client.Close()
	}
}
