package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/flowkey/flowkey-booking/internal/config"
	"github.com/flowkey/flowkey-booking/internal/flow"
	"github.com/flowkey/flowkey-booking/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// FlowStore is the draft store chosen for this process. Memory is set when
// drafts live in-process and need sweeping.
type FlowStore struct {
	flow.Store
	Memory *flow.MemoryStore
	Redis  *redis.Client
}

// Close releases the redis connection, if any.
func (s *FlowStore) Close() error {
	if s == nil || s.Redis == nil {
		return nil
	}
	return s.Redis.Close()
}

// BuildFlowStore picks the draft store. A redis store that cannot be reached
// falls back to memory so the booking widget stays up.
func BuildFlowStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *FlowStore {
	if logger == nil {
		logger = logging.Default()
	}
	ttl := flow.DefaultTTL
	if cfg != nil && cfg.FlowTTL > 0 {
		ttl = cfg.FlowTTL
	}

	if cfg != nil && cfg.UsesRedisFlowStore() {
		if client := BuildRedisClient(ctx, cfg, logger, true); client != nil {
			logger.Info("flow drafts stored in redis", "addr", cfg.RedisAddr, "ttl", ttl.String())
			store := flow.NewRedisStore(client, ttl).WithLockTTL(cfg.FlowKeyAPITimeout + 30*time.Second)
			return &FlowStore{Store: store, Redis: client}
		}
		logger.Warn("falling back to in-memory flow drafts")
	}

	mem := flow.NewMemoryStore(ttl)
	return &FlowStore{Store: mem, Memory: mem}
}

// RunJanitor calls each task every interval until ctx is done. Tasks return
// how many entries they removed.
func RunJanitor(ctx context.Context, interval time.Duration, logger *logging.Logger, tasks map[string]func() int) {
	if interval <= 0 || len(tasks) == 0 {
		return
	}
	if logger == nil {
		logger = logging.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, task := range tasks {
				if n := task(); n > 0 {
					logger.Debug("janitor evicted entries", "task", name, "count", n)
				}
			}
		}
	}
}
