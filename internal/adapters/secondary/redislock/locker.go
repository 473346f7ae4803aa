package redislock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"model-gateway-service/internal/config"
	output "model-gateway-service/internal/core/ports/output"
)

const (
	keyPrefix     = "deploy-lock:"
	retryInterval = 50 * time.Millisecond
)

// releaseScript deletes the lock only if it still carries our token, so an
// expired lock taken over by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type locker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewClient connects to redis and checks the connection.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewLocker returns a ModelLocker shared by every gateway replica using the
// same redis. ttl bounds how long a crashed holder can block a model.
func NewLocker(client *redis.Client, ttl time.Duration) output.ModelLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &locker{client: client, ttl: ttl}
}

func (l *locker) Lock(ctx context.Context, modelID uuid.UUID) (func(), error) {
	key := keyPrefix + modelID.String()
	token := uuid.NewString()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire redis lock: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil {
				log.WithError(err).WithField("model_id", modelID).Warn("failed to release deployment lock")
			}
		})
	}, nil
}

// Ensure interface compliance
var _ output.ModelLocker = (*locker)(nil)
