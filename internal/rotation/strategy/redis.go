package strategy

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/credstack/rotor/internal/config"
	"github.com/credstack/rotor/internal/logging"
	"github.com/credstack/rotor/internal/secure"
)

// redisClient is the slice of go-redis the strategy uses; tests inject a
// fake through newClient.
type redisClient interface {
	ConfigSet(ctx context.Context, parameter, value string) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisStrategy rotates the requirepass of a Redis server. CONFIG SET runs
// on a connection authenticated with the old password; connections opened
// before the change stay valid, so the cutover does not drop clients.
type RedisStrategy struct {
	addr   string
	logger *logging.Logger

	newClient func(addr, password string) redisClient
}

// NewRedisStrategy creates a strategy for the configured Redis server.
func NewRedisStrategy(cfg config.SecretConfig, logger *logging.Logger) *RedisStrategy {
	return &RedisStrategy{
		addr:   cfg.Addr,
		logger: logger,
		newClient: func(addr, password string) redisClient {
			return redis.NewClient(&redis.Options{Addr: addr, Password: password})
		},
	}
}

func (s *RedisStrategy) Name() string {
	return "cache-password"
}

func (s *RedisStrategy) Generate(_ context.Context) (*secure.Buffer, error) {
	return GeneratePassword(32)
}

// Apply sets the new requirepass over an old-authenticated connection.
func (s *RedisStrategy) Apply(ctx context.Context, old, newValue *secure.Buffer) error {
	return s.configSet(ctx, old, newValue)
}

// Verify authenticates with the new password.
func (s *RedisStrategy) Verify(ctx context.Context, value *secure.Buffer) error {
	password, err := bufferString(value)
	if err != nil {
		return err
	}

	client := s.newClient(s.addr, password)
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("new redis password rejected: %w", err)
	}
	return nil
}

// Rollback restores the old requirepass using the failed value, falling
// back to checking whether the old password still authenticates.
func (s *RedisStrategy) Rollback(ctx context.Context, old, failed *secure.Buffer) error {
	if err := s.configSet(ctx, failed, old); err == nil {
		return nil
	}

	password, err := bufferString(old)
	if err != nil {
		return err
	}
	client := s.newClient(s.addr, password)
	defer client.Close()

	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		return fmt.Errorf("neither old nor new redis password authenticates: %w", pingErr)
	}
	s.logger.Debug("Old redis password still active, no restore needed")
	return nil
}

// configSet changes requirepass to target over a connection authenticated
// with auth. A nil auth connects unauthenticated (first rotation).
func (s *RedisStrategy) configSet(ctx context.Context, auth, target *secure.Buffer) error {
	authPassword, err := bufferString(auth)
	if err != nil {
		return err
	}

	client := s.newClient(s.addr, authPassword)
	defer client.Close()

	return target.With(func(raw []byte) error {
		s.logger.Debug("CONFIG SET requirepass %v on %s", logging.Secret(raw), s.addr)
		if err := client.ConfigSet(ctx, "requirepass", string(raw)).Err(); err != nil {
			return fmt.Errorf("CONFIG SET requirepass failed: %w", err)
		}
		return nil
	})
}

func bufferString(b *secure.Buffer) (string, error) {
	if b == nil {
		return "", nil
	}
	return b.String()
}
