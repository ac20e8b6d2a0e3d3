package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credstack/rotor/internal/config"
	"github.com/credstack/rotor/internal/logging"
	"github.com/credstack/rotor/internal/secure"
)

// fakeRedisServer tracks the live requirepass so auth behaves like a real
// server across connections.
type fakeRedisServer struct {
	requirepass string
}

type fakeRedisConn struct {
	server   *fakeRedisServer
	password string
}

func (c *fakeRedisConn) authed() bool {
	return c.password == c.server.requirepass
}

func (c *fakeRedisConn) ConfigSet(ctx context.Context, parameter, value string) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if !c.authed() {
		cmd.SetErr(errors.New("NOAUTH Authentication required"))
		return cmd
	}
	if parameter == "requirepass" {
		c.server.requirepass = value
	}
	cmd.SetVal("OK")
	return cmd
}

func (c *fakeRedisConn) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if !c.authed() {
		cmd.SetErr(errors.New("NOAUTH Authentication required"))
		return cmd
	}
	cmd.SetVal("PONG")
	return cmd
}

func (c *fakeRedisConn) Close() error { return nil }

func newTestRedisStrategy(requirepass string) (*RedisStrategy, *fakeRedisServer) {
	server := &fakeRedisServer{requirepass: requirepass}
	s := NewRedisStrategy(config.SecretConfig{Addr: "localhost:6379"}, logging.New(false, true))
	s.newClient = func(_, password string) redisClient {
		return &fakeRedisConn{server: server, password: password}
	}
	return s, server
}

func TestRedisStrategyApply(t *testing.T) {
	t.Parallel()

	s, server := newTestRedisStrategy("oldpass")

	err := s.Apply(context.Background(),
		secure.NewBufferFromString("oldpass"), secure.NewBufferFromString("newpass"))
	require.NoError(t, err)
	assert.Equal(t, "newpass", server.requirepass)
}

func TestRedisStrategyApplyWrongOldPassword(t *testing.T) {
	t.Parallel()

	s, server := newTestRedisStrategy("oldpass")

	err := s.Apply(context.Background(),
		secure.NewBufferFromString("stalepass"), secure.NewBufferFromString("newpass"))
	require.Error(t, err)
	assert.Equal(t, "oldpass", server.requirepass)
}

func TestRedisStrategyVerify(t *testing.T) {
	t.Parallel()

	s, _ := newTestRedisStrategy("newpass")
	assert.NoError(t, s.Verify(context.Background(), secure.NewBufferFromString("newpass")))
	assert.Error(t, s.Verify(context.Background(), secure.NewBufferFromString("wrongpass")))
}

func TestRedisStrategyRollback(t *testing.T) {
	t.Parallel()

	// Apply landed: the server requires the failed value.
	s, server := newTestRedisStrategy("newpass")

	err := s.Rollback(context.Background(),
		secure.NewBufferFromString("oldpass"), secure.NewBufferFromString("newpass"))
	require.NoError(t, err)
	assert.Equal(t, "oldpass", server.requirepass)
}

func TestRedisStrategyRollbackWhenApplyNeverLanded(t *testing.T) {
	t.Parallel()

	// Apply never landed: the server still requires the old value.
	s, server := newTestRedisStrategy("oldpass")

	err := s.Rollback(context.Background(),
		secure.NewBufferFromString("oldpass"), secure.NewBufferFromString("newpass"))
	require.NoError(t, err)
	assert.Equal(t, "oldpass", server.requirepass)
}

func TestRedisStrategyRollbackBothRejected(t *testing.T) {
	t.Parallel()

	s, _ := newTestRedisStrategy("somethingelse")

	err := s.Rollback(context.Background(),
		secure.NewBufferFromString("oldpass"), secure.NewBufferFromString("newpass"))
	assert.Error(t, err)
}
