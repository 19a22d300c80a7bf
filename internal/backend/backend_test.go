package backend

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/leadfunnel/internal/auth"
	"github.com/ignite/leadfunnel/internal/config"
)

func TestOpen_RequiresDatabaseURL(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{})
	assert.Error(t, err)
}

func TestConnectRedis(t *testing.T) {
	assert.Nil(t, connectRedis(context.Background(), ""))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := connectRedis(context.Background(), "redis://"+mr.Addr())
	require.NotNil(t, client)
	client.Close()

	mr.Close()
	assert.Nil(t, connectRedis(context.Background(), "redis://"+mr.Addr()))
}

func TestSessionStoreSelection(t *testing.T) {
	c := &Client{}
	assert.IsType(t, &auth.MemorySessionStore{}, c.sessionStore())
	c.Close()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	c = &Client{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	assert.IsType(t, &auth.RedisSessionStore{}, c.sessionStore())
	c.Close()
}

func TestMigrate_UnderRedisLock(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	c := &Client{DB: db, Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	defer c.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS email_subscribers`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, c.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.False(t, mr.Exists("lock:"+migrateLockKey))
}
