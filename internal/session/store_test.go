package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsMisconfiguration(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{"unknown driver", Options{Driver: "memcached"}, "unsupported driver"},
		{"postgres without source", Options{Driver: DriverPostgres}, "pool or connection string"},
		{"redis without source", Options{Driver: DriverRedis}, "client or address"},
		{"sqlite without path", Options{Driver: DriverSQLite}, "database path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(ctx, tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewRedisDriver(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := New(context.Background(), Options{
		Driver:    DriverRedis,
		RedisAddr: mr.Addr(),
	})
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*RedisStore)
	assert.True(t, ok)
}

func TestNewSQLiteDriver(t *testing.T) {
	store, err := New(context.Background(), Options{
		Driver:     DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "sessions.db"),
	})
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*SQLiteStore)
	assert.True(t, ok)
}

func TestOptionsTTL(t *testing.T) {
	assert.Equal(t, time.Duration(0), Options{}.ttl())
	assert.Equal(t, time.Duration(0), Options{TTLSeconds: -5}.ttl())
	assert.Equal(t, 30*time.Minute, Options{TTLSeconds: 1800}.ttl())
}
