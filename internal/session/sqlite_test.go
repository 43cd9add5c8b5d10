package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibimina/ingest-core/internal/model"
)

func newSQLiteTestStore(t *testing.T, ttlSeconds int) *SQLiteStore {
	t.Helper()
	store, err := newSQLite(Options{
		Driver:     DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "sessions.db"),
		TTLSeconds: ttlSeconds,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestSQLiteSaveGetRoundtrip(t *testing.T) {
	store := newSQLiteTestStore(t, 1800)
	ctx := context.Background()

	record := &model.AgentSessionRecord{
		ID:       "s1",
		OrgID:    "org1",
		UserID:   "u1",
		Channel:  "whatsapp",
		Metadata: map[string]any{"topic": "loans"},
	}
	record.Append(model.RoleUser, "murakoze", time.Now().UTC())

	persisted, err := store.Save(ctx, record)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), persisted.ExpiresAt, time.Second)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "org1", got.OrgID)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "loans", got.Metadata["topic"])
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "murakoze", got.Messages[0].Content)
}

func TestSQLiteGetMissing(t *testing.T) {
	store := newSQLiteTestStore(t, 1800)

	record, err := store.Get(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, record)
}

func TestSQLiteGetExpired(t *testing.T) {
	store := newSQLiteTestStore(t, 0)
	ctx := context.Background()

	_, err := store.Save(ctx, &model.AgentSessionRecord{
		ID: "s1", OrgID: "org1", Channel: "sms",
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	})
	require.NoError(t, err)

	record, err := store.Get(ctx, "s1")
	assert.NoError(t, err)
	assert.Nil(t, record)
}

func TestSQLiteGetRefreshesExpiry(t *testing.T) {
	store := newSQLiteTestStore(t, 0)
	ctx := context.Background()

	// Seed a row expiring soon, then read it through a TTL-configured store
	// over the same database file.
	_, err := store.Save(ctx, &model.AgentSessionRecord{
		ID: "s1", OrgID: "org1", Channel: "sms",
		ExpiresAt: time.Now().UTC().Add(5 * time.Minute),
	})
	require.NoError(t, err)

	store.ttl = 30 * time.Minute
	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), got.ExpiresAt, time.Second)
}

func TestSQLiteSaveUpsert(t *testing.T) {
	store := newSQLiteTestStore(t, 1800)
	ctx := context.Background()

	record := &model.AgentSessionRecord{ID: "s1", OrgID: "org1", Channel: "sms"}
	_, err := store.Save(ctx, record)
	require.NoError(t, err)

	record.Channel = "whatsapp"
	record.Append(model.RoleAssistant, "hello", time.Now().UTC())
	_, err = store.Save(ctx, record)
	require.NoError(t, err)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "whatsapp", got.Channel)
	assert.Len(t, got.Messages, 1)
}

func TestSQLiteSaveUpsertKeepsCreatedAt(t *testing.T) {
	store := newSQLiteTestStore(t, 1800)
	ctx := context.Background()

	first, err := store.Save(ctx, &model.AgentSessionRecord{ID: "s1", OrgID: "org1", Channel: "sms"})
	require.NoError(t, err)

	// A second save of the same id keeps the row's original created_at and
	// returns it, even when the caller supplies a different one.
	second, err := store.Save(ctx, &model.AgentSessionRecord{
		ID:        "s1",
		OrgID:     "org1",
		Channel:   "whatsapp",
		CreatedAt: time.Now().UTC().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestSQLiteSaveRequiresExpiry(t *testing.T) {
	store := newSQLiteTestStore(t, 0)

	_, err := store.Save(context.Background(), &model.AgentSessionRecord{ID: "s1", OrgID: "org1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expires_at required")
}

func TestSQLiteTouch(t *testing.T) {
	store := newSQLiteTestStore(t, 1800)
	ctx := context.Background()

	_, err := store.Save(ctx, &model.AgentSessionRecord{ID: "s1", OrgID: "org1", Channel: "sms"})
	require.NoError(t, err)

	expiry := time.Now().UTC().Add(2 * time.Hour)
	require.NoError(t, store.Touch(ctx, "s1", &expiry))

	// Read without refresh to observe the stored expiry.
	store.ttl = 0
	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.WithinDuration(t, expiry, got.ExpiresAt, time.Second)
}

func TestSQLiteDelete(t *testing.T) {
	store := newSQLiteTestStore(t, 1800)
	ctx := context.Background()

	_, err := store.Save(ctx, &model.AgentSessionRecord{ID: "s1", OrgID: "org1", Channel: "sms"})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "s1"))

	got, err := store.Get(ctx, "s1")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteDeleteExpired(t *testing.T) {
	store := newSQLiteTestStore(t, 0)
	ctx := context.Background()

	for _, rec := range []*model.AgentSessionRecord{
		{ID: "live", OrgID: "org1", Channel: "sms", ExpiresAt: time.Now().UTC().Add(time.Hour)},
		{ID: "dead1", OrgID: "org1", Channel: "sms", ExpiresAt: time.Now().UTC().Add(-time.Hour)},
		{ID: "dead2", OrgID: "org1", Channel: "sms", ExpiresAt: time.Now().UTC().Add(-time.Minute)},
	} {
		_, err := store.Save(ctx, rec)
		require.NoError(t, err)
	}

	n, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.Get(ctx, "live")
	require.NoError(t, err)
	assert.NotNil(t, got)
}
