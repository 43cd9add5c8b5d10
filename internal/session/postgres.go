package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ibimina/ingest-core/internal/db"
	"github.com/ibimina/ingest-core/internal/model"
)

// PostgresStore implements Store over a pgx connection pool.
type PostgresStore struct {
	pool    db.Pool
	table   string
	ttl     time.Duration
	closeFn func()
}

func newPostgres(ctx context.Context, opts Options) (*PostgresStore, error) {
	s := &PostgresStore{
		pool:  opts.Pool,
		table: opts.Table,
		ttl:   opts.ttl(),
	}
	if s.table == "" {
		s.table = DefaultTable
	}

	if s.pool == nil {
		pgxCfg, err := pgxpool.ParseConfig(opts.ConnString)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: parse config")
		}
		pgxCfg.MaxConnLifetime = 30 * time.Minute
		pgxCfg.MaxConnIdleTime = 5 * time.Minute

		pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: create pool")
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, eris.Wrap(err, "postgres: ping")
		}
		s.pool = pool
		s.closeFn = pool.Close
	}

	return s, nil
}

const postgresMigrationTemplate = `
CREATE TABLE IF NOT EXISTS %s (
	id                  TEXT PRIMARY KEY,
	org_id              TEXT NOT NULL,
	user_id             TEXT,
	channel             TEXT NOT NULL,
	metadata            JSONB NOT NULL DEFAULT '{}',
	messages            JSONB NOT NULL DEFAULT '[]',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_interaction_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_%s_org_id ON %s(org_id);
CREATE INDEX IF NOT EXISTS idx_%s_expires_at ON %s(expires_at);
`

// Migrate creates the sessions table and its indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	sql := fmt.Sprintf(postgresMigrationTemplate, s.table, s.table, s.table, s.table, s.table)
	_, err := s.pool.Exec(ctx, sql)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, sessionID string) (*model.AgentSessionRecord, error) {
	var (
		r            model.AgentSessionRecord
		userID       *string
		metadataJSON []byte
		messagesJSON []byte
	)

	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT id, org_id, user_id, channel, metadata, messages, created_at, updated_at, last_interaction_at, expires_at FROM %s WHERE id = $1`, s.table),
		sessionID,
	).Scan(&r.ID, &r.OrgID, &userID, &r.Channel, &metadataJSON, &messagesJSON,
		&r.CreatedAt, &r.UpdatedAt, &r.LastInteractionAt, &r.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get session %s", sessionID)
	}
	if userID != nil {
		r.UserID = *userID
	}

	// A corrupt session is operationally the same as a missing one.
	if err := json.Unmarshal(metadataJSON, &r.Metadata); err != nil {
		s.cleanupStale(sessionID, "corrupt metadata")
		return nil, nil
	}
	if err := json.Unmarshal(messagesJSON, &r.Messages); err != nil {
		s.cleanupStale(sessionID, "corrupt messages")
		return nil, nil
	}

	now := time.Now().UTC()
	if r.Expired(now) {
		s.cleanupStale(sessionID, "expired")
		return nil, nil
	}

	// Refresh-on-access: with a TTL configured, reading a session keeps it
	// alive. The extension is applied to the returned record and persisted
	// by the next save or touch.
	if s.ttl > 0 {
		if refreshed := now.Add(s.ttl); r.ExpiresAt.Before(refreshed) {
			r.ExpiresAt = refreshed
		}
	}

	return &r, nil
}

// cleanupStale removes a dead row without blocking or failing the read that
// found it.
func (s *PostgresStore) cleanupStale(sessionID, reason string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.pool.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table), sessionID,
		); err != nil {
			zap.L().Warn("session: stale cleanup failed",
				zap.String("session_id", sessionID),
				zap.String("reason", reason),
				zap.Error(err),
			)
		}
	}()
}

func (s *PostgresStore) Save(ctx context.Context, record *model.AgentSessionRecord) (*model.AgentSessionRecord, error) {
	now := time.Now().UTC()

	persisted := *record
	persisted.UpdatedAt = now
	if persisted.CreatedAt.IsZero() {
		persisted.CreatedAt = now
	}
	if persisted.LastInteractionAt.IsZero() {
		persisted.LastInteractionAt = now
	}
	// A configured TTL centralizes expiry policy in the store: the caller's
	// expires_at is overridden, not trusted.
	if s.ttl > 0 {
		persisted.ExpiresAt = now.Add(s.ttl)
	}
	if persisted.ExpiresAt.IsZero() {
		return nil, eris.Errorf("session: save %s: expires_at required without a configured TTL", record.ID)
	}

	metadataJSON, err := json.Marshal(orEmptyMap(persisted.Metadata))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal metadata")
	}
	messagesJSON, err := json.Marshal(orEmptyMessages(persisted.Messages))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal messages")
	}

	var userID *string
	if persisted.UserID != "" {
		userID = &persisted.UserID
	}

	// On a conflicting upsert the row keeps its original created_at, so read
	// it back rather than returning the caller's value.
	err = s.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, org_id, user_id, channel, metadata, messages, created_at, updated_at, last_interaction_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   org_id = $2, user_id = $3, channel = $4, metadata = $5, messages = $6,
		   updated_at = $8, last_interaction_at = $9, expires_at = $10
		 RETURNING created_at`, s.table),
		persisted.ID, persisted.OrgID, userID, persisted.Channel,
		metadataJSON, messagesJSON,
		persisted.CreatedAt, persisted.UpdatedAt, persisted.LastInteractionAt, persisted.ExpiresAt,
	).Scan(&persisted.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: save session %s", record.ID)
	}

	return &persisted, nil
}

func (s *PostgresStore) Touch(ctx context.Context, sessionID string, expiresAt *time.Time) error {
	now := time.Now().UTC()

	query := fmt.Sprintf(`UPDATE %s SET last_interaction_at = $1 WHERE id = $2`, s.table)
	args := []any{now, sessionID}

	// An explicit expiry wins over the configured TTL for this call.
	switch {
	case expiresAt != nil:
		query = fmt.Sprintf(`UPDATE %s SET last_interaction_at = $1, expires_at = $2 WHERE id = $3`, s.table)
		args = []any{now, expiresAt.UTC(), sessionID}
	case s.ttl > 0:
		query = fmt.Sprintf(`UPDATE %s SET last_interaction_at = $1, expires_at = $2 WHERE id = $3`, s.table)
		args = []any{now, now.Add(s.ttl), sessionID}
	}

	_, err := s.pool.Exec(ctx, query, args...)
	return eris.Wrapf(err, "postgres: touch session %s", sessionID)
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table), sessionID,
	)
	return eris.Wrapf(err, "postgres: delete session %s", sessionID)
}

// DeleteExpired sweeps rows whose expiry has passed and reports how many
// were removed. Lazy expiry keeps reads correct either way; this just frees
// storage.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= now()`, s.table),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired sessions")
	}
	return int(tag.RowsAffected()), nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func orEmptyMessages(m []model.AgentMessage) []model.AgentMessage {
	if m == nil {
		return []model.AgentMessage{}
	}
	return m
}
