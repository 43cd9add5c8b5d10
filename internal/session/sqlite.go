package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ibimina/ingest-core/internal/model"
)

// SQLiteStore is the local-development relational driver. It behaves exactly
// like the Postgres driver over a file-backed database.
type SQLiteStore struct {
	db    *sql.DB
	table string
	ttl   time.Duration
}

func newSQLite(opts Options) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", opts.SQLitePath)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	s := &SQLiteStore{db: db, table: opts.Table, ttl: opts.ttl()}
	if s.table == "" {
		s.table = DefaultTable
	}
	return s, nil
}

const sqliteMigrationTemplate = `
CREATE TABLE IF NOT EXISTS %s (
	id                  TEXT PRIMARY KEY,
	org_id              TEXT NOT NULL,
	user_id             TEXT,
	channel             TEXT NOT NULL,
	metadata            TEXT NOT NULL DEFAULT '{}',
	messages            TEXT NOT NULL DEFAULT '[]',
	created_at          TEXT NOT NULL,
	updated_at          TEXT NOT NULL,
	last_interaction_at TEXT NOT NULL,
	expires_at          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_%s_org_id ON %s(org_id);
CREATE INDEX IF NOT EXISTS idx_%s_expires_at ON %s(expires_at);
`

// Migrate creates the sessions table and its indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	sqlText := fmt.Sprintf(sqliteMigrationTemplate, s.table, s.table, s.table, s.table, s.table)
	_, err := s.db.ExecContext(ctx, sqlText)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Timestamps are stored as RFC3339 strings so rows stay readable and
// portable across tooling.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*model.AgentSessionRecord, error) {
	var (
		r                    model.AgentSessionRecord
		userID               sql.NullString
		metadataJSON         string
		messagesJSON         string
		createdAt, updatedAt string
		lastInteraction      string
		expiresAt            string
	)

	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, org_id, user_id, channel, metadata, messages, created_at, updated_at, last_interaction_at, expires_at FROM %s WHERE id = ?`, s.table),
		sessionID,
	).Scan(&r.ID, &r.OrgID, &userID, &r.Channel, &metadataJSON, &messagesJSON,
		&createdAt, &updatedAt, &lastInteraction, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get session %s", sessionID)
	}
	if userID.Valid {
		r.UserID = userID.String
	}

	// Any unreadable column means the row is garbage; read it as absent.
	ok := json.Unmarshal([]byte(metadataJSON), &r.Metadata) == nil &&
		json.Unmarshal([]byte(messagesJSON), &r.Messages) == nil
	if ok {
		r.CreatedAt, err = parseTime(createdAt)
		ok = ok && err == nil
		r.UpdatedAt, err = parseTime(updatedAt)
		ok = ok && err == nil
		r.LastInteractionAt, err = parseTime(lastInteraction)
		ok = ok && err == nil
		r.ExpiresAt, err = parseTime(expiresAt)
		ok = ok && err == nil
	}
	if !ok {
		s.cleanupStale(sessionID, "corrupt row")
		return nil, nil
	}

	now := time.Now().UTC()
	if r.Expired(now) {
		s.cleanupStale(sessionID, "expired")
		return nil, nil
	}

	if s.ttl > 0 {
		if refreshed := now.Add(s.ttl); r.ExpiresAt.Before(refreshed) {
			r.ExpiresAt = refreshed
		}
	}

	return &r, nil
}

func (s *SQLiteStore) cleanupStale(sessionID, reason string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table), sessionID,
		); err != nil {
			zap.L().Warn("session: stale cleanup failed",
				zap.String("session_id", sessionID),
				zap.String("reason", reason),
				zap.Error(err),
			)
		}
	}()
}

func (s *SQLiteStore) Save(ctx context.Context, record *model.AgentSessionRecord) (*model.AgentSessionRecord, error) {
	now := time.Now().UTC()

	persisted := *record
	persisted.UpdatedAt = now
	if persisted.CreatedAt.IsZero() {
		persisted.CreatedAt = now
	}
	if persisted.LastInteractionAt.IsZero() {
		persisted.LastInteractionAt = now
	}
	if s.ttl > 0 {
		persisted.ExpiresAt = now.Add(s.ttl)
	}
	if persisted.ExpiresAt.IsZero() {
		return nil, eris.Errorf("session: save %s: expires_at required without a configured TTL", record.ID)
	}

	metadataJSON, err := json.Marshal(orEmptyMap(persisted.Metadata))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal metadata")
	}
	messagesJSON, err := json.Marshal(orEmptyMessages(persisted.Messages))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal messages")
	}

	var userID any
	if persisted.UserID != "" {
		userID = persisted.UserID
	}

	// On a conflicting upsert the row keeps its original created_at, so read
	// it back rather than returning the caller's value.
	var createdRaw string
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, org_id, user_id, channel, metadata, messages, created_at, updated_at, last_interaction_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   org_id = excluded.org_id, user_id = excluded.user_id, channel = excluded.channel,
		   metadata = excluded.metadata, messages = excluded.messages,
		   updated_at = excluded.updated_at, last_interaction_at = excluded.last_interaction_at,
		   expires_at = excluded.expires_at
		 RETURNING created_at`, s.table),
		persisted.ID, persisted.OrgID, userID, persisted.Channel,
		string(metadataJSON), string(messagesJSON),
		formatTime(persisted.CreatedAt), formatTime(persisted.UpdatedAt),
		formatTime(persisted.LastInteractionAt), formatTime(persisted.ExpiresAt),
	).Scan(&createdRaw)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: save session %s", record.ID)
	}
	created, err := parseTime(createdRaw)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: save session %s", record.ID)
	}
	persisted.CreatedAt = created

	return &persisted, nil
}

func (s *SQLiteStore) Touch(ctx context.Context, sessionID string, expiresAt *time.Time) error {
	now := time.Now().UTC()

	query := fmt.Sprintf(`UPDATE %s SET last_interaction_at = ? WHERE id = ?`, s.table)
	args := []any{formatTime(now), sessionID}

	switch {
	case expiresAt != nil:
		query = fmt.Sprintf(`UPDATE %s SET last_interaction_at = ?, expires_at = ? WHERE id = ?`, s.table)
		args = []any{formatTime(now), formatTime(*expiresAt), sessionID}
	case s.ttl > 0:
		query = fmt.Sprintf(`UPDATE %s SET last_interaction_at = ?, expires_at = ? WHERE id = ?`, s.table)
		args = []any{formatTime(now), formatTime(now.Add(s.ttl)), sessionID}
	}

	_, err := s.db.ExecContext(ctx, query, args...)
	return eris.Wrapf(err, "sqlite: touch session %s", sessionID)
}

func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table), sessionID,
	)
	return eris.Wrapf(err, "sqlite: delete session %s", sessionID)
}

// DeleteExpired sweeps rows whose expiry has passed.
func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= ?`, s.table),
		formatTime(time.Now()),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired sessions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired sessions rows affected")
	}
	return int(n), nil
}
