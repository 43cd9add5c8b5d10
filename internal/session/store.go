// Package session persists conversational agent sessions behind
// interchangeable backend drivers sharing one TTL-refresh policy.
package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/ibimina/ingest-core/internal/db"
	"github.com/ibimina/ingest-core/internal/model"
)

// Driver selects the storage substrate backing a Store.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverRedis    Driver = "redis"
	DriverSQLite   Driver = "sqlite"
)

const (
	// DefaultTable is the relational table sessions are stored in.
	DefaultTable = "agent_sessions"
	// DefaultNamespace prefixes every cache key.
	DefaultNamespace = "ibimina:agent:sessions"
)

// Store is the persistence contract the conversational agent handler talks
// to. Get returns (nil, nil) for missing, expired, or unreadable sessions.
// Concurrent writes to the same session id resolve to last-write-wins at the
// storage layer; callers needing strict ordering serialize per id themselves.
type Store interface {
	Get(ctx context.Context, sessionID string) (*model.AgentSessionRecord, error)
	// Save upserts the record and returns it as persisted, including any
	// store-applied expiry override. When the id already exists the stored
	// created_at wins over the caller's.
	Save(ctx context.Context, record *model.AgentSessionRecord) (*model.AgentSessionRecord, error)
	// Touch refreshes LastInteractionAt and, when a TTL is configured or an
	// explicit expiry is supplied, ExpiresAt, without rewriting the
	// transcript. A non-nil expiresAt overrides the configured TTL.
	Touch(ctx context.Context, sessionID string, expiresAt *time.Time) error
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

// Options configures New. Exactly one driver's connection inputs must be set:
// Pool or ConnString for postgres, Redis or RedisAddr for redis, SQLitePath
// for sqlite.
type Options struct {
	Driver Driver

	// Postgres driver.
	Pool       db.Pool
	ConnString string

	// Redis driver.
	Redis     redis.UniversalClient
	RedisAddr string

	// SQLite driver.
	SQLitePath string

	// Table overrides DefaultTable for relational drivers.
	Table string
	// Namespace overrides DefaultNamespace for the redis driver.
	Namespace string
	// TTLSeconds, when positive, makes the store own expiry: every save and
	// touch pushes ExpiresAt to now+TTL regardless of the caller's value.
	TTLSeconds int
}

func (o Options) ttl() time.Duration {
	if o.TTLSeconds <= 0 {
		return 0
	}
	return time.Duration(o.TTLSeconds) * time.Second
}

// New builds the driver selected by opts.Driver. Misconfiguration is a
// construction-time error, never deferred to first use.
func New(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverPostgres:
		if opts.Pool == nil && opts.ConnString == "" {
			return nil, eris.New("session: postgres driver requires a pool or connection string")
		}
		return newPostgres(ctx, opts)
	case DriverRedis:
		if opts.Redis == nil && opts.RedisAddr == "" {
			return nil, eris.New("session: redis driver requires a client or address")
		}
		return newRedis(opts), nil
	case DriverSQLite:
		if opts.SQLitePath == "" {
			return nil, eris.New("session: sqlite driver requires a database path")
		}
		return newSQLite(opts)
	default:
		return nil, eris.Errorf("session: unsupported driver %q", opts.Driver)
	}
}
