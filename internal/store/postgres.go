package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/ibimina/ingest-core/internal/db"
	"github.com/ibimina/ingest-core/internal/model"
)

// DefaultTransactionsTable is the relational table parsed transactions land in.
const DefaultTransactionsTable = "parsed_transactions"

var transactionColumns = []string{
	"org_id", "txn_id", "amount", "occurred_at", "payer_msisdn",
	"raw_reference", "balance", "confidence", "source", "raw_data", "ingested_at",
}

// PostgresStore implements TransactionStore over a pgx connection pool using
// the bulk upsert path, so large statement files land in one round trip.
type PostgresStore struct {
	pool       db.Pool
	table      string
	appendOnly bool
	closeFn    func()
}

// Options configures NewPostgres. Pool wins over ConnString when both are set.
type Options struct {
	Pool       db.Pool
	ConnString string
	Table      string
	// AppendOnly switches SaveBatch to a plain COPY, skipping conflict
	// handling. Use it for backfills into a table known not to hold any of
	// the incoming (org_id, txn_id) pairs; a collision fails the batch.
	AppendOnly bool
}

// NewPostgres builds the postgres-backed transaction store.
func NewPostgres(ctx context.Context, opts Options) (*PostgresStore, error) {
	s := &PostgresStore{pool: opts.Pool, table: opts.Table, appendOnly: opts.AppendOnly}
	if s.table == "" {
		s.table = DefaultTransactionsTable
	}

	if s.pool == nil {
		if opts.ConnString == "" {
			return nil, eris.New("store: postgres requires a pool or connection string")
		}
		pool, err := pgxpool.New(ctx, opts.ConnString)
		if err != nil {
			return nil, eris.Wrap(err, "store: create pool")
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, eris.Wrap(err, "store: ping")
		}
		s.pool = pool
		s.closeFn = pool.Close
	}

	return s, nil
}

const transactionsMigrationTemplate = `
CREATE TABLE IF NOT EXISTS %s (
	org_id        TEXT NOT NULL,
	txn_id        TEXT NOT NULL,
	amount        DOUBLE PRECISION NOT NULL,
	occurred_at   TIMESTAMPTZ NOT NULL,
	payer_msisdn  TEXT,
	raw_reference TEXT,
	balance       DOUBLE PRECISION,
	confidence    DOUBLE PRECISION NOT NULL,
	source        TEXT NOT NULL,
	raw_data      JSONB NOT NULL DEFAULT '{}',
	ingested_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (org_id, txn_id)
);

CREATE INDEX IF NOT EXISTS idx_%s_occurred_at ON %s(occurred_at);
CREATE INDEX IF NOT EXISTS idx_%s_raw_reference ON %s(raw_reference);
`

// Migrate creates the transactions table and its indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	sql := fmt.Sprintf(transactionsMigrationTemplate, s.table, s.table, s.table, s.table, s.table)
	_, err := s.pool.Exec(ctx, sql)
	return eris.Wrap(err, "store: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveBatch(ctx context.Context, orgID, source string, results []model.ParseResult) (int64, error) {
	now := time.Now().UTC()

	rows := make([][]any, 0, len(results))
	for _, r := range results {
		if !r.Success || r.Transaction == nil {
			continue
		}
		txn := r.Transaction

		rawJSON, err := json.Marshal(txn.RawData)
		if err != nil {
			return 0, eris.Wrapf(err, "store: marshal raw data for %s", txn.TxnID)
		}

		var msisdn, reference any
		if txn.PayerMSISDN != "" {
			msisdn = txn.PayerMSISDN
		}
		if txn.RawReference != "" {
			reference = txn.RawReference
		}
		var balance any
		if txn.Balance != nil {
			balance = *txn.Balance
		}

		rows = append(rows, []any{
			orgID, txn.TxnID, txn.Amount, txn.Timestamp, msisdn,
			reference, balance, r.Confidence, source, rawJSON, now,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if s.appendOnly {
		return db.CopyInto(ctx, s.pool, s.table, transactionColumns, rows)
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        s.table,
		Columns:      transactionColumns,
		ConflictKeys: []string{"org_id", "txn_id"},
	}, rows)
}
