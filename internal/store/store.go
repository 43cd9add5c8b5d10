// Package store persists the normalized transactions the provider adapters
// produce, deduplicated on (org_id, txn_id) so re-ingesting a statement is
// idempotent.
package store

import (
	"context"

	"github.com/ibimina/ingest-core/internal/model"
)

// TransactionStore is the sink ingestion writes parsed transactions to.
type TransactionStore interface {
	// SaveBatch upserts the successful results of one ingestion run and
	// returns the number of rows written. Failed results are skipped.
	SaveBatch(ctx context.Context, orgID, source string, results []model.ParseResult) (int64, error)
	Migrate(ctx context.Context) error
	Close() error
}
