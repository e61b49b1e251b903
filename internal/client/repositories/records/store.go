package records

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ilyakarpov/paycodes/internal/client/models"
	"github.com/ilyakarpov/paycodes/internal/dbx"
	"github.com/ilyakarpov/paycodes/internal/logging"
)

// Store provides the transactional multi-row operations of the record store.
// Every method runs inside a single transaction; a failure on any row rolls
// the whole batch back.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

// NewStore returns a Store over db.
func NewStore(db *sql.DB, logger logging.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// DB exposes the underlying handle for callers that compose their own
// transactions around the row-level Repository.
func (s *Store) DB() *sql.DB {
	return s.db
}

// BulkInsert inserts records atomically, skipping ids that already exist.
// Used to seed default guest records without clobbering user edits.
func (s *Store) BulkInsert(ctx context.Context, recs []models.PaymentRecord) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := NewRepository(tx)
		for i := range recs {
			if err := repo.InsertIgnore(ctx, &recs[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// BulkUpsert applies a batch of incoming rows under last-write-wins: each
// row lands only if strictly newer than the stored copy or owned by a
// different id. Replaying the same batch is a no-op.
func (s *Store) BulkUpsert(ctx context.Context, recs []models.PaymentRecord) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := NewRepository(tx)
		for i := range recs {
			if err := repo.UpsertLWW(ctx, &recs[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bulk upsert of %d records failed: %w", len(recs), err)
	}
	s.logger.Debug(ctx, "bulk upsert applied", "count", len(recs))
	return nil
}

// Reindex rewrites order_index for ownerID's records to match the given id
// order: ids[0] gets 0, ids[1] gets 1, and so on. Ids not owned by ownerID
// are skipped; owned records missing from ids are appended after, keeping
// their relative order. Runs in one transaction.
func (s *Store) Reindex(ctx context.Context, ownerID string, ids []string, now time.Time) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := NewRepository(tx)

		current, err := repo.ListByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		owned := make(map[string]bool, len(current))
		for _, rec := range current {
			owned[rec.ID] = true
		}

		next := 0
		placed := make(map[string]bool, len(ids))
		for _, id := range ids {
			if !owned[id] || placed[id] {
				continue
			}
			if err := repo.SetIndex(ctx, id, ownerID, next, now); err != nil {
				return err
			}
			placed[id] = true
			next++
		}
		for _, rec := range current {
			if placed[rec.ID] {
				continue
			}
			if err := repo.SetIndex(ctx, rec.ID, ownerID, next, now); err != nil {
				return err
			}
			next++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reindex for owner %q failed: %w", ownerID, err)
	}
	return nil
}
