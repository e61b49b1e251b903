package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ilyakarpov/paycodes/internal/common"
	"github.com/ilyakarpov/paycodes/internal/client/repositories/records"
	"github.com/ilyakarpov/paycodes/internal/dbx"
	"github.com/ilyakarpov/paycodes/internal/logging"
)

// MigrationService moves guest-owned records to an authenticated owner.
// The transfer is all-or-nothing: silently losing guest data during login
// is unacceptable, so any failure rolls the whole batch back and halts the
// login flow.
type MigrationService struct {
	db     *sql.DB
	logger logging.Logger
	now    func() time.Time
}

func NewMigrationService(db *sql.DB, logger logging.Logger) *MigrationService {
	return &MigrationService{db: db, logger: logger, now: time.Now}
}

// TransferGuestData reassigns every non-deleted guest record to newOwnerID,
// appending after the owner's existing records with contiguous indices.
// Returns the number of records moved. An empty or guest newOwnerID is a
// warned no-op.
func (m *MigrationService) TransferGuestData(ctx context.Context, newOwnerID string) (int, error) {
	if newOwnerID == common.GuestOwnerID {
		m.logger.Warn(ctx, "guest migration skipped: target owner is empty")
		return 0, nil
	}

	moved := 0
	err := dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := records.NewRepository(tx)

		guests, err := repo.ListByOwner(ctx, common.GuestOwnerID)
		if err != nil {
			return err
		}
		if len(guests) == 0 {
			return nil
		}

		start, err := repo.NextIndex(ctx, newOwnerID)
		if err != nil {
			return err
		}

		now := m.now()
		for i := range guests {
			if err := repo.ReassignOwner(ctx, guests[i].ID, newOwnerID, start+i, now); err != nil {
				return err
			}
		}
		moved = len(guests)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: guest migration failed: %v", common.ErrStorage, err)
	}

	if moved > 0 {
		m.logger.Info(ctx, "guest records migrated", "owner", newOwnerID, "count", moved)
	}
	return moved, nil
}
