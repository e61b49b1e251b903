package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakarpov/paycodes/internal/client/models"
	"github.com/ilyakarpov/paycodes/internal/common"
	"github.com/ilyakarpov/paycodes/internal/dbx"
)

const recordColumns = `id, owner_id, order_index, code, metadata_type, metadata,
	account_name, account_number, category, created_at, updated_at, is_deleted, is_synced`

// Repository implements row-level record operations over a DBTX
// (either *sql.DB or *sql.Tx).
type Repository struct {
	db dbx.DBTX
}

// NewRepository returns a Repository bound to the given DBTX.
func NewRepository(db dbx.DBTX) *Repository {
	return &Repository{db: db}
}

// GetByID returns a single non-deleted record scoped to ownerID.
// Returns common.ErrNotFound when no such row exists.
func (r *Repository) GetByID(ctx context.Context, id, ownerID string) (*models.PaymentRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = ? AND owner_id = ? AND is_deleted = 0`
	row := r.db.QueryRowContext(ctx, query, id, ownerID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	return rec, nil
}

// ListByOwner lists non-deleted records for ownerID ordered by order_index.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]models.PaymentRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM records
		WHERE owner_id = ? AND is_deleted = 0 ORDER BY order_index ASC`
	return r.queryRecords(ctx, query, ownerID)
}

// HasAny reports whether ownerID has at least one non-deleted record.
func (r *Repository) HasAny(ctx context.Context, ownerID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE owner_id = ? AND is_deleted = 0`, ownerID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count records: %w", err)
	}
	return n > 0, nil
}

// Insert adds a new record row.
func (r *Repository) Insert(ctx context.Context, rec *models.PaymentRecord) error {
	query := `INSERT INTO records (` + recordColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, recordArgs(rec)...)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// InsertIgnore adds a record unless a row with the same id already exists;
// existing rows are silently skipped, never overwritten.
func (r *Repository) InsertIgnore(ctx context.Context, rec *models.PaymentRecord) error {
	query := `INSERT OR IGNORE INTO records (` + recordColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, recordArgs(rec)...)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// UpsertLWW inserts rec, or overwrites the stored row only when the incoming
// updated_at is strictly newer or the owner id differs. Anything else is a
// skip, so replaying the same batch is idempotent.
func (r *Repository) UpsertLWW(ctx context.Context, rec *models.PaymentRecord) error {
	var storedOwner, storedUpdated string
	err := r.db.QueryRowContext(ctx,
		`SELECT owner_id, updated_at FROM records WHERE id = ?`, rec.ID).
		Scan(&storedOwner, &storedUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return r.Insert(ctx, rec)
	}
	if err != nil {
		return fmt.Errorf("failed to read stored record %s: %w", rec.ID, err)
	}

	if storedOwner == rec.OwnerID {
		stored, err := time.Parse(models.TimeLayout, storedUpdated)
		if err != nil {
			return fmt.Errorf("corrupt updated_at on record %s: %w", rec.ID, err)
		}
		if !rec.UpdatedAt.After(stored) {
			return nil
		}
	}

	query := `UPDATE records SET owner_id = ?, order_index = ?, code = ?, metadata_type = ?,
		metadata = ?, account_name = ?, account_number = ?, category = ?,
		created_at = ?, updated_at = ?, is_deleted = ?, is_synced = ?
		WHERE id = ?`
	_, err = r.db.ExecContext(ctx, query,
		rec.OwnerID, rec.OrderIndex, rec.Code, string(rec.MetadataType),
		rec.Metadata, rec.AccountName, rec.AccountNumber, string(rec.Category),
		rec.CreatedAt.UTC().Format(models.TimeLayout), rec.UpdatedAt.UTC().Format(models.TimeLayout),
		boolToInt(rec.IsDeleted), boolToInt(rec.IsSynced), rec.ID)
	if err != nil {
		return fmt.Errorf("failed to overwrite record %s: %w", rec.ID, err)
	}
	return nil
}

// SoftDelete marks a record deleted and stamps updated_at. Guest-owned rows
// stay "synced" because there is no remote counterpart to delete.
func (r *Repository) SoftDelete(ctx context.Context, id, ownerID string, now time.Time) error {
	synced := 0
	if ownerID == common.GuestOwnerID {
		synced = 1
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE records SET is_deleted = 1, updated_at = ?, is_synced = ? WHERE id = ? AND owner_id = ? AND is_deleted = 0`,
		now.UTC().Format(models.TimeLayout), synced, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

// Purge physically removes rows by id. Used once a remote deletion has been
// confirmed, and immediately for guest-owned deletes.
func (r *Repository) Purge(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `DELETE FROM records WHERE id IN (` + placeholders(len(ids)) + `)`
	_, err := r.db.ExecContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("failed to purge records: %w", err)
	}
	return nil
}

// SetIndex rewrites order_index for one record, stamping updated_at and the
// sync flag per the ownership rule.
func (r *Repository) SetIndex(ctx context.Context, id, ownerID string, index int, now time.Time) error {
	synced := 0
	if ownerID == common.GuestOwnerID {
		synced = 1
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE records SET order_index = ?, updated_at = ?, is_synced = ? WHERE id = ? AND owner_id = ?`,
		index, now.UTC().Format(models.TimeLayout), synced, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to set index on record %s: %w", id, err)
	}
	return nil
}

// ReassignOwner moves a record to a new owner with a new order index,
// marking it unsynced so the next push creates it remotely.
func (r *Repository) ReassignOwner(ctx context.Context, id, newOwnerID string, index int, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE records SET owner_id = ?, order_index = ?, is_synced = 0, updated_at = ? WHERE id = ?`,
		newOwnerID, index, now.UTC().Format(models.TimeLayout), id)
	if err != nil {
		return fmt.Errorf("failed to reassign record %s: %w", id, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}

// NextIndex returns max(order_index)+1 over non-deleted records of ownerID,
// or 0 when the owner has none.
func (r *Repository) NextIndex(ctx context.Context, ownerID string) (int, error) {
	var max sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(order_index) FROM records WHERE owner_id = ? AND is_deleted = 0`, ownerID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next index: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

// MarkSynced flips is_synced on every given id in one statement.
func (r *Repository) MarkSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE records SET is_synced = 1 WHERE id IN (` + placeholders(len(ids)) + `)`
	_, err := r.db.ExecContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("failed to mark records synced: %w", err)
	}
	return nil
}

// PendingUpserts lists live records awaiting a remote create/update.
func (r *Repository) PendingUpserts(ctx context.Context, ownerID string) ([]models.PaymentRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM records
		WHERE owner_id = ? AND is_synced = 0 AND is_deleted = 0 ORDER BY order_index ASC`
	return r.queryRecords(ctx, query, ownerID)
}

// PendingDeletes lists soft-deleted records whose remote deletion has not
// been confirmed yet.
func (r *Repository) PendingDeletes(ctx context.Context, ownerID string) ([]models.PaymentRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM records
		WHERE owner_id = ? AND is_synced = 0 AND is_deleted = 1`
	return r.queryRecords(ctx, query, ownerID)
}

// LatestSyncedUpdatedAt returns the pull watermark: the newest updated_at
// among synced rows of ownerID. The zero time means "pull everything".
func (r *Repository) LatestSyncedUpdatedAt(ctx context.Context, ownerID string) (time.Time, error) {
	var max sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(updated_at) FROM records WHERE owner_id = ? AND is_synced = 1`, ownerID).Scan(&max)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read watermark: %w", err)
	}
	if !max.Valid {
		return time.Time{}, nil
	}
	t, err := time.Parse(models.TimeLayout, max.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt watermark %q: %w", max.String, err)
	}
	return t, nil
}

// Search matches query against code, metadata, account name/number and
// category, plus any provider codes resolved from the catalog by the caller.
// The query matches as case-insensitive substring; provider codes match as a
// code prefix, since record codes embed them ("KBANK-001").
func (r *Repository) Search(ctx context.Context, ownerID, query string, providerCodes []string) ([]models.PaymentRecord, error) {
	like := "%" + strings.ToLower(query) + "%"
	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + recordColumns + ` FROM records
		WHERE owner_id = ? AND is_deleted = 0 AND (
			LOWER(code) LIKE ? OR LOWER(metadata) LIKE ? OR LOWER(account_name) LIKE ?
			OR LOWER(account_number) LIKE ? OR LOWER(category) LIKE ?`)
	args := []any{ownerID, like, like, like, like, like}
	for _, code := range providerCodes {
		sb.WriteString(` OR UPPER(code) LIKE ?`)
		args = append(args, strings.ToUpper(code)+"%")
	}
	sb.WriteString(`) ORDER BY order_index ASC`)

	return r.queryRecords(ctx, sb.String(), args...)
}

// FilterByCategory lists an owner's records in one category, or all records
// when category is models.CategoryAll.
func (r *Repository) FilterByCategory(ctx context.Context, ownerID string, category models.Category) ([]models.PaymentRecord, error) {
	if category == models.CategoryAll {
		return r.ListByOwner(ctx, ownerID)
	}
	query := `SELECT ` + recordColumns + ` FROM records
		WHERE owner_id = ? AND category = ? AND is_deleted = 0 ORDER BY order_index ASC`
	return r.queryRecords(ctx, query, ownerID, string(category))
}

func (r *Repository) queryRecords(ctx context.Context, query string, args ...any) ([]models.PaymentRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []models.PaymentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.PaymentRecord, error) {
	var (
		rec                  models.PaymentRecord
		metadataType, cat    string
		createdAt, updatedAt string
		deleted, synced      int
	)
	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.OrderIndex, &rec.Code, &metadataType,
		&rec.Metadata, &rec.AccountName, &rec.AccountNumber, &cat,
		&createdAt, &updatedAt, &deleted, &synced)
	if err != nil {
		return nil, err
	}

	rec.MetadataType = models.MetadataType(metadataType)
	rec.Category = models.Category(cat)
	rec.IsDeleted = deleted != 0
	rec.IsSynced = synced != 0

	if rec.CreatedAt, err = time.Parse(models.TimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at on record %s: %w", rec.ID, err)
	}
	if rec.UpdatedAt, err = time.Parse(models.TimeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("corrupt updated_at on record %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func recordArgs(rec *models.PaymentRecord) []any {
	return []any{
		rec.ID, rec.OwnerID, rec.OrderIndex, rec.Code, string(rec.MetadataType),
		rec.Metadata, rec.AccountName, rec.AccountNumber, string(rec.Category),
		rec.CreatedAt.UTC().Format(models.TimeLayout), rec.UpdatedAt.UTC().Format(models.TimeLayout),
		boolToInt(rec.IsDeleted), boolToInt(rec.IsSynced),
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
