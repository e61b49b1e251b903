package records

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/ilyakarpov/paycodes/internal/client/migrations"
	"github.com/ilyakarpov/paycodes/internal/client/models"
	"github.com/ilyakarpov/paycodes/internal/common"
	"github.com/ilyakarpov/paycodes/internal/logging"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *Repository) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.UpContext(context.Background(), db, "."))

	logger := logging.NewTextLogger(io.Discard, slog.LevelError)
	return NewStore(db, logger), NewRepository(db)
}

func makeRecord(id, ownerID string, index int, updatedAt time.Time) models.PaymentRecord {
	return models.PaymentRecord{
		ID:           id,
		OwnerID:      ownerID,
		OrderIndex:   index,
		Code:         "CODE-" + id,
		MetadataType: models.MetadataTypeQR,
		Metadata:     "payload-" + id,
		Category:     models.CategoryBank,
		CreatedAt:    baseTime,
		UpdatedAt:    updatedAt,
		IsSynced:     ownerID == common.GuestOwnerID,
	}
}

func TestRepository_InsertGetList(t *testing.T) {
	_, repo := newTestStore(t)
	ctx := context.Background()

	a := makeRecord("a", "u1", 0, baseTime)
	b := makeRecord("b", "u1", 1, baseTime)
	require.NoError(t, repo.Insert(ctx, &a))
	require.NoError(t, repo.Insert(ctx, &b))

	got, err := repo.GetByID(ctx, "a", "u1")
	require.NoError(t, err)
	if diff := cmp.Diff(a, *got); diff != "" {
		t.Errorf("stored record differs from inserted (-want +got):\n%s", diff)
	}

	_, err = repo.GetByID(ctx, "a", "other")
	assert.ErrorIs(t, err, common.ErrNotFound)

	list, err := repo.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)

	has, err := repo.HasAny(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = repo.HasAny(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRepository_SoftDelete(t *testing.T) {
	_, repo := newTestStore(t)
	ctx := context.Background()

	user := makeRecord("u", "u1", 0, baseTime)
	guest := makeRecord("g", common.GuestOwnerID, 0, baseTime)
	require.NoError(t, repo.Insert(ctx, &user))
	require.NoError(t, repo.Insert(ctx, &guest))

	now := baseTime.Add(time.Minute)
	require.NoError(t, repo.SoftDelete(ctx, "u", "u1", now))
	require.NoError(t, repo.SoftDelete(ctx, "g", common.GuestOwnerID, now))

	// deleted rows disappear from reads
	_, err := repo.GetByID(ctx, "u", "u1")
	assert.ErrorIs(t, err, common.ErrNotFound)
	list, err := repo.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)

	// a user delete awaits remote confirmation, a guest delete does not
	dels, err := repo.PendingDeletes(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, dels, 1)
	assert.Equal(t, "u", dels[0].ID)
	assert.True(t, dels[0].UpdatedAt.Equal(now))

	dels, err = repo.PendingDeletes(ctx, common.GuestOwnerID)
	require.NoError(t, err)
	assert.Empty(t, dels)

	// deleting twice is not found
	assert.ErrorIs(t, repo.SoftDelete(ctx, "u", "u1", now), common.ErrNotFound)
}

func TestRepository_Purge(t *testing.T) {
	_, repo := newTestStore(t)
	ctx := context.Background()

	a := makeRecord("a", "u1", 0, baseTime)
	b := makeRecord("b", "u1", 1, baseTime)
	require.NoError(t, repo.Insert(ctx, &a))
	require.NoError(t, repo.Insert(ctx, &b))

	require.NoError(t, repo.Purge(ctx, []string{"a"}))
	require.NoError(t, repo.Purge(ctx, nil))

	var n int
	require.NoError(t, repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestRepository_NextIndex(t *testing.T) {
	_, repo := newTestStore(t)
	ctx := context.Background()

	next, err := repo.NextIndex(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, next)

	a := makeRecord("a", "u1", 4, baseTime)
	require.NoError(t, repo.Insert(ctx, &a))

	next, err = repo.NextIndex(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, next)
}

func TestRepository_MarkSyncedAndPending(t *testing.T) {
	_, repo := newTestStore(t)
	ctx := context.Background()

	a := makeRecord("a", "u1", 0, baseTime)
	b := makeRecord("b", "u1", 1, baseTime)
	require.NoError(t, repo.Insert(ctx, &a))
	require.NoError(t, repo.Insert(ctx, &b))

	pending, err := repo.PendingUpserts(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, repo.MarkSynced(ctx, []string{"a", "b"}))

	pending, err = repo.PendingUpserts(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRepository_LatestSyncedUpdatedAt(t *testing.T) {
	_, repo := newTestStore(t)
	ctx := context.Background()

	wm, err := repo.LatestSyncedUpdatedAt(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, wm.IsZero())

	a := makeRecord("a", "u1", 0, baseTime)
	b := makeRecord("b", "u1", 1, baseTime.Add(time.Hour))
	require.NoError(t, repo.Insert(ctx, &a))
	require.NoError(t, repo.Insert(ctx, &b))

	// unsynced rows never advance the watermark
	wm, err = repo.LatestSyncedUpdatedAt(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, wm.IsZero())

	require.NoError(t, repo.MarkSynced(ctx, []string{"a", "b"}))

	wm, err = repo.LatestSyncedUpdatedAt(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, wm.Equal(baseTime.Add(time.Hour)))
}

func TestRepository_ReassignOwner(t *testing.T) {
	_, repo := newTestStore(t)
	ctx := context.Background()

	g := makeRecord("g", common.GuestOwnerID, 0, baseTime)
	require.NoError(t, repo.Insert(ctx, &g))

	now := baseTime.Add(time.Minute)
	require.NoError(t, repo.ReassignOwner(ctx, "g", "u1", 3, now))

	got, err := repo.GetByID(ctx, "g", "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.OwnerID)
	assert.Equal(t, 3, got.OrderIndex)
	assert.False(t, got.IsSynced)
	assert.True(t, got.UpdatedAt.Equal(now))

	assert.Error(t, repo.ReassignOwner(ctx, "missing", "u1", 0, now))
}

func TestRepository_SearchAndFilter(t *testing.T) {
	_, repo := newTestStore(t)
	ctx := context.Background()

	bank := models.PaymentRecord{
		ID: "r1", OwnerID: "u1", OrderIndex: 0, Code: "KBANK-001",
		MetadataType: models.MetadataTypeQR, Metadata: "m1",
		AccountName: "Alice Savings", AccountNumber: "123456",
		Category: models.CategoryBank, CreatedAt: baseTime, UpdatedAt: baseTime,
	}
	store := models.PaymentRecord{
		ID: "r2", OwnerID: "u1", OrderIndex: 1, Code: "SEVEN-777",
		MetadataType: models.MetadataTypeBarcode, Metadata: "m2",
		Category: models.CategoryStore, CreatedAt: baseTime, UpdatedAt: baseTime,
	}
	require.NoError(t, repo.Insert(ctx, &bank))
	require.NoError(t, repo.Insert(ctx, &store))

	got, err := repo.Search(ctx, "u1", "alice", nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)

	// provider codes widen the match beyond the literal query
	got, err = repo.Search(ctx, "u1", "no-direct-match", []string{"SEVEN"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r2", got[0].ID)

	got, err = repo.FilterByCategory(ctx, "u1", models.CategoryStore)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r2", got[0].ID)

	got, err = repo.FilterByCategory(ctx, "u1", models.CategoryAll)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestStore_BulkInsert_SkipsExisting(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	orig := makeRecord("a", common.GuestOwnerID, 0, baseTime)
	orig.Code = "EDITED-BY-USER"
	require.NoError(t, repo.Insert(ctx, &orig))

	seed := []models.PaymentRecord{
		makeRecord("a", common.GuestOwnerID, 0, baseTime),
		makeRecord("b", common.GuestOwnerID, 1, baseTime),
	}
	require.NoError(t, store.BulkInsert(ctx, seed))

	got, err := repo.GetByID(ctx, "a", common.GuestOwnerID)
	require.NoError(t, err)
	assert.Equal(t, "EDITED-BY-USER", got.Code, "existing row must not be overwritten")

	list, err := repo.ListByOwner(ctx, common.GuestOwnerID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestStore_BulkUpsert_LastWriteWins(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	local := makeRecord("a", "u1", 0, baseTime)
	local.Code = "LOCAL"
	require.NoError(t, repo.Insert(ctx, &local))

	older := makeRecord("a", "u1", 0, baseTime.Add(-time.Hour))
	older.Code = "OLDER"
	equal := makeRecord("a", "u1", 0, baseTime)
	equal.Code = "EQUAL"
	require.NoError(t, store.BulkUpsert(ctx, []models.PaymentRecord{older, equal}))

	got, err := repo.GetByID(ctx, "a", "u1")
	require.NoError(t, err)
	assert.Equal(t, "LOCAL", got.Code, "older and equal timestamps must not overwrite")

	newer := makeRecord("a", "u1", 2, baseTime.Add(time.Hour))
	newer.Code = "NEWER"
	fresh := makeRecord("b", "u1", 1, baseTime)
	fresh.Code = "FRESH"
	require.NoError(t, store.BulkUpsert(ctx, []models.PaymentRecord{newer, fresh}))

	got, err = repo.GetByID(ctx, "a", "u1")
	require.NoError(t, err)
	assert.Equal(t, "NEWER", got.Code)
	assert.Equal(t, 2, got.OrderIndex)

	got, err = repo.GetByID(ctx, "b", "u1")
	require.NoError(t, err)
	assert.Equal(t, "FRESH", got.Code)

	// replaying the exact batch changes nothing
	require.NoError(t, store.BulkUpsert(ctx, []models.PaymentRecord{newer, fresh}))
	got, err = repo.GetByID(ctx, "a", "u1")
	require.NoError(t, err)
	assert.Equal(t, "NEWER", got.Code)
}

func TestStore_BulkUpsert_OwnerChangeOverrides(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	local := makeRecord("a", common.GuestOwnerID, 0, baseTime)
	require.NoError(t, repo.Insert(ctx, &local))

	// owner reassignment wins even with an older timestamp
	moved := makeRecord("a", "u1", 0, baseTime.Add(-time.Hour))
	moved.Code = "MOVED"
	require.NoError(t, store.BulkUpsert(ctx, []models.PaymentRecord{moved}))

	got, err := repo.GetByID(ctx, "a", "u1")
	require.NoError(t, err)
	assert.Equal(t, "MOVED", got.Code)

	_, err = repo.GetByID(ctx, "a", common.GuestOwnerID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestStore_Reindex(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		rec := makeRecord(id, "u1", i, baseTime)
		require.NoError(t, repo.Insert(ctx, &rec))
	}
	foreign := makeRecord("x", "u2", 0, baseTime)
	require.NoError(t, repo.Insert(ctx, &foreign))

	now := baseTime.Add(time.Minute)
	// "x" belongs to another owner and must be ignored; "a" is missing from
	// the ordering and gets appended after the listed ids
	require.NoError(t, store.Reindex(ctx, "u1", []string{"c", "x", "b"}, now))

	list, err := repo.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{list[0].ID, list[1].ID, list[2].ID})
	for i, rec := range list {
		assert.Equal(t, i, rec.OrderIndex)
	}

	// the foreign owner's ordering is untouched
	other, err := repo.ListByOwner(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, 0, other[0].OrderIndex)
}

func TestStore_Reindex_AfterDeleteKeepsDense(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		rec := makeRecord(id, "u1", i, baseTime)
		require.NoError(t, repo.Insert(ctx, &rec))
	}
	now := baseTime.Add(time.Minute)
	require.NoError(t, repo.SoftDelete(ctx, "b", "u1", now))
	require.NoError(t, store.Reindex(ctx, "u1", []string{"a", "c"}, now))

	list, err := repo.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 0, list[0].OrderIndex)
	assert.Equal(t, 1, list[1].OrderIndex)
}
