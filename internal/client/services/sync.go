package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	remote "github.com/ilyakarpov/paycodes/internal/client/client"
	"github.com/ilyakarpov/paycodes/internal/client/models"
	"github.com/ilyakarpov/paycodes/internal/client/repositories/records"
	"github.com/ilyakarpov/paycodes/internal/common"
	"github.com/ilyakarpov/paycodes/internal/logging"
)

const (
	pullPageSize = 100
	// syncParallelism caps concurrent remote writes during a push.
	syncParallelism = 4
)

// SyncService reconciles the local record store with the remote collection.
// Push sends local changes (local wins while strictly newer); pull brings
// down remote rows past the watermark and lets the store's last-write-wins
// upsert settle conflicts.
type SyncService struct {
	client remote.Client
	repo   *records.Repository
	store  *records.Store
	logger logging.Logger
	now    func() time.Time
}

func NewSyncService(c remote.Client, repo *records.Repository, store *records.Store, logger logging.Logger) *SyncService {
	return &SyncService{client: c, repo: repo, store: store, logger: logger, now: time.Now}
}

// CollectPending returns local records awaiting a remote write. The guest
// owner never syncs, so it always yields empty slices.
func (s *SyncService) CollectPending(ctx context.Context, ownerID string) (toUpsert, toDelete []models.PaymentRecord, err error) {
	if ownerID == common.GuestOwnerID {
		return nil, nil, nil
	}
	toUpsert, err = s.repo.PendingUpserts(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	toDelete, err = s.repo.PendingDeletes(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	return toUpsert, toDelete, nil
}

// Push sends pending local changes to the remote collection: deletes first,
// then creates and updates. Records whose remote copy is newer or equal are
// skipped; the next pull resolves them. Everything confirmed remotely is
// flipped to synced in one batched local update, and confirmed deletions are
// purged from the local store.
func (s *SyncService) Push(ctx context.Context, token, ownerID string) error {
	toUpsert, toDelete, err := s.CollectPending(ctx, ownerID)
	if err != nil {
		return err
	}
	if len(toUpsert) == 0 && len(toDelete) == 0 {
		return nil
	}

	purged, err := s.pushDeletes(ctx, token, toDelete)
	if err != nil {
		return err
	}

	confirmed, err := s.pushUpserts(ctx, token, ownerID, toUpsert)
	if err != nil {
		return err
	}

	if err := s.repo.MarkSynced(ctx, confirmed); err != nil {
		return err
	}
	if err := s.repo.Purge(ctx, purged); err != nil {
		return err
	}

	s.logger.Info(ctx, "push finished",
		"owner", ownerID, "upserted", len(confirmed), "deleted", len(purged))
	return nil
}

// pushDeletes removes records remotely, in parallel and best-effort: a row
// already gone on the server counts as confirmed.
func (s *SyncService) pushDeletes(ctx context.Context, token string, toDelete []models.PaymentRecord) ([]string, error) {
	if len(toDelete) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	var confirmed []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncParallelism)
	for i := range toDelete {
		rec := toDelete[i]
		g.Go(func() error {
			err := s.client.Delete(gctx, token, rec.ID)
			if err != nil && !errors.Is(err, common.ErrNotFound) {
				return err
			}
			mu.Lock()
			confirmed = append(confirmed, rec.ID)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("remote delete failed: %w", err)
	}
	return confirmed, nil
}

// pushUpserts partitions pending records into creates and updates using
// batched remote existence checks, then issues both sets in parallel.
// The id filter is chunked so a server-side page cap can never truncate
// the result and misclassify an existing record as a create. Returns the
// ids confirmed by the server.
func (s *SyncService) pushUpserts(ctx context.Context, token, ownerID string, toUpsert []models.PaymentRecord) ([]string, error) {
	if len(toUpsert) == 0 {
		return nil, nil
	}

	ids := make([]string, len(toUpsert))
	for i, rec := range toUpsert {
		ids[i] = rec.ID
	}

	remoteUpdated := make(map[string]time.Time, len(ids))
	for start := 0; start < len(ids); start += pullPageSize {
		batch := ids[start:min(start+pullPageSize, len(ids))]
		res, err := s.client.List(ctx, token, remote.ListOptions{
			Filter:  remote.FilterAnd(remote.FilterOwner(ownerID), remote.FilterIDs(batch)),
			PerPage: len(batch),
		})
		if err != nil {
			return nil, fmt.Errorf("remote existence check failed: %w", err)
		}

		for _, row := range res.Items {
			id, _ := row["id"].(string)
			raw, _ := row["updated_at"].(string)
			t, err := time.Parse(models.TimeLayout, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: bad remote updated_at on %q", common.ErrValidation, id)
			}
			remoteUpdated[id] = t
		}
	}

	var mu sync.Mutex
	var confirmed []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncParallelism)
	for i := range toUpsert {
		rec := toUpsert[i]
		remoteAt, exists := remoteUpdated[rec.ID]
		if exists && !remoteAt.Before(rec.UpdatedAt) {
			// remote copy is newer or equal; the pull will bring it down
			continue
		}
		g.Go(func() error {
			var err error
			if exists {
				err = s.client.Update(gctx, token, rec.ID, rec.ToRemote())
			} else {
				err = s.client.Create(gctx, token, rec.ToRemote())
			}
			if err != nil {
				return err
			}
			mu.Lock()
			confirmed = append(confirmed, rec.ID)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("remote upsert failed: %w", err)
	}
	return confirmed, nil
}

// Pull pages through remote rows changed after the local watermark and hands
// them to the store's last-write-wins bulk upsert. Malformed rows abort the
// pull rather than being coerced.
func (s *SyncService) Pull(ctx context.Context, token, ownerID string) error {
	if ownerID == common.GuestOwnerID {
		return nil
	}

	watermark, err := s.repo.LatestSyncedUpdatedAt(ctx, ownerID)
	if err != nil {
		return err
	}

	filter := remote.FilterOwner(ownerID)
	if !watermark.IsZero() {
		filter = remote.FilterAnd(filter, remote.FilterUpdatedAfter(watermark))
	}

	total := 0
	for page := 1; ; page++ {
		res, err := s.client.List(ctx, token, remote.ListOptions{
			Filter:  filter,
			Sort:    "updated_at",
			Page:    page,
			PerPage: pullPageSize,
		})
		if err != nil {
			return fmt.Errorf("remote list failed: %w", err)
		}
		if len(res.Items) == 0 {
			break
		}

		batch := make([]models.PaymentRecord, 0, len(res.Items))
		for _, row := range res.Items {
			rec, err := models.RecordFromRemote(row)
			if err != nil {
				return err
			}
			batch = append(batch, *rec)
		}
		if err := s.store.BulkUpsert(ctx, batch); err != nil {
			return err
		}
		total += len(batch)

		if res.TotalPages > 0 && page >= res.TotalPages {
			break
		}
	}

	s.logger.Info(ctx, "pull finished", "owner", ownerID, "records", total)
	return nil
}

// Sync runs a full reconciliation: push local changes, then pull remote ones.
func (s *SyncService) Sync(ctx context.Context, token, ownerID string) error {
	if err := s.Push(ctx, token, ownerID); err != nil {
		return err
	}
	return s.Pull(ctx, token, ownerID)
}
