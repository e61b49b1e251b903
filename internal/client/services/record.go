package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ilyakarpov/paycodes/internal/client/catalog"
	"github.com/ilyakarpov/paycodes/internal/client/models"
	"github.com/ilyakarpov/paycodes/internal/client/repositories/records"
	"github.com/ilyakarpov/paycodes/internal/common"
	"github.com/ilyakarpov/paycodes/internal/logging"
)

// RecordInput carries the user-editable fields of a payment record.
type RecordInput struct {
	Code          string
	MetadataType  models.MetadataType
	Metadata      string
	AccountName   string
	AccountNumber string
	Category      models.Category
}

// RecordService is the UI-facing API over the record store. Every method
// reads and writes locally only; the sync coordinator reconciles with the
// remote in the background.
type RecordService struct {
	store   *records.Store
	repo    *records.Repository
	catalog catalog.Catalog
	logger  logging.Logger
	now     func() time.Time
}

func NewRecordService(store *records.Store, repo *records.Repository, cat catalog.Catalog, logger logging.Logger) *RecordService {
	return &RecordService{store: store, repo: repo, catalog: cat, logger: logger, now: time.Now}
}

func (s *RecordService) List(ctx context.Context, ownerID string) ([]models.PaymentRecord, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *RecordService) Get(ctx context.Context, ownerID, id string) (*models.PaymentRecord, error) {
	return s.repo.GetByID(ctx, id, ownerID)
}

// Add creates a record at the end of the owner's list.
func (s *RecordService) Add(ctx context.Context, ownerID string, in RecordInput) (*models.PaymentRecord, error) {
	index, err := s.repo.NextIndex(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := &models.PaymentRecord{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		OrderIndex:    index,
		Code:          in.Code,
		MetadataType:  in.MetadataType,
		Metadata:      in.Metadata,
		AccountName:   in.AccountName,
		AccountNumber: in.AccountNumber,
		Category:      in.Category,
		CreatedAt:     now,
	}
	rec.Touch(now)

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to add record: %w", err)
	}
	return rec, nil
}

// Update rewrites the editable fields of an existing record.
func (s *RecordService) Update(ctx context.Context, ownerID, id string, in RecordInput) (*models.PaymentRecord, error) {
	rec, err := s.repo.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	rec.Code = in.Code
	rec.MetadataType = in.MetadataType
	rec.Metadata = in.Metadata
	rec.AccountName = in.AccountName
	rec.AccountNumber = in.AccountNumber
	rec.Category = in.Category
	rec.Touch(s.now())

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.BulkUpsert(ctx, []models.PaymentRecord{*rec}); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete soft-deletes a record and closes the index gap. Guest records are
// purged outright since no remote confirmation will ever come.
func (s *RecordService) Delete(ctx context.Context, ownerID, id string) error {
	now := s.now()
	if err := s.repo.SoftDelete(ctx, id, ownerID, now); err != nil {
		return err
	}
	if ownerID == common.GuestOwnerID {
		if err := s.repo.Purge(ctx, []string{id}); err != nil {
			return err
		}
	}

	remaining, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	ids := make([]string, len(remaining))
	for i, rec := range remaining {
		ids[i] = rec.ID
	}
	return s.store.Reindex(ctx, ownerID, ids, now)
}

// Reorder applies a user-chosen ordering; ids omitted from the list keep
// their relative order after the listed ones.
func (s *RecordService) Reorder(ctx context.Context, ownerID string, ids []string) error {
	return s.store.Reindex(ctx, ownerID, ids, s.now())
}

// Search widens the query with provider codes from the catalog, so "kasikorn"
// finds records coded "KBANK-...".
func (s *RecordService) Search(ctx context.Context, ownerID, query string) ([]models.PaymentRecord, error) {
	providerCodes := s.catalog.ResolveAliases(query)
	return s.repo.Search(ctx, ownerID, query, providerCodes)
}

func (s *RecordService) FilterByCategory(ctx context.Context, ownerID string, category models.Category) ([]models.PaymentRecord, error) {
	return s.repo.FilterByCategory(ctx, ownerID, category)
}

// SeedGuestDefaults inserts starter guest records on first run without
// overwriting anything the user already changed.
func (s *RecordService) SeedGuestDefaults(ctx context.Context, recs []models.PaymentRecord) error {
	return s.store.BulkInsert(ctx, recs)
}
