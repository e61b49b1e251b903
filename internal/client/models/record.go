// Package models defines the payment-code record, the session state, and
// validation of remote payloads at the storage boundary.
package models

import (
	"fmt"
	"time"

	"github.com/ilyakarpov/paycodes/internal/common"
)

// MetadataType classifies how the code is rendered and scanned.
type MetadataType string

const (
	MetadataTypeQR      MetadataType = "qr"
	MetadataTypeBarcode MetadataType = "barcode"
)

// Category groups records by the kind of payment provider.
type Category string

const (
	CategoryBank    Category = "bank"
	CategoryStore   Category = "store"
	CategoryEwallet Category = "ewallet"

	// CategoryAll is a filter value, never stored on a record.
	CategoryAll Category = "all"
)

// TimeLayout is the canonical timestamp encoding: RFC 3339 UTC with
// nanoseconds, lexicographically sortable for the same zone.
const TimeLayout = time.RFC3339Nano

// PaymentRecord is a single stored payment code. OwnerID is empty for the
// guest owner; OrderIndex is unique and dense per owner among non-deleted
// rows. IsSynced means no further server write is required.
type PaymentRecord struct {
	ID            string       `json:"id"`
	OwnerID       string       `json:"owner_id"`
	OrderIndex    int          `json:"order_index"`
	Code          string       `json:"code"`
	MetadataType  MetadataType `json:"metadata_type"`
	Metadata      string       `json:"metadata"`
	AccountName   string       `json:"account_name,omitempty"`
	AccountNumber string       `json:"account_number,omitempty"`
	Category      Category     `json:"category"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	IsDeleted     bool         `json:"is_deleted"`
	IsSynced      bool         `json:"is_synced"`
}

// IsGuest reports whether the record belongs to the anonymous owner.
func (r *PaymentRecord) IsGuest() bool {
	return r.OwnerID == common.GuestOwnerID
}

// Touch bumps UpdatedAt and flips IsSynced according to the ownership rule:
// guest records have no remote counterpart and are always considered synced.
func (r *PaymentRecord) Touch(now time.Time) {
	r.UpdatedAt = now.UTC()
	r.IsSynced = r.IsGuest()
}

// ValidMetadataType reports whether s is a known metadata type.
func ValidMetadataType(s string) bool {
	switch MetadataType(s) {
	case MetadataTypeQR, MetadataTypeBarcode:
		return true
	}
	return false
}

// ValidCategory reports whether s is a category that may be stored on a
// record (CategoryAll is excluded).
func ValidCategory(s string) bool {
	switch Category(s) {
	case CategoryBank, CategoryStore, CategoryEwallet:
		return true
	}
	return false
}

// Validate checks the invariants enforced at the storage boundary.
func (r *PaymentRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: record id is empty", common.ErrValidation)
	}
	if r.Code == "" {
		return fmt.Errorf("%w: record code is empty", common.ErrValidation)
	}
	if !ValidMetadataType(string(r.MetadataType)) {
		return fmt.Errorf("%w: unknown metadata type %q", common.ErrValidation, r.MetadataType)
	}
	if !ValidCategory(string(r.Category)) {
		return fmt.Errorf("%w: unknown category %q", common.ErrValidation, r.Category)
	}
	if r.OrderIndex < 0 {
		return fmt.Errorf("%w: negative order index %d", common.ErrValidation, r.OrderIndex)
	}
	return nil
}
