package models

import (
	"fmt"
	"math"
	"time"

	"github.com/ilyakarpov/paycodes/internal/common"
)

// RecordFromRemote converts a decoded remote row into a PaymentRecord,
// rejecting malformed rows instead of silently coercing them. Every required
// field must be present and well-typed; account name/number are optional.
func RecordFromRemote(row map[string]any) (*PaymentRecord, error) {
	id, err := requireString(row, "id")
	if err != nil {
		return nil, err
	}
	ownerID, err := requireString(row, "owner_id")
	if err != nil {
		return nil, err
	}
	code, err := requireString(row, "code")
	if err != nil {
		return nil, err
	}
	metadataType, err := requireString(row, "metadata_type")
	if err != nil {
		return nil, err
	}
	if !ValidMetadataType(metadataType) {
		return nil, fmt.Errorf("%w: row %s: unknown metadata type %q", common.ErrValidation, id, metadataType)
	}
	metadata, err := requireString(row, "metadata")
	if err != nil {
		return nil, err
	}
	category, err := requireString(row, "category")
	if err != nil {
		return nil, err
	}
	if !ValidCategory(category) {
		return nil, fmt.Errorf("%w: row %s: unknown category %q", common.ErrValidation, id, category)
	}

	orderIndex, err := requireInt(row, "order_index")
	if err != nil {
		return nil, err
	}
	createdAt, err := requireTime(row, "created_at")
	if err != nil {
		return nil, err
	}
	updatedAt, err := requireTime(row, "updated_at")
	if err != nil {
		return nil, err
	}

	rec := &PaymentRecord{
		ID:            id,
		OwnerID:       ownerID,
		OrderIndex:    orderIndex,
		Code:          code,
		MetadataType:  MetadataType(metadataType),
		Metadata:      metadata,
		Category:      Category(category),
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
		IsDeleted:     false,
		IsSynced:      true, // fresh from the server, nothing pending
	}

	if v, ok := row["account_name"].(string); ok {
		rec.AccountName = v
	}
	if v, ok := row["account_number"].(string); ok {
		rec.AccountNumber = v
	}

	return rec, nil
}

// ToRemote builds the wire payload for a create or full update.
func (r *PaymentRecord) ToRemote() map[string]any {
	return map[string]any{
		"id":             r.ID,
		"owner_id":       r.OwnerID,
		"order_index":    r.OrderIndex,
		"code":           r.Code,
		"metadata_type":  string(r.MetadataType),
		"metadata":       r.Metadata,
		"account_name":   r.AccountName,
		"account_number": r.AccountNumber,
		"category":       string(r.Category),
		"created_at":     r.CreatedAt.UTC().Format(TimeLayout),
		"updated_at":     r.UpdatedAt.UTC().Format(TimeLayout),
	}
}

func requireString(row map[string]any, field string) (string, error) {
	v, ok := row[field]
	if !ok {
		return "", fmt.Errorf("%w: remote row missing field %q", common.ErrValidation, field)
	}
	s, ok := v.(string)
	if !ok || s == "" && field != "owner_id" {
		return "", fmt.Errorf("%w: remote row field %q is empty or not a string", common.ErrValidation, field)
	}
	return s, nil
}

func requireInt(row map[string]any, field string) (int, error) {
	v, ok := row[field]
	if !ok {
		return 0, fmt.Errorf("%w: remote row missing field %q", common.ErrValidation, field)
	}
	// encoding/json decodes numbers into float64.
	switch n := v.(type) {
	case float64:
		if n < 0 || n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: remote row field %q is not a non-negative integer", common.ErrValidation, field)
		}
		return int(n), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("%w: remote row field %q is negative", common.ErrValidation, field)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: remote row field %q is not a number", common.ErrValidation, field)
	}
}

func requireTime(row map[string]any, field string) (time.Time, error) {
	s, err := requireString(row, field)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: remote row field %q: %v", common.ErrValidation, field, err)
	}
	return t.UTC(), nil
}
