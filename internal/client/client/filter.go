package client

import (
	"strings"
	"time"

	"github.com/ilyakarpov/paycodes/internal/client/models"
)

// Filter builders for the collection query language. Values are wrapped in
// single quotes with embedded quotes doubled.

func quoteFilterValue(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// FilterIDs matches any of the given record ids: id='a' || id='b'.
func FilterIDs(ids []string) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, "id="+quoteFilterValue(id))
	}
	return strings.Join(parts, " || ")
}

// FilterUpdatedAfter matches rows changed strictly after t.
func FilterUpdatedAfter(t time.Time) string {
	return "updated_at>" + quoteFilterValue(t.UTC().Format(models.TimeLayout))
}

// FilterOwner matches rows of one owner.
func FilterOwner(ownerID string) string {
	return "owner_id=" + quoteFilterValue(ownerID)
}

// FilterAnd joins non-empty clauses with &&, parenthesizing each.
func FilterAnd(clauses ...string) string {
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c == "" {
			continue
		}
		parts = append(parts, "("+c+")")
	}
	return strings.Join(parts, " && ")
}
