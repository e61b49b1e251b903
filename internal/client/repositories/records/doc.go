// Package records implements the embedded record store for payment codes.
//
// Two layers are exposed. Repository holds row-level operations and binds to
// a dbx.DBTX, so the same code runs against the bare handle or inside an open
// transaction (guest migration composes it that way). Store wraps *sql.DB
// and provides the multi-statement operations — bulk insert, bulk upsert,
// reindex — each as a single transaction with rollback on any step failure:
// no partial write is ever visible.
//
// Conflict policy for BulkUpsert is last-write-wins on updated_at: an
// incoming row overwrites a stored one only when it is strictly newer, or
// when the owner id differs (guest-to-user reassignment). Callers must keep
// updated_at monotonic per record.
package records
