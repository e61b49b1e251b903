package models

import "time"

// SessionState is the lifecycle phase of the local session.
type SessionState string

const (
	// StateUninitialized means no remembered user or token exists; the UI
	// should route to login.
	StateUninitialized SessionState = "uninitialized"
	// StateLocalOnly means local data is published and no sync is running
	// (offline, or a previous sync degraded).
	StateLocalOnly SessionState = "local_only"
	// StateSyncing means a background refresh/sync is in flight.
	StateSyncing SessionState = "syncing"
	// StateSynced means the last background sync completed.
	StateSynced SessionState = "synced"
)

// SyncStatus is the externally visible progress of background sync.
type SyncStatus struct {
	IsSyncing    bool       `json:"is_syncing"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// Session is the process-wide auth/session state. It is owned exclusively by
// the session manager; other components read copies through accessors and
// never mutate it directly.
type Session struct {
	AuthToken        string     `json:"auth_token,omitempty"`
	UserID           string     `json:"user_id,omitempty"`
	RememberedUserID string     `json:"remembered_user_id,omitempty"`
	State            SessionState `json:"state"`
	Sync             SyncStatus `json:"sync"`
}

// Authenticated reports whether the session carries a signed-in user.
func (s Session) Authenticated() bool {
	return s.UserID != "" && s.AuthToken != ""
}
