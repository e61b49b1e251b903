// Package services contains the application services of the wallet client:
// the session manager (login, token refresh, bootstrap, logout), the record
// service (CRUD, reorder, search), guest-data migration, and the sync
// coordinator (push/pull reconciliation with the remote collection).
//
// The services own the flow and the state transitions; storage semantics
// live in the repositories and conflict rules in the record store.
package services
