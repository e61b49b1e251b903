// Package client talks to the remote collection service: authentication,
// token refresh, and CRUD on the records collection. The Client interface is
// what the services layer depends on; HTTPClient is the JSON-over-HTTP
// implementation. Transport and HTTP status errors are mapped onto the
// sentinel errors in internal/common so callers never branch on status codes.
//
// The package also owns local database bootstrap: opening the sqlite file
// and applying the embedded goose migrations.
package client
