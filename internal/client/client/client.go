package client

import (
	"context"
)

// AuthResult is a successful authentication: the bearer token and the
// canonical user id it was issued for.
type AuthResult struct {
	Token  string
	UserID string
}

// ListOptions narrows a List call. Filter uses the collection filter
// expression syntax (see filter.go builders); Sort is a field name with an
// optional leading '-'. Page is 1-based.
type ListOptions struct {
	Filter  string
	Sort    string
	Page    int
	PerPage int
}

// ListResult is one page of collection rows. Items stay as raw maps; the
// models package validates and converts them at the storage boundary.
type ListResult struct {
	Items      []map[string]any
	Page       int
	PerPage    int
	TotalPages int
	TotalItems int
}

// Client is the remote collection service.
type Client interface {
	Close() error
	Authenticate(ctx context.Context, userID, password string) (*AuthResult, error)
	Refresh(ctx context.Context, token string) (string, error)
	List(ctx context.Context, token string, opts ListOptions) (*ListResult, error)
	Create(ctx context.Context, token string, row map[string]any) error
	Update(ctx context.Context, token, id string, row map[string]any) error
	Delete(ctx context.Context, token, id string) error
	Ping(ctx context.Context) error
}
