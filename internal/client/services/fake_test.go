package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	remote "github.com/ilyakarpov/paycodes/internal/client/client"
	"github.com/ilyakarpov/paycodes/internal/client/migrations"
	"github.com/ilyakarpov/paycodes/internal/client/models"
	"github.com/ilyakarpov/paycodes/internal/client/repositories/preferences"
	"github.com/ilyakarpov/paycodes/internal/client/repositories/records"
	"github.com/ilyakarpov/paycodes/internal/client/vault"
	"github.com/ilyakarpov/paycodes/internal/common"
	"github.com/ilyakarpov/paycodes/internal/logging"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeClient is an in-memory remote.Client with call counters and
// overridable behavior per method.
type fakeClient struct {
	mu sync.Mutex

	authCalls    int
	refreshCalls int
	listCalls    int
	createCalls  int
	updateCalls  int
	deleteCalls  int

	authFunc    func(ctx context.Context, userID, password string) (*remote.AuthResult, error)
	refreshFunc func(ctx context.Context, token string) (string, error)
	listFunc    func(ctx context.Context, opts remote.ListOptions) (*remote.ListResult, error)
	createErr   error
	updateErr   error
	deleteFunc  func(id string) error

	created []map[string]any
	updated map[string]map[string]any
	deleted []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{updated: make(map[string]map[string]any)}
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) Authenticate(ctx context.Context, userID, password string) (*remote.AuthResult, error) {
	f.mu.Lock()
	f.authCalls++
	fn := f.authFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, userID, password)
	}
	return &remote.AuthResult{Token: makeToken("usr-1", baseTime.Add(time.Hour)), UserID: "usr-1"}, nil
}

func (f *fakeClient) Refresh(ctx context.Context, token string) (string, error) {
	f.mu.Lock()
	f.refreshCalls++
	fn := f.refreshFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, token)
	}
	return makeToken("usr-1", baseTime.Add(2*time.Hour)), nil
}

func (f *fakeClient) List(ctx context.Context, token string, opts remote.ListOptions) (*remote.ListResult, error) {
	f.mu.Lock()
	f.listCalls++
	fn := f.listFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, opts)
	}
	return &remote.ListResult{Page: 1, TotalPages: 1}, nil
}

func (f *fakeClient) Create(ctx context.Context, token string, row map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, row)
	return nil
}

func (f *fakeClient) Update(ctx context.Context, token, id string, row map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated[id] = row
	return nil
}

func (f *fakeClient) Delete(ctx context.Context, token, id string) error {
	f.mu.Lock()
	f.deleteCalls++
	fn := f.deleteFunc
	f.mu.Unlock()
	if fn != nil {
		if err := fn(id); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Ping(ctx context.Context) error { return nil }

func makeToken(subject string, expiresAt time.Time) string {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": expiresAt.Unix(),
	})
	signed, err := t.SignedString([]byte("test-secret"))
	if err != nil {
		panic(err)
	}
	return signed
}

// failingSecretStore keeps secrets in memory and can be told to reject
// writes, simulating a full or read-only disk.
type failingSecretStore struct {
	mu       sync.Mutex
	secrets  vault.Secrets
	failSave bool
}

func newFailingSecretStore() *failingSecretStore {
	return &failingSecretStore{secrets: vault.Secrets{Passwords: map[string]string{}}}
}

func (f *failingSecretStore) setFailSave(fail bool) {
	f.mu.Lock()
	f.failSave = fail
	f.mu.Unlock()
}

func (f *failingSecretStore) Load(_ context.Context) (*vault.Secrets, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := f.secrets
	cp.Passwords = make(map[string]string, len(f.secrets.Passwords))
	for k, v := range f.secrets.Passwords {
		cp.Passwords[k] = v
	}
	return &cp, nil
}

func (f *failingSecretStore) Save(_ context.Context, s *vault.Secrets) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return fmt.Errorf("%w: secret store write failed", common.ErrStorage)
	}
	f.secrets = *s
	return nil
}

func (f *failingSecretStore) Reset(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets = vault.Secrets{Passwords: map[string]string{}}
	return nil
}

func testLogger() logging.Logger {
	return logging.NewTextLogger(io.Discard, slog.LevelError)
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.UpContext(context.Background(), db, "."))
	return db
}

func newTestVault(t *testing.T, db *sql.DB) *vault.Vault {
	t.Helper()
	store := vault.NewFileStore(filepath.Join(t.TempDir(), "secrets.bin"), []byte("test-machine"))
	return vault.New(store, preferences.NewSQLiteRepository(db), testLogger())
}

func seedRecord(t *testing.T, db *sql.DB, id, ownerID string, index int, updatedAt time.Time, synced, deleted bool) {
	t.Helper()
	rec := models.PaymentRecord{
		ID:           id,
		OwnerID:      ownerID,
		OrderIndex:   index,
		Code:         "CODE-" + id,
		MetadataType: models.MetadataTypeQR,
		Metadata:     "payload-" + id,
		Category:     models.CategoryBank,
		CreatedAt:    baseTime,
		UpdatedAt:    updatedAt,
		IsSynced:     synced,
		IsDeleted:    deleted,
	}
	repo := records.NewRepository(db)
	require.NoError(t, repo.Insert(context.Background(), &rec))
}
