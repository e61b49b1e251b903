package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	remote "github.com/ilyakarpov/paycodes/internal/client/client"
	"github.com/ilyakarpov/paycodes/internal/client/models"
	"github.com/ilyakarpov/paycodes/internal/client/vault"
	"github.com/ilyakarpov/paycodes/internal/common"
	"github.com/ilyakarpov/paycodes/internal/logging"
	"github.com/ilyakarpov/paycodes/internal/netx"
	"github.com/ilyakarpov/paycodes/internal/retryx"
)

const (
	// maxRefreshRetries bounds token-refresh attempts. No backoff: each
	// attempt is a single round-trip, not a batch.
	maxRefreshRetries = 2

	minSecretLength = 8
)

// Migrator moves guest data to an authenticated owner during login.
type Migrator interface {
	TransferGuestData(ctx context.Context, newOwnerID string) (int, error)
}

// Syncer runs a full push/pull reconciliation.
type Syncer interface {
	Sync(ctx context.Context, token, ownerID string) error
}

// SessionService drives the session state machine:
//
//	Uninitialized -> LocalOnly -> Syncing -> Synced
//
// with Syncing -> LocalOnly on any non-fatal failure. Local data is always
// served first; network work happens afterwards and never blocks a read.
type SessionService struct {
	client   remote.Client
	vault    *vault.Vault
	monitor  *netx.Monitor
	migrator Migrator
	syncer   Syncer
	logger   logging.Logger

	loginTimeout time.Duration
	loginRetries int
	now          func() time.Time

	mu      sync.Mutex
	session models.Session

	// refreshMu is the single-flight guard: TryLock fails fast for a
	// second concurrent refresh instead of queueing it.
	refreshMu sync.Mutex
}

func NewSessionService(
	c remote.Client,
	v *vault.Vault,
	monitor *netx.Monitor,
	migrator Migrator,
	syncer Syncer,
	logger logging.Logger,
	loginTimeout time.Duration,
	loginRetries int,
) *SessionService {
	return &SessionService{
		client:       c,
		vault:        v,
		monitor:      monitor,
		migrator:     migrator,
		syncer:       syncer,
		logger:       logger,
		loginTimeout: loginTimeout,
		loginRetries: loginRetries,
		now:          time.Now,
		session:      models.Session{State: models.StateUninitialized},
	}
}

// Session returns a copy of the current session.
func (s *SessionService) Session() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *SessionService) setState(state models.SessionState) {
	s.mu.Lock()
	s.session.State = state
	s.session.Sync.IsSyncing = state == models.StateSyncing
	s.mu.Unlock()
}

// Bootstrap restores the persisted session. It never touches the network:
// the caller gets the local state immediately and decides whether to kick
// off RefreshToken or SyncNow in the background.
func (s *SessionService) Bootstrap(ctx context.Context) (models.Session, error) {
	remembered, err := s.vault.RememberedUser(ctx)
	if err != nil {
		return models.Session{}, err
	}
	token, err := s.vault.Token(ctx)
	if err != nil {
		return models.Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = models.Session{State: models.StateUninitialized, RememberedUserID: remembered}
	if token == "" {
		return s.session, nil
	}

	userID, _, err := InspectToken(token)
	if err != nil {
		// an unreadable token is as good as no token
		s.logger.Warn(ctx, "stored token is malformed, ignoring")
		return s.session, nil
	}

	s.session.AuthToken = token
	s.session.UserID = userID
	s.session.State = models.StateLocalOnly
	return s.session, nil
}

// RefreshToken presents the stored token to the auth endpoint and persists
// the replacement. Only one refresh may be in flight; a concurrent call
// fails fast with common.ErrRefreshInFlight. Offline or no session is a
// short-circuit success: there is nothing more to do locally.
func (s *SessionService) RefreshToken(ctx context.Context) error {
	if !s.refreshMu.TryLock() {
		return common.ErrRefreshInFlight
	}
	defer s.refreshMu.Unlock()

	sess := s.Session()
	if sess.AuthToken == "" || s.monitor.IsOffline() {
		return nil
	}

	s.setState(models.StateSyncing)

	var newToken string
	var err error
	for attempt := 1; attempt <= maxRefreshRetries; attempt++ {
		newToken, err = s.client.Refresh(ctx, sess.AuthToken)
		if err == nil || !isTransient(err) {
			break
		}
		s.logger.Warn(ctx, "token refresh attempt failed", "attempt", attempt, "error", err)
	}
	if err != nil {
		return s.handleRefreshFailure(ctx, err)
	}

	if err := s.vault.SetToken(ctx, newToken); err != nil {
		// the state machine must not hang in Syncing on a storage failure
		s.setState(models.StateLocalOnly)
		return err
	}

	now := s.now().UTC()
	s.mu.Lock()
	s.session.AuthToken = newToken
	s.session.State = models.StateSynced
	s.session.Sync.IsSyncing = false
	s.session.Sync.LastSyncedAt = &now
	s.mu.Unlock()
	return nil
}

// handleRefreshFailure classifies the error: an invalid token tears the
// session down (fatal), anything else degrades to local-only operation.
func (s *SessionService) handleRefreshFailure(ctx context.Context, err error) error {
	if errors.Is(err, common.ErrUnauthorized) || errors.Is(err, common.ErrTokenExpired) {
		s.logger.Warn(ctx, "token rejected, tearing session down")
		if lerr := s.Logout(ctx, false); lerr != nil {
			return lerr
		}
		return fmt.Errorf("%w: session expired", common.ErrUnauthorized)
	}

	s.logger.Warn(ctx, "token refresh failed, staying local-only", "error", err)
	s.setState(models.StateLocalOnly)
	return nil
}

// Login authenticates with the remote service and establishes a session.
// Input is validated before any network call; the network call races a fixed
// timeout and timeouts are retried a bounded number of times. A previously
// stored session is only cleared after the new login succeeds.
func (s *SessionService) Login(ctx context.Context, identifier, secret string, remember, enableQuickLogin bool) error {
	if err := validateCredentials(identifier, secret); err != nil {
		return err
	}

	var auth *remote.AuthResult
	err := retryx.Do(ctx, s.loginRetries, s.loginTimeout, func(ctx context.Context) error {
		var err error
		auth, err = s.client.Authenticate(ctx, identifier, secret)
		return err
	})
	if err != nil {
		return err
	}

	// the old session is destroyed only now that the new one is real
	if err := s.vault.ClearToken(ctx); err != nil {
		return err
	}
	if err := s.vault.SetToken(ctx, auth.Token); err != nil {
		return err
	}
	if remember {
		if err := s.vault.SetRememberedUser(ctx, identifier); err != nil {
			return err
		}
	}
	if enableQuickLogin {
		if err := s.vault.SetPasswordForUser(ctx, identifier, secret); err != nil {
			return err
		}
		if err := s.vault.SetQuickLoginEnabled(ctx, identifier, true); err != nil {
			return err
		}
	}

	// flow-halting on failure: guest data must never be silently lost
	if _, err := s.migrator.TransferGuestData(ctx, auth.UserID); err != nil {
		return err
	}

	s.mu.Lock()
	s.session = models.Session{
		AuthToken:        auth.Token,
		UserID:           auth.UserID,
		RememberedUserID: identifier,
		State:            models.StateSyncing,
	}
	s.mu.Unlock()

	s.logger.Info(ctx, "login succeeded", "user", auth.UserID)
	return nil
}

// QuickLogin logs in with the password stored for identifier. When any
// required piece is missing the preference is disabled for that user, so a
// broken quick-login setup heals itself instead of failing forever.
func (s *SessionService) QuickLogin(ctx context.Context, identifier string) error {
	enabled, err := s.vault.IsQuickLoginEnabled(ctx, identifier)
	if err != nil {
		return err
	}
	password, err := s.vault.PasswordForUser(ctx, identifier)
	if err != nil {
		return err
	}

	if !enabled || password == "" || identifier == "" {
		if derr := s.vault.DisableQuickLogin(ctx, identifier); derr != nil {
			return derr
		}
		return fmt.Errorf("%w: quick login is not set up", common.ErrUnauthorized)
	}

	return s.Login(ctx, identifier, password, true, true)
}

// AttemptAutoLogin quick-logs-in the remembered user, if any.
func (s *SessionService) AttemptAutoLogin(ctx context.Context) error {
	remembered, err := s.vault.RememberedUser(ctx)
	if err != nil {
		return err
	}
	if remembered == "" {
		return fmt.Errorf("%w: no remembered user", common.ErrUnauthorized)
	}
	return s.QuickLogin(ctx, remembered)
}

// SyncNow runs a full reconciliation for the current session, moving the
// state machine through Syncing and back. Failures degrade to LocalOnly;
// only an authentication failure tears the session down.
func (s *SessionService) SyncNow(ctx context.Context) error {
	sess := s.Session()
	if !sess.Authenticated() {
		return nil
	}
	if s.monitor.IsOffline() {
		s.setState(models.StateLocalOnly)
		return nil
	}

	s.setState(models.StateSyncing)
	if err := s.syncer.Sync(ctx, sess.AuthToken, sess.UserID); err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			return s.handleRefreshFailure(ctx, err)
		}
		s.logger.Warn(ctx, "sync failed, staying local-only", "error", err)
		s.setState(models.StateLocalOnly)
		return nil
	}

	now := s.now().UTC()
	s.mu.Lock()
	s.session.State = models.StateSynced
	s.session.Sync.IsSyncing = false
	s.session.Sync.LastSyncedAt = &now
	s.mu.Unlock()
	return nil
}

// Logout clears the in-memory session and the stored token. With forgetUser
// the remembered user and their quick-login setup are dropped too.
func (s *SessionService) Logout(ctx context.Context, forgetUser bool) error {
	s.mu.Lock()
	remembered := s.session.RememberedUserID
	s.session = models.Session{State: models.StateUninitialized, RememberedUserID: remembered}
	s.mu.Unlock()

	if err := s.vault.ClearToken(ctx); err != nil {
		return err
	}
	if !forgetUser {
		return nil
	}

	s.mu.Lock()
	s.session.RememberedUserID = ""
	s.mu.Unlock()

	// with no remembered user there is nothing to forget; an empty id would
	// cascade the quick-login disable to every user
	if remembered == "" {
		return nil
	}

	if err := s.vault.DisableQuickLogin(ctx, remembered); err != nil {
		return err
	}
	return s.vault.SetRememberedUser(ctx, "")
}

func isTransient(err error) bool {
	return errors.Is(err, common.ErrTimeout) ||
		errors.Is(err, common.ErrUnavailable) ||
		errors.Is(err, common.ErrOffline)
}

// validateCredentials rejects malformed input before any network call.
// The identifier is an email address.
func validateCredentials(identifier, secret string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return fmt.Errorf("%w: identifier is empty", common.ErrValidation)
	}
	at := strings.Index(identifier, "@")
	if at <= 0 || at == len(identifier)-1 || strings.ContainsAny(identifier, " \t") {
		return fmt.Errorf("%w: identifier is not a valid email", common.ErrValidation)
	}
	if !strings.Contains(identifier[at+1:], ".") {
		return fmt.Errorf("%w: identifier is not a valid email", common.ErrValidation)
	}
	if len(secret) < minSecretLength {
		return fmt.Errorf("%w: secret shorter than %d characters", common.ErrValidation, minSecretLength)
	}
	return nil
}
