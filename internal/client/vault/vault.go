package vault

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/ilyakarpov/paycodes/internal/client/repositories/preferences"
	"github.com/ilyakarpov/paycodes/internal/common"
	"github.com/ilyakarpov/paycodes/internal/logging"
)

const quickLoginPrefKey = "quick_login_users"

// Vault is the credential vault: secrets go to the SecretStore, the
// quick-login preference map goes to the preference store. All methods are
// safe for concurrent use.
type Vault struct {
	mu      sync.Mutex
	secrets SecretStore
	prefs   preferences.Repository
	logger  logging.Logger
}

func New(secrets SecretStore, prefs preferences.Repository, logger logging.Logger) *Vault {
	return &Vault{secrets: secrets, prefs: prefs, logger: logger}
}

// load returns the stored secrets, recovering from a corrupt store by
// resetting it to empty. Credentials are recoverable by logging in again;
// a hard failure here would brick the client.
func (v *Vault) load(ctx context.Context) (*Secrets, error) {
	s, err := v.secrets.Load(ctx)
	if errors.Is(err, common.ErrStorage) {
		v.logger.Warn(ctx, "secret store is corrupt, resetting", "error", err)
		if rerr := v.secrets.Reset(ctx); rerr != nil {
			return nil, rerr
		}
		return emptySecrets(), nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (v *Vault) update(ctx context.Context, fn func(*Secrets)) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.updateLocked(ctx, fn)
}

// updateLocked is update for callers already holding v.mu.
func (v *Vault) updateLocked(ctx context.Context, fn func(*Secrets)) error {
	s, err := v.load(ctx)
	if err != nil {
		return err
	}
	fn(s)
	return v.secrets.Save(ctx, s)
}

func (v *Vault) SetToken(ctx context.Context, token string) error {
	return v.update(ctx, func(s *Secrets) { s.Token = token })
}

// Token returns the stored auth token, or "" when none is stored.
func (v *Vault) Token(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, err := v.load(ctx)
	if err != nil {
		return "", err
	}
	return s.Token, nil
}

func (v *Vault) ClearToken(ctx context.Context) error {
	return v.update(ctx, func(s *Secrets) { s.Token = "" })
}

func (v *Vault) SetPasswordForUser(ctx context.Context, userID, password string) error {
	return v.update(ctx, func(s *Secrets) { s.Passwords[userID] = password })
}

// PasswordForUser returns the stored password for userID, or "" when absent.
func (v *Vault) PasswordForUser(ctx context.Context, userID string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, err := v.load(ctx)
	if err != nil {
		return "", err
	}
	return s.Passwords[userID], nil
}

func (v *Vault) DeletePasswordForUser(ctx context.Context, userID string) error {
	return v.update(ctx, func(s *Secrets) { delete(s.Passwords, userID) })
}

func (v *Vault) SetRememberedUser(ctx context.Context, userID string) error {
	return v.update(ctx, func(s *Secrets) { s.RememberedUser = userID })
}

// RememberedUser returns the last remembered user id, or "".
func (v *Vault) RememberedUser(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, err := v.load(ctx)
	if err != nil {
		return "", err
	}
	return s.RememberedUser, nil
}

// quickLoginMap reads the preference map. A corrupt blob resets to empty
// rather than failing: the user just re-enables quick login. Callers hold
// v.mu so the read-modify-write back through saveQuickLoginMap is atomic.
func (v *Vault) quickLoginMap(ctx context.Context) (map[string]bool, error) {
	raw, err := v.prefs.Get(ctx, quickLoginPrefKey)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return map[string]bool{}, nil
	}
	m := map[string]bool{}
	if err := json.Unmarshal(raw, &m); err != nil {
		v.logger.Warn(ctx, "quick-login preference blob is corrupt, resetting")
		return map[string]bool{}, nil
	}
	return m, nil
}

func (v *Vault) saveQuickLoginMap(ctx context.Context, m map[string]bool) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return v.prefs.Set(ctx, quickLoginPrefKey, raw)
}

func (v *Vault) SetQuickLoginEnabled(ctx context.Context, userID string, enabled bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	m, err := v.quickLoginMap(ctx)
	if err != nil {
		return err
	}
	m[userID] = enabled
	return v.saveQuickLoginMap(ctx, m)
}

func (v *Vault) IsQuickLoginEnabled(ctx context.Context, userID string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	m, err := v.quickLoginMap(ctx)
	if err != nil {
		return false, err
	}
	return m[userID], nil
}

// AnyQuickLoginEnabled reports whether at least one user still has quick
// login turned on.
func (v *Vault) AnyQuickLoginEnabled(ctx context.Context) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	m, err := v.quickLoginMap(ctx)
	if err != nil {
		return false, err
	}
	for _, on := range m {
		if on {
			return true, nil
		}
	}
	return false, nil
}

// DisableQuickLogin turns quick login off for userID and deletes that user's
// stored password. An empty userID disables every user with a preference
// entry and deletes all stored passwords.
func (v *Vault) DisableQuickLogin(ctx context.Context, userID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	m, err := v.quickLoginMap(ctx)
	if err != nil {
		return err
	}

	if userID == "" {
		for id := range m {
			m[id] = false
		}
		if err := v.updateLocked(ctx, func(s *Secrets) { s.Passwords = make(map[string]string) }); err != nil {
			return err
		}
	} else {
		m[userID] = false
		if err := v.updateLocked(ctx, func(s *Secrets) { delete(s.Passwords, userID) }); err != nil {
			return err
		}
	}

	return v.saveQuickLoginMap(ctx, m)
}
