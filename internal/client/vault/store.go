// Package vault keeps the client's credentials encrypted at rest: the auth
// token, the remembered user, and per-user quick-login passwords. The
// quick-login preference map lives in the plain preference store since it
// holds no secrets.
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ilyakarpov/paycodes/internal/common"
	"github.com/ilyakarpov/paycodes/internal/cryptox"
)

// Secrets is the confidential payload persisted by a SecretStore.
type Secrets struct {
	Token          string            `json:"token"`
	RememberedUser string            `json:"remembered_user"`
	Passwords      map[string]string `json:"passwords"`
}

func emptySecrets() *Secrets {
	return &Secrets{Passwords: make(map[string]string)}
}

// SecretStore persists Secrets encrypted at rest.
type SecretStore interface {
	Load(ctx context.Context) (*Secrets, error)
	Save(ctx context.Context, s *Secrets) error
	Reset(ctx context.Context) error
}

// envelope is the on-disk framing around the AES-GCM ciphertext.
type envelope struct {
	Salt  []byte `json:"salt"`
	Nonce []byte `json:"nonce"`
	Data  []byte `json:"data"`
}

// FileStore is a SecretStore writing one encrypted file. The AES key is
// derived from a machine identifier and a per-file random salt, so the file
// is unreadable when copied to another machine.
type FileStore struct {
	path      string
	machineID []byte
}

func NewFileStore(path string, machineID []byte) *FileStore {
	return &FileStore{path: path, machineID: machineID}
}

// DefaultMachineID returns a stable per-machine identifier: the OS machine id
// when available, the hostname otherwise.
func DefaultMachineID() []byte {
	if b, err := os.ReadFile("/etc/machine-id"); err == nil && len(b) > 0 {
		return b
	}
	host, err := os.Hostname()
	if err != nil {
		return []byte("paycodes-fallback")
	}
	return []byte(host)
}

// Load reads and decrypts the secrets file. A missing file yields empty
// secrets; a corrupt or undecryptable file yields common.ErrStorage so the
// caller can decide whether to reset.
func (f *FileStore) Load(_ context.Context) (*Secrets, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return emptySecrets(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read secret store: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed secret store", common.ErrStorage)
	}

	key := cryptox.DeriveStorageKey(f.machineID, env.Salt)
	s := emptySecrets()
	if err := cryptox.Open(env.Data, env.Nonce, key, s); err != nil {
		return nil, fmt.Errorf("%w: failed to unseal secret store", common.ErrStorage)
	}
	if s.Passwords == nil {
		s.Passwords = make(map[string]string)
	}
	return s, nil
}

// Save encrypts and writes the secrets file atomically (temp file + rename),
// restricting permissions to the owner.
func (f *FileStore) Save(_ context.Context, s *Secrets) error {
	salt := common.GenerateRandByteArray(16)
	key := cryptox.DeriveStorageKey(f.machineID, salt)

	data, nonce, err := cryptox.Seal(s, key)
	if err != nil {
		return fmt.Errorf("failed to seal secret store: %w", err)
	}

	raw, err := json.Marshal(envelope{Salt: salt, Nonce: nonce, Data: data})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create secret store dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write secret store: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace secret store: %w", err)
	}
	return nil
}

// Reset removes the secrets file.
func (f *FileStore) Reset(_ context.Context) error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to reset secret store: %w", err)
	}
	return nil
}
