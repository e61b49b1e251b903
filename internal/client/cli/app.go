package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	remote "github.com/ilyakarpov/paycodes/internal/client/client"
	"github.com/ilyakarpov/paycodes/internal/client/catalog"
	"github.com/ilyakarpov/paycodes/internal/client/config"
	"github.com/ilyakarpov/paycodes/internal/client/services"
	"github.com/ilyakarpov/paycodes/internal/client/vault"
	"github.com/ilyakarpov/paycodes/internal/logging"
	"github.com/ilyakarpov/paycodes/internal/netx"
)

// App wires the client services behind the REPL.
type App struct {
	config   *config.Config
	sessions *services.SessionService
	records  *services.RecordService
	monitor  *netx.Monitor
	logger   logging.Logger
	reader   *bufio.Reader
	out      *os.File
}

func NewApp(cfg *config.Config) (*App, error) {
	ctx := context.Background()
	logger := logging.NewTextLogger(os.Stderr, slog.LevelInfo)

	repos, err := remote.InitDatabase(ctx, filepath.Join(cfg.DataDir, "paycodes.db"), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}

	apiClient := remote.NewHTTPClient(cfg.ServerBaseURL, cfg.RequestTimeout)
	monitor := netx.NewMonitor(apiClient.Ping, cfg.RequestTimeout)

	secretStore := vault.NewFileStore(filepath.Join(cfg.DataDir, "secrets.bin"), vault.DefaultMachineID())
	v := vault.New(secretStore, repos.Preferences, logger)

	migrator := services.NewMigrationService(repos.DB, logger)
	syncer := services.NewSyncService(apiClient, repos.Records, repos.RecordStore, logger)
	sessions := services.NewSessionService(apiClient, v, monitor, migrator, syncer,
		logger, cfg.LoginTimeout, cfg.LoginMaxRetries)
	recordSvc := services.NewRecordService(repos.RecordStore, repos.Records, catalog.Default(), logger)

	return &App{
		config:   cfg,
		sessions: sessions,
		records:  recordSvc,
		monitor:  monitor,
		logger:   logger,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}, nil
}

// Run restores the session, starts the connectivity watcher, and enters the
// REPL. Local data is available immediately; the token refresh happens in
// the background.
func (a *App) Run(ctx context.Context) {
	sess, err := a.sessions.Bootstrap(ctx)
	if err != nil {
		a.logger.Error(ctx, "bootstrap failed", "error", err)
	}

	watchCtx, stopWatcher := context.WithCancel(ctx)
	defer stopWatcher()
	go a.monitor.Run(watchCtx, a.config.OnlineCheckInterval)
	go a.watchConnectivity(watchCtx)

	if sess.AuthToken != "" {
		go func() {
			if err := a.sessions.RefreshToken(watchCtx); err != nil {
				a.logger.Warn(watchCtx, "background token refresh failed", "error", err)
			}
		}()
	}

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.status, scanner)
}

// watchConnectivity mirrors connectivity flips into the session state: going
// back online triggers a sync, going offline degrades to local-only mode.
func (a *App) watchConnectivity(ctx context.Context) {
	ch := a.monitor.Subscribe()
	for {
		select {
		case offline := <-ch:
			if offline {
				a.logger.Info(ctx, "switched to offline mode")
				continue
			}
			a.logger.Info(ctx, "back online")
			if err := a.sessions.SyncNow(ctx); err != nil {
				a.logger.Warn(ctx, "sync after reconnect failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) isLoggedIn() bool {
	sess := a.sessions.Session()
	return sess.Authenticated()
}

// ownerID returns the record owner for the current session: the user id when
// logged in, the guest owner otherwise.
func (a *App) ownerID() string {
	return a.sessions.Session().UserID
}

func (a *App) status() string {
	sess := a.sessions.Session()
	who := "guest"
	if sess.Authenticated() {
		who = sess.RememberedUserID
		if who == "" {
			who = sess.UserID
		}
	}
	mode := string(sess.State)
	if a.monitor.IsOffline() {
		mode = "offline"
	}
	return fmt.Sprintf("(%s %s)", who, mode)
}
