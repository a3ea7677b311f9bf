package runaccess

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"

	"batchflow/internal/api"
	"batchflow/internal/config"
	"batchflow/internal/store"
	"batchflow/internal/workflow"
)

// Session represents a run access handle and its cleanup function.
type Session struct {
	Access Access
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open returns daemon-backed access when a daemon holds the instance lock
// and local access otherwise. Local sessions hold the lock until Close so a
// daemon cannot start against the same database mid-run.
func Open(cfg *config.Config, logger *slog.Logger, opts ...workflow.ManagerOption) (Session, error) {
	if cfg == nil {
		return Session{}, errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return Session{}, fmt.Errorf("ensure directories: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return Session{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		client := api.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
		return Session{Access: NewAPIAccess(client)}, nil
	}

	st, err := store.Open(cfg)
	if err != nil {
		_ = lock.Unlock()
		return Session{}, fmt.Errorf("open run store: %w", err)
	}
	mgr, err := workflow.NewManager(cfg, st, logger, opts...)
	if err != nil {
		_ = st.Close()
		_ = lock.Unlock()
		return Session{}, err
	}
	return Session{
		Access: NewLocalAccess(cfg, st, mgr),
		close: func() error {
			mgr.Stop()
			return errors.Join(st.Close(), lock.Unlock())
		},
	}, nil
}
