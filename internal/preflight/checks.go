package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"batchflow/internal/config"
	"batchflow/internal/store"
)

// MinFreeBytes is the free space floor for the data volume. Run state is
// small; the floor guards the sqlite WAL.
const MinFreeBytes uint64 = 64 << 20

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least minFree
// bytes available to unprivileged users.
func CheckFreeSpace(name, path string, minFree uint64) Result {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := st.Bavail * uint64(st.Bsize)
	detail := fmt.Sprintf("%s free on %s", humanize.IBytes(free), path)
	if free < minFree {
		return Result{Name: name, Detail: fmt.Sprintf("%s (below %s)", detail, humanize.IBytes(minFree))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckDatabase opens the run database and verifies schema and integrity.
func CheckDatabase(ctx context.Context, cfg *config.Config) Result {
	const name = "Run database"

	st, err := store.Open(cfg)
	if err != nil {
		if errors.Is(err, store.ErrSchemaMismatch) {
			return Result{Name: name, Detail: "schema version mismatch (clear the database and restart)"}
		}
		return Result{Name: name, Detail: fmt.Sprintf("open failed (%v)", err)}
	}
	defer st.Close()

	health, err := st.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", health.DBPath, err)}
	}
	if !health.IntegrityCheck {
		return Result{Name: name, Detail: fmt.Sprintf("%s (integrity check failed)", health.DBPath)}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("schema v%d, %d runs, %d awaiting resume", health.SchemaVersion, health.TotalRuns, health.PendingMessages),
	}
}

// CheckNotificationsFromConfig reports whether ntfy notifications are
// configured. Notifications are optional, so a missing topic still passes.
func CheckNotificationsFromConfig(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled (no ntfy topic)"}
	}
	var enabled []string
	if cfg.Notifications.Quarantine {
		enabled = append(enabled, "quarantine")
	}
	if cfg.Notifications.RunCompleted {
		enabled = append(enabled, "run completed")
	}
	if cfg.Notifications.Errors {
		enabled = append(enabled, "errors")
	}
	if len(enabled) == 0 {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (all events muted)", topic)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", topic, strings.Join(enabled, ", "))}
}
