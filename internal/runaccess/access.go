package runaccess

import (
	"context"
	"errors"
	"os"
	"time"

	"batchflow/internal/api"
	"batchflow/internal/batch"
	"batchflow/internal/config"
	"batchflow/internal/quarantine"
	"batchflow/internal/store"
	"batchflow/internal/workflow"
)

// Mode names the backing of an Access.
type Mode string

const (
	ModeDaemon Mode = "daemon"
	ModeLocal  Mode = "local"
)

// Access provides run operations regardless of daemon or in-process backing.
type Access interface {
	Mode() Mode
	Status(ctx context.Context) (*api.DaemonStatus, error)
	List(ctx context.Context, statuses []string) ([]api.Run, error)
	Describe(ctx context.Context, id string) (*api.Run, error)
	// Submit starts a run. The daemon executes it in the background; local
	// access executes it to completion or suspension before returning.
	Submit(ctx context.Context, input batch.RunInput) (*api.Run, error)
	Quarantine(ctx context.Context) ([]api.QuarantineEntry, error)
	// Resume may return both a run and an error when the run ended errored
	// or aborted.
	Resume(ctx context.Context, token, action string) (*api.Run, error)
	// Prune deletes terminal runs older than olderThan and reports the count.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// NewAPIAccess returns an Access backed by the daemon HTTP API.
func NewAPIAccess(client *api.Client) Access {
	return &apiAccess{client: client}
}

// NewLocalAccess returns an Access backed by an in-process workflow manager.
func NewLocalAccess(cfg *config.Config, st *store.Store, mgr *workflow.Manager) Access {
	return &localAccess{cfg: cfg, store: st, manager: mgr, service: api.NewRunService(st)}
}

type apiAccess struct {
	client *api.Client
}

func (a *apiAccess) Mode() Mode { return ModeDaemon }

func (a *apiAccess) Status(ctx context.Context) (*api.DaemonStatus, error) {
	return a.client.Status(ctx)
}

func (a *apiAccess) List(ctx context.Context, statuses []string) ([]api.Run, error) {
	return a.client.ListRuns(ctx, statuses)
}

func (a *apiAccess) Describe(ctx context.Context, id string) (*api.Run, error) {
	run, err := a.client.GetRun(ctx, id)
	if api.IsNotFound(err) {
		return nil, nil
	}
	return run, err
}

func (a *apiAccess) Submit(ctx context.Context, input batch.RunInput) (*api.Run, error) {
	return a.client.Submit(ctx, input)
}

func (a *apiAccess) Quarantine(ctx context.Context) ([]api.QuarantineEntry, error) {
	return a.client.Quarantine(ctx)
}

func (a *apiAccess) Resume(ctx context.Context, token, action string) (*api.Run, error) {
	run, err := a.client.Resume(ctx, token, action)
	if api.IsNotFound(err) {
		return nil, quarantine.ErrUnknownToken
	}
	return run, err
}

func (a *apiAccess) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	return a.client.Prune(ctx, olderThan)
}

type localAccess struct {
	cfg     *config.Config
	store   *store.Store
	manager *workflow.Manager
	service *api.RunService
}

func (a *localAccess) Mode() Mode { return ModeLocal }

func (a *localAccess) Status(ctx context.Context) (*api.DaemonStatus, error) {
	return &api.DaemonStatus{
		Running:      false,
		PID:          os.Getpid(),
		DatabasePath: a.cfg.DatabasePath(),
		LockFilePath: a.cfg.LockPath(),
		Workflow:     api.FromStatusSummary(a.manager.Status(ctx)),
	}, nil
}

func (a *localAccess) List(ctx context.Context, statuses []string) ([]api.Run, error) {
	return a.service.List(ctx, api.ParseStatuses(statuses)...)
}

func (a *localAccess) Describe(ctx context.Context, id string) (*api.Run, error) {
	return a.service.Describe(ctx, id)
}

func (a *localAccess) Submit(ctx context.Context, input batch.RunInput) (*api.Run, error) {
	run, err := a.manager.Execute(ctx, input)
	return runResult(run, err)
}

func (a *localAccess) Quarantine(ctx context.Context) ([]api.QuarantineEntry, error) {
	return a.service.Quarantine(ctx)
}

func (a *localAccess) Resume(ctx context.Context, token, action string) (*api.Run, error) {
	run, err := a.manager.Resume(ctx, token, quarantine.Action(action))
	return runResult(run, err)
}

func (a *localAccess) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	return a.service.Prune(ctx, olderThan)
}

func runResult(run *store.Run, err error) (*api.Run, error) {
	if run == nil {
		return nil, err
	}
	dto := api.FromRun(run)
	var runErr *workflow.RunError
	if err != nil && !errors.As(err, &runErr) {
		return nil, err
	}
	return &dto, err
}
