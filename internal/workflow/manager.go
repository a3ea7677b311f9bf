package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"batchflow/internal/batchmap"
	"batchflow/internal/config"
	"batchflow/internal/logging"
	"batchflow/internal/notifications"
	"batchflow/internal/quarantine"
	"batchflow/internal/retry"
	"batchflow/internal/stage"
	"batchflow/internal/store"
)

// Manager coordinates batch runs over the standard pipeline.
type Manager struct {
	cfg      *config.Config
	store    *store.Store
	logger   *slog.Logger
	notifier notifications.Service
	invoker  stage.Invoker
	engine   *Engine
	newID    func() string

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	active  map[string]struct{}
	stopped bool
	lastErr error
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	notifier    notifications.Service
	invoker     stage.Invoker
	final       stage.FinalFunc
	retryOpts   []retry.Option
	newID       func() string
	tokenSource func() string
}

// WithNotifier overrides the notification service built from config.
func WithNotifier(svc notifications.Service) ManagerOption {
	return func(o *managerOptions) {
		o.notifier = svc
	}
}

// WithInvoker replaces the local stage registry, e.g. with a remote invoker.
func WithInvoker(inv stage.Invoker) ManagerOption {
	return func(o *managerOptions) {
		o.invoker = inv
	}
}

// WithFinalStep replaces the aggregating stage.
func WithFinalStep(fn stage.FinalFunc) ManagerOption {
	return func(o *managerOptions) {
		o.final = fn
	}
}

// WithRetryOptions adjusts the retry policy derived from config (used in tests
// to inject a sleeper).
func WithRetryOptions(opts ...retry.Option) ManagerOption {
	return func(o *managerOptions) {
		o.retryOpts = append(o.retryOpts, opts...)
	}
}

// WithIDSource overrides execution id generation.
func WithIDSource(fn func() string) ManagerOption {
	return func(o *managerOptions) {
		o.newID = fn
	}
}

// WithTokenSource overrides resume token generation.
func WithTokenSource(fn func() string) ManagerOption {
	return func(o *managerOptions) {
		o.tokenSource = fn
	}
}

// NewManager constructs a workflow manager backed by st.
func NewManager(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...ManagerOption) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("workflow manager: config is required")
	}
	if st == nil {
		return nil, fmt.Errorf("workflow manager: store is required")
	}
	options := &managerOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if options.notifier == nil {
		options.notifier = notifications.NewService(cfg)
	}
	if options.invoker == nil {
		options.invoker = stage.DefaultRegistry(logger)
	}
	if options.newID == nil {
		options.newID = uuid.NewString
	}

	graph, err := NewPipeline(options.final)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	runner := batchmap.NewRunner(
		options.invoker,
		retry.FromConfig(cfg, options.retryOpts...),
		batchmap.WithMaxConcurrency(cfg.Batch.MaxConcurrency),
		batchmap.WithLogger(logger),
	)
	gateOpts := []quarantine.Option{quarantine.WithNotifier(options.notifier)}
	if options.tokenSource != nil {
		gateOpts = append(gateOpts, quarantine.WithTokenSource(options.tokenSource))
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		store:    st,
		logger:   logging.NewComponentLogger(logger, "workflow-manager"),
		notifier: options.notifier,
		invoker:  options.invoker,
		engine:   NewEngine(graph, st, runner, logger, gateOpts...),
		newID:    options.newID,
		baseCtx:  baseCtx,
		cancel:   cancel,
		active:   make(map[string]struct{}),
	}, nil
}

// Graph returns the pipeline graph the manager executes.
func (m *Manager) Graph() *Graph {
	return m.engine.Graph()
}
