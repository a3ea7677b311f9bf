package stage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"batchflow/internal/faults"
	"batchflow/internal/logging"
)

// Registry maps stage names to local item functions and implements Invoker.
type Registry struct {
	mu     sync.RWMutex
	funcs  map[string]ItemFunc
	logger *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		funcs:  make(map[string]ItemFunc),
		logger: logging.NewComponentLogger(logger, "stage"),
	}
}

// DefaultRegistry returns a registry with the built-in item stages.
func DefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(PreSetupName, preSetupFunc)
	r.Register(FirstStepName, firstStepFunc)
	r.Register(SecondStepName, secondStepFunc)
	return r
}

// Register binds fn to name, replacing any previous binding.
func (r *Registry) Register(name string, fn ItemFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Invoke runs the named stage on the invocation's record.
func (r *Registry) Invoke(ctx context.Context, name string, inv Invocation) (Invocation, error) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return inv, faults.Wrap(faults.ErrConfiguration, name, "invoke", fmt.Sprintf("stage %q is not registered", name), nil)
	}
	if inv.State == nil {
		return inv, faults.Wrap(faults.ErrValidation, name, "invoke", "incorrect input", nil)
	}

	logging.WithContext(ctx, r.logger).Debug(fmt.Sprintf("executing %s for %s", name, inv.ID),
		logging.String(logging.FieldEventType, "stage_invoke"),
	)

	out, err := fn(ctx, *inv.State)
	if err != nil {
		return inv, err
	}
	return Invocation{ID: inv.ID, State: &out}, nil
}

// Health is the readiness of one stage a chain depends on. Detail says
// where the chain breaks when the stage is missing.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Health reports readiness of every stage the chains need, in chain order.
// A stage shared by several chains is reported once, against the first
// chain that needs it.
func (r *Registry) Health(chains ...Chain) []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []Health
	for _, chain := range chains {
		for i, name := range chain {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			h := Health{Name: name, Ready: true}
			if _, ok := r.funcs[name]; !ok {
				h.Ready = false
				h.Detail = fmt.Sprintf("not registered; items stop at step %d of %s", i+1, strings.Join(chain, " -> "))
			}
			out = append(out, h)
		}
	}
	return out
}
