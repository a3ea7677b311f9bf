package quarantine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"batchflow/internal/batch"
	"batchflow/internal/batchmap"
	"batchflow/internal/logging"
	"batchflow/internal/notifications"
)

// Outcome is the gate's routing decision.
type Outcome string

const (
	Continue Outcome = "continue"
	Escalate Outcome = "escalate"
)

// Checkpoint identifies the run and collection being gated. Resume names the
// node a resumed run continues at.
type Checkpoint struct {
	ExecutionID string
	Node        string
	Resume      string
	Collection  batch.Collection
	State       batch.State
}

// Escalation is what a Publisher must persist.
type Escalation struct {
	Checkpoint
	Message Message
	Scan    batchmap.ScanResult
}

// Publisher durably records an escalation. Implementations must checkpoint
// the run state before or together with queueing the message.
type Publisher interface {
	Publish(ctx context.Context, esc Escalation) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(context.Context, Escalation) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, esc Escalation) error {
	return f(ctx, esc)
}

// Decision reports the gate's routing and, for escalations, the message.
type Decision struct {
	Outcome Outcome
	Scan    batchmap.ScanResult
	Message *Message
}

// Gate evaluates processed collections.
type Gate struct {
	publisher Publisher
	notifier  notifications.Service
	logger    *slog.Logger
	newToken  func() string
}

// Option customizes a Gate.
type Option func(*Gate)

// WithNotifier sets the reviewer notification service.
func WithNotifier(svc notifications.Service) Option {
	return func(g *Gate) {
		g.notifier = svc
	}
}

// WithLogger sets the gate's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithTokenSource overrides resume token generation.
func WithTokenSource(fn func() string) Option {
	return func(g *Gate) {
		g.newToken = fn
	}
}

// NewGate constructs a gate publishing through publisher.
func NewGate(publisher Publisher, opts ...Option) *Gate {
	g := &Gate{
		publisher: publisher,
		newToken:  uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	g.logger = logging.NewComponentLogger(g.logger, "quarantine")
	return g
}

// Evaluate scans the checkpoint's collection. A collection without captured
// errors continues. Otherwise the run is escalated: a message is published
// and the reviewer notified.
func (g *Gate) Evaluate(ctx context.Context, cp Checkpoint) (Decision, error) {
	scan := batchmap.Scan(cp.Collection.Steps(cp.State))
	if !scan.ErrorFound {
		return Decision{Outcome: Continue, Scan: scan}, nil
	}
	if g.publisher == nil {
		return Decision{}, fmt.Errorf("quarantine %s: no publisher configured", cp.ExecutionID)
	}

	token := g.newToken()
	msg, err := NewMessage(cp.ExecutionID, token, cp.State)
	if err != nil {
		return Decision{}, err
	}
	if err := g.publisher.Publish(ctx, Escalation{Checkpoint: cp, Message: msg, Scan: scan}); err != nil {
		return Decision{}, fmt.Errorf("publish quarantine message: %w", err)
	}

	log := logging.WithContext(ctx, g.logger)
	log.Warn("run quarantined; awaiting resume",
		logging.String(logging.FieldCollection, string(cp.Collection)),
		logging.Int("error_count", scan.ErrorCount),
		logging.Any("error_indexes", scan.Indexes),
		logging.String(logging.FieldEventType, "quarantine_escalated"),
		logging.String(logging.FieldErrorHint, "inspect the quarantine message and resume with its token"),
		logging.String(logging.FieldImpact, "run is suspended until resumed"),
	)

	if g.notifier != nil {
		if err := g.notifier.NotifyQuarantined(ctx, notifications.Quarantine{
			ExecutionID: cp.ExecutionID,
			BatchID:     cp.State.ID,
			Collection:  string(cp.Collection),
			ErrorCount:  scan.ErrorCount,
			ResumeToken: token,
		}); err != nil {
			logging.WarnWithContext(log, "quarantine notification failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check ntfy_topic and network reachability"),
				logging.String(logging.FieldImpact, "reviewer was not alerted; message remains queued"),
			)
		}
	}

	return Decision{Outcome: Escalate, Scan: scan, Message: &msg}, nil
}
