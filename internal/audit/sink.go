package audit

import (
	"context"
	"fmt"

	"github.com/xela07ax/evco-audit/internal/domain"
	"go.uber.org/zap"
)

// Sink is where audit events end up. The dispatcher calls it from a single
// goroutine and reuses the slice afterwards, so implementations must not keep it.
type Sink interface {
	// WriteBatch stores a batch of events in one call.
	WriteBatch(ctx context.Context, events []domain.AuditEvent) error
}

// Named is implemented by sinks that report a label for metrics.
type Named interface {
	Name() string
}

func sinkName(s Sink) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return "unknown"
}

// DeliveryError reports a batch that failed after its first Attempted events
// may already have left the process. Retrying those would deliver them twice,
// so Reliable resumes after them.
type DeliveryError struct {
	Attempted int
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed after %d events: %v", e.Attempted, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// LogSink writes each event as a structured log line. It is the default sink
// and never fails.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit-log")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) WriteBatch(_ context.Context, events []domain.AuditEvent) error {
	for _, e := range events {
		s.logger.Info("audit event",
			zap.String("id", e.ID),
			zap.String("trace_id", e.TraceID),
			zap.String("actor_id", e.ActorID),
			zap.String("actor_role", string(e.ActorRole)),
			zap.String("action_type", string(e.ActionType)),
			zap.String("target_entity_id", e.TargetEntityID),
			zap.String("target_entity_type", e.TargetEntityType),
			zap.String("details", e.Details),
			zap.Any("metadata", e.Metadata),
			zap.Time("occurred_at", e.OccurredAt),
			zap.Time("received_at", e.ReceivedAt),
			zap.String("submitted_by", e.SubmittedBy),
			zap.String("submitter_role", string(e.SubmitterRole)),
		)
	}
	return nil
}
