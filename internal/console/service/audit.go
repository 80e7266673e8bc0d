package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/evco-audit/internal/domain"
	"github.com/xela07ax/evco-audit/internal/infra/auth"
	"github.com/xela07ax/evco-audit/internal/infra/trace"
	"go.uber.org/zap"
)

// Enqueuer accepts events for asynchronous delivery to the log sink.
type Enqueuer interface {
	Enqueue(event domain.AuditEvent) error
}

type AuditService struct {
	dispatcher Enqueuer
	logger     *zap.Logger
	now        func() time.Time
}

func NewAuditService(dispatcher Enqueuer, logger *zap.Logger) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit-service"),
		now:        time.Now,
	}
}

// Submit builds an event from a validated request and the caller in ctx and
// hands it to the dispatcher. Delivery is best effort: a refused event is
// logged and the caller is still acknowledged.
func (s *AuditService) Submit(ctx context.Context, req *domain.AuditLogRequest) domain.AuditEvent {
	principal, _ := auth.PrincipalFromContext(ctx)
	submitterRole, _ := principal.FirstOf(domain.AuditWriterRoles)
	now := s.now().UTC()

	event := domain.AuditEvent{
		ID:               uuid.New().String(),
		TraceID:          trace.FromContext(ctx),
		ActorID:          req.ActorID,
		ActorRole:        req.ActorRole,
		ActionType:       req.ActionType,
		TargetEntityID:   string(req.TargetEntityID),
		TargetEntityType: req.TargetEntityType,
		Details:          req.Details,
		Metadata:         req.Metadata,
		OccurredAt:       now,
		ReceivedAt:       now,
		SubmittedBy:      principal.Subject,
		SubmitterRole:    submitterRole,
	}
	if event.ActorID == "" {
		event.ActorID = principal.Subject
	}
	if event.ActorRole == "" {
		event.ActorRole = submitterRole
	}
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		event.OccurredAt = req.Timestamp.UTC()
	}

	if err := s.dispatcher.Enqueue(event); err != nil {
		s.logger.Warn("audit event not queued",
			zap.String("id", event.ID),
			zap.String("trace_id", event.TraceID),
			zap.String("action_type", string(event.ActionType)),
			zap.Error(err))
	}
	return event
}
