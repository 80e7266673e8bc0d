package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xela07ax/evco-audit/internal/domain"
)

func TestLogSinkWritesOneLinePerEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	occurred := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	err := sink.WriteBatch(context.Background(), []domain.AuditEvent{
		{
			ID:             "evt-1",
			ActorID:        "staff-1",
			ActorRole:      domain.RoleStaff,
			ActionType:     domain.ActionDocumentApproved,
			TargetEntityID: "doc-123",
			OccurredAt:     occurred,
		},
		event(2),
	})
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "audit event", entries[0].Message)
	assert.Equal(t, "audit-log", entries[0].LoggerName)

	fields := entries[0].ContextMap()
	assert.Equal(t, "evt-1", fields["id"])
	assert.Equal(t, "STAFF", fields["actor_role"])
	assert.Equal(t, "DOCUMENT_APPROVED", fields["action_type"])
	assert.Equal(t, "doc-123", fields["target_entity_id"])
	assert.Equal(t, occurred, fields["occurred_at"])
}

func TestSinkName(t *testing.T) {
	assert.Equal(t, "log", sinkName(NewLogSink(zap.NewNop())))
	assert.Equal(t, "unknown", sinkName(anonymousSink{}))
}

type anonymousSink struct{}

func (anonymousSink) WriteBatch(context.Context, []domain.AuditEvent) error { return nil }
