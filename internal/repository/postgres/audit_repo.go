package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/evco-audit/internal/domain"
)

var auditColumns = []string{
	"id", "trace_id", "actor_id", "actor_role", "action_type",
	"target_entity_id", "target_entity_type", "details", "metadata",
	"occurred_at", "received_at", "submitted_by", "submitter_role",
}

// copier is the part of pgxpool.Pool the repo writes through.
type copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// AuditRepo appends audit events to the audit_logs table.
type AuditRepo struct {
	db   copier
	pool *pgxpool.Pool
}

func NewAuditRepo(ctx context.Context, connString string, maxConns, minConns int32) (*AuditRepo, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	return &AuditRepo{db: pool, pool: pool}, nil
}

func (r *AuditRepo) Name() string { return "postgres" }

// WriteBatch uses COPY so a batch costs one round trip.
func (r *AuditRepo) WriteBatch(ctx context.Context, events []domain.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(events))
	for _, e := range events {
		var metadata []byte
		if len(e.Metadata) > 0 {
			b, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("postgres: marshal metadata of %s: %w", e.ID, err)
			}
			metadata = b
		}

		rows = append(rows, []any{
			e.ID, e.TraceID, e.ActorID, string(e.ActorRole), string(e.ActionType),
			e.TargetEntityID, e.TargetEntityType, e.Details, metadata,
			e.OccurredAt, e.ReceivedAt, e.SubmittedBy, string(e.SubmitterRole),
		})
	}

	n, err := r.db.CopyFrom(ctx, pgx.Identifier{"audit_logs"}, auditColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("postgres: copy audit events: %w", err)
	}
	if int(n) != len(events) {
		return fmt.Errorf("postgres: copied %d of %d audit events", n, len(events))
	}
	return nil
}

// Ping checks the database at startup.
func (r *AuditRepo) Ping(ctx context.Context) error {
	if r.pool == nil {
		return nil
	}
	return r.pool.Ping(ctx)
}

func (r *AuditRepo) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}
