// Package natsbus publishes audit events to NATS subjects.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/xela07ax/evco-audit/internal/audit"
	"github.com/xela07ax/evco-audit/internal/domain"
)

// Publisher is the part of *nats.Conn the publisher needs.
type Publisher interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

var _ Publisher = (*nats.Conn)(nil)

type AuditPublisher struct {
	conn   Publisher
	prefix string
}

func NewAuditPublisher(conn Publisher, subjectPrefix string) *AuditPublisher {
	if subjectPrefix == "" {
		subjectPrefix = "evco.audit"
	}
	return &AuditPublisher{conn: conn, prefix: strings.TrimSuffix(subjectPrefix, ".")}
}

// Connect dials NATS with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("evco-audit"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("nats: connect %s: %w", url, err)
	}
	return nc, nil
}

func (p *AuditPublisher) Name() string { return "nats" }

// Subject returns e.g. evco.audit.document_approved for DOCUMENT_APPROVED.
func (p *AuditPublisher) Subject(action domain.ActionType) string {
	return p.prefix + "." + strings.ToLower(string(action))
}

// WriteBatch publishes every event and flushes once so the batch is on the
// wire before returning. Failures are reported as *audit.DeliveryError.
func (p *AuditPublisher) WriteBatch(ctx context.Context, events []domain.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	for i, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return &audit.DeliveryError{Attempted: i, Err: fmt.Errorf("nats: marshal audit event %s: %w", e.ID, err)}
		}
		if err := p.conn.Publish(p.Subject(e.ActionType), data); err != nil {
			return &audit.DeliveryError{Attempted: i, Err: fmt.Errorf("nats: publish audit event %s: %w", e.ID, err)}
		}
	}

	// Everything is buffered in the client by now; a failed flush may still
	// have delivered any of it.
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return &audit.DeliveryError{Attempted: len(events), Err: fmt.Errorf("nats: flush: %w", err)}
	}
	return nil
}
