// Package redisstream appends audit events to a Redis stream and announces them on a
// Pub/Sub channel.
package redisstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/evco-audit/internal/audit"
	"github.com/xela07ax/evco-audit/internal/domain"
	"github.com/xela07ax/evco-audit/internal/infra"
)

type AuditStream struct {
	rdb     *redis.Client
	stream  string
	channel string
	maxLen  int64 // approximate trim, 0 keeps everything
}

func NewAuditStream(rdb *redis.Client, maxLen int64) *AuditStream {
	return &AuditStream{
		rdb:     rdb,
		stream:  infra.RedisKeyAuditStream,
		channel: infra.RedisChanAuditNotify,
		maxLen:  maxLen,
	}
}

func (s *AuditStream) Name() string { return "redis" }

// WriteBatch sends one pipeline: XADD per event followed by PUBLISH of its id.
func (s *AuditStream) WriteBatch(ctx context.Context, events []domain.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	pipe := s.rdb.Pipeline()
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("redis: marshal audit event %s: %w", e.ID, err)
		}

		args := &redis.XAddArgs{
			Stream: s.stream,
			Values: map[string]interface{}{
				"id":          e.ID,
				"action_type": string(e.ActionType),
				"event":       payload,
			},
		}
		if s.maxLen > 0 {
			args.MaxLen = s.maxLen
			args.Approx = true
		}
		pipe.XAdd(ctx, args)
		pipe.Publish(ctx, s.channel, e.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		err = fmt.Errorf("redis: append audit events: %w", err)
		if notConnected(err) {
			return err
		}
		// Some commands may have been applied; do not send the batch again.
		return &audit.DeliveryError{Attempted: len(events), Err: err}
	}
	return nil
}

// notConnected reports a failure to reach the server, when nothing was sent.
func notConnected(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// Ping checks the connection at startup.
func (s *AuditStream) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
