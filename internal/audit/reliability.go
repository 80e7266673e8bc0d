package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/evco-audit/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type ReliableConfig struct {
	RetryAttempts      uint
	RetryDelay         time.Duration
	CBMaxRequests      uint32
	CBInterval         time.Duration
	CBTimeout          time.Duration
	CBFailureThreshold uint32
	RateLimit          float64 // batches per second, <= 0 disables
	RateBurst          int
}

// Reliable wraps a remote sink with rate limiting, a circuit breaker and
// retries, in that order.
type Reliable struct {
	next     Sink
	name     string
	cb       *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	attempts uint
	delay    time.Duration
}

func NewReliable(next Sink, cfg ReliableConfig, metrics *Metrics, logger *zap.Logger) *Reliable {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	name := sinkName(next)
	log := logger.With(zap.String("mod", "reliable-sink"), zap.String("sink", name))

	threshold := cfg.CBFailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "audit-sink-" + name,
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // how long the breaker stays open before probing
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			log.Warn("sink circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	attempts := cfg.RetryAttempts
	if attempts == 0 {
		attempts = 1
	}

	return &Reliable{
		next:     next,
		name:     name,
		cb:       cb,
		limiter:  rate.NewLimiter(limit, burst),
		attempts: attempts,
		delay:    cfg.RetryDelay,
	}
}

func (r *Reliable) Name() string { return r.name }

// State exposes the breaker state to /health.
func (r *Reliable) State() gobreaker.State { return r.cb.State() }

func (r *Reliable) WriteBatch(ctx context.Context, events []domain.AuditEvent) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sink rate limit: %w", err)
	}

	_, err := r.cb.Execute(func() (interface{}, error) {
		opts := []retry.Option{
			retry.Context(ctx),
			retry.Attempts(r.attempts),
		}
		if r.delay > 0 {
			opts = append(opts, retry.Delay(r.delay))
		}

		// Only events the sink never attempted are sent again (at-most-once).
		remaining := events
		var settled error
		err := retry.New(opts...).Do(func() error {
			err := r.next.WriteBatch(ctx, remaining)

			var de *DeliveryError
			if errors.As(err, &de) {
				remaining = remaining[min(max(de.Attempted, 0), len(remaining)):]
				if len(remaining) == 0 {
					settled = err
					return nil
				}
			}
			return err
		})
		if err == nil {
			err = settled
		}
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("%s sink: %w", r.name, err)
	}
	return nil
}
