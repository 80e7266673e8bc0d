package audit

/*
dispatcher.go decouples the ingestion endpoint from the log sink.

- Enqueue never blocks: the handler acknowledges the caller regardless of what
  happens to the event afterwards. A full buffer sheds load (log + metric).
- A single worker batches events and flushes on size or on a timer.
- Stop closes the input and waits for the worker to drain the buffer and run a
  final flush, so a graceful shutdown loses nothing that was accepted.
*/

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xela07ax/evco-audit/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrDispatcherClosed = errors.New("audit dispatcher is stopped")
	ErrBufferFull       = errors.New("audit buffer is full")
)

type DispatcherConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 10000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 500 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return c
}

type Dispatcher struct {
	ch       chan domain.AuditEvent
	sink     Sink
	sinkName string
	cfg      DispatcherConfig
	metrics  *Metrics
	logger   *zap.Logger

	wg        sync.WaitGroup
	mu        sync.RWMutex // guards closed against a send on a closed channel
	closed    bool
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewDispatcher(sink Sink, cfg DispatcherConfig, metrics *Metrics, logger *zap.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Dispatcher{
		ch:       make(chan domain.AuditEvent, cfg.BufferSize),
		sink:     sink,
		sinkName: sinkName(sink),
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger.With(zap.String("mod", "dispatcher"), zap.String("sink", sinkName(sink))),
	}
}

func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.worker()
	})
}

// Stop rejects new events and waits until everything buffered is flushed.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		// A never-started dispatcher still has to drain what it accepted.
		d.Start()

		d.mu.Lock()
		d.closed = true
		close(d.ch)
		d.mu.Unlock()

		d.logger.Info("stopping dispatcher: flushing buffer")
		d.wg.Wait()
		d.logger.Info("dispatcher stopped")
	})
}

// Enqueue hands an event to the worker without blocking.
func (d *Dispatcher) Enqueue(event domain.AuditEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.metrics.DroppedTotal.WithLabelValues("stopped").Inc()
		d.logger.Warn("audit event dropped: dispatcher is stopping", zap.String("id", event.ID))
		return ErrDispatcherClosed
	}

	select {
	case d.ch <- event:
		d.metrics.BufferFill.Set(float64(len(d.ch)))
		return nil
	default:
		d.metrics.DroppedTotal.WithLabelValues("overflow").Inc()
		d.logger.Error("audit_buffer_overflow",
			zap.String("id", event.ID),
			zap.String("trace_id", event.TraceID),
			zap.String("action_type", string(event.ActionType)),
		)
		return ErrBufferFull
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	batch := make([]domain.AuditEvent, 0, d.cfg.BatchSize)
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		d.write(batch)
		batch = batch[:0]
		d.metrics.BufferFill.Set(float64(len(d.ch)))
	}

	for {
		select {
		case event, ok := <-d.ch:
			if !ok {
				// Closed by Stop after every pending event was received.
				flush()
				return
			}
			batch = append(batch, event)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *Dispatcher) write(batch []domain.AuditEvent) {
	// Not tied to any request: the caller has long been answered.
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := d.sink.WriteBatch(ctx, batch)
	d.metrics.FlushDuration.WithLabelValues(d.sinkName).Observe(time.Since(start).Seconds())

	if err != nil {
		d.metrics.DispatchedTotal.WithLabelValues(d.sinkName, "failed").Add(float64(len(batch)))
		d.logger.Error("audit flush failed", zap.Int("events", len(batch)), zap.Error(err))
		return
	}
	d.metrics.DispatchedTotal.WithLabelValues(d.sinkName, "written").Add(float64(len(batch)))
}
