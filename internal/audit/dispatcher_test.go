package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/evco-audit/internal/domain"
)

// recordingSink copies every batch it receives.
type recordingSink struct {
	mu      sync.Mutex
	batches [][]domain.AuditEvent
	err     error
	calls   int
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) WriteBatch(_ context.Context, events []domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]domain.AuditEvent(nil), events...))
	return nil
}

func (s *recordingSink) Batches() [][]domain.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]domain.AuditEvent(nil), s.batches...)
}

func (s *recordingSink) Events() []domain.AuditEvent {
	var out []domain.AuditEvent
	for _, b := range s.Batches() {
		out = append(out, b...)
	}
	return out
}

func (s *recordingSink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func event(i int) domain.AuditEvent {
	return domain.AuditEvent{
		ID:             fmt.Sprintf("evt-%d", i),
		ActionType:     domain.ActionDocumentApproved,
		TargetEntityID: fmt.Sprintf("doc-%d", i),
	}
}

func TestDispatcherFlushesOnBatchSize(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, DispatcherConfig{BatchSize: 2, FlushInterval: time.Hour}, nil, zap.NewNop())
	d.Start()
	defer d.Stop()

	for i := range 4 {
		require.NoError(t, d.Enqueue(event(i)))
	}

	require.Eventually(t, func() bool { return len(sink.Batches()) == 2 }, time.Second, 5*time.Millisecond)
	for _, b := range sink.Batches() {
		assert.Len(t, b, 2)
	}
}

func TestDispatcherFlushesOnInterval(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, DispatcherConfig{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, nil, zap.NewNop())
	d.Start()
	defer d.Stop()

	require.NoError(t, d.Enqueue(event(1)))

	require.Eventually(t, func() bool { return len(sink.Events()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "evt-1", sink.Events()[0].ID)
}

func TestDispatcherStopDrainsInOrder(t *testing.T) {
	sink := &recordingSink{}
	metrics := NewMetrics(nil)
	d := NewDispatcher(sink, DispatcherConfig{BatchSize: 100, FlushInterval: time.Hour}, metrics, zap.NewNop())
	d.Start()

	for i := range 5 {
		require.NoError(t, d.Enqueue(event(i)))
	}
	d.Stop()

	events := sink.Events()
	require.Len(t, events, 5)
	for i, e := range events {
		assert.Equal(t, fmt.Sprintf("evt-%d", i), e.ID)
	}
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.DispatchedTotal.WithLabelValues("recording", "written")))

	// Stopped dispatchers refuse new work; Stop is idempotent.
	err := d.Enqueue(event(6))
	assert.ErrorIs(t, err, ErrDispatcherClosed)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DroppedTotal.WithLabelValues("stopped")))
	d.Stop()
}

func TestDispatcherStopWithoutStart(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, DispatcherConfig{}, nil, zap.NewNop())

	require.NoError(t, d.Enqueue(event(1)))
	d.Stop()

	assert.Len(t, sink.Events(), 1)
}

func TestDispatcherShedsLoadWhenFull(t *testing.T) {
	sink := &recordingSink{}
	metrics := NewMetrics(nil)
	// Not started: nothing drains the buffer until Stop.
	d := NewDispatcher(sink, DispatcherConfig{BufferSize: 2, BatchSize: 10, FlushInterval: time.Hour}, metrics, zap.NewNop())

	require.NoError(t, d.Enqueue(event(1)))
	require.NoError(t, d.Enqueue(event(2)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.BufferFill))

	err := d.Enqueue(event(3))
	assert.ErrorIs(t, err, ErrBufferFull)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DroppedTotal.WithLabelValues("overflow")))

	d.Stop()
	assert.Len(t, sink.Events(), 2)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.BufferFill))
}

func TestDispatcherCountsFailedWrites(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk on fire")}
	metrics := NewMetrics(nil)
	d := NewDispatcher(sink, DispatcherConfig{BatchSize: 3, FlushInterval: time.Hour}, metrics, zap.NewNop())
	d.Start()

	for i := range 3 {
		require.NoError(t, d.Enqueue(event(i)))
	}
	d.Stop()

	assert.Equal(t, 1, sink.Calls())
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.DispatchedTotal.WithLabelValues("recording", "failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.DispatchedTotal.WithLabelValues("recording", "written")))
}

func TestDispatcherConcurrentEnqueueAndStop(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, DispatcherConfig{BufferSize: 10000, BatchSize: 50, FlushInterval: time.Millisecond}, nil, zap.NewNop())
	d.Start()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				if d.Enqueue(event(g*1000+i)) == nil {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}
		}()
	}

	time.Sleep(time.Millisecond)
	d.Stop()
	wg.Wait()

	// Whatever was accepted was written; nothing more.
	assert.Len(t, sink.Events(), accepted)
}
