// Package audit delivers audit entries to storage in the background.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/audit"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

const (
	defaultBufferSize   = 256
	defaultWriteTimeout = 5 * time.Second
)

// AsyncSink queues entries and appends them from a single worker.
// Record never blocks: a full queue drops the entry and logs it.
type AsyncSink struct {
	repo         audit.Repository
	logger       *zap.Logger
	queue        chan audit.Entry
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	dropped atomic.Int64
	failed  atomic.Int64
	written atomic.Int64
}

// SinkOption configures an AsyncSink
type SinkOption func(*AsyncSink)

// WithBufferSize sets the queue capacity
func WithBufferSize(n int) SinkOption {
	return func(s *AsyncSink) {
		if n > 0 {
			s.queue = make(chan audit.Entry, n)
		}
	}
}

// WithWriteTimeout bounds each repository append
func WithWriteTimeout(d time.Duration) SinkOption {
	return func(s *AsyncSink) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// NewAsyncSink starts a sink writing to repo
func NewAsyncSink(repo audit.Repository, l *zap.Logger, opts ...SinkOption) *AsyncSink {
	s := &AsyncSink{
		repo:         repo,
		logger:       l.Named("audit"),
		queue:        make(chan audit.Entry, defaultBufferSize),
		writeTimeout: defaultWriteTimeout,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

// Record implements audit.Sink
func (s *AsyncSink) Record(ctx context.Context, entry audit.Entry) {
	entry = withRequestMeta(ctx, entry)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn("Audit sink closed, entry dropped", zap.String("action", entry.Action))
		s.dropped.Add(1)
		return
	}

	select {
	case s.queue <- entry:
	default:
		s.dropped.Add(1)
		s.logger.Warn("Audit queue full, entry dropped",
			zap.String("action", entry.Action),
			zap.String("entity_id", entry.EntityID))
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for entry := range s.queue {
		s.write(entry)
	}
}

func (s *AsyncSink) write(entry audit.Entry) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Audit write panicked", zap.Any("panic", r), zap.String("action", entry.Action))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	if err := s.repo.Append(ctx, &entry); err != nil {
		s.failed.Add(1)
		s.logger.Error("Failed to write audit entry",
			zap.String("action", entry.Action),
			zap.String("entity_type", entry.EntityType),
			zap.String("entity_id", entry.EntityID),
			zap.Error(err))
		return
	}
	s.written.Add(1)
}

// Close stops accepting entries and waits for the queue to drain
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SinkStats reports delivery counters
type SinkStats struct {
	Written int64
	Failed  int64
	Dropped int64
}

// Stats returns the current delivery counters
func (s *AsyncSink) Stats() SinkStats {
	return SinkStats{Written: s.written.Load(), Failed: s.failed.Load(), Dropped: s.dropped.Load()}
}

func withRequestMeta(ctx context.Context, entry audit.Entry) audit.Entry {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	meta := logger.GetRequestMeta(ctx)
	if entry.RequestID == "" {
		entry.RequestID = meta.RequestID
		if entry.RequestID == "" {
			entry.RequestID = logger.GetRequestID(ctx)
		}
	}
	if entry.IP == "" {
		entry.IP = meta.IP
	}
	if entry.UserAgent == "" {
		entry.UserAgent = meta.UserAgent
	}
	if entry.Route == "" {
		entry.Route = meta.Route
	}
	if entry.Method == "" {
		entry.Method = meta.Method
	}
	return entry
}

var _ audit.Sink = (*AsyncSink)(nil)
