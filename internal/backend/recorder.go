package backend

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-httpservice/internal/httpservice"
	"github.com/sirosfoundation/go-httpservice/internal/storage"
)

// DefaultQueueSize is the number of events a Recorder buffers
const DefaultQueueSize = 256

// Recorder writes registry events to an audit store. HandleEvent never
// blocks the registry: when the queue is full the event is dropped and
// counted.
type Recorder struct {
	store     storage.AuditStore
	logger    *zap.Logger
	queue     chan httpservice.Event
	retention time.Duration
	timeout   time.Duration

	dropped atomic.Int64
	done    chan struct{}
	once    sync.Once

	mu     sync.RWMutex
	closed bool
}

// RecorderOption configures a Recorder
type RecorderOption func(*Recorder)

// WithQueueSize sets the event buffer size
func WithQueueSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan httpservice.Event, n)
		}
	}
}

// WithRetention makes the recorder prune records older than d once an hour
func WithRetention(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.retention = d }
}

// NewRecorder starts a recorder writing into store
func NewRecorder(store storage.AuditStore, logger *zap.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:   store,
		logger:  logger.Named("audit"),
		queue:   make(chan httpservice.Event, DefaultQueueSize),
		timeout: 5 * time.Second,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.run()
	return r
}

// HandleEvent implements httpservice.Listener
func (r *Recorder) HandleEvent(e httpservice.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- e:
	default:
		n := r.dropped.Add(1)
		r.logger.Warn("Audit queue full, dropping event",
			zap.String("type", string(e.Type)),
			zap.String("alias", e.Alias),
			zap.Int64("dropped_total", n))
	}
}

// Dropped returns how many events were discarded because the queue was full
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops accepting events and waits until queued ones are written or
// ctx expires.
func (r *Recorder) Close(ctx context.Context) error {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
	})
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run() {
	defer close(r.done)

	var prune <-chan time.Time
	if r.retention > 0 {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		prune = ticker.C
	}

	for {
		select {
		case e, ok := <-r.queue:
			if !ok {
				return
			}
			r.write(e)
		case <-prune:
			r.prune()
		}
	}
}

func (r *Recorder) write(e httpservice.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	rec := &storage.AuditRecord{
		ID:             uuid.NewString(),
		Event:          string(e.Type),
		Alias:          e.Alias,
		ContextPath:    e.ContextPath,
		Owner:          e.Owner,
		Kind:           string(e.Kind),
		RegistrationID: e.RegistrationID,
		Time:           e.Time,
	}
	if err := r.store.Append(ctx, rec); err != nil {
		r.logger.Error("Failed to record audit event",
			zap.String("type", rec.Event),
			zap.String("alias", rec.Alias),
			zap.Error(err))
	}
}

func (r *Recorder) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	removed, err := r.store.DeleteBefore(ctx, time.Now().Add(-r.retention))
	if err != nil {
		r.logger.Error("Failed to prune audit records", zap.Error(err))
		return
	}
	if removed > 0 {
		r.logger.Debug("Pruned audit records", zap.Int64("removed", removed))
	}
}
