package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fleetops/api-gateway/models"
	"github.com/fleetops/api-gateway/repositories"
	"go.uber.org/zap"
)

var (
	// ErrNotStarted is returned when events are recorded before Start
	ErrNotStarted = errors.New("audit service not started")

	// ErrBufferFull is returned when the event buffer is full and the event was dropped
	ErrBufferFull = errors.New("audit event buffer full")
)

// Recorder accepts authentication events without blocking the request path
type Recorder interface {
	Record(event *models.AuthEvent) error
}

// LogRecorder writes events to the logger only. Used when no database is configured.
type LogRecorder struct {
	logger *zap.Logger
}

// NewLogRecorder creates a new LogRecorder
func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

// Record implements Recorder. Failures log at info so they survive the
// default level; successes stay at debug.
func (r *LogRecorder) Record(event *models.AuthEvent) error {
	if event.IsSuccess() {
		r.logger.Debug("auth event", eventFields(event)...)
		return nil
	}
	r.logger.Info("auth event", eventFields(event)...)
	return nil
}

// Service persists authentication events asynchronously through a worker pool
type Service struct {
	repo        repositories.AuthEventRepository
	logger      *zap.Logger
	events      chan *models.AuthEvent
	workerCount int
	bufferSize  int
	timeout     time.Duration
	wg          sync.WaitGroup
	mu          sync.RWMutex
	started     bool
	stopped     bool
	dropped     atomic.Int64
}

// Config holds configuration for the Service
type Config struct {
	BufferSize   int           // Size of the event buffer channel
	WorkerCount  int           // Number of concurrent workers
	WriteTimeout time.Duration // Per-insert timeout
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   1000,
		WorkerCount:  2,
		WriteTimeout: 5 * time.Second,
	}
}

// NewService creates a new audit Service. Zero config fields take their defaults.
func NewService(repo repositories.AuthEventRepository, logger *zap.Logger, config Config) *Service {
	defaults := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}

	return &Service{
		repo:        repo,
		logger:      logger,
		events:      make(chan *models.AuthEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		timeout:     config.WriteTimeout,
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop closes the buffer and waits for the workers to drain it
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.stopped = true
	close(s.events)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.events)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Record queues an event. It never blocks; when the buffer is full the
// event is dropped with a warning.
func (s *Service) Record(event *models.AuthEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		return ErrNotStarted
	}

	select {
	case s.events <- event:
		return nil
	default:
		s.dropped.Add(1)
		s.logger.Warn("audit event channel full, dropping event", eventFields(event)...)
		return ErrBufferFull
	}
}

func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.events {
		if err := s.processEvent(event); err != nil {
			s.logger.Error("failed to persist auth event",
				append(eventFields(event), zap.Int("worker_id", id), zap.Error(err))...)
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

func (s *Service) processEvent(event *models.AuthEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	return s.repo.Insert(ctx, event)
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
	Dropped       int64
}

// GetStats returns statistics about the audit service
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.events),
		WorkerCount:   s.workerCount,
		Started:       s.started && !s.stopped,
		Dropped:       s.dropped.Load(),
	}
}

func eventFields(event *models.AuthEvent) []zap.Field {
	fields := []zap.Field{
		zap.String("event_id", event.ID.String()),
		zap.String("outcome", string(event.Outcome)),
		zap.String("request_id", event.RequestID),
		zap.String("path", event.Path),
	}
	if event.Reason != "" {
		fields = append(fields, zap.String("reason", event.Reason))
	}
	if event.Subject != nil {
		fields = append(fields, zap.String("subject", *event.Subject))
	}
	return fields
}
