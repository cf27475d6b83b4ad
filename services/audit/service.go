package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/upb/helpdesk-orchestrator/internal/observability"
	"github.com/upb/helpdesk-orchestrator/internal/redact"
	"github.com/upb/helpdesk-orchestrator/models"
	"github.com/upb/helpdesk-orchestrator/repositories"
	"go.uber.org/zap"
)

var (
	// ErrNotStarted is returned when the service is used before Start
	ErrNotStarted = errors.New("audit service not started")
	// ErrBufferFull is returned when an interaction is dropped
	ErrBufferFull = errors.New("audit buffer full")
)

// AuditService persists interactions asynchronously
type AuditService struct {
	repo        repositories.InteractionRepository
	metrics     *observability.Metrics
	logger      *zap.Logger
	eventChan   chan *models.Interaction
	workerCount int
	bufferSize  int
	redactPII   bool
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	stopped     bool
	mu          sync.RWMutex
	written     atomic.Uint64
	dropped     atomic.Uint64
	failed      atomic.Uint64
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize  int  // Size of the event buffer channel
	WorkerCount int  // Number of concurrent workers
	RedactPII   bool // Mask personal data in stored questions
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 2,
	}
}

// NewAuditService creates a new AuditService instance. metrics may be nil.
func NewAuditService(repo repositories.InteractionRepository, metrics *observability.Metrics, logger *zap.Logger, config Config) *AuditService {
	def := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = def.WorkerCount
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &AuditService{
		repo:        repo,
		metrics:     metrics,
		logger:      logger,
		eventChan:   make(chan *models.Interaction, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		redactPII:   config.RedactPII,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
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

// Stop stops accepting interactions and waits up to timeout for the
// buffered ones to be written
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	// senders hold the read lock, so none is mid-send here
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogInteraction queues interaction without blocking. A full buffer drops it.
func (s *AuditService) LogInteraction(interaction *models.Interaction) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		return ErrNotStarted
	}

	select {
	case s.eventChan <- interaction:
		return nil
	default:
		s.dropped.Add(1)
		s.metrics.RecordAuditDropped()
		s.logger.Warn("audit buffer full, dropping interaction",
			zap.String("request_id", interaction.RequestID),
			zap.String("interaction_id", interaction.ID.String()))
		return ErrBufferFull
	}
}

// worker processes events from the channel
func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for interaction := range s.eventChan {
		if err := s.process(interaction); err != nil {
			s.failed.Add(1)
			s.logger.Error("failed to persist interaction",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("request_id", interaction.RequestID))
			continue
		}
		s.written.Add(1)
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// process writes one interaction. Inserts still running when Stop gives up
// are canceled.
func (s *AuditService) process(interaction *models.Interaction) error {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	if s.redactPII {
		stored := *interaction
		stored.Question = redact.String(interaction.Question)
		interaction = &stored
	}

	if err := s.repo.Insert(ctx, interaction); err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	return nil
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started && !s.stopped,
		Written:       s.written.Load(),
		Dropped:       s.dropped.Load(),
		Failed:        s.failed.Load(),
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int    `json:"buffer_size"`
	PendingEvents int    `json:"pending_events"`
	WorkerCount   int    `json:"worker_count"`
	Started       bool   `json:"started"`
	Written       uint64 `json:"written"`
	Dropped       uint64 `json:"dropped"`
	Failed        uint64 `json:"failed"`
}
