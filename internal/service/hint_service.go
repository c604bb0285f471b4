package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dearfuture/capsule-api/pkg/jobs"
)

// hintStore is implemented by backends that can maintain the denormalised
// unlocked hint. The legacy store cannot, so the sweeper only runs against
// Postgres.
type hintStore interface {
	ListLockedDue(ctx context.Context, now time.Time, limit int) ([]string, error)
	MarkUnlockedHint(ctx context.Context, ids []string) error
}

type hintObserver interface {
	ObserveHintSweep(flipped int)
}

// HintServiceConfig tunes the sweep cadence and batching.
type HintServiceConfig struct {
	SweepInterval time.Duration
	BatchSize     int
	Workers       int
	Retries       int
}

// HintService periodically flips the advisory unlocked hint on capsules whose
// unlock instant has passed. The hint only speeds up list ordering; access
// decisions never read it, so a late or missed sweep is harmless.
type HintService struct {
	store   hintStore
	metrics hintObserver
	logger  *zap.Logger
	cfg     HintServiceConfig

	queue  *jobs.Queue
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewHintService constructs the sweeper. metrics may be nil.
func NewHintService(store hintStore, metrics hintObserver, logger *zap.Logger, cfg HintServiceConfig) *HintService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	s := &HintService{
		store:   store,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
	s.queue = jobs.NewQueue("hint-flips", s.handleFlip, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		Logger:     logger,
	})
	return s
}

// Start launches the worker queue and the sweep loop.
func (s *HintService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.queue.Start(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("hint sweeper started", zap.Duration("interval", s.cfg.SweepInterval))
}

// Stop halts the sweep loop and drains workers.
func (s *HintService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.queue.Stop()
	s.logger.Info("hint sweeper stopped")
}

func (s *HintService) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep finds capsules whose hint is stale and enqueues a flip batch. Exposed
// so an operator trigger or a test can run a single pass synchronously.
func (s *HintService) Sweep(ctx context.Context) {
	ids, err := s.store.ListLockedDue(ctx, s.now().UTC(), s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("hint sweep query failed", zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveHintSweep(len(ids))
	}
	if len(ids) == 0 {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "flip-unlocked-hint",
		Payload: ids,
	}); err != nil {
		s.logger.Error("failed to enqueue hint flip batch", zap.Int("count", len(ids)), zap.Error(err))
	}
}

func (s *HintService) handleFlip(ctx context.Context, job jobs.Job) error {
	ids, ok := job.Payload.([]string)
	if !ok || len(ids) == 0 {
		return nil
	}
	if err := s.store.MarkUnlockedHint(ctx, ids); err != nil {
		return err
	}
	s.logger.Debug("unlocked hints flipped", zap.Int("count", len(ids)))
	return nil
}
