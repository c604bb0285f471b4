package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dearfuture/capsule-api/pkg/jobs"
)

type stubHintStore struct {
	mu     sync.Mutex
	due    []string
	marked [][]string
}

func (s *stubHintStore) ListLockedDue(_ context.Context, _ time.Time, _ int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.due, nil
}

func (s *stubHintStore) MarkUnlockedHint(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, ids)
	s.due = nil
	return nil
}

func (s *stubHintStore) markedBatches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.marked)
}

func TestHintServiceSweepFlipsDueCapsules(t *testing.T) {
	store := &stubHintStore{due: []string{"c1", "c2"}}
	svc := NewHintService(store, nil, nil, HintServiceConfig{
		SweepInterval: time.Hour,
		BatchSize:     10,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.Sweep(ctx)

	assert.Eventually(t, func() bool {
		return store.markedBatches() == 1
	}, time.Second, 10*time.Millisecond, "due batch should be flipped by a worker")

	store.mu.Lock()
	assert.Equal(t, []string{"c1", "c2"}, store.marked[0])
	store.mu.Unlock()
}

func TestHintServiceSweepSkipsEmptyBatch(t *testing.T) {
	store := &stubHintStore{}
	svc := NewHintService(store, nil, nil, HintServiceConfig{SweepInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.Sweep(ctx)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, store.markedBatches())
}

func TestHintServiceHandleFlipIgnoresBadPayload(t *testing.T) {
	store := &stubHintStore{}
	svc := NewHintService(store, nil, nil, HintServiceConfig{SweepInterval: time.Hour})

	err := svc.handleFlip(context.Background(), jobs.Job{Payload: 42})
	assert.NoError(t, err)
	assert.Zero(t, store.markedBatches())
}
