package sla

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type countingStore struct {
	fakeStore
	mu    sync.Mutex
	scans int
	errs  int
}

func (s *countingStore) FindBreached(ctx context.Context, now time.Time) ([]BreachedTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans++
	if s.errs > 0 {
		s.errs--
		return nil, errors.New("transient failure")
	}
	return nil, nil
}

func (s *countingStore) scanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

func TestSchedulerRunsCycles(t *testing.T) {
	store := &countingStore{fakeStore: *newFakeStore()}
	engine := NewEngine(store, nil, zap.NewNop(), systemActor)
	scheduler := NewScheduler(engine, 10*time.Millisecond, zap.NewNop())

	scheduler.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	scheduler.Stop()

	assert.GreaterOrEqual(t, store.scanCount(), 2)
}

func TestSchedulerSurvivesFailingCycles(t *testing.T) {
	store := &countingStore{fakeStore: *newFakeStore(), errs: 2}
	engine := NewEngine(store, nil, zap.NewNop(), systemActor)
	scheduler := NewScheduler(engine, 10*time.Millisecond, zap.NewNop())

	scheduler.Start(context.Background())
	time.Sleep(80 * time.Millisecond)
	scheduler.Stop()

	// The two failing ticks did not stop subsequent scans.
	assert.Greater(t, store.scanCount(), 2)
}

func TestSchedulerStopTerminatesLoop(t *testing.T) {
	store := &countingStore{fakeStore: *newFakeStore()}
	engine := NewEngine(store, nil, zap.NewNop(), systemActor)
	scheduler := NewScheduler(engine, 10*time.Millisecond, zap.NewNop())

	scheduler.Start(context.Background())
	scheduler.Stop()

	count := store.scanCount()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, count, store.scanCount())
}

func TestSchedulerDefaultsInterval(t *testing.T) {
	scheduler := NewScheduler(nil, 0, zap.NewNop())
	assert.Equal(t, 5*time.Minute, scheduler.interval)
}
