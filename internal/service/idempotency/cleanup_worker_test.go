package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

var _ domain.IdempotencyRepository = (*fakeKeyStore)(nil)

func TestCleanupWorker_DeleteExpired_DrainsInBatches(t *testing.T) {
	t.Parallel()

	// Две полные порции по 2 и хвост из 1 записи: воркер должен
	// остановиться после первой неполной порции.
	store := &fakeKeyStore{deleteResults: []int{2, 2, 1}}

	worker := NewCleanupWorker(store, WithBatchSize(2))

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}

	if deleted != 5 {
		t.Fatalf("unexpected deleted total: got=%d want=5", deleted)
	}

	if calls := store.calls(); calls != 3 {
		t.Fatalf("unexpected delete calls: got=%d want=3", calls)
	}
}

func TestCleanupWorker_DeleteExpired_StopsAfterFirstShortBatch(t *testing.T) {
	t.Parallel()

	store := &fakeKeyStore{deleteResults: []int{3, 10}}

	worker := NewCleanupWorker(store, WithBatchSize(10))

	deleted, err := worker.DeleteExpired(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("unexpected deleted total: got=%d want=3", deleted)
	}
	if calls := store.calls(); calls != 1 {
		t.Fatalf("expected a single delete call, got %d", calls)
	}
}

func TestCleanupWorker_DeleteExpired_Error(t *testing.T) {
	t.Parallel()

	store := &fakeKeyStore{deleteErrors: []error{errors.New("boom")}}

	worker := NewCleanupWorker(store, WithBatchSize(10))

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
	if err == nil {
		t.Fatal("expected DeleteExpired error")
	}
	if deleted != 0 {
		t.Fatalf("unexpected deleted total: got=%d want=0", deleted)
	}
}

func TestCleanupWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	store := &fakeKeyStore{deleteResults: []int{0, 0, 0}}

	worker := NewCleanupWorker(
		store,
		WithInterval(5*time.Millisecond),
		WithBatchSize(10),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}

	if calls := store.calls(); calls == 0 {
		t.Fatal("expected cleanup to be called at least once")
	}
}

// fakeKeyStore реализует только DeleteExpired: остальные методы
// репозитория воркеру не нужны.
type fakeKeyStore struct {
	mu sync.Mutex

	deleteResults []int
	deleteErrors  []error
	callCount     int
}

func (s *fakeKeyStore) CreateProcessing(string, string, time.Time) (domain.IdempotencyRecord, error) {
	panic("not implemented")
}

func (s *fakeKeyStore) Get(string) (domain.IdempotencyRecord, error) {
	panic("not implemented")
}

func (s *fakeKeyStore) MarkDone(string, []byte, int) error {
	panic("not implemented")
}

func (s *fakeKeyStore) MarkFailed(string, []byte, int) error {
	panic("not implemented")
}

func (s *fakeKeyStore) DeleteExpired(_ time.Time, _ int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++

	if len(s.deleteErrors) > 0 {
		err := s.deleteErrors[0]
		s.deleteErrors = s.deleteErrors[1:]
		if err != nil {
			return 0, err
		}
	}

	if len(s.deleteResults) == 0 {
		return 0, nil
	}
	result := s.deleteResults[0]
	s.deleteResults = s.deleteResults[1:]
	return result, nil
}

func (s *fakeKeyStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}
