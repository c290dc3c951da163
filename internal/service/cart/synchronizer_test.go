package cart_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/verdora/storefront/internal/domain"
	"github.com/verdora/storefront/internal/service/cart"
	"github.com/verdora/storefront/internal/session"
	"github.com/verdora/storefront/internal/storage/memory"
)

// flakyCartRepo оборачивает репозиторий и позволяет инъектировать ошибки
// и подсчитывать обращения.
type flakyCartRepo struct {
	domain.CartRepository

	mu          sync.Mutex
	listCalls   int
	deleteCalls int
	failDeleteN int
	listGate    chan struct{}
	listErr     error
}

func (r *flakyCartRepo) ListByUser(ctx context.Context, userID string) ([]domain.CartItem, error) {
	r.mu.Lock()
	r.listCalls++
	gate := r.listGate
	err := r.listErr
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return r.CartRepository.ListByUser(ctx, userID)
}

func (r *flakyCartRepo) Delete(ctx context.Context, itemID string) error {
	r.mu.Lock()
	r.deleteCalls++
	fail := r.failDeleteN != 0 && r.deleteCalls == r.failDeleteN
	r.mu.Unlock()

	if fail {
		return errors.New("simulated delete failure")
	}
	return r.CartRepository.Delete(ctx, itemID)
}

func (r *flakyCartRepo) listCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCalls
}

func newTestSynchronizer(t *testing.T, userID string) (*cart.Synchronizer, *flakyCartRepo) {
	t.Helper()

	repo := &flakyCartRepo{CartRepository: memory.NewCartRepository()}
	tracker := session.NewTracker()
	tracker.SignIn(userID)

	s := cart.NewSynchronizer(repo, tracker)
	t.Cleanup(s.Close)
	return s, repo
}

func TestSynchronizer_AddMergesSameProduct(t *testing.T) {
	s, _ := newTestSynchronizer(t, "user-1")
	ctx := context.Background()

	snap, err := s.Add(ctx, "product-7", 1)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(snap.Items) != 1 || snap.Items[0].Quantity != 1 {
		t.Fatalf("expected single row qty=1, got %+v", snap.Items)
	}

	snap, err = s.Add(ctx, "product-7", 2)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(snap.Items) != 1 {
		t.Fatalf("expected merge into single row, got %d rows", len(snap.Items))
	}
	if snap.Items[0].Quantity != 3 {
		t.Fatalf("expected qty=3 after merge, got %d", snap.Items[0].Quantity)
	}
}

func TestSynchronizer_AddGuestRequiresAuth(t *testing.T) {
	repo := &flakyCartRepo{CartRepository: memory.NewCartRepository()}
	tracker := session.NewTracker()

	s := cart.NewSynchronizer(repo, tracker)
	defer s.Close()

	if _, err := s.Add(context.Background(), "product-7", 1); !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
	if repo.listCount() != 0 {
		t.Fatalf("guest add must not touch storage, got %d reads", repo.listCount())
	}
}

func TestSynchronizer_UpdateQuantityBelowOneIsNoop(t *testing.T) {
	s, repo := newTestSynchronizer(t, "user-1")
	ctx := context.Background()

	snap, err := s.Add(ctx, "product-7", 2)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	itemID := snap.Items[0].ID
	readsBefore := repo.listCount()

	for _, qty := range []int32{0, -5} {
		snap, err = s.UpdateQuantity(ctx, itemID, qty)
		if err != nil {
			t.Fatalf("update(%d) returned error: %v", qty, err)
		}
		if snap.Items[0].Quantity != 2 {
			t.Fatalf("update(%d) changed quantity to %d", qty, snap.Items[0].Quantity)
		}
	}
	if repo.listCount() != readsBefore {
		t.Fatalf("no-op update must not refetch, reads went %d -> %d", readsBefore, repo.listCount())
	}

	snap, err = s.UpdateQuantity(ctx, itemID, 5)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if snap.Items[0].Quantity != 5 {
		t.Fatalf("expected qty=5, got %d", snap.Items[0].Quantity)
	}
}

func TestSynchronizer_FetchInFlightGuard(t *testing.T) {
	s, repo := newTestSynchronizer(t, "user-1")
	ctx := context.Background()

	gate := make(chan struct{})
	repo.mu.Lock()
	repo.listGate = gate
	repo.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := s.Fetch(ctx); err != nil {
			t.Errorf("fetch failed: %v", err)
		}
	}()

	// Дождаться, пока первый Fetch займёт guard.
	waitFor(t, func() bool { return repo.listCount() == 1 })

	snap, err := s.Fetch(ctx)
	if err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if snap.State != cart.StateLoading {
		t.Fatalf("expected loading snapshot during in-flight fetch, got %s", snap.State)
	}
	if repo.listCount() != 1 {
		t.Fatalf("in-flight guard violated: %d remote reads", repo.listCount())
	}

	close(gate)
	<-done
}

func TestSynchronizer_LogoutClearsBeforeStaleFetchResolves(t *testing.T) {
	repo := &flakyCartRepo{CartRepository: memory.NewCartRepository()}
	tracker := session.NewTracker()
	tracker.SignIn("user-1")

	s := cart.NewSynchronizer(repo, tracker)
	defer s.Close()

	ctx := context.Background()
	if _, err := s.Add(ctx, "product-1", 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	gate := make(chan struct{})
	repo.mu.Lock()
	repo.listGate = gate
	reads := repo.listCalls
	repo.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Fetch(ctx)
	}()
	waitFor(t, func() bool { return repo.listCount() == reads+1 })

	tracker.SignOut()

	// Снимок очищается синхронно, до завершения устаревшего чтения.
	snap := s.Snapshot()
	if snap.State != cart.StateUninitialized || len(snap.Items) != 0 {
		t.Fatalf("expected cleared snapshot after sign out, got state=%s items=%d", snap.State, len(snap.Items))
	}

	close(gate)
	<-done

	// Ответ для прежнего пользователя отброшен.
	snap = s.Snapshot()
	if len(snap.Items) != 0 {
		t.Fatalf("stale fetch leaked %d items into guest session", len(snap.Items))
	}
}

func TestSynchronizer_ClearPartialFailure(t *testing.T) {
	s, repo := newTestSynchronizer(t, "user-1")
	ctx := context.Background()

	for _, productID := range []string{"product-1", "product-2", "product-3"} {
		if _, err := s.Add(ctx, productID, 1); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	repo.mu.Lock()
	repo.deleteCalls = 0
	repo.failDeleteN = 2
	repo.mu.Unlock()

	snap, err := s.Clear(ctx)
	if err == nil {
		t.Fatal("expected error from partial clear")
	}
	if len(snap.Items) != 1 {
		t.Fatalf("partial clear must leave exactly 1 item, got %d", len(snap.Items))
	}
}

func TestSynchronizer_ClearOnColdSnapshotReadsStorageFirst(t *testing.T) {
	repo := &flakyCartRepo{CartRepository: memory.NewCartRepository()}
	tracker := session.NewTracker()
	tracker.SignIn("user-1")

	ctx := context.Background()

	warm := cart.NewSynchronizer(repo, tracker)
	defer warm.Close()
	if _, err := warm.Add(ctx, "product-1", 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// Свежий синхронизатор того же пользователя ещё ничего не читал.
	cold := cart.NewSynchronizer(repo, tracker)
	defer cold.Close()

	snap, err := cold.Clear(ctx)
	if err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if len(snap.Items) != 0 {
		t.Fatalf("expected empty snapshot after clear, got %d items", len(snap.Items))
	}

	rows, err := repo.CartRepository.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("clear on cold synchronizer left %d rows in storage", len(rows))
	}
}

type countingFetchMetrics struct {
	mu      sync.Mutex
	fetches int
	skips   int
}

func (m *countingFetchMetrics) RecordCartFetch() {
	m.mu.Lock()
	m.fetches++
	m.mu.Unlock()
}

func (m *countingFetchMetrics) RecordCartFetchSkipped() {
	m.mu.Lock()
	m.skips++
	m.mu.Unlock()
}

func (m *countingFetchMetrics) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches, m.skips
}

func TestSynchronizer_FetchMetrics(t *testing.T) {
	repo := &flakyCartRepo{CartRepository: memory.NewCartRepository()}
	tracker := session.NewTracker()
	tracker.SignIn("user-1")

	counters := &countingFetchMetrics{}
	s := cart.NewSynchronizer(repo, tracker, cart.WithFetchMetrics(counters))
	defer s.Close()

	ctx := context.Background()
	if _, err := s.Fetch(ctx); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if fetches, skips := counters.counts(); fetches != 1 || skips != 0 {
		t.Fatalf("expected 1 fetch / 0 skips, got %d / %d", fetches, skips)
	}

	gate := make(chan struct{})
	repo.mu.Lock()
	repo.listGate = gate
	repo.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Fetch(ctx)
	}()
	waitFor(t, func() bool { return repo.listCount() == 2 })

	// Дублирующий запрос гасится guard-ом и попадает в счётчик пропусков.
	if _, err := s.Fetch(ctx); err != nil {
		t.Fatalf("guarded fetch failed: %v", err)
	}
	if fetches, skips := counters.counts(); fetches != 2 || skips != 1 {
		t.Fatalf("expected 2 fetches / 1 skip, got %d / %d", fetches, skips)
	}

	close(gate)
	<-done
}

func TestSynchronizer_FetchFailurePreservesState(t *testing.T) {
	s, repo := newTestSynchronizer(t, "user-1")
	ctx := context.Background()

	if _, err := s.Add(ctx, "product-1", 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	repo.mu.Lock()
	repo.listErr = errors.New("storage unavailable")
	repo.mu.Unlock()

	snap, err := s.Fetch(ctx)
	if err == nil {
		t.Fatal("expected fetch error")
	}
	if snap.State != cart.StateError {
		t.Fatalf("expected error state, got %s", snap.State)
	}
	if len(snap.Items) != 1 {
		t.Fatalf("previous snapshot must be preserved on failure, got %d items", len(snap.Items))
	}

	// Ручной retry возвращает корзину в ready.
	repo.mu.Lock()
	repo.listErr = nil
	repo.mu.Unlock()

	snap, err = s.Fetch(ctx)
	if err != nil {
		t.Fatalf("retry fetch failed: %v", err)
	}
	if snap.State != cart.StateReady || snap.Err != nil {
		t.Fatalf("expected ready snapshot after retry, got state=%s err=%v", snap.State, snap.Err)
	}
}

func TestSynchronizer_NoDuplicateRows(t *testing.T) {
	s, _ := newTestSynchronizer(t, "user-1")
	ctx := context.Background()

	if _, err := s.Add(ctx, "product-1", 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	snap, err := s.Add(ctx, "product-2", 1)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := s.Remove(ctx, snap.Items[0].ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := s.Add(ctx, "product-1", 4); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	snap, err = s.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	seen := make(map[string]bool)
	for _, item := range snap.Items {
		key := item.UserID + "/" + item.ProductID
		if seen[key] {
			t.Fatalf("duplicate row for %s", key)
		}
		seen[key] = true
	}
}

func TestRegistry_SharesSynchronizerPerUser(t *testing.T) {
	registry := cart.NewRegistry(memory.NewCartRepository())

	a := registry.ForUser("user-1")
	b := registry.ForUser("user-1")
	if a != b {
		t.Fatal("expected one synchronizer per user")
	}

	other := registry.ForUser("user-2")
	if other == a {
		t.Fatal("expected distinct synchronizers per user")
	}

	registry.Drop("user-1")
	if registry.ForUser("user-1") == a {
		t.Fatal("expected fresh synchronizer after drop")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
