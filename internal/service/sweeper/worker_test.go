package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var _ Reconciler = (*stubReconciler)(nil)

type stubReconciler struct {
	mu sync.Mutex

	expired      []string
	listErr      error
	reconcileErr map[string]error

	listCalls      int
	reconciled     []string
	reconcileCalls int
}

func (s *stubReconciler) ListExpired(ctx context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	if len(s.expired) > limit {
		return s.expired[:limit], nil
	}
	return s.expired, nil
}

func (s *stubReconciler) ReconcileExpired(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconcileCalls++
	if err, ok := s.reconcileErr[orderID]; ok {
		return err
	}
	s.reconciled = append(s.reconciled, orderID)
	return nil
}

func TestWorker_ProcessOnce(t *testing.T) {
	t.Parallel()

	stub := &stubReconciler{expired: []string{"order-1", "order-2", "order-3"}}
	worker := NewWorker(stub, WithBatchSize(10))

	processed, err := worker.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("ProcessOnce failed: %v", err)
	}
	if processed != 3 {
		t.Fatalf("unexpected processed count: got=%d want=3", processed)
	}
	if len(stub.reconciled) != 3 {
		t.Fatalf("unexpected reconciled orders: %v", stub.reconciled)
	}
}

func TestWorker_ProcessOnce_FailureIsolated(t *testing.T) {
	t.Parallel()

	stub := &stubReconciler{
		expired:      []string{"order-1", "order-2", "order-3"},
		reconcileErr: map[string]error{"order-2": errors.New("gateway down")},
	}
	worker := NewWorker(stub, WithBatchSize(10))

	processed, err := worker.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("ProcessOnce failed: %v", err)
	}

	// Сбой одного заказа не останавливает проход.
	if processed != 2 {
		t.Fatalf("unexpected processed count: got=%d want=2", processed)
	}
	if stub.reconcileCalls != 3 {
		t.Fatalf("unexpected reconcile calls: got=%d want=3", stub.reconcileCalls)
	}
}

func TestWorker_ProcessOnce_RespectsBatchSize(t *testing.T) {
	t.Parallel()

	stub := &stubReconciler{expired: []string{"order-1", "order-2", "order-3"}}
	worker := NewWorker(stub, WithBatchSize(2))

	processed, err := worker.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("ProcessOnce failed: %v", err)
	}
	if processed != 2 {
		t.Fatalf("unexpected processed count: got=%d want=2", processed)
	}
}

func TestWorker_ProcessOnce_ListError(t *testing.T) {
	t.Parallel()

	stub := &stubReconciler{listErr: errors.New("db down")}
	worker := NewWorker(stub)

	if _, err := worker.ProcessOnce(context.Background()); err == nil {
		t.Fatal("expected ProcessOnce error")
	}
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	stub := &stubReconciler{}
	worker := NewWorker(stub, WithInterval(5*time.Millisecond))

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
		t.Fatal("worker did not stop after context cancel")
	}

	stub.mu.Lock()
	calls := stub.listCalls
	stub.mu.Unlock()
	if calls == 0 {
		t.Fatal("expected at least one sweep run")
	}
}

func TestWorker_Run_NilReconciler(t *testing.T) {
	t.Parallel()

	worker := NewWorker(nil, WithInterval(time.Millisecond))

	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker with nil reconciler must return immediately")
	}
}
