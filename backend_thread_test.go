package execpool

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestThreadBackend_ExecuteRunsCommand(t *testing.T) {
	skipOnWindows(t)
	b := NewThreadBackend(2, nil)
	defer b.Close()

	res, err := b.Execute(context.Background(), NewCommand("echo", []string{"hi"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.TrimSpace(string(res.Stdout)); got != "hi" {
		t.Errorf("expected stdout %q, got %q", "hi", got)
	}
}

func TestThreadBackend_DrainsQueueAcrossFixedWorkers(t *testing.T) {
	skipOnWindows(t)
	b := NewThreadBackend(2, nil)
	defer b.Close()

	const n = 6
	var wg sync.WaitGroup
	errs := make(chan *Error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Execute(context.Background(), NewCommand("echo", []string{"x"}))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
}

func TestThreadBackend_CloseDrainsInFlightWork(t *testing.T) {
	skipOnWindows(t)
	b := NewThreadBackend(1, nil)

	resultCh := make(chan *Error, 1)
	go func() {
		_, err := b.Execute(context.Background(), NewCommand("sh", []string{"-c", "sleep 0.05"}))
		resultCh <- err
	}()

	time.Sleep(5 * time.Millisecond)
	if err := b.Close(); err != nil {
		t.Fatalf("unexpected error from Close: %v", err)
	}

	select {
	case err := <-resultCh:
		if err != nil {
			t.Errorf("expected in-flight work to finish cleanly, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected Close to wait for in-flight work")
	}
}

func TestThreadBackend_ExecuteAfterCloseIsQueueClosed(t *testing.T) {
	b := NewThreadBackend(1, nil)
	b.Close()

	_, err := b.Execute(context.Background(), NewCommand("echo", []string{"hi"}))
	if err == nil || !err.IsQueueClosed() {
		t.Fatalf("expected QueueClosedErrorKind after Close, got %v", err)
	}
}

func TestThreadBackend_SecondCloseIsNoOp(t *testing.T) {
	b := NewThreadBackend(1, nil)
	if err := b.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("expected second Close to be a no-op, got %v", err)
	}
}
