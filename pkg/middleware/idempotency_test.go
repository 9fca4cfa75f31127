package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestIdempotency_ReplaysCachedResponse(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()

	var calls int32
	handler := Idempotency(store, "Idempotency-Key")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"res-1"}`))
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", nil)
		req.Header.Set("Idempotency-Key", "key-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i, rec.Code)
		}
		if rec.Body.String() != `{"id":"res-1"}` {
			t.Fatalf("request %d: unexpected body %q", i, rec.Body.String())
		}
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected the handler to run once, ran %d times", got)
	}
}

func TestIdempotency_FailedResponseIsNotCached(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()

	var calls int32
	handler := Idempotency(store, "Idempotency-Key")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	statuses := make([]int, 2)
	for i := range statuses {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", nil)
		req.Header.Set("Idempotency-Key", "key-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses[i] = rec.Code
	}

	if statuses[0] != http.StatusConflict || statuses[1] != http.StatusCreated {
		t.Errorf("expected retry after failure to execute, got statuses %v", statuses)
	}
}

func TestIdempotency_ConcurrentRequestsCollapseToOneExecution(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()

	var calls int32
	entered := make(chan struct{})
	release := make(chan struct{})
	handler := Idempotency(store, "Idempotency-Key")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(entered)
			<-release
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"res-1"}`))
	}))

	do := func(codes chan<- int, wg *sync.WaitGroup) {
		defer wg.Done()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", nil)
		req.Header.Set("Idempotency-Key", "key-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes <- rec.Code
	}

	var wg sync.WaitGroup
	codes := make(chan int, 2)

	wg.Add(1)
	go do(codes, &wg)
	<-entered

	// The second request arrives while the first is still executing; it must
	// wait and replay, not claim a second window.
	wg.Add(1)
	go do(codes, &wg)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	close(codes)
	for code := range codes {
		if code != http.StatusCreated {
			t.Errorf("expected 201 from both requests, got %d", code)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected a single execution for concurrent requests, ran %d times", got)
	}
}
