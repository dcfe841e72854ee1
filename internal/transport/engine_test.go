package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/azfoundry/foundry-go/sdk/apierr"
)

func testEngine(maxRetries int) *Engine {
	return &Engine{
		Policy: RetryPolicy{MaxRetries: maxRetries, InitialBackoff: 1 * time.Millisecond},
		Logger: zerolog.Nop(),
	}
}

func attemptAgainst(srv *httptest.Server) AttemptFunc {
	return func(ctx context.Context, attempt int) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
		if err != nil {
			return nil, err
		}
		return srv.Client().Do(req)
	}
}

func TestDoReturnsFirstSuccess(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, attempts, err := testEngine(3).Do(context.Background(), attemptAgainst(srv))
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	defer resp.Body.Close()

	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
}

func TestDoExhaustsRetriesOnPersistentFailure(t *testing.T) {
	// A server that always returns a retriable status causes exactly
	// maxRetries+1 attempts, then a terminal error.
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("overloaded"))
	}))
	defer srv.Close()

	const maxRetries = 3
	_, attempts, err := testEngine(maxRetries).Do(context.Background(), attemptAgainst(srv))
	if err == nil {
		t.Fatal("Do() succeeded, want terminal error")
	}

	if attempts != maxRetries+1 {
		t.Errorf("attempts = %d, want %d", attempts, maxRetries+1)
	}
	if got := atomic.LoadInt32(&hits); got != maxRetries+1 {
		t.Errorf("server hits = %d, want %d", got, maxRetries+1)
	}

	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *apierr.Error, got %T", err)
	}
	if ae.Kind != apierr.KindHTTP || ae.Status != http.StatusServiceUnavailable {
		t.Errorf("error = %+v, want http kind with status 503", ae)
	}
}

func TestDoRecoversAfterTransientFailures(t *testing.T) {
	// k retriable responses then success: exactly k+1 attempts, no error.
	const k = 2
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= k {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, attempts, err := testEngine(5).Do(context.Background(), attemptAgainst(srv))
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	resp.Body.Close()

	if attempts != k+1 {
		t.Errorf("attempts = %d, want %d", attempts, k+1)
	}
}

func TestDoDoesNotRetryTerminalStatuses(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"BadRequest","message":"temperature out of range"}}`))
	}))
	defer srv.Close()

	_, attempts, err := testEngine(3).Do(context.Background(), attemptAgainst(srv))
	if err == nil {
		t.Fatal("Do() succeeded, want API error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 for terminal status", attempts)
	}

	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *apierr.Error, got %T", err)
	}
	if ae.Kind != apierr.KindAPI || ae.Code != "BadRequest" {
		t.Errorf("error = %+v, want api kind with code BadRequest", ae)
	}
	if !strings.Contains(ae.Message, "temperature out of range") {
		t.Errorf("message = %q, want structured message preserved", ae.Message)
	}
}

func TestDoRetriesTransportErrors(t *testing.T) {
	// A transport failure before any status gets the same retry-or-surface
	// decision as a retriable status.
	var calls int32
	fail := errors.New("connection reset by peer")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	makeAttempt := func(ctx context.Context, attempt int) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, fail
		}
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
		return srv.Client().Do(req)
	}

	resp, attempts, err := testEngine(3).Do(context.Background(), makeAttempt)
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	resp.Body.Close()
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestDoSurfacesTransportErrorAfterExhaustion(t *testing.T) {
	fail := errors.New("connection reset by peer")
	makeAttempt := func(ctx context.Context, attempt int) (*http.Response, error) {
		return nil, fail
	}

	_, attempts, err := testEngine(2).Do(context.Background(), makeAttempt)
	if err == nil {
		t.Fatal("Do() succeeded, want error")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if apierr.KindOf(err) != apierr.KindHTTP {
		t.Errorf("kind = %v, want http", apierr.KindOf(err))
	}
	if !errors.Is(err, fail) {
		t.Error("root transport error lost from cause chain")
	}
}

func TestDoSurfacesPreclassifiedErrorsImmediately(t *testing.T) {
	// An attempt that fails credential resolution must not be retried in
	// isolation.
	var calls int32
	authErr := apierr.Auth("token fetch failed", errors.New("identity provider down"))
	makeAttempt := func(ctx context.Context, attempt int) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, authErr
	}

	_, attempts, err := testEngine(5).Do(context.Background(), makeAttempt)
	if attempts != 1 || atomic.LoadInt32(&calls) != 1 {
		t.Errorf("attempts = %d, calls = %d, want 1 each", attempts, calls)
	}
	if apierr.KindOf(err) != apierr.KindAuth {
		t.Errorf("kind = %v, want auth", apierr.KindOf(err))
	}
}

func TestDoDoesNotRetryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	makeAttempt := func(ctx context.Context, attempt int) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, ctx.Err()
	}

	_, _, err := testEngine(5).Do(ctx, makeAttempt)
	if err == nil {
		t.Fatal("Do() succeeded with cancelled context")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("context.Canceled lost from cause chain")
	}
}

func TestDoCancellationDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, _, err := testEngine(3).Do(ctx, attemptAgainst(srv))
	if err == nil {
		t.Fatal("Do() succeeded, want cancellation")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("backoff did not wake on cancellation, took %v", elapsed)
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("context.Canceled lost from cause chain")
	}
}

func TestDoAttemptIndexIsSequential(t *testing.T) {
	var seen []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	makeAttempt := func(ctx context.Context, attempt int) (*http.Response, error) {
		seen = append(seen, attempt)
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
		return srv.Client().Do(req)
	}

	testEngine(2).Do(context.Background(), makeAttempt)
	want := []int{0, 1, 2}
	if len(seen) != len(want) {
		t.Fatalf("attempt indices = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("attempt indices = %v, want %v", seen, want)
		}
	}
}

func TestResponseErrorSanitizesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"Unauthorized","message":"token eyJhbGciOiJub25lIn0.eyJzdWIiOiJ4In0.c2ln was rejected"}}`))
	}))
	defer srv.Close()

	_, _, err := testEngine(0).Do(context.Background(), attemptAgainst(srv))
	if err == nil {
		t.Fatal("Do() succeeded, want error")
	}
	if strings.Contains(err.Error(), "eyJhbGciOiJub25lIn0") {
		t.Errorf("error message leaked a token: %v", err)
	}
}
