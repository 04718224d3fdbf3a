package backoff

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		err := ClassifyStatus(tt.status, errors.New("boom"))
		if got := IsTransient(err); got != tt.transient {
			t.Errorf("ClassifyStatus(%d): IsTransient = %v, want %v", tt.status, got, tt.transient)
		}
	}
}

func TestRetry_stopsOnPermanent(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	calls := 0
	err := p.Retry(context.Background(), func() error {
		calls++
		return Permanent(errors.New("bad request"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("permanent error retried %d times, want 1 call", calls)
	}
}

func TestRetry_retriesTransientUntilSuccess(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	calls := 0
	err := p.Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return Transient(errors.New("unavailable"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_exhaustsAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	calls := 0
	wrapped := errors.New("down")
	err := p.Retry(context.Background(), func() error {
		calls++
		return Transient(wrapped)
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !errors.Is(err, wrapped) {
		t.Errorf("err = %v, want wrapped %v", err, wrapped)
	}
	if !IsTransient(err) {
		t.Error("exhausted error should stay classified transient")
	}
}

func TestRetry_contextCancelled(t *testing.T) {
	p := Policy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Retry(ctx, func() error {
		return Transient(errors.New("down"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDelay_capped(t *testing.T) {
	p := Policy{MaxAttempts: 10, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}
	for attempt := 0; attempt < 20; attempt++ {
		if d := p.Delay(attempt); d > p.MaxDelay {
			t.Errorf("Delay(%d) = %v exceeds cap %v", attempt, d, p.MaxDelay)
		}
	}
}
