package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	result, err := RetrySimple(func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Retry error: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q, want %q", result, "ok")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryTransientThenSuccess(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		Jitter:       false,
	}
	calls := 0
	result, err := Retry(context.Background(), cfg, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("resource temporarily unavailable")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Retry error: %v", err)
	}
	if result != 42 {
		t.Errorf("result = %d, want 42", result)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryNonRetryableStopsImmediately(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, Jitter: false}
	calls := 0
	_, err := Retry(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, errors.New("no such file or directory")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryPermanentStopsImmediately(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, Jitter: false}
	calls := 0
	_, err := Retry(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, MarkPermanent(errors.New("timeout"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsPermanent(err) {
		t.Error("error should be permanent")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, Jitter: false}
	calls := 0
	_, err := Retry(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, errors.New("try again")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Retry(ctx, DefaultRetryConfig(), func() (int, error) {
		return 0, errors.New("try again")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDefaultIsRetryable(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
	}{
		{nil, false},
		{errors.New("resource temporarily unavailable"), true},
		{errors.New("file is locked"), true},
		{errors.New("operation timeout"), true},
		{errors.New("no such file or directory"), false},
		{errors.New("permission denied"), false},
	}

	for _, tt := range tests {
		if got := DefaultIsRetryable(tt.err); got != tt.retryable {
			t.Errorf("DefaultIsRetryable(%v) = %v, want %v", tt.err, got, tt.retryable)
		}
	}
}
