package fetcher

import (
	"context"
	"testing"
	"time"
)

func TestHostLimiter(t *testing.T) {
	t.Parallel()

	t.Run("spaces requests to the same host", func(t *testing.T) {
		t.Parallel()

		l := NewHostLimiter(50 * time.Millisecond)
		start := time.Now()
		for i := 0; i < 3; i++ {
			if err := l.Wait(context.Background(), "http://example.com/page"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
			t.Errorf("expected at least ~100ms between three requests, got %v", elapsed)
		}
	})

	t.Run("hosts are limited independently", func(t *testing.T) {
		t.Parallel()

		l := NewHostLimiter(time.Hour)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := l.Wait(ctx, "http://a.example.com/"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := l.Wait(ctx, "http://b.example.com/"); err != nil {
			t.Fatalf("unexpected error for second host: %v", err)
		}
	})

	t.Run("zero delay never blocks", func(t *testing.T) {
		t.Parallel()

		l := NewHostLimiter(0)
		for i := 0; i < 100; i++ {
			if err := l.Wait(context.Background(), "http://example.com/"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
	})

	t.Run("nil limiter is a no-op", func(t *testing.T) {
		t.Parallel()

		var l *HostLimiter
		if err := l.Wait(context.Background(), "http://example.com/"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
