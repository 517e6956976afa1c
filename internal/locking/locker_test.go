package locking_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/spec-kit/helpdesk-bot/internal/locking"
)

func TestLocalLockerSerializesSameName(t *testing.T) {
	locker := locking.NewLocalLocker()
	ctx := context.Background()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locker.WithLock(ctx, "counter", func(ctx context.Context) error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
}

func TestLocalLockerIndependentNames(t *testing.T) {
	locker := locking.NewLocalLocker()
	ctx := context.Background()

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = locker.WithLock(ctx, "a", func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	// A different name must not block behind "a".
	done := make(chan struct{})
	go func() {
		_ = locker.WithLock(ctx, "b", func(ctx context.Context) error { return nil })
		close(done)
	}()
	<-done
	close(release)
}

func TestLocalLockerPropagatesError(t *testing.T) {
	locker := locking.NewLocalLocker()
	want := errors.New("inner failure")

	err := locker.WithLock(context.Background(), "x", func(ctx context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}

	// The lock is released after the error.
	ran := false
	_ = locker.WithLock(context.Background(), "x", func(ctx context.Context) error {
		ran = true
		return nil
	})
	if !ran {
		t.Fatal("lock not released after error")
	}
}
