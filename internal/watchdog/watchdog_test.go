package watchdog

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestStartReturnsOnStop(t *testing.T) {
	w := New(5*time.Millisecond, zap.NewNop())

	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	w.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestStartReturnsOnContextCancel(t *testing.T) {
	w := New(5*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}

func TestStopTwiceTolerated(t *testing.T) {
	w := New(time.Second, zap.NewNop())
	w.Stop()
	w.Stop()
}
