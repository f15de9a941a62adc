package runs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/roster/pkg/lifecycle"
)

func newLaunchRepo(lc *lifecycle.Coordinator) *repo {
	return &repo{
		lc:      lc,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		cancels: make(map[uuid.UUID]context.CancelFunc),
	}
}

func TestLaunchReleasesAfterWork(t *testing.T) {
	lc := lifecycle.New()
	r := newLaunchRepo(lc)
	id := uuid.New()

	released := make(chan struct{})
	ran := false
	err := r.launch(id, func(ctx context.Context) { ran = true }, func() { close(released) })
	if err != nil {
		t.Fatalf("launch: %v", err)
	}

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("release not called after work finished")
	}
	if !ran {
		t.Error("work did not run")
	}

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.cancels) != 0 {
		t.Errorf("cancels = %d, want 0", len(r.cancels))
	}
}

func TestLaunchRefusedDuringShutdown(t *testing.T) {
	lc := lifecycle.New()
	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	r := newLaunchRepo(lc)
	releases := 0
	ran := false

	err := r.launch(uuid.New(), func(ctx context.Context) { ran = true }, func() { releases++ })
	if !errors.Is(err, lifecycle.ErrShuttingDown) {
		t.Fatalf("err = %v, want ErrShuttingDown", err)
	}
	if ran {
		t.Error("work ran after shutdown")
	}
	if releases != 1 {
		t.Errorf("releases = %d, want 1", releases)
	}
	if len(r.cancels) != 0 {
		t.Errorf("cancels = %d, want 0", len(r.cancels))
	}
}

func TestLaunchCanceledByShutdown(t *testing.T) {
	lc := lifecycle.New()
	r := newLaunchRepo(lc)

	started := make(chan struct{})
	released := make(chan struct{})
	err := r.launch(uuid.New(), func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}, func() { close(released) })
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	<-started

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	select {
	case <-released:
	default:
		t.Error("shutdown returned before the run released its locks")
	}
}
