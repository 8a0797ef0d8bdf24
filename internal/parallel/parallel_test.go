package parallel

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
)

func TestForVisitsEveryItemOnce(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 8, 100} {
		const n = 257
		seen := make([]int32, n)
		err := For(workers, n, func(_, i int) error {
			atomic.AddInt32(&seen[i], 1)
			return nil
		})
		if err != nil {
			t.Fatalf("workers=%d: unexpected error: %v", workers, err)
		}
		for i, c := range seen {
			if c != 1 {
				t.Fatalf("workers=%d: item %d visited %d times", workers, i, c)
			}
		}
	}
}

func TestForAssignsStaticChunks(t *testing.T) {
	const n, workers = 100, 4
	owner := make([]int, n)
	if err := For(workers, n, func(w, i int) error {
		owner[i] = w
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for w := 0; w < workers; w++ {
		lo, hi := Chunk(workers, n, w)
		for i := lo; i < hi; i++ {
			if owner[i] != w {
				t.Fatalf("item %d handled by worker %d, expected %d", i, owner[i], w)
			}
		}
	}
}

func TestForReturnsErrorAfterDrain(t *testing.T) {
	var running atomic.Int32
	sentinel := errors.New("boom")
	err := For(4, 400, func(_, i int) error {
		running.Add(1)
		defer running.Add(-1)
		if i == 10 || i == 350 {
			return fmt.Errorf("item %d: %w", i, sentinel)
		}
		return nil
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if running.Load() != 0 {
		t.Fatalf("workers still running after For returned: %d", running.Load())
	}
}

func TestForSerialStopsAtFirstError(t *testing.T) {
	visited := 0
	err := For(1, 10, func(_, i int) error {
		visited++
		if i == 3 {
			return errors.New("stop")
		}
		return nil
	})
	if err == nil || visited != 4 {
		t.Fatalf("expected stop after item 3, visited=%d err=%v", visited, err)
	}
}
