package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// mockProcessor simulates image enhancement for testing
type mockProcessor struct {
	delay     time.Duration
	failFiles map[string]bool // inputs that should fail
	callCount atomic.Int32
}

func (m *mockProcessor) Process(ctx context.Context, task Task) (Outcome, error) {
	m.callCount.Add(1)

	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-time.After(m.delay):
	}

	if m.failFiles != nil && m.failFiles[task.Input] {
		return Outcome{}, errors.New("simulated failure")
	}

	return Outcome{Width: 4, Height: 3, Bytes: int64(len(task.Output))}, nil
}

func makeTasks(n int) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		name := fmt.Sprintf("img%03d.png", i)
		tasks[i] = Task{Input: filepath.Join("in", name), Output: filepath.Join("out", name)}
	}
	return tasks
}

func TestPool_BasicExecution(t *testing.T) {
	proc := &mockProcessor{delay: 10 * time.Millisecond}

	pool := New(Config{
		Workers:   2,
		Processor: proc,
	})

	tasks := makeTasks(3)
	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}

	for _, r := range results {
		if r.Err != nil {
			t.Errorf("Unexpected error for %s: %v", r.Task.Input, r.Err)
		}
		if r.Outcome.Width != 4 || r.Outcome.Height != 3 {
			t.Errorf("Expected 4x3 outcome for %s, got %dx%d", r.Task.Input, r.Outcome.Width, r.Outcome.Height)
		}
	}

	if proc.callCount.Load() != int32(len(tasks)) {
		t.Errorf("Expected %d processor calls, got %d", len(tasks), proc.callCount.Load())
	}
}

func TestPool_Parallelism(t *testing.T) {
	proc := &mockProcessor{delay: 50 * time.Millisecond}

	pool := New(Config{
		Workers:   4,
		Processor: proc,
	})

	tasks := makeTasks(8)

	start := time.Now()
	results := pool.Run(context.Background(), tasks)
	elapsed := time.Since(start)

	// With 4 workers and 8 tasks at 50ms each, should take ~100ms (2 batches)
	maxExpected := 300 * time.Millisecond
	if elapsed > maxExpected {
		t.Errorf("Expected parallel execution in ~100ms, took %v", elapsed)
	}

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}

	t.Logf("Processed %d tasks with %d workers in %v", len(tasks), 4, elapsed)
}

func TestPool_ErrorHandling(t *testing.T) {
	tasks := makeTasks(3)
	failInput := tasks[1].Input
	proc := &mockProcessor{
		delay:     10 * time.Millisecond,
		failFiles: map[string]bool{failInput: true},
	}

	pool := New(Config{
		Workers:   2,
		Processor: proc,
	})

	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}

	var successCount, failCount int
	for _, r := range results {
		if r.Err != nil {
			failCount++
			if r.Task.Input != failInput {
				t.Errorf("Unexpected failure for %s", r.Task.Input)
			}
		} else {
			successCount++
		}
	}

	if successCount != 2 {
		t.Errorf("Expected 2 successes, got %d", successCount)
	}
	if failCount != 1 {
		t.Errorf("Expected 1 failure, got %d", failCount)
	}
}

func TestPool_Cancellation(t *testing.T) {
	proc := &mockProcessor{delay: 100 * time.Millisecond}

	pool := New(Config{
		Workers:   2,
		Processor: proc,
	})

	tasks := makeTasks(10)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	results := pool.Run(ctx, tasks)
	elapsed := time.Since(start)

	if elapsed > 300*time.Millisecond {
		t.Errorf("Expected early cancellation, took %v", elapsed)
	}

	if len(results) != len(tasks) {
		t.Errorf("Expected a result for every task, got %d", len(results))
	}

	var cancelledCount int
	for _, r := range results {
		if r.Err != nil && errors.Is(r.Err, context.Canceled) {
			cancelledCount++
		}
	}
	if cancelledCount == 0 {
		t.Error("Expected at least one cancelled task")
	}

	t.Logf("Completed with %d results (%d cancelled) in %v", len(results), cancelledCount, elapsed)
}

func TestPool_ProgressCallback(t *testing.T) {
	proc := &mockProcessor{
		delay:     10 * time.Millisecond,
		failFiles: map[string]bool{filepath.Join("in", "img001.png"): true},
	}

	var calls []Stats
	pool := New(Config{
		Workers:   2,
		Processor: proc,
		OnProgress: func(s Stats) {
			calls = append(calls, s)
		},
	})

	tasks := makeTasks(3)
	pool.Run(context.Background(), tasks)

	if len(calls) != len(tasks) {
		t.Fatalf("Expected %d progress callbacks, got %d", len(tasks), len(calls))
	}
	for i, s := range calls {
		if s.Completed != i+1 || s.Total != len(tasks) {
			t.Errorf("Call %d: got %d/%d, want %d/%d", i, s.Completed, s.Total, i+1, len(tasks))
		}
	}

	last := calls[len(calls)-1]
	if last.Failed != 1 || last.Written() != 2 {
		t.Errorf("Expected 1 failed and 2 written, got %+v", last)
	}
	wantBytes := int64(2 * len(filepath.Join("out", "img000.png")))
	if last.Bytes != wantBytes {
		t.Errorf("Expected %d bytes, got %d", wantBytes, last.Bytes)
	}
}

func TestStats_Add(t *testing.T) {
	var s Stats
	s.add(Result{Outcome: Outcome{Bytes: 100}})
	s.add(Result{Outcome: Outcome{Skipped: true, Bytes: 999}})
	s.add(Result{Err: errors.New("boom"), Outcome: Outcome{Bytes: 50}})

	want := Stats{Completed: 3, Failed: 1, Skipped: 1, Bytes: 100}
	if s != want {
		t.Errorf("Stats = %+v, want %+v", s, want)
	}
	if s.Written() != 1 {
		t.Errorf("Written() = %d, want 1", s.Written())
	}
}

func TestPool_EmptyTasks(t *testing.T) {
	proc := &mockProcessor{}

	pool := New(Config{
		Workers:   2,
		Processor: proc,
	})

	results := pool.Run(context.Background(), nil)

	if len(results) != 0 {
		t.Errorf("Expected 0 results for empty tasks, got %d", len(results))
	}

	if proc.callCount.Load() != 0 {
		t.Errorf("Expected 0 processor calls for empty tasks, got %d", proc.callCount.Load())
	}
}

func TestPool_ProcessorFunc(t *testing.T) {
	pool := New(Config{
		Workers: 0, // clamped to one
		Processor: ProcessorFunc(func(_ context.Context, task Task) (Outcome, error) {
			return Outcome{Skipped: strings.HasSuffix(task.Input, "001.png")}, nil
		}),
	})

	results := pool.Run(context.Background(), makeTasks(2))
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	var skipped int
	for _, r := range results {
		if r.Outcome.Skipped {
			skipped++
		}
	}
	if skipped != 1 {
		t.Errorf("Expected 1 skipped result, got %d", skipped)
	}
}
