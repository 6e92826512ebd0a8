// Package worker provides a parallel image enhancement worker pool.
package worker

import (
	"context"
	"sync"
	"time"
)

// Processor enhances a single image.
type Processor interface {
	Process(ctx context.Context, task Task) (Outcome, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, task Task) (Outcome, error)

// Process calls f(ctx, task).
func (f ProcessorFunc) Process(ctx context.Context, task Task) (Outcome, error) {
	return f(ctx, task)
}

// Task represents a single input/output pair.
type Task struct {
	Input  string
	Output string
}

// Outcome describes what a processor did with a task.
type Outcome struct {
	// Skipped is set when the output was already up to date.
	Skipped bool
	Width   int
	Height  int
	Bytes   int64
}

// Result represents the outcome of a task.
type Result struct {
	Task    Task
	Outcome Outcome
	Err     error
	Elapsed time.Duration
}

// Stats summarises the results seen so far in a run.
type Stats struct {
	Total     int
	Completed int
	Failed    int
	Skipped   int
	// Bytes is the size of all outputs written.
	Bytes int64
}

// Written returns the number of outputs actually produced.
func (s Stats) Written() int {
	return s.Completed - s.Failed - s.Skipped
}

// add folds one result into the stats.
func (s *Stats) add(r Result) {
	s.Completed++
	switch {
	case r.Err != nil:
		s.Failed++
	case r.Outcome.Skipped:
		s.Skipped++
	default:
		s.Bytes += r.Outcome.Bytes
	}
}

// ProgressFunc is called after each task completes with the running stats.
type ProgressFunc func(stats Stats)

// Config configures the worker pool.
type Config struct {
	Workers    int
	Processor  Processor
	OnProgress ProgressFunc
}

// Pool manages parallel image processing.
type Pool struct {
	workers    int
	processor  Processor
	onProgress ProgressFunc
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		processor:  cfg.Processor,
		onProgress: cfg.OnProgress,
	}
}

// Run executes all tasks and returns results.
// Tasks are processed in parallel by the configured number of workers.
// The function blocks until all tasks complete or the context is cancelled;
// tasks never started because of cancellation are reported with ctx.Err().
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan Task, len(tasks))
	resultCh := make(chan Result, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	// All tasks fit in the buffer, so feeding never blocks.
	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)

	results := make([]Result, 0, len(tasks))
	done := make(chan struct{})

	go func() {
		stats := Stats{Total: len(tasks)}
		for result := range resultCh {
			results = append(results, result)
			stats.add(result)
			if p.onProgress != nil {
				p.onProgress(stats)
			}
		}
		close(done)
	}()

	wg.Wait()
	close(resultCh)

	<-done

	return results
}

// worker processes tasks from the task channel and sends results to the result channel.
func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		select {
		case <-ctx.Done():
			results <- Result{
				Task: task,
				Err:  ctx.Err(),
			}
			continue
		default:
		}

		start := time.Now()
		outcome, err := p.processor.Process(ctx, task)
		elapsed := time.Since(start)

		results <- Result{
			Task:    task,
			Outcome: outcome,
			Err:     err,
			Elapsed: elapsed,
		}
	}
}
