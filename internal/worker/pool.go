// Package worker fetches tiles in parallel.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/MeKo-Tech/ndvimap/internal/tile"
)

// Fetcher downloads a single tile.
type Fetcher interface {
	Fetch(ctx context.Context, coords tile.Coords) ([]byte, error)
}

// Task is one tile to fetch.
type Task struct {
	Coords tile.Coords
}

// Result is the outcome of a task.
type Result struct {
	Task    Task
	Data    []byte
	Err     error
	Elapsed time.Duration
}

// ResultFunc receives every result as it arrives. Calls are serialised.
type ResultFunc func(Result)

// Config configures the worker pool.
type Config struct {
	Workers int
	Fetcher Fetcher
	// OnResult, when set, consumes results instead of Run collecting them,
	// so tile data is not held in memory.
	OnResult ResultFunc
}

// Pool runs tasks across a fixed number of workers.
type Pool struct {
	workers  int
	fetcher  Fetcher
	onResult ResultFunc
}

// New creates a pool. Fewer than one worker means one.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:  workers,
		fetcher:  cfg.Fetcher,
		onResult: cfg.OnResult,
	}
}

// Run fetches every task and returns once all have finished or been
// cancelled. Results are returned only when no OnResult is configured.
// Tasks not started before ctx is cancelled report ctx.Err().
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan Task)
	resultCh := make(chan Result, p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	go func() {
		defer close(taskCh)
		for _, task := range tasks {
			taskCh <- task
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var results []Result
	for result := range resultCh {
		if p.onResult != nil {
			p.onResult(result)
		} else {
			results = append(results, result)
		}
	}

	return results
}

func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result{Task: task, Err: err}
			continue
		}

		start := time.Now()
		data, err := p.fetcher.Fetch(ctx, task.Coords)
		results <- Result{
			Task:    task,
			Data:    data,
			Err:     err,
			Elapsed: time.Since(start),
		}
	}
}
