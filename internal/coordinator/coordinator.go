// Package coordinator runs tasks on a bounded worker pool.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"checkin/internal/core"
	"checkin/internal/logging"
)

// MaxWorkers caps the pool regardless of how many tasks are queued.
const MaxWorkers = 10

// Job is one task ready to run. Run must return the task's result; a panic
// inside Run is converted into a failed result.
type Job struct {
	Task core.TaskConfig
	Run  func(ctx context.Context) core.TaskResult
}

type Coordinator struct {
	reporter   core.Reporter
	maxWorkers int
	log        logging.Logger
	active     atomic.Int32
}

// NewCoordinator creates a Coordinator that reports every finished job to
// reporter. maxWorkers <= 0 means MaxWorkers.
func NewCoordinator(reporter core.Reporter, maxWorkers int, log logging.Logger) *Coordinator {
	if maxWorkers <= 0 || maxWorkers > MaxWorkers {
		maxWorkers = MaxWorkers
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Coordinator{reporter: reporter, maxWorkers: maxWorkers, log: log}
}

// PoolSize returns the number of workers used for n jobs.
func (c *Coordinator) PoolSize(n int) int {
	return min(n, c.maxWorkers)
}

// Dispatch runs jobs on PoolSize(len(jobs)) workers and blocks until every
// job has reported exactly one result. It returns the pool size used.
func (c *Coordinator) Dispatch(ctx context.Context, jobs []Job) int {
	workers := c.PoolSize(len(jobs))
	if workers == 0 {
		return 0
	}

	queue := make(chan Job)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range queue {
				c.runJob(ctx, workerID, job)
			}
		}(i + 1)
	}

	c.log.Info("dispatching tasks", "tasks", len(jobs), "workers", workers)
	for _, job := range jobs {
		queue <- job
	}
	close(queue)
	wg.Wait()
	return workers
}

// ActiveWorkers returns the number of jobs currently executing.
func (c *Coordinator) ActiveWorkers() int {
	return int(c.active.Load())
}

func (c *Coordinator) runJob(ctx context.Context, workerID int, job Job) {
	c.active.Add(1)
	defer c.active.Add(-1)

	start := time.Now()
	task := job.Task.WithDefaults()
	c.log.Info("task started", "task", task.Name, "worker", workerID)
	defer c.recoverPanic(task, start)

	result := job.Run(ctx)
	c.log.Info("task finished",
		"task", result.Name,
		"success", result.Success,
		"duration", result.Duration.Round(time.Millisecond),
		"message", result.Message,
	)
	c.reporter.Report(result)
}

// recoverPanic turns a panicking task into a failed result so the rest of
// the pool keeps running.
func (c *Coordinator) recoverPanic(task core.TaskConfig, start time.Time) {
	if r := recover(); r != nil {
		c.log.Error("task panicked", "task", task.Name, "panic", fmt.Sprint(r))
		c.reporter.Report(task.Failure(fmt.Sprintf("执行异常 - %v", r), time.Since(start)))
	}
}
