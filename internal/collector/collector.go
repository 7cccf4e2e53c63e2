// Package collector gathers task results from the worker pool and renders
// the end-of-run report.
package collector

import (
	"sync"
	"sync/atomic"

	"checkin/internal/core"
)

// Collector receives TaskResults from concurrent workers in completion
// order. Unlike a metrics sink it never drops a result: Report blocks until
// the result is queued.
type Collector struct {
	results []core.TaskResult
	ch      chan core.TaskResult
	done    chan struct{}
	count   atomic.Int32
	mu      sync.Mutex
	closed  atomic.Bool
}

// NewCollector creates a Collector and starts its collection goroutine.
func NewCollector() *Collector {
	c := &Collector{
		ch:   make(chan core.TaskResult, 64),
		done: make(chan struct{}),
	}
	go c.collect()
	return c
}

func (c *Collector) collect() {
	for result := range c.ch {
		c.mu.Lock()
		c.results = append(c.results, result)
		c.mu.Unlock()
		c.count.Add(1)
	}
	close(c.done)
}

// Report queues a result. Thread-safe; must not be called after Close.
func (c *Collector) Report(result core.TaskResult) {
	c.ch <- result
}

// Add records a result without going through a worker, e.g. a task whose
// capture could not be parsed.
func (c *Collector) Add(result core.TaskResult) {
	c.Report(result)
}

// Close stops accepting results and waits until all queued ones are stored.
// It is safe to call more than once.
func (c *Collector) Close() {
	if c.closed.Swap(true) {
		<-c.done
		return
	}
	close(c.ch)
	<-c.done
}

// Count returns how many results have been stored so far.
func (c *Collector) Count() int {
	return int(c.count.Load())
}

// Results returns a copy of the stored results in arrival order.
func (c *Collector) Results() []core.TaskResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.TaskResult, len(c.results))
	copy(out, c.results)
	return out
}
