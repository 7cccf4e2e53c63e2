// Package progress logs how many tasks have finished while the pool runs.
package progress

import (
	"sync"
	"sync/atomic"
	"time"

	"checkin/internal/logging"
)

const DefaultInterval = 5 * time.Second

// Counter reports how many tasks have finished so far.
type Counter interface {
	Count() int
}

// Workers reports how many tasks are executing right now.
type Workers interface {
	ActiveWorkers() int
}

type Progress struct {
	counter  Counter
	workers  Workers
	total    int
	log      logging.Logger
	interval time.Duration

	startTime time.Time
	stopCh    chan struct{}
	done      chan struct{}
	stopped   atomic.Bool
	lastCount int
	mu        sync.Mutex
}

// NewProgress creates a reporter for total tasks. A nil log disables it.
func NewProgress(counter Counter, total int, log logging.Logger, interval time.Duration) *Progress {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Progress{
		counter:   counter,
		total:     total,
		log:       log,
		interval:  interval,
		lastCount: -1,
	}
}

// TrackWorkers adds the number of running tasks to each progress line. Call
// it before Start.
func (p *Progress) TrackWorkers(w Workers) {
	p.workers = w
}

func (p *Progress) quiet() bool {
	return p.log == nil || p.total == 0
}

func (p *Progress) Start() {
	if p.quiet() {
		return
	}
	p.startTime = time.Now()
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	go p.run()
}

func (p *Progress) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.logProgress()
		}
	}
}

// logProgress emits one line, skipping it when nothing changed since the
// previous tick.
func (p *Progress) logProgress() {
	p.mu.Lock()
	defer p.mu.Unlock()

	finished := p.counter.Count()
	if finished == p.lastCount {
		return
	}
	p.lastCount = finished
	kv := []any{
		"finished", finished,
		"total", p.total,
		"elapsed", time.Since(p.startTime).Round(time.Second),
	}
	if p.workers != nil {
		kv = append(kv, "running", p.workers.ActiveWorkers())
	}
	p.log.Info("tasks in progress", kv...)
}

// Stop ends periodic logging. Safe to call more than once.
func (p *Progress) Stop() {
	if p.quiet() || p.stopCh == nil || p.stopped.Swap(true) {
		return
	}
	close(p.stopCh)
	<-p.done
}
