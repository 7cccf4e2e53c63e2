package progress

import (
	"bytes"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"checkin/internal/logging"
)

type fakeCounter struct{ n atomic.Int32 }

func (f *fakeCounter) Count() int { return int(f.n.Load()) }

func TestProgress_LogsFinishedCount(t *testing.T) {
	var buf bytes.Buffer
	log, _ := logging.New(logging.Options{Console: &buf, JSON: true})
	counter := &fakeCounter{}
	counter.n.Store(2)

	p := NewProgress(counter, 5, log, 10*time.Millisecond)
	p.Start()
	time.Sleep(35 * time.Millisecond)
	p.Stop()

	output := buf.String()
	if !strings.Contains(output, `"finished":2`) || !strings.Contains(output, `"total":5`) {
		t.Errorf("expected progress line, got: %s", output)
	}
	// Unchanged counts are logged once.
	if n := strings.Count(output, "tasks in progress"); n != 1 {
		t.Errorf("expected 1 progress line, got %d", n)
	}
}

type fakeWorkers int

func (f fakeWorkers) ActiveWorkers() int { return int(f) }

func TestProgress_LogsRunningWorkers(t *testing.T) {
	var buf bytes.Buffer
	log, _ := logging.New(logging.Options{Console: &buf, JSON: true})
	counter := &fakeCounter{}
	counter.n.Store(1)

	p := NewProgress(counter, 4, log, 10*time.Millisecond)
	p.TrackWorkers(fakeWorkers(3))
	p.Start()
	time.Sleep(25 * time.Millisecond)
	p.Stop()

	if !strings.Contains(buf.String(), `"running":3`) {
		t.Errorf("expected running worker count, got: %s", buf.String())
	}
}

func TestProgress_QuietWithoutLogger(t *testing.T) {
	p := NewProgress(&fakeCounter{}, 3, nil, time.Millisecond)
	p.Start()
	time.Sleep(5 * time.Millisecond)
	p.Stop()
}

func TestProgress_QuietWithoutTasks(t *testing.T) {
	var buf bytes.Buffer
	log, _ := logging.New(logging.Options{Console: &buf, JSON: true})
	p := NewProgress(&fakeCounter{}, 0, log, time.Millisecond)
	p.Start()
	time.Sleep(5 * time.Millisecond)
	p.Stop()
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %s", buf.String())
	}
}

func TestProgress_DoubleStop(t *testing.T) {
	p := NewProgress(&fakeCounter{}, 1, logging.NewNop(), time.Millisecond)
	p.Start()
	p.Stop()
	p.Stop()
}

func TestProgress_StopWithoutStart(t *testing.T) {
	p := NewProgress(&fakeCounter{}, 1, logging.NewNop(), 0)
	p.Stop()
	if p.interval != DefaultInterval {
		t.Errorf("interval = %v, want default", p.interval)
	}
}
