package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openridge/trailforge-backend/internal/geo"
	"github.com/openridge/trailforge-backend/internal/pkg/logger"
)

// stubProcessor scripts per-activity failures and records calls.
type stubProcessor struct {
	mu       sync.Mutex
	failures map[uuid.UUID]int // remaining failures before success
	panics   map[uuid.UUID]bool
	calls    map[uuid.UUID]int
	failed   map[uuid.UUID]bool
	block    chan struct{} // when set, ProcessActivity waits on it
}

func newStubProcessor() *stubProcessor {
	return &stubProcessor{
		failures: map[uuid.UUID]int{},
		panics:   map[uuid.UUID]bool{},
		calls:    map[uuid.UUID]int{},
		failed:   map[uuid.UUID]bool{},
	}
}

func (p *stubProcessor) ProcessActivity(_ context.Context, activityID uuid.UUID, _ []geo.Point) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[activityID]++
	if p.panics[activityID] {
		panic("scripted panic")
	}
	if p.failures[activityID] > 0 {
		p.failures[activityID]--
		return errors.New("scripted failure")
	}
	return nil
}

func (p *stubProcessor) MarkFailed(_ context.Context, activityID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[activityID] = true
}

func (p *stubProcessor) callCount(id uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

func (p *stubProcessor) wasFailed(id uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed[id]
}

func testQueue(t *testing.T, proc Processor, workers int) *Queue {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewQueue(log, proc, workers, 10*time.Millisecond)
}

func awaitResult(t *testing.T, q *Queue, want uuid.UUID) Result {
	t.Helper()
	select {
	case r := <-q.Results():
		if r.ActivityID != want {
			t.Fatalf("result for %s, want %s", r.ActivityID, want)
		}
		return r
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for result")
		return Result{}
	}
}

func TestQueueProcessesAndReports(t *testing.T) {
	proc := newStubProcessor()
	q := testQueue(t, proc, 2)
	defer q.Close()

	id := uuid.New()
	if !q.Submit(id, nil) {
		t.Fatalf("submit must be accepted")
	}
	r := awaitResult(t, q, id)
	if r.Err != nil {
		t.Fatalf("expected success, got %v", r.Err)
	}
	if got := proc.callCount(id); got != 1 {
		t.Fatalf("expected 1 call, got %d", got)
	}
}

func TestQueueIgnoresResubmissionInFlight(t *testing.T) {
	proc := newStubProcessor()
	proc.block = make(chan struct{})
	q := testQueue(t, proc, 2)
	defer q.Close()

	id := uuid.New()
	if !q.Submit(id, nil) {
		t.Fatalf("first submit must be accepted")
	}
	if q.Submit(id, nil) {
		t.Fatalf("in-flight resubmission must be rejected")
	}
	if q.InFlight() != 1 {
		t.Fatalf("expected 1 in flight, got %d", q.InFlight())
	}

	close(proc.block)
	awaitResult(t, q, id)

	// Finished work may be submitted again.
	proc.block = nil
	if !q.Submit(id, nil) {
		t.Fatalf("resubmission after completion must be accepted")
	}
	awaitResult(t, q, id)
}

func TestQueueSubmitDoesNotBlockWhenSaturated(t *testing.T) {
	proc := newStubProcessor()
	proc.block = make(chan struct{})
	q := testQueue(t, proc, 1)
	defer q.Close()

	first := uuid.New()
	if !q.Submit(first, nil) {
		t.Fatalf("first submit must be accepted")
	}

	// The only worker is parked inside ProcessActivity; a second submission
	// must still return immediately.
	second := uuid.New()
	done := make(chan bool, 1)
	go func() { done <- q.Submit(second, nil) }()
	select {
	case ok := <-done:
		if !ok {
			t.Fatalf("saturated pool must still accept new work")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("submit blocked while the pool was saturated")
	}

	close(proc.block)
	awaitResult(t, q, first)
	awaitResult(t, q, second)
}

func TestQueueRetriesOnceThenSucceeds(t *testing.T) {
	proc := newStubProcessor()
	q := testQueue(t, proc, 1)
	defer q.Close()

	id := uuid.New()
	proc.failures[id] = 1
	q.Submit(id, nil)

	r := awaitResult(t, q, id)
	if r.Err != nil {
		t.Fatalf("retry should have recovered, got %v", r.Err)
	}
	if got := proc.callCount(id); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
	if proc.wasFailed(id) {
		t.Fatalf("recovered activity must not be marked failed")
	}
}

func TestQueueMarksPermanentFailure(t *testing.T) {
	proc := newStubProcessor()
	q := testQueue(t, proc, 1)
	defer q.Close()

	id := uuid.New()
	proc.failures[id] = 2
	q.Submit(id, nil)

	r := awaitResult(t, q, id)
	if r.Err == nil {
		t.Fatalf("expected a permanent failure")
	}
	if got := proc.callCount(id); got != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", got)
	}
	if !proc.wasFailed(id) {
		t.Fatalf("permanently failed activity must be marked failed")
	}
}

func TestQueueRecoversFromPanic(t *testing.T) {
	proc := newStubProcessor()
	q := testQueue(t, proc, 1)
	defer q.Close()

	id := uuid.New()
	proc.panics[id] = true
	q.Submit(id, nil)

	r := awaitResult(t, q, id)
	if r.Err == nil {
		t.Fatalf("panic must surface as an error result")
	}
	if !proc.wasFailed(id) {
		t.Fatalf("panicked activity must be marked failed")
	}

	// The pool survives; other work still runs.
	ok := uuid.New()
	if !q.Submit(ok, nil) {
		t.Fatalf("queue must keep accepting work after a panic")
	}
	if r := awaitResult(t, q, ok); r.Err != nil {
		t.Fatalf("follow-up work must succeed, got %v", r.Err)
	}
}

func TestQueueCloseStopsIntake(t *testing.T) {
	proc := newStubProcessor()
	q := testQueue(t, proc, 1)

	id := uuid.New()
	q.Submit(id, nil)
	awaitResult(t, q, id)
	q.Close()

	if q.Submit(uuid.New(), nil) {
		t.Fatalf("closed queue must reject work")
	}
}
