package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/openridge/trailforge-backend/internal/geo"
	"github.com/openridge/trailforge-backend/internal/pkg/logger"
)

// Processor is the per-activity pipeline the queue dispatches to.
type Processor interface {
	ProcessActivity(ctx context.Context, activityID uuid.UUID, pts []geo.Point) error
	MarkFailed(ctx context.Context, activityID uuid.UUID)
}

// Result reports the outcome of one unit of work.
type Result struct {
	ActivityID uuid.UUID
	Err        error
}

type job struct {
	activityID uuid.UUID
	pts        []geo.Point
}

// Queue runs CPU-bound activity processing on a bounded worker pool,
// decoupled from request handling. Enqueueing an activity already in flight
// is a no-op; work for one activity runs on a single worker while different
// activities process in parallel. A failed unit is retried once with backoff,
// then the activity is marked failed-processing.
type Queue struct {
	log     *logger.Logger
	proc    Processor
	backoff time.Duration

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	cond     *sync.Cond
	pending  []job
	inflight map[uuid.UUID]struct{}
	closed   bool

	results chan Result
}

func NewQueue(baseLog *logger.Logger, proc Processor, workers int, backoff time.Duration) *Queue {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	q := &Queue{
		log:      baseLog.With("component", "ProcessingQueue"),
		proc:     proc,
		backoff:  backoff,
		group:    g,
		ctx:      ctx,
		cancel:   cancel,
		inflight: map[uuid.UUID]struct{}{},
		results:  make(chan Result, 256),
	}
	q.cond = sync.NewCond(&q.mu)
	for i := 0; i < workers; i++ {
		g.Go(q.workLoop)
	}
	return q
}

// Submit schedules processing for an activity and returns immediately; a
// saturated pool backs work up in the pending list, never in the caller.
// Returns false when the activity is already in flight or the queue is closed.
func (q *Queue) Submit(activityID uuid.UUID, pts []geo.Point) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if _, busy := q.inflight[activityID]; busy {
		q.log.Debug("Activity already in flight, ignoring resubmission", "activity_id", activityID)
		return false
	}
	q.inflight[activityID] = struct{}{}
	q.pending = append(q.pending, job{activityID: activityID, pts: pts})
	q.cond.Signal()
	return true
}

func (q *Queue) workLoop() error {
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return nil
		}
		j := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		err := q.runOne(j.activityID, j.pts)
		// Clear the in-flight mark before reporting so a consumer seeing
		// the result can resubmit immediately.
		q.mu.Lock()
		delete(q.inflight, j.activityID)
		q.mu.Unlock()
		q.report(Result{ActivityID: j.activityID, Err: err})
	}
}

func (q *Queue) runOne(activityID uuid.UUID, pts []geo.Point) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("Processing panic", "activity_id", activityID, "panic", r)
			err = fmt.Errorf("processing panic: %v", r)
			q.proc.MarkFailed(q.ctx, activityID)
		}
	}()

	log := q.log.With("activity_id", activityID)
	err = q.proc.ProcessActivity(q.ctx, activityID, pts)
	if err == nil {
		return nil
	}

	log.Warn("Processing failed, retrying once", "error", err)
	select {
	case <-q.ctx.Done():
		q.proc.MarkFailed(context.Background(), activityID)
		return q.ctx.Err()
	case <-time.After(q.backoff):
	}

	if err = q.proc.ProcessActivity(q.ctx, activityID, pts); err != nil {
		log.Error("Processing failed permanently", "error", err)
		q.proc.MarkFailed(q.ctx, activityID)
		return err
	}
	return nil
}

// report hands the outcome to whoever is listening without ever blocking a
// worker. If nobody drains the channel the oldest results are dropped.
func (q *Queue) report(r Result) {
	for {
		select {
		case q.results <- r:
			return
		default:
			select {
			case <-q.results:
			default:
			}
		}
	}
}

// Results exposes completion notifications.
func (q *Queue) Results() <-chan Result {
	return q.results
}

// InFlight reports the number of activities currently queued or running.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}

// Close stops accepting work and waits for pending and in-flight activities
// to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	_ = q.group.Wait()
	q.cancel()
}
