// Package task runs long operations in the background and hands callers a
// Handle they can wait on or poll.
package task

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/output"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Func is the work a task performs. The returned value becomes the task result.
type Func func(ctx context.Context) (any, error)

// Handle tracks one submitted task.
type Handle struct {
	id   string
	name string
	done chan struct{}

	mu        sync.Mutex
	status    Status
	result    any
	err       error
	submitted time.Time
	started   time.Time
	finished  time.Time
}

// ID returns the task identifier.
func (h *Handle) ID() string { return h.id }

// Name returns the descriptive name given at submission.
func (h *Handle) Name() string { return h.name }

// Done is closed when the task finishes.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task finishes or ctx is done. Cancelling ctx does not
// cancel the task.
func (h *Handle) Wait(ctx context.Context) (any, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Status returns the current status.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Err returns the task error once it has failed.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Info returns a point-in-time snapshot of the task.
func (h *Handle) Info() Info {
	h.mu.Lock()
	defer h.mu.Unlock()

	info := Info{
		ID:        h.id,
		Name:      h.name,
		Status:    h.status,
		Result:    h.result,
		Submitted: h.submitted,
	}
	if h.err != nil {
		info.Error = h.err.Error()
	}
	if !h.started.IsZero() {
		started := h.started
		info.Started = &started
	}
	if !h.finished.IsZero() {
		finished := h.finished
		info.Finished = &finished
	}
	return info
}

// finishedAt returns when the task finished, or false while it is still
// pending or running.
func (h *Handle) finishedAt() (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status != StatusSucceeded && h.status != StatusFailed {
		return time.Time{}, false
	}
	return h.finished, true
}

func (h *Handle) setRunning() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = StatusRunning
	h.started = time.Now()
}

func (h *Handle) finish(result any, err error) {
	h.mu.Lock()
	h.result = result
	h.err = err
	h.finished = time.Now()
	if err != nil {
		h.status = StatusFailed
	} else {
		h.status = StatusSucceeded
	}
	h.mu.Unlock()
	close(h.done)
}

// Info is a serializable view of a task.
type Info struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    Status     `json:"status"`
	Result    any        `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	Submitted time.Time  `json:"submitted"`
	Started   *time.Time `json:"started,omitempty"`
	Finished  *time.Time `json:"finished,omitempty"`
}

// Table implements output.Tabular.
func (i Info) Table() *output.Table {
	return Infos{i}.Table()
}

// Infos is a list of task snapshots.
type Infos []Info

// Table implements output.Tabular.
func (is Infos) Table() *output.Table {
	t := output.NewTable("ID", "NAME", "STATUS", "DURATION", "ERROR")
	for _, i := range is {
		t.Row(i.ID, i.Name, statusLabel(i.Status), i.duration(), i.Error)
	}
	return t
}

func (i Info) duration() string {
	if i.Started == nil {
		return ""
	}
	end := time.Now()
	if i.Finished != nil {
		end = *i.Finished
	}
	return end.Sub(*i.Started).Round(time.Millisecond).String()
}

func statusLabel(s Status) string {
	switch s {
	case StatusSucceeded:
		return output.StatusStyle(output.StatusConfigured).Render(string(s))
	case StatusFailed:
		return output.StatusStyle(output.StatusFailed).Render(string(s))
	default:
		return output.StyleDim.Render(string(s))
	}
}

// Defaults for how long finished tasks stay available for lookup.
const (
	DefaultRetention   = time.Hour
	DefaultMaxFinished = 500
)

// Queue runs submitted tasks concurrently and remembers them for lookup.
// Tasks run on the queue's base context, not the submitter's, so a request
// that submits a task may return before the task completes.
//
// Finished tasks are forgotten once older than the retention window or when
// more than the maximum number of finished tasks are held, oldest first.
// Pending and running tasks are never forgotten.
type Queue struct {
	ctx         context.Context
	retention   time.Duration
	maxFinished int

	mu    sync.RWMutex
	tasks map[string]*Handle
	wg    sync.WaitGroup
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithRetention sets how long finished tasks are kept. Zero or less keeps
// them until the maximum is exceeded.
func WithRetention(d time.Duration) QueueOption {
	return func(q *Queue) { q.retention = d }
}

// WithMaxFinished caps the number of finished tasks kept. Zero or less
// removes the cap.
func WithMaxFinished(n int) QueueOption {
	return func(q *Queue) { q.maxFinished = n }
}

// NewQueue returns a queue whose tasks run on ctx.
func NewQueue(ctx context.Context, opts ...QueueOption) *Queue {
	q := &Queue{
		ctx:         ctx,
		retention:   DefaultRetention,
		maxFinished: DefaultMaxFinished,
		tasks:       make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Submit starts fn in the background and returns its handle immediately.
func (q *Queue) Submit(name string, fn Func) *Handle {
	h := &Handle{
		id:        uuid.New().String(),
		name:      name,
		done:      make(chan struct{}),
		status:    StatusPending,
		submitted: time.Now(),
	}

	q.mu.Lock()
	q.pruneLocked(time.Now())
	q.tasks[h.id] = h
	q.mu.Unlock()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.run(h, fn)
	}()

	output.Debug("task submitted", "id", h.id, "name", name)
	return h
}

func (q *Queue) run(h *Handle, fn Func) {
	h.setRunning()

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task %s panicked: %v", h.name, r)
			}
		}()
		result, err = fn(q.ctx)
	}()

	h.finish(result, err)

	q.mu.Lock()
	q.pruneLocked(time.Now())
	q.mu.Unlock()

	if err != nil {
		output.Error("task failed", "id", h.id, "name", h.name, "err", err)
		return
	}
	output.Debug("task succeeded", "id", h.id, "name", h.name)
}

// pruneLocked forgets expired finished tasks and then the oldest finished
// tasks beyond the cap. q.mu must be held for writing.
func (q *Queue) pruneLocked(now time.Time) {
	type finishedTask struct {
		id string
		at time.Time
	}
	var finished []finishedTask
	for id, h := range q.tasks {
		at, ok := h.finishedAt()
		if !ok {
			continue
		}
		if q.retention > 0 && now.Sub(at) > q.retention {
			delete(q.tasks, id)
			continue
		}
		finished = append(finished, finishedTask{id: id, at: at})
	}

	if q.maxFinished <= 0 || len(finished) <= q.maxFinished {
		return
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].at.Before(finished[j].at) })
	for _, f := range finished[:len(finished)-q.maxFinished] {
		delete(q.tasks, f.id)
	}
}

// Get returns the task with the given ID.
func (q *Queue) Get(id string) (*Handle, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	h, ok := q.tasks[id]
	if !ok {
		return nil, oerrors.Wrapf(oerrors.ErrNotFound, "task %q", id)
	}
	return h, nil
}

// List returns snapshots of every known task, oldest first.
func (q *Queue) List() Infos {
	q.mu.RLock()
	infos := make(Infos, 0, len(q.tasks))
	for _, h := range q.tasks {
		infos = append(infos, h.Info())
	}
	q.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Submitted.Equal(infos[j].Submitted) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].Submitted.Before(infos[j].Submitted)
	})
	return infos
}

// Wait blocks until every submitted task has finished or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
