package audit

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/event"
	"github.com/nerrad567/gray-logic-hub/internal/service"
)

const (
	// writeQueueSize bounds pending log writes. Entries beyond it are dropped
	// so a stalled disk never blocks a command.
	writeQueueSize = 256

	defaultResultTimeout = 30 * time.Second

	// SourceActuator marks commands issued through actuator facades.
	SourceActuator = "actuator"
)

// TrackedSubmitter is the part of the hub client the Recorder wraps.
type TrackedSubmitter interface {
	SubmitTracked(ctx context.Context, cmd service.Command) (int64, <-chan event.Result, error)
}

// Logger is the logging interface used by the Recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	// Source is stored on every entry. Defaults to SourceActuator.
	Source string
	// ResultTimeout bounds how long a command may stay "submitted".
	// Defaults to 30s.
	ResultTimeout time.Duration
	Logger        Logger
}

// write is one queued repository operation.
type write struct {
	create   *Entry
	complete *Completion
}

// Recorder submits commands through the hub and logs them.
//
// It satisfies actuator.Submitter. The command is sent first; logging never
// changes the submit outcome. Run must be running for entries to be stored.
type Recorder struct {
	next    TrackedSubmitter
	repo    Repository
	source  string
	timeout time.Duration
	logger  Logger

	writes  chan write
	waiters sync.WaitGroup
	done    chan struct{}

	mu      sync.Mutex
	stopped bool
}

// NewRecorder wraps next so that every submitted command lands in repo.
func NewRecorder(next TrackedSubmitter, repo Repository, opts RecorderOptions) *Recorder {
	if opts.Source == "" {
		opts.Source = SourceActuator
	}
	if opts.ResultTimeout <= 0 {
		opts.ResultTimeout = defaultResultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Recorder{
		next:    next,
		repo:    repo,
		source:  opts.Source,
		timeout: opts.ResultTimeout,
		logger:  opts.Logger,
		writes:  make(chan write, writeQueueSize),
		done:    make(chan struct{}),
	}
}

// Submit forwards cmd to the hub, logs it, and returns the correlation id.
func (r *Recorder) Submit(ctx context.Context, cmd service.Command) (int64, error) {
	id, results, err := r.next.SubmitTracked(ctx, cmd)

	entry := &Entry{
		RequestID: id,
		Domain:    cmd.Domain,
		Service:   cmd.Service,
		Data:      cmd.Data,
		Source:    r.source,
		Status:    StatusSubmitted,
		CreatedAt: time.Now().UTC(),
	}
	if cmd.Target != nil {
		entry.EntityID = cmd.Target.String()
	}

	if err != nil {
		entry.Status = StatusRejected
		entry.Error = err.Error()
		r.enqueue(write{create: entry})
		return id, err
	}

	// The id is assigned here so the completion can refer to it before
	// the create has been written.
	entry.ID = newEntryID()
	r.enqueue(write{create: entry})

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		r.enqueue(write{complete: &Completion{ID: entry.ID, Status: StatusUnanswered, Error: ErrUnanswered.Error()}})
		return id, nil
	}
	r.waiters.Add(1)
	go r.await(entry.ID, results)

	return id, nil
}

func (r *Recorder) await(entryID string, results <-chan event.Result) {
	defer r.waiters.Done()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	c := Completion{ID: entryID}
	select {
	case res := <-results:
		c.At = time.Now().UTC()
		switch {
		case res.Err != nil:
			c.Status, c.Error = StatusFailed, res.Err.Error()
		case !res.Success:
			c.Status, c.Error = StatusFailed, event.ErrCommandFailed.Error()
		default:
			c.Status = StatusSucceeded
		}
	case <-timer.C:
		c.Status, c.Error, c.At = StatusUnanswered, ErrUnanswered.Error(), time.Now().UTC()
	case <-r.done:
		c.Status, c.Error, c.At = StatusUnanswered, ErrUnanswered.Error(), time.Now().UTC()
	}

	r.enqueue(write{complete: &c})
}

func (r *Recorder) enqueue(w write) {
	select {
	case r.writes <- w:
	default:
		r.logger.Warn("command log queue full, dropping entry")
	}
}

// Run writes queued entries serially until ctx is done, then stops waiting
// for outstanding results, drains the queue and returns nil.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case w := <-r.writes:
			r.store(w)
		case <-ctx.Done():
			r.stop()
			r.waiters.Wait()
			for {
				select {
				case w := <-r.writes:
					r.store(w)
				default:
					return nil
				}
			}
		}
	}
}

func (r *Recorder) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.stopped {
		r.stopped = true
		close(r.done)
	}
}

func (r *Recorder) store(w write) {
	// Writes are flushed during shutdown too, so they get their own context.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch {
	case w.create != nil:
		if err := r.repo.Create(ctx, w.create); err != nil {
			r.logger.Error("command log write failed", "service", w.create.Domain+"."+w.create.Service, "error", err)
		}
	case w.complete != nil:
		if err := r.repo.Complete(ctx, *w.complete); err != nil {
			r.logger.Error("command log completion failed", "id", w.complete.ID, "error", err)
			return
		}
		r.logger.Debug("command completed", "id", w.complete.ID, "status", w.complete.Status)
	}
}
