package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
	"github.com/nerrad567/gray-logic-hub/internal/event"
	"github.com/nerrad567/gray-logic-hub/internal/service"
)

// fakeHub hands out result channels the test completes by hand.
type fakeHub struct {
	mu      sync.Mutex
	nextID  int64
	results map[int64]chan event.Result
	err     error
}

func newFakeHub() *fakeHub {
	return &fakeHub{results: make(map[int64]chan event.Result)}
}

func (h *fakeHub) SubmitTracked(_ context.Context, _ service.Command) (int64, <-chan event.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return 0, nil, h.err
	}
	h.nextID++
	ch := make(chan event.Result, 1)
	h.results[h.nextID] = ch
	return h.nextID, ch, nil
}

func (h *fakeHub) answer(id int64, r event.Result) {
	h.mu.Lock()
	ch := h.results[id]
	h.mu.Unlock()
	r.ID = id
	ch <- r
}

func waitStatus(t *testing.T, repo Repository, filter Filter, want Status) Entry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		res, err := repo.List(context.Background(), filter)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(res.Entries) == 1 && res.Entries[0].Status == want {
			return res.Entries[0]
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no entry reached status %s", want)
	return Entry{}
}

func startRecorder(t *testing.T, hub TrackedSubmitter, opts RecorderOptions) (*Recorder, *SQLiteRepository, context.CancelFunc) {
	t.Helper()
	repo := testRepo(t)
	rec := NewRecorder(hub, repo, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		rec.Run(ctx) //nolint:errcheck // always nil
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return rec, repo, cancel
}

func TestRecorderOutcomes(t *testing.T) {
	hubErr := &event.HubError{Code: "not_found", Message: "Entity not found"}

	tests := []struct {
		name      string
		result    event.Result
		want      Status
		wantError string
	}{
		{"success", event.Result{Success: true}, StatusSucceeded, ""},
		{"hub error", event.Result{Err: hubErr}, StatusFailed, hubErr.Error()},
		{"failure without detail", event.Result{}, StatusFailed, event.ErrCommandFailed.Error()},
		{"disconnected", event.Result{Err: errors.New("hub: disconnected")}, StatusFailed, "hub: disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := newFakeHub()
			rec, repo, _ := startRecorder(t, hub, RecorderOptions{})

			target := entity.MustParseID("switch.kitchen")
			id, err := rec.Submit(context.Background(), service.NewCommand("switch", service.TurnOn, target, nil))
			if err != nil || id != 1 {
				t.Fatalf("Submit() = %d, %v", id, err)
			}

			waitStatus(t, repo, Filter{}, StatusSubmitted)
			hub.answer(id, tt.result)

			got := waitStatus(t, repo, Filter{}, tt.want)
			if got.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", got.Error, tt.wantError)
			}
			if got.RequestID != 1 || got.EntityID != "switch.kitchen" || got.Source != SourceActuator {
				t.Errorf("entry = %+v", got)
			}
			if got.CompletedAt == nil {
				t.Error("CompletedAt not set")
			}
		})
	}
}

func TestRecorderRejected(t *testing.T) {
	hub := newFakeHub()
	hub.err = errors.New("hub: not connected")
	rec, repo, _ := startRecorder(t, hub, RecorderOptions{Source: "api"})

	_, err := rec.Submit(context.Background(), service.Command{Domain: "homeassistant", Service: "restart"})
	if !errors.Is(err, hub.err) {
		t.Fatalf("Submit() error = %v, want the hub's error unchanged", err)
	}

	got := waitStatus(t, repo, Filter{}, StatusRejected)
	if got.Source != "api" || got.EntityID != "" || got.Error != "hub: not connected" {
		t.Errorf("entry = %+v", got)
	}
}

func TestRecorderUnanswered(t *testing.T) {
	hub := newFakeHub()
	rec, repo, _ := startRecorder(t, hub, RecorderOptions{ResultTimeout: 20 * time.Millisecond})

	if _, err := rec.Submit(context.Background(), service.NewCommand("switch", service.Toggle, entity.MustParseID("switch.a"), nil)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	got := waitStatus(t, repo, Filter{}, StatusUnanswered)
	if got.Error != ErrUnanswered.Error() {
		t.Errorf("Error = %q", got.Error)
	}
}

func TestRecorderShutdownCompletesOutstanding(t *testing.T) {
	hub := newFakeHub()
	repo := testRepo(t)
	rec := NewRecorder(hub, repo, RecorderOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	if _, err := rec.Submit(context.Background(), service.NewCommand("switch", service.TurnOff, entity.MustParseID("switch.b"), nil)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	res, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Status != StatusUnanswered {
		t.Errorf("entries after shutdown = %+v", res.Entries)
	}
}
