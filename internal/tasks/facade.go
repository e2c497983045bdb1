// Package tasks is the task facade: validated CRUD over a service.Service plus
// live read views delivered to subscribers after every change.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"gtodo/internal/service"
)

// ErrEmptyText is returned by Create when the trimmed text is empty.
var ErrEmptyText = errors.New("task text required")

// PartialError reports a ClearCompleted that deleted some tasks before the
// store failed. The operation can be retried.
type PartialError struct {
	Deleted int
	Err     error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("clear completed stopped after %d deletions: %v", e.Deleted, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// View selects a live read view.
type View = service.Filter

const (
	ViewAll       = service.FilterAll
	ViewActive    = service.FilterActive
	ViewCompleted = service.FilterCompleted
)

// Listener receives the latest snapshot of a view.
// Deliveries are serialized; a listener must not call Facade mutations synchronously.
type Listener func(tasks []service.Task)

// Facade wraps a task store with validation and live subscriptions.
type Facade struct {
	svc service.Service
	log *slog.Logger

	mu   sync.Mutex
	subs map[string]*Subscription

	// deliver serializes snapshot fetch and delivery.
	deliver sync.Mutex
}

// New creates a Facade over svc. A nil logger discards.
func New(svc service.Service, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Facade{
		svc:  svc,
		log:  logger,
		subs: make(map[string]*Subscription),
	}
}

// ListAll returns all tasks, newest first.
func (f *Facade) ListAll(ctx context.Context) ([]service.Task, error) {
	return f.list(ctx, ViewAll)
}

// ListActive returns tasks that are not completed, newest first.
func (f *Facade) ListActive(ctx context.Context) ([]service.Task, error) {
	return f.list(ctx, ViewActive)
}

// ListCompleted returns completed tasks, newest first.
func (f *Facade) ListCompleted(ctx context.Context) ([]service.Task, error) {
	return f.list(ctx, ViewCompleted)
}

// List returns the tasks of view, newest first.
func (f *Facade) List(ctx context.Context, view View) ([]service.Task, error) {
	return f.list(ctx, view)
}

func (f *Facade) list(ctx context.Context, view View) ([]service.Task, error) {
	tasks, err := f.svc.List(ctx, view)
	if err != nil {
		return nil, fmt.Errorf("list %s tasks: %w", view, err)
	}
	// Backends may ignore the filter; enforce the view here.
	out := make([]service.Task, 0, len(tasks))
	for _, t := range tasks {
		if view.Match(t) {
			out = append(out, t)
		}
	}
	service.SortNewestFirst(out)
	return out, nil
}

// Create adds a task with the trimmed text.
func (f *Facade) Create(ctx context.Context, text string) (service.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return service.Task{}, ErrEmptyText
	}
	t, err := f.svc.Create(ctx, text)
	if err != nil {
		f.log.Warn("create failed", "error", err)
		return service.Task{}, fmt.Errorf("create task: %w", err)
	}
	f.log.Debug("task created", "id", t.ID)
	f.publish(ctx)
	return t, nil
}

// Update sets the completion state of a task. Idempotent.
func (f *Facade) Update(ctx context.Context, id string, isCompleted bool) error {
	if err := f.svc.Update(ctx, id, isCompleted); err != nil {
		f.log.Warn("update failed", "id", id, "error", err)
		return fmt.Errorf("update task %s: %w", id, err)
	}
	f.publish(ctx)
	return nil
}

// Toggle flips the completion state of a task.
func (f *Facade) Toggle(ctx context.Context, id string) error {
	all, err := f.list(ctx, ViewAll)
	if err != nil {
		return err
	}
	for _, t := range all {
		if t.ID == id {
			return f.Update(ctx, id, !t.IsCompleted)
		}
	}
	return fmt.Errorf("toggle task %s: %w", id, service.ErrNotFound)
}

// Remove deletes a task. A missing id is reported as service.ErrNotFound.
func (f *Facade) Remove(ctx context.Context, id string) error {
	if err := f.svc.Remove(ctx, id); err != nil {
		f.log.Warn("remove failed", "id", id, "error", err)
		return fmt.Errorf("remove task %s: %w", id, err)
	}
	f.publish(ctx)
	return nil
}

// ClearCompleted deletes every completed task and returns the count removed.
// When the store fails after deleting some tasks the error is a *PartialError.
func (f *Facade) ClearCompleted(ctx context.Context) (int, error) {
	n, err := f.svc.ClearCompleted(ctx)
	if n > 0 {
		// Deletions happened even if the call failed; subscribers must see them.
		f.publish(ctx)
	}
	if err != nil {
		f.log.Warn("clear completed failed", "deleted", n, "error", err)
		if n > 0 {
			return n, &PartialError{Deleted: n, Err: err}
		}
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return n, nil
}

// Refresh re-queries the store and pushes snapshots to every subscriber.
func (f *Facade) Refresh(ctx context.Context) error {
	return f.publish(ctx)
}

// Subscribe registers fn for view. fn is called with the current snapshot
// before Subscribe returns and again after every change.
func (f *Facade) Subscribe(ctx context.Context, view View, fn Listener) (*Subscription, error) {
	f.deliver.Lock()
	defer f.deliver.Unlock()

	// Registered before the first fetch so no publish can fall between them.
	sub := &Subscription{id: uuid.NewString(), view: view, fn: fn, facade: f}
	f.mu.Lock()
	f.subs[sub.id] = sub
	f.mu.Unlock()

	snap, err := f.list(ctx, view)
	if err != nil {
		f.mu.Lock()
		delete(f.subs, sub.id)
		f.mu.Unlock()
		return nil, err
	}
	fn(snap)
	return sub, nil
}

// publish fetches one snapshot per subscribed view and delivers them. Fetch
// and delivery happen under deliver, so a later publish always fetches after
// an earlier one has delivered and subscribers end on the newest state.
func (f *Facade) publish(ctx context.Context) error {
	f.deliver.Lock()
	defer f.deliver.Unlock()

	f.mu.Lock()
	subs := make([]*Subscription, 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()
	if len(subs) == 0 {
		return nil
	}

	snaps := make(map[View][]service.Task)
	var firstErr error
	for _, s := range subs {
		if _, ok := snaps[s.view]; ok {
			continue
		}
		snap, err := f.list(ctx, s.view)
		if err != nil {
			f.log.Warn("refresh failed", "view", s.view, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		snaps[s.view] = snap
	}

	for _, s := range subs {
		snap, ok := snaps[s.view]
		if !ok || s.cancelled() {
			continue
		}
		out := make([]service.Task, len(snap))
		copy(out, snap)
		s.fn(out)
	}
	return firstErr
}

// Subscription is a cancellable handle to a live view.
type Subscription struct {
	id     string
	view   View
	fn     Listener
	facade *Facade

	mu   sync.Mutex
	done bool
}

// Cancel stops delivery. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.mu.Unlock()

	s.facade.mu.Lock()
	delete(s.facade.subs, s.id)
	s.facade.mu.Unlock()
}

func (s *Subscription) cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
