// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gtodo/internal/service"
)

// FakeService is an in-memory implementation of service.Service for testing.
// IDs are "t1", "t2", ... and creation times advance one second per insert.
type FakeService struct {
	mu    sync.RWMutex
	tasks []service.Task
	seq   int
	clock time.Time

	// Error injection for testing
	ListErr   error
	CreateErr error
	UpdateErr error
	RemoveErr error
	ClearErr  error

	// ClearFailAfter makes ClearCompleted fail with ClearErr after deleting
	// this many tasks. Zero with a nil ClearErr means no failure.
	ClearFailAfter int

	// Calls counts backend calls by method name.
	Calls map[string]int
}

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Calls: make(map[string]int),
	}
}

// AddTask seeds a task with the given ID and returns it.
func (f *FakeService) AddTask(id, text string, completed bool) service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(time.Second)
	t := service.Task{ID: id, Text: text, IsCompleted: completed, CreationTime: f.clock}
	f.tasks = append(f.tasks, t)
	return t
}

// Snapshot returns every stored task in insertion order.
func (f *FakeService) Snapshot() []service.Task {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]service.Task, len(f.tasks))
	copy(out, f.tasks)
	return out
}

// List implements service.Service.
func (f *FakeService) List(ctx context.Context, filter service.Filter) ([]service.Task, error) {
	f.mu.Lock()
	f.Calls["List"]++
	f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []service.Task
	for _, t := range f.tasks {
		if filter.Match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Create implements service.Service.
func (f *FakeService) Create(ctx context.Context, text string) (service.Task, error) {
	if f.CreateErr != nil {
		return service.Task{}, f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["Create"]++

	f.seq++
	f.clock = f.clock.Add(time.Second)
	t := service.Task{
		ID:           fmt.Sprintf("t%d", f.seq),
		Text:         text,
		CreationTime: f.clock,
	}
	f.tasks = append(f.tasks, t)
	return t, nil
}

// Update implements service.Service.
func (f *FakeService) Update(ctx context.Context, id string, isCompleted bool) error {
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["Update"]++

	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks[i].IsCompleted = isCompleted
			return nil
		}
	}
	return service.ErrNotFound
}

// Remove implements service.Service.
func (f *FakeService) Remove(ctx context.Context, id string) error {
	if f.RemoveErr != nil {
		return f.RemoveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["Remove"]++

	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return service.ErrNotFound
}

// ClearCompleted implements service.Service.
func (f *FakeService) ClearCompleted(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["ClearCompleted"]++

	if f.ClearErr != nil && f.ClearFailAfter == 0 {
		return 0, f.ClearErr
	}

	deleted := 0
	kept := f.tasks[:0]
	for _, t := range f.tasks {
		if t.IsCompleted && (f.ClearErr == nil || deleted < f.ClearFailAfter) {
			deleted++
			continue
		}
		kept = append(kept, t)
	}
	f.tasks = kept
	if f.ClearErr != nil {
		return deleted, f.ClearErr
	}
	return deleted, nil
}
