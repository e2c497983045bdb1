// Package service defines the backend-agnostic interface for the task store.
package service

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when an ID does not reference an existing task.
	ErrNotFound = errors.New("task not found")

	// ErrUnauthorized is returned when the backend rejects the stored credentials.
	ErrUnauthorized = errors.New("token expired or revoked (run: gtodo login)")
)

// Service defines the task store operations.
// All backend calls go through this interface.
// Commands never import a backend SDK directly.
type Service interface {
	// List returns the tasks matching filter.
	// Order is backend-defined; callers must not rely on it for display.
	List(ctx context.Context, filter Filter) ([]Task, error)

	// Create inserts a task with IsCompleted=false and returns it
	// with its store-assigned ID and CreationTime.
	// Text validation is the caller's job.
	Create(ctx context.Context, text string) (Task, error)

	// Update sets IsCompleted on an existing task.
	// Returns ErrNotFound if id is unknown. Setting the current value is not an error.
	Update(ctx context.Context, id string, isCompleted bool) error

	// Remove deletes a task.
	// Returns ErrNotFound if id is unknown.
	Remove(ctx context.Context, id string) error

	// ClearCompleted deletes every completed task and returns how many were deleted.
	// Not atomic: on failure the returned count reflects the deletions that succeeded.
	ClearCompleted(ctx context.Context) (int, error)
}
