// Package service defines the backend-agnostic interface for the task store.
package service

import (
	"fmt"
	"sort"
	"time"
)

// Task represents a single task record.
type Task struct {
	ID           string    `json:"id" yaml:"id"`
	Text         string    `json:"text" yaml:"text"`
	IsCompleted  bool      `json:"isCompleted" yaml:"isCompleted"`
	CreationTime time.Time `json:"creationTime" yaml:"creationTime"`
}

// Filter selects one of the read views.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// ParseFilter parses a filter name. Empty means FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch Filter(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterActive, FilterCompleted:
		return Filter(s), nil
	default:
		return "", fmt.Errorf("invalid filter: %s", s)
	}
}

// Match reports whether t belongs to the view selected by f.
func (f Filter) Match(t Task) bool {
	switch f {
	case FilterActive:
		return !t.IsCompleted
	case FilterCompleted:
		return t.IsCompleted
	default:
		return true
	}
}

// SortNewestFirst sorts tasks by CreationTime descending, ID as tie breaker.
func SortNewestFirst(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].CreationTime.Equal(tasks[j].CreationTime) {
			return tasks[i].ID > tasks[j].ID
		}
		return tasks[i].CreationTime.After(tasks[j].CreationTime)
	})
}
