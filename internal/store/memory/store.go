// Package memory provides an in-memory task store for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/crawlkit/crawlkit/internal/crawler"
	"github.com/crawlkit/crawlkit/internal/store"
)

// TaskStore keeps tasks and results in process memory.
type TaskStore struct {
	mu      sync.RWMutex
	now     func() time.Time
	tasks   map[string]crawler.Task
	results map[string][]crawler.Result
}

// New returns an empty TaskStore.
func New() *TaskStore {
	return &TaskStore{
		now:     func() time.Time { return time.Now().UTC() },
		tasks:   make(map[string]crawler.Task),
		results: make(map[string][]crawler.Result),
	}
}

// CreateTask stores a new task record.
func (s *TaskStore) CreateTask(_ context.Context, task crawler.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return store.ErrAlreadyExists
	}
	s.tasks[task.ID] = task
	return nil
}

// UpdateTaskStatus transitions a task and merges counters. Started/finished
// timestamps are derived from the status transition, mirroring the postgres
// provider.
func (s *TaskStore) UpdateTaskStatus(
	_ context.Context,
	taskID string,
	status crawler.TaskStatus,
	errText string,
	counters crawler.TaskCounters,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return store.ErrNotFound
	}
	task.Status = status
	task.ErrorText = errText
	task.Counters = counters
	switch status {
	case crawler.TaskStatusRunning:
		if task.Started == nil {
			ts := s.now()
			task.Started = &ts
		}
	case crawler.TaskStatusCompleted, crawler.TaskStatusFailed, crawler.TaskStatusCanceled:
		if task.Finished == nil {
			ts := s.now()
			task.Finished = &ts
		}
	}
	s.tasks[taskID] = task
	return nil
}

// RecordResult appends a page result to the task.
func (s *TaskStore) RecordResult(_ context.Context, taskID string, result crawler.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[taskID]; !ok {
		return store.ErrNotFound
	}
	s.results[taskID] = append(s.results[taskID], result)
	return nil
}

// GetTask returns the task by ID.
func (s *TaskStore) GetTask(_ context.Context, taskID string) (crawler.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return crawler.Task{}, store.ErrNotFound
	}
	return task, nil
}

// ListResults returns the recorded results for the task in insertion order.
func (s *TaskStore) ListResults(_ context.Context, taskID string) ([]crawler.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.tasks[taskID]; !ok {
		return nil, store.ErrNotFound
	}
	results := s.results[taskID]
	out := make([]crawler.Result, len(results))
	copy(out, results)
	return out, nil
}
