// Package store defines shared task-store errors and helpers. Concrete
// providers live in subpackages named after their backend.
package store

import "errors"

// ErrNotFound is returned when a task ID has no record.
var ErrNotFound = errors.New("task not found")

// ErrAlreadyExists is returned when creating a task with a duplicate ID.
var ErrAlreadyExists = errors.New("task already exists")
