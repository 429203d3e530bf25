package domain

import "errors"

var (
	ErrEmptyTitle      = errors.New("task title is empty")
	ErrInvalidStatus   = errors.New("invalid task status")
	ErrInvalidAssignee = errors.New("invalid assignee")
	ErrInvalidDueDate  = errors.New("invalid due date")
	ErrUnknownUser     = errors.New("unknown user")

	// ErrNotFound is returned by stores when a replace targets a missing record.
	ErrNotFound = errors.New("not found")

	// ErrBatchTooLarge is returned when an atomic batch exceeds what the store can commit at once.
	ErrBatchTooLarge = errors.New("batch too large")
)
