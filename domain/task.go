package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the progress state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Assignee names the lane a task lives in.
type Assignee string

const (
	AssigneeUserA  Assignee = "userA"
	AssigneeUserB  Assignee = "userB"
	AssigneeShared Assignee = "shared"
)

// Lanes lists every assignee in display order.
var Lanes = []Assignee{AssigneeUserA, AssigneeUserB, AssigneeShared}

func (a Assignee) Valid() bool {
	switch a {
	case AssigneeUserA, AssigneeUserB, AssigneeShared:
		return true
	}
	return false
}

// Display colors used when a task is created without an explicit one.
const (
	ColorUserA   = "#99f6e4"
	ColorUserB   = "#fecdd3"
	ColorDefault = "#a5b4fc"
)

// LaneColor returns the quick-add color for the given lane.
func LaneColor(a Assignee) string {
	switch a {
	case AssigneeUserA:
		return ColorUserA
	case AssigneeUserB:
		return ColorUserB
	default:
		return ColorDefault
	}
}

// DueDateLayout is the calendar date format of Task.DueDate.
const DueDateLayout = "2006-01-02"

// Task represents a single card on the board.
type Task struct {
	ID          string   `json:"id" firestore:"id"`
	Title       string   `json:"title" firestore:"title"`
	Description string   `json:"description,omitempty" firestore:"description,omitempty"`
	DueDate     string   `json:"dueDate,omitempty" firestore:"dueDate,omitempty"`
	Status      Status   `json:"status" firestore:"status"`
	Assignee    Assignee `json:"assignee" firestore:"assignee"`
	Color       string   `json:"color" firestore:"color"`
	CreatedAt   int64    `json:"createdAt" firestore:"createdAt"`
	IsDeleted   bool     `json:"isDeleted,omitempty" firestore:"isDeleted,omitempty"`
	Order       int      `json:"order" firestore:"order"`
}

// Validate reports whether the task may be persisted.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	if !t.Assignee.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAssignee, t.Assignee)
	}
	if t.DueDate != "" {
		if _, err := ParseDueDate(t.DueDate); err != nil {
			return err
		}
	}
	return nil
}

// ParseDueDate parses a YYYY-MM-DD calendar date.
func ParseDueDate(s string) (time.Time, error) {
	d, err := time.Parse(DueDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDueDate, s)
	}
	return d, nil
}

// Find returns the task with the given id.
func Find(tasks []Task, id string) (Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// CloneTasks returns a copy of tasks that shares no backing array with the input.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}
