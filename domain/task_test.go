package domain

import (
	"errors"
	"testing"
)

func TestTaskValidate(t *testing.T) {
	base := Task{ID: "x", Title: "t", Status: StatusTodo, Assignee: AssigneeShared}
	tests := []struct {
		name   string
		mutate func(*Task)
		want   error
	}{
		{name: "ok", mutate: func(*Task) {}},
		{name: "blank title", mutate: func(t *Task) { t.Title = "   " }, want: ErrEmptyTitle},
		{name: "bad status", mutate: func(t *Task) { t.Status = "later" }, want: ErrInvalidStatus},
		{name: "bad assignee", mutate: func(t *Task) { t.Assignee = "carol" }, want: ErrInvalidAssignee},
		{name: "bad due date", mutate: func(t *Task) { t.DueDate = "tomorrow" }, want: ErrInvalidDueDate},
		{name: "good due date", mutate: func(t *Task) { t.DueDate = "2026-10-15" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := base
			tt.mutate(&task)
			err := task.Validate()
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
