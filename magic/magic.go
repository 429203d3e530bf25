// Package magic turns free text into a structured task draft using an
// external language model.
package magic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"duoboard/domain"
)

var (
	// ErrUnavailable is returned when no model is configured.
	ErrUnavailable = errors.New("magic add is not configured")
	// ErrEmptyResponse is returned when the model answered with nothing usable.
	ErrEmptyResponse = errors.New("empty model response")
	// ErrMalformedResponse is returned when the model answer does not describe a valid task.
	ErrMalformedResponse = errors.New("malformed model response")
)

// Context carries what the model needs to resolve relative dates and names.
type Context struct {
	Today time.Time
	UserA string
	UserB string
}

// Draft is the structured task extracted from free text.
type Draft struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Status        domain.Status   `json:"status"`
	Assignee      domain.Assignee `json:"assignee"`
	DueDate       *string         `json:"dueDate"`
	PriorityColor string          `json:"priorityColor"`
}

// Parser extracts a task draft from text.
type Parser interface {
	Parse(ctx context.Context, text string, c Context) (*Draft, error)
}

// Disabled is the Parser used without credentials; it always fails so callers fall back.
type Disabled struct{}

func (Disabled) Parse(context.Context, string, Context) (*Draft, error) {
	return nil, ErrUnavailable
}

// normalize validates the draft and clears fields the board cannot store.
func (d *Draft) normalize() error {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, domain.ErrEmptyTitle)
	}
	if !d.Status.Valid() {
		return fmt.Errorf("%w: status %q", ErrMalformedResponse, d.Status)
	}
	if !d.Assignee.Valid() {
		return fmt.Errorf("%w: assignee %q", ErrMalformedResponse, d.Assignee)
	}
	if d.DueDate != nil {
		due := strings.TrimSpace(*d.DueDate)
		if due == "" || strings.EqualFold(due, "null") {
			d.DueDate = nil
		} else if _, err := domain.ParseDueDate(due); err != nil {
			d.DueDate = nil
		} else {
			d.DueDate = &due
		}
	}
	return nil
}

func buildPrompt(text string, c Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current Date: %s\n", c.Today.Format(domain.DueDateLayout))
	fmt.Fprintf(&b, "User A Name: %s\n", c.UserA)
	fmt.Fprintf(&b, "User B Name: %s\n\n", c.UserB)
	fmt.Fprintf(&b, "Extract task details from the following request: %q\n\n", text)
	b.WriteString("If the assignee is not clear, default to 'shared'.\n")
	b.WriteString("If the status is not clear, default to 'todo'.\n")
	b.WriteString("If a specific color isn't mentioned, pick a pastel hex color that fits the mood.\n")
	return b.String()
}
