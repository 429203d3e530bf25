package magic

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"duoboard/domain"
)

func fixedContext() Context {
	return Context{
		Today: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
		UserA: "Alice",
		UserB: "Bob",
	}
}

func TestGeminiParse(t *testing.T) {
	var prompt string
	g := newGemini(func(ctx context.Context, p string) (string, error) {
		prompt = p
		return `{"title":"Buy coffee","description":"beans","status":"todo","assignee":"userA","dueDate":"2026-10-19","priorityColor":"#fde68a"}`, nil
	}, time.Second, nil)

	d, err := g.Parse(context.Background(), "Remind Alice to buy coffee on Monday", fixedContext())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Title != "Buy coffee" || d.Assignee != domain.AssigneeUserA || d.Status != domain.StatusTodo {
		t.Fatalf("unexpected draft %+v", d)
	}
	if d.DueDate == nil || *d.DueDate != "2026-10-19" {
		t.Fatalf("unexpected due date %v", d.DueDate)
	}
	for _, want := range []string{"Current Date: 2026-10-15", "User A Name: Alice", "User B Name: Bob", "buy coffee on Monday"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestGeminiParseFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		err  error
		want error
	}{
		{name: "transport", err: errors.New("boom")},
		{name: "empty", raw: "  ", want: ErrEmptyResponse},
		{name: "null", raw: "null", want: ErrEmptyResponse},
		{name: "not json", raw: "sure! here is your task", want: ErrMalformedResponse},
		{name: "bad status", raw: `{"title":"x","status":"later","assignee":"shared","priorityColor":"#fff"}`, want: ErrMalformedResponse},
		{name: "bad assignee", raw: `{"title":"x","status":"todo","assignee":"carol","priorityColor":"#fff"}`, want: ErrMalformedResponse},
		{name: "blank title", raw: `{"title":" ","status":"todo","assignee":"shared","priorityColor":"#fff"}`, want: ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGemini(func(context.Context, string) (string, error) { return tt.raw, tt.err }, 0, nil)
			d, err := g.Parse(context.Background(), "anything", fixedContext())
			if err == nil || d != nil {
				t.Fatalf("expected failure, got %+v", d)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGeminiDropsUnusableDueDate(t *testing.T) {
	for _, due := range []string{`null`, `""`, `"next week"`} {
		g := newGemini(func(context.Context, string) (string, error) {
			return `{"title":"x","status":"todo","assignee":"shared","dueDate":` + due + `,"priorityColor":"#fff"}`, nil
		}, 0, nil)
		d, err := g.Parse(context.Background(), "x", fixedContext())
		if err != nil {
			t.Fatalf("due %s: parse: %v", due, err)
		}
		if d.DueDate != nil {
			t.Fatalf("due %s: expected no due date, got %q", due, *d.DueDate)
		}
	}
}

func TestGeminiTimeout(t *testing.T) {
	logger, hook := test.NewNullLogger()
	g := newGemini(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, 20*time.Millisecond, logger)

	_, err := g.Parse(context.Background(), "x", fixedContext())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.WarnLevel {
		t.Fatalf("expected warn log entry, got %+v", entry)
	}
}

func TestDisabled(t *testing.T) {
	if _, err := (Disabled{}).Parse(context.Background(), "x", fixedContext()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
