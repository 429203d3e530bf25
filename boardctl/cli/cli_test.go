package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"duoboard/app"
	"duoboard/board"
	"duoboard/domain"
	"duoboard/storage"
)

func memoryOpener(mem *storage.Memory) Opener {
	var n int
	return func(ctx context.Context) (*board.Board, func(), error) {
		logger, _ := test.NewNullLogger()
		newID := func() string {
			n++
			return fmt.Sprintf("cli-%d", n)
		}
		b := board.New(mem, board.Options{
			Logger: logger,
			Now:    func() time.Time { return time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC) },
			NewID:  newID,
		})
		if err := b.Start(ctx); err != nil {
			return nil, nil, err
		}
		if err := app.WaitSynced(ctx, b); err != nil {
			b.Close()
			return nil, nil, err
		}
		return b, b.Close, nil
	}
}

func run(t *testing.T, mem *storage.Memory, args ...string) (string, error) {
	t.Helper()
	cmd := NewRoot(memoryOpener(mem))
	cmd.SetArgs(args)
	out := bytes.NewBuffer(nil)
	cmd.SetOut(out)
	cmd.SetErr(bytes.NewBuffer(nil))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func stored(t *testing.T, mem *storage.Memory, id string) domain.Task {
	t.Helper()
	task, ok := domain.Find(mem.Tasks(), id)
	if !ok {
		t.Fatalf("task %s not in store", id)
	}
	return task
}

func seedTask(id string, lane domain.Assignee, order int) domain.Task {
	return domain.Task{
		ID: id, Title: "task " + id, Status: domain.StatusTodo, Assignee: lane,
		Color: domain.LaneColor(lane), CreatedAt: 1, Order: order,
	}
}

func TestRootCommandHasAllCommands(t *testing.T) {
	cmd := NewRoot(memoryOpener(storage.NewMemory()))
	have := map[string]bool{}
	for _, sub := range cmd.Commands() {
		have[sub.Name()] = true
	}
	for _, name := range []string{"lanes", "add", "magic", "move", "toggle", "delete", "restore", "purge", "rename"} {
		if !have[name] {
			t.Fatalf("expected %s command", name)
		}
	}
}

func TestAddPersistsToStore(t *testing.T) {
	mem := storage.NewMemory(seedTask("a", domain.AssigneeUserA, 500))
	out, err := run(t, mem, "add", "--lane", "userB", "Buy", "milk")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "Added cli-1") {
		t.Fatalf("unexpected output %q", out)
	}
	got := stored(t, mem, "cli-1")
	if got.Title != "Buy milk" || got.Assignee != domain.AssigneeUserB || got.Order != -500 {
		t.Fatalf("unexpected stored task %+v", got)
	}
}

func TestAddRejectsUnknownLane(t *testing.T) {
	mem := storage.NewMemory()
	if _, err := run(t, mem, "add", "--lane", "nobody", "x"); !errors.Is(err, domain.ErrInvalidAssignee) {
		t.Fatalf("expected ErrInvalidAssignee, got %v", err)
	}
	if len(mem.Tasks()) != 0 {
		t.Fatal("nothing should be stored")
	}
}

func TestMagicFallsBackWithoutParser(t *testing.T) {
	mem := storage.NewMemory()
	out, err := run(t, mem, "magic", "call", "mom", "tomorrow")
	if err != nil {
		t.Fatalf("magic: %v", err)
	}
	if !strings.Contains(out, "to shared: call mom tomorrow") {
		t.Fatalf("unexpected output %q", out)
	}
	got := stored(t, mem, "cli-1")
	if got.DueDate != "" || got.Status != domain.StatusTodo {
		t.Fatalf("unexpected fallback task %+v", got)
	}
}

func TestMoveBeforeCard(t *testing.T) {
	mem := storage.NewMemory(
		seedTask("1", domain.AssigneeUserA, 0),
		seedTask("2", domain.AssigneeUserA, 1000),
		seedTask("3", domain.AssigneeUserA, 2000),
	)
	if _, err := run(t, mem, "move", "3", "--before", "1"); err != nil {
		t.Fatalf("move: %v", err)
	}
	want := map[string]int{"3": 0, "1": 1000, "2": 2000}
	for id, order := range want {
		if got := stored(t, mem, id).Order; got != order {
			t.Fatalf("task %s order = %d, want %d", id, got, order)
		}
	}
}

func TestMoveToLane(t *testing.T) {
	mem := storage.NewMemory(
		seedTask("1", domain.AssigneeUserA, 0),
		seedTask("2", domain.AssigneeShared, 4000),
	)
	if _, err := run(t, mem, "move", "1", "--lane", "shared"); err != nil {
		t.Fatalf("move: %v", err)
	}
	got := stored(t, mem, "1")
	if got.Assignee != domain.AssigneeShared || got.Order != 5000 {
		t.Fatalf("unexpected moved task %+v", got)
	}
}

func TestMoveFlagErrors(t *testing.T) {
	deleted := seedTask("2", domain.AssigneeUserA, 1000)
	deleted.IsDeleted = true
	mem := storage.NewMemory(seedTask("1", domain.AssigneeUserA, 0), deleted)

	tests := []struct {
		name string
		args []string
	}{
		{"no target", []string{"move", "1"}},
		{"both targets", []string{"move", "1", "--before", "2", "--lane", "shared"}},
		{"bad lane", []string{"move", "1", "--lane", "nowhere"}},
		{"deleted task", []string{"move", "2", "--lane", "shared"}},
		{"missing task", []string{"move", "9", "--lane", "shared"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, mem, tt.args...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDeleteRestorePurge(t *testing.T) {
	mem := storage.NewMemory(seedTask("1", domain.AssigneeUserB, 3000))

	if _, err := run(t, mem, "delete", "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !stored(t, mem, "1").IsDeleted {
		t.Fatal("expected soft-deleted task")
	}
	if _, err := run(t, mem, "restore", "1"); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := stored(t, mem, "1"); got != seedTask("1", domain.AssigneeUserB, 3000) {
		t.Fatalf("restore changed the task: %+v", got)
	}
	if _, err := run(t, mem, "purge", "1"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(mem.Tasks()) != 0 {
		t.Fatalf("expected empty store, got %+v", mem.Tasks())
	}
	if _, err := run(t, mem, "purge", "1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing id, got %v", err)
	}
}

func TestToggle(t *testing.T) {
	mem := storage.NewMemory(seedTask("1", domain.AssigneeShared, 0))
	if _, err := run(t, mem, "toggle", "1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if got := stored(t, mem, "1").Status; got != domain.StatusDone {
		t.Fatalf("status = %s, want done", got)
	}
}

func TestRename(t *testing.T) {
	mem := storage.NewMemory()
	if _, err := run(t, mem, "rename", "userA", "Ada", "L"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if got := mem.Profiles()[domain.UserA].Name; got != "Ada L" {
		t.Fatalf("name = %q", got)
	}
	if _, err := run(t, mem, "rename", "userC", "Bob"); !errors.Is(err, domain.ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
	if _, err := run(t, mem, "rename", "userB", " "); err == nil {
		t.Fatal("expected error for blank name")
	}
}

func TestLanesOutput(t *testing.T) {
	deleted := seedTask("2", domain.AssigneeUserA, -100)
	deleted.IsDeleted = true
	mem := storage.NewMemory(seedTask("1", domain.AssigneeUserA, 0), deleted)

	out, err := run(t, mem, "lanes")
	if err != nil {
		t.Fatalf("lanes: %v", err)
	}
	for _, want := range []string{"User A (1 open)", "User B (0 open)", "Shared (0 open)", "[deleted]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "task 1") > strings.Index(out, "task 2") {
		t.Fatalf("deleted task should be listed last:\n%s", out)
	}

	out, err = run(t, mem, "lanes", "--json")
	if err != nil {
		t.Fatalf("lanes --json: %v", err)
	}
	if !strings.Contains(out, `"synced": true`) {
		t.Fatalf("unexpected json output:\n%s", out)
	}
}
