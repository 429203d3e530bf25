package domain

import "testing"

func laneTasks() []Task {
	return []Task{
		{ID: "1", Assignee: AssigneeUserA, Order: 0},
		{ID: "2", Assignee: AssigneeUserA, Order: 1000},
		{ID: "3", Assignee: AssigneeUserA, Order: 2000},
		{ID: "b1", Assignee: AssigneeUserB, Order: 500},
		{ID: "del", Assignee: AssigneeUserB, Order: 9000, IsDeleted: true},
	}
}

func TestDragBegin(t *testing.T) {
	var d Drag
	if d.Phase() != DragIdle {
		t.Fatalf("zero value should be idle")
	}
	if d.Begin(laneTasks(), "del") {
		t.Fatalf("deleted task should not be draggable")
	}
	if d.Begin(laneTasks(), "missing") {
		t.Fatalf("missing task should not be draggable")
	}
	if !d.Begin(laneTasks(), "2") {
		t.Fatalf("expected drag to start")
	}
	if id, ok := d.Dragging(); !ok || id != "2" || d.Phase() != DragDragging {
		t.Fatalf("unexpected drag state %q %v %s", id, ok, d.Phase())
	}
}

func TestDropOnCardScenario(t *testing.T) {
	var d Drag
	tasks := laneTasks()
	d.Begin(tasks, "3")
	res := d.DropOnCard(tasks, "1")
	if !res.Batch || len(res.Updates) != 3 {
		t.Fatalf("expected batch of 3, got %+v", res)
	}
	want := map[string]int{"3": 0, "1": 1000, "2": 2000}
	for id, order := range orders(res.Updates) {
		if want[id] != order {
			t.Fatalf("task %s: order %d, want %d", id, order, want[id])
		}
	}
	if d.Phase() != DragIdle {
		t.Fatalf("drop should return to idle")
	}
}

func TestDropOnSelfIsNoop(t *testing.T) {
	var d Drag
	tasks := laneTasks()
	d.Begin(tasks, "2")
	if res := d.DropOnCard(tasks, "2"); !res.Empty() {
		t.Fatalf("self drop changed tasks: %+v", res)
	}
	if d.Phase() != DragIdle {
		t.Fatalf("self drop should clear drag state")
	}
}

func TestDropWithoutDragIsNoop(t *testing.T) {
	var d Drag
	if res := d.DropOnCard(laneTasks(), "1"); !res.Empty() {
		t.Fatalf("unexpected updates %+v", res)
	}
	if res := d.DropOnLane(laneTasks(), AssigneeShared); !res.Empty() {
		t.Fatalf("unexpected updates %+v", res)
	}
}

func TestDropOnCardClearsStateOnMissingTarget(t *testing.T) {
	var d Drag
	tasks := laneTasks()
	d.Begin(tasks, "1")
	if res := d.DropOnCard(tasks, "nope"); !res.Empty() {
		t.Fatalf("unexpected updates %+v", res)
	}
	if d.Phase() != DragIdle {
		t.Fatalf("expected idle after early return")
	}
}

func TestDropOnLane(t *testing.T) {
	tests := []struct {
		name      string
		dragged   string
		lane      Assignee
		wantOrder int
		wantNoop  bool
	}{
		{name: "cross lane appends after live max", dragged: "1", lane: AssigneeUserB, wantOrder: 1500},
		{name: "empty lane", dragged: "2", lane: AssigneeShared, wantOrder: 1000},
		{name: "move to end of own lane", dragged: "1", lane: AssigneeUserA, wantOrder: 3000},
		{name: "already last", dragged: "3", lane: AssigneeUserA, wantNoop: true},
		{name: "invalid lane", dragged: "3", lane: Assignee("nobody"), wantNoop: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Drag
			tasks := laneTasks()
			d.Begin(tasks, tt.dragged)
			res := d.DropOnLane(tasks, tt.lane)
			if d.Phase() != DragIdle {
				t.Fatalf("expected idle after drop")
			}
			if tt.wantNoop {
				if !res.Empty() {
					t.Fatalf("expected no-op, got %+v", res)
				}
				return
			}
			if res.Batch || len(res.Updates) != 1 {
				t.Fatalf("expected single update, got %+v", res)
			}
			got := res.Updates[0]
			if got.ID != tt.dragged || got.Assignee != tt.lane || got.Order != tt.wantOrder {
				t.Fatalf("unexpected update %+v", got)
			}
		})
	}
}
