package domain

// DragPhase is the observable state of a drag gesture. Dropping resolves
// inside the drop call and is never visible between calls.
type DragPhase int

const (
	DragIdle DragPhase = iota
	DragDragging
)

func (p DragPhase) String() string {
	if p == DragDragging {
		return "dragging"
	}
	return "idle"
}

// DropResult is what a drop asks the store to persist.
type DropResult struct {
	// Updates holds the changed tasks, empty for a no-op drop.
	Updates []Task
	// Batch is set when Updates must be committed atomically.
	Batch bool
}

// Empty reports whether the drop changes nothing.
func (r DropResult) Empty() bool { return len(r.Updates) == 0 }

// Drag tracks one pick-up/drop gesture. The zero value is idle.
type Drag struct {
	taskID string
}

// Phase returns the current gesture state.
func (d Drag) Phase() DragPhase {
	if d.taskID == "" {
		return DragIdle
	}
	return DragDragging
}

// Dragging returns the id of the task being dragged.
func (d Drag) Dragging() (string, bool) {
	return d.taskID, d.taskID != ""
}

// Begin picks up a task. Deleted or unknown tasks are not draggable and leave
// the gesture idle.
func (d *Drag) Begin(all []Task, id string) bool {
	t, ok := Find(all, id)
	if !ok || t.IsDeleted {
		d.taskID = ""
		return false
	}
	d.taskID = id
	return true
}

// DropOnCard drops the dragged task onto another card: the task takes the
// card's slot in the card's lane and that lane is renumbered.
func (d *Drag) DropOnCard(all []Task, targetID string) DropResult {
	draggedID := d.taskID
	d.taskID = ""
	if draggedID == "" || draggedID == targetID {
		return DropResult{}
	}
	updates := InsertBefore(all, draggedID, targetID)
	if len(updates) == 0 {
		return DropResult{}
	}
	return DropResult{Updates: updates, Batch: true}
}

// DropOnLane drops the dragged task onto the empty area of a lane, moving it
// to the end of that lane unless it is already last there.
func (d *Drag) DropOnLane(all []Task, lane Assignee) DropResult {
	draggedID := d.taskID
	d.taskID = ""
	if draggedID == "" || !lane.Valid() {
		return DropResult{}
	}
	dragged, ok := Find(all, draggedID)
	if !ok {
		return DropResult{}
	}
	maxOrder := LaneMaxOrder(all, lane)
	if dragged.Assignee == lane && dragged.Order >= maxOrder {
		return DropResult{}
	}
	dragged.Assignee = lane
	dragged.Order = maxOrder + OrderStep
	return DropResult{Updates: []Task{dragged}}
}
