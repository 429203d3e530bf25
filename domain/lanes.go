package domain

import (
	"cmp"
	"slices"
)

// Lane is the projected, display-ready content of one assignee column.
type Lane struct {
	Assignee Assignee `json:"assignee"`
	Tasks    []Task   `json:"tasks"`
	Open     int      `json:"open"`
}

// BoardLanes holds the three projected lanes.
type BoardLanes struct {
	UserA  Lane `json:"userA"`
	UserB  Lane `json:"userB"`
	Shared Lane `json:"shared"`
}

// Lane returns the projection for the given assignee.
func (b BoardLanes) Lane(a Assignee) Lane {
	switch a {
	case AssigneeUserA:
		return b.UserA
	case AssigneeUserB:
		return b.UserB
	default:
		return b.Shared
	}
}

// compareForDisplay puts live tasks before deleted ones and orders each group ascending.
func compareForDisplay(a, b Task) int {
	if a.IsDeleted != b.IsDeleted {
		if a.IsDeleted {
			return 1
		}
		return -1
	}
	return cmp.Compare(a.Order, b.Order)
}

// Project returns the tasks of one lane sorted for display. The input is not modified.
func Project(all []Task, lane Assignee) []Task {
	out := make([]Task, 0, len(all))
	for _, t := range all {
		if t.Assignee == lane {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, compareForDisplay)
	return out
}

// OpenCount counts live tasks that are not done.
func OpenCount(tasks []Task) int {
	n := 0
	for _, t := range tasks {
		if !t.IsDeleted && t.Status != StatusDone {
			n++
		}
	}
	return n
}

// ProjectLane builds the lane projection including its open count.
func ProjectLane(all []Task, lane Assignee) Lane {
	tasks := Project(all, lane)
	return Lane{Assignee: lane, Tasks: tasks, Open: OpenCount(tasks)}
}

// ProjectBoard projects all three lanes from the flat task set.
func ProjectBoard(all []Task) BoardLanes {
	return BoardLanes{
		UserA:  ProjectLane(all, AssigneeUserA),
		UserB:  ProjectLane(all, AssigneeUserB),
		Shared: ProjectLane(all, AssigneeShared),
	}
}
