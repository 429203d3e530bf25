package domain

import (
	"cmp"
	"slices"
)

// OrderStep is the gap left between neighbouring order keys.
const OrderStep = 1000

// PrependOrder returns an order key that sorts before every existing task,
// regardless of lane. Deleted tasks count.
func PrependOrder(all []Task) int {
	if len(all) == 0 {
		return -OrderStep
	}
	lowest := all[0].Order
	for _, t := range all[1:] {
		if t.Order < lowest {
			lowest = t.Order
		}
	}
	return lowest - OrderStep
}

// LaneMaxOrder returns the highest order among live tasks of the lane, or 0 when it has none.
func LaneMaxOrder(all []Task, lane Assignee) int {
	highest := 0
	found := false
	for _, t := range all {
		if t.Assignee != lane || t.IsDeleted {
			continue
		}
		if !found || t.Order > highest {
			highest = t.Order
			found = true
		}
	}
	return highest
}

// AppendOrder returns an order key that sorts after every live task of the lane.
func AppendOrder(all []Task, lane Assignee) int {
	return LaneMaxOrder(all, lane) + OrderStep
}

// LiveLane returns the non-deleted tasks of lane in ascending order.
func LiveLane(all []Task, lane Assignee) []Task {
	out := make([]Task, 0, len(all))
	for _, t := range all {
		if t.Assignee == lane && !t.IsDeleted {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b Task) int { return cmp.Compare(a.Order, b.Order) })
	return out
}

// Renormalize rewrites the order of every task in list to index × OrderStep and
// homes it in lane. It returns the rewritten list and the subset that differs
// from the input.
func Renormalize(list []Task, lane Assignee) (normalized, changed []Task) {
	normalized = make([]Task, len(list))
	for i, t := range list {
		next := t
		next.Order = i * OrderStep
		next.Assignee = lane
		normalized[i] = next
		if next.Order != t.Order || next.Assignee != t.Assignee {
			changed = append(changed, next)
		}
	}
	return normalized, changed
}

// InsertBefore moves the dragged task into the slot held by target in the
// target's lane, re-homing it there, and renormalizes that lane. Only tasks
// whose order or assignee changed are returned. Dropping a task on itself,
// on a deleted task, or referencing a missing task yields nothing.
func InsertBefore(all []Task, draggedID, targetID string) []Task {
	if draggedID == targetID {
		return nil
	}
	dragged, ok := Find(all, draggedID)
	if !ok || dragged.IsDeleted {
		return nil
	}
	target, ok := Find(all, targetID)
	if !ok || target.IsDeleted {
		return nil
	}

	lane := target.Assignee
	group := LiveLane(all, lane)
	idx := slices.IndexFunc(group, func(t Task) bool { return t.ID == targetID })
	if idx < 0 {
		return nil
	}

	list := make([]Task, 0, len(group)+1)
	for _, t := range group {
		if t.ID != draggedID {
			list = append(list, t)
		}
	}
	if idx > len(list) {
		idx = len(list)
	}
	list = slices.Insert(list, idx, dragged)

	_, changed := Renormalize(list, lane)
	return changed
}
