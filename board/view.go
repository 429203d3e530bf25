package board

import "duoboard/domain"

// View is an immutable picture of the board as the local client sees it.
type View struct {
	Version  uint64            `json:"version"`
	Tasks    []domain.Task     `json:"tasks"`
	Lanes    domain.BoardLanes `json:"lanes"`
	Profiles domain.Profiles   `json:"profiles"`
	// Dragging is the id of the task currently picked up, if any.
	Dragging string `json:"dragging,omitempty"`
	// Pending is set while local changes wait for the next store snapshot.
	Pending bool `json:"pending"`
	// Synced is set once the first task snapshot has arrived.
	Synced bool `json:"synced"`
}

// state is owned by the event loop. Confirmed values mirror the last store
// snapshot; pending values hold optimistic local edits and are dropped
// whenever a newer snapshot arrives.
type state struct {
	confirmed         []domain.Task
	pending           []domain.Task
	confirmedProfiles domain.Profiles
	pendingProfiles   domain.Profiles
	drag              domain.Drag
	synced            bool
}

func newState() *state {
	return &state{confirmedProfiles: domain.DefaultProfiles()}
}

func (s *state) tasks() []domain.Task {
	if s.pending != nil {
		return s.pending
	}
	return s.confirmed
}

func (s *state) profiles() domain.Profiles {
	if s.pendingProfiles != nil {
		return s.pendingProfiles
	}
	return s.confirmedProfiles
}

func (s *state) confirmTasks(tasks []domain.Task) {
	s.confirmed = domain.CloneTasks(tasks)
	if s.confirmed == nil {
		s.confirmed = []domain.Task{}
	}
	s.pending = nil
	s.synced = true
}

func (s *state) confirmProfiles(p domain.Profiles) {
	s.confirmedProfiles = p.WithDefaults()
	s.pendingProfiles = nil
}

// upsertLocal records tasks in the pending view, replacing by id.
func (s *state) upsertLocal(tasks ...domain.Task) {
	next := domain.CloneTasks(s.tasks())
	for _, t := range tasks {
		replaced := false
		for i := range next {
			if next[i].ID == t.ID {
				next[i] = t
				replaced = true
				break
			}
		}
		if !replaced {
			next = append(next, t)
		}
	}
	s.pending = next
}

// replaceLocal records tasks in the pending view only where they already exist.
func (s *state) replaceLocal(tasks ...domain.Task) {
	next := domain.CloneTasks(s.tasks())
	for _, t := range tasks {
		for i := range next {
			if next[i].ID == t.ID {
				next[i] = t
				break
			}
		}
	}
	s.pending = next
}

func (s *state) removeLocal(id string) {
	cur := s.tasks()
	next := make([]domain.Task, 0, len(cur))
	for _, t := range cur {
		if t.ID != id {
			next = append(next, t)
		}
	}
	s.pending = next
}

func (s *state) setProfileLocal(p domain.UserProfile) {
	next := s.profiles().Clone()
	next[p.ID] = p
	s.pendingProfiles = next
}

func (s *state) view(version uint64) View {
	tasks := domain.CloneTasks(s.tasks())
	if tasks == nil {
		tasks = []domain.Task{}
	}
	dragging, _ := s.drag.Dragging()
	return View{
		Version:  version,
		Tasks:    tasks,
		Lanes:    domain.ProjectBoard(tasks),
		Profiles: s.profiles().Clone(),
		Dragging: dragging,
		Pending:  s.pending != nil || s.pendingProfiles != nil,
		Synced:   s.synced,
	}
}
