// Package storage holds the task store implementations used by the board.
package storage

import (
	"context"
	"fmt"
	"sync"

	"duoboard/domain"
)

// Memory is an in-process task store. Every write pushes a full snapshot to
// all subscribers; a subscriber that falls behind only sees the newest one.
type Memory struct {
	mu       sync.Mutex
	tasks    []domain.Task
	profiles domain.Profiles
	taskSubs map[chan []domain.Task]struct{}
	profSubs map[chan domain.Profiles]struct{}
}

// NewMemory creates a store seeded with the given tasks.
func NewMemory(seed ...domain.Task) *Memory {
	return &Memory{
		tasks:    domain.CloneTasks(seed),
		taskSubs: make(map[chan []domain.Task]struct{}),
		profSubs: make(map[chan domain.Profiles]struct{}),
	}
}

// Tasks returns a copy of the stored tasks.
func (m *Memory) Tasks() []domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.CloneTasks(m.tasks)
}

// Profiles returns the stored profiles, defaults included.
func (m *Memory) Profiles() domain.Profiles {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles.WithDefaults()
}

func (m *Memory) SubscribeTasks(ctx context.Context) (<-chan []domain.Task, error) {
	ch := make(chan []domain.Task, 1)
	m.mu.Lock()
	m.taskSubs[ch] = struct{}{}
	ch <- domain.CloneTasks(m.tasks)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.taskSubs, ch)
		close(ch)
		m.mu.Unlock()
	}()
	return ch, nil
}

func (m *Memory) SubscribeProfiles(ctx context.Context) (<-chan domain.Profiles, error) {
	ch := make(chan domain.Profiles, 1)
	m.mu.Lock()
	if m.profiles == nil {
		m.profiles = domain.DefaultProfiles()
	}
	m.profSubs[ch] = struct{}{}
	ch <- m.profiles.Clone()
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.profSubs, ch)
		close(ch)
		m.mu.Unlock()
	}()
	return ch, nil
}

func (m *Memory) Create(_ context.Context, t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(t.ID); i >= 0 {
		m.tasks[i] = t
	} else {
		m.tasks = append(m.tasks, t)
	}
	m.publishTasks()
	return nil
}

func (m *Memory) Update(_ context.Context, t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(t.ID)
	if i < 0 {
		return fmt.Errorf("task %s: %w", t.ID, domain.ErrNotFound)
	}
	m.tasks[i] = t
	m.publishTasks()
	return nil
}

// BatchUpdate replaces all tasks or none of them.
func (m *Memory) BatchUpdate(_ context.Context, tasks []domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := make([]int, len(tasks))
	for n, t := range tasks {
		i := m.index(t.ID)
		if i < 0 {
			return fmt.Errorf("task %s: %w", t.ID, domain.ErrNotFound)
		}
		idx[n] = i
	}
	for n, t := range tasks {
		m.tasks[idx[n]] = t
	}
	m.publishTasks()
	return nil
}

func (m *Memory) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return nil
	}
	m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
	m.publishTasks()
	return nil
}

func (m *Memory) UpdateProfile(_ context.Context, p domain.UserProfile) error {
	if !p.ID.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownUser, p.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.profiles.WithDefaults()
	next[p.ID] = p
	m.profiles = next
	for ch := range m.profSubs {
		offer(ch, next.Clone())
	}
	return nil
}

func (m *Memory) index(id string) int {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// publishTasks must be called with mu held.
func (m *Memory) publishTasks() {
	for ch := range m.taskSubs {
		offer(ch, domain.CloneTasks(m.tasks))
	}
}

// offer replaces whatever snapshot is still waiting in ch with v.
func offer[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
