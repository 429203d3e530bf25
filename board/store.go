package board

import (
	"context"

	"duoboard/domain"
)

// TaskStore is the authoritative, real-time synchronised home of tasks and
// profiles. Subscriptions deliver full snapshots, including after changes made
// by this process, and close their channel once ctx is done.
type TaskStore interface {
	SubscribeTasks(ctx context.Context) (<-chan []domain.Task, error)
	// SubscribeProfiles seeds the default profiles when none exist yet.
	SubscribeProfiles(ctx context.Context) (<-chan domain.Profiles, error)

	// Create inserts or replaces the task with the same id.
	Create(ctx context.Context, task domain.Task) error
	// Update replaces an existing task and returns domain.ErrNotFound if it is absent.
	Update(ctx context.Context, task domain.Task) error
	// BatchUpdate replaces all tasks atomically.
	BatchUpdate(ctx context.Context, tasks []domain.Task) error
	// Remove deletes the task; removing an absent id succeeds.
	Remove(ctx context.Context, id string) error
	// UpdateProfile merges one profile into the profile document.
	UpdateProfile(ctx context.Context, profile domain.UserProfile) error
}
