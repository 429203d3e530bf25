// Package board keeps the local model of the shared task board and
// reconciles user intents with the snapshots pushed by the task store.
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"duoboard/domain"
	"duoboard/magic"
)

var (
	// ErrClosed is returned by intents issued after the board stopped.
	ErrClosed = errors.New("board closed")
	// ErrNotDraggable is returned when a move names a deleted or unknown task.
	ErrNotDraggable = errors.New("task cannot be dragged")
)

// Options configures a Board. Zero values select defaults.
type Options struct {
	Logger  *log.Logger
	Magic   magic.Parser
	Persist PersistConfig
	Now     func() time.Time
	NewID   func() string
}

// Board is the reconciliation engine. All state lives in one event loop that
// applies store snapshots and intents in arrival order; store writes are
// handed to a pool and never awaited.
type Board struct {
	store   TaskStore
	logger  *log.Logger
	magic   magic.Parser
	now     func() time.Time
	newID   func() string
	persist *persister
	broker  *changeBroker

	requests chan request
	view     atomic.Pointer[View]
	version  atomic.Uint64

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

type request struct {
	fn   func(s *state)
	done chan struct{}
}

// New creates a board on top of store. Call Start before issuing intents.
func New(store TaskStore, opts Options) *Board {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.Magic == nil {
		opts.Magic = magic.Disabled{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = NewTaskID
	}
	b := &Board{
		store:    store,
		logger:   opts.Logger,
		magic:    opts.Magic,
		now:      opts.Now,
		newID:    opts.NewID,
		persist:  newPersister(opts.Persist, opts.Logger),
		broker:   newChangeBroker(),
		requests: make(chan request),
		done:     make(chan struct{}),
	}
	v := newState().view(0)
	b.view.Store(&v)
	return b
}

// NewTaskID returns a time-ordered random id.
func NewTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Start subscribes to the store and runs the event loop until ctx ends or Close is called.
func (b *Board) Start(ctx context.Context) error {
	err := ErrClosed
	b.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		tasks, serr := b.store.SubscribeTasks(ctx)
		if serr != nil {
			cancel()
			close(b.done)
			err = fmt.Errorf("subscribe tasks: %w", serr)
			return
		}
		profiles, serr := b.store.SubscribeProfiles(ctx)
		if serr != nil {
			cancel()
			close(b.done)
			err = fmt.Errorf("subscribe profiles: %w", serr)
			return
		}
		b.cancel = cancel
		b.persist.start()
		go b.loop(ctx, tasks, profiles)
		err = nil
	})
	return err
}

// Close stops the event loop and waits for outstanding store writes.
func (b *Board) Close() {
	b.startOnce.Do(func() { close(b.done) })
	if b.cancel != nil {
		b.cancel()
	}
	<-b.done
	b.persist.stop()
}

// Done is closed when the event loop has exited.
func (b *Board) Done() <-chan struct{} { return b.done }

func (b *Board) loop(ctx context.Context, tasks <-chan []domain.Task, profiles <-chan domain.Profiles) {
	defer close(b.done)
	s := newState()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-tasks:
			if !ok {
				if ctx.Err() == nil {
					b.logger.Error("task subscription closed")
				}
				tasks = nil
				continue
			}
			s.confirmTasks(snap)
			b.logger.WithField("tasks", len(snap)).Debug("task snapshot applied")
			b.publish(s)
		case snap, ok := <-profiles:
			if !ok {
				if ctx.Err() == nil {
					b.logger.Error("profile subscription closed")
				}
				profiles = nil
				continue
			}
			s.confirmProfiles(snap)
			b.publish(s)
		case req := <-b.requests:
			req.fn(s)
			close(req.done)
			b.publish(s)
		}
	}
}

func (b *Board) publish(s *state) {
	v := s.view(b.version.Add(1))
	b.view.Store(&v)
	b.broker.notify()
}

// do runs fn inside the event loop and waits for it to finish.
func (b *Board) do(ctx context.Context, fn func(s *state)) error {
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case b.requests <- req:
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-req.done
	return nil
}

// View returns the latest local picture of the board.
func (b *Board) View() View { return *b.view.Load() }

// Watch returns a channel signalled after every change of the view and a
// function that stops the notifications.
func (b *Board) Watch() (<-chan struct{}, func()) {
	ch := b.broker.subscribe()
	return ch, func() { b.broker.unsubscribe(ch) }
}

// PersistStats reports counters of the store write pool.
func (b *Board) PersistStats() PersistStats { return b.persist.stats() }

func (b *Board) nowMillis() int64 { return b.now().UnixMilli() }

// Add creates a task on top of every lane. The draft's id and creation time
// are filled in when missing; its order is always assigned here.
func (b *Board) Add(ctx context.Context, draft domain.Task) (domain.Task, error) {
	var (
		out domain.Task
		err error
	)
	if derr := b.do(ctx, func(s *state) { out, err = b.add(s, draft) }); derr != nil {
		return domain.Task{}, derr
	}
	return out, err
}

func (b *Board) add(s *state, t domain.Task) (domain.Task, error) {
	if t.ID == "" {
		t.ID = b.newID()
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = b.nowMillis()
	}
	if t.Status == "" {
		t.Status = domain.StatusTodo
	}
	if t.Color == "" {
		t.Color = domain.ColorDefault
	}
	t.Order = domain.PrependOrder(s.tasks())
	if err := t.Validate(); err != nil {
		return domain.Task{}, err
	}
	s.upsertLocal(t)
	b.persist.submit(persistJob{
		op:     "create",
		fields: log.Fields{"task": t.ID},
		run:    func(ctx context.Context) error { return b.store.Create(ctx, t) },
	})
	return t, nil
}

// QuickAdd creates a todo task in the given lane with the lane's color.
func (b *Board) QuickAdd(ctx context.Context, title string, assignee domain.Assignee) (domain.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Task{}, domain.ErrEmptyTitle
	}
	if !assignee.Valid() {
		return domain.Task{}, fmt.Errorf("%w: %q", domain.ErrInvalidAssignee, assignee)
	}
	return b.Add(ctx, domain.Task{
		Title:     title,
		Status:    domain.StatusTodo,
		Assignee:  assignee,
		Color:     domain.LaneColor(assignee),
		CreatedAt: b.nowMillis(),
	})
}

// MagicAdd creates a task from free text through the magic parser. Any parser
// failure falls back to a shared todo titled with the raw text.
func (b *Board) MagicAdd(ctx context.Context, text string) (domain.Task, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Task{}, domain.ErrEmptyTitle
	}
	profiles := b.View().Profiles
	mc := magic.Context{
		Today: b.now(),
		UserA: profiles.Name(domain.UserA),
		UserB: profiles.Name(domain.UserB),
	}
	draft, err := b.magic.Parse(ctx, text, mc)
	if err != nil || draft == nil {
		b.logger.WithError(err).Warn("magic add failed; using fallback task")
		return b.Add(ctx, FallbackTask(text, b.nowMillis()))
	}
	return b.Add(ctx, TaskFromDraft(*draft, b.nowMillis()))
}

// FallbackTask is the task created when the magic parser cannot help.
func FallbackTask(text string, createdAt int64) domain.Task {
	return domain.Task{
		Title:     text,
		Status:    domain.StatusTodo,
		Assignee:  domain.AssigneeShared,
		Color:     domain.ColorDefault,
		CreatedAt: createdAt,
	}
}

// TaskFromDraft converts a parsed draft into a task ready for Add.
func TaskFromDraft(d magic.Draft, createdAt int64) domain.Task {
	t := domain.Task{
		Title:       d.Title,
		Description: d.Description,
		Status:      d.Status,
		Assignee:    d.Assignee,
		Color:       d.PriorityColor,
		CreatedAt:   createdAt,
	}
	if t.Color == "" {
		t.Color = domain.ColorDefault
	}
	if d.DueDate != nil {
		t.DueDate = *d.DueDate
	}
	return t
}

// Update replaces a task with the given record.
func (b *Board) Update(ctx context.Context, task domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	return b.do(ctx, func(s *state) { b.update(s, task) })
}

func (b *Board) update(s *state, t domain.Task) {
	s.replaceLocal(t)
	b.persist.submit(persistJob{
		op:     "update",
		fields: log.Fields{"task": t.ID},
		run:    func(ctx context.Context) error { return b.store.Update(ctx, t) },
	})
}

// mutate looks the task up in the current view and, when found, applies fn
// and persists the result. Missing tasks are skipped silently: another client
// may have removed them.
func (b *Board) mutate(ctx context.Context, id, intent string, fn func(t *domain.Task) bool) error {
	return b.do(ctx, func(s *state) {
		t, ok := domain.Find(s.tasks(), id)
		if !ok {
			b.logger.WithFields(log.Fields{"task": id, "intent": intent}).Debug("task not in view; skipping")
			return
		}
		if !fn(&t) {
			return
		}
		b.update(s, t)
	})
}

// SoftDelete hides a task while keeping its record.
func (b *Board) SoftDelete(ctx context.Context, id string) error {
	return b.mutate(ctx, id, "soft-delete", func(t *domain.Task) bool {
		t.IsDeleted = true
		return true
	})
}

// Restore brings a soft-deleted task back.
func (b *Board) Restore(ctx context.Context, id string) error {
	return b.mutate(ctx, id, "restore", func(t *domain.Task) bool {
		t.IsDeleted = false
		return true
	})
}

// ToggleStatus marks a live task done, or reopens it when already done.
func (b *Board) ToggleStatus(ctx context.Context, id string) error {
	return b.mutate(ctx, id, "toggle-status", func(t *domain.Task) bool {
		if t.IsDeleted {
			return false
		}
		if t.Status == domain.StatusDone {
			t.Status = domain.StatusTodo
		} else {
			t.Status = domain.StatusDone
		}
		return true
	})
}

// Reassign moves a live task to another lane keeping its order key.
func (b *Board) Reassign(ctx context.Context, id string, assignee domain.Assignee) error {
	if !assignee.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidAssignee, assignee)
	}
	return b.mutate(ctx, id, "reassign", func(t *domain.Task) bool {
		if t.IsDeleted || t.Assignee == assignee {
			return false
		}
		t.Assignee = assignee
		return true
	})
}

// PermanentDelete removes a task from the store. Unknown ids are not an error.
func (b *Board) PermanentDelete(ctx context.Context, id string) error {
	return b.do(ctx, func(s *state) {
		s.removeLocal(id)
		b.persist.submit(persistJob{
			op:     "remove",
			fields: log.Fields{"task": id},
			run:    func(ctx context.Context) error { return b.store.Remove(ctx, id) },
		})
	})
}

// BatchReorder replaces several tasks in one atomic store request.
func (b *Board) BatchReorder(ctx context.Context, tasks []domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("task %s: %w", t.ID, err)
		}
	}
	batch := domain.CloneTasks(tasks)
	return b.do(ctx, func(s *state) { b.batch(s, batch) })
}

func (b *Board) batch(s *state, tasks []domain.Task) {
	s.replaceLocal(tasks...)
	b.persist.submit(persistJob{
		op:     "batch-update",
		fields: log.Fields{"count": len(tasks)},
		run:    func(ctx context.Context) error { return b.store.BatchUpdate(ctx, tasks) },
	})
}

// BeginDrag picks up a task. It reports false when the task cannot be dragged.
func (b *Board) BeginDrag(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := b.do(ctx, func(s *state) { ok = s.drag.Begin(s.tasks(), id) })
	return ok, err
}

// DropOnCard drops the dragged task onto another card.
func (b *Board) DropOnCard(ctx context.Context, targetID string) error {
	return b.do(ctx, func(s *state) {
		b.applyDrop(s, s.drag.DropOnCard(s.tasks(), targetID))
	})
}

// DropOnLane drops the dragged task onto the empty area of a lane.
func (b *Board) DropOnLane(ctx context.Context, lane domain.Assignee) error {
	return b.do(ctx, func(s *state) {
		b.applyDrop(s, s.drag.DropOnLane(s.tasks(), lane))
	})
}

// DropTarget is where a moved task lands: onto the card CardID, or else the
// empty area of Lane.
type DropTarget struct {
	CardID string
	Lane   domain.Assignee
}

// Move runs a whole drag gesture for one caller: id is picked up and dropped
// on target in a single step. Each call has a gesture of its own, so moves
// from different clients never see each other's picked-up task, nor the one
// held through BeginDrag. It reports whether the board changed.
func (b *Board) Move(ctx context.Context, id string, target DropTarget) (bool, error) {
	var (
		moved bool
		err   error
	)
	derr := b.do(ctx, func(s *state) {
		var g domain.Drag
		if !g.Begin(s.tasks(), id) {
			err = fmt.Errorf("%w: %s", ErrNotDraggable, id)
			return
		}
		var res domain.DropResult
		if target.CardID != "" {
			res = g.DropOnCard(s.tasks(), target.CardID)
		} else {
			res = g.DropOnLane(s.tasks(), target.Lane)
		}
		moved = !res.Empty()
		b.applyDrop(s, res)
	})
	if derr != nil {
		return false, derr
	}
	return moved, err
}

func (b *Board) applyDrop(s *state, res domain.DropResult) {
	switch {
	case res.Empty():
	case res.Batch:
		b.batch(s, res.Updates)
	default:
		b.update(s, res.Updates[0])
	}
}

// RenameUser changes a member's display name, showing it locally right away.
func (b *Board) RenameUser(ctx context.Context, id domain.UserID, name string) error {
	if !id.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownUser, id)
	}
	return b.do(ctx, func(s *state) {
		p, ok := s.profiles()[id]
		if !ok {
			p = domain.DefaultProfiles()[id]
		}
		p.Name = name
		s.setProfileLocal(p)
		b.persist.submit(persistJob{
			op:     "update-profile",
			fields: log.Fields{"user": string(id)},
			run:    func(ctx context.Context) error { return b.store.UpdateProfile(ctx, p) },
		})
	})
}
