package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"duoboard/domain"
	"duoboard/subscription"
)

// Synced turns a Backend into a live task store. Every successful write
// advances the snapshot cache generation and publishes a change notice;
// subscribers react to notices by pushing a fresh full snapshot.
type Synced struct {
	base   Backend
	redis  *redis.Client
	board  string
	ttl    time.Duration
	logger *log.Logger
}

// NewSynced wraps base for the given board.
func NewSynced(base Backend, rc *redis.Client, boardID string, ttl time.Duration, logger *log.Logger) *Synced {
	if base == nil {
		panic("storage.NewSynced: base backend is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Synced{base: base, redis: rc, board: boardID, ttl: ttl, logger: logger}
}

func (s *Synced) tasksChannel() string    { return "duoboard:" + s.board + ":tasks" }
func (s *Synced) profilesChannel() string { return "duoboard:" + s.board + ":profiles" }
func (s *Synced) tasksKey() string        { return "tasks:" + s.board }
func (s *Synced) profilesKey() string     { return "profiles:" + s.board }

// SubscribeTasks pushes the board's tasks now and after every change.
func (s *Synced) SubscribeTasks(ctx context.Context) (<-chan []domain.Task, error) {
	out := make(chan []domain.Task, 1)
	push := func(ctx context.Context) {
		tasks, err := s.FetchTasks(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.WithError(err).Error("fetch tasks snapshot")
			}
			return
		}
		offer(out, tasks)
	}
	go func() {
		defer close(out)
		subscription.Listen(ctx, s.redis, s.logger, s.tasksChannel(), push,
			func(ctx context.Context, _ string) { push(ctx) })
	}()
	return out, nil
}

// SubscribeProfiles pushes both profiles now and after every change.
func (s *Synced) SubscribeProfiles(ctx context.Context) (<-chan domain.Profiles, error) {
	out := make(chan domain.Profiles, 1)
	push := func(ctx context.Context) {
		p, err := s.FetchProfiles(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.WithError(err).Error("fetch profiles snapshot")
			}
			return
		}
		offer(out, p)
	}
	go func() {
		defer close(out)
		subscription.Listen(ctx, s.redis, s.logger, s.profilesChannel(), push,
			func(ctx context.Context, _ string) { push(ctx) })
	}()
	return out, nil
}

// FetchTasks reads the task snapshot through the cache.
func (s *Synced) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	gen, hit := s.load(ctx, s.tasksKey(), &tasks)
	if hit {
		return tasks, nil
	}
	tasks, err := s.base.FetchTasks(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, s.tasksKey(), gen, tasks)
	return tasks, nil
}

// FetchProfiles reads the profiles through the cache.
func (s *Synced) FetchProfiles(ctx context.Context) (domain.Profiles, error) {
	var p domain.Profiles
	gen, hit := s.load(ctx, s.profilesKey(), &p)
	if hit {
		return p.WithDefaults(), nil
	}
	p, err := s.base.FetchProfiles(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, s.profilesKey(), gen, p)
	return p.WithDefaults(), nil
}

func (s *Synced) Create(ctx context.Context, t domain.Task) error {
	if err := s.base.Create(ctx, t); err != nil {
		return err
	}
	return s.changed(ctx, s.tasksKey(), s.tasksChannel(), "create")
}

func (s *Synced) Update(ctx context.Context, t domain.Task) error {
	if err := s.base.Update(ctx, t); err != nil {
		return err
	}
	return s.changed(ctx, s.tasksKey(), s.tasksChannel(), "update")
}

func (s *Synced) BatchUpdate(ctx context.Context, tasks []domain.Task) error {
	if err := s.base.BatchUpdate(ctx, tasks); err != nil {
		return err
	}
	return s.changed(ctx, s.tasksKey(), s.tasksChannel(), "batch-update")
}

func (s *Synced) Remove(ctx context.Context, id string) error {
	if err := s.base.Remove(ctx, id); err != nil {
		return err
	}
	return s.changed(ctx, s.tasksKey(), s.tasksChannel(), "remove")
}

func (s *Synced) UpdateProfile(ctx context.Context, p domain.UserProfile) error {
	if err := s.base.UpdateProfile(ctx, p); err != nil {
		return err
	}
	return s.changed(ctx, s.profilesKey(), s.profilesChannel(), "update-profile")
}

// changed moves the snapshot cache to a new generation and tells every
// subscriber to refetch. A snapshot read before the write can then only be
// cached under the old generation, which nobody reads any more.
func (s *Synced) changed(ctx context.Context, key, channel, op string) error {
	gen, err := s.redis.Incr(ctx, generationKey(key)).Result()
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("advance snapshot generation")
	} else {
		_ = s.redis.Del(ctx, snapshotKey(key, gen-1)).Err()
	}
	if err := s.redis.Publish(ctx, channel, op).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", op, err)
	}
	return nil
}

func generationKey(key string) string { return key + ":gen" }

func snapshotKey(key string, gen int64) string { return key + ":" + strconv.FormatInt(gen, 10) }

// load reads the cached snapshot of the current generation into v. The
// generation is returned for a later store; it is negative when nothing may
// be cached.
func (s *Synced) load(ctx context.Context, key string, v any) (int64, bool) {
	if s.ttl == 0 {
		return -1, false
	}
	gen, err := s.redis.Get(ctx, generationKey(key)).Int64()
	switch {
	case err == redis.Nil:
		gen = 0
	case err != nil:
		s.logger.WithError(err).WithField("key", key).Debug("read snapshot generation")
		return -1, false
	}
	data, err := s.redis.Get(ctx, snapshotKey(key, gen)).Bytes()
	if err != nil {
		return gen, false
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		_ = s.redis.Del(ctx, snapshotKey(key, gen)).Err()
		return gen, false
	}
	return gen, true
}

// store caches v under the generation it was read in.
func (s *Synced) store(ctx context.Context, key string, gen int64, v any) {
	if s.ttl == 0 || gen < 0 {
		return
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	_ = s.redis.Set(ctx, snapshotKey(key, gen), data, s.ttl).Err()
}
