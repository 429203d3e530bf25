package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"duoboard/domain"
)

const (
	tasksCollection  = "tasks"
	configCollection = "config"
	profilesDoc      = "users"
)

// Firestore is a task store on Cloud Firestore. Tasks are documents of the
// tasks collection keyed by id; profiles share the config/users document,
// one map field per user.
type Firestore struct {
	client *firestore.Client
	logger *log.Logger
	// retryDelay is the pause before a failed snapshot listener is reopened.
	retryDelay time.Duration
}

// NewFirestore connects through the Firebase Admin SDK. credentialsFile may be
// empty to use application default credentials.
func NewFirestore(ctx context.Context, projectID, credentialsFile string, logger *log.Logger) (*Firestore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Firestore{client: client, logger: logger, retryDelay: time.Second}, nil
}

// Close releases the client.
func (f *Firestore) Close() error { return f.client.Close() }

func (f *Firestore) tasks() *firestore.CollectionRef { return f.client.Collection(tasksCollection) }

func (f *Firestore) profilesRef() *firestore.DocumentRef {
	return f.client.Collection(configCollection).Doc(profilesDoc)
}

func (f *Firestore) SubscribeTasks(ctx context.Context) (<-chan []domain.Task, error) {
	out := make(chan []domain.Task, 1)
	go func() {
		defer close(out)
		f.listen(ctx, "tasks", func() error {
			it := f.tasks().Snapshots(ctx)
			defer it.Stop()
			for {
				snap, err := it.Next()
				if err != nil {
					return err
				}
				docs, err := snap.Documents.GetAll()
				if err != nil {
					return err
				}
				tasks := make([]domain.Task, 0, len(docs))
				for _, d := range docs {
					var t domain.Task
					if err := d.DataTo(&t); err != nil {
						f.logger.WithError(err).WithField("task", d.Ref.ID).Warn("skipping undecodable task")
						continue
					}
					t.ID = d.Ref.ID
					tasks = append(tasks, t)
				}
				offer(out, tasks)
			}
		})
	}()
	return out, nil
}

// SubscribeProfiles follows the profile document, writing the defaults when
// it does not exist yet.
func (f *Firestore) SubscribeProfiles(ctx context.Context) (<-chan domain.Profiles, error) {
	out := make(chan domain.Profiles, 1)
	go func() {
		defer close(out)
		f.listen(ctx, "profiles", func() error {
			it := f.profilesRef().Snapshots(ctx)
			defer it.Stop()
			for {
				snap, err := it.Next()
				if err != nil {
					return err
				}
				if !snap.Exists() {
					if _, err := f.profilesRef().Set(ctx, profilesDocument(domain.DefaultProfiles())); err != nil {
						f.logger.WithError(err).Error("seed profiles")
					}
					offer(out, domain.DefaultProfiles())
					continue
				}
				var raw map[string]domain.UserProfile
				if err := snap.DataTo(&raw); err != nil {
					f.logger.WithError(err).Warn("undecodable profile document")
					continue
				}
				offer(out, profilesFromDocument(raw))
			}
		})
	}()
	return out, nil
}

// listen reruns open until ctx ends, pausing after failures.
func (f *Firestore) listen(ctx context.Context, what string, open func() error) {
	for {
		err := open()
		if ctx.Err() != nil || status.Code(err) == codes.Canceled {
			return
		}
		f.logger.WithError(err).WithField("listener", what).Error("snapshot listener failed, reopening")
		t := time.NewTimer(f.retryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (f *Firestore) Create(ctx context.Context, t domain.Task) error {
	_, err := f.tasks().Doc(t.ID).Set(ctx, t)
	return err
}

// Update replaces every field of an existing task.
func (f *Firestore) Update(ctx context.Context, t domain.Task) error {
	_, err := f.tasks().Doc(t.ID).Update(ctx, taskUpdates(t))
	return mapFirestoreErr(err, t.ID)
}

// BatchUpdate replaces the tasks in one transaction.
func (f *Firestore) BatchUpdate(ctx context.Context, tasks []domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, t := range tasks {
			if err := tx.Update(f.tasks().Doc(t.ID), taskUpdates(t)); err != nil {
				return err
			}
		}
		return nil
	})
	return mapFirestoreErr(err, "batch")
}

// Remove deletes a task document; deleting a missing document succeeds.
func (f *Firestore) Remove(ctx context.Context, id string) error {
	_, err := f.tasks().Doc(id).Delete(ctx)
	return err
}

// UpdateProfile merges one user's profile into the profile document.
func (f *Firestore) UpdateProfile(ctx context.Context, p domain.UserProfile) error {
	if !p.ID.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownUser, p.ID)
	}
	key := string(p.ID)
	_, err := f.profilesRef().Set(ctx, map[string]any{key: p}, firestore.Merge(firestore.FieldPath{key}))
	return err
}

// taskUpdates lists a field update for every task attribute. Empty optional
// fields are deleted so the document mirrors the record exactly.
func taskUpdates(t domain.Task) []firestore.Update {
	optional := func(v string) any {
		if v == "" {
			return firestore.Delete
		}
		return v
	}
	return []firestore.Update{
		{Path: "id", Value: t.ID},
		{Path: "title", Value: t.Title},
		{Path: "description", Value: optional(t.Description)},
		{Path: "dueDate", Value: optional(t.DueDate)},
		{Path: "status", Value: string(t.Status)},
		{Path: "assignee", Value: string(t.Assignee)},
		{Path: "color", Value: t.Color},
		{Path: "createdAt", Value: t.CreatedAt},
		{Path: "isDeleted", Value: t.IsDeleted},
		{Path: "order", Value: t.Order},
	}
}

func profilesDocument(p domain.Profiles) map[string]domain.UserProfile {
	out := make(map[string]domain.UserProfile, len(p))
	for id, prof := range p {
		out[string(id)] = prof
	}
	return out
}

func profilesFromDocument(raw map[string]domain.UserProfile) domain.Profiles {
	out := domain.Profiles{}
	for key, prof := range raw {
		id := domain.UserID(key)
		if !id.Valid() {
			continue
		}
		prof.ID = id
		out[id] = prof
	}
	return out.WithDefaults()
}

func mapFirestoreErr(err error, id string) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return err
}
