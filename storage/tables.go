package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"duoboard/domain"
)

// MaxBatch is the largest entity group transaction Table Storage accepts.
const MaxBatch = 100

const (
	edmInt64    = "Edm.Int64"
	profilesRow = "users"
)

// Backend is a task store without change notifications.
type Backend interface {
	FetchTasks(ctx context.Context) ([]domain.Task, error)
	FetchProfiles(ctx context.Context) (domain.Profiles, error)
	Create(ctx context.Context, t domain.Task) error
	Update(ctx context.Context, t domain.Task) error
	BatchUpdate(ctx context.Context, tasks []domain.Task) error
	Remove(ctx context.Context, id string) error
	UpdateProfile(ctx context.Context, p domain.UserProfile) error
}

// Tables stores one board in Azure Table Storage. Tasks live in the tasks
// table under the board's partition; both profiles share a single row of the
// config table, one column per user.
type Tables struct {
	board       string
	taskTable   *aztables.Client
	configTable *aztables.Client
}

func newServiceClient(connStr string) (*aztables.ServiceClient, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: 15 * time.Second,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	return aztables.NewServiceClientFromConnectionString(connStr, &opts)
}

// NewTables creates a Tables backend from a storage connection string.
func NewTables(connStr, boardID, tasksTable, configTable string) (*Tables, error) {
	svc, err := newServiceClient(connStr)
	if err != nil {
		return nil, err
	}
	return &Tables{
		board:       boardID,
		taskTable:   svc.NewClient(tasksTable),
		configTable: svc.NewClient(configTable),
	}, nil
}

type entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

type taskEntity struct {
	entity
	Title         string `json:"Title"`
	Description   string `json:"Description,omitempty"`
	DueDate       string `json:"DueDate,omitempty"`
	Status        string `json:"Status"`
	Assignee      string `json:"Assignee"`
	Color         string `json:"Color"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
	IsDeleted     bool   `json:"IsDeleted"`
	Order         int64  `json:"Order,string"`
	OrderType     string `json:"Order@odata.type"`
}

// profilesEntity carries profiles as JSON documents. Nil columns are left
// untouched by a merge.
type profilesEntity struct {
	entity
	UserA *string `json:"UserA,omitempty"`
	UserB *string `json:"UserB,omitempty"`
}

func (s *Tables) encodeTask(t domain.Task) ([]byte, error) {
	return sonic.ConfigStd.Marshal(taskEntity{
		entity:        entity{PartitionKey: s.board, RowKey: t.ID},
		Title:         t.Title,
		Description:   t.Description,
		DueDate:       t.DueDate,
		Status:        string(t.Status),
		Assignee:      string(t.Assignee),
		Color:         t.Color,
		CreatedAt:     t.CreatedAt,
		CreatedAtType: edmInt64,
		IsDeleted:     t.IsDeleted,
		Order:         int64(t.Order),
		OrderType:     edmInt64,
	})
}

func decodeTask(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := sonic.ConfigStd.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	return domain.Task{
		ID:          ent.RowKey,
		Title:       ent.Title,
		Description: ent.Description,
		DueDate:     ent.DueDate,
		Status:      domain.Status(ent.Status),
		Assignee:    domain.Assignee(ent.Assignee),
		Color:       ent.Color,
		CreatedAt:   ent.CreatedAt,
		IsDeleted:   ent.IsDeleted,
		Order:       int(ent.Order),
	}, nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// FetchTasks lists every task of the board.
func (s *Tables) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + s.board + "'"
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			t, err := decodeTask(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// Create upserts the full task record.
func (s *Tables) Create(ctx context.Context, t domain.Task) error {
	payload, err := s.encodeTask(t)
	if err == nil {
		_, err = s.taskTable.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	}
	return err
}

// Update replaces an existing task record.
func (s *Tables) Update(ctx context.Context, t domain.Task) error {
	payload, err := s.encodeTask(t)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeReplace})
	if isNotFound(err) {
		return fmt.Errorf("task %s: %w", t.ID, domain.ErrNotFound)
	}
	return err
}

// BatchUpdate replaces the tasks in a single entity group transaction.
func (s *Tables) BatchUpdate(ctx context.Context, tasks []domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	if len(tasks) > MaxBatch {
		return fmt.Errorf("%d tasks: %w", len(tasks), domain.ErrBatchTooLarge)
	}
	et := azcore.ETagAny
	actions := make([]aztables.TransactionAction, 0, len(tasks))
	for _, t := range tasks {
		payload, err := s.encodeTask(t)
		if err != nil {
			return err
		}
		actions = append(actions, aztables.TransactionAction{
			ActionType: aztables.TransactionTypeUpdateReplace,
			Entity:     payload,
			IfMatch:    &et,
		})
	}
	_, err := s.taskTable.SubmitTransaction(ctx, actions, nil)
	if isNotFound(err) {
		return fmt.Errorf("batch: %w", domain.ErrNotFound)
	}
	return err
}

// Remove deletes a task; missing tasks are ignored.
func (s *Tables) Remove(ctx context.Context, id string) error {
	_, err := s.taskTable.DeleteEntity(ctx, s.board, id, nil)
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// FetchProfiles reads both profiles, writing the defaults first when the
// board has none yet.
func (s *Tables) FetchProfiles(ctx context.Context) (domain.Profiles, error) {
	resp, err := s.configTable.GetEntity(ctx, s.board, profilesRow, nil)
	if isNotFound(err) {
		defaults := domain.DefaultProfiles()
		if err := s.mergeProfiles(ctx, defaults[domain.UserA], defaults[domain.UserB]); err != nil {
			return nil, fmt.Errorf("seed profiles: %w", err)
		}
		return defaults, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeProfiles(resp.Value)
}

// UpdateProfile merges one user's profile into the profile row.
func (s *Tables) UpdateProfile(ctx context.Context, p domain.UserProfile) error {
	if !p.ID.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownUser, p.ID)
	}
	return s.mergeProfiles(ctx, p)
}

func (s *Tables) mergeProfiles(ctx context.Context, profiles ...domain.UserProfile) error {
	ent := profilesEntity{entity: entity{PartitionKey: s.board, RowKey: profilesRow}}
	for _, p := range profiles {
		raw, err := sonic.ConfigStd.MarshalToString(p)
		if err != nil {
			return err
		}
		switch p.ID {
		case domain.UserA:
			ent.UserA = &raw
		case domain.UserB:
			ent.UserB = &raw
		}
	}
	payload, err := sonic.ConfigStd.Marshal(ent)
	if err == nil {
		_, err = s.configTable.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeMerge})
	}
	return err
}

func decodeProfiles(data []byte) (domain.Profiles, error) {
	var ent profilesEntity
	if err := sonic.ConfigStd.Unmarshal(data, &ent); err != nil {
		return nil, err
	}
	out := domain.Profiles{}
	for id, raw := range map[domain.UserID]*string{domain.UserA: ent.UserA, domain.UserB: ent.UserB} {
		if raw == nil {
			continue
		}
		var p domain.UserProfile
		if err := sonic.ConfigStd.UnmarshalFromString(*raw, &p); err != nil {
			return nil, fmt.Errorf("profile %s: %w", id, err)
		}
		p.ID = id
		out[id] = p
	}
	return out.WithDefaults(), nil
}
