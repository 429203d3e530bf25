package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"duoboard/domain"
)

// Azurite's published development account.
const devConnStr = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;" +
	"AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;" +
	"TableEndpoint=http://127.0.0.1:10002/devstoreaccount1;"

func newTestTables(t *testing.T) *Tables {
	t.Helper()
	s, err := NewTables(devConnStr, "board-1", "Tasks", "Config")
	if err != nil {
		t.Fatalf("new tables: %v", err)
	}
	return s
}

func TestTaskEntityRoundTrip(t *testing.T) {
	s := newTestTables(t)
	task := domain.Task{
		ID:          "t1",
		Title:       "Water plants",
		Description: "balcony",
		DueDate:     "2026-10-20",
		Status:      domain.StatusInProgress,
		Assignee:    domain.AssigneeUserB,
		Color:       domain.ColorUserB,
		CreatedAt:   1760520600000,
		IsDeleted:   true,
		Order:       -3000,
	}
	payload, err := s.encodeTask(task)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, want := range []string{
		`"PartitionKey":"board-1"`, `"RowKey":"t1"`,
		`"CreatedAt":"1760520600000"`, `"CreatedAt@odata.type":"Edm.Int64"`,
		`"Order":"-3000"`, `"Order@odata.type":"Edm.Int64"`,
	} {
		if !strings.Contains(string(payload), want) {
			t.Fatalf("payload missing %s: %s", want, payload)
		}
	}
	got, err := decodeTask(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != task {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, task)
	}
}

func TestTaskEntityOmitsOptionalFields(t *testing.T) {
	s := newTestTables(t)
	payload, err := s.encodeTask(domain.Task{ID: "t1", Title: "x", Status: domain.StatusTodo, Assignee: domain.AssigneeShared})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, absent := range []string{"Description", "DueDate"} {
		if strings.Contains(string(payload), absent) {
			t.Fatalf("payload should omit %s: %s", absent, payload)
		}
	}
}

func TestDecodeProfiles(t *testing.T) {
	data := []byte(`{"PartitionKey":"board-1","RowKey":"users","UserB":"{\"id\":\"userB\",\"name\":\"Bob\",\"themeColor\":\"rose\"}"}`)
	got, err := decodeProfiles(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got[domain.UserB].Name != "Bob" {
		t.Fatalf("unexpected userB %+v", got[domain.UserB])
	}
	if got[domain.UserA] != domain.DefaultProfiles()[domain.UserA] {
		t.Fatalf("expected default userA, got %+v", got[domain.UserA])
	}

	if _, err := decodeProfiles([]byte(`{"UserA":"not json"}`)); err == nil {
		t.Fatal("expected error for malformed profile column")
	}
}

func TestTablesBatchLimits(t *testing.T) {
	s := newTestTables(t)
	if err := s.BatchUpdate(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	tasks := make([]domain.Task, MaxBatch+1)
	for i := range tasks {
		tasks[i] = domain.Task{ID: fmt.Sprintf("t%d", i)}
	}
	if err := s.BatchUpdate(context.Background(), tasks); !errors.Is(err, domain.ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
}

func TestTablesRejectsUnknownUser(t *testing.T) {
	s := newTestTables(t)
	err := s.UpdateProfile(context.Background(), domain.UserProfile{ID: "carol", Name: "Carol"})
	if !errors.Is(err, domain.ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil},
		{name: "plain", err: errors.New("boom")},
		{name: "404", err: &azcore.ResponseError{StatusCode: http.StatusNotFound}, want: true},
		{name: "wrapped 404", err: fmt.Errorf("get: %w", &azcore.ResponseError{StatusCode: http.StatusNotFound}), want: true},
		{name: "409", err: &azcore.ResponseError{StatusCode: http.StatusConflict}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNotFound(tt.err); got != tt.want {
				t.Fatalf("isNotFound(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
