package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/task-manager/internal/apperror"
	"github.com/sakif/task-manager/internal/model"
	"github.com/sakif/task-manager/internal/repository"
)

func createTestTask(t *testing.T, db *DB, owner, description string) *model.Task {
	t.Helper()
	task := &model.Task{Description: description, Owner: owner}
	if err := db.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("failed to create test task: %v", err)
	}
	return task
}

func descriptions(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.Description)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func boolPtr(b bool) *bool { return &b }

// =========================================================================
// CREATE / GET TESTS
// =========================================================================

func TestCreateTask(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "owner@test.io")

	task := createTestTask(t, db, user.ID, "write tests")

	if task.ID == "" {
		t.Error("CreateTask() did not set ID")
	}
	if task.Completed {
		t.Error("Completed should default to false")
	}
}

func TestCreateTask_UnknownOwner(t *testing.T) {
	db := newTestDB(t)

	err := db.CreateTask(context.Background(), &model.Task{Description: "orphan", Owner: "ghost"})
	if err == nil {
		t.Fatal("CreateTask() should fail when the owner does not exist")
	}
}

func TestGetTask_OwnerScoped(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@test.io")
	bob := createTestUser(t, db, "bob@test.io")
	task := createTestTask(t, db, alice.ID, "alice's task")

	found, err := db.GetTask(ctx, alice.ID, task.ID)
	if err != nil {
		t.Fatalf("GetTask(owner) error = %v", err)
	}
	if found.Description != "alice's task" {
		t.Errorf("Description = %q", found.Description)
	}

	_, err = db.GetTask(ctx, bob.ID, task.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetTask(other user) error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// LIST TESTS
// =========================================================================

func TestListTasks(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "list@test.io")
	other := createTestUser(t, db, "other@test.io")

	for _, d := range []string{"charlie", "alpha", "bravo", "delta"} {
		createTestTask(t, db, user.ID, d)
	}
	createTestTask(t, db, other.ID, "not mine")

	done, _ := db.GetTask(ctx, user.ID, mustFirstID(t, db, user.ID, "bravo"))
	done.Completed = true
	if err := db.UpdateTask(ctx, done); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}

	tests := []struct {
		name  string
		query repository.TaskQuery
		want  []string
	}{
		{
			name:  "default is insertion order",
			query: repository.TaskQuery{},
			want:  []string{"charlie", "alpha", "bravo", "delta"},
		},
		{
			name:  "sort by description ascending",
			query: repository.TaskQuery{SortBy: repository.SortDescription},
			want:  []string{"alpha", "bravo", "charlie", "delta"},
		},
		{
			name:  "sort by description descending",
			query: repository.TaskQuery{SortBy: repository.SortDescription, SortDesc: true},
			want:  []string{"delta", "charlie", "bravo", "alpha"},
		},
		{
			name:  "unknown sort field keeps insertion order",
			query: repository.TaskQuery{SortBy: "priority", SortDesc: true},
			want:  []string{"charlie", "alpha", "bravo", "delta"},
		},
		{
			name:  "completed only",
			query: repository.TaskQuery{Completed: boolPtr(true)},
			want:  []string{"bravo"},
		},
		{
			name:  "incomplete only",
			query: repository.TaskQuery{Completed: boolPtr(false)},
			want:  []string{"charlie", "alpha", "delta"},
		},
		{
			name:  "limit and skip",
			query: repository.TaskQuery{SortBy: repository.SortDescription, Limit: 2, Skip: 1},
			want:  []string{"bravo", "charlie"},
		},
		{
			name:  "skip without limit",
			query: repository.TaskQuery{Skip: 3},
			want:  []string{"delta"},
		},
		{
			name:  "skip past the end",
			query: repository.TaskQuery{Skip: 10},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListTasks(ctx, user.ID, tt.query)
			if err != nil {
				t.Fatalf("ListTasks() error = %v", err)
			}
			if !equalStrings(descriptions(got), tt.want) {
				t.Errorf("ListTasks() = %v, want %v", descriptions(got), tt.want)
			}
		})
	}
}

func mustFirstID(t *testing.T, db *DB, owner, description string) string {
	t.Helper()
	tasks, err := db.ListTasks(context.Background(), owner, repository.TaskQuery{})
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	for _, task := range tasks {
		if task.Description == description {
			return task.ID
		}
	}
	t.Fatalf("no task %q", description)
	return ""
}

// =========================================================================
// UPDATE / DELETE TESTS
// =========================================================================

func TestUpdateTask_WrongOwner(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@test.io")
	bob := createTestUser(t, db, "bob@test.io")
	task := createTestTask(t, db, alice.ID, "alice's task")

	task.Owner = bob.ID
	task.Completed = true
	if err := db.UpdateTask(context.Background(), task); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateTask() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteTask_ReturnsRemovedRecord(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "del@test.io")
	task := createTestTask(t, db, user.ID, "bye")

	removed, err := db.DeleteTask(ctx, user.ID, task.ID)
	if err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if removed.ID != task.ID || removed.Description != "bye" {
		t.Errorf("DeleteTask() = %+v, want the removed task", removed)
	}

	if _, err := db.DeleteTask(ctx, user.ID, task.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteTask() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteTask_WrongOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@test.io")
	bob := createTestUser(t, db, "bob@test.io")
	task := createTestTask(t, db, alice.ID, "keep me")

	if _, err := db.DeleteTask(ctx, bob.ID, task.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteTask(other user) error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetTask(ctx, alice.ID, task.ID); err != nil {
		t.Errorf("task was deleted by a non-owner: %v", err)
	}
}

func TestDeleteTasksByOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@test.io")
	bob := createTestUser(t, db, "bob@test.io")
	createTestTask(t, db, alice.ID, "a1")
	createTestTask(t, db, alice.ID, "a2")
	createTestTask(t, db, bob.ID, "b1")

	n, err := db.DeleteTasksByOwner(ctx, alice.ID)
	if err != nil {
		t.Fatalf("DeleteTasksByOwner() error = %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d tasks, want 2", n)
	}

	left, _ := db.ListTasks(ctx, bob.ID, repository.TaskQuery{})
	if len(left) != 1 {
		t.Errorf("bob's tasks = %v, want 1", descriptions(left))
	}

	if err := db.DeleteUser(ctx, alice.ID); err != nil {
		t.Errorf("DeleteUser() after removing tasks error = %v", err)
	}
}
