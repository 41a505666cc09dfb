// Package repository declares the storage contracts the service layer depends on.
//
// Services only ever see these interfaces; internal/repository/sqlite is the
// production implementation and the service tests use in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/task-manager/internal/model"
)

// SortField names a sortable task attribute. Unknown names from the query
// string are kept as-is; the store decides what to do with them.
type SortField string

const (
	SortCreatedAt   SortField = "createdAt"
	SortUpdatedAt   SortField = "updatedAt"
	SortDescription SortField = "description"
	SortCompleted   SortField = "completed"
	SortID          SortField = "_id"
)

// TaskQuery is the already-parsed form of GET /tasks query parameters.
// A zero Limit means "no limit", matching document-store semantics.
type TaskQuery struct {
	Completed *bool
	SortBy    SortField
	SortDesc  bool
	Limit     int
	Skip      int
}

type UserRepository interface {
	// CreateUser assigns ID and timestamps. A duplicate email or GitHub id
	// returns an apperror wrapping ErrConflict.
	CreateUser(ctx context.Context, user *model.User) error
	// GetUserByID loads the user together with its ordered token list.
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id string) error
}

type TokenRepository interface {
	AddToken(ctx context.Context, userID, token string) error
	RemoveToken(ctx context.Context, userID, token string) error
	RemoveAllTokens(ctx context.Context, userID string) error
}

type TaskRepository interface {
	CreateTask(ctx context.Context, task *model.Task) error
	// GetTask, UpdateTask and DeleteTask are owner-scoped: a task owned by
	// someone else is reported exactly like a missing one.
	GetTask(ctx context.Context, owner, id string) (*model.Task, error)
	ListTasks(ctx context.Context, owner string, q TaskQuery) ([]model.Task, error)
	UpdateTask(ctx context.Context, task *model.Task) error
	DeleteTask(ctx context.Context, owner, id string) (*model.Task, error)
	DeleteTasksByOwner(ctx context.Context, owner string) (int64, error)
}

// AvatarRepository keeps avatar bytes next to the user row.
type AvatarRepository interface {
	SetAvatar(ctx context.Context, userID string, png []byte) error
	GetAvatar(ctx context.Context, userID string) ([]byte, error)
}

// Store groups every repository and can run a sequence of calls atomically.
type Store interface {
	UserRepository
	TokenRepository
	TaskRepository
	AvatarRepository

	// WithTx runs fn inside a single transaction. fn must only use the
	// Store it is given; the transaction commits when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}
