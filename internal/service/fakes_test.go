package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/sakif/task-manager/internal/apperror"
	"github.com/sakif/task-manager/internal/auth"
	"github.com/sakif/task-manager/internal/model"
	"github.com/sakif/task-manager/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// =========================================================================
// FAKE STORE
// =========================================================================

// fakeStore is an in-memory repository.Store. WithTx snapshots the state
// and restores it when fn fails, which is all the transactional behaviour
// the services rely on.
type fakeStore struct {
	users   map[string]model.User
	tasks   []model.Task
	avatars map[string][]byte
	nextID  int

	// failOn makes the named method return errStore.
	failOn string
	// inTx is true while a WithTx callback runs.
	inTx bool
}

var errStore = errors.New("store exploded")

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]model.User{}, avatars: map[string][]byte{}}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return prefix + strconv.Itoa(f.nextID)
}

func (f *fakeStore) fail(method string) error {
	if f.failOn == method {
		return errStore
	}
	return nil
}

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	if err := f.fail("CreateUser"); err != nil {
		return err
	}
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return apperror.Conflict("email", "taken")
		}
		if u.GitHubID != nil && existing.GitHubID != nil && *existing.GitHubID == *u.GitHubID {
			return apperror.Conflict("githubId", "taken")
		}
	}
	u.ID = f.id("user-")
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	stored.Tokens = nil
	f.users[u.ID] = stored
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if err := f.fail("GetUserByID"); err != nil {
		return nil, err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	u.Tokens = slices.Clone(u.Tokens)
	if u.Tokens == nil {
		u.Tokens = []string{}
	}
	return &u, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	for id, u := range f.users {
		if u.Email == email {
			return f.GetUserByID(ctx, id)
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeStore) GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	for id, u := range f.users {
		if u.GitHubID != nil && *u.GitHubID == githubID {
			return f.GetUserByID(ctx, id)
		}
	}
	return nil, apperror.NotFound("user", strconv.FormatInt(githubID, 10))
}

func (f *fakeStore) UpdateUser(_ context.Context, u *model.User) error {
	if err := f.fail("UpdateUser"); err != nil {
		return err
	}
	existing, ok := f.users[u.ID]
	if !ok {
		return apperror.NotFound("user", u.ID)
	}
	for id, other := range f.users {
		if id != u.ID && other.Email == u.Email {
			return apperror.Conflict("email", "taken")
		}
	}
	tokens := existing.Tokens
	existing = *u
	existing.Tokens = tokens
	existing.UpdatedAt = time.Now()
	f.users[u.ID] = existing
	return nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id string) error {
	if err := f.fail("DeleteUser"); err != nil {
		return err
	}
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	for _, t := range f.tasks {
		if t.Owner == id {
			return errors.New("FOREIGN KEY constraint failed")
		}
	}
	delete(f.users, id)
	delete(f.avatars, id)
	return nil
}

func (f *fakeStore) AddToken(_ context.Context, userID, token string) error {
	if err := f.fail("AddToken"); err != nil {
		return err
	}
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.Tokens = append(slices.Clone(u.Tokens), token)
	f.users[userID] = u
	return nil
}

func (f *fakeStore) RemoveToken(_ context.Context, userID, token string) error {
	u := f.users[userID]
	u.Tokens = slices.DeleteFunc(slices.Clone(u.Tokens), func(t string) bool { return t == token })
	f.users[userID] = u
	return nil
}

func (f *fakeStore) RemoveAllTokens(_ context.Context, userID string) error {
	if err := f.fail("RemoveAllTokens"); err != nil {
		return err
	}
	if u, ok := f.users[userID]; ok {
		u.Tokens = nil
		f.users[userID] = u
	}
	return nil
}

func (f *fakeStore) CreateTask(_ context.Context, t *model.Task) error {
	if err := f.fail("CreateTask"); err != nil {
		return err
	}
	t.ID = f.id("task-")
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	f.tasks = append(f.tasks, *t)
	return nil
}

func (f *fakeStore) GetTask(_ context.Context, owner, id string) (*model.Task, error) {
	for _, t := range f.tasks {
		if t.ID == id && t.Owner == owner {
			return &t, nil
		}
	}
	return nil, apperror.NotFound("task", id)
}

// ListTasks only filters by owner and completed; sorting and paging are
// the SQL store's job and are covered by its own tests.
func (f *fakeStore) ListTasks(_ context.Context, owner string, q repository.TaskQuery) ([]model.Task, error) {
	out := []model.Task{}
	for _, t := range f.tasks {
		if t.Owner != owner {
			continue
		}
		if q.Completed != nil && t.Completed != *q.Completed {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) UpdateTask(_ context.Context, t *model.Task) error {
	for i := range f.tasks {
		if f.tasks[i].ID == t.ID && f.tasks[i].Owner == t.Owner {
			t.UpdatedAt = time.Now()
			f.tasks[i] = *t
			return nil
		}
	}
	return apperror.NotFound("task", t.ID)
}

func (f *fakeStore) DeleteTask(_ context.Context, owner, id string) (*model.Task, error) {
	for i, t := range f.tasks {
		if t.ID == id && t.Owner == owner {
			f.tasks = slices.Delete(f.tasks, i, i+1)
			return &t, nil
		}
	}
	return nil, apperror.NotFound("task", id)
}

func (f *fakeStore) DeleteTasksByOwner(_ context.Context, owner string) (int64, error) {
	if err := f.fail("DeleteTasksByOwner"); err != nil {
		return 0, err
	}
	before := len(f.tasks)
	f.tasks = slices.DeleteFunc(f.tasks, func(t model.Task) bool { return t.Owner == owner })
	return int64(before - len(f.tasks)), nil
}

func (f *fakeStore) SetAvatar(_ context.Context, userID string, png []byte) error {
	if _, ok := f.users[userID]; !ok {
		return apperror.NotFound("user", userID)
	}
	if len(png) == 0 {
		delete(f.avatars, userID)
		return nil
	}
	f.avatars[userID] = png
	return nil
}

func (f *fakeStore) GetAvatar(_ context.Context, userID string) ([]byte, error) {
	png, ok := f.avatars[userID]
	if !ok {
		return nil, apperror.NotFound("avatar", userID)
	}
	return png, nil
}

func (f *fakeStore) WithTx(_ context.Context, fn func(tx repository.Store) error) error {
	users := make(map[string]model.User, len(f.users))
	for k, v := range f.users {
		users[k] = v
	}
	tasks := slices.Clone(f.tasks)

	f.inTx = true
	defer func() { f.inTx = false }()

	if err := fn(f); err != nil {
		f.users = users
		f.tasks = tasks
		return err
	}
	return nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

// =========================================================================
// OTHER FAKES AND HELPERS
// =========================================================================

type fakeMailer struct {
	mu        sync.Mutex
	welcomed  []string
	cancelled []string
}

func (m *fakeMailer) SendWelcome(_, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcomed = append(m.welcomed, email)
}

func (m *fakeMailer) SendCancellation(_, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, email)
}

// fakeBlobs is an AvatarStore kept outside the fake database.
type fakeBlobs struct {
	external  bool
	blobs     map[string][]byte
	deleteErr error
	deleted   []string
}

func newFakeBlobs(external bool) *fakeBlobs {
	return &fakeBlobs{external: external, blobs: map[string][]byte{}}
}

func (b *fakeBlobs) Put(_ context.Context, userID string, png []byte) error {
	b.blobs[userID] = png
	return nil
}

func (b *fakeBlobs) Get(_ context.Context, userID string) ([]byte, error) {
	png, ok := b.blobs[userID]
	if !ok {
		return nil, apperror.NotFound("avatar", userID)
	}
	return png, nil
}

func (b *fakeBlobs) Delete(_ context.Context, userID string) error {
	b.deleted = append(b.deleted, userID)
	if b.deleteErr != nil {
		return b.deleteErr
	}
	delete(b.blobs, userID)
	return nil
}

func (b *fakeBlobs) External() bool { return b.external }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testTokens() *auth.TokenService {
	ts, err := auth.NewTokenService("service-test-secret-0123456789", 0)
	if err != nil {
		panic(err)
	}
	return ts
}

func testPasswords() *auth.PasswordService {
	ps, err := auth.NewPasswordService(bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return ps
}
