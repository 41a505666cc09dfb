// Package service holds the business rules of the task manager.
//
//	handler (HTTP) → service (rules) → repository.Store (SQLite)
//	                              ↘ auth (tokens, bcrypt), notify, storage
//
// Services never see HTTP types and return apperror values that the handler
// package maps to status codes.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rs/xid"

	"github.com/sakif/task-manager/internal/apperror"
	"github.com/sakif/task-manager/internal/auth"
	"github.com/sakif/task-manager/internal/model"
	"github.com/sakif/task-manager/internal/repository"
)

// Mailer queues account emails. Both calls return immediately; delivery
// failures never reach the caller.
type Mailer interface {
	SendWelcome(name, email string)
	SendCancellation(name, email string)
}

// AuthResult is what register, login and GitHub sign-in hand back: the
// sanitized user plus the session token that was just issued.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// RegisterInput is a new account. Text fields are trimmed and the email
// lower-cased before the `validate` rules run.
type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email,dotteddomain"`
	Password string `json:"password" validate:"required,min=7,notpassword"`
	Age      int    `json:"age" validate:"gte=0"`
}

// PasswordHasher is the part of auth.PasswordService the service uses.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
}

// UserService owns the account lifecycle: registration, sessions, profile
// changes and deletion.
type UserService struct {
	store     repository.Store
	tokens    *auth.TokenService
	passwords PasswordHasher
	mailer    Mailer
	avatars   AvatarStore
	logger    *slog.Logger
}

func NewUserService(
	store repository.Store,
	tokens *auth.TokenService,
	passwords PasswordHasher,
	mailer Mailer,
	avatars AvatarStore,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		store:     store,
		tokens:    tokens,
		passwords: passwords,
		mailer:    mailer,
		avatars:   avatars,
		logger:    logger,
	}
}

// Register validates and creates the account, issues its first token and
// queues the welcome email. The user row and the token are written in one
// transaction, so an account never exists without its first session.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	user, err := s.newUser(in)
	if err != nil {
		return nil, err
	}

	var token string
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return emailTaken(err)
		}
		token, err = s.issueToken(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	user.Tokens = []string{token}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	s.mailer.SendWelcome(user.Name, user.Email)

	return &AuthResult{User: user, Token: token}, nil
}

func (s *UserService) newUser(in RegisterInput) (*model.User, error) {
	in = in.normalized()
	if err := checkAccount(in); err != nil {
		return nil, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	return &model.User{Name: in.Name, Email: in.Email, Age: in.Age, Password: hash}, nil
}

// Login checks the credentials and adds a new session. Earlier sessions
// stay valid. An unknown email and a wrong password fail identically.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	failed := apperror.Unauthenticated("Unable to login")

	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, failed
		}
		return nil, fmt.Errorf("service/user: looking up login email: %w", err)
	}

	if err := s.passwords.Verify(user.Password, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("stored password hash unusable",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, failed
	}

	token, err := s.issueToken(ctx, s.store, user.ID)
	if err != nil {
		return nil, err
	}
	user.Tokens = append(user.Tokens, token)

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// Logout ends exactly the session that made the request.
func (s *UserService) Logout(ctx context.Context, user *model.User, token string) error {
	if err := s.store.RemoveToken(ctx, user.ID, token); err != nil {
		return fmt.Errorf("service/user: logging out %s: %w", user.ID, err)
	}
	return nil
}

// LogoutAll ends every session of the user, the current one included.
func (s *UserService) LogoutAll(ctx context.Context, user *model.User) error {
	if err := s.store.RemoveAllTokens(ctx, user.ID); err != nil {
		return fmt.Errorf("service/user: logging out all sessions of %s: %w", user.ID, err)
	}
	return nil
}

// Profile returns the user with the given id.
func (s *UserService) Profile(ctx context.Context, id string) (*model.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/user: fetching %s: %w", id, err)
	}
	return user, nil
}

// UpdateProfile applies a partial update. Any key outside name, email,
// password and age rejects the whole patch before anything changes. Each
// field goes through the same checks as registration and the result is
// written once.
func (s *UserService) UpdateProfile(ctx context.Context, user *model.User, patch map[string]json.RawMessage) (*model.User, error) {
	if err := checkPatchKeys(patch, "name", "email", "password", "age"); err != nil {
		return nil, err
	}

	var (
		in     RegisterInput
		fields []string
	)
	for _, f := range []struct {
		key, field string
		dst        any
	}{
		{"name", "Name", &in.Name},
		{"email", "Email", &in.Email},
		{"password", "Password", &in.Password},
		{"age", "Age", &in.Age},
	} {
		if _, ok := patch[f.key]; !ok {
			continue
		}
		if err := decodeField(patch, f.key, f.dst); err != nil {
			return nil, err
		}
		fields = append(fields, f.field)
	}
	if len(fields) == 0 {
		return user, nil
	}

	in = in.normalized()
	if err := checkAccount(in, fields...); err != nil {
		return nil, err
	}

	updated := *user
	if _, ok := patch["name"]; ok {
		updated.Name = in.Name
	}
	if _, ok := patch["email"]; ok {
		updated.Email = in.Email
	}
	if _, ok := patch["age"]; ok {
		updated.Age = in.Age
	}
	if _, ok := patch["password"]; ok {
		hash, err := s.hash(in.Password)
		if err != nil {
			return nil, err
		}
		updated.Password = hash
	}

	if err := s.store.UpdateUser(ctx, &updated); err != nil {
		return nil, emailTaken(err)
	}

	return &updated, nil
}

// Delete removes the account. Its tasks, its sessions and the user row go
// in one transaction; an externally stored avatar is removed afterwards on
// a best-effort basis, then the cancellation email is queued.
func (s *UserService) Delete(ctx context.Context, user *model.User) (*model.User, error) {
	var removedTasks int64
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		n, err := tx.DeleteTasksByOwner(ctx, user.ID)
		if err != nil {
			return err
		}
		removedTasks = n
		if err := tx.RemoveAllTokens(ctx, user.ID); err != nil {
			return err
		}
		return tx.DeleteUser(ctx, user.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("service/user: deleting %s: %w", user.ID, err)
	}

	if s.avatars != nil && s.avatars.External() {
		if err := s.avatars.Delete(ctx, user.ID); err != nil {
			s.logger.Warn("avatar left behind after account deletion",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("user deleted",
		slog.String("userID", user.ID),
		slog.Int64("tasksRemoved", removedTasks),
	)
	s.mailer.SendCancellation(user.Name, user.Email)

	return user, nil
}

// LoginWithGitHub signs in with a GitHub profile. The account is found by
// GitHub id, else linked by email, else created with a random password
// nobody knows. A session is then issued exactly as Login does.
func (s *UserService) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil || gh.ID == 0 {
		return nil, errors.New("service/user: GitHub profile is missing")
	}

	// bcrypt runs before the transaction: the transaction holds the only
	// database connection.
	unusable, err := s.hash(xid.New().String() + xid.New().String())
	if err != nil {
		return nil, err
	}

	var (
		user    *model.User
		token   string
		created bool
	)
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		user, created, err = s.githubAccount(ctx, tx, gh, unusable)
		if err != nil {
			return err
		}
		token, err = s.issueToken(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	user.Tokens = append(user.Tokens, token)

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", gh.Login),
		slog.Bool("created", created),
	)
	if created {
		s.mailer.SendWelcome(user.Name, user.Email)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// githubAccount finds, links or creates the account for gh. passwordHash is
// only used when a new account is created.
func (s *UserService) githubAccount(ctx context.Context, tx repository.Store, gh *auth.GitHubUser, passwordHash string) (*model.User, bool, error) {
	user, err := tx.GetUserByGitHubID(ctx, gh.ID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, fmt.Errorf("service/user: looking up GitHub id %d: %w", gh.ID, err)
	}

	email := normalizeEmail(gh.Email)
	if err := checkAccount(RegisterInput{Email: email}, "Email"); err != nil {
		return nil, false, apperror.ValidationFailed("email", "GitHub account has no usable email address")
	}

	user, err = tx.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		user.GitHubID = &gh.ID
		if err := tx.UpdateUser(ctx, user); err != nil {
			return nil, false, fmt.Errorf("service/user: linking GitHub id %d: %w", gh.ID, err)
		}
		return user, false, nil
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, false, fmt.Errorf("service/user: looking up %s: %w", email, err)
	}

	user = &model.User{
		Name:     gh.DisplayName(),
		Email:    email,
		Password: passwordHash,
		GitHubID: &gh.ID,
	}
	if err := tx.CreateUser(ctx, user); err != nil {
		return nil, false, fmt.Errorf("service/user: creating GitHub account: %w", err)
	}
	return user, true, nil
}

// issueToken signs a token for userID and stores it as an active session.
func (s *UserService) issueToken(ctx context.Context, store repository.TokenRepository, userID string) (string, error) {
	token, err := s.tokens.Generate(userID)
	if err != nil {
		return "", fmt.Errorf("service/user: generating token: %w", err)
	}
	if err := store.AddToken(ctx, userID, token); err != nil {
		return "", fmt.Errorf("service/user: saving token: %w", err)
	}
	return token, nil
}

func (s *UserService) hash(password string) (string, error) {
	hash, err := s.passwords.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return "", apperror.ValidationFailed("password", "Password must be at most 72 bytes")
		}
		return "", fmt.Errorf("service/user: hashing password: %w", err)
	}
	return hash, nil
}

// emailTaken reports a unique-email violation as a validation error on the
// email field; every other error passes through.
func emailTaken(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && errors.Is(err, apperror.ErrConflict) && appErr.Field == "email" {
		return apperror.ValidationFailed("email", "Email is already registered")
	}
	return err
}

