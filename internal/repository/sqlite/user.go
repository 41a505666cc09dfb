package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/task-manager/internal/apperror"
	"github.com/sakif/task-manager/internal/model"
)

const userColumns = `id, name, email, age, password, github_id, created_at, updated_at`

// CreateUser inserts a new user. ID and timestamps are generated here, so
// after the call the caller's struct holds the persisted values.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.Age,
		user.Password,
		user.GitHubID,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if conflict := userConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user and its active tokens.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, "id", id)
}

// GetUserByEmail expects an already normalized (trimmed, lowercased) email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, "email", email)
}

func (db *DB) GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	return db.getUser(ctx, "github_id", githubID)
}

// getUser is shared by the lookups above. column is always a constant from
// this file, never user input.
func (db *DB) getUser(ctx context.Context, column string, value any) (*model.User, error) {
	var u model.User

	err := db.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`,
		value,
	).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Age,
		&u.Password,
		&u.GitHubID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", fmt.Sprint(value))
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}

	tokens, err := db.listTokens(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Tokens = tokens

	return &u, nil
}

// UpdateUser writes the profile fields and the password hash. Tokens and
// avatar have their own methods.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := db.q.ExecContext(ctx,
		`UPDATE users
		 SET name = ?, email = ?, age = ?, password = ?, github_id = ?, updated_at = ?
		 WHERE id = ?`,
		user.Name,
		user.Email,
		user.Age,
		user.Password,
		user.GitHubID,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if conflict := userConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	return expectOneRow(result, "user", user.ID)
}

// DeleteUser removes the user row. Tasks and tokens reference it through
// foreign keys, so they have to be deleted first.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	result, err := db.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}
	return expectOneRow(result, "user", id)
}

// userConflict maps UNIQUE violations on users to apperror.ErrConflict.
func userConflict(err error) *apperror.AppError {
	switch {
	case uniqueViolation(err, "users.email"):
		return apperror.Conflict("email", "email is already registered")
	case uniqueViolation(err, "users.github_id"):
		return apperror.Conflict("githubId", "GitHub account is already linked")
	}
	return nil
}

// expectOneRow turns "0 rows affected" into apperror.ErrNotFound.
func expectOneRow(result sql.Result, resource, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
