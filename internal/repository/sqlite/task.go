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
	"github.com/sakif/task-manager/internal/repository"
)

const taskColumns = `id, description, completed, owner, created_at, updated_at`

// sortColumns maps the public sort field names onto columns. Anything not
// listed here is ignored and the default insertion order applies, the same
// result a document store gives when sorting on a field no record has.
var sortColumns = map[repository.SortField]string{
	repository.SortCreatedAt:   "created_at",
	repository.SortUpdatedAt:   "updated_at",
	repository.SortDescription: "description",
	repository.SortCompleted:   "completed",
	repository.SortID:          "id",
	"id":                       "id",
}

func (db *DB) CreateTask(ctx context.Context, task *model.Task) error {
	now := time.Now().UTC()
	task.ID = xid.New().String()
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err := db.q.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.Description,
		task.Completed,
		task.Owner,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating task: %w", err)
	}

	return nil
}

// GetTask looks the task up by id AND owner, so somebody else's task is
// reported as not found.
func (db *DB) GetTask(ctx context.Context, owner, id string) (*model.Task, error) {
	task, err := scanTask(db.q.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND owner = ?`,
		id, owner,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("task", id)
		}
		return nil, fmt.Errorf("sqlite: getting task %s: %w", id, err)
	}
	return task, nil
}

// ListTasks returns the owner's tasks filtered, sorted and paginated by q.
//
// The ORDER BY column comes from sortColumns, never straight from the
// request, so it is safe to splice into the statement. rowid is always the
// final tie-breaker to keep pages stable.
func (db *DB) ListTasks(ctx context.Context, owner string, q repository.TaskQuery) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner = ?`
	args := []any{owner}

	if q.Completed != nil {
		query += ` AND completed = ?`
		args = append(args, *q.Completed)
	}

	order := "rowid"
	if column, ok := sortColumns[q.SortBy]; ok {
		dir := "ASC"
		if q.SortDesc {
			dir = "DESC"
		}
		order = column + " " + dir + ", rowid"
	}
	query += ` ORDER BY ` + order

	// SQLite treats a negative LIMIT as "no limit".
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, max(q.Skip, 0))

	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning task row: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tasks: %w", err)
	}

	return tasks, nil
}

func (db *DB) UpdateTask(ctx context.Context, task *model.Task) error {
	task.UpdatedAt = time.Now().UTC()

	result, err := db.q.ExecContext(ctx,
		`UPDATE tasks SET description = ?, completed = ?, updated_at = ?
		 WHERE id = ? AND owner = ?`,
		task.Description,
		task.Completed,
		task.UpdatedAt,
		task.ID,
		task.Owner,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating task %s: %w", task.ID, err)
	}

	return expectOneRow(result, "task", task.ID)
}

// DeleteTask removes the task and returns what it held. RETURNING makes the
// read and the delete a single statement.
func (db *DB) DeleteTask(ctx context.Context, owner, id string) (*model.Task, error) {
	task, err := scanTask(db.q.QueryRowContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND owner = ? RETURNING `+taskColumns,
		id, owner,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("task", id)
		}
		return nil, fmt.Errorf("sqlite: deleting task %s: %w", id, err)
	}
	return task, nil
}

// DeleteTasksByOwner removes every task of a user and reports how many went.
func (db *DB) DeleteTasksByOwner(ctx context.Context, owner string) (int64, error) {
	result, err := db.q.ExecContext(ctx, `DELETE FROM tasks WHERE owner = ?`, owner)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting tasks of user %s: %w", owner, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*model.Task, error) {
	var t model.Task
	if err := row.Scan(
		&t.ID,
		&t.Description,
		&t.Completed,
		&t.Owner,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}
