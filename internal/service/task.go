package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/task-manager/internal/apperror"
	"github.com/sakif/task-manager/internal/model"
	"github.com/sakif/task-manager/internal/repository"
)

type TaskInput struct {
	Description string
	Completed   bool
}

// ListParams carries the raw GET /tasks query values. A nil field was not
// present in the request.
type ListParams struct {
	Completed *string
	SortBy    *string
	Limit     *string
	Skip      *string
}

// TaskService enforces ownership: every operation is scoped to the owner
// passed in, and a task owned by someone else behaves as if it did not exist.
type TaskService struct {
	tasks  repository.TaskRepository
	logger *slog.Logger
}

func NewTaskService(tasks repository.TaskRepository, logger *slog.Logger) *TaskService {
	return &TaskService{tasks: tasks, logger: logger}
}

// Create stores a new task owned by owner.
func (s *TaskService) Create(ctx context.Context, owner string, in TaskInput) (*model.Task, error) {
	description, err := normalizeDescription(in.Description)
	if err != nil {
		return nil, err
	}

	task := &model.Task{Description: description, Completed: in.Completed, Owner: owner}
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("service/task: creating task: %w", err)
	}

	s.logger.Debug("task created", slog.String("taskID", task.ID), slog.String("owner", owner))
	return task, nil
}

// List returns the owner's tasks after filtering, sorting and paging.
func (s *TaskService) List(ctx context.Context, owner string, p ListParams) ([]model.Task, error) {
	q, err := ParseListParams(p)
	if err != nil {
		return nil, err
	}

	tasks, err := s.tasks.ListTasks(ctx, owner, q)
	if err != nil {
		return nil, fmt.Errorf("service/task: listing tasks: %w", err)
	}
	return tasks, nil
}

// ParseListParams turns the query values into a TaskQuery. A parameter
// given with an empty value counts as absent.
//
//   - completed: "true" selects completed tasks, any other value the rest
//   - sortBy: "field" or "field:desc"; any suffix other than desc is ascending
//   - limit, skip: non-negative integers; limit 0 means no limit
func ParseListParams(p ListParams) (repository.TaskQuery, error) {
	var q repository.TaskQuery

	if p.Completed != nil && *p.Completed != "" {
		completed := *p.Completed == "true"
		q.Completed = &completed
	}

	if p.SortBy != nil && *p.SortBy != "" {
		field, dir, _ := strings.Cut(*p.SortBy, ":")
		q.SortBy = repository.SortField(field)
		q.SortDesc = dir == "desc"
	}

	var err error
	if q.Limit, err = parseCount("limit", p.Limit); err != nil {
		return q, err
	}
	if q.Skip, err = parseCount("skip", p.Skip); err != nil {
		return q, err
	}

	return q, nil
}

func parseCount(field string, raw *string) (int, error) {
	if raw == nil || *raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(*raw)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed(field, field+" must be a non-negative integer")
	}
	return n, nil
}

func (s *TaskService) Get(ctx context.Context, owner, id string) (*model.Task, error) {
	task, err := s.tasks.GetTask(ctx, owner, id)
	if err != nil {
		return nil, fmt.Errorf("service/task: fetching %s: %w", id, err)
	}
	return task, nil
}

// Update applies a patch of description and/or completed. Unknown keys
// reject the patch before the task is even looked up.
func (s *TaskService) Update(ctx context.Context, owner, id string, patch map[string]json.RawMessage) (*model.Task, error) {
	if err := checkPatchKeys(patch, "description", "completed"); err != nil {
		return nil, err
	}

	task, err := s.tasks.GetTask(ctx, owner, id)
	if err != nil {
		return nil, fmt.Errorf("service/task: fetching %s: %w", id, err)
	}

	if _, ok := patch["description"]; ok {
		var description string
		if err := decodeField(patch, "description", &description); err != nil {
			return nil, err
		}
		if task.Description, err = normalizeDescription(description); err != nil {
			return nil, err
		}
	}

	if _, ok := patch["completed"]; ok {
		var completed *bool
		if err := decodeField(patch, "completed", &completed); err != nil {
			return nil, err
		}
		if completed == nil {
			return nil, apperror.ValidationFailed("completed", "Invalid value for completed")
		}
		task.Completed = *completed
	}

	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("service/task: updating %s: %w", id, err)
	}
	return task, nil
}

// Delete removes the task and returns it as it was.
func (s *TaskService) Delete(ctx context.Context, owner, id string) (*model.Task, error) {
	task, err := s.tasks.DeleteTask(ctx, owner, id)
	if err != nil {
		return nil, fmt.Errorf("service/task: deleting %s: %w", id, err)
	}
	return task, nil
}

func normalizeDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", apperror.ValidationFailed("description", "Description is required")
	}
	return description, nil
}
