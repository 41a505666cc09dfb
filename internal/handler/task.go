package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/task-manager/internal/auth"
	"github.com/sakif/task-manager/internal/service"
)

// TaskHandler serves /tasks. All routes sit behind auth.RequireAuth and act
// on the caller's own tasks only.
type TaskHandler struct {
	tasks  *service.TaskService
	logger *slog.Logger
}

func NewTaskHandler(tasks *service.TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

// createTaskRequest has no owner field: the owner is always the caller.
type createTaskRequest struct {
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// HandleCreate handles POST /tasks.
func (h *TaskHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	task, err := h.tasks.Create(r.Context(), user.ID, service.TaskInput{
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, task)
}

// HandleList handles GET /tasks?completed=&sortBy=&limit=&skip=.
func (h *TaskHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	q := r.URL.Query()

	tasks, err := h.tasks.List(r.Context(), user.ID, service.ListParams{
		Completed: queryValue(q, "completed"),
		SortBy:    queryValue(q, "sortBy"),
		Limit:     queryValue(q, "limit"),
		Skip:      queryValue(q, "skip"),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, tasks)
}

// HandleGet handles GET /tasks/{id}.
func (h *TaskHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	task, err := h.tasks.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, task)
}

// HandleUpdate handles PATCH /tasks/{id}.
func (h *TaskHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var patch map[string]json.RawMessage
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, h.logger, err)
		return
	}

	task, err := h.tasks.Update(r.Context(), user.ID, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, task)
}

// HandleDelete handles DELETE /tasks/{id} and returns the removed task.
func (h *TaskHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	task, err := h.tasks.Delete(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, task)
}

// queryValue returns nil when key is absent, so "?limit=" and no limit at
// all stay distinguishable.
func queryValue(q url.Values, key string) *string {
	if !q.Has(key) {
		return nil
	}
	v := q.Get(key)
	return &v
}
