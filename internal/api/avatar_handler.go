package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/scry-avatars/internal/api/shared"
	"github.com/phrazzld/scry-avatars/internal/store"
	"github.com/phrazzld/scry-avatars/internal/task"
)

// TaskQueue is the subset of task.Queue used by the handler.
type TaskQueue interface {
	AddTask(userID, sourceURL string) string
	GetTaskStatus(taskID string) (task.AvatarTask, error)
	GetUserLatestTask(userID string) (task.AvatarTask, error)
	GetStats() task.Stats
	ListTasks(statuses ...task.TaskStatus) []task.AvatarTask
}

// SubmitAvatarRequest is the request body for POST /api/avatars.
type SubmitAvatarRequest struct {
	UserID    string `json:"user_id"    validate:"required,max=255"`
	SourceURL string `json:"source_url" validate:"required,url,max=2048"`
}

// SubmitAvatarResponse is returned once a task has been queued.
type SubmitAvatarResponse struct {
	TaskID string          `json:"task_id"`
	Status task.TaskStatus `json:"status"`
}

// TaskListResponse wraps a list of task snapshots.
type TaskListResponse struct {
	Tasks []task.AvatarTask `json:"tasks"`
	Count int               `json:"count"`
}

// AvatarHandler handles avatar ingestion requests
type AvatarHandler struct {
	queue    TaskQueue
	profiles store.ProfileReader
	logger   *slog.Logger
}

// NewAvatarHandler creates a new AvatarHandler. profiles may be nil, in which
// case the profile route responds 404.
func NewAvatarHandler(queue TaskQueue, profiles store.ProfileReader, logger *slog.Logger) *AvatarHandler {
	return &AvatarHandler{
		queue:    queue,
		profiles: profiles,
		logger:   logger.With("component", "avatar_handler"),
	}
}

// Routes registers the handler's routes on r.
func (h *AvatarHandler) Routes(r chi.Router) {
	r.Post("/avatars", h.SubmitAvatar)
	r.Get("/avatars/stats", h.GetStats)
	r.Get("/avatars/tasks", h.ListTasks)
	r.Get("/avatars/tasks/{id}", h.GetTask)
	r.Get("/users/{userID}/avatar-task", h.GetUserLatestTask)
	r.Get("/users/{userID}/avatar", h.GetProfile)
}

// SubmitAvatar handles POST /api/avatars. It only queues the task and
// responds 202 with the task id; ingestion happens in the background.
func (h *AvatarHandler) SubmitAvatar(w http.ResponseWriter, r *http.Request) {
	var req SubmitAvatarRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	req.SourceURL = strings.TrimSpace(req.SourceURL)
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+shared.SanitizeValidationError(err))
		return
	}

	taskID := h.queue.AddTask(req.UserID, req.SourceURL)
	h.logger.Debug("avatar task submitted",
		slog.String("task_id", taskID),
		slog.String("user_id", req.UserID),
		slog.String("trace_id", shared.GetTraceID(r.Context())))

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitAvatarResponse{
		TaskID: taskID,
		Status: task.TaskStatusPending,
	})
}

// GetTask handles GET /api/avatars/tasks/{id}
func (h *AvatarHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.queue.GetTaskStatus(chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, t)
}

// ListTasks handles GET /api/avatars/tasks, optionally filtered by one or
// more ?status= values.
func (h *AvatarHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	var statuses []task.TaskStatus
	for _, raw := range r.URL.Query()["status"] {
		for _, s := range strings.Split(raw, ",") {
			status := task.TaskStatus(strings.TrimSpace(s))
			if !status.IsValid() {
				shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid status filter",
					fmt.Errorf("unknown task status %q", status), shared.WithElevatedLogLevel())
				return
			}
			statuses = append(statuses, status)
		}
	}

	tasks := h.queue.ListTasks(statuses...)
	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{Tasks: tasks, Count: len(tasks)})
}

// GetUserLatestTask handles GET /api/users/{userID}/avatar-task
func (h *AvatarHandler) GetUserLatestTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.queue.GetUserLatestTask(chi.URLParam(r, "userID"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, t)
}

// GetProfile handles GET /api/users/{userID}/avatar
func (h *AvatarHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	if h.profiles == nil {
		shared.RespondWithError(w, r, http.StatusNotFound, "Avatar not found")
		return
	}
	profile, err := h.profiles.GetProfile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, profile)
}

// GetStats handles GET /api/avatars/stats
func (h *AvatarHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.queue.GetStats())
}

func (h *AvatarHandler) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}
