package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/lumen/internal/auth"
	"github.com/BradenHooton/lumen/internal/models"
	"github.com/BradenHooton/lumen/internal/services"
	pkghttp "github.com/BradenHooton/lumen/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// TaskServiceInterface defines task authoring and the assignee's task views
type TaskServiceInterface interface {
	CreateTask(ctx context.Context, adminID string, in services.CreateTaskInput) (*models.Task, error)
	Assign(ctx context.Context, adminID, taskID string, userIDs []string) (int64, error)
	ListMine(ctx context.Context, userID string) ([]*models.AssignedTask, error)
	Detail(ctx context.Context, userID, taskID string) (*services.TaskDetail, error)
}

type TaskHandler struct {
	service TaskServiceInterface
}

func NewTaskHandler(service TaskServiceInterface) *TaskHandler {
	return &TaskHandler{service: service}
}

type FileRequest struct {
	Name            string  `json:"name" validate:"required,max=255"`
	Kind            string  `json:"kind" validate:"required,oneof=document video"`
	TotalPages      int     `json:"total_pages" validate:"gte=0"`
	DurationSeconds float64 `json:"duration_seconds" validate:"gte=0"`
}

type QuestionRequest struct {
	Prompt       string   `json:"prompt" validate:"required,max=2000"`
	Options      []string `json:"options" validate:"required,min=2,max=10,dive,required,max=500"`
	CorrectIndex int      `json:"correct_index" validate:"gte=0"`
}

// CreateTaskRequest is the admin payload for authoring a task
type CreateTaskRequest struct {
	Title        string            `json:"title" validate:"required,max=200"`
	Description  string            `json:"description" validate:"max=5000"`
	QuizMode     string            `json:"quiz_mode" validate:"omitempty,oneof=strict lenient"`
	PassingScore *int              `json:"passing_score" validate:"omitempty,gte=0,lte=100"`
	Files        []FileRequest     `json:"files" validate:"max=100,dive"`
	Questions    []QuestionRequest `json:"questions" validate:"max=200,dive"`
}

type AssignRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,max=500,dive,uuid"`
}

type AssignResponse struct {
	TaskID   string `json:"task_id"`
	Assigned int64  `json:"assigned"`
}

// List returns the caller's assignments
// @Router /tasks [get]
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	tasks, err := h.service.ListMine(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*models.AssignedTask{}
	}

	pkghttp.WriteJSON(w, http.StatusOK, tasks)
}

// Get returns one assigned task with files, progress and questions
// @Router /tasks/{taskId} [get]
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	taskID, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	detail, err := h.service.Detail(r.Context(), claims.UserID, taskID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, detail)
}

// Create authors a task with its files and quiz
// @Router /admin/tasks [post]
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req CreateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	in := services.CreateTaskInput{
		Title:        req.Title,
		Description:  req.Description,
		QuizMode:     models.QuizMode(req.QuizMode),
		PassingScore: req.PassingScore,
	}
	for _, f := range req.Files {
		in.Files = append(in.Files, services.FileInput{
			Name:            f.Name,
			Kind:            models.FileKind(f.Kind),
			TotalPages:      f.TotalPages,
			DurationSeconds: f.DurationSeconds,
		})
	}
	for _, q := range req.Questions {
		in.Questions = append(in.Questions, services.QuestionInput{
			Prompt:       q.Prompt,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
		})
	}

	task, err := h.service.CreateTask(r.Context(), claims.UserID, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, task)
}

// Assign assigns a task to a list of users
// @Router /admin/tasks/{taskId}/assignments [post]
func (h *TaskHandler) Assign(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	taskID, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	var req AssignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	created, err := h.service.Assign(r.Context(), claims.UserID, taskID, req.UserIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, AssignResponse{TaskID: taskID, Assigned: created})
}

func taskIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	taskID := chi.URLParam(r, "taskId")
	if _, err := uuid.Parse(taskID); err != nil {
		pkghttp.WriteNotFound(w, "Task not found")
		return "", false
	}
	return taskID, true
}
