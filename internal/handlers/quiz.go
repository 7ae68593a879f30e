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

// QuizServiceInterface defines the quiz operations exposed over HTTP
type QuizServiceInterface interface {
	AnswerOne(ctx context.Context, userID, questionID string, chosenIndex int) error
	SubmitQuiz(ctx context.Context, userID, taskID string, answers []models.SubmittedAnswer) (*services.SubmissionResult, error)
	Submissions(ctx context.Context, userID, taskID string) (*services.SubmissionHistory, error)
}

type QuizHandler struct {
	service QuizServiceInterface
}

func NewQuizHandler(service QuizServiceInterface) *QuizHandler {
	return &QuizHandler{service: service}
}

// AnswerRequest records one answer. Answer is a pointer so that option 0
// passes the required check.
type AnswerRequest struct {
	QuestionID string `json:"questionId" validate:"required,uuid"`
	Answer     *int   `json:"answer" validate:"required"`
}

type SubmittedAnswerRequest struct {
	QuestionID string `json:"questionId" validate:"required,uuid"`
	Answer     *int   `json:"answer" validate:"required"`
}

type SubmitQuizRequest struct {
	TaskID  string                   `json:"taskId" validate:"required,uuid"`
	Answers []SubmittedAnswerRequest `json:"answers" validate:"required,min=1,max=200,dive"`
}

// AnswerResponse deliberately carries no correctness information
type AnswerResponse struct {
	Success bool `json:"success"`
}

// Answer records a single answer, at most once per question
// @Router /quiz/answer [post]
func (h *QuizHandler) Answer(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req AnswerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.AnswerOne(r.Context(), claims.UserID, req.QuestionID, *req.Answer); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, AnswerResponse{Success: true})
}

// Submit grades a batch of answers as one attempt
// @Router /quiz/submit [post]
func (h *QuizHandler) Submit(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req SubmitQuizRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	answers := make([]models.SubmittedAnswer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, models.SubmittedAnswer{QuestionID: a.QuestionID, Answer: *a.Answer})
	}

	result, err := h.service.SubmitQuiz(r.Context(), claims.UserID, req.TaskID, answers)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// Submissions lists the caller's attempts for a task
// @Router /quiz/{taskId}/submissions [get]
func (h *QuizHandler) Submissions(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	taskID := chi.URLParam(r, "taskId")
	if _, err := uuid.Parse(taskID); err != nil {
		pkghttp.WriteNotFound(w, "Task not found")
		return
	}

	history, err := h.service.Submissions(r.Context(), claims.UserID, taskID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, history)
}
