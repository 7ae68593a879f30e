package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/lumen/internal/models"
	"github.com/BradenHooton/lumen/internal/services"
	"github.com/stretchr/testify/assert"
)

func TestAnswer_CreatedWithoutCorrectness(t *testing.T) {
	var gotIndex int
	mock := &MockQuizService{
		AnswerOneFunc: func(ctx context.Context, userID, questionID string, chosenIndex int) error {
			assert.Equal(t, testUserID, userID)
			assert.Equal(t, testQuestionID, questionID)
			gotIndex = chosenIndex
			return nil
		},
	}

	req := withAuth(newTestRequest(t, http.MethodPost, "/quiz/answer", AnswerRequest{QuestionID: testQuestionID, Answer: intPtr(0)}), testUserID, models.RoleEmployee)
	w := httptest.NewRecorder()
	NewQuizHandler(mock).Answer(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Equal(t, 0, gotIndex)
}

func TestAnswer_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{"already answered", AnswerRequest{QuestionID: testQuestionID, Answer: intPtr(1)}, models.ErrAlreadyAnswered, http.StatusBadRequest, "already_answered"},
		{"option out of range", AnswerRequest{QuestionID: testQuestionID, Answer: intPtr(9)}, models.ErrInvalidOption, http.StatusBadRequest, "invalid_option"},
		{"not assigned", AnswerRequest{QuestionID: testQuestionID, Answer: intPtr(1)}, models.ErrNotAssigned, http.StatusForbidden, "not_assigned"},
		{"unknown question", AnswerRequest{QuestionID: testQuestionID, Answer: intPtr(1)}, models.ErrNotFound, http.StatusNotFound, "not_found"},
		{"missing answer", map[string]string{"questionId": testQuestionID}, nil, http.StatusBadRequest, "bad_request"},
		{"malformed question id", AnswerRequest{QuestionID: "q1", Answer: intPtr(1)}, nil, http.StatusBadRequest, "bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockQuizService{
				AnswerOneFunc: func(ctx context.Context, userID, questionID string, chosenIndex int) error {
					return tt.serviceErr
				},
			}

			req := withAuth(newTestRequest(t, http.MethodPost, "/quiz/answer", tt.body), testUserID, models.RoleEmployee)
			w := httptest.NewRecorder()
			NewQuizHandler(mock).Answer(w, req)

			assertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestAnswer_Unauthenticated(t *testing.T) {
	w := httptest.NewRecorder()
	NewQuizHandler(&MockQuizService{}).Answer(w, newTestRequest(t, http.MethodPost, "/quiz/answer", AnswerRequest{QuestionID: testQuestionID, Answer: intPtr(0)}))

	assertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
}

func TestSubmit_Graded(t *testing.T) {
	var got []models.SubmittedAnswer
	mock := &MockQuizService{
		SubmitQuizFunc: func(ctx context.Context, userID, taskID string, answers []models.SubmittedAnswer) (*services.SubmissionResult, error) {
			got = answers
			return &services.SubmissionResult{
				Score:             60,
				Passed:            true,
				Total:             5,
				CorrectAnswers:    3,
				PassingScore:      60,
				Attempt:           1,
				AttemptsRemaining: 0,
			}, nil
		},
	}

	body := SubmitQuizRequest{
		TaskID: testTaskID,
		Answers: []SubmittedAnswerRequest{
			{QuestionID: testQuestionID, Answer: intPtr(2)},
		},
	}
	req := withAuth(newTestRequest(t, http.MethodPost, "/quiz/submit", body), testUserID, models.RoleEmployee)
	w := httptest.NewRecorder()
	NewQuizHandler(mock).Submit(w, req)

	var resp map[string]any
	assertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, float64(60), resp["score"])
	assert.Equal(t, true, resp["passed"])
	assert.Equal(t, float64(5), resp["total"])
	assert.Equal(t, float64(3), resp["correctAnswers"])
	assert.Equal(t, float64(60), resp["passingScore"])
	assert.Equal(t, []models.SubmittedAnswer{{QuestionID: testQuestionID, Answer: 2}}, got)
}

func TestSubmit_Errors(t *testing.T) {
	valid := SubmitQuizRequest{TaskID: testTaskID, Answers: []SubmittedAnswerRequest{{QuestionID: testQuestionID, Answer: intPtr(0)}}}

	tests := []struct {
		name       string
		body       SubmitQuizRequest
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{"empty answers", SubmitQuizRequest{TaskID: testTaskID}, nil, http.StatusBadRequest, "bad_request"},
		{"attempts exhausted", valid, models.ErrAttemptsExhausted, http.StatusBadRequest, "attempts_exhausted"},
		{"already passed", valid, models.ErrAlreadyPassed, http.StatusBadRequest, "already_passed"},
		{"foreign question", valid, models.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{"task not found", valid, models.ErrNotFound, http.StatusNotFound, "not_found"},
		{"not assigned", valid, models.ErrNotAssigned, http.StatusForbidden, "not_assigned"},
		{"grading write failed", valid, models.ErrInternalServer, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockQuizService{
				SubmitQuizFunc: func(ctx context.Context, userID, taskID string, answers []models.SubmittedAnswer) (*services.SubmissionResult, error) {
					return nil, tt.serviceErr
				},
			}

			req := withAuth(newTestRequest(t, http.MethodPost, "/quiz/submit", tt.body), testUserID, models.RoleEmployee)
			w := httptest.NewRecorder()
			NewQuizHandler(mock).Submit(w, req)

			assertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestSubmissions(t *testing.T) {
	mock := &MockQuizService{
		SubmissionsFunc: func(ctx context.Context, userID, taskID string) (*services.SubmissionHistory, error) {
			return &services.SubmissionHistory{
				TaskID:            taskID,
				Submissions:       []*models.QuizSubmission{{AttemptNumber: 1, Score: 40}},
				AttemptsRemaining: 2,
			}, nil
		},
	}
	handler := NewQuizHandler(mock)

	req := withURLParam(withAuth(httptest.NewRequest(http.MethodGet, "/quiz/"+testTaskID+"/submissions", nil), testUserID, models.RoleEmployee), "taskId", testTaskID)
	w := httptest.NewRecorder()
	handler.Submissions(w, req)

	var resp services.SubmissionHistory
	assertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, testTaskID, resp.TaskID)
	assert.Equal(t, 2, resp.AttemptsRemaining)
	assert.Len(t, resp.Submissions, 1)

	req = withURLParam(withAuth(httptest.NewRequest(http.MethodGet, "/quiz/nope/submissions", nil), testUserID, models.RoleEmployee), "taskId", "nope")
	w = httptest.NewRecorder()
	handler.Submissions(w, req)
	assertErrorResponse(t, w, http.StatusNotFound, "not_found")
}
