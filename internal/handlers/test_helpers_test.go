package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/lumen/internal/auth"
	"github.com/BradenHooton/lumen/internal/models"
	"github.com/BradenHooton/lumen/internal/services"
	pkghttp "github.com/BradenHooton/lumen/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUserID     = "6f1c2d3e-4a5b-4c6d-8e7f-001122334455"
	testTaskID     = "0a1b2c3d-4e5f-4a6b-8c7d-8e9f00112233"
	testFileID     = "11111111-2222-4333-8444-555555555555"
	testQuestionID = "99999999-8888-4777-8666-555555555555"
)

// newTestRequest creates an HTTP request with a JSON body
func newTestRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// withAuth adds access-token claims for the given user and role
func withAuth(req *http.Request, userID, role string) *http.Request {
	return req.WithContext(auth.WithClaims(req.Context(), &models.TokenClaims{
		UserID: userID,
		Role:   role,
		Type:   models.TokenTypeAccess,
	}))
}

// withURLParam sets a chi route parameter on the request
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// assertJSONResponse checks the status and decodes the body into target
func assertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "response status mismatch: %s", w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	if target != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), target))
	}
}

// assertErrorResponse checks the status and machine-readable error code
func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "response status mismatch: %s", w.Body.String())

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, expectedError, resp.Error)
	assert.NotEmpty(t, resp.Message)
}

func intPtr(i int) *int { return &i }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc     func(ctx context.Context, in services.RegisterInput) (*services.AuthResponse, error)
	LoginFunc        func(ctx context.Context, username, password, ipAddress string) (*services.AuthResponse, error)
	RefreshTokenFunc func(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
}

func (m *MockAuthService) Register(ctx context.Context, in services.RegisterInput) (*services.AuthResponse, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, in)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) Login(ctx context.Context, username, password, ipAddress string) (*services.AuthResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, username, password, ipAddress)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken string) (*services.AuthResponse, error) {
	if m.RefreshTokenFunc != nil {
		return m.RefreshTokenFunc(ctx, refreshToken)
	}
	return nil, models.ErrInternalServer
}

// MockQuizService implements QuizServiceInterface for testing
type MockQuizService struct {
	AnswerOneFunc   func(ctx context.Context, userID, questionID string, chosenIndex int) error
	SubmitQuizFunc  func(ctx context.Context, userID, taskID string, answers []models.SubmittedAnswer) (*services.SubmissionResult, error)
	SubmissionsFunc func(ctx context.Context, userID, taskID string) (*services.SubmissionHistory, error)
}

func (m *MockQuizService) AnswerOne(ctx context.Context, userID, questionID string, chosenIndex int) error {
	if m.AnswerOneFunc != nil {
		return m.AnswerOneFunc(ctx, userID, questionID, chosenIndex)
	}
	return models.ErrInternalServer
}

func (m *MockQuizService) SubmitQuiz(ctx context.Context, userID, taskID string, answers []models.SubmittedAnswer) (*services.SubmissionResult, error) {
	if m.SubmitQuizFunc != nil {
		return m.SubmitQuizFunc(ctx, userID, taskID, answers)
	}
	return nil, models.ErrInternalServer
}

func (m *MockQuizService) Submissions(ctx context.Context, userID, taskID string) (*services.SubmissionHistory, error) {
	if m.SubmissionsFunc != nil {
		return m.SubmissionsFunc(ctx, userID, taskID)
	}
	return nil, models.ErrInternalServer
}

// MockProgressService implements ProgressServiceInterface for testing
type MockProgressService struct {
	ReportFunc      func(ctx context.Context, userID, fileID string, report services.PositionReport) (*models.FileProgress, error)
	GetProgressFunc func(ctx context.Context, userID, fileID string) (*models.FileProgress, error)
}

func (m *MockProgressService) Report(ctx context.Context, userID, fileID string, report services.PositionReport) (*models.FileProgress, error) {
	if m.ReportFunc != nil {
		return m.ReportFunc(ctx, userID, fileID, report)
	}
	return nil, models.ErrInternalServer
}

func (m *MockProgressService) GetProgress(ctx context.Context, userID, fileID string) (*models.FileProgress, error) {
	if m.GetProgressFunc != nil {
		return m.GetProgressFunc(ctx, userID, fileID)
	}
	return nil, models.ErrInternalServer
}

// MockTaskService implements TaskServiceInterface for testing
type MockTaskService struct {
	CreateTaskFunc func(ctx context.Context, adminID string, in services.CreateTaskInput) (*models.Task, error)
	AssignFunc     func(ctx context.Context, adminID, taskID string, userIDs []string) (int64, error)
	ListMineFunc   func(ctx context.Context, userID string) ([]*models.AssignedTask, error)
	DetailFunc     func(ctx context.Context, userID, taskID string) (*services.TaskDetail, error)
}

func (m *MockTaskService) CreateTask(ctx context.Context, adminID string, in services.CreateTaskInput) (*models.Task, error) {
	if m.CreateTaskFunc != nil {
		return m.CreateTaskFunc(ctx, adminID, in)
	}
	return nil, models.ErrInternalServer
}

func (m *MockTaskService) Assign(ctx context.Context, adminID, taskID string, userIDs []string) (int64, error) {
	if m.AssignFunc != nil {
		return m.AssignFunc(ctx, adminID, taskID, userIDs)
	}
	return 0, models.ErrInternalServer
}

func (m *MockTaskService) ListMine(ctx context.Context, userID string) ([]*models.AssignedTask, error) {
	if m.ListMineFunc != nil {
		return m.ListMineFunc(ctx, userID)
	}
	return nil, models.ErrInternalServer
}

func (m *MockTaskService) Detail(ctx context.Context, userID, taskID string) (*services.TaskDetail, error) {
	if m.DetailFunc != nil {
		return m.DetailFunc(ctx, userID, taskID)
	}
	return nil, models.ErrInternalServer
}

// MockPinger implements Pinger for testing
type MockPinger struct {
	Err error
}

func (m *MockPinger) HealthCheck(context.Context) error { return m.Err }
