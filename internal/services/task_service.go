package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/BradenHooton/lumen/internal/models"
	pkglogger "github.com/BradenHooton/lumen/pkg/logger"
)

// TaskRepository defines the interface for task authoring and assignment storage
type TaskRepository interface {
	CreateWithContent(ctx context.Context, task *models.Task, files []*models.LearningFile, questions []*models.QuizQuestion) (*models.Task, error)
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
	ListFiles(ctx context.Context, taskID string) ([]*models.LearningFile, error)
	GetAssignment(ctx context.Context, taskID, userID string) (*models.TaskAssignment, error)
	ListAssignedTasks(ctx context.Context, userID string) ([]*models.AssignedTask, error)
	Assign(ctx context.Context, taskID string, userIDs []string, assignmentType string, assignedBy *string) (int64, error)
}

// QuestionLister lists a task's questions
type QuestionLister interface {
	ListQuestions(ctx context.Context, taskID string) ([]*models.QuizQuestion, error)
}

// ProgressLister lists a user's progress rows for a task
type ProgressLister interface {
	ListForTask(ctx context.Context, userID, taskID string) ([]*models.FileProgress, error)
}

// UserLister resolves several users at once
type UserLister interface {
	ListByIDs(ctx context.Context, ids []string) ([]*models.User, error)
}

type FileInput struct {
	Name            string
	Kind            models.FileKind
	TotalPages      int
	DurationSeconds float64
}

type QuestionInput struct {
	Prompt       string
	Options      []string
	CorrectIndex int
}

// CreateTaskInput describes a task with its files and quiz
type CreateTaskInput struct {
	Title        string
	Description  string
	QuizMode     models.QuizMode
	PassingScore *int
	Files        []FileInput
	Questions    []QuestionInput
}

// QuestionView is a question as shown to an assignee, without its answer key
type QuestionView struct {
	ID        string   `json:"id"`
	Prompt    string   `json:"prompt"`
	Options   []string `json:"options"`
	SortOrder int      `json:"sort_order"`
}

type FileView struct {
	*models.LearningFile
	Progress *models.FileProgress `json:"progress"`
}

// TaskDetail is everything an assignee needs to work on a task
type TaskDetail struct {
	Task       *models.Task           `json:"task"`
	Assignment *models.TaskAssignment `json:"assignment"`
	Files      []FileView             `json:"files"`
	Questions  []QuestionView         `json:"questions"`
	Completed  bool                   `json:"completed"`
}

// TaskService handles task authoring, assignment and the assignee's view of tasks
type TaskService struct {
	repo        TaskRepository
	questions   QuestionLister
	progress    ProgressLister
	users       UserLister
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewTaskService creates a new TaskService
func NewTaskService(repo TaskRepository, questions QuestionLister, progress ProgressLister, users UserLister, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *TaskService {
	return &TaskService{
		repo:        repo,
		questions:   questions,
		progress:    progress,
		users:       users,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// CreateTask validates and stores a task with its files and questions.
func (s *TaskService) CreateTask(ctx context.Context, adminID string, in CreateTaskInput) (*models.Task, error) {
	if err := validateTaskInput(&in); err != nil {
		return nil, err
	}

	task := &models.Task{
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		QuizMode:     in.QuizMode,
		PassingScore: in.PassingScore,
		CreatedBy:    &adminID,
	}

	files := make([]*models.LearningFile, 0, len(in.Files))
	for _, f := range in.Files {
		files = append(files, &models.LearningFile{
			Name:            f.Name,
			Kind:            f.Kind,
			TotalPages:      f.TotalPages,
			DurationSeconds: f.DurationSeconds,
		})
	}

	questions := make([]*models.QuizQuestion, 0, len(in.Questions))
	for _, q := range in.Questions {
		questions = append(questions, &models.QuizQuestion{
			Prompt:       q.Prompt,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
		})
	}

	created, err := s.repo.CreateWithContent(ctx, task, files, questions)
	if err != nil {
		s.logger.Error("failed to create task", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("task_created", adminID, "", map[string]string{"task_id": created.ID})
	return created, nil
}

func validateTaskInput(in *CreateTaskInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return models.ErrInvalidInput
	}
	if in.QuizMode == "" {
		in.QuizMode = models.QuizModeLenient
	}
	if !in.QuizMode.Valid() {
		return models.ErrInvalidInput
	}
	if in.PassingScore != nil && (*in.PassingScore < 0 || *in.PassingScore > 100) {
		return models.ErrInvalidInput
	}
	// a task needs at least one file or question to ever be completed
	if len(in.Files) == 0 && len(in.Questions) == 0 {
		return models.ErrInvalidInput
	}
	for _, f := range in.Files {
		if strings.TrimSpace(f.Name) == "" || !f.Kind.Valid() {
			return models.ErrInvalidInput
		}
		if f.Kind == models.FileKindDocument && f.TotalPages <= 0 {
			return models.ErrInvalidInput
		}
		if f.Kind == models.FileKindVideo && f.DurationSeconds <= 0 {
			return models.ErrInvalidInput
		}
	}
	for _, q := range in.Questions {
		if strings.TrimSpace(q.Prompt) == "" || len(q.Options) < 2 {
			return models.ErrInvalidInput
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return models.ErrInvalidOption
		}
	}
	return nil
}

// Assign assigns the task to every user in userIDs. Existing assignments are
// kept as they are. Returns the number of new assignments.
func (s *TaskService) Assign(ctx context.Context, adminID, taskID string, userIDs []string) (int64, error) {
	ids := dedupe(userIDs)
	if len(ids) == 0 {
		return 0, models.ErrInvalidInput
	}

	if _, err := s.repo.GetTask(ctx, taskID); err != nil {
		return 0, s.storageError("failed to get task", err)
	}

	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return 0, s.storageError("failed to resolve users", err)
	}
	if len(users) != len(ids) {
		return 0, models.ErrInvalidInput
	}

	created, err := s.repo.Assign(ctx, taskID, ids, "individual", &adminID)
	if err != nil {
		return 0, s.storageError("failed to assign task", err)
	}

	s.auditLogger.LogAccountAction("task_assigned", adminID, "", map[string]string{
		"task_id": taskID,
		"users":   strings.Join(ids, ","),
	})
	return created, nil
}

// ListMine returns the caller's assignments, newest first.
func (s *TaskService) ListMine(ctx context.Context, userID string) ([]*models.AssignedTask, error) {
	tasks, err := s.repo.ListAssignedTasks(ctx, userID)
	if err != nil {
		return nil, s.storageError("failed to list assignments", err)
	}
	return tasks, nil
}

// Detail returns the task as seen by an assignee.
func (s *TaskService) Detail(ctx context.Context, userID, taskID string) (*TaskDetail, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, s.storageError("failed to get task", err)
	}

	assignment, err := s.repo.GetAssignment(ctx, taskID, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrNotAssigned
	}
	if err != nil {
		return nil, s.storageError("failed to get assignment", err)
	}

	files, err := s.repo.ListFiles(ctx, taskID)
	if err != nil {
		return nil, s.storageError("failed to list files", err)
	}

	rows, err := s.progress.ListForTask(ctx, userID, taskID)
	if err != nil {
		return nil, s.storageError("failed to list progress", err)
	}
	byFile := make(map[string]*models.FileProgress, len(rows))
	for _, p := range rows {
		byFile[p.FileID] = p
	}

	questions, err := s.questions.ListQuestions(ctx, taskID)
	if err != nil {
		return nil, s.storageError("failed to list questions", err)
	}

	detail := &TaskDetail{
		Task:       task,
		Assignment: assignment,
		Files:      make([]FileView, 0, len(files)),
		Questions:  make([]QuestionView, 0, len(questions)),
		Completed:  assignment.IsCompleted,
	}
	for _, f := range files {
		p, ok := byFile[f.ID]
		if !ok {
			p = models.NotStartedProgress(userID, f)
		}
		detail.Files = append(detail.Files, FileView{LearningFile: f, Progress: p})
	}
	for _, q := range questions {
		detail.Questions = append(detail.Questions, QuestionView{
			ID:        q.ID,
			Prompt:    q.Prompt,
			Options:   q.Options,
			SortOrder: q.SortOrder,
		})
	}
	return detail, nil
}

func (s *TaskService) storageError(msg string, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return models.ErrNotFound
	case errors.Is(err, models.ErrBadRequest):
		return models.ErrInvalidInput
	}
	s.logger.Error(msg, slog.Any("error", err))
	return models.ErrInternalServer
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
