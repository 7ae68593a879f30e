package services

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/BradenHooton/lumen/internal/models"
	pkglogger "github.com/BradenHooton/lumen/pkg/logger"
)

// QuizRepository defines the interface for quiz storage
type QuizRepository interface {
	GetQuestion(ctx context.Context, questionID string) (*models.QuizQuestion, error)
	ListQuestions(ctx context.Context, taskID string) ([]*models.QuizQuestion, error)
	InsertAnswer(ctx context.Context, answer *models.QuizAnswer) error
	ListSubmissions(ctx context.Context, taskID, userID string) ([]*models.QuizSubmission, error)
	RecordSubmission(ctx context.Context, sub *models.QuizSubmission, maxAttempts int) (*models.QuizSubmission, error)
}

// TaskLookup resolves tasks and assignments
type TaskLookup interface {
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
	GetAssignment(ctx context.Context, taskID, userID string) (*models.TaskAssignment, error)
}

// QuizConfig bounds attempts and sets the lenient threshold for tasks without one
type QuizConfig struct {
	MaxAttempts         int
	DefaultPassingScore int
}

// QuestionResult reports whether one submitted answer was correct. It never
// carries the correct option.
type QuestionResult struct {
	QuestionID string `json:"questionId"`
	Answer     int    `json:"answer"`
	Correct    bool   `json:"correct"`
}

// SubmissionResult is the graded outcome of a batch submission
type SubmissionResult struct {
	Score             int              `json:"score"`
	Passed            bool             `json:"passed"`
	Total             int              `json:"total"`
	CorrectAnswers    int              `json:"correctAnswers"`
	PassingScore      int              `json:"passingScore"`
	Attempt           int              `json:"attempt"`
	AttemptsRemaining int              `json:"attemptsRemaining"`
	Results           []QuestionResult `json:"results"`
}

// SubmissionHistory lists a user's attempts for a task
type SubmissionHistory struct {
	TaskID            string                   `json:"taskId"`
	Submissions       []*models.QuizSubmission `json:"submissions"`
	Passed            bool                     `json:"passed"`
	AttemptsRemaining int                      `json:"attemptsRemaining"`
}

// QuizService grades quiz answers and enforces the attempt policy
type QuizService struct {
	repo        QuizRepository
	tasks       TaskLookup
	completion  *CompletionService
	config      QuizConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

// NewQuizService creates a new QuizService
func NewQuizService(repo QuizRepository, tasks TaskLookup, completion *CompletionService, config QuizConfig, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *QuizService {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.DefaultPassingScore <= 0 {
		config.DefaultPassingScore = models.DefaultPassingScore
	}
	return &QuizService{
		repo:        repo,
		tasks:       tasks,
		completion:  completion,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// AnswerOne records a single answer. Correctness is stored but never returned.
func (s *QuizService) AnswerOne(ctx context.Context, userID, questionID string, chosenIndex int) error {
	question, err := s.repo.GetQuestion(ctx, questionID)
	if err != nil {
		return s.storageError("failed to get question", err)
	}

	if !question.HasOption(chosenIndex) {
		return models.ErrInvalidOption
	}

	if err := s.requireAssignment(ctx, question.TaskID, userID); err != nil {
		return err
	}

	err = s.repo.InsertAnswer(ctx, &models.QuizAnswer{
		UserID:      userID,
		QuestionID:  question.ID,
		ChosenIndex: chosenIndex,
		IsCorrect:   chosenIndex == question.CorrectIndex,
		AnsweredAt:  s.now(),
	})
	if errors.Is(err, models.ErrAlreadyAnswered) {
		return models.ErrAlreadyAnswered
	}
	if err != nil {
		return s.storageError("failed to store answer", err)
	}
	return nil
}

// SubmitQuiz grades a batch of answers against the task's full question set
// and records the attempt. Unanswered questions count as incorrect.
func (s *QuizService) SubmitQuiz(ctx context.Context, userID, taskID string, answers []models.SubmittedAnswer) (*SubmissionResult, error) {
	if len(answers) == 0 {
		return nil, models.ErrInvalidInput
	}
	seen := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		if _, dup := seen[a.QuestionID]; dup || a.QuestionID == "" {
			return nil, models.ErrInvalidInput
		}
		seen[a.QuestionID] = struct{}{}
	}

	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, s.storageError("failed to get task", err)
	}

	questions, err := s.repo.ListQuestions(ctx, task.ID)
	if err != nil {
		return nil, s.storageError("failed to list questions", err)
	}
	byID := make(map[string]*models.QuizQuestion, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	for _, a := range answers {
		if _, ok := byID[a.QuestionID]; !ok {
			return nil, models.ErrInvalidInput
		}
	}
	for _, a := range answers {
		if !byID[a.QuestionID].HasOption(a.Answer) {
			return nil, models.ErrInvalidOption
		}
	}

	if err := s.requireAssignment(ctx, task.ID, userID); err != nil {
		return nil, err
	}

	results := make([]QuestionResult, 0, len(answers))
	correct := 0
	for _, a := range answers {
		ok := byID[a.QuestionID].CorrectIndex == a.Answer
		if ok {
			correct++
		}
		results = append(results, QuestionResult{QuestionID: a.QuestionID, Answer: a.Answer, Correct: ok})
	}

	total := len(questions)
	score := Score(correct, total)
	passingScore := task.EffectivePassingScore(s.config.DefaultPassingScore)
	passed := Passes(task.QuizMode, score, passingScore)

	stored, err := s.repo.RecordSubmission(ctx, &models.QuizSubmission{
		TaskID:         task.ID,
		UserID:         userID,
		Score:          score,
		Passed:         passed,
		TotalQuestions: total,
		CorrectCount:   correct,
		SubmittedAt:    s.now(),
	}, s.config.MaxAttempts)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotAssigned),
			errors.Is(err, models.ErrAlreadyPassed),
			errors.Is(err, models.ErrAttemptsExhausted):
			return nil, err
		}
		s.logger.Error("failed to record quiz submission",
			slog.String("user_id", userID),
			slog.String("task_id", task.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("quiz submitted",
		slog.String("user_id", userID),
		slog.String("task_id", task.ID),
		slog.Int("score", score),
		slog.Bool("passed", passed),
		slog.Int("attempt", stored.AttemptNumber))
	s.auditLogger.LogLearningEvent(pkglogger.LearningEvent{
		EventType: "quiz_submitted",
		UserID:    userID,
		TaskID:    task.ID,
		Success:   passed,
		Metadata: map[string]string{
			"score":   strconv.Itoa(score),
			"attempt": strconv.Itoa(stored.AttemptNumber),
		},
	})

	if s.completion != nil {
		s.completion.refresh(ctx, userID, task.ID)
	}

	return &SubmissionResult{
		Score:             score,
		Passed:            passed,
		Total:             total,
		CorrectAnswers:    correct,
		PassingScore:      passingScore,
		Attempt:           stored.AttemptNumber,
		AttemptsRemaining: s.remaining(stored.AttemptNumber, passed),
		Results:           results,
	}, nil
}

// Submissions returns the user's attempt history for a task.
func (s *QuizService) Submissions(ctx context.Context, userID, taskID string) (*SubmissionHistory, error) {
	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, s.storageError("failed to get task", err)
	}

	subs, err := s.repo.ListSubmissions(ctx, task.ID, userID)
	if err != nil {
		return nil, s.storageError("failed to list submissions", err)
	}

	passed := false
	for _, sub := range subs {
		if sub.Passed {
			passed = true
			break
		}
	}

	return &SubmissionHistory{
		TaskID:            task.ID,
		Submissions:       subs,
		Passed:            passed,
		AttemptsRemaining: s.remaining(len(subs), passed),
	}, nil
}

func (s *QuizService) remaining(used int, passed bool) int {
	if passed || used >= s.config.MaxAttempts {
		return 0
	}
	return s.config.MaxAttempts - used
}

func (s *QuizService) requireAssignment(ctx context.Context, taskID, userID string) error {
	_, err := s.tasks.GetAssignment(ctx, taskID, userID)
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrNotAssigned
	}
	if err != nil {
		s.logger.Error("failed to check assignment", slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

func (s *QuizService) storageError(msg string, err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrNotFound
	}
	s.logger.Error(msg, slog.Any("error", err))
	return models.ErrInternalServer
}

// Score is round(100 * correct / total); an empty quiz scores 0.
func Score(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// Passes applies the task's quiz mode: strict needs a perfect score, lenient
// needs at least passingScore.
func Passes(mode models.QuizMode, score, passingScore int) bool {
	if mode == models.QuizModeStrict {
		return score == 100
	}
	return score >= passingScore
}
