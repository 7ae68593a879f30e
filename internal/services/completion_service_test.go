package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BradenHooton/lumen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionFacts_Complete(t *testing.T) {
	tests := []struct {
		name  string
		facts models.CompletionFacts
		want  bool
	}{
		{"no content", models.CompletionFacts{}, true},
		{"files done, no quiz", models.CompletionFacts{TotalFiles: 2, CompletedFiles: 2}, true},
		{"one file open", models.CompletionFacts{TotalFiles: 2, CompletedFiles: 1}, false},
		{"quiz not passed", models.CompletionFacts{TotalFiles: 1, CompletedFiles: 1, QuestionCount: 3}, false},
		{"quiz passed", models.CompletionFacts{TotalFiles: 1, CompletedFiles: 1, QuestionCount: 3, HasPassingSubmission: true}, true},
		{"quiz passed, file open", models.CompletionFacts{TotalFiles: 1, QuestionCount: 3, HasPassingSubmission: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.facts.Complete())
		})
	}
}

func TestCompletionService_RequiresFilesAndPassingSubmission(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	svc := NewCompletionService(store, testLogger(), testAuditLogger())

	a := &models.LearningFile{Name: "a", Kind: models.FileKindDocument, TotalPages: 4}
	b := &models.LearningFile{Name: "b", Kind: models.FileKindVideo, DurationSeconds: 60}
	q := &models.QuizQuestion{Prompt: "?", Options: []string{"x", "y"}, CorrectIndex: 1}
	task := store.seedTask(models.QuizModeLenient, nil, []*models.LearningFile{a, b}, []*models.QuizQuestion{q})
	store.assign(task.ID, "u1")

	done := func(file *models.LearningFile) {
		_, err := store.Upsert(ctx, &models.ProgressUpsert{UserID: "u1", FileID: file.ID, TaskID: task.ID, ProgressPercent: 100, ReportedAt: time.Now()})
		require.NoError(t, err)
	}

	complete, err := svc.IsTaskComplete(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.False(t, complete)

	done(a)
	done(b)
	complete, err = svc.IsTaskComplete(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.False(t, complete, "quiz still outstanding")

	_, err = store.RecordSubmission(ctx, &models.QuizSubmission{TaskID: task.ID, UserID: "u1", Score: 100, Passed: true}, 3)
	require.NoError(t, err)

	changed, err := svc.MarkCompletedIfEligible(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, store.isCompleted(task.ID, "u1"))

	changed, err = svc.MarkCompletedIfEligible(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.False(t, changed, "second call is a no-op")
}

func TestCompletionService_FailingSubmissionDoesNotComplete(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	svc := NewCompletionService(store, testLogger(), testAuditLogger())

	q := &models.QuizQuestion{Prompt: "?", Options: []string{"x", "y"}, CorrectIndex: 1}
	task := store.seedTask(models.QuizModeLenient, nil, nil, []*models.QuizQuestion{q})
	store.assign(task.ID, "u1")

	_, err := store.RecordSubmission(ctx, &models.QuizSubmission{TaskID: task.ID, UserID: "u1", Score: 0}, 3)
	require.NoError(t, err)

	changed, err := svc.MarkCompletedIfEligible(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestCompletionService_StorageError(t *testing.T) {
	store := newMemoryStore()
	store.errs["CompletionFacts"] = errors.New("timeout")
	svc := NewCompletionService(store, testLogger(), testAuditLogger())

	_, err := svc.MarkCompletedIfEligible(context.Background(), "u1", "t1")
	assert.Error(t, err)
}
