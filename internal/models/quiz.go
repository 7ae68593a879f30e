package models

import "time"

type QuizQuestion struct {
	ID           string   `json:"id"`
	TaskID       string   `json:"task_id"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"-"` // never serialized
	SortOrder    int      `json:"sort_order"`
}

// HasOption reports whether index addresses one of the question's options.
func (q *QuizQuestion) HasOption(index int) bool {
	return index >= 0 && index < len(q.Options)
}

type QuizAnswer struct {
	UserID      string    `json:"user_id"`
	QuestionID  string    `json:"question_id"`
	ChosenIndex int       `json:"chosen_index"`
	IsCorrect   bool      `json:"-"`
	AnsweredAt  time.Time `json:"answered_at"`
}

type QuizSubmission struct {
	ID             string    `json:"id"`
	TaskID         string    `json:"task_id"`
	UserID         string    `json:"user_id"`
	Score          int       `json:"score"`
	Passed         bool      `json:"passed"`
	TotalQuestions int       `json:"total_questions"`
	CorrectCount   int       `json:"correct_count"`
	AttemptNumber  int       `json:"attempt_number"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// SubmittedAnswer is one entry of a batch quiz submission.
type SubmittedAnswer struct {
	QuestionID string
	Answer     int
}
