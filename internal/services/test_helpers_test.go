package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/lumen/internal/models"
	pkglogger "github.com/BradenHooton/lumen/pkg/logger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}

// fakeClock is a settable time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockUserRepository implements UserRepository and UserLister for testing
type MockUserRepository struct {
	GetByIDFunc       func(ctx context.Context, id string) (*models.User, error)
	GetByUsernameFunc func(ctx context.Context, username string) (*models.User, error)
	CreateFunc        func(ctx context.Context, user *models.User) (*models.User, error)
	ListByIDsFunc     func(ctx context.Context, ids []string) ([]*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) ListByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	if m.ListByIDsFunc != nil {
		return m.ListByIDsFunc(ctx, ids)
	}
	return []*models.User{}, nil
}

// MockLockoutNotifier records notices
type MockLockoutNotifier struct {
	mu    sync.Mutex
	Calls []string
	Err   error
}

func (m *MockLockoutNotifier) NotifyLocked(ctx context.Context, user *models.User, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, user.ID)
	return m.Err
}

// memoryLoginAttempts is an in-memory LoginAttemptRepository. Update holds a
// single mutex across fn, standing in for the row lock.
type memoryLoginAttempts struct {
	mu      sync.Mutex
	records map[string]models.LoginAttemptRecord
	GetErr  error
}

func newMemoryLoginAttempts() *memoryLoginAttempts {
	return &memoryLoginAttempts{records: make(map[string]models.LoginAttemptRecord)}
}

func (m *memoryLoginAttempts) Get(ctx context.Context, username string) (*models.LoginAttemptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	rec, ok := m.records[username]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &rec, nil
}

func (m *memoryLoginAttempts) Update(ctx context.Context, username string, now time.Time, fn func(rec *models.LoginAttemptRecord) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[username]
	if !ok {
		rec = models.LoginAttemptRecord{Username: username, FirstFailureAt: now}
	}
	if err := fn(&rec); err != nil {
		return err
	}
	m.records[username] = rec
	return nil
}

func (m *memoryLoginAttempts) Delete(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, username)
	return nil
}

func (m *memoryLoginAttempts) DeleteStale(ctx context.Context, now, staleBefore time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, rec := range m.records {
		expired := rec.LockedUntil != nil && !rec.LockedUntil.After(now)
		lapsed := rec.LockedUntil == nil && rec.FirstFailureAt.Before(staleBefore)
		if expired || lapsed {
			delete(m.records, k)
			n++
		}
	}
	return n, nil
}

func pairKey(a, b string) string {
	return a + "|" + b
}

// memoryStore is an in-memory stand-in for the task, progress and quiz
// tables. It implements every repository interface of the learning services
// with the same atomicity the SQL statements give.
type memoryStore struct {
	mu          sync.Mutex
	tasks       map[string]*models.Task
	files       map[string]*models.LearningFile
	assignments map[string]*models.TaskAssignment
	progress    map[string]*models.FileProgress
	questions   map[string]*models.QuizQuestion
	answers     map[string]*models.QuizAnswer
	submissions []*models.QuizSubmission
	nextID      int

	// Injected failures keyed by method name
	errs map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		tasks:       make(map[string]*models.Task),
		files:       make(map[string]*models.LearningFile),
		assignments: make(map[string]*models.TaskAssignment),
		progress:    make(map[string]*models.FileProgress),
		questions:   make(map[string]*models.QuizQuestion),
		answers:     make(map[string]*models.QuizAnswer),
		errs:        make(map[string]error),
	}
}

func (s *memoryStore) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *memoryStore) fail(method string) error {
	return s.errs[method]
}

// seedTask stores a task with the given files and questions and returns it.
func (s *memoryStore) seedTask(mode models.QuizMode, passing *int, files []*models.LearningFile, questions []*models.QuizQuestion) *models.Task {
	t, _ := s.CreateWithContent(context.Background(), &models.Task{Title: "task", QuizMode: mode, PassingScore: passing}, files, questions)
	return t
}

func (s *memoryStore) assign(taskID, userID string) {
	_, _ = s.Assign(context.Background(), taskID, []string{userID}, "individual", nil)
}

func (s *memoryStore) CreateWithContent(ctx context.Context, task *models.Task, files []*models.LearningFile, questions []*models.QuizQuestion) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateWithContent"); err != nil {
		return nil, err
	}
	task.ID = s.id("task")
	if task.QuizMode == "" {
		task.QuizMode = models.QuizModeLenient
	}
	t := *task
	s.tasks[t.ID] = &t
	for i, f := range files {
		f.ID = s.id("file")
		f.TaskID = t.ID
		f.SortOrder = i
		cp := *f
		s.files[f.ID] = &cp
	}
	for i, q := range questions {
		q.ID = s.id("question")
		q.TaskID = t.ID
		q.SortOrder = i
		cp := *q
		s.questions[q.ID] = &cp
	}
	out := t
	return &out, nil
}

func (s *memoryStore) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetTask"); err != nil {
		return nil, err
	}
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memoryStore) GetFile(ctx context.Context, fileID string) (*models.LearningFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *memoryStore) ListFiles(ctx context.Context, taskID string) ([]*models.LearningFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.LearningFile, 0)
	for _, f := range s.files {
		if f.TaskID == taskID {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (s *memoryStore) Assign(ctx context.Context, taskID string, userIDs []string, assignmentType string, assignedBy *string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("Assign"); err != nil {
		return 0, err
	}
	var created int64
	for _, u := range userIDs {
		k := pairKey(taskID, u)
		if _, ok := s.assignments[k]; ok {
			continue
		}
		s.assignments[k] = &models.TaskAssignment{
			TaskID:         taskID,
			UserID:         u,
			AssignmentType: assignmentType,
			AssignedBy:     assignedBy,
			AssignedAt:     time.Now(),
		}
		created++
	}
	return created, nil
}

func (s *memoryStore) GetAssignment(ctx context.Context, taskID, userID string) (*models.TaskAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetAssignment"); err != nil {
		return nil, err
	}
	a, ok := s.assignments[pairKey(taskID, userID)]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memoryStore) ListAssignedTasks(ctx context.Context, userID string) ([]*models.AssignedTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.AssignedTask, 0)
	for _, a := range s.assignments {
		if a.UserID == userID {
			out = append(out, &models.AssignedTask{Task: *s.tasks[a.TaskID], Assignment: *a})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Task.ID < out[j].Task.ID })
	return out, nil
}

func (s *memoryStore) CompletionFacts(ctx context.Context, taskID, userID string) (models.CompletionFacts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CompletionFacts"); err != nil {
		return models.CompletionFacts{}, err
	}
	var facts models.CompletionFacts
	for _, f := range s.files {
		if f.TaskID != taskID {
			continue
		}
		facts.TotalFiles++
		if p, ok := s.progress[pairKey(userID, f.ID)]; ok && p.CompletedAt != nil {
			facts.CompletedFiles++
		}
	}
	for _, q := range s.questions {
		if q.TaskID == taskID {
			facts.QuestionCount++
		}
	}
	for _, sub := range s.submissions {
		if sub.TaskID == taskID && sub.UserID == userID && sub.Passed {
			facts.HasPassingSubmission = true
		}
	}
	return facts, nil
}

func (s *memoryStore) MarkCompleted(ctx context.Context, taskID, userID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[pairKey(taskID, userID)]
	if !ok || a.IsCompleted {
		return false, nil
	}
	a.IsCompleted = true
	a.SubmittedAt = &at
	return true, nil
}

func (s *memoryStore) isCompleted(taskID, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[pairKey(taskID, userID)]
	return ok && a.IsCompleted
}

func (s *memoryStore) Upsert(ctx context.Context, in *models.ProgressUpsert) (*models.FileProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("Upsert"); err != nil {
		return nil, err
	}
	at := in.ReportedAt
	k := pairKey(in.UserID, in.FileID)
	p, ok := s.progress[k]
	if !ok {
		p = &models.FileProgress{UserID: in.UserID, FileID: in.FileID, TaskID: in.TaskID, StartedAt: &at}
		s.progress[k] = p
	}
	p.CurrentPosition = in.CurrentPosition
	p.TotalExtent = in.TotalExtent
	p.ScrollOffset = in.ScrollOffset
	if p.CompletedAt == nil || in.ProgressPercent > p.ProgressPercent {
		p.ProgressPercent = in.ProgressPercent
	}
	p.EffectiveSeconds += in.EffectiveDelta
	if p.CompletedAt == nil && in.ProgressPercent >= 100 {
		p.CompletedAt = &at
	}
	p.LastAccessedAt = &at
	cp := *p
	return &cp, nil
}

func (s *memoryStore) Get(ctx context.Context, userID, fileID string) (*models.FileProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[pairKey(userID, fileID)]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memoryStore) ListForTask(ctx context.Context, userID, taskID string) ([]*models.FileProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.FileProgress, 0)
	for _, p := range s.progress {
		if p.UserID == userID && p.TaskID == taskID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memoryStore) GetQuestion(ctx context.Context, questionID string) (*models.QuizQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[questionID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (s *memoryStore) ListQuestions(ctx context.Context, taskID string) ([]*models.QuizQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.QuizQuestion, 0)
	for _, q := range s.questions {
		if q.TaskID == taskID {
			cp := *q
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (s *memoryStore) InsertAnswer(ctx context.Context, answer *models.QuizAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pairKey(answer.UserID, answer.QuestionID)
	if _, ok := s.answers[k]; ok {
		return models.ErrAlreadyAnswered
	}
	cp := *answer
	s.answers[k] = &cp
	return nil
}

func (s *memoryStore) answer(userID, questionID string) *models.QuizAnswer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers[pairKey(userID, questionID)]
}

func (s *memoryStore) ListSubmissions(ctx context.Context, taskID, userID string) ([]*models.QuizSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.QuizSubmission, 0)
	for _, sub := range s.submissions {
		if sub.TaskID == taskID && sub.UserID == userID {
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memoryStore) RecordSubmission(ctx context.Context, sub *models.QuizSubmission, maxAttempts int) (*models.QuizSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("RecordSubmission"); err != nil {
		return nil, err
	}
	if _, ok := s.assignments[pairKey(sub.TaskID, sub.UserID)]; !ok {
		return nil, models.ErrNotAssigned
	}
	prior := 0
	for _, existing := range s.submissions {
		if existing.TaskID != sub.TaskID || existing.UserID != sub.UserID {
			continue
		}
		if existing.Passed {
			return nil, models.ErrAlreadyPassed
		}
		prior++
	}
	if prior >= maxAttempts {
		return nil, models.ErrAttemptsExhausted
	}
	cp := *sub
	cp.ID = s.id("submission")
	cp.AttemptNumber = prior + 1
	s.submissions = append(s.submissions, &cp)
	out := cp
	return &out, nil
}
