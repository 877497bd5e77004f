package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/edusphere/exam-engine/internal/events"
	"github.com/edusphere/exam-engine/internal/models"
	"github.com/edusphere/exam-engine/internal/repositories"
	"github.com/edusphere/exam-engine/internal/validator"
)

// ===== IN-MEMORY REPOSITORY =====

// fakeRepo implements repositories.Repository against plain maps so service
// behavior can be tested without a database.
type fakeRepo struct {
	mu sync.Mutex

	exams       map[string]*models.Exam
	questions   map[string][]*models.Question // keyed by exam id
	submissions map[string]*models.Submission
	slots       map[string][]*models.AnsweredQuestion // keyed by submission id
	users       map[string]*models.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		exams:       make(map[string]*models.Exam),
		questions:   make(map[string][]*models.Question),
		submissions: make(map[string]*models.Submission),
		slots:       make(map[string][]*models.AnsweredQuestion),
		users:       make(map[string]*models.User),
	}
}

func (f *fakeRepo) Submission() repositories.SubmissionRepository             { return &fakeSubmissionRepo{f} }
func (f *fakeRepo) AnsweredQuestion() repositories.AnsweredQuestionRepository { return &fakeSlotRepo{f} }
func (f *fakeRepo) Exam() repositories.ExamRepository                         { return &fakeExamRepo{f} }
func (f *fakeRepo) Question() repositories.QuestionRepository                 { return &fakeQuestionRepo{f} }
func (f *fakeRepo) User() repositories.UserRepository                         { return &fakeUserRepo{f} }
func (f *fakeRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(f)
}
func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

type fakeSubmissionRepo struct{ f *fakeRepo }

func (r *fakeSubmissionRepo) Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, existing := range r.f.submissions {
		if existing.StudentID == submission.StudentID && existing.ExamID == submission.ExamID {
			return gorm.ErrDuplicatedKey
		}
	}
	r.f.submissions[submission.ID] = submission
	return nil
}

func (r *fakeSubmissionRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Submission, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	sub, ok := r.f.submissions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return sub, nil
}

func (r *fakeSubmissionRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id string) (*models.Submission, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *fakeSubmissionRepo) GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id string) (*models.Submission, error) {
	sub, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	sub.Answers = nil
	for _, slot := range r.f.slots[id] {
		sub.Answers = append(sub.Answers, *slot)
	}
	return sub, nil
}

func (r *fakeSubmissionRepo) GetByStudentAndExam(ctx context.Context, tx *gorm.DB, studentID, examID string) (*models.Submission, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, sub := range r.f.submissions {
		if sub.StudentID == studentID && sub.ExamID == examID {
			return sub, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeSubmissionRepo) Update(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	r.f.submissions[submission.ID] = submission
	return nil
}

func (r *fakeSubmissionRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.Submission
	for _, sub := range r.f.submissions {
		if filters.StudentID != nil && sub.StudentID != *filters.StudentID {
			continue
		}
		if filters.ExamID != nil && sub.ExamID != *filters.ExamID {
			continue
		}
		out = append(out, sub)
	}
	return out, int64(len(out)), nil
}

func (r *fakeSubmissionRepo) GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	filters.StudentID = &studentID
	return r.List(ctx, tx, filters)
}

func (r *fakeSubmissionRepo) GetByExam(ctx context.Context, tx *gorm.DB, examID string, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	filters.ExamID = &examID
	return r.List(ctx, tx, filters)
}

func (r *fakeSubmissionRepo) SumAwardedPoints(ctx context.Context, tx *gorm.DB, submissionID string) (float64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var total float64
	for _, slot := range r.f.slots[submissionID] {
		if slot.PointsAwarded != nil {
			total += *slot.PointsAwarded
		}
	}
	return total, nil
}

type fakeSlotRepo struct{ f *fakeRepo }

func (r *fakeSlotRepo) CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.AnsweredQuestion) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, slot := range answers {
		r.f.slots[slot.SubmissionID] = append(r.f.slots[slot.SubmissionID], slot)
	}
	return nil
}

func (r *fakeSlotRepo) GetBySubmission(ctx context.Context, tx *gorm.DB, submissionID string) ([]*models.AnsweredQuestion, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	return r.f.slots[submissionID], nil
}

func (r *fakeSlotRepo) GetBySubmissionAndQuestion(ctx context.Context, tx *gorm.DB, submissionID, questionID string) (*models.AnsweredQuestion, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, slot := range r.f.slots[submissionID] {
		if slot.QuestionID == questionID {
			return slot, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeSlotRepo) Update(ctx context.Context, tx *gorm.DB, answer *models.AnsweredQuestion) error {
	return nil // slots are shared pointers in the fake
}

func (r *fakeSlotRepo) ReplaceSelectedChoices(ctx context.Context, tx *gorm.DB, answeredQuestionID string, choiceIDs []string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, slots := range r.f.slots {
		for _, slot := range slots {
			if slot.ID != answeredQuestionID {
				continue
			}
			slot.Selected = nil
			for _, choiceID := range choiceIDs {
				slot.Selected = append(slot.Selected, models.SelectedChoice{
					AnsweredQuestionID: answeredQuestionID,
					ChoiceID:           choiceID,
				})
			}
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeSlotRepo) Progress(ctx context.Context, tx *gorm.DB, submissionID string) (int64, int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var answered int64
	slots := r.f.slots[submissionID]
	for _, slot := range slots {
		if len(slot.Selected) > 0 {
			answered++
		}
	}
	return answered, int64(len(slots)), nil
}

type fakeExamRepo struct{ f *fakeRepo }

func (r *fakeExamRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Exam, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	exam, ok := r.f.exams[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return exam, nil
}

func (r *fakeExamRepo) Exists(ctx context.Context, tx *gorm.DB, id string) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	_, ok := r.f.exams[id]
	return ok, nil
}

type fakeQuestionRepo struct{ f *fakeRepo }

func (r *fakeQuestionRepo) GetByExam(ctx context.Context, tx *gorm.DB, examID string) ([]*models.Question, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	return r.f.questions[examID], nil
}

func (r *fakeQuestionRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Question, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, questions := range r.f.questions {
		for _, q := range questions {
			if q.ID == id {
				return q, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeUserRepo struct{ f *fakeRepo }

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	user, ok := r.f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.User
	for _, id := range ids {
		if user, ok := r.f.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	_, ok := r.f.users[id]
	return ok, nil
}

func (r *fakeUserRepo) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return user.Role == role, nil
}

// ===== TEST FIXTURE =====

const (
	examID    = "exam-1"
	studentID = "student-1"
	teacherID = "teacher-1"
)

// seedExam sets up one open exam with the two-question fixture: a
// single-answer question worth 5 with correct choice A, and a multi-answer
// question worth 5 with correct choices B and C out of A..D.
func seedExam(repo *fakeRepo, showScores bool) {
	now := time.Now()
	repo.exams[examID] = &models.Exam{
		ID:          examID,
		Title:       "Networks Midterm",
		StartTime:   now.Add(-time.Hour),
		EndTime:     now.Add(time.Hour),
		Duration:    60,
		TotalPoints: 10,
		Status:      models.ExamOpen,
		ShowScores:  showScores,
	}
	repo.questions[examID] = []*models.Question{
		{
			ID: "q1", ExamID: examID, Text: "Pick one", Type: models.QuestionSingle, MaxPoints: 5, Position: 1,
			Choices: []models.Choice{
				{ID: "q1-a", QuestionID: "q1", Text: "A", Position: 1, IsCorrect: true},
				{ID: "q1-b", QuestionID: "q1", Text: "B", Position: 2},
				{ID: "q1-c", QuestionID: "q1", Text: "C", Position: 3},
			},
		},
		{
			ID: "q2", ExamID: examID, Text: "Pick all that apply", Type: models.QuestionMultiple, MaxPoints: 5, Position: 2,
			Choices: []models.Choice{
				{ID: "q2-a", QuestionID: "q2", Text: "A", Position: 1},
				{ID: "q2-b", QuestionID: "q2", Text: "B", Position: 2, IsCorrect: true},
				{ID: "q2-c", QuestionID: "q2", Text: "C", Position: 3, IsCorrect: true},
				{ID: "q2-d", QuestionID: "q2", Text: "D", Position: 4},
			},
		},
	}
	repo.users[studentID] = &models.User{ID: studentID, FullName: "Student One", Role: models.RoleStudent}
	repo.users["student-2"] = &models.User{ID: "student-2", FullName: "Student Two", Role: models.RoleStudent}
	repo.users[teacherID] = &models.User{ID: teacherID, FullName: "Teacher One", Role: models.RoleTeacher}
}

func newTestService(t *testing.T, showScores bool) (SubmissionService, *fakeRepo, *events.MockEventPublisher) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := newFakeRepo()
	seedExam(repo, showScores)
	publisher := events.NewMockEventPublisher(logger)
	svc := NewSubmissionService(repo, nil, logger, validator.New(), publisher)
	return svc, repo, publisher
}

func startSubmission(t *testing.T, svc SubmissionService) *SubmissionDetail {
	t.Helper()
	detail, err := svc.Start(context.Background(), &StartSubmissionRequest{ExamID: examID}, studentID, nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return detail
}

// ===== TESTS =====

func TestSubmissionService_Start(t *testing.T) {
	svc, _, publisher := newTestService(t, true)

	detail := startSubmission(t, svc)

	if detail.Status != models.SubmissionInProgress {
		t.Errorf("expected in_progress, got %s", detail.Status)
	}
	if len(detail.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(detail.Questions))
	}
	if len(detail.Answers) != 2 {
		t.Fatalf("expected 2 answer slots, got %d", len(detail.Answers))
	}
	for _, a := range detail.Answers {
		if a.Answered || len(a.SelectedChoiceIDs) != 0 {
			t.Errorf("slot %s should start empty", a.QuestionID)
		}
	}
	for _, q := range detail.Questions {
		if len(q.Choices) < 2 {
			t.Errorf("question %s lost its choices", q.ID)
		}
	}

	published := publisher.GetPublishedEvents()
	if len(published) != 1 || published[0].Type != events.SubmissionStarted {
		t.Fatalf("expected one submission.started event, got %+v", published)
	}
}

func TestSubmissionService_StartConflict(t *testing.T) {
	svc, _, _ := newTestService(t, true)

	startSubmission(t, svc)

	_, err := svc.Start(context.Background(), &StartSubmissionRequest{ExamID: examID}, studentID, nil)
	if !errors.Is(err, ErrSubmissionAlreadyExists) {
		t.Fatalf("expected ErrSubmissionAlreadyExists, got %v", err)
	}
}

func TestSubmissionService_StartExamNotOpen(t *testing.T) {
	svc, repo, _ := newTestService(t, true)
	repo.exams[examID].Status = models.ExamClosed

	_, err := svc.Start(context.Background(), &StartSubmissionRequest{ExamID: examID}, studentID, nil)
	if !errors.Is(err, ErrExamNotOpen) {
		t.Fatalf("expected ErrExamNotOpen, got %v", err)
	}
}

func TestSubmissionService_StartMalformedQuestion(t *testing.T) {
	svc, repo, _ := newTestService(t, true)
	// Two choices marked correct on a single-answer question.
	repo.questions[examID][0].Choices[1].IsCorrect = true

	_, err := svc.Start(context.Background(), &StartSubmissionRequest{ExamID: examID}, studentID, nil)

	var ruleErr *BusinessRuleError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected BusinessRuleError, got %v", err)
	}
	if ruleErr.Rule != "exam_questions" {
		t.Errorf("expected rule exam_questions, got %s", ruleErr.Rule)
	}
}

func TestSubmissionService_SyncAndScoreScenario(t *testing.T) {
	svc, _, _ := newTestService(t, true)
	ctx := context.Background()

	detail := startSubmission(t, svc)

	// Answer the single question correctly.
	resp, err := svc.SyncAnswers(ctx, detail.ID, &SyncAnswersRequest{
		Answers: []AnswerSync{{QuestionID: "q1", SelectedChoiceIDs: []string{"q1-a"}}},
	}, studentID)
	if err != nil {
		t.Fatalf("sync q1 failed: %v", err)
	}
	if resp.Progress.Answered != 1 || resp.Progress.Total != 2 || resp.Progress.Percentage != 50 {
		t.Errorf("expected progress 1/2 (50%%), got %+v", resp.Progress)
	}

	// Partial credit: one of two correct choices selected.
	resp, err = svc.SyncAnswers(ctx, detail.ID, &SyncAnswersRequest{
		Answers: []AnswerSync{{QuestionID: "q2", SelectedChoiceIDs: []string{"q2-b"}}},
	}, studentID)
	if err != nil {
		t.Fatalf("sync q2 failed: %v", err)
	}
	if resp.Progress.Answered != 2 {
		t.Errorf("expected 2 answered, got %d", resp.Progress.Answered)
	}

	// Replace with one correct and one incorrect: (1-1)/2 -> 0 points.
	if _, err = svc.SyncAnswers(ctx, detail.ID, &SyncAnswersRequest{
		Answers: []AnswerSync{{QuestionID: "q2", SelectedChoiceIDs: []string{"q2-b", "q2-d"}}},
	}, studentID); err != nil {
		t.Fatalf("resync q2 failed: %v", err)
	}

	result, err := svc.Submit(ctx, detail.ID, studentID)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.TotalScore == nil || *result.TotalScore != 5.0 {
		t.Fatalf("expected total score 5.0, got %v", result.TotalScore)
	}
	if result.AnsweredCount != 2 || result.QuestionCount != 2 {
		t.Errorf("expected 2/2 answered, got %d/%d", result.AnsweredCount, result.QuestionCount)
	}
}

func TestSubmissionService_SyncIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t, true)
	ctx := context.Background()

	detail := startSubmission(t, svc)
	req := &SyncAnswersRequest{
		Answers: []AnswerSync{{QuestionID: "q2", SelectedChoiceIDs: []string{"q2-b", "q2-c"}}},
	}

	first, err := svc.SyncAnswers(ctx, detail.ID, req, studentID)
	if err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	second, err := svc.SyncAnswers(ctx, detail.ID, req, studentID)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	if first.Progress != second.Progress {
		t.Errorf("progress changed across identical syncs: %+v vs %+v", first.Progress, second.Progress)
	}
	if len(second.Answers) != 1 || len(second.Answers[0].SelectedChoiceIDs) != 2 {
		t.Errorf("unexpected ack state: %+v", second.Answers)
	}
}

func TestSubmissionService_ClearAnswer(t *testing.T) {
	svc, repo, _ := newTestService(t, true)
	ctx := context.Background()

	detail := startSubmission(t, svc)

	if _, err := svc.SyncAnswers(ctx, detail.ID, &SyncAnswersRequest{
		Answers: []AnswerSync{{QuestionID: "q1", SelectedChoiceIDs: []string{"q1-a"}}},
	}, studentID); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	resp, err := svc.ClearAnswer(ctx, detail.ID, "q1", studentID)
	if err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if resp.Progress.Answered != 0 {
		t.Errorf("expected 0 answered after clear, got %d", resp.Progress.Answered)
	}

	// Cleared answers become unanswered, not zero-scored.
	for _, slot := range repo.slots[detail.ID] {
		if slot.QuestionID == "q1" && slot.PointsAwarded != nil {
			t.Errorf("expected nil points after clear, got %v", *slot.PointsAwarded)
		}
	}
}

func TestProgressSnapshotRounding(t *testing.T) {
	tests := []struct {
		name     string
		answered int64
		total    int64
		want     float64
	}{
		{"empty exam", 0, 0, 0},
		{"half", 1, 2, 50},
		{"one of three", 1, 3, 33},
		{"two of three", 2, 3, 67},
		{"complete", 3, 3, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := newProgressSnapshot("sub-1", tt.answered, tt.total)
			if snap.Percentage != tt.want {
				t.Errorf("expected percentage %.0f, got %v", tt.want, snap.Percentage)
			}
		})
	}
}

func TestSubmissionService_SyncValidation(t *testing.T) {
	svc, _, _ := newTestService(t, true)
	ctx := context.Background()
	detail := startSubmission(t, svc)

	tests := []struct {
		name    string
		req     *SyncAnswersRequest
		wantErr func(error) bool
	}{
		{
			name:    "empty batch",
			req:     &SyncAnswersRequest{},
			wantErr: func(err error) bool { var ve validator.ValidationErrors; return errors.As(err, &ve) },
		},
		{
			name: "unknown question",
			req: &SyncAnswersRequest{
				Answers: []AnswerSync{{QuestionID: "q-unknown", SelectedChoiceIDs: []string{"q1-a"}}},
			},
			wantErr: func(err error) bool { return errors.Is(err, ErrQuestionNotInSubmission) },
		},
		{
			name: "choice from another question",
			req: &SyncAnswersRequest{
				Answers: []AnswerSync{{QuestionID: "q1", SelectedChoiceIDs: []string{"q2-b"}}},
			},
			wantErr: func(err error) bool { var ve validator.ValidationErrors; return errors.As(err, &ve) },
		},
		{
			name: "multiple selections on single question",
			req: &SyncAnswersRequest{
				Answers: []AnswerSync{{QuestionID: "q1", SelectedChoiceIDs: []string{"q1-a", "q1-b"}}},
			},
			wantErr: func(err error) bool { var ve validator.ValidationErrors; return errors.As(err, &ve) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SyncAnswers(ctx, detail.ID, tt.req, studentID)
			if err == nil || !tt.wantErr(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}

	// A failed batch must not partially apply.
	progress, err := svc.GetProgress(ctx, detail.ID, studentID)
	if err != nil {
		t.Fatalf("progress failed: %v", err)
	}
	if progress.Answered != 0 {
		t.Errorf("failed batches must not write, got %d answered", progress.Answered)
	}
}

func TestSubmissionService_SyncAfterSubmit(t *testing.T) {
	svc, _, _ := newTestService(t, true)
	ctx := context.Background()
	detail := startSubmission(t, svc)

	if _, err := svc.Submit(ctx, detail.ID, studentID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	_, err := svc.SyncAnswers(ctx, detail.ID, &SyncAnswersRequest{
		Answers: []AnswerSync{{QuestionID: "q1", SelectedChoiceIDs: []string{"q1-a"}}},
	}, studentID)
	if !errors.Is(err, ErrSubmissionSubmitted) {
		t.Fatalf("expected ErrSubmissionSubmitted, got %v", err)
	}
}

func TestSubmissionService_SubmitIdempotent(t *testing.T) {
	svc, _, publisher := newTestService(t, true)
	ctx := context.Background()
	detail := startSubmission(t, svc)

	if _, err := svc.SyncAnswers(ctx, detail.ID, &SyncAnswersRequest{
		Answers: []AnswerSync{{QuestionID: "q1", SelectedChoiceIDs: []string{"q1-a"}}},
	}, studentID); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	first, err := svc.Submit(ctx, detail.ID, studentID)
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	second, err := svc.Submit(ctx, detail.ID, studentID)
	if err != nil {
		t.Fatalf("repeated submit must not error: %v", err)
	}

	if first.AlreadySubmitted {
		t.Error("first submit should not be marked already submitted")
	}
	if !second.AlreadySubmitted {
		t.Error("second submit should be marked already submitted")
	}
	if *first.TotalScore != *second.TotalScore {
		t.Errorf("score changed across submits: %v vs %v", *first.TotalScore, *second.TotalScore)
	}
	if !first.SubmittedAt.Equal(second.SubmittedAt) {
		t.Errorf("submit timestamp changed: %v vs %v", first.SubmittedAt, second.SubmittedAt)
	}

	// Only the first submit publishes.
	submitted := 0
	for _, e := range publisher.GetPublishedEvents() {
		if e.Type == events.SubmissionSubmitted {
			submitted++
		}
	}
	if submitted != 1 {
		t.Errorf("expected 1 submission.submitted event, got %d", submitted)
	}
}

func TestSubmissionService_Permissions(t *testing.T) {
	svc, _, _ := newTestService(t, true)
	ctx := context.Background()
	detail := startSubmission(t, svc)

	var permErr *PermissionError

	_, err := svc.SyncAnswers(ctx, detail.ID, &SyncAnswersRequest{
		Answers: []AnswerSync{{QuestionID: "q1", SelectedChoiceIDs: []string{"q1-a"}}},
	}, "student-2")
	if !errors.As(err, &permErr) {
		t.Fatalf("expected PermissionError for foreign sync, got %v", err)
	}

	_, err = svc.Submit(ctx, detail.ID, "student-2")
	if !errors.As(err, &permErr) {
		t.Fatalf("expected PermissionError for foreign submit, got %v", err)
	}

	_, err = svc.GetByID(ctx, detail.ID, "student-2")
	if !errors.As(err, &permErr) {
		t.Fatalf("expected PermissionError for foreign read, got %v", err)
	}

	// Staff may read any submission.
	if _, err := svc.GetByID(ctx, detail.ID, teacherID); err != nil {
		t.Fatalf("teacher read failed: %v", err)
	}

	// Students may not list an exam's submissions.
	_, err = svc.GetByExam(ctx, examID, repositories.SubmissionFilters{}, studentID)
	if !errors.As(err, &permErr) {
		t.Fatalf("expected PermissionError for student exam listing, got %v", err)
	}
}

func TestSubmissionService_ScoreVisibility(t *testing.T) {
	svc, _, _ := newTestService(t, false) // exam hides scores
	ctx := context.Background()
	detail := startSubmission(t, svc)

	if _, err := svc.SyncAnswers(ctx, detail.ID, &SyncAnswersRequest{
		Answers: []AnswerSync{{QuestionID: "q1", SelectedChoiceIDs: []string{"q1-a"}}},
	}, studentID); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	result, err := svc.Submit(ctx, detail.ID, studentID)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.ScoreVisible || result.TotalScore != nil {
		t.Errorf("student should not see score when exam hides it: %+v", result)
	}

	// The student's own view hides the score too.
	studentView, err := svc.GetByID(ctx, detail.ID, studentID)
	if err != nil {
		t.Fatalf("student read failed: %v", err)
	}
	if studentView.TotalScore != nil {
		t.Error("student view leaked total score")
	}
	for _, a := range studentView.Answers {
		if a.PointsAwarded != nil {
			t.Errorf("student view leaked points for %s", a.QuestionID)
		}
	}

	// Staff always see scores.
	teacherView, err := svc.GetByID(ctx, detail.ID, teacherID)
	if err != nil {
		t.Fatalf("teacher read failed: %v", err)
	}
	if teacherView.TotalScore == nil {
		t.Error("teacher view should include total score")
	}
}

func TestSubmissionService_DetailAnswersFollowQuestionOrder(t *testing.T) {
	svc, repo, _ := newTestService(t, true)
	detail := startSubmission(t, svc)

	// Reverse the stored slot order so it no longer matches the question
	// ordinals.
	slots := repo.slots[detail.ID]
	for i, j := 0, len(slots)-1; i < j; i, j = i+1, j-1 {
		slots[i], slots[j] = slots[j], slots[i]
	}

	got, err := svc.GetByID(context.Background(), detail.ID, studentID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(got.Answers) != len(got.Questions) {
		t.Fatalf("answers = %d, questions = %d", len(got.Answers), len(got.Questions))
	}
	for i, q := range got.Questions {
		if got.Answers[i].QuestionID != q.ID {
			t.Errorf("answer %d is for question %s, want %s", i, got.Answers[i].QuestionID, q.ID)
		}
	}
}

func TestSubmissionService_DetailNeverLeaksAnswerKey(t *testing.T) {
	svc, _, _ := newTestService(t, true)
	detail := startSubmission(t, svc)

	// ChoiceDetail carries no correctness flag by construction; this guards
	// the choice ids as well, which is all a client ever sees.
	for _, q := range detail.Questions {
		for _, c := range q.Choices {
			if c.ID == "" || c.Text == "" {
				t.Errorf("choice in %s missing id or text", q.ID)
			}
		}
	}
}

func TestSubmissionService_GetByExam(t *testing.T) {
	svc, _, _ := newTestService(t, true)
	ctx := context.Background()
	detail := startSubmission(t, svc)

	if _, err := svc.Submit(ctx, detail.ID, studentID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	list, err := svc.GetByExam(ctx, examID, repositories.SubmissionFilters{}, teacherID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if list.Total != 1 || len(list.Submissions) != 1 {
		t.Fatalf("expected one submission, got %+v", list)
	}
	if list.Submissions[0].StudentName != "Student One" {
		t.Errorf("expected enriched student name, got %q", list.Submissions[0].StudentName)
	}
}
