package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/edusphere/exam-engine/internal/events"
	"github.com/edusphere/exam-engine/internal/models"
	"github.com/edusphere/exam-engine/internal/repositories"
	"github.com/edusphere/exam-engine/internal/scoring"
	"github.com/edusphere/exam-engine/internal/validator"
)

type submissionService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
}

func NewSubmissionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher) SubmissionService {
	return &submissionService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		publisher: publisher,
	}
}

// ===== LIFECYCLE OPERATIONS =====

func (s *submissionService) Start(ctx context.Context, req *StartSubmissionRequest, studentID string, meta *ClientMeta) (*SubmissionDetail, error) {
	s.logger.Info("Starting submission",
		"exam_id", req.ExamID,
		"student_id", studentID)

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// Get exam details
	exam, err := s.repo.Exam().GetByID(ctx, nil, req.ExamID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if exam.Status != models.ExamOpen {
		return nil, ErrExamNotOpen
	}

	now := time.Now()
	if now.Before(exam.StartTime) || now.After(exam.EndTime) {
		return nil, NewBusinessRuleError("exam_window", "current time is outside the exam window")
	}

	var (
		submission    *models.Submission
		questionCount int
	)

	// The duplicate check and all inserts share one transaction. Two
	// concurrent starts both pass the read check at worst; the unique
	// index on (student_id, exam_id) then fails one of the inserts.
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		existing, err := txRepo.Submission().GetByStudentAndExam(ctx, nil, studentID, req.ExamID)
		if err != nil && !repositories.IsNotFoundError(err) {
			return fmt.Errorf("failed to check existing submission: %w", err)
		}
		if existing != nil && err == nil {
			return ErrSubmissionAlreadyExists
		}

		questions, err := txRepo.Question().GetByExam(ctx, nil, req.ExamID)
		if err != nil {
			return fmt.Errorf("failed to load exam questions: %w", err)
		}
		questionCount = len(questions)

		// Grading assumes well-formed choice sets; refuse to start an
		// attempt against a question that violates the authoring rules.
		for _, q := range questions {
			if errs := s.validator.ValidateQuestionChoices(q); len(errs) > 0 {
				s.logger.Error("Malformed question in exam",
					"exam_id", req.ExamID,
					"question_id", q.ID,
					"error", errs.Error())
				return NewBusinessRuleError("exam_questions", "exam contains a malformed question")
			}
		}

		submission = &models.Submission{
			ID:        uuid.NewString(),
			StudentID: studentID,
			ExamID:    req.ExamID,
			StartedAt: now,
		}
		if meta != nil {
			if meta.IPAddress != "" {
				submission.IPAddress = &meta.IPAddress
			}
			if meta.UserAgent != "" {
				submission.UserAgent = &meta.UserAgent
			}
		}
		if len(req.SessionData) > 0 {
			data, err := json.Marshal(req.SessionData)
			if err != nil {
				return fmt.Errorf("failed to marshal session data: %w", err)
			}
			submission.SessionData = data
		}

		if err := txRepo.Submission().Create(ctx, nil, submission); err != nil {
			return fmt.Errorf("failed to create submission: %w", err)
		}

		// Snapshot one answer slot per question. Questions added to the
		// exam later do not join submissions that already started.
		slots := make([]*models.AnsweredQuestion, 0, len(questions))
		for _, q := range questions {
			slots = append(slots, &models.AnsweredQuestion{
				ID:           uuid.NewString(),
				SubmissionID: submission.ID,
				QuestionID:   q.ID,
			})
		}
		if err := txRepo.AnsweredQuestion().CreateBatch(ctx, nil, slots); err != nil {
			return fmt.Errorf("failed to create answer slots: %w", err)
		}

		return nil
	})

	if err != nil {
		if repositories.IsDuplicateKeyError(err) {
			return nil, ErrSubmissionAlreadyExists
		}
		return nil, err
	}

	s.logger.Info("Submission started",
		"submission_id", submission.ID,
		"exam_id", req.ExamID,
		"student_id", studentID)

	s.publishStarted(ctx, submission, questionCount)

	return s.GetByID(ctx, submission.ID, studentID)
}

func (s *submissionService) SyncAnswers(ctx context.Context, submissionID string, req *SyncAnswersRequest, studentID string) (*SyncAnswersResponse, error) {
	s.logger.Info("Syncing answers",
		"submission_id", submissionID,
		"student_id", studentID,
		"answers_count", len(req.Answers))

	// Validate request
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var response *SyncAnswersResponse

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		// Row lock serializes concurrent syncs and a racing submit on the
		// same submission.
		submission, err := txRepo.Submission().GetByIDForUpdate(ctx, nil, submissionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrSubmissionNotFound
			}
			return fmt.Errorf("failed to get submission: %w", err)
		}

		if submission.StudentID != studentID {
			return NewPermissionError(studentID, submissionID, "submission", "sync_answers", "not owned by student")
		}

		if submission.Submitted() {
			return ErrSubmissionSubmitted
		}

		slots, err := txRepo.AnsweredQuestion().GetBySubmission(ctx, nil, submissionID)
		if err != nil {
			return fmt.Errorf("failed to load answer slots: %w", err)
		}
		slotByQuestion := make(map[string]*models.AnsweredQuestion, len(slots))
		for _, slot := range slots {
			slotByQuestion[slot.QuestionID] = slot
		}

		questions, err := txRepo.Question().GetByExam(ctx, nil, submission.ExamID)
		if err != nil {
			return fmt.Errorf("failed to load exam questions: %w", err)
		}
		questionByID := make(map[string]*models.Question, len(questions))
		for _, q := range questions {
			questionByID[q.ID] = q
		}

		// Validate the whole batch before touching anything so a bad
		// entry never leaves a partially applied sync behind.
		if err := s.validateSyncBatch(req.Answers, slotByQuestion, questionByID); err != nil {
			return err
		}

		now := time.Now()
		for _, entry := range req.Answers {
			slot := slotByQuestion[entry.QuestionID]
			question := questionByID[entry.QuestionID]

			if err := txRepo.AnsweredQuestion().ReplaceSelectedChoices(ctx, nil, slot.ID, entry.SelectedChoiceIDs); err != nil {
				return fmt.Errorf("failed to replace selection for question %s: %w", entry.QuestionID, err)
			}

			result, err := scoring.Score(question.Type, question.MaxPoints, question.CorrectChoiceIDs(), entry.SelectedChoiceIDs)
			if err != nil {
				return fmt.Errorf("failed to score question %s: %w", entry.QuestionID, err)
			}

			if result.Answered {
				points := result.Points
				slot.PointsAwarded = &points
				answeredAt := now
				slot.LastAnsweredAt = &answeredAt
			} else {
				// Cleared answers go back to unanswered, not zero.
				slot.PointsAwarded = nil
				slot.LastAnsweredAt = nil
			}

			if err := txRepo.AnsweredQuestion().Update(ctx, nil, slot); err != nil {
				return fmt.Errorf("failed to update answer slot for question %s: %w", entry.QuestionID, err)
			}
		}

		response, err = s.buildSyncResponse(ctx, txRepo, submissionID, req.Answers)
		return err
	})

	if err != nil {
		return nil, err
	}

	return response, nil
}

// ClearAnswer resets one question to unanswered. It is sugar over a sync
// with an empty selection.
func (s *submissionService) ClearAnswer(ctx context.Context, submissionID, questionID, studentID string) (*SyncAnswersResponse, error) {
	s.logger.Info("Clearing answer",
		"submission_id", submissionID,
		"question_id", questionID,
		"student_id", studentID)

	req := &SyncAnswersRequest{
		Answers: []AnswerSync{{
			QuestionID:        questionID,
			SelectedChoiceIDs: []string{},
		}},
	}
	return s.SyncAnswers(ctx, submissionID, req, studentID)
}

func (s *submissionService) Submit(ctx context.Context, submissionID, studentID string) (*SubmitResult, error) {
	s.logger.Info("Submitting submission",
		"submission_id", submissionID,
		"student_id", studentID)

	var (
		result     *SubmitResult
		submission *models.Submission
		firstTime  bool
	)

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		var err error
		submission, err = txRepo.Submission().GetByIDForUpdate(ctx, nil, submissionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrSubmissionNotFound
			}
			return fmt.Errorf("failed to get submission: %w", err)
		}

		if submission.StudentID != studentID {
			return NewPermissionError(studentID, submissionID, "submission", "submit", "not owned by student")
		}

		// Repeated submit returns the stored result unchanged. Network
		// retries and double-clicks must never double-score.
		if submission.Submitted() {
			result, err = s.buildSubmitResult(ctx, txRepo, submission, true)
			return err
		}
		firstTime = true

		total, err := txRepo.Submission().SumAwardedPoints(ctx, nil, submissionID)
		if err != nil {
			return fmt.Errorf("failed to total awarded points: %w", err)
		}

		now := time.Now()
		submission.SubmittedAt = &now
		submission.TotalScore = &total
		if err := txRepo.Submission().Update(ctx, nil, submission); err != nil {
			return fmt.Errorf("failed to finalize submission: %w", err)
		}

		result, err = s.buildSubmitResult(ctx, txRepo, submission, false)
		return err
	})

	if err != nil {
		return nil, err
	}

	if firstTime {
		s.logger.Info("Submission finalized",
			"submission_id", submissionID,
			"student_id", studentID,
			"total_score", *submission.TotalScore)
		s.publishSubmitted(ctx, submission, result)
	}

	return result, nil
}

// ===== GET OPERATIONS =====

func (s *submissionService) GetByID(ctx context.Context, submissionID, userID string) (*SubmissionDetail, error) {
	submission, err := s.repo.Submission().GetByIDWithAnswers(ctx, nil, submissionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	isStaff, err := s.canReadOthers(ctx, submission, userID, "view")
	if err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, submission.ExamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	questions, err := s.repo.Question().GetByExam(ctx, nil, submission.ExamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load exam questions: %w", err)
	}

	return s.buildDetail(submission, exam, questions, isStaff), nil
}

func (s *submissionService) GetProgress(ctx context.Context, submissionID, userID string) (*ProgressSnapshot, error) {
	submission, err := s.repo.Submission().GetByID(ctx, nil, submissionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	if _, err := s.canReadOthers(ctx, submission, userID, "view_progress"); err != nil {
		return nil, err
	}

	answered, total, err := s.repo.AnsweredQuestion().Progress(ctx, nil, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute progress: %w", err)
	}

	return newProgressSnapshot(submissionID, answered, total), nil
}

// ===== LIST OPERATIONS =====

func (s *submissionService) GetByStudent(ctx context.Context, studentID string, filters repositories.SubmissionFilters) (*SubmissionListResponse, error) {
	submissions, total, err := s.repo.Submission().GetByStudent(ctx, nil, studentID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	summaries := make([]*SubmissionSummary, 0, len(submissions))
	for _, sub := range submissions {
		summary := s.toSummary(sub)

		// Students only see their score once submitted and the exam
		// allows it.
		if summary.TotalScore != nil {
			exam, err := s.repo.Exam().GetByID(ctx, nil, sub.ExamID)
			if err != nil || !exam.ShowScores {
				summary.TotalScore = nil
			}
		}
		summaries = append(summaries, summary)
	}

	return s.toListResponse(summaries, total, filters), nil
}

func (s *submissionService) GetByExam(ctx context.Context, examID string, filters repositories.SubmissionFilters, userID string) (*SubmissionListResponse, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsStaff() {
		return nil, NewPermissionError(userID, examID, "exam", "list_submissions", "requires teacher or admin role")
	}

	exists, err := s.repo.Exam().Exists(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to check exam: %w", err)
	}
	if !exists {
		return nil, ErrExamNotFound
	}

	submissions, total, err := s.repo.Submission().GetByExam(ctx, nil, examID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	summaries := make([]*SubmissionSummary, 0, len(submissions))
	studentIDs := make([]string, 0, len(submissions))
	for _, sub := range submissions {
		summaries = append(summaries, s.toSummary(sub))
		studentIDs = append(studentIDs, sub.StudentID)
	}

	// Best effort name enrichment from the identity provider.
	if users, err := s.repo.User().GetByIDs(ctx, studentIDs); err == nil {
		nameByID := make(map[string]string, len(users))
		for _, u := range users {
			nameByID[u.ID] = u.FullName
		}
		for _, summary := range summaries {
			summary.StudentName = nameByID[summary.StudentID]
		}
	}

	return s.toListResponse(summaries, total, filters), nil
}
