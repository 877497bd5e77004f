package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/edusphere/exam-engine/internal/events"
	"github.com/edusphere/exam-engine/internal/models"
	"github.com/edusphere/exam-engine/internal/repositories"
	"github.com/edusphere/exam-engine/internal/validator"
)

// ===== SYNC HELPERS =====

// validateSyncBatch checks every entry of a sync batch against the
// submission snapshot and the question bank. Nothing is written until the
// whole batch passes.
func (s *submissionService) validateSyncBatch(entries []AnswerSync, slotByQuestion map[string]*models.AnsweredQuestion, questionByID map[string]*models.Question) error {
	for _, entry := range entries {
		if _, ok := slotByQuestion[entry.QuestionID]; !ok {
			return fmt.Errorf("question %s: %w", entry.QuestionID, ErrQuestionNotInSubmission)
		}

		question, ok := questionByID[entry.QuestionID]
		if !ok {
			// Slot exists but the question left the bank. The snapshot
			// keeps the slot; it just cannot be re-answered.
			return fmt.Errorf("question %s: %w", entry.QuestionID, ErrQuestionNotInSubmission)
		}

		for _, choiceID := range entry.SelectedChoiceIDs {
			if !question.HasChoice(choiceID) {
				return validator.ValidationErrors{{
					Field:   "selected_choice_ids",
					Message: fmt.Sprintf("choice %s does not belong to question %s", choiceID, entry.QuestionID),
					Value:   choiceID,
					Rule:    "business_logic",
				}}
			}
		}

		if question.Type == models.QuestionSingle && len(dedupe(entry.SelectedChoiceIDs)) > 1 {
			return validator.ValidationErrors{{
				Field:   "selected_choice_ids",
				Message: fmt.Sprintf("question %s accepts a single choice", entry.QuestionID),
				Value:   len(entry.SelectedChoiceIDs),
				Rule:    "business_logic",
			}}
		}
	}
	return nil
}

func (s *submissionService) buildSyncResponse(ctx context.Context, txRepo repositories.Repository, submissionID string, entries []AnswerSync) (*SyncAnswersResponse, error) {
	slots, err := txRepo.AnsweredQuestion().GetBySubmission(ctx, nil, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload answer slots: %w", err)
	}
	slotByQuestion := make(map[string]*models.AnsweredQuestion, len(slots))

	answered := 0
	for _, slot := range slots {
		slotByQuestion[slot.QuestionID] = slot
		if slot.Answered() {
			answered++
		}
	}

	acks := make([]AnswerAck, 0, len(entries))
	for _, entry := range entries {
		slot := slotByQuestion[entry.QuestionID]
		if slot == nil {
			continue
		}
		acks = append(acks, AnswerAck{
			QuestionID:        slot.QuestionID,
			Answered:          slot.Answered(),
			SelectedChoiceIDs: slot.SelectedChoiceIDs(),
			LastAnsweredAt:    slot.LastAnsweredAt,
		})
	}

	return &SyncAnswersResponse{
		SubmissionID: submissionID,
		Answers:      acks,
		Progress:     *newProgressSnapshot(submissionID, int64(answered), int64(len(slots))),
	}, nil
}

// ===== SUBMIT HELPERS =====

func (s *submissionService) buildSubmitResult(ctx context.Context, txRepo repositories.Repository, submission *models.Submission, alreadySubmitted bool) (*SubmitResult, error) {
	answered, total, err := txRepo.AnsweredQuestion().Progress(ctx, nil, submission.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute progress: %w", err)
	}

	exam, err := txRepo.Exam().GetByID(ctx, nil, submission.ExamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	result := &SubmitResult{
		SubmissionID:     submission.ID,
		ExamID:           submission.ExamID,
		AnsweredCount:    int(answered),
		QuestionCount:    int(total),
		AlreadySubmitted: alreadySubmitted,
		ScoreVisible:     exam.ShowScores,
		MaxScore:         maxScoreOf(exam, nil),
	}
	if submission.SubmittedAt != nil {
		result.SubmittedAt = *submission.SubmittedAt
	}
	if exam.ShowScores {
		result.TotalScore = submission.TotalScore
	}
	return result, nil
}

// ===== VIEW HELPERS =====

// canReadOthers enforces read access. Owners always pass; anyone else must
// hold a staff role. The returned flag reports whether the caller is staff.
func (s *submissionService) canReadOthers(ctx context.Context, submission *models.Submission, userID, action string) (bool, error) {
	if submission.StudentID == userID {
		return false, nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsStaff() {
		return false, NewPermissionError(userID, submission.ID, "submission", action, "not owned by student")
	}
	return true, nil
}

func (s *submissionService) buildDetail(submission *models.Submission, exam *models.Exam, questions []*models.Question, isStaff bool) *SubmissionDetail {
	showScores := isStaff || (submission.Submitted() && exam.ShowScores)

	detail := &SubmissionDetail{
		ID:          submission.ID,
		ExamID:      submission.ExamID,
		ExamTitle:   exam.Title,
		StudentID:   submission.StudentID,
		Status:      submission.Status(),
		StartedAt:   submission.StartedAt,
		SubmittedAt: submission.SubmittedAt,
		MaxScore:    maxScoreOf(exam, questions),
	}
	if showScores {
		detail.TotalScore = submission.TotalScore
	}

	questionByID := make(map[string]*models.Question, len(questions))
	for _, q := range questions {
		questionByID[q.ID] = q
		choices := make([]ChoiceDetail, 0, len(q.Choices))
		for _, c := range q.Choices {
			choices = append(choices, ChoiceDetail{
				ID:       c.ID,
				Text:     c.Text,
				Position: c.Position,
			})
		}
		detail.Questions = append(detail.Questions, QuestionDetail{
			ID:        q.ID,
			Text:      q.Text,
			Type:      q.Type,
			MaxPoints: q.MaxPoints,
			Position:  q.Position,
			Choices:   choices,
		})
	}

	// Storage returns the slots in insertion order; sort them onto the
	// question ordinals so answers and questions line up for clients.
	sort.SliceStable(submission.Answers, func(i, j int) bool {
		qi := questionByID[submission.Answers[i].QuestionID]
		qj := questionByID[submission.Answers[j].QuestionID]
		if qi == nil || qj == nil {
			return qi != nil
		}
		return qi.Position < qj.Position
	})

	answered := 0
	for i := range submission.Answers {
		slot := &submission.Answers[i]
		if slot.Answered() {
			answered++
		}
		answerDetail := AnsweredQuestionDetail{
			QuestionID:        slot.QuestionID,
			Answered:          slot.Answered(),
			SelectedChoiceIDs: slot.SelectedChoiceIDs(),
			LastAnsweredAt:    slot.LastAnsweredAt,
		}
		if showScores {
			answerDetail.PointsAwarded = slot.PointsAwarded
		}
		detail.Answers = append(detail.Answers, answerDetail)
	}

	detail.Progress = *newProgressSnapshot(submission.ID, int64(answered), int64(len(submission.Answers)))
	return detail
}

func (s *submissionService) toSummary(submission *models.Submission) *SubmissionSummary {
	return &SubmissionSummary{
		ID:          submission.ID,
		ExamID:      submission.ExamID,
		StudentID:   submission.StudentID,
		Status:      submission.Status(),
		StartedAt:   submission.StartedAt,
		SubmittedAt: submission.SubmittedAt,
		TotalScore:  submission.TotalScore,
	}
}

func (s *submissionService) toListResponse(summaries []*SubmissionSummary, total int64, filters repositories.SubmissionFilters) *SubmissionListResponse {
	size := filters.Limit
	if size <= 0 {
		size = len(summaries)
	}
	page := 1
	if size > 0 {
		page = (filters.Offset / size) + 1
	}
	return &SubmissionListResponse{
		Submissions: summaries,
		Total:       total,
		Page:        page,
		Size:        size,
	}
}

func newProgressSnapshot(submissionID string, answered, total int64) *ProgressSnapshot {
	snapshot := &ProgressSnapshot{
		SubmissionID: submissionID,
		Answered:     int(answered),
		Total:        int(total),
	}
	if total > 0 {
		snapshot.Percentage = math.Round(float64(answered) / float64(total) * 100)
	}
	return snapshot
}

// maxScoreOf prefers the catalog's total when set, falling back to summing
// the question bank.
func maxScoreOf(exam *models.Exam, questions []*models.Question) float64 {
	if exam.TotalPoints > 0 {
		return exam.TotalPoints
	}
	var total float64
	for _, q := range questions {
		total += q.MaxPoints
	}
	return total
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// ===== EVENT HELPERS =====

func (s *submissionService) publishStarted(ctx context.Context, submission *models.Submission, questionCount int) {
	if s.publisher == nil {
		return
	}

	event := events.NewEvent(events.SubmissionStarted, &events.SubmissionStartedEvent{
		SubmissionID:  submission.ID,
		ExamID:        submission.ExamID,
		StudentID:     submission.StudentID,
		StartedAt:     submission.StartedAt,
		QuestionCount: questionCount,
	})
	if err := s.publisher.Publish(ctx, events.SubmissionStarted, event); err != nil {
		s.logger.Error("Failed to publish submission started event",
			"submission_id", submission.ID,
			"error", err)
	}
}

func (s *submissionService) publishSubmitted(ctx context.Context, submission *models.Submission, result *SubmitResult) {
	if s.publisher == nil {
		return
	}

	payload := &events.SubmissionSubmittedEvent{
		SubmissionID:  submission.ID,
		ExamID:        submission.ExamID,
		StudentID:     submission.StudentID,
		MaxScore:      result.MaxScore,
		AnsweredCount: result.AnsweredCount,
		QuestionCount: result.QuestionCount,
	}
	if submission.SubmittedAt != nil {
		payload.SubmittedAt = *submission.SubmittedAt
	}
	if submission.TotalScore != nil {
		payload.TotalScore = *submission.TotalScore
	}

	event := events.NewEvent(events.SubmissionSubmitted, payload)
	if err := s.publisher.Publish(ctx, events.SubmissionSubmitted, event); err != nil {
		s.logger.Error("Failed to publish submission submitted event",
			"submission_id", submission.ID,
			"error", err)
	}
}
