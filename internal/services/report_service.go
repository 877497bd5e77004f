package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/edusphere/exam-engine/internal/models"
	"github.com/edusphere/exam-engine/internal/repositories"
)

type reportService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewReportService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) ReportService {
	return &reportService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

func (s *reportService) GetExamReport(ctx context.Context, examID, userID string) (*ExamReport, error) {
	s.logger.Info("Building exam report",
		"exam_id", examID,
		"user_id", userID)

	exam, questions, submissions, err := s.loadReportData(ctx, examID, userID)
	if err != nil {
		return nil, err
	}

	report := &ExamReport{
		ExamID:          exam.ID,
		Title:           exam.Title,
		QuestionCount:   len(questions),
		MaxScore:        maxScoreOf(exam, questions),
		SubmissionCount: int64(len(submissions)),
	}

	var scoreSum float64
	for _, sub := range submissions {
		summary := &SubmissionSummary{
			ID:          sub.ID,
			ExamID:      sub.ExamID,
			StudentID:   sub.StudentID,
			Status:      sub.Status(),
			StartedAt:   sub.StartedAt,
			SubmittedAt: sub.SubmittedAt,
			TotalScore:  sub.TotalScore,
		}
		report.Submissions = append(report.Submissions, summary)

		if !sub.Submitted() || sub.TotalScore == nil {
			continue
		}
		score := *sub.TotalScore
		report.SubmittedCount++
		scoreSum += score
		if report.SubmittedCount == 1 {
			report.HighestScore = score
			report.LowestScore = score
		} else {
			if score > report.HighestScore {
				report.HighestScore = score
			}
			if score < report.LowestScore {
				report.LowestScore = score
			}
		}
	}
	if report.SubmittedCount > 0 {
		report.AverageScore = scoreSum / float64(report.SubmittedCount)
	}

	s.enrichStudentNames(ctx, report.Submissions)

	return report, nil
}

// ExportExamResults renders the exam report as an xlsx workbook.
func (s *reportService) ExportExamResults(ctx context.Context, examID, userID string) ([]byte, error) {
	report, err := s.GetExamReport(ctx, examID, userID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Results"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := []string{"Submission ID", "Student ID", "Student Name", "Status", "Started At", "Submitted At", "Score", "Max Score"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, sub := range report.Submissions {
		values := []interface{}{
			sub.ID,
			sub.StudentID,
			sub.StudentName,
			string(sub.Status),
			sub.StartedAt.Format(time.RFC3339),
			"",
			"",
			report.MaxScore,
		}
		if sub.SubmittedAt != nil {
			values[5] = sub.SubmittedAt.Format(time.RFC3339)
		}
		if sub.TotalScore != nil {
			values[6] = *sub.TotalScore
		}

		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, fmt.Errorf("failed to build cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", row+2, err)
			}
		}
	}

	// Summary block below the table.
	summaryRow := len(report.Submissions) + 3
	summary := [][2]interface{}{
		{"Exam", report.Title},
		{"Questions", report.QuestionCount},
		{"Submissions", report.SubmissionCount},
		{"Submitted", report.SubmittedCount},
		{"Average score", report.AverageScore},
		{"Highest score", report.HighestScore},
		{"Lowest score", report.LowestScore},
	}
	for i, pair := range summary {
		labelCell, _ := excelize.CoordinatesToCellName(1, summaryRow+i)
		valueCell, _ := excelize.CoordinatesToCellName(2, summaryRow+i)
		if err := f.SetCellValue(sheet, labelCell, pair[0]); err != nil {
			return nil, fmt.Errorf("failed to write summary: %w", err)
		}
		if err := f.SetCellValue(sheet, valueCell, pair[1]); err != nil {
			return nil, fmt.Errorf("failed to write summary: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}

	s.logger.Info("Exam results exported",
		"exam_id", examID,
		"rows", len(report.Submissions))

	return buf.Bytes(), nil
}

func (s *reportService) loadReportData(ctx context.Context, examID, userID string) (*models.Exam, []*models.Question, []*models.Submission, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsStaff() {
		return nil, nil, nil, NewPermissionError(userID, examID, "exam", "report", "requires teacher or admin role")
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, nil, ErrExamNotFound
		}
		return nil, nil, nil, fmt.Errorf("failed to get exam: %w", err)
	}

	questions, err := s.repo.Question().GetByExam(ctx, nil, examID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load exam questions: %w", err)
	}

	submissions, _, err := s.repo.Submission().GetByExam(ctx, nil, examID, repositories.SubmissionFilters{
		SortBy:    "started_at",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	return exam, questions, submissions, nil
}

func (s *reportService) enrichStudentNames(ctx context.Context, summaries []*SubmissionSummary) {
	ids := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		ids = append(ids, summary.StudentID)
	}

	users, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("Failed to resolve student names", "error", err)
		return
	}

	nameByID := make(map[string]string, len(users))
	for _, u := range users {
		nameByID[u.ID] = u.FullName
	}
	for _, summary := range summaries {
		summary.StudentName = nameByID[summary.StudentID]
	}
}
