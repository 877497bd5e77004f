package services

import (
	"context"
	"time"

	"github.com/edusphere/exam-engine/internal/models"
	"github.com/edusphere/exam-engine/internal/repositories"
)

// ===== REQUEST/RESPONSE DTOs =====

type StartSubmissionRequest struct {
	ExamID      string                 `json:"exam_id" validate:"required,max=36"`
	SessionData map[string]interface{} `json:"session_data"`
}

// ClientMeta carries request-level metadata recorded on the submission row.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

type AnswerSync struct {
	QuestionID        string   `json:"question_id" validate:"required,max=36"`
	SelectedChoiceIDs []string `json:"selected_choice_ids" validate:"max=50,dive,required"`
}

type SyncAnswersRequest struct {
	Answers []AnswerSync `json:"answers" validate:"required,min=1,max=200,dive"`
}

// AnswerAck echoes the stored state of one answer slot after a sync.
type AnswerAck struct {
	QuestionID        string     `json:"question_id"`
	Answered          bool       `json:"answered"`
	SelectedChoiceIDs []string   `json:"selected_choice_ids"`
	LastAnsweredAt    *time.Time `json:"last_answered_at,omitempty"`
}

type SyncAnswersResponse struct {
	SubmissionID string           `json:"submission_id"`
	Answers      []AnswerAck      `json:"answers"`
	Progress     ProgressSnapshot `json:"progress"`
}

type ProgressSnapshot struct {
	SubmissionID string `json:"submission_id"`
	Answered     int    `json:"answered"`
	Total        int    `json:"total"`
	// Percentage is rounded to the nearest whole percent.
	Percentage float64 `json:"percentage"`
}

// ChoiceDetail deliberately has no correctness field. Answer keys never
// leave the service layer.
type ChoiceDetail struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}

type QuestionDetail struct {
	ID        string              `json:"id"`
	Text      string              `json:"text"`
	Type      models.QuestionType `json:"type"`
	MaxPoints float64             `json:"max_points"`
	Position  int                 `json:"position"`
	Choices   []ChoiceDetail      `json:"choices"`
}

type AnsweredQuestionDetail struct {
	QuestionID        string     `json:"question_id"`
	Answered          bool       `json:"answered"`
	SelectedChoiceIDs []string   `json:"selected_choice_ids"`
	LastAnsweredAt    *time.Time `json:"last_answered_at,omitempty"`

	// Populated only when the caller may see scores.
	PointsAwarded *float64 `json:"points_awarded,omitempty"`
}

type SubmissionDetail struct {
	ID          string                  `json:"id"`
	ExamID      string                  `json:"exam_id"`
	ExamTitle   string                  `json:"exam_title"`
	StudentID   string                  `json:"student_id"`
	Status      models.SubmissionStatus `json:"status"`
	StartedAt   time.Time               `json:"started_at"`
	SubmittedAt *time.Time              `json:"submitted_at,omitempty"`

	// Populated only when the caller may see scores.
	TotalScore *float64 `json:"total_score,omitempty"`
	MaxScore   float64  `json:"max_score"`

	Questions []QuestionDetail         `json:"questions"`
	Answers   []AnsweredQuestionDetail `json:"answers"`
	Progress  ProgressSnapshot         `json:"progress"`
}

type SubmitResult struct {
	SubmissionID  string    `json:"submission_id"`
	ExamID        string    `json:"exam_id"`
	SubmittedAt   time.Time `json:"submitted_at"`
	AnsweredCount int       `json:"answered_count"`
	QuestionCount int       `json:"question_count"`

	// AlreadySubmitted marks a repeated submit that returned the stored
	// result instead of grading again.
	AlreadySubmitted bool `json:"already_submitted"`

	ScoreVisible bool     `json:"score_visible"`
	TotalScore   *float64 `json:"total_score,omitempty"`
	MaxScore     float64  `json:"max_score"`
}

type SubmissionSummary struct {
	ID          string                  `json:"id"`
	ExamID      string                  `json:"exam_id"`
	StudentID   string                  `json:"student_id"`
	StudentName string                  `json:"student_name,omitempty"`
	Status      models.SubmissionStatus `json:"status"`
	StartedAt   time.Time               `json:"started_at"`
	SubmittedAt *time.Time              `json:"submitted_at,omitempty"`
	TotalScore  *float64                `json:"total_score,omitempty"`
}

type SubmissionListResponse struct {
	Submissions []*SubmissionSummary `json:"submissions"`
	Total       int64                `json:"total"`
	Page        int                  `json:"page"`
	Size        int                  `json:"size"`
}

// ===== REPORT DTOs =====

type ExamReport struct {
	ExamID          string               `json:"exam_id"`
	Title           string               `json:"title"`
	QuestionCount   int                  `json:"question_count"`
	MaxScore        float64              `json:"max_score"`
	SubmissionCount int64                `json:"submission_count"`
	SubmittedCount  int64                `json:"submitted_count"`
	AverageScore    float64              `json:"average_score"`
	HighestScore    float64              `json:"highest_score"`
	LowestScore     float64              `json:"lowest_score"`
	Submissions     []*SubmissionSummary `json:"submissions"`
}

// ===== SERVICE INTERFACES =====

type SubmissionService interface {
	// Lifecycle
	Start(ctx context.Context, req *StartSubmissionRequest, studentID string, meta *ClientMeta) (*SubmissionDetail, error)
	SyncAnswers(ctx context.Context, submissionID string, req *SyncAnswersRequest, studentID string) (*SyncAnswersResponse, error)
	ClearAnswer(ctx context.Context, submissionID, questionID, studentID string) (*SyncAnswersResponse, error)
	Submit(ctx context.Context, submissionID, studentID string) (*SubmitResult, error)

	// Get operations
	GetByID(ctx context.Context, submissionID, userID string) (*SubmissionDetail, error)
	GetProgress(ctx context.Context, submissionID, userID string) (*ProgressSnapshot, error)

	// List operations
	GetByStudent(ctx context.Context, studentID string, filters repositories.SubmissionFilters) (*SubmissionListResponse, error)
	GetByExam(ctx context.Context, examID string, filters repositories.SubmissionFilters, userID string) (*SubmissionListResponse, error)
}

type ReportService interface {
	GetExamReport(ctx context.Context, examID, userID string) (*ExamReport, error)
	ExportExamResults(ctx context.Context, examID, userID string) ([]byte, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Submission() SubmissionService
	Report() ReportService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
