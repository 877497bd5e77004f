package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/edusphere/exam-engine/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type SubmissionFilters struct {
	ExamID    *string    `json:"exam_id"`
	StudentID *string    `json:"student_id"`
	Submitted *bool      `json:"submitted"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`    // "created_at", "started_at", "submitted_at"
	SortOrder string     `json:"sort_order"` // "asc", "desc"
}

type UserFilters struct {
	Query  string
	Limit  int
	Offset int
}

// ===== REPOSITORY INTERFACES =====

// SubmissionRepository owns the submission rows.
type SubmissionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Submission, error)
	// GetByIDForUpdate takes a row lock on the submission for the duration
	// of the surrounding transaction, serializing sync and submit on the
	// same attempt.
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id string) (*models.Submission, error)
	GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id string) (*models.Submission, error)
	GetByStudentAndExam(ctx context.Context, tx *gorm.DB, studentID, examID string) (*models.Submission, error)
	Update(ctx context.Context, tx *gorm.DB, submission *models.Submission) error

	List(ctx context.Context, tx *gorm.DB, filters SubmissionFilters) ([]*models.Submission, int64, error)
	GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters SubmissionFilters) ([]*models.Submission, int64, error)
	GetByExam(ctx context.Context, tx *gorm.DB, examID string, filters SubmissionFilters) ([]*models.Submission, int64, error)

	// SumAwardedPoints totals points_awarded over the submission's answer
	// slots, treating unanswered as zero.
	SumAwardedPoints(ctx context.Context, tx *gorm.DB, submissionID string) (float64, error)
}

// AnsweredQuestionRepository owns the per-question answer slots and their
// selected-choice join rows.
type AnsweredQuestionRepository interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.AnsweredQuestion) error
	GetBySubmission(ctx context.Context, tx *gorm.DB, submissionID string) ([]*models.AnsweredQuestion, error)
	GetBySubmissionAndQuestion(ctx context.Context, tx *gorm.DB, submissionID, questionID string) (*models.AnsweredQuestion, error)
	Update(ctx context.Context, tx *gorm.DB, answer *models.AnsweredQuestion) error

	// ReplaceSelectedChoices discards the slot's entire selection and
	// writes the supplied set. An empty set clears the answer.
	ReplaceSelectedChoices(ctx context.Context, tx *gorm.DB, answeredQuestionID string, choiceIDs []string) error

	// Progress returns (answered, total) slot counts for a submission.
	Progress(ctx context.Context, tx *gorm.DB, submissionID string) (int64, int64, error)
}

// ExamRepository reads exam metadata from the exam catalog. This service
// never writes through it.
type ExamRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Exam, error)
	Exists(ctx context.Context, tx *gorm.DB, id string) (bool, error)
}

// QuestionRepository reads questions and choices from the question bank,
// correctness flags included. This service never writes through it.
type QuestionRepository interface {
	GetByExam(ctx context.Context, tx *gorm.DB, examID string) ([]*models.Question, error)
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Question, error)
}

// UserRepository reads caller identity from the identity provider.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	HasRole(ctx context.Context, id string, role models.UserRole) (bool, error)
}
