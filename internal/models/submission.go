package models

import (
	"time"

	"gorm.io/datatypes"
)

type SubmissionStatus string

const (
	SubmissionInProgress SubmissionStatus = "in_progress"
	SubmissionSubmitted  SubmissionStatus = "submitted"
)

// Submission is one student's attempt at one exam. At most one row exists
// per (student, exam); the unique index backs the in-transaction duplicate
// check against concurrent starts.
type Submission struct {
	ID        string `json:"id" gorm:"primaryKey;size:36"`
	StudentID string `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_submissions_student_exam"`
	ExamID    string `json:"exam_id" gorm:"not null;size:36;index;uniqueIndex:idx_submissions_student_exam"`

	// Timing
	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	SubmittedAt *time.Time `json:"submitted_at"`

	// Scoring. Nil until submit; frozen afterwards, even if the question
	// bank changes later.
	TotalScore *float64 `json:"total_score"`

	// Metadata
	IPAddress   *string        `json:"ip_address" gorm:"size:45"`
	UserAgent   *string        `json:"user_agent" gorm:"type:text"`
	SessionData datatypes.JSON `json:"session_data" gorm:"type:jsonb"` // Browser info, screen resolution, etc.

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Answers []AnsweredQuestion `json:"answers" gorm:"foreignKey:SubmissionID"`
}

func (Submission) TableName() string {
	return "submissions"
}

// Submitted reports whether the submission has been finalized.
func (s *Submission) Submitted() bool {
	return s.SubmittedAt != nil
}

func (s *Submission) Status() SubmissionStatus {
	if s.Submitted() {
		return SubmissionSubmitted
	}
	return SubmissionInProgress
}

// AnsweredQuestion is the per-question slot inside a submission. One row is
// created for every question in the exam when the submission starts; the
// set never changes afterwards, even if questions are later added to or
// removed from the exam.
type AnsweredQuestion struct {
	ID           string `json:"id" gorm:"primaryKey;size:36"`
	SubmissionID string `json:"submission_id" gorm:"not null;size:36;uniqueIndex:idx_answers_submission_question"`
	QuestionID   string `json:"question_id" gorm:"not null;size:36;index;uniqueIndex:idx_answers_submission_question"`

	// Nil means unanswered, distinct from an answered score of zero.
	PointsAwarded  *float64   `json:"points_awarded"`
	LastAnsweredAt *time.Time `json:"last_answered_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Selected []SelectedChoice `json:"selected" gorm:"foreignKey:AnsweredQuestionID"`
}

func (AnsweredQuestion) TableName() string {
	return "answered_questions"
}

// Answered reports whether the student currently has a non-empty selection.
func (a *AnsweredQuestion) Answered() bool {
	return len(a.Selected) > 0
}

// SelectedChoiceIDs returns the current selection as a plain id list.
func (a *AnsweredQuestion) SelectedChoiceIDs() []string {
	ids := make([]string, 0, len(a.Selected))
	for _, sc := range a.Selected {
		ids = append(ids, sc.ChoiceID)
	}
	return ids
}

// SelectedChoice joins an answered question to one selected choice. The set
// of rows per answered question is replaced wholesale on every sync, never
// diffed.
type SelectedChoice struct {
	AnsweredQuestionID string `json:"answered_question_id" gorm:"primaryKey;size:36"`
	ChoiceID           string `json:"choice_id" gorm:"primaryKey;size:36"`

	CreatedAt time.Time `json:"created_at"`
}

func (SelectedChoice) TableName() string {
	return "selected_choices"
}
