package models

import (
	"time"
)

type ExamStatus string

const (
	ExamNotOpen ExamStatus = "not_open"
	ExamOpen    ExamStatus = "open"
	ExamClosed  ExamStatus = "closed"
)

type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
)

// Exam is owned by the exam catalog. This service only reads it; the
// catalog service is responsible for migrations and writes.
type Exam struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	Title       string     `json:"title" gorm:"not null;size:200"`
	StartTime   time.Time  `json:"start_time" gorm:"not null"`
	EndTime     time.Time  `json:"end_time" gorm:"not null"`
	Duration    int        `json:"duration" gorm:"not null"` // minutes
	TotalPoints float64    `json:"total_points"`
	Status      ExamStatus `json:"status" gorm:"default:not_open;index"`
	ShowScores  bool       `json:"show_scores"` // whether students may see their score after submit

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Exam) TableName() string {
	return "exams"
}

// Question is owned by the question bank, read-only here.
type Question struct {
	ID        string       `json:"id" gorm:"primaryKey;size:36"`
	ExamID    string       `json:"exam_id" gorm:"not null;index;size:36"`
	Text      string       `json:"text" gorm:"type:text;not null"`
	Type      QuestionType `json:"type" gorm:"not null"`
	MaxPoints float64      `json:"max_points" gorm:"not null"`
	Position  int          `json:"position" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Choices []Choice `json:"choices" gorm:"foreignKey:QuestionID"`
}

func (Question) TableName() string {
	return "questions"
}

// CorrectChoiceIDs returns the ids of all choices flagged correct, in
// choice order.
func (q *Question) CorrectChoiceIDs() []string {
	ids := make([]string, 0, len(q.Choices))
	for _, c := range q.Choices {
		if c.IsCorrect {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// HasChoice reports whether the given choice id belongs to this question.
func (q *Question) HasChoice(choiceID string) bool {
	for _, c := range q.Choices {
		if c.ID == choiceID {
			return true
		}
	}
	return false
}

type Choice struct {
	ID         string `json:"id" gorm:"primaryKey;size:36"`
	QuestionID string `json:"question_id" gorm:"not null;index;size:36"`
	Text       string `json:"text" gorm:"type:text;not null"`
	Position   int    `json:"position" gorm:"not null;default:0"`
	IsCorrect  bool   `json:"is_correct"`

	CreatedAt time.Time `json:"created_at"`
}

func (Choice) TableName() string {
	return "choices"
}
