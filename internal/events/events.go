package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types published by the exam engine
const (
	SubmissionStarted   = "submission.started"
	SubmissionSubmitted = "submission.submitted"
)

// Event is the envelope for every message published to the broker.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent creates an event envelope with generated ID and current timestamp
func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    "exam-engine",
		Version:   "1.0",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// SubmissionStartedEvent is emitted when a student opens a new submission.
type SubmissionStartedEvent struct {
	SubmissionID  string    `json:"submission_id"`
	ExamID        string    `json:"exam_id"`
	StudentID     string    `json:"student_id"`
	StartedAt     time.Time `json:"started_at"`
	QuestionCount int       `json:"question_count"`
}

// SubmissionSubmittedEvent is emitted when a submission is finalized and
// graded. Downstream consumers (gradebook, notifications) key off it.
type SubmissionSubmittedEvent struct {
	SubmissionID  string    `json:"submission_id"`
	ExamID        string    `json:"exam_id"`
	StudentID     string    `json:"student_id"`
	SubmittedAt   time.Time `json:"submitted_at"`
	TotalScore    float64   `json:"total_score"`
	MaxScore      float64   `json:"max_score"`
	AnsweredCount int       `json:"answered_count"`
	QuestionCount int       `json:"question_count"`
}
