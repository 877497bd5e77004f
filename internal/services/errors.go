package services

import (
	"errors"
	"fmt"
)

// ===== SENTINEL ERRORS =====

var (
	ErrSubmissionNotFound      = errors.New("submission not found")
	ErrExamNotFound            = errors.New("exam not found")
	ErrSubmissionAlreadyExists = errors.New("a submission already exists for this exam")
	ErrSubmissionSubmitted     = errors.New("submission has already been submitted")
	ErrExamNotOpen             = errors.New("exam is not open for submissions")
	ErrQuestionNotInSubmission = errors.New("question is not part of this submission")
)

// ===== PERMISSION ERRORS =====

// PermissionError is returned when a caller may not act on a resource.
// Handlers translate it into a generic forbidden response without the
// reason, which stays in the logs only.
type PermissionError struct {
	UserID     string
	ResourceID string
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %s: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID, resourceID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// ===== BUSINESS RULE ERRORS =====

// BusinessRuleError is returned when a request is well-formed but violates
// a domain rule, such as starting a submission for a closed exam.
type BusinessRuleError struct {
	Rule    string
	Message string
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
	}
}
