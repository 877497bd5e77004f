package validator

import (
	"fmt"

	"github.com/edusphere/exam-engine/internal/models"
)

// Question authoring rules. The grading algorithm assumes these hold for
// every question it sees, so they are enforced wherever questions are
// created or edited, before a question becomes visible to students.
//
// Rules:
//   - a question has at least two choices
//   - a single-answer question has exactly one correct choice
//   - a multi-answer question has at least one and strictly fewer than all
//     choices marked correct

// ValidateQuestionChoices checks the choice set of a question against the
// authoring rules. Returns nil when the question is well-formed.
func (v *Validator) ValidateQuestionChoices(q *models.Question) ValidationErrors {
	var errs ValidationErrors

	if len(q.Choices) < 2 {
		errs = append(errs, ValidationError{
			Field:   "choices",
			Message: "question must have at least 2 choices",
			Value:   len(q.Choices),
			Rule:    "business_logic",
		})
		return errs
	}

	correctCount := 0
	for _, c := range q.Choices {
		if c.IsCorrect {
			correctCount++
		}
	}

	switch q.Type {
	case models.QuestionSingle:
		if correctCount != 1 {
			errs = append(errs, ValidationError{
				Field:   "choices",
				Message: fmt.Sprintf("single-answer question must have exactly 1 correct choice, has %d", correctCount),
				Value:   correctCount,
				Rule:    "business_logic",
			})
		}
	case models.QuestionMultiple:
		if correctCount < 1 || correctCount >= len(q.Choices) {
			errs = append(errs, ValidationError{
				Field:   "choices",
				Message: fmt.Sprintf("multi-answer question must have between 1 and %d correct choices, has %d", len(q.Choices)-1, correctCount),
				Value:   correctCount,
				Rule:    "business_logic",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported question type %q", q.Type),
			Value:   q.Type,
			Rule:    "business_logic",
		})
	}

	return errs
}
