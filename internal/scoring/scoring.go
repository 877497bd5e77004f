// Package scoring holds the pure grading function for multiple-choice
// questions. It has no dependencies on storage or transport so it can be
// exercised exhaustively in isolation.
package scoring

import (
	"fmt"
	"math"

	"github.com/edusphere/exam-engine/internal/models"
)

// Result is the outcome of scoring one question. Answered distinguishes an
// empty selection (no score contribution) from an answered question that
// scored zero.
type Result struct {
	Answered bool
	Points   float64
}

// InvariantError reports an answer key that violates the authoring
// invariants scoring depends on (exactly one correct choice for single
// questions, at least one for multiple). Grading must fail fast rather
// than guess or divide by zero.
type InvariantError struct {
	QuestionType models.QuestionType
	CorrectCount int
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("scoring: %s question has %d correct choices", e.QuestionType, e.CorrectCount)
}

// Score grades a selection against the question's correct-choice set.
//
// An empty selection is unanswered and contributes nothing. A single-answer
// question awards maxPoints for exactly the one correct choice and zero for
// anything else, including over-selection (callers are expected to reject
// over-selection before it gets here, but legacy payloads score zero).
// A multi-answer question earns partial credit:
//
//	accuracy = max(0, (correctSelected - incorrectSelected) / totalCorrect)
//	points   = accuracy * maxPoints
func Score(questionType models.QuestionType, maxPoints float64, correctChoiceIDs, selectedChoiceIDs []string) (Result, error) {
	if maxPoints < 0 {
		maxPoints = 0
	}

	correct := toSet(correctChoiceIDs)
	selected := toSet(selectedChoiceIDs)

	switch questionType {
	case models.QuestionSingle:
		if len(correct) != 1 {
			return Result{}, &InvariantError{QuestionType: questionType, CorrectCount: len(correct)}
		}
	case models.QuestionMultiple:
		if len(correct) == 0 {
			return Result{}, &InvariantError{QuestionType: questionType, CorrectCount: 0}
		}
	default:
		return Result{}, fmt.Errorf("scoring: unsupported question type %q", questionType)
	}

	if len(selected) == 0 {
		return Result{Answered: false, Points: 0}, nil
	}

	if questionType == models.QuestionSingle {
		if len(selected) == 1 {
			for id := range selected {
				if correct[id] {
					return Result{Answered: true, Points: maxPoints}, nil
				}
			}
		}
		return Result{Answered: true, Points: 0}, nil
	}

	correctSelected := 0
	incorrectSelected := 0
	for id := range selected {
		if correct[id] {
			correctSelected++
		} else {
			incorrectSelected++
		}
	}

	if correctSelected == 0 {
		return Result{Answered: true, Points: 0}, nil
	}

	accuracy := float64(correctSelected-incorrectSelected) / float64(len(correct))
	points := math.Max(0, accuracy) * maxPoints

	return Result{Answered: true, Points: points}, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = true
		}
	}
	return set
}
