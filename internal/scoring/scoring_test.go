package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/edusphere/exam-engine/internal/models"
)

func TestScore_Single(t *testing.T) {
	tests := []struct {
		name      string
		maxPoints float64
		correct   []string
		selected  []string
		answered  bool
		points    float64
	}{
		{name: "correct choice full points", maxPoints: 5, correct: []string{"A"}, selected: []string{"A"}, answered: true, points: 5},
		{name: "wrong choice zero", maxPoints: 5, correct: []string{"A"}, selected: []string{"B"}, answered: true, points: 0},
		{name: "empty selection unanswered", maxPoints: 5, correct: []string{"A"}, selected: nil, answered: false, points: 0},
		{name: "over-selection scores zero", maxPoints: 5, correct: []string{"A"}, selected: []string{"A", "B"}, answered: true, points: 0},
		{name: "blank ids ignored", maxPoints: 5, correct: []string{"A"}, selected: []string{""}, answered: false, points: 0},
		{name: "zero max points", maxPoints: 0, correct: []string{"A"}, selected: []string{"A"}, answered: true, points: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Score(models.QuestionSingle, tc.maxPoints, tc.correct, tc.selected)
			if err != nil {
				t.Fatalf("Score returned error: %v", err)
			}
			if got.Answered != tc.answered {
				t.Errorf("Answered = %v, want %v", got.Answered, tc.answered)
			}
			if got.Points != tc.points {
				t.Errorf("Points = %v, want %v", got.Points, tc.points)
			}
		})
	}
}

func TestScore_Multiple(t *testing.T) {
	tests := []struct {
		name      string
		maxPoints float64
		correct   []string
		selected  []string
		answered  bool
		points    float64
	}{
		{name: "exact set full points", maxPoints: 5, correct: []string{"B", "C"}, selected: []string{"C", "B"}, answered: true, points: 5},
		{name: "one of two half credit", maxPoints: 5, correct: []string{"B", "C"}, selected: []string{"B"}, answered: true, points: 2.5},
		{name: "correct plus one wrong", maxPoints: 5, correct: []string{"B", "C"}, selected: []string{"B", "D"}, answered: true, points: 0},
		{name: "full set plus one wrong", maxPoints: 6, correct: []string{"A", "B", "C"}, selected: []string{"A", "B", "C", "D"}, answered: true, points: 4},
		{name: "no correct selected", maxPoints: 5, correct: []string{"B", "C"}, selected: []string{"D"}, answered: true, points: 0},
		{name: "over-selection clamps at zero", maxPoints: 5, correct: []string{"B", "C"}, selected: []string{"B", "D", "E", "F"}, answered: true, points: 0},
		{name: "empty selection unanswered", maxPoints: 5, correct: []string{"B", "C"}, selected: nil, answered: false, points: 0},
		{name: "duplicates count once", maxPoints: 5, correct: []string{"B", "C"}, selected: []string{"B", "B"}, answered: true, points: 2.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Score(models.QuestionMultiple, tc.maxPoints, tc.correct, tc.selected)
			if err != nil {
				t.Fatalf("Score returned error: %v", err)
			}
			if got.Answered != tc.answered {
				t.Errorf("Answered = %v, want %v", got.Answered, tc.answered)
			}
			if math.Abs(got.Points-tc.points) > 1e-9 {
				t.Errorf("Points = %v, want %v", got.Points, tc.points)
			}
		})
	}
}

func TestScore_PartialCreditRatio(t *testing.T) {
	// Selecting the full correct set of size k plus one incorrect choice
	// must yield maxPoints * (k-1)/k.
	for k := 2; k <= 6; k++ {
		correct := make([]string, k)
		for i := range correct {
			correct[i] = string(rune('a' + i))
		}
		selected := append(append([]string{}, correct...), "zzz")

		got, err := Score(models.QuestionMultiple, 10, correct, selected)
		if err != nil {
			t.Fatalf("k=%d: %v", k, err)
		}
		want := 10 * float64(k-1) / float64(k)
		if math.Abs(got.Points-want) > 1e-9 {
			t.Errorf("k=%d: Points = %v, want %v", k, got.Points, want)
		}
	}
}

func TestScore_InvariantViolations(t *testing.T) {
	tests := []struct {
		name    string
		qType   models.QuestionType
		correct []string
	}{
		{name: "single with no correct", qType: models.QuestionSingle, correct: nil},
		{name: "single with two correct", qType: models.QuestionSingle, correct: []string{"A", "B"}},
		{name: "multiple with no correct", qType: models.QuestionMultiple, correct: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Score(tc.qType, 5, tc.correct, []string{"A"})
			var invErr *InvariantError
			if !errors.As(err, &invErr) {
				t.Fatalf("expected InvariantError, got %v", err)
			}
		})
	}
}

func TestScore_UnknownType(t *testing.T) {
	if _, err := Score(models.QuestionType("essay"), 5, []string{"A"}, []string{"A"}); err == nil {
		t.Fatal("expected error for unsupported question type")
	}
}
