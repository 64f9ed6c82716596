package cache

import (
	"testing"

	"adaptivetest/internal/domain"
)

func TestValidateCoverageFlagsUncoveredConcept(t *testing.T) {
	pool := domain.Pool{
		ID:         "topic_x",
		Attributes: []domain.ConceptAttribute{{Name: "algebra"}, {Name: "geometry"}},
		Questions: []domain.Question{
			{ID: "q1", Concepts: []float64{1, 0}},
			{ID: "q2", Concepts: []float64{1, 0}},
		},
	}
	report := ValidateCoverage(pool)
	if report.Valid {
		t.Fatal("expected report invalid: geometry has zero covering items")
	}
	if len(report.UncoveredConcepts) != 1 || report.UncoveredConcepts[0] != "geometry" {
		t.Fatalf("expected geometry flagged uncovered, got %+v", report.UncoveredConcepts)
	}
}

func TestValidateCoverageValidWithSufficientItems(t *testing.T) {
	concepts := []float64{1}
	questions := make([]domain.Question, 0, MinItemsPerConcept)
	for i := 0; i < MinItemsPerConcept; i++ {
		questions = append(questions, domain.Question{ID: "q", Concepts: concepts})
	}
	pool := domain.Pool{
		ID:         "topic_y",
		Attributes: []domain.ConceptAttribute{{Name: "algebra"}},
		Questions:  questions,
	}
	report := ValidateCoverage(pool)
	if !report.Valid {
		t.Fatalf("expected valid coverage, got %+v", report)
	}
}
