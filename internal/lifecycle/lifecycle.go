// Package lifecycle moves cards from new through learning into review.
package lifecycle

import "github.com/conorfennell/knolstudy/internal/domain"

// DefaultThreshold is the number of correct answers that graduates a learning card.
const DefaultThreshold = 3

// Machine applies onboarding transitions. The zero value uses DefaultThreshold.
type Machine struct {
	Threshold int
}

// Transition is the onboarding outcome of one review.
type Transition struct {
	Status       domain.LearningStatus
	CorrectCount int
	// Graduated is set only on the review that moved the card into review.
	Graduated bool
}

func (m Machine) threshold() int {
	if m.Threshold <= 0 {
		return DefaultThreshold
	}
	return m.Threshold
}

// Advance evaluates one review. Graduated cards are returned unchanged.
func (m Machine) Advance(status domain.LearningStatus, correctCount int, rating domain.Rating, wasMarkedCorrect bool) Transition {
	if status.IsGraduated() {
		return Transition{Status: status, CorrectCount: correctCount}
	}

	switch {
	case rating == domain.Again:
		correctCount = 0
	case wasMarkedCorrect:
		correctCount++
	}

	next := Transition{Status: domain.StatusLearning, CorrectCount: correctCount}
	if correctCount >= m.threshold() {
		next.Status = domain.StatusReview
		next.Graduated = true
	}
	return next
}
