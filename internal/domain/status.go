package domain

import (
	"fmt"
	"strings"
)

// Rating is the user's 4-way assessment of recall.
type Rating string

const (
	Again Rating = "again"
	Hard  Rating = "hard"
	Good  Rating = "good"
	Easy  Rating = "easy"
)

// Valid reports whether r is one of the four known ratings.
func (r Rating) Valid() bool {
	switch r {
	case Again, Hard, Good, Easy:
		return true
	}
	return false
}

// ParseRating accepts a rating name in any case.
func ParseRating(s string) (Rating, error) {
	r := Rating(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: rating must be one of again, hard, good, easy (got %q)", ErrInvalidArgument, s)
	}
	return r, nil
}

// LearningStatus is the onboarding stage of a card.
type LearningStatus string

const (
	StatusNew      LearningStatus = "new"
	StatusLearning LearningStatus = "learning"
	StatusReview   LearningStatus = "review"
	// StatusLearned is an alias of StatusReview kept for rows written by older clients.
	StatusLearned LearningStatus = "learned"
)

// IsOnboarding is true before a card graduates.
func (s LearningStatus) IsOnboarding() bool {
	return s == StatusNew || s == StatusLearning
}

// IsGraduated treats review and learned as the same state.
func (s LearningStatus) IsGraduated() bool {
	return s == StatusReview || s == StatusLearned
}

func (s LearningStatus) Valid() bool {
	return s.IsOnboarding() || s.IsGraduated()
}
