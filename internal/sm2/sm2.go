package sm2

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

const (
	againPenalty = 0.2
	hardPenalty  = 0.15
	easyBonus    = 0.15
	hardFactor   = 1.2
	easyFactor   = 1.3
)

// State holds the SM-2 scheduling fields of a card.
type State struct {
	EaseFactor  float64
	Repetitions int
	Interval    int // days
}

// StateOf extracts the scheduling state of a card.
func StateOf(c domain.Card) State {
	return State{
		EaseFactor:  c.EaseFactor,
		Repetitions: c.RepetitionCount,
		Interval:    c.Interval,
	}
}

// Validate checks the ranges Schedule expects.
func (s State) Validate() error {
	if s.EaseFactor < domain.MinEaseFactor || math.IsNaN(s.EaseFactor) || math.IsInf(s.EaseFactor, 0) {
		return fmt.Errorf("%w: ease factor %.2f below %.1f", domain.ErrInvalidArgument, s.EaseFactor, domain.MinEaseFactor)
	}
	if s.Repetitions < 0 {
		return fmt.Errorf("%w: negative repetition count %d", domain.ErrInvalidArgument, s.Repetitions)
	}
	if s.Interval < 0 {
		return fmt.Errorf("%w: negative interval %d", domain.ErrInvalidArgument, s.Interval)
	}
	return nil
}

// Schedule computes the next state after a review with the given rating.
//
// good branches on the repetition count before incrementing it; easy increments first and
// branches on the new value.
func Schedule(rating domain.Rating, s State) (State, error) {
	next := s
	switch rating {
	case domain.Again:
		next.Repetitions = 0
		next.Interval = 1
		next.EaseFactor = math.Max(domain.MinEaseFactor, s.EaseFactor-againPenalty)

	case domain.Hard:
		next.Interval = ceil(float64(s.Interval) * hardFactor)
		if next.Interval == 0 {
			next.Interval = 1
		}
		next.EaseFactor = math.Max(domain.MinEaseFactor, s.EaseFactor-hardPenalty)

	case domain.Good:
		switch s.Repetitions {
		case 0:
			next.Interval = 1
		case 1:
			next.Interval = 6
		default:
			next.Interval = ceil(float64(s.Interval) * s.EaseFactor)
		}
		next.Repetitions = s.Repetitions + 1

	case domain.Easy:
		next.Repetitions = s.Repetitions + 1
		switch next.Repetitions {
		case 1:
			next.Interval = 1
		case 2:
			next.Interval = 6
		default:
			base := ceil(float64(s.Interval) * s.EaseFactor)
			next.Interval = ceil(float64(base) * easyFactor)
		}
		next.EaseFactor = s.EaseFactor + easyBonus

	default:
		return State{}, fmt.Errorf("%w: unknown rating %q", domain.ErrInvalidArgument, rating)
	}
	return next, nil
}

// NextReviewDate is today plus interval whole calendar days.
func NextReviewDate(today time.Time, interval int) time.Time {
	return domain.Day(today).AddDate(0, 0, interval)
}

// ceil rounds up with plain float arithmetic, no epsilon.
func ceil(v float64) int {
	return int(math.Ceil(v))
}
