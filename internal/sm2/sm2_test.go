package sm2

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

func TestSchedule(t *testing.T) {
	testCases := []struct {
		name     string
		rating   domain.Rating
		in       State
		expected State
	}{
		{"good from new", domain.Good, State{2.5, 0, 0}, State{2.5, 1, 1}},
		{"good second step", domain.Good, State{2.5, 1, 1}, State{2.5, 2, 6}},
		{"good third step", domain.Good, State{2.5, 2, 6}, State{2.5, 3, 15}},
		{"easy from new", domain.Easy, State{2.5, 0, 0}, State{2.65, 1, 1}},
		{"easy second step", domain.Easy, State{2.5, 1, 1}, State{2.65, 2, 6}},
		{"easy boosts ease", domain.Easy, State{2.5, 2, 6}, State{2.65, 3, 20}},
		{"hard dampens", domain.Hard, State{2.5, 3, 10}, State{2.35, 3, 12}},
		{"hard on zero interval", domain.Hard, State{2.5, 0, 0}, State{2.35, 0, 1}},
		{"hard at floor", domain.Hard, State{1.35, 4, 3}, State{1.3, 4, 4}},
		{"again resets", domain.Again, State{2.5, 5, 40}, State{2.3, 0, 1}},
		{"again at floor", domain.Again, State{1.3, 2, 6}, State{1.3, 0, 1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Schedule(tc.rating, tc.in)
			if err != nil {
				t.Fatalf("Schedule() returned an unexpected error: %v", err)
			}
			if got.Repetitions != tc.expected.Repetitions {
				t.Errorf("Expected repetitions %d, but got %d", tc.expected.Repetitions, got.Repetitions)
			}
			if got.Interval != tc.expected.Interval {
				t.Errorf("Expected interval %d, but got %d", tc.expected.Interval, got.Interval)
			}
			if math.Abs(got.EaseFactor-tc.expected.EaseFactor) > 1e-9 {
				t.Errorf("Expected ease factor %.2f, but got %.4f", tc.expected.EaseFactor, got.EaseFactor)
			}
		})
	}
}

func TestScheduleProperties(t *testing.T) {
	ratings := []domain.Rating{domain.Again, domain.Hard, domain.Good, domain.Easy}
	eases := []float64{1.3, 1.35, 1.5, 2.0, 2.5, 3.1}
	reps := []int{0, 1, 2, 3, 7}
	intervals := []int{0, 1, 6, 15, 120}

	for _, r := range ratings {
		for _, ef := range eases {
			for _, n := range reps {
				for _, iv := range intervals {
					in := State{EaseFactor: ef, Repetitions: n, Interval: iv}
					first, err := Schedule(r, in)
					if err != nil {
						t.Fatalf("Schedule(%s, %+v) failed: %v", r, in, err)
					}
					second, _ := Schedule(r, in)
					if first != second {
						t.Errorf("Schedule(%s, %+v) is not deterministic: %+v vs %+v", r, in, first, second)
					}
					if first.EaseFactor < domain.MinEaseFactor {
						t.Errorf("Schedule(%s, %+v) dropped ease below floor: %.2f", r, in, first.EaseFactor)
					}
					if r == domain.Again && (first.Repetitions != 0 || first.Interval != 1) {
						t.Errorf("Expected again to reset to n=0 interval=1, got %+v", first)
					}
				}
			}
		}
	}
}

func TestScheduleInvalidRating(t *testing.T) {
	_, err := Schedule(domain.Rating("perfect"), State{2.5, 0, 0})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, but got %v", err)
	}
}

func TestValidate(t *testing.T) {
	if err := (State{2.5, 0, 0}).Validate(); err != nil {
		t.Errorf("Expected initial state to be valid, got %v", err)
	}
	for _, s := range []State{{1.2, 0, 0}, {2.5, -1, 0}, {2.5, 0, -3}, {math.NaN(), 0, 0}} {
		if err := s.Validate(); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("Expected %+v to be rejected, got %v", s, err)
		}
	}
}

func TestNextReviewDate(t *testing.T) {
	today := time.Date(2026, 3, 30, 17, 45, 0, 0, time.UTC)
	got := NextReviewDate(today, 6)
	expected := time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(expected) {
		t.Errorf("Expected next review date %v, but got %v", expected, got)
	}
}
