package domain

import (
	"sort"
	"strings"
	"time"
)

// ReviewSession is an unbounded study session over a fixed set of decks.
type ReviewSession struct {
	ID            string
	UserID        string
	DeckIDs       []string
	StartedAt     time.Time
	EndedAt       *time.Time
	CardsReviewed int
}

func (s *ReviewSession) Active() bool { return s.EndedAt == nil }

// DailySession is the rate-limited session for one user and one calendar day.
type DailySession struct {
	ID               string
	UserID           string
	LessonID         *string
	DeckIDs          []string
	Day              string
	NewCardsLimit    int
	StartedAt        time.Time
	EndedAt          *time.Time
	CardsStudied     int
	CardsLearned     int
	NewCardsToday    int
	ReviewCardsToday int
}

func (s *DailySession) Active() bool { return s.EndedAt == nil }

// DailyCounters is the increment applied to a daily session by one review.
type DailyCounters struct {
	Studied int
	Learned int
	New     int
	Review  int
}

const (
	SessionKindReview = "review"
	SessionKindDaily  = "daily"
)

// ReviewRecord is an immutable history entry written once per answered card.
type ReviewRecord struct {
	ID          string
	UserID      string
	CardID      string
	SessionID   string
	SessionKind string
	Rating      Rating
	WasNew      bool // card was still onboarding when answered
	PriorStatus LearningStatus
	Graduated   bool
	ReviewedAt  time.Time
	Day         string
}

// Lesson is a saved deck group with its own daily new-card limit.
type Lesson struct {
	ID                 string
	UserID             string
	Name               string
	Description        string
	DeckIDs            []string
	DailyNewCardsLimit int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NormalizeDeckIDs trims, de-duplicates and sorts deck ids.
func NormalizeDeckIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DeckKey identifies a deck set independent of order.
func DeckKey(ids []string) string {
	return strings.Join(NormalizeDeckIDs(ids), ",")
}

// ContainsDeck reports whether deckID is part of ids.
func ContainsDeck(ids []string, deckID string) bool {
	for _, id := range ids {
		if id == deckID {
			return true
		}
	}
	return false
}
