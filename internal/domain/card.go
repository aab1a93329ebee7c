package domain

import (
	"time"

	"github.com/google/uuid"
)

// DayLayout is the calendar-day format used for review dates and activity days.
const DayLayout = "2006-01-02"

const (
	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3
)

// Card is a single question-answer-context entry together with its scheduling state.
type Card struct {
	ID       string
	DeckID   string
	UserID   string
	Question string
	Answer   string
	Context  string
	Hash     string

	EaseFactor      float64
	Interval        int // days
	RepetitionCount int
	NextReviewDate  time.Time // calendar day, see Day
	LastReviewedAt  *time.Time

	LearningStatus LearningStatus
	CorrectCount   int

	// Version increases on every write and guards against stale updates.
	Version   int64
	CreatedAt time.Time
}

// NewCard returns a card in its initial, never-reviewed state.
// today is the current calendar day in the study location.
func NewCard(deckID, userID string, content Card, today, now time.Time) Card {
	return Card{
		ID:              uuid.NewString(),
		DeckID:          deckID,
		UserID:          userID,
		Question:        content.Question,
		Answer:          content.Answer,
		Context:         content.Context,
		Hash:            content.Hash,
		EaseFactor:      DefaultEaseFactor,
		Interval:        0,
		RepetitionCount: 0,
		NextReviewDate:  Day(today),
		LearningStatus:  StatusNew,
		CorrectCount:    0,
		Version:         1,
		CreatedAt:       now.UTC(),
	}
}

// Day returns the calendar date of t, read in t's own location, as midnight UTC.
// Calendar days compare and round-trip through storage independent of time zone.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayString formats the calendar date of t.
func DayString(t time.Time) string {
	return Day(t).Format(DayLayout)
}

// Deck groups the cards of a single user.
type Deck struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// Source is a place cards are imported from, either a local path or a Git URL.
type Source struct {
	ID          int64
	UserID      string
	DeckID      string
	Path        string
	Type        string // "local" or "git"
	LastScanned *time.Time
}

const (
	SourceLocal = "local"
	SourceGit   = "git"
)
