package study

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/storage"
)

type fixture struct {
	db  *storage.DB
	svc *Service
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "study.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{db: db, now: time.Date(2026, 3, 30, 9, 0, 0, 0, time.UTC)}
	f.svc = New(db, Options{Now: func() time.Time { return f.now }})
	return f
}

func (f *fixture) today() string {
	return domain.DayString(f.now)
}

func (f *fixture) deck(t *testing.T, userID string) string {
	t.Helper()
	d := domain.Deck{ID: uuid.NewString(), UserID: userID, Name: "deck", CreatedAt: f.now}
	if err := f.db.CreateDeck(context.Background(), &d); err != nil {
		t.Fatalf("Failed to create deck: %v", err)
	}
	return d.ID
}

// card inserts a card due on due. Cards created later sort later among new cards.
func (f *fixture) card(t *testing.T, deckID, userID string, status domain.LearningStatus, due time.Time) domain.Card {
	t.Helper()
	f.now = f.now.Add(time.Millisecond)
	c := domain.NewCard(deckID, userID, domain.Card{Question: "q-" + uuid.NewString()}, due, f.now)
	c.LearningStatus = status
	if !status.IsOnboarding() || status == domain.StatusLearning {
		c.RepetitionCount = 1
		c.Interval = 1
	}
	if err := f.db.InsertCard(context.Background(), &c); err != nil {
		t.Fatalf("Failed to insert card: %v", err)
	}
	return c
}

func (f *fixture) reload(t *testing.T, id string) *domain.Card {
	t.Helper()
	c, err := f.db.GetCard(context.Background(), id)
	if err != nil {
		t.Fatalf("Failed to reload card: %v", err)
	}
	return c
}

func ids(cards []domain.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func countStatus(cards []domain.Card, status domain.LearningStatus) int {
	n := 0
	for _, c := range cards {
		if c.LearningStatus == status {
			n++
		}
	}
	return n
}
