package storage

import (
	"context"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// Repository is the persistence surface the study sessions depend on.
// Lookups by id return an error wrapping domain.ErrNotFound when the row is missing;
// GetActive* lookups return nil, nil instead.
type Repository interface {
	GetCard(ctx context.Context, id string) (*domain.Card, error)
	FindDueCards(ctx context.Context, deckIDs []string, asOf string) ([]domain.Card, error)
	FindDueStudiedCards(ctx context.Context, deckIDs []string, asOf string) ([]domain.Card, error)
	FindNewCards(ctx context.Context, deckIDs []string, limit int) ([]domain.Card, error)
	GetDecks(ctx context.Context, ids []string) ([]domain.Deck, error)

	GetActiveReviewSession(ctx context.Context, userID, deckKey string) (*domain.ReviewSession, error)
	CreateReviewSession(ctx context.Context, s *domain.ReviewSession) error
	GetReviewSession(ctx context.Context, id string) (*domain.ReviewSession, error)
	EndReviewSession(ctx context.Context, id string, at time.Time) error

	GetActiveDailySession(ctx context.Context, userID, day string) (*domain.DailySession, error)
	CreateDailySession(ctx context.Context, s *domain.DailySession) error
	GetDailySession(ctx context.Context, id string) (*domain.DailySession, error)
	EndDailySession(ctx context.Context, id string, at time.Time) error
	CountIntroducedOn(ctx context.Context, userID, day string) (int, error)
	ListReviewRecords(ctx context.Context, sessionID string) ([]domain.ReviewRecord, error)

	CreateLesson(ctx context.Context, l *domain.Lesson) error
	GetLesson(ctx context.Context, id string) (*domain.Lesson, error)
	ListLessons(ctx context.Context, userID string) ([]domain.Lesson, error)
	UpdateLesson(ctx context.Context, l *domain.Lesson) error
	DeleteLesson(ctx context.Context, id string) error

	Atomic(ctx context.Context, fn func(TxRepository) error) error
}

// TxRepository holds the writes that make up one review. They commit together or not at all.
type TxRepository interface {
	// SaveCard writes c if its version is unchanged since it was read and bumps c.Version.
	// A stale version fails with domain.ErrConflict.
	SaveCard(ctx context.Context, c *domain.Card) error
	AppendReviewRecord(ctx context.Context, r *domain.ReviewRecord) error
	// Bump* fail with domain.ErrInvalidState when the session has ended.
	BumpReviewSession(ctx context.Context, id string) error
	BumpDailySession(ctx context.Context, id string, delta domain.DailyCounters) error
}

var (
	_ Repository   = (*DB)(nil)
	_ TxRepository = (*Tx)(nil)
	_ TxRepository = (*DB)(nil)
)
