package study

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/storage"
)

// Lessons manages saved deck groups for daily sessions.
type Lessons struct {
	base
}

// NewLessons returns the lesson service alone.
func NewLessons(repo storage.Repository, opts Options) *Lessons {
	return &Lessons{base: newBase(repo, opts)}
}

// LessonInput holds the editable fields of a lesson. A zero limit takes the configured default.
type LessonInput struct {
	Name               string `validate:"required,max=200"`
	Description        string `validate:"max=2000"`
	DeckIDs            []string
	DailyNewCardsLimit int
}

func (l *Lessons) check(ctx context.Context, userID string, in *LessonInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := l.validate.Struct(in); err != nil {
		return invalid(err)
	}
	if in.DailyNewCardsLimit == 0 {
		in.DailyNewCardsLimit = l.opts.DefaultNewCardsLimit
	}
	if in.DailyNewCardsLimit < 1 || in.DailyNewCardsLimit > l.opts.MaxNewCardsLimit {
		return fmt.Errorf("%w: daily new card limit must be between 1 and %d (got %d)",
			domain.ErrInvalidArgument, l.opts.MaxNewCardsLimit, in.DailyNewCardsLimit)
	}
	decks, err := l.resolveDecks(ctx, userID, in.DeckIDs)
	if err != nil {
		return err
	}
	in.DeckIDs = decks
	return nil
}

// Create saves a new lesson for userID.
func (l *Lessons) Create(ctx context.Context, userID string, in LessonInput) (*domain.Lesson, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := l.check(ctx, userID, &in); err != nil {
		return nil, err
	}
	now, _ := l.clock()
	lesson := &domain.Lesson{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Name:               in.Name,
		Description:        in.Description,
		DeckIDs:            in.DeckIDs,
		DailyNewCardsLimit: in.DailyNewCardsLimit,
		CreatedAt:          now.UTC(),
		UpdatedAt:          now.UTC(),
	}
	if err := l.repo.CreateLesson(ctx, lesson); err != nil {
		return nil, err
	}
	return lesson, nil
}

// List returns the user's lessons, newest first.
func (l *Lessons) List(ctx context.Context, userID string) ([]domain.Lesson, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return l.repo.ListLessons(ctx, userID)
}

// Get returns one of the user's lessons.
func (l *Lessons) Get(ctx context.Context, userID, lessonID string) (*domain.Lesson, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return l.ownedLesson(ctx, userID, lessonID)
}

// Update replaces the editable fields of a lesson.
func (l *Lessons) Update(ctx context.Context, userID, lessonID string, in LessonInput) (*domain.Lesson, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	lesson, err := l.ownedLesson(ctx, userID, lessonID)
	if err != nil {
		return nil, err
	}
	if err := l.check(ctx, userID, &in); err != nil {
		return nil, err
	}
	now, _ := l.clock()
	lesson.Name = in.Name
	lesson.Description = in.Description
	lesson.DeckIDs = in.DeckIDs
	lesson.DailyNewCardsLimit = in.DailyNewCardsLimit
	lesson.UpdatedAt = now.UTC()
	if err := l.repo.UpdateLesson(ctx, lesson); err != nil {
		return nil, err
	}
	return lesson, nil
}

// Delete removes a lesson.
func (l *Lessons) Delete(ctx context.Context, userID, lessonID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if _, err := l.ownedLesson(ctx, userID, lessonID); err != nil {
		return err
	}
	return l.repo.DeleteLesson(ctx, lessonID)
}

func (b base) ownedLesson(ctx context.Context, userID, lessonID string) (*domain.Lesson, error) {
	lesson, err := b.repo.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.UserID != userID {
		return nil, fmt.Errorf("%w: lesson %s", domain.ErrNotFound, lessonID)
	}
	return lesson, nil
}
