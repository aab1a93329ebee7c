// Package study runs review and daily learning sessions on top of the SM-2
// scheduler and the onboarding lifecycle.
package study

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/lifecycle"
	"github.com/conorfennell/knolstudy/internal/logger"
	"github.com/conorfennell/knolstudy/internal/sm2"
	"github.com/conorfennell/knolstudy/internal/storage"
)

const (
	DefaultNewCardsLimit = 20
	MaxNewCardsLimit     = 100
	DefaultStartRetries  = 3
)

// Options configures the session services. Zero fields take defaults.
type Options struct {
	Now                  func() time.Time
	Location             *time.Location
	Lifecycle            lifecycle.Machine
	DefaultNewCardsLimit int
	MaxNewCardsLimit     int
	// StartRetries bounds how often a start re-reads after losing a creation race.
	StartRetries int
	Logger       *logger.Logger
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.MaxNewCardsLimit <= 0 {
		o.MaxNewCardsLimit = MaxNewCardsLimit
	}
	if o.DefaultNewCardsLimit <= 0 {
		o.DefaultNewCardsLimit = DefaultNewCardsLimit
	}
	if o.DefaultNewCardsLimit > o.MaxNewCardsLimit {
		o.DefaultNewCardsLimit = o.MaxNewCardsLimit
	}
	if o.StartRetries <= 0 {
		o.StartRetries = DefaultStartRetries
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	return o
}

// Service bundles the study operations over one repository.
type Service struct {
	Review  *ReviewSessions
	Daily   *DailySessions
	Lessons *Lessons
}

// New wires all study services to repo.
func New(repo storage.Repository, opts Options) *Service {
	b := newBase(repo, opts)
	return &Service{
		Review:  &ReviewSessions{base: b},
		Daily:   &DailySessions{base: b},
		Lessons: &Lessons{base: b},
	}
}

type base struct {
	repo     storage.Repository
	opts     Options
	validate *validator.Validate
	log      *logger.Logger
}

func newBase(repo storage.Repository, opts Options) base {
	opts = opts.withDefaults()
	return base{
		repo:     repo,
		opts:     opts,
		validate: validator.New(),
		log:      opts.Logger,
	}
}

// clock returns the current instant and the calendar day it falls on in the study location.
func (b base) clock() (time.Time, time.Time) {
	now := b.opts.Now()
	return now, domain.Day(now.In(b.opts.Location))
}

func requireUser(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: missing user", domain.ErrUnauthorized)
	}
	return nil
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
}

type deckSelection struct {
	DeckIDs []string `validate:"min=1,max=50,dive,required"`
}

// resolveDecks normalises ids and checks every deck exists and belongs to userID.
func (b base) resolveDecks(ctx context.Context, userID string, ids []string) ([]string, error) {
	sel := deckSelection{DeckIDs: domain.NormalizeDeckIDs(ids)}
	if err := b.validate.Struct(sel); err != nil {
		return nil, invalid(fmt.Errorf("deck ids: %w", err))
	}
	decks, err := b.repo.GetDecks(ctx, sel.DeckIDs)
	if err != nil {
		return nil, err
	}
	owned := make(map[string]bool, len(decks))
	for _, d := range decks {
		owned[d.ID] = d.UserID == userID
	}
	for _, id := range sel.DeckIDs {
		if !owned[id] {
			return nil, fmt.Errorf("%w: deck %s", domain.ErrNotFound, id)
		}
	}
	return sel.DeckIDs, nil
}

// loadCard fetches a card owned by userID that belongs to one of deckIDs.
func (b base) loadCard(ctx context.Context, userID, cardID string, deckIDs []string) (*domain.Card, error) {
	if cardID == "" {
		return nil, invalid(errors.New("card id is required"))
	}
	card, err := b.repo.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.UserID != userID {
		return nil, fmt.Errorf("%w: card %s", domain.ErrNotFound, cardID)
	}
	if !domain.ContainsDeck(deckIDs, card.DeckID) {
		return nil, fmt.Errorf("%w: card %s is not part of this session", domain.ErrInvalidState, cardID)
	}
	return card, nil
}

// review is the outcome of scheduling one answer.
type review struct {
	card       domain.Card
	record     domain.ReviewRecord
	transition lifecycle.Transition
}

// applyReview computes the next card state and its history record without persisting anything.
func (b base) applyReview(card domain.Card, rating domain.Rating, wasMarkedCorrect bool, sessionID, kind string) (review, error) {
	if !rating.Valid() {
		return review{}, fmt.Errorf("%w: unknown rating %q", domain.ErrInvalidArgument, rating)
	}
	state := sm2.StateOf(card)
	if err := state.Validate(); err != nil {
		return review{}, err
	}
	next, err := sm2.Schedule(rating, state)
	if err != nil {
		return review{}, err
	}
	tr := b.opts.Lifecycle.Advance(card.LearningStatus, card.CorrectCount, rating, wasMarkedCorrect)

	now, today := b.clock()
	reviewedAt := now.UTC()
	updated := card
	updated.EaseFactor = next.EaseFactor
	updated.RepetitionCount = next.Repetitions
	updated.Interval = next.Interval
	updated.NextReviewDate = sm2.NextReviewDate(today, next.Interval)
	updated.LastReviewedAt = &reviewedAt
	updated.LearningStatus = tr.Status
	updated.CorrectCount = tr.CorrectCount

	return review{
		card:       updated,
		transition: tr,
		record: domain.ReviewRecord{
			ID:          uuid.NewString(),
			UserID:      card.UserID,
			CardID:      card.ID,
			SessionID:   sessionID,
			SessionKind: kind,
			Rating:      rating,
			WasNew:      card.LearningStatus.IsOnboarding(),
			PriorStatus: card.LearningStatus,
			Graduated:   tr.Graduated,
			ReviewedAt:  reviewedAt,
			Day:         domain.DayString(today),
		},
	}, nil
}

// startWithRetry returns the active session found by lookup, or creates one with create.
// When another caller wins the creation race the winner is re-read.
func startWithRetry[S any](ctx context.Context, b base, lookup func() (*S, error), create func() (*S, error)) (*S, bool, error) {
	for attempt := 0; attempt < b.opts.StartRetries; attempt++ {
		active, err := lookup()
		if err != nil {
			return nil, false, err
		}
		if active != nil {
			return active, true, nil
		}
		created, err := create()
		if err == nil {
			return created, false, nil
		}
		if !errors.Is(err, domain.ErrDuplicate) {
			return nil, false, err
		}
		b.log.Debug("lost session creation race, re-reading", "attempt", attempt+1)
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
	}
	return nil, false, fmt.Errorf("%w: could not settle on an active session", domain.ErrConflict)
}

// EndResult reports when a session ended and how long it ran.
type EndResult struct {
	SessionID string
	EndedAt   time.Time
	Duration  time.Duration
}

func endResult(id string, startedAt, endedAt time.Time) EndResult {
	d := endedAt.Sub(startedAt)
	if d < 0 {
		d = 0
	}
	return EndResult{SessionID: id, EndedAt: endedAt, Duration: d}
}
