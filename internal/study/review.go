package study

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/storage"
)

// ReviewSessions clears every due card of a deck set in one sitting.
type ReviewSessions struct {
	base
}

// NewReviewSessions returns the review session service alone.
func NewReviewSessions(repo storage.Repository, opts Options) *ReviewSessions {
	return &ReviewSessions{base: newBase(repo, opts)}
}

// ReviewSessionView is a session together with its current due queue.
type ReviewSessionView struct {
	Session *domain.ReviewSession
	// Queue holds the due cards, oldest due date first and then by card id.
	Queue   []domain.Card
	Resumed bool
}

// ReviewResult is the state after one answer in a review session.
type ReviewResult struct {
	Card    domain.Card
	Session *domain.ReviewSession
}

// StartOrResume returns the user's active session for the deck set, creating one if none exists.
// The queue is recomputed on every call, so cards rescheduled into the future drop out.
func (r *ReviewSessions) StartOrResume(ctx context.Context, userID string, deckIDs []string) (*ReviewSessionView, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	decks, err := r.resolveDecks(ctx, userID, deckIDs)
	if err != nil {
		return nil, err
	}
	deckKey := domain.DeckKey(decks)

	session, resumed, err := startWithRetry(ctx, r.base,
		func() (*domain.ReviewSession, error) {
			return r.repo.GetActiveReviewSession(ctx, userID, deckKey)
		},
		func() (*domain.ReviewSession, error) {
			now, _ := r.clock()
			s := &domain.ReviewSession{
				ID:        uuid.NewString(),
				UserID:    userID,
				DeckIDs:   decks,
				StartedAt: now.UTC(),
			}
			if err := r.repo.CreateReviewSession(ctx, s); err != nil {
				return nil, err
			}
			return s, nil
		},
	)
	if err != nil {
		return nil, err
	}

	queue, err := r.queue(ctx, session)
	if err != nil {
		return nil, err
	}
	r.log.Info("review session started",
		"session_id", session.ID,
		"user_id", userID,
		"resumed", resumed,
		"due", len(queue),
	)
	return &ReviewSessionView{Session: session, Queue: queue, Resumed: resumed}, nil
}

// Get returns a session owned by userID with its current queue. Ended sessions have an empty queue.
func (r *ReviewSessions) Get(ctx context.Context, userID, sessionID string) (*ReviewSessionView, error) {
	session, err := r.owned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	view := &ReviewSessionView{Session: session, Resumed: true}
	if session.Active() {
		if view.Queue, err = r.queue(ctx, session); err != nil {
			return nil, err
		}
	}
	return view, nil
}

// SubmitReview schedules one answer. The card, its history record and the session counter
// commit together. A card changed since it was read fails with domain.ErrConflict.
func (r *ReviewSessions) SubmitReview(ctx context.Context, userID, sessionID, cardID string, rating domain.Rating) (*ReviewResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if !rating.Valid() {
		return nil, fmt.Errorf("%w: unknown rating %q", domain.ErrInvalidArgument, rating)
	}
	session, err := r.owned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, fmt.Errorf("%w: review session %s has ended", domain.ErrInvalidState, sessionID)
	}
	card, err := r.loadCard(ctx, userID, cardID, session.DeckIDs)
	if err != nil {
		return nil, err
	}

	// Review sessions never count toward onboarding progress.
	rv, err := r.applyReview(*card, rating, false, session.ID, domain.SessionKindReview)
	if err != nil {
		return nil, err
	}

	err = r.repo.Atomic(ctx, func(tx storage.TxRepository) error {
		if err := tx.SaveCard(ctx, &rv.card); err != nil {
			return err
		}
		if err := tx.AppendReviewRecord(ctx, &rv.record); err != nil {
			return err
		}
		return tx.BumpReviewSession(ctx, session.ID)
	})
	if err != nil {
		if domain.Retryable(err) {
			r.log.Warn("review rejected by a concurrent update", "session_id", session.ID, "card_id", cardID)
		}
		return nil, err
	}

	session.CardsReviewed++
	return &ReviewResult{Card: rv.card, Session: session}, nil
}

// End closes an active session. Ending it a second time fails with domain.ErrInvalidState.
func (r *ReviewSessions) End(ctx context.Context, userID, sessionID string) (*EndResult, error) {
	session, err := r.owned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, fmt.Errorf("%w: review session %s already ended", domain.ErrInvalidState, sessionID)
	}
	now, _ := r.clock()
	endedAt := now.UTC()
	if err := r.repo.EndReviewSession(ctx, session.ID, endedAt); err != nil {
		return nil, err
	}
	res := endResult(session.ID, session.StartedAt, endedAt)
	r.log.Info("review session ended",
		"session_id", session.ID,
		"user_id", userID,
		"cards_reviewed", session.CardsReviewed,
		"duration", res.Duration,
	)
	return &res, nil
}

// History lists the answers given in a session, oldest first.
func (r *ReviewSessions) History(ctx context.Context, userID, sessionID string) ([]domain.ReviewRecord, error) {
	session, err := r.owned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return r.repo.ListReviewRecords(ctx, session.ID)
}

func (r *ReviewSessions) owned(ctx context.Context, userID, sessionID string) (*domain.ReviewSession, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	session, err := r.repo.GetReviewSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("%w: review session %s", domain.ErrNotFound, sessionID)
	}
	return session, nil
}

func (r *ReviewSessions) queue(ctx context.Context, s *domain.ReviewSession) ([]domain.Card, error) {
	_, today := r.clock()
	return r.repo.FindDueCards(ctx, s.DeckIDs, domain.DayString(today))
}
