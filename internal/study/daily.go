package study

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/storage"
)

// DailySessions limits how many new cards a user sees per calendar day while
// still surfacing every due review.
type DailySessions struct {
	base
}

// NewDailySessions returns the daily session service alone.
func NewDailySessions(repo storage.Repository, opts Options) *DailySessions {
	return &DailySessions{base: newBase(repo, opts)}
}

// StartDailyRequest selects the decks and new-card limit of a day's session.
// A lesson, when given, overrides DeckIDs and DailyNewCardsLimit.
// A zero limit takes the configured default.
type StartDailyRequest struct {
	UserID             string
	DeckIDs            []string
	DailyNewCardsLimit int
	LessonID           string
}

// DailySessionView is a session together with its card list for today.
type DailySessionView struct {
	Session *domain.DailySession
	// Cards lists due studied cards first, then new cards oldest first.
	Cards   []domain.Card
	Resumed bool
	// NewCardsRemaining is how many more new cards today's quota allows.
	NewCardsRemaining int
	// CanEnd is true when nothing is left to study.
	CanEnd bool
}

// SubmitDailyReview is one answer in a daily session.
type SubmitDailyReview struct {
	UserID           string
	SessionID        string
	CardID           string
	Rating           domain.Rating
	WasMarkedCorrect bool
}

// DailyReviewResult is the state after one answer in a daily session.
type DailyReviewResult struct {
	Card      domain.Card
	Session   *domain.DailySession
	Graduated bool
}

// StartOrResume returns the user's active session for today, creating one if none exists.
// A resumed session keeps the decks and limit it was created with, so the request's
// selection only matters when a session is created.
func (d *DailySessions) StartOrResume(ctx context.Context, req StartDailyRequest) (*DailySessionView, error) {
	if err := requireUser(req.UserID); err != nil {
		return nil, err
	}
	now, today := d.clock()
	day := domain.DayString(today)

	active, err := d.repo.GetActiveDailySession(ctx, req.UserID, day)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return d.started(ctx, active, true)
	}

	var lessonID *string
	deckIDs, limit := req.DeckIDs, req.DailyNewCardsLimit
	if req.LessonID != "" {
		lesson, err := d.ownedLesson(ctx, req.UserID, req.LessonID)
		if err != nil {
			return nil, err
		}
		deckIDs, limit = lesson.DeckIDs, lesson.DailyNewCardsLimit
		lessonID = &lesson.ID
	}
	if limit == 0 {
		limit = d.opts.DefaultNewCardsLimit
	}
	if err := d.validate.Var(limit, fmt.Sprintf("min=1,max=%d", d.opts.MaxNewCardsLimit)); err != nil {
		return nil, fmt.Errorf("%w: daily new card limit must be between 1 and %d (got %d)",
			domain.ErrInvalidArgument, d.opts.MaxNewCardsLimit, limit)
	}
	decks, err := d.resolveDecks(ctx, req.UserID, deckIDs)
	if err != nil {
		return nil, err
	}

	session, resumed, err := startWithRetry(ctx, d.base,
		func() (*domain.DailySession, error) {
			return d.repo.GetActiveDailySession(ctx, req.UserID, day)
		},
		func() (*domain.DailySession, error) {
			s := &domain.DailySession{
				ID:            uuid.NewString(),
				UserID:        req.UserID,
				LessonID:      lessonID,
				DeckIDs:       decks,
				Day:           day,
				NewCardsLimit: limit,
				StartedAt:     now.UTC(),
			}
			if err := d.repo.CreateDailySession(ctx, s); err != nil {
				return nil, err
			}
			return s, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return d.started(ctx, session, resumed)
}

func (d *DailySessions) started(ctx context.Context, session *domain.DailySession, resumed bool) (*DailySessionView, error) {
	view, err := d.view(ctx, session, resumed)
	if err != nil {
		return nil, err
	}
	d.log.Info("daily session started",
		"session_id", session.ID,
		"user_id", session.UserID,
		"day", session.Day,
		"resumed", resumed,
		"cards", len(view.Cards),
	)
	return view, nil
}

// Get returns a session owned by userID with its current card list.
func (d *DailySessions) Get(ctx context.Context, userID, sessionID string) (*DailySessionView, error) {
	session, err := d.owned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return &DailySessionView{Session: session, Resumed: true}, nil
	}
	return d.view(ctx, session, true)
}

// SubmitReview schedules one answer and advances the card's onboarding. The card, its
// history record and the session counters commit together.
func (d *DailySessions) SubmitReview(ctx context.Context, req SubmitDailyReview) (*DailyReviewResult, error) {
	if err := requireUser(req.UserID); err != nil {
		return nil, err
	}
	if !req.Rating.Valid() {
		return nil, fmt.Errorf("%w: unknown rating %q", domain.ErrInvalidArgument, req.Rating)
	}
	session, err := d.owned(ctx, req.UserID, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, fmt.Errorf("%w: daily session %s has ended", domain.ErrInvalidState, req.SessionID)
	}
	card, err := d.loadCard(ctx, req.UserID, req.CardID, session.DeckIDs)
	if err != nil {
		return nil, err
	}

	rv, err := d.applyReview(*card, req.Rating, req.WasMarkedCorrect, session.ID, domain.SessionKindDaily)
	if err != nil {
		return nil, err
	}

	delta := domain.DailyCounters{Studied: 1}
	if rv.transition.Graduated {
		delta.Learned = 1
	}
	if rv.record.WasNew {
		delta.New = 1
	} else {
		delta.Review = 1
	}

	err = d.repo.Atomic(ctx, func(tx storage.TxRepository) error {
		if err := tx.SaveCard(ctx, &rv.card); err != nil {
			return err
		}
		if err := tx.AppendReviewRecord(ctx, &rv.record); err != nil {
			return err
		}
		return tx.BumpDailySession(ctx, session.ID, delta)
	})
	if err != nil {
		if domain.Retryable(err) {
			d.log.Warn("review rejected by a concurrent update", "session_id", session.ID, "card_id", req.CardID)
		}
		return nil, err
	}

	session.CardsStudied += delta.Studied
	session.CardsLearned += delta.Learned
	session.NewCardsToday += delta.New
	session.ReviewCardsToday += delta.Review
	if rv.transition.Graduated {
		d.log.Debug("card graduated", "session_id", session.ID, "card_id", card.ID)
	}
	return &DailyReviewResult{Card: rv.card, Session: session, Graduated: rv.transition.Graduated}, nil
}

// End closes an active session. Ending it a second time fails with domain.ErrInvalidState.
func (d *DailySessions) End(ctx context.Context, userID, sessionID string) (*EndResult, error) {
	session, err := d.owned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, fmt.Errorf("%w: daily session %s already ended", domain.ErrInvalidState, sessionID)
	}
	now, _ := d.clock()
	endedAt := now.UTC()
	if err := d.repo.EndDailySession(ctx, session.ID, endedAt); err != nil {
		return nil, err
	}
	res := endResult(session.ID, session.StartedAt, endedAt)
	d.log.Info("daily session ended",
		"session_id", session.ID,
		"user_id", userID,
		"cards_studied", session.CardsStudied,
		"cards_learned", session.CardsLearned,
		"duration", res.Duration,
	)
	return &res, nil
}

// view selects today's cards: every due card that has been studied before, then
// as many new cards as the day's remaining quota allows. The quota is shared by every
// daily session the user starts on that day.
func (d *DailySessions) view(ctx context.Context, s *domain.DailySession, resumed bool) (*DailySessionView, error) {
	_, today := d.clock()
	due, err := d.repo.FindDueStudiedCards(ctx, s.DeckIDs, domain.DayString(today))
	if err != nil {
		return nil, err
	}
	introduced, err := d.repo.CountIntroducedOn(ctx, s.UserID, s.Day)
	if err != nil {
		return nil, err
	}
	remaining := s.NewCardsLimit - introduced
	if remaining < 0 {
		remaining = 0
	}
	fresh, err := d.repo.FindNewCards(ctx, s.DeckIDs, remaining)
	if err != nil {
		return nil, err
	}

	cards := make([]domain.Card, 0, len(due)+len(fresh))
	cards = append(cards, due...)
	cards = append(cards, fresh...)
	return &DailySessionView{
		Session:           s,
		Cards:             cards,
		Resumed:           resumed,
		NewCardsRemaining: remaining,
		CanEnd:            len(cards) == 0,
	}, nil
}

// History lists the answers given in a session, oldest first.
func (d *DailySessions) History(ctx context.Context, userID, sessionID string) ([]domain.ReviewRecord, error) {
	session, err := d.owned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return d.repo.ListReviewRecords(ctx, session.ID)
}

func (d *DailySessions) owned(ctx context.Context, userID, sessionID string) (*domain.DailySession, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	session, err := d.repo.GetDailySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("%w: daily session %s", domain.ErrNotFound, sessionID)
	}
	return session, nil
}
