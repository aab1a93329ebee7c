package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

const reviewSessionColumns = `id, user_id, deck_ids, started_at, ended_at, cards_reviewed`

func scanReviewSession(row rowScanner) (*domain.ReviewSession, error) {
	var (
		s         domain.ReviewSession
		deckIDs   string
		startedAt string
		endedAt   sql.NullString
	)
	if err := row.Scan(&s.ID, &s.UserID, &deckIDs, &startedAt, &endedAt, &s.CardsReviewed); err != nil {
		return nil, err
	}
	var err error
	if s.DeckIDs, err = decodeIDs(deckIDs); err != nil {
		return nil, err
	}
	if s.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if s.EndedAt, err = parseNullTime(endedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateReviewSession inserts a session. A second active session for the same
// user and deck set fails with domain.ErrDuplicate.
func (q queries) CreateReviewSession(ctx context.Context, s *domain.ReviewSession) error {
	deckIDs, err := encodeIDs(s.DeckIDs)
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx, `
		INSERT INTO review_sessions (id, user_id, deck_ids, deck_key, started_at, ended_at, cards_reviewed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.UserID, deckIDs, domain.DeckKey(s.DeckIDs), formatTime(s.StartedAt), formatNullTime(s.EndedAt), s.CardsReviewed)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: active review session for user deck set", domain.ErrDuplicate)
		}
		return unavailable("create review session", err)
	}
	return nil
}

// GetActiveReviewSession returns the unended session for the deck set, or nil.
func (q queries) GetActiveReviewSession(ctx context.Context, userID, deckKey string) (*domain.ReviewSession, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT `+reviewSessionColumns+`
		FROM review_sessions
		WHERE user_id = ? AND deck_key = ? AND ended_at IS NULL
	`, userID, deckKey)
	s, err := scanReviewSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("get active review session", err)
	}
	return s, nil
}

// GetReviewSession retrieves a review session by id.
func (q queries) GetReviewSession(ctx context.Context, id string) (*domain.ReviewSession, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+reviewSessionColumns+` FROM review_sessions WHERE id = ?`, id)
	s, err := scanReviewSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: review session %s", domain.ErrNotFound, id)
		}
		return nil, unavailable("get review session "+id, err)
	}
	return s, nil
}

// BumpReviewSession counts one more reviewed card on an active session.
func (q queries) BumpReviewSession(ctx context.Context, id string) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE review_sessions
		SET cards_reviewed = cards_reviewed + 1
		WHERE id = ? AND ended_at IS NULL
	`, id)
	return expectOne(res, err, "bump review session "+id, fmt.Errorf("%w: review session %s has ended", domain.ErrInvalidState, id))
}

// EndReviewSession stamps ended_at on an active session.
func (q queries) EndReviewSession(ctx context.Context, id string, at time.Time) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE review_sessions
		SET ended_at = ?
		WHERE id = ? AND ended_at IS NULL
	`, formatTime(at), id)
	return expectOne(res, err, "end review session "+id, fmt.Errorf("%w: review session %s already ended", domain.ErrInvalidState, id))
}

const dailySessionColumns = `id, user_id, lesson_id, deck_ids, day, new_cards_limit, started_at, ended_at,
	cards_studied, cards_learned, new_cards_today, review_cards_today`

func scanDailySession(row rowScanner) (*domain.DailySession, error) {
	var (
		s         domain.DailySession
		lessonID  sql.NullString
		deckIDs   string
		startedAt string
		endedAt   sql.NullString
	)
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&lessonID,
		&deckIDs,
		&s.Day,
		&s.NewCardsLimit,
		&startedAt,
		&endedAt,
		&s.CardsStudied,
		&s.CardsLearned,
		&s.NewCardsToday,
		&s.ReviewCardsToday,
	)
	if err != nil {
		return nil, err
	}
	if lessonID.Valid {
		id := lessonID.String
		s.LessonID = &id
	}
	if s.DeckIDs, err = decodeIDs(deckIDs); err != nil {
		return nil, err
	}
	if s.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if s.EndedAt, err = parseNullTime(endedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateDailySession inserts a session. A second active session for the same
// user and day fails with domain.ErrDuplicate.
func (q queries) CreateDailySession(ctx context.Context, s *domain.DailySession) error {
	deckIDs, err := encodeIDs(s.DeckIDs)
	if err != nil {
		return err
	}
	var lessonID sql.NullString
	if s.LessonID != nil {
		lessonID = sql.NullString{String: *s.LessonID, Valid: true}
	}
	_, err = q.q.ExecContext(ctx, `
		INSERT INTO daily_sessions (`+dailySessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ID,
		s.UserID,
		lessonID,
		deckIDs,
		s.Day,
		s.NewCardsLimit,
		formatTime(s.StartedAt),
		formatNullTime(s.EndedAt),
		s.CardsStudied,
		s.CardsLearned,
		s.NewCardsToday,
		s.ReviewCardsToday,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: active daily session for %s", domain.ErrDuplicate, s.Day)
		}
		return unavailable("create daily session", err)
	}
	return nil
}

// GetActiveDailySession returns the user's unended session for day, or nil.
func (q queries) GetActiveDailySession(ctx context.Context, userID, day string) (*domain.DailySession, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT `+dailySessionColumns+`
		FROM daily_sessions
		WHERE user_id = ? AND day = ? AND ended_at IS NULL
	`, userID, day)
	s, err := scanDailySession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("get active daily session", err)
	}
	return s, nil
}

// GetDailySession retrieves a daily session by id.
func (q queries) GetDailySession(ctx context.Context, id string) (*domain.DailySession, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+dailySessionColumns+` FROM daily_sessions WHERE id = ?`, id)
	s, err := scanDailySession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: daily session %s", domain.ErrNotFound, id)
		}
		return nil, unavailable("get daily session "+id, err)
	}
	return s, nil
}

// BumpDailySession adds delta to the counters of an active session.
func (q queries) BumpDailySession(ctx context.Context, id string, delta domain.DailyCounters) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE daily_sessions
		SET cards_studied = cards_studied + ?,
			cards_learned = cards_learned + ?,
			new_cards_today = new_cards_today + ?,
			review_cards_today = review_cards_today + ?
		WHERE id = ? AND ended_at IS NULL
	`, delta.Studied, delta.Learned, delta.New, delta.Review, id)
	return expectOne(res, err, "bump daily session "+id, fmt.Errorf("%w: daily session %s has ended", domain.ErrInvalidState, id))
}

// EndDailySession stamps ended_at on an active session.
func (q queries) EndDailySession(ctx context.Context, id string, at time.Time) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE daily_sessions
		SET ended_at = ?
		WHERE id = ? AND ended_at IS NULL
	`, formatTime(at), id)
	return expectOne(res, err, "end daily session "+id, fmt.Errorf("%w: daily session %s already ended", domain.ErrInvalidState, id))
}

func expectOne(res sql.Result, err error, op string, none error) error {
	if err != nil {
		return unavailable(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(op, err)
	}
	if n == 0 {
		return none
	}
	return nil
}
