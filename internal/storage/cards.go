package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/knolstudy/internal/domain"
)

const cardColumns = `id, deck_id, user_id, hash, question, answer, context,
	ease_factor, interval_days, repetition_count, next_review_date, last_reviewed_at,
	learning_status, correct_count, version, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (domain.Card, error) {
	var (
		c            domain.Card
		status       string
		nextReview   string
		lastReviewed sql.NullString
		createdAt    string
	)
	err := row.Scan(
		&c.ID,
		&c.DeckID,
		&c.UserID,
		&c.Hash,
		&c.Question,
		&c.Answer,
		&c.Context,
		&c.EaseFactor,
		&c.Interval,
		&c.RepetitionCount,
		&nextReview,
		&lastReviewed,
		&status,
		&c.CorrectCount,
		&c.Version,
		&createdAt,
	)
	if err != nil {
		return domain.Card{}, err
	}
	c.LearningStatus = domain.LearningStatus(status)
	if c.NextReviewDate, err = parseDay(nextReview); err != nil {
		return domain.Card{}, fmt.Errorf("card %s next_review_date: %w", c.ID, err)
	}
	if c.LastReviewedAt, err = parseNullTime(lastReviewed); err != nil {
		return domain.Card{}, fmt.Errorf("card %s last_reviewed_at: %w", c.ID, err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Card{}, fmt.Errorf("card %s created_at: %w", c.ID, err)
	}
	return c, nil
}

func scanCards(rows *sql.Rows) ([]domain.Card, error) {
	defer rows.Close()
	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// InsertCard inserts a card with whatever scheduling state it carries.
func (q queries) InsertCard(ctx context.Context, c *domain.Card) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID,
		c.DeckID,
		c.UserID,
		c.Hash,
		c.Question,
		c.Answer,
		c.Context,
		c.EaseFactor,
		c.Interval,
		c.RepetitionCount,
		formatDay(c.NextReviewDate),
		formatNullTime(c.LastReviewedAt),
		string(c.LearningStatus),
		c.CorrectCount,
		c.Version,
		formatTime(c.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: card %s", domain.ErrDuplicate, c.ID)
		}
		return unavailable("insert card "+c.ID, err)
	}
	return nil
}

// GetCard retrieves a card by id.
func (q queries) GetCard(ctx context.Context, id string) (*domain.Card, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: card %s", domain.ErrNotFound, id)
		}
		return nil, unavailable("get card "+id, err)
	}
	return &c, nil
}

// SaveCard updates scheduling state when the stored version still matches c.Version.
func (q queries) SaveCard(ctx context.Context, c *domain.Card) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE cards
		SET ease_factor = ?, interval_days = ?, repetition_count = ?, next_review_date = ?,
			last_reviewed_at = ?, learning_status = ?, correct_count = ?, version = version + 1
		WHERE id = ? AND version = ?
	`,
		c.EaseFactor,
		c.Interval,
		c.RepetitionCount,
		formatDay(c.NextReviewDate),
		formatNullTime(c.LastReviewedAt),
		string(c.LearningStatus),
		c.CorrectCount,
		c.ID,
		c.Version,
	)
	if err != nil {
		return unavailable("save card "+c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("save card "+c.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: card %s was modified concurrently (version %d)", domain.ErrConflict, c.ID, c.Version)
	}
	c.Version++
	return nil
}

// FindDueCards returns every card in the decks due on or before asOf,
// oldest due date first and then by id.
func (q queries) FindDueCards(ctx context.Context, deckIDs []string, asOf string) ([]domain.Card, error) {
	return q.findDue(ctx, deckIDs, asOf, false)
}

// FindDueStudiedCards is FindDueCards without cards that were never reviewed.
func (q queries) FindDueStudiedCards(ctx context.Context, deckIDs []string, asOf string) ([]domain.Card, error) {
	return q.findDue(ctx, deckIDs, asOf, true)
}

func (q queries) findDue(ctx context.Context, deckIDs []string, asOf string, skipNew bool) ([]domain.Card, error) {
	if len(deckIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(deckIDs)
	query := `SELECT ` + cardColumns + ` FROM cards
		WHERE deck_id IN (` + in + `) AND next_review_date <= ?`
	args = append(args, asOf)
	if skipNew {
		query += ` AND learning_status <> ?`
		args = append(args, string(domain.StatusNew))
	}
	query += ` ORDER BY next_review_date ASC, id ASC`

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("find due cards", err)
	}
	cards, err := scanCards(rows)
	if err != nil {
		return nil, unavailable("scan due cards", err)
	}
	return cards, nil
}

// FindNewCards returns up to limit never-reviewed cards in creation order.
func (q queries) FindNewCards(ctx context.Context, deckIDs []string, limit int) ([]domain.Card, error) {
	if len(deckIDs) == 0 || limit <= 0 {
		return nil, nil
	}
	in, args := inClause(deckIDs)
	args = append(args, string(domain.StatusNew), limit)
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+cardColumns+` FROM cards
		WHERE deck_id IN (`+in+`) AND learning_status = ?
		ORDER BY created_at ASC, rowid ASC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, unavailable("find new cards", err)
	}
	cards, err := scanCards(rows)
	if err != nil {
		return nil, unavailable("scan new cards", err)
	}
	return cards, nil
}

// GetCardsByDeck retrieves all cards of a deck.
func (q queries) GetCardsByDeck(ctx context.Context, deckID string) ([]domain.Card, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE deck_id = ?`, deckID)
	if err != nil {
		return nil, unavailable("get cards for deck "+deckID, err)
	}
	cards, err := scanCards(rows)
	if err != nil {
		return nil, unavailable("scan cards for deck "+deckID, err)
	}
	return cards, nil
}

// DeleteCard removes a card from the database by its id.
func (q queries) DeleteCard(ctx context.Context, id string) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id); err != nil {
		return unavailable("delete card "+id, err)
	}
	return nil
}
