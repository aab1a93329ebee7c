package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/knolstudy/internal/domain"
)

const lessonColumns = `id, user_id, name, description, deck_ids, daily_new_cards_limit, created_at, updated_at`

func scanLesson(row rowScanner) (domain.Lesson, error) {
	var (
		l                    domain.Lesson
		deckIDs              string
		createdAt, updatedAt string
	)
	err := row.Scan(&l.ID, &l.UserID, &l.Name, &l.Description, &deckIDs, &l.DailyNewCardsLimit, &createdAt, &updatedAt)
	if err != nil {
		return domain.Lesson{}, err
	}
	if l.DeckIDs, err = decodeIDs(deckIDs); err != nil {
		return domain.Lesson{}, err
	}
	if l.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Lesson{}, err
	}
	if l.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Lesson{}, err
	}
	return l, nil
}

// CreateLesson inserts a new lesson.
func (q queries) CreateLesson(ctx context.Context, l *domain.Lesson) error {
	deckIDs, err := encodeIDs(l.DeckIDs)
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx, `
		INSERT INTO lessons (`+lessonColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.UserID, l.Name, l.Description, deckIDs, l.DailyNewCardsLimit, formatTime(l.CreatedAt), formatTime(l.UpdatedAt))
	if err != nil {
		return unavailable("create lesson "+l.Name, err)
	}
	return nil
}

// GetLesson retrieves a lesson by id.
func (q queries) GetLesson(ctx context.Context, id string) (*domain.Lesson, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = ?`, id)
	l, err := scanLesson(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: lesson %s", domain.ErrNotFound, id)
		}
		return nil, unavailable("get lesson "+id, err)
	}
	return &l, nil
}

// ListLessons returns a user's lessons, newest first.
func (q queries) ListLessons(ctx context.Context, userID string) ([]domain.Lesson, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+lessonColumns+`
		FROM lessons
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, unavailable("list lessons", err)
	}
	defer rows.Close()

	var lessons []domain.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, unavailable("scan lesson row", err)
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list lessons", err)
	}
	return lessons, nil
}

// UpdateLesson overwrites the editable fields of a lesson.
func (q queries) UpdateLesson(ctx context.Context, l *domain.Lesson) error {
	deckIDs, err := encodeIDs(l.DeckIDs)
	if err != nil {
		return err
	}
	res, err := q.q.ExecContext(ctx, `
		UPDATE lessons
		SET name = ?, description = ?, deck_ids = ?, daily_new_cards_limit = ?, updated_at = ?
		WHERE id = ?
	`, l.Name, l.Description, deckIDs, l.DailyNewCardsLimit, formatTime(l.UpdatedAt), l.ID)
	return expectOne(res, err, "update lesson "+l.ID, fmt.Errorf("%w: lesson %s", domain.ErrNotFound, l.ID))
}

// DeleteLesson removes a lesson. Daily sessions started from it keep their decks.
func (q queries) DeleteLesson(ctx context.Context, id string) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM lessons WHERE id = ?`, id)
	return expectOne(res, err, "delete lesson "+id, fmt.Errorf("%w: lesson %s", domain.ErrNotFound, id))
}
