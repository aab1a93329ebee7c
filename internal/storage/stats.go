package storage

import (
	"context"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// CountCardsByStatus counts a user's cards per learning status.
func (q queries) CountCardsByStatus(ctx context.Context, userID string) (map[domain.LearningStatus]int, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT learning_status, COUNT(*)
		FROM cards
		WHERE user_id = ?
		GROUP BY learning_status
	`, userID)
	if err != nil {
		return nil, unavailable("count cards by status", err)
	}
	defer rows.Close()

	counts := make(map[domain.LearningStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, unavailable("scan card status count", err)
		}
		counts[domain.LearningStatus(status)] += n
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("count cards by status", err)
	}
	return counts, nil
}

// CountDueStudiedCards counts a user's reviewed cards due on or before asOf.
func (q queries) CountDueStudiedCards(ctx context.Context, userID, asOf string) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM cards
		WHERE user_id = ? AND learning_status <> ? AND next_review_date <= ?
	`, userID, string(domain.StatusNew), asOf).Scan(&n)
	if err != nil {
		return 0, unavailable("count due cards", err)
	}
	return n, nil
}

// CountGraduatedOn counts the cards a user graduated on day.
func (q queries) CountGraduatedOn(ctx context.Context, userID, day string) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT card_id) FROM review_records
		WHERE user_id = ? AND day = ? AND graduated = 1
	`, userID, day).Scan(&n)
	if err != nil {
		return 0, unavailable("count graduated cards", err)
	}
	return n, nil
}

// ActivityDays returns the distinct days, newest first and no later than through,
// on which the user answered a card or started a daily session.
func (q queries) ActivityDays(ctx context.Context, userID, through string) ([]string, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT day FROM review_records WHERE user_id = ? AND day <= ?
		UNION
		SELECT day FROM daily_sessions WHERE user_id = ? AND day <= ?
		ORDER BY day DESC
	`, userID, through, userID, through)
	if err != nil {
		return nil, unavailable("list activity days", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, unavailable("scan activity day", err)
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list activity days", err)
	}
	return days, nil
}
