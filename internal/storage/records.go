package storage

import (
	"context"
	"fmt"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// AppendReviewRecord writes one immutable history entry.
func (q queries) AppendReviewRecord(ctx context.Context, r *domain.ReviewRecord) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO review_records (id, user_id, card_id, session_id, session_kind, rating,
			was_new, prior_status, graduated, reviewed_at, day)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.UserID,
		r.CardID,
		r.SessionID,
		r.SessionKind,
		string(r.Rating),
		boolToInt(r.WasNew),
		string(r.PriorStatus),
		boolToInt(r.Graduated),
		formatTime(r.ReviewedAt),
		r.Day,
	)
	if err != nil {
		return unavailable("append review record for card "+r.CardID, err)
	}
	return nil
}

// CountIntroducedOn counts the distinct cards a user's daily sessions showed for the first
// time on day, across every session of that day.
func (q queries) CountIntroducedOn(ctx context.Context, userID, day string) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT card_id) FROM review_records
		WHERE user_id = ? AND day = ? AND session_kind = ? AND prior_status = ?
	`, userID, day, domain.SessionKindDaily, string(domain.StatusNew)).Scan(&n)
	if err != nil {
		return 0, unavailable(fmt.Sprintf("count cards introduced on %s", day), err)
	}
	return n, nil
}

// ListReviewRecords returns a session's history in answer order.
func (q queries) ListReviewRecords(ctx context.Context, sessionID string) ([]domain.ReviewRecord, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, user_id, card_id, session_id, session_kind, rating, was_new, prior_status,
			graduated, reviewed_at, day
		FROM review_records
		WHERE session_id = ?
		ORDER BY reviewed_at ASC, rowid ASC
	`, sessionID)
	if err != nil {
		return nil, unavailable("list review records", err)
	}
	defer rows.Close()

	var records []domain.ReviewRecord
	for rows.Next() {
		var (
			r                 domain.ReviewRecord
			rating, prior     string
			wasNew, graduated int
			reviewedAt        string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.CardID, &r.SessionID, &r.SessionKind, &rating,
			&wasNew, &prior, &graduated, &reviewedAt, &r.Day); err != nil {
			return nil, unavailable("scan review record", err)
		}
		r.Rating = domain.Rating(rating)
		r.PriorStatus = domain.LearningStatus(prior)
		r.WasNew = wasNew == 1
		r.Graduated = graduated == 1
		if r.ReviewedAt, err = parseTime(reviewedAt); err != nil {
			return nil, unavailable("parse review record time", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list review records", err)
	}
	return records, nil
}
