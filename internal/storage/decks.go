package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// CreateDeck inserts a new deck.
func (q queries) CreateDeck(ctx context.Context, d *domain.Deck) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO decks (id, user_id, name, created_at)
		VALUES (?, ?, ?, ?)
	`, d.ID, d.UserID, d.Name, formatTime(d.CreatedAt))
	if err != nil {
		return unavailable("insert deck "+d.ID, err)
	}
	return nil
}

// GetDeck retrieves a deck by id.
func (q queries) GetDeck(ctx context.Context, id string) (*domain.Deck, error) {
	decks, err := q.GetDecks(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(decks) == 0 {
		return nil, fmt.Errorf("%w: deck %s", domain.ErrNotFound, id)
	}
	return &decks[0], nil
}

// GetDecks retrieves the decks that exist among ids. Missing ids are skipped.
func (q queries) GetDecks(ctx context.Context, ids []string) ([]domain.Deck, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, user_id, name, created_at
		FROM decks WHERE id IN (`+in+`)
		ORDER BY id
	`, args...)
	if err != nil {
		return nil, unavailable("get decks", err)
	}
	defer rows.Close()

	var decks []domain.Deck
	for rows.Next() {
		var (
			d         domain.Deck
			createdAt string
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &createdAt); err != nil {
			return nil, unavailable("scan deck row", err)
		}
		if d.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, unavailable("parse deck created_at", err)
		}
		decks = append(decks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("get decks", err)
	}
	return decks, nil
}

// InsertSource inserts a new source path for a user's deck and returns its ID.
func (q queries) InsertSource(ctx context.Context, s *domain.Source) (int64, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO sources (user_id, deck_id, path, type)
		VALUES (?, ?, ?, ?)
	`, s.UserID, s.DeckID, s.Path, s.Type)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: source %s", domain.ErrDuplicate, s.Path)
		}
		return 0, unavailable("insert source "+s.Path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, unavailable("get last insert ID for source "+s.Path, err)
	}
	s.ID = id
	return id, nil
}

const sourceColumns = `id, user_id, deck_id, path, type, last_scanned`

func scanSource(row rowScanner) (domain.Source, error) {
	var (
		s           domain.Source
		lastScanned sql.NullString
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.DeckID, &s.Path, &s.Type, &lastScanned); err != nil {
		return domain.Source{}, err
	}
	t, err := parseNullTime(lastScanned)
	if err != nil {
		return domain.Source{}, err
	}
	s.LastScanned = t
	return s, nil
}

// FindSourceByPath retrieves a user's source by its path. It returns nil, nil if absent.
func (q queries) FindSourceByPath(ctx context.Context, userID, path string) (*domain.Source, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT `+sourceColumns+`
		FROM sources WHERE user_id = ? AND path = ?
	`, userID, path)
	s, err := scanSource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Source not found
		}
		return nil, unavailable("find source by path "+path, err)
	}
	return &s, nil
}

// GetAllSources retrieves all stored sources.
func (q queries) GetAllSources(ctx context.Context) ([]domain.Source, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY id`)
	if err != nil {
		return nil, unavailable("get all sources", err)
	}
	return scanSources(rows)
}

// GetSourcesByUser retrieves the sources registered by userID.
func (q queries) GetSourcesByUser(ctx context.Context, userID string) ([]domain.Source, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+sourceColumns+`
		FROM sources WHERE user_id = ?
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, unavailable("get sources for user", err)
	}
	return scanSources(rows)
}

func scanSources(rows *sql.Rows) ([]domain.Source, error) {
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, unavailable("scan source row", err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list sources", err)
	}
	return sources, nil
}

// UpdateSourceLastScanned records when a source was last reconciled.
func (q queries) UpdateSourceLastScanned(ctx context.Context, sourceID int64, at time.Time) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE sources
		SET last_scanned = ?
		WHERE id = ?
	`, formatTime(at), sourceID)
	if err != nil {
		return unavailable(fmt.Sprintf("update last scanned for source ID %d", sourceID), err)
	}
	return nil
}

// DeleteSource removes a source. Its deck and cards are removed with it.
func (q queries) DeleteSource(ctx context.Context, sourceID int64) error {
	row := q.q.QueryRowContext(ctx, `SELECT deck_id FROM sources WHERE id = ?`, sourceID)
	var deckID string
	if err := row.Scan(&deckID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: source %d", domain.ErrNotFound, sourceID)
		}
		return unavailable(fmt.Sprintf("find source %d", sourceID), err)
	}
	// Cascades to sources and cards.
	if _, err := q.q.ExecContext(ctx, `DELETE FROM decks WHERE id = ?`, deckID); err != nil {
		return unavailable(fmt.Sprintf("delete source %d", sourceID), err)
	}
	return nil
}

// CreateSourceWithDeck registers a source together with the deck its cards go into.
func (db *DB) CreateSourceWithDeck(ctx context.Context, d *domain.Deck, s *domain.Source) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	q := queries{q: tx}
	if err := q.CreateDeck(ctx, d); err != nil {
		_ = tx.Rollback()
		return err
	}
	s.DeckID = d.ID
	if _, err := q.InsertSource(ctx, s); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit transaction", err)
	}
	return nil
}
