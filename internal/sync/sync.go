// Package sync imports cards from markdown sources into their decks.
package sync

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/gitsource"
	"github.com/conorfennell/knolstudy/internal/knol"
	"github.com/conorfennell/knolstudy/internal/logger"
	"github.com/conorfennell/knolstudy/internal/parser"
	"github.com/conorfennell/knolstudy/internal/storage"
)

const defaultParallel = 4

type Options struct {
	// ReposDir holds the local checkouts of git sources.
	ReposDir string
	Now      func() time.Time
	Location *time.Location
	Parallel int
	Logger   *logger.Logger
}

// Syncer reconciles every source's deck with the cards currently in its files.
// Cards whose content is unchanged keep their scheduling state.
type Syncer struct {
	db   *storage.DB
	opts Options
	log  *logger.Logger
}

func New(db *storage.DB, opts Options) *Syncer {
	if opts.ReposDir == "" {
		opts.ReposDir = "repos"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Parallel <= 0 {
		opts.Parallel = defaultParallel
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Syncer{db: db, opts: opts, log: opts.Logger}
}

// Result summarises the reconciliation of one source.
type Result struct {
	Source   domain.Source
	Parsed   int
	Inserted int
	Deleted  int
	Err      error
}

// AddSource registers a local directory or git URL for userID and creates its deck.
func (s *Syncer) AddSource(ctx context.Context, userID, path string) (*domain.Source, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user", domain.ErrUnauthorized)
	}
	src := &domain.Source{UserID: userID, Path: strings.TrimSpace(path), Type: domain.SourceLocal}
	if src.Path == "" {
		return nil, fmt.Errorf("%w: source path is required", domain.ErrInvalidArgument)
	}
	if gitsource.IsGitURL(src.Path) {
		src.Type = domain.SourceGit
		if _, err := gitsource.LocalPath(s.opts.ReposDir, src.Path); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
		}
	} else {
		abs, err := filepath.Abs(src.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidArgument, abs)
		}
		src.Path = abs
	}

	existing, err := s.db.FindSourceByPath(ctx, userID, src.Path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	deck := &domain.Deck{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      deckName(src.Path),
		CreatedAt: s.opts.Now().UTC(),
	}
	if err := s.db.CreateSourceWithDeck(ctx, deck, src); err != nil {
		return nil, err
	}
	s.log.Info("source added", "user_id", userID, "path", src.Path, "deck_id", deck.ID)
	return src, nil
}

// Sources lists the sources registered by userID.
func (s *Syncer) Sources(ctx context.Context, userID string) ([]domain.Source, error) {
	return s.db.GetSourcesByUser(ctx, userID)
}

// RemoveSource deletes a source of userID along with its deck and cards.
func (s *Syncer) RemoveSource(ctx context.Context, userID string, id int64) error {
	mine, err := s.Sources(ctx, userID)
	if err != nil {
		return err
	}
	for _, src := range mine {
		if src.ID == id {
			return s.db.DeleteSource(ctx, id)
		}
	}
	return fmt.Errorf("%w: source %d", domain.ErrNotFound, id)
}

// Run reconciles every source of every user. A failing source is reported in its Result
// and does not stop the others; the returned error is only set when sources cannot be listed.
func (s *Syncer) Run(ctx context.Context) ([]Result, error) {
	sources, err := s.db.GetAllSources(ctx)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, sources)
}

// RunUser reconciles only the sources registered by userID.
func (s *Syncer) RunUser(ctx context.Context, userID string) ([]Result, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user", domain.ErrUnauthorized)
	}
	sources, err := s.db.GetSourcesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, sources)
}

func (s *Syncer) run(ctx context.Context, sources []domain.Source) ([]Result, error) {
	if len(sources) == 0 {
		s.log.Info("no sources configured")
		return nil, nil
	}
	if err := os.MkdirAll(s.opts.ReposDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create repos directory: %w", err)
	}

	results := make([]Result, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallel)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = s.reconcile(gctx, src)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Err != nil {
			s.log.Error("source sync failed", "source_id", r.Source.ID, "path", r.Source.Path, "error", r.Err)
			continue
		}
		s.log.Info("source synced",
			"source_id", r.Source.ID,
			"parsed", r.Parsed,
			"inserted", r.Inserted,
			"deleted", r.Deleted,
		)
	}
	return results, nil
}

func (s *Syncer) reconcile(ctx context.Context, src domain.Source) Result {
	res := Result{Source: src}
	dir := src.Path
	if src.Type == domain.SourceGit {
		local, err := gitsource.LocalPath(s.opts.ReposDir, src.Path)
		if err != nil {
			res.Err = err
			return res
		}
		if err := gitsource.Sync(ctx, s.log, src.Path, local); err != nil {
			res.Err = err
			return res
		}
		dir = local
	}

	parsed, err := readCards(dir)
	if err != nil {
		res.Err = err
		return res
	}
	parsed = knol.Stamp(parsed)
	res.Parsed = len(parsed)

	stored, err := s.db.GetCardsByDeck(ctx, src.DeckID)
	if err != nil {
		res.Err = err
		return res
	}
	known := make(map[string]bool, len(stored))
	for _, c := range stored {
		known[c.Hash] = true
	}

	now := s.opts.Now()
	today := domain.Day(now.In(s.opts.Location))
	found := make(map[string]bool, len(parsed))
	for _, c := range parsed {
		found[c.Hash] = true
		if known[c.Hash] {
			continue
		}
		card := domain.NewCard(src.DeckID, src.UserID, c, today, now)
		if err := s.db.InsertCard(ctx, &card); err != nil {
			res.Err = err
			return res
		}
		res.Inserted++
	}

	for _, c := range stored {
		if found[c.Hash] {
			continue
		}
		if err := s.db.DeleteCard(ctx, c.ID); err != nil {
			res.Err = err
			return res
		}
		res.Deleted++
	}

	if err := s.db.UpdateSourceLastScanned(ctx, src.ID, now); err != nil {
		s.log.Warn("failed to update last scanned", "source_id", src.ID, "error", err)
	}
	return res
}

// readCards parses every markdown file under dir in walk order.
func readCards(dir string) ([]domain.Card, error) {
	var cards []domain.Card
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".md") {
			return nil
		}
		fileCards, err := parser.ParseFile(path)
		if err != nil {
			return err
		}
		cards = append(cards, fileCards...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read cards from %s: %w", dir, err)
	}
	return cards, nil
}

func deckName(path string) string {
	name := strings.TrimSuffix(filepath.Base(strings.TrimSuffix(path, "/")), ".git")
	if name == "" || name == "." || name == string(filepath.Separator) {
		return path
	}
	return name
}
